package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/ltb-sync/internal/bootstrap"
	"github.com/maltedev/ltb-sync/internal/models"
	"github.com/maltedev/ltb-sync/internal/scraper"
)

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Run(ctx context.Context) (*models.SyncResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncResult), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, req bootstrap.Request) (*models.ExtractedProductData, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExtractedProductData), args.Error(1)
}

type fakeHealth struct {
	pingErr       error
	pending, dead int64
	countsErr     error
}

func (f *fakeHealth) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeHealth) Counts(ctx context.Context) (int64, int64, error) {
	return f.pending, f.dead, f.countsErr
}

func newTestServer(t *testing.T, syncer Syncer, extractor Extractor, health HealthChecker) *httptest.Server {
	t.Helper()
	h := NewHandlers(syncer, extractor, health, slog.Default())
	srv := httptest.NewServer(NewRouter(h, RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestSyncEndpoint(t *testing.T) {
	t.Run("returns result", func(t *testing.T) {
		syncer := new(MockSyncer)
		price := 45.5
		syncer.On("Run", mock.Anything).Return(&models.SyncResult{
			OK:            true,
			ProductsCount: 3,
			Updated:       1,
			Updates:       []models.UpdateSummary{{Name: "Плита", Article: "123456", Price: &price}},
			Diagnostics: models.Diagnostics{
				ItemsWithRemoteLink: 1,
				Details:             []models.ItemDiagnostic{{Name: "Плита", URL: "https://ltb.ge/x", Status: models.StatusUpdated}},
			},
		}, nil)

		srv := newTestServer(t, syncer, new(MockExtractor), &fakeHealth{})
		resp, err := http.Post(srv.URL+"/api/ltb-sync", "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, float64(3), body["products_count"])
		assert.Equal(t, float64(1), body["updated"])
		diagnostics := body["diagnostics"].(map[string]interface{})
		assert.Nil(t, diagnostics["message"])
		assert.NotContains(t, body, "Trail")
	})

	t.Run("run failure", func(t *testing.T) {
		syncer := new(MockSyncer)
		syncer.On("Run", mock.Anything).Return(nil, errors.New("failed to read inventory: connection refused"))

		srv := newTestServer(t, syncer, new(MockExtractor), &fakeHealth{})
		resp, err := http.Post(srv.URL+"/api/ltb-sync", "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, false, body["ok"])
		assert.Contains(t, body["error"], "connection refused")
	})

	t.Run("run is detached from the request", func(t *testing.T) {
		syncer := new(MockSyncer)
		detached := mock.MatchedBy(func(ctx context.Context) bool {
			_, hasDeadline := ctx.Deadline()
			return ctx.Done() == nil && !hasDeadline
		})
		syncer.On("Run", detached).Return(&models.SyncResult{OK: true}, nil)

		srv := newTestServer(t, syncer, new(MockExtractor), &fakeHealth{})
		resp, err := http.Post(srv.URL+"/api/ltb-sync", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		syncer.AssertExpectations(t)
	})

	t.Run("cancelled run keeps its trail", func(t *testing.T) {
		syncer := new(MockSyncer)
		price := 10.0
		syncer.On("Run", mock.Anything).Return(&models.SyncResult{
			OK:      false,
			Updated: 1,
			Updates: []models.UpdateSummary{{Name: "Plate A", Price: &price}},
			Diagnostics: models.Diagnostics{
				ItemsWithRemoteLink: 1,
				Details:             []models.ItemDiagnostic{{Name: "Plate A", URL: "https://ltb.ge/x…", Status: models.StatusUpdated}},
			},
			Error: "sync cancelled: context canceled",
		}, errors.New("sync cancelled: context canceled"))

		srv := newTestServer(t, syncer, new(MockExtractor), &fakeHealth{})
		resp, err := http.Post(srv.URL+"/api/ltb-sync", "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, false, body["ok"])
		assert.Equal(t, "sync cancelled: context canceled", body["error"])
		assert.Equal(t, float64(1), body["updated"])
		details := body["diagnostics"].(map[string]interface{})["details"].([]interface{})
		assert.Len(t, details, 1)
	})
}

func TestParseProductEndpoint(t *testing.T) {
	post := func(t *testing.T, srv *httptest.Server, body string) *http.Response {
		t.Helper()
		resp, err := http.Post(srv.URL+"/api/parse-ltb-product", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		return resp
	}

	t.Run("success", func(t *testing.T) {
		extractor := new(MockExtractor)
		price := 12.5
		extractor.On("Extract", mock.Anything, bootstrap.Request{URL: "https://ltb.ge/ge/shop/productview/1-x", TabID: "tab-1"}).
			Return(&models.ExtractedProductData{
				Name:         "Петля",
				CostPerPiece: &price,
				URL:          "https://ltb.ge/ge/shop/productview/1-x",
			}, nil)

		srv := newTestServer(t, new(MockSyncer), extractor, &fakeHealth{})
		resp := post(t, srv, `{"url":"https://ltb.ge/ge/shop/productview/1-x","tab_id":"tab-1"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, true, body["ok"])
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "Петля", data["name"])
		assert.Equal(t, 12.5, data["cost_per_piece"])
		assert.Nil(t, data["extra"])
		assert.Nil(t, data["photo_url"])
		extractor.AssertExpectations(t)
	})

	t.Run("malformed json", func(t *testing.T) {
		extractor := new(MockExtractor)
		srv := newTestServer(t, new(MockSyncer), extractor, &fakeHealth{})

		resp := post(t, srv, `{"url":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, false, decode(t, resp)["ok"])
		extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	})

	errorCases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"missing url", bootstrap.ErrMissingURL, http.StatusBadRequest, "product link"},
		{"foreign host", fmt.Errorf("%w: https://example.com", bootstrap.ErrForeignHost), http.StatusBadRequest, "product link"},
		{"remote status", &scraper.StatusError{URL: "u", StatusCode: 404}, http.StatusBadGateway, "page unavailable: 404"},
		{"transport", fmt.Errorf("%w: dial tcp: timeout", scraper.ErrTransport), http.StatusBadGateway, "page unavailable"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "boom"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			extractor := new(MockExtractor)
			extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, tc.err)

			srv := newTestServer(t, new(MockSyncer), extractor, &fakeHealth{})
			resp := post(t, srv, `{"url":"x"}`)
			assert.Equal(t, tc.status, resp.StatusCode)
			body := decode(t, resp)
			assert.Equal(t, false, body["ok"])
			assert.Contains(t, body["error"], tc.message)
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		health *fakeHealth
		status int
		state  string
	}{
		{"ok", &fakeHealth{pending: 3}, http.StatusOK, "ok"},
		{"backlog warning", &fakeHealth{pending: 1001}, http.StatusOK, "warning"},
		{"dead letters", &fakeHealth{dead: 101}, http.StatusServiceUnavailable, "error"},
		{"database down", &fakeHealth{pingErr: errors.New("refused")}, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, new(MockSyncer), new(MockExtractor), tt.health)
			resp, err := http.Get(srv.URL + "/health")
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.state, decode(t, resp)["status"])
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, new(MockSyncer), new(MockExtractor), &fakeHealth{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/ltb-sync", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
