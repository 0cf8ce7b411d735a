package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/ltb-sync/internal/matcher"
	"github.com/maltedev/ltb-sync/internal/models"
	"github.com/maltedev/ltb-sync/internal/scraper"
)

// fakeFetcher serves canned pages keyed by URL; unknown URLs are 404.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	json  map[string]string
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, json: map[string]string{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*scraper.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, &scraper.StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	return &scraper.Page{URL: url, StatusCode: 200, ContentType: "text/html", Body: []byte(body)}, nil
}

func (f *fakeFetcher) FetchJSON(ctx context.Context, url string) (*scraper.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	body, ok := f.json[url]
	if !ok {
		return nil, &scraper.StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	return &scraper.Page{URL: url, StatusCode: 200, ContentType: "application/json", Body: []byte(body)}, nil
}

func (f *fakeFetcher) called(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == url {
			return true
		}
	}
	return false
}

type write struct {
	item  models.InventoryItem
	patch models.ItemPatch
}

type fakeStore struct {
	mu       sync.Mutex
	items    []models.InventoryItem
	listErr  error
	failIDs  map[string]bool
	writes   []write
	listHook func()
	// afterWrite runs once a write has been recorded.
	afterWrite func(id string)
}

func (s *fakeStore) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	if s.listHook != nil {
		s.listHook()
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.items, nil
}

func (s *fakeStore) UpdateItem(ctx context.Context, item models.InventoryItem, patch models.ItemPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[item.ID] {
		return errors.New("row is locked")
	}
	s.writes = append(s.writes, write{item: item, patch: patch})
	if s.afterWrite != nil {
		s.afterWrite(item.ID)
	}
	return nil
}

func (s *fakeStore) writeFor(id string) (models.ItemPatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.writes {
		if w.item.ID == id {
			return w.patch, true
		}
	}
	return models.ItemPatch{}, false
}

const listingURL = "https://ltb.ge/ge/shop"

func teaser(tail, article, price string) string {
	return fmt.Sprintf(`<div><a href="/ge/shop/productview/%s"><img></a><span>%s</span><b>%s ₾</b></div>`, tail, article, price)
}

func newTestService(t *testing.T, store Store, fetcher *fakeFetcher, concurrency int) *Service {
	t.Helper()
	remote, err := scraper.NewRemote("https://ltb.ge", "/ge/shop")
	require.NoError(t, err)
	resolver := matcher.NewResolver(remote, fetcher, nil, slog.Default())
	svc := NewService(store, resolver, fetcher, remote, Options{Concurrency: concurrency}, slog.Default())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestRun_ListingArticleMatch(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[listingURL] = "<html>" + teaser("1-x", "123456", "45,50") + "</html>"

	store := &fakeStore{items: []models.InventoryItem{{
		ID:      "item-1",
		Name:    "Sheet",
		Article: "123456",
		Link:    "https://ltb.ge/ge/shop/productview/1-x",
	}}}

	result, err := newTestService(t, store, fetcher, 1).Run(context.Background())
	require.NoError(t, err)

	patch, ok := store.writeFor("item-1")
	require.True(t, ok)
	require.NotNil(t, patch.CostPerSheet)
	assert.Equal(t, 45.5, *patch.CostPerSheet)
	assert.Nil(t, patch.CostPerM2, "no stored dimensions")
	assert.True(t, patch.RemoteAvailable)
	assert.Equal(t, 45.5, *patch.RemotePrice)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), patch.RemoteUpdatedAt)
	require.NotNil(t, patch.RemoteURL)
	assert.Equal(t, "https://ltb.ge/ge/shop/productview/1-x", *patch.RemoteURL)
	assert.Equal(t, models.StatusFromListing, patch.Source)

	assert.True(t, result.OK)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 1, result.ProductsCount)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Updates, 1)
	assert.Equal(t, models.UpdateSummary{Name: "Sheet", Article: "123456", Price: patch.RemotePrice}, result.Updates[0])
	assert.Equal(t, 1, result.Diagnostics.ItemsWithRemoteLink)
	require.Len(t, result.Diagnostics.Details, 1)
	assert.Equal(t, models.StatusUpdated, result.Diagnostics.Details[0].Status)
	assert.Nil(t, result.Diagnostics.Message)

	assert.False(t, fetcher.called("https://ltb.ge/ge/shop/productview/1-x"), "listing match must not fetch the page")
}

func TestRun_NoLinkItem(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[listingURL] = teaser("1-x", "123456", "45")

	store := &fakeStore{items: []models.InventoryItem{{ID: "item-2", Name: "Screws"}}}

	result, err := newTestService(t, store, fetcher, 1).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, store.writes)
	require.Len(t, result.Trail, 1)
	assert.Equal(t, models.StatusNoLink, result.Trail[0].Status)
	assert.Empty(t, result.Trail[0].URL)
	assert.Equal(t, 0, result.Diagnostics.ItemsWithRemoteLink)
	assert.Empty(t, result.Diagnostics.Details)
	assert.Empty(t, result.Updates)
	assert.Equal(t, 0, result.Updated)
}

func TestRun_UnlinkedItemMatchedByArticleIsWrittenButNotListed(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[listingURL] = teaser("5-edge", "555555", "3.20")

	store := &fakeStore{items: []models.InventoryItem{{ID: "edge", Name: "Edge band", Article: "555555"}}}

	result, err := newTestService(t, store, fetcher, 1).Run(context.Background())
	require.NoError(t, err)

	_, ok := store.writeFor("edge")
	assert.True(t, ok)
	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, result.Diagnostics.Details)
	assert.Equal(t, models.StatusUpdated, result.Trail[0].Status)
}

func TestRun_ListingUnavailable(t *testing.T) {
	fetcher := newFakeFetcher()
	link := "https://ltb.ge/ge/shop/productview/7-hinge"
	fetcher.pages[link] = `<span>12.50 ₾</span>`

	store := &fakeStore{items: []models.InventoryItem{{ID: "h", Name: "Hinge", Link: link, Dimensions: "2800×1220×18"}}}

	result, err := newTestService(t, store, fetcher, 1).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.ProductsCount)
	patch, ok := store.writeFor("h")
	require.True(t, ok)
	assert.Equal(t, 12.5, *patch.CostPerSheet)
	require.NotNil(t, patch.CostPerM2)
	assert.Equal(t, 3.66, *patch.CostPerM2)
	assert.Equal(t, models.StatusFromPage, patch.Source)
	assert.Equal(t, models.StatusUpdated, result.Diagnostics.Details[0].Status)
}

func TestRun_StatusesAndAdvisory(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[listingURL] = `<html>empty</html>`
	fetcher.pages["https://ltb.ge/ge/shop/productview/1-spa"] = `<div id="app"></div>`
	fetcher.json["https://ltb.ge/api/products/2"] = `{"price": 10}`

	store := &fakeStore{
		items: []models.InventoryItem{
			{ID: "1", Name: "SPA", Link: "https://ltb.ge/ge/shop/productview/1-spa"},
			{ID: "2", Name: "API", Link: "https://ltb.ge/ge/shop/productview/2-api"},
			{ID: "3", Name: "Gone", Link: "https://ltb.ge/ge/shop/productview/3-gone"},
			{ID: "4", Name: "Foreign", Link: "https://example.com/x"},
		},
		failIDs: map[string]bool{"2": true},
	}

	result, err := newTestService(t, store, fetcher, 1).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Diagnostics.ItemsWithRemoteLink)
	statuses := []models.Status{}
	for _, d := range result.Diagnostics.Details {
		statuses = append(statuses, d.Status)
	}
	assert.Equal(t, []models.Status{
		models.StatusFetchOKNoPrice,
		models.StatusUpdateFailed,
		models.StatusFetchFailed,
	}, statuses)

	assert.Equal(t, 0, result.Updated)
	require.Len(t, result.Updates, 1)
	assert.Equal(t, "row is locked", result.Updates[0].Error)

	require.NotNil(t, result.Diagnostics.Message)
	assert.Contains(t, *result.Diagnostics.Message, "JavaScript")
	assert.Contains(t, *result.Diagnostics.Message, "Updated from the listing or API: 0")

	require.Len(t, result.Trail, 4)
	assert.Equal(t, models.StatusNoLink, result.Trail[3].Status)
}

func TestRun_ConcurrencyKeepsOrder(t *testing.T) {
	fetcher := newFakeFetcher()
	var listing strings.Builder
	var items []models.InventoryItem
	for i := 0; i < 20; i++ {
		article := fmt.Sprintf("%06d", 100000+i)
		listing.WriteString(teaser(fmt.Sprintf("%d-p", i), article, fmt.Sprintf("%d", i+1)))
		items = append(items, models.InventoryItem{
			ID:      fmt.Sprintf("id-%d", i),
			Name:    fmt.Sprintf("item %02d", i),
			Article: article,
			Link:    fmt.Sprintf("https://ltb.ge/ge/shop/productview/%d-p", i),
		})
	}
	fetcher.pages[listingURL] = listing.String()
	store := &fakeStore{items: items}

	result, err := newTestService(t, store, fetcher, 4).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, result.Updated)
	require.Len(t, result.Diagnostics.Details, 20)
	for i, d := range result.Diagnostics.Details {
		assert.Equal(t, fmt.Sprintf("item %02d", i), d.Name)
		assert.Equal(t, float64(i+1), *result.Updates[i].Price)
	}
}

func TestRun_ListItemsFailure(t *testing.T) {
	store := &fakeStore{listErr: errors.New("connection refused")}

	_, err := newTestService(t, store, newFakeFetcher(), 1).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRun_Cancelled(t *testing.T) {
	store := &fakeStore{items: []models.InventoryItem{{ID: "1", Name: "x"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestService(t, store, newFakeFetcher(), 1).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_CancelledMidRunKeepsPersistedItems(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[listingURL] = "<html>" + teaser("1-a", "111111", "10,00") + teaser("2-b", "222222", "20,00") + "</html>"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeStore{
		items: []models.InventoryItem{
			{ID: "a", Name: "Plate A", Link: "https://ltb.ge/ge/shop/productview/1-a"},
			{ID: "b", Name: "Plate B", Link: "https://ltb.ge/ge/shop/productview/2-b"},
		},
		afterWrite: func(id string) {
			if id == "a" {
				cancel()
			}
		},
	}

	result, err := newTestService(t, store, fetcher, 1).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)

	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "sync cancelled")
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Updates, 1)
	assert.Equal(t, "Plate A", result.Updates[0].Name)

	assert.Equal(t, 1, result.Diagnostics.ItemsWithRemoteLink)
	require.Len(t, result.Diagnostics.Details, 1)
	assert.Equal(t, models.ItemDiagnostic{
		Name:   "Plate A",
		URL:    "https://ltb.ge/ge/shop/productview/1-a…",
		Status: models.StatusUpdated,
	}, result.Diagnostics.Details[0])

	_, written := store.writeFor("b")
	assert.False(t, written)
}

func TestTryRun_SkipsWhileRunning(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	store := &fakeStore{listHook: func() {
		close(entered)
		<-release
	}}
	svc := newTestService(t, store, newFakeFetcher(), 1)

	done := make(chan error)
	go func() {
		_, err := svc.Run(context.Background())
		done <- err
	}()
	<-entered

	_, err := svc.TryRun(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestBuildPatch(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	price := 300.0
	unavailable := false

	t.Run("dimensions recompute area price", func(t *testing.T) {
		item := models.InventoryItem{Dimensions: "2800×1220×18"}
		patch := buildPatch(item, models.MatchResult{Match: &models.Match{URL: "u", Price: &price}}, now)
		require.NotNil(t, patch.CostPerM2)
		assert.Equal(t, 87.82, *patch.CostPerM2)
		assert.Equal(t, 300.0, *patch.CostPerSheet)
		assert.Equal(t, now, patch.RemoteUpdatedAt)
	})

	t.Run("existing remote url is kept", func(t *testing.T) {
		item := models.InventoryItem{RemoteURL: "https://ltb.ge/ge/shop/productview/1-x"}
		patch := buildPatch(item, models.MatchResult{Match: &models.Match{URL: "https://ltb.ge/other", Price: &price}}, now)
		assert.Nil(t, patch.RemoteURL)
	})

	t.Run("explicit availability wins", func(t *testing.T) {
		patch := buildPatch(models.InventoryItem{}, models.MatchResult{Match: &models.Match{Price: &price, Available: &unavailable}}, now)
		assert.False(t, patch.RemoteAvailable)
		assert.Nil(t, patch.RemoteURL)
	})

	t.Run("no price leaves cost fields alone", func(t *testing.T) {
		patch := buildPatch(models.InventoryItem{Dimensions: "1000×500"}, models.MatchResult{Match: &models.Match{URL: "u"}}, now)
		assert.Nil(t, patch.RemotePrice)
		assert.Nil(t, patch.CostPerSheet)
		assert.Nil(t, patch.CostPerM2)
		assert.True(t, patch.RemoteAvailable)
	})
}

func TestTruncateURL(t *testing.T) {
	assert.Equal(t, "", truncateURL(""))
	assert.Equal(t, "https://ltb.ge/x…", truncateURL("https://ltb.ge/x"))

	long := "https://ltb.ge/ge/shop/productview/32054-laminated-chipboard-egger-w1000"
	got := truncateURL(long)
	assert.Equal(t, long[:60]+"…", got)
}
