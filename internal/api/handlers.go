package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/maltedev/ltb-sync/internal/bootstrap"
	"github.com/maltedev/ltb-sync/internal/models"
	"github.com/maltedev/ltb-sync/internal/scraper"
)

type Syncer interface {
	Run(ctx context.Context) (*models.SyncResult, error)
}

type Extractor interface {
	Extract(ctx context.Context, req bootstrap.Request) (*models.ExtractedProductData, error)
}

// HealthChecker reports store reachability and outbox backlog.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Counts(ctx context.Context) (pending, deadLetter int64, err error)
}

const (
	pendingWarnThreshold    = 1000
	deadLetterFailThreshold = 100
)

type Handlers struct {
	syncer    Syncer
	extractor Extractor
	health    HealthChecker
	logger    *slog.Logger
}

func NewHandlers(syncer Syncer, extractor Extractor, health HealthChecker, logger *slog.Logger) *Handlers {
	return &Handlers{
		syncer:    syncer,
		extractor: extractor,
		health:    health,
		logger:    logger.With("component", "api"),
	}
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type productResponse struct {
	OK   bool              `json:"ok"`
	Data bootstrap.Product `json:"data"`
}

// Sync runs one batch reconciliation. The run is detached from the request
// so a client disconnect does not stop it halfway.
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncer.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		h.logger.Error("sync failed", "error", err)
		if result != nil {
			h.respondJSON(w, http.StatusInternalServerError, result)
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// ParseProduct extracts one product page for a new inventory item.
func (h *Handlers) ParseProduct(w http.ResponseWriter, r *http.Request) {
	var req bootstrap.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	data, err := h.extractor.Extract(r.Context(), req)
	if err != nil {
		status, message := classifyExtractError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("product extraction failed", "url", req.URL, "error", err)
		}
		h.respondError(w, status, message)
		return
	}

	h.respondJSON(w, http.StatusOK, productResponse{OK: true, Data: bootstrap.NewProduct(data)})
}

func classifyExtractError(err error) (int, string) {
	var statusErr *scraper.StatusError
	switch {
	case errors.Is(err, bootstrap.ErrMissingURL), errors.Is(err, bootstrap.ErrForeignHost):
		return http.StatusBadRequest, "a product link on the remote catalog is required"
	case errors.As(err, &statusErr):
		return http.StatusBadGateway, fmt.Sprintf("page unavailable: %d", statusErr.StatusCode)
	case errors.Is(err, scraper.ErrTransport):
		return http.StatusBadGateway, "page unavailable: " + err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// Health reports store and outbox state.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	health := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if err := h.health.Ping(ctx); err != nil {
		health["status"] = "error"
		health["message"] = "database unreachable"
		h.respondJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	pending, deadLetter, err := h.health.Counts(ctx)
	if err != nil {
		h.logger.Warn("failed to read outbox counts", "error", err)
	}
	health["outbox"] = map[string]interface{}{
		"pending":     pending,
		"dead_letter": deadLetter,
	}

	if pending > pendingWarnThreshold {
		health["status"] = "warning"
		health["message"] = "High number of pending outbox events"
	}
	if deadLetter > deadLetterFailThreshold {
		health["status"] = "error"
		health["message"] = "High number of dead letter events"
		status = http.StatusServiceUnavailable
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, errorResponse{OK: false, Error: message})
}
