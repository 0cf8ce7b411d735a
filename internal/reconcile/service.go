// Package reconcile runs the batch sync of the inventory against the remote
// catalog and records a diagnostics trail for every item.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/ltb-sync/internal/measure"
	"github.com/maltedev/ltb-sync/internal/models"
	"github.com/maltedev/ltb-sync/internal/parser"
	"github.com/maltedev/ltb-sync/internal/scraper"
)

// ErrRunInProgress is returned by TryRun when another run holds the lock.
var ErrRunInProgress = errors.New("sync already running")

const detailURLLength = 60

// Store is the inventory the sync reads from and writes back to.
type Store interface {
	ListItems(ctx context.Context) ([]models.InventoryItem, error)
	UpdateItem(ctx context.Context, item models.InventoryItem, patch models.ItemPatch) error
}

type Resolver interface {
	Resolve(ctx context.Context, item models.InventoryItem, listing []models.RemoteProductRecord) models.MatchResult
}

type ListingFetcher interface {
	Fetch(ctx context.Context, url string) (*scraper.Page, error)
}

type Options struct {
	// Concurrency bounds how many items are resolved at once. Values below
	// one mean sequential processing.
	Concurrency int
}

type Service struct {
	store       Store
	resolver    Resolver
	fetcher     ListingFetcher
	remote      scraper.Remote
	concurrency int
	now         func() time.Time
	logger      *slog.Logger

	// sem admits one run at a time.
	sem chan struct{}
}

func NewService(store Store, resolver Resolver, fetcher ListingFetcher, remote scraper.Remote, opts Options, logger *slog.Logger) *Service {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Service{
		store:       store,
		resolver:    resolver,
		fetcher:     fetcher,
		remote:      remote,
		concurrency: opts.Concurrency,
		now:         time.Now,
		logger:      logger.With("component", "reconcile"),
		sem:         make(chan struct{}, 1),
	}
}

// itemOutcome is what one worker reports for one item.
type itemOutcome struct {
	done    bool
	linked  bool
	detail  models.ItemDiagnostic
	summary *models.UpdateSummary
	written bool
}

// Run performs one full sync, waiting for any run in progress to finish.
// Only a failure to read the inventory or a cancelled context fail the run.
// A cancelled run still returns the trail of the items processed so far.
func (s *Service) Run(ctx context.Context) (*models.SyncResult, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	return s.run(ctx)
}

// TryRun performs a sync unless one is already in progress, in which case
// it returns ErrRunInProgress immediately.
func (s *Service) TryRun(ctx context.Context) (*models.SyncResult, error) {
	select {
	case s.sem <- struct{}{}:
	default:
		return nil, ErrRunInProgress
	}
	defer func() { <-s.sem }()

	return s.run(ctx)
}

func (s *Service) run(ctx context.Context) (*models.SyncResult, error) {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	start := time.Now()

	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}

	listing := s.fetchListing(ctx, logger)
	logger.Info("sync started",
		"items", len(items),
		"listing_records", len(listing),
		"concurrency", s.concurrency)

	outcomes := make([]itemOutcome, len(items))
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.processItem(ctx, logger, item, listing)
			return nil
		})
	}
	waitErr := g.Wait()

	result := assemble(runID, len(listing), outcomes)
	if waitErr != nil {
		err := fmt.Errorf("sync cancelled: %w", waitErr)
		result.OK = false
		result.Error = err.Error()
		logger.Warn("sync cancelled",
			"items", len(items),
			"processed", len(result.Trail),
			"updated", result.Updated)
		return result, err
	}
	logger.Info("sync finished",
		"items", len(items),
		"items_with_remote_link", result.Diagnostics.ItemsWithRemoteLink,
		"matched", len(result.Updates),
		"updated", result.Updated,
		"duration", time.Since(start))
	return result, nil
}

// fetchListing reads the catalog listing once. Any failure yields an empty
// record set so the run continues with the per-item strategies.
func (s *Service) fetchListing(ctx context.Context, logger *slog.Logger) []models.RemoteProductRecord {
	url := s.remote.ListingURL()
	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		logger.Warn("listing unavailable, continuing without it", "url", url, "error", err)
		return nil
	}
	return parser.ParseListing(page.Text(), s.remote.BaseURL)
}

func (s *Service) processItem(ctx context.Context, logger *slog.Logger, item models.InventoryItem, listing []models.RemoteProductRecord) itemOutcome {
	ref := item.ReferenceURL()
	result := s.resolver.Resolve(ctx, item, listing)

	out := itemOutcome{
		done:   true,
		linked: s.remote.IsRemoteLink(ref),
		detail: models.ItemDiagnostic{
			Name:   item.Name,
			URL:    truncateURL(ref),
			Status: result.Status,
		},
	}

	logger.Debug("item resolved",
		"item_id", item.ID,
		"strategy", result.Strategy,
		"status", result.Status)

	if !result.Matched() {
		return out
	}

	patch := buildPatch(item, result, s.now())
	summary := &models.UpdateSummary{
		Name:    item.Name,
		Article: item.Article,
		Price:   result.Match.Price,
	}
	out.summary = summary

	if err := s.store.UpdateItem(ctx, item, patch); err != nil {
		logger.Warn("failed to write item", "item_id", item.ID, "error", err)
		summary.Error = err.Error()
		out.detail.Status = models.StatusUpdateFailed
		return out
	}

	out.written = true
	out.detail.Status = models.StatusUpdated
	return out
}

// buildPatch derives the write-back for a matched item. The remote price
// replaces cost_per_sheet; cost_per_m2 is recomputed only when the item
// has stored dimensions; the remote URL is backfilled only when missing.
func buildPatch(item models.InventoryItem, result models.MatchResult, now time.Time) models.ItemPatch {
	match := result.Match
	patch := models.ItemPatch{
		RemotePrice:     match.Price,
		RemoteAvailable: true,
		RemoteUpdatedAt: now,
		Source:          result.Status,
	}
	if match.Available != nil {
		patch.RemoteAvailable = *match.Available
	}

	if match.Price != nil {
		price := *match.Price
		patch.CostPerSheet = &price
		if strings.TrimSpace(item.Dimensions) != "" {
			patch.CostPerM2 = measure.CostPerAreaFromSheet(price, item.Dimensions)
		}
	}

	if match.URL != "" && strings.TrimSpace(item.RemoteURL) == "" {
		u := match.URL
		patch.RemoteURL = &u
	}
	return patch
}

func assemble(runID string, listingCount int, outcomes []itemOutcome) *models.SyncResult {
	result := &models.SyncResult{
		OK:            true,
		RunID:         runID,
		ProductsCount: listingCount,
		Updates:       []models.UpdateSummary{},
		Diagnostics:   models.Diagnostics{Details: []models.ItemDiagnostic{}},
		Trail:         make([]models.ItemDiagnostic, 0, len(outcomes)),
	}

	noPrice := 0
	for _, out := range outcomes {
		if !out.done {
			continue
		}
		result.Trail = append(result.Trail, out.detail)
		if out.summary != nil {
			result.Updates = append(result.Updates, *out.summary)
		}
		if out.written {
			result.Updated++
		}
		if !out.linked {
			continue
		}
		result.Diagnostics.ItemsWithRemoteLink++
		result.Diagnostics.Details = append(result.Diagnostics.Details, out.detail)
		if out.detail.Status == models.StatusFetchOKNoPrice {
			noPrice++
		}
	}

	if noPrice > 0 {
		msg := fmt.Sprintf("The catalog renders prices with JavaScript, so %d product page(s) showed no price to a static fetch. "+
			"Updated from the listing or API: %d. Copy the price into cost per sheet or cost per m² manually to refresh those items.",
			noPrice, result.Updated)
		result.Diagnostics.Message = &msg
	}
	return result
}

// truncateURL shortens a reference URL for the diagnostics trail.
func truncateURL(u string) string {
	if u == "" {
		return ""
	}
	if utf8.RuneCountInString(u) > detailURLLength {
		u = string([]rune(u)[:detailURLLength])
	}
	return u + "…"
}
