// Package matcher links an inventory item to its remote catalog product by
// trying, in order: listing URL, listing article, the JSON API and finally
// the product page itself.
package matcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/maltedev/ltb-sync/internal/models"
	"github.com/maltedev/ltb-sync/internal/parser"
	"github.com/maltedev/ltb-sync/internal/scraper"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*scraper.Page, error)
	FetchJSON(ctx context.Context, url string) (*scraper.Page, error)
}

// Renderer renders a page with client-side scripts executed.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

type Resolver struct {
	remote   scraper.Remote
	fetcher  Fetcher
	renderer Renderer
	logger   *slog.Logger
}

// NewResolver creates a resolver. renderer may be nil, in which case the
// page strategy only sees the static document.
func NewResolver(remote scraper.Remote, fetcher Fetcher, renderer Renderer, logger *slog.Logger) *Resolver {
	return &Resolver{
		remote:   remote,
		fetcher:  fetcher,
		renderer: renderer,
		logger:   logger.With("component", "matcher"),
	}
}

// Resolve runs the strategies for one item and stops at the first match.
// The returned status reflects the last strategy attempted.
func (r *Resolver) Resolve(ctx context.Context, item models.InventoryItem, listing []models.RemoteProductRecord) models.MatchResult {
	result := models.MatchResult{Item: item, Status: models.StatusNoLink}
	link := item.ReferenceURL()

	if rec, strategy, ok := matchListing(link, item.Article, listing); ok {
		result.Match = &models.Match{URL: rec.URL, Price: rec.Price}
		result.Strategy = strategy
		result.Status = models.StatusFromListing
		return result
	}

	if !r.remote.IsRemoteLink(link) {
		return result
	}

	if match, ok := r.probeAPI(ctx, link); ok {
		result.Match = match
		result.Strategy = models.StrategyAPI
		result.Status = models.StatusFromAPI
		return result
	}

	match, status := r.fetchPage(ctx, link)
	result.Status = status
	if match != nil {
		result.Match = match
		result.Strategy = models.StrategyPage
	}
	return result
}

// matchListing looks for the item in the listing, first by URL and then by
// article.
func matchListing(link, article string, listing []models.RemoteProductRecord) (models.RemoteProductRecord, models.Strategy, bool) {
	if link != "" {
		for _, rec := range listing {
			if urlMatches(link, rec.URL) {
				return rec, models.StrategyListingURL, true
			}
		}
	}

	article = strings.TrimSpace(article)
	if article != "" {
		for _, rec := range listing {
			if strings.TrimSpace(rec.Article) == article {
				return rec, models.StrategyListingArticle, true
			}
		}
	}

	return models.RemoteProductRecord{}, models.StrategyNone, false
}

// urlMatches reports whether the item link contains the record URL, with or
// without its query, or is itself a prefix of the record URL ending at the
// product id boundary.
func urlMatches(link, recordURL string) bool {
	if recordURL == "" {
		return false
	}
	if strings.Contains(link, recordURL) {
		return true
	}

	recordBase := stripQuery(recordURL)
	if recordBase != "" && strings.Contains(link, recordBase) {
		return true
	}

	linkBase := stripQuery(link)
	if linkBase == "" || !strings.HasPrefix(recordBase, linkBase) {
		return false
	}
	rest := recordBase[len(linkBase):]
	return rest == "" || strings.HasPrefix(rest, "-")
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

// fetchPage runs the page strategy. Static pages without a price are
// rendered when a renderer is configured.
func (r *Resolver) fetchPage(ctx context.Context, link string) (*models.Match, models.Status) {
	page, err := r.fetcher.Fetch(ctx, link)
	if err != nil {
		var statusErr *scraper.StatusError
		if errors.As(err, &statusErr) {
			r.logger.Debug("product page unavailable", "url", link, "status_code", statusErr.StatusCode)
			return nil, models.StatusFetchFailed
		}
		r.logger.Debug("product page unreachable", "url", link, "error", err)
		return nil, models.StatusFetchError
	}

	offer := parser.ExtractOffer(page.Text())
	if offer.Price == nil && r.renderer != nil {
		if rendered, err := r.renderer.Render(ctx, link); err != nil {
			r.logger.Warn("render failed", "url", link, "error", err)
		} else if renderedOffer := parser.ExtractOffer(rendered); renderedOffer.Price != nil {
			offer = renderedOffer
		}
	}

	if offer.Price == nil && !offer.Available {
		return nil, models.StatusFetchOKNoPrice
	}

	available := offer.Available
	return &models.Match{URL: link, Price: offer.Price, Available: &available}, models.StatusFromPage
}
