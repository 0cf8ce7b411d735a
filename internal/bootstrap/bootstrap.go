// Package bootstrap fills a new inventory item from a single remote product
// page.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maltedev/ltb-sync/internal/models"
	"github.com/maltedev/ltb-sync/internal/parser"
	"github.com/maltedev/ltb-sync/internal/scraper"
)

var (
	ErrMissingURL  = errors.New("product link is required")
	ErrForeignHost = errors.New("link does not point at the remote catalog")
)

type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*scraper.Page, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) string
}

type PhotoCopier interface {
	Copy(ctx context.Context, photoURL, tabID string) (string, error)
}

// Request names the product page and the category the new item goes into.
type Request struct {
	URL   string `json:"url"`
	TabID string `json:"tab_id"`
}

// Product is the extraction result as returned to clients. Absent values
// are null.
type Product struct {
	Name         *string           `json:"name"`
	Article      *string           `json:"article"`
	Dimensions   *string           `json:"dimensions"`
	CostPerSheet *float64          `json:"cost_per_sheet"`
	CostPerM2    *float64          `json:"cost_per_m2"`
	CostPerPiece *float64          `json:"cost_per_piece"`
	Country      *string           `json:"country"`
	Link         string            `json:"link"`
	PhotoURL     *string           `json:"photo_url"`
	Extra        map[string]string `json:"extra"`
}

func NewProduct(d *models.ExtractedProductData) Product {
	p := Product{
		Name:         optional(d.Name),
		Article:      optional(d.Article),
		Dimensions:   optional(d.Dimensions),
		CostPerSheet: d.CostPerSheet,
		CostPerM2:    d.CostPerM2,
		CostPerPiece: d.CostPerPiece,
		Country:      optional(d.Country),
		Link:         d.URL,
		PhotoURL:     optional(d.PhotoURL),
	}
	if len(d.Extra) > 0 {
		p.Extra = d.Extra
	}
	return p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type Service struct {
	remote     scraper.Remote
	fetcher    PageFetcher
	translator Translator
	photos     PhotoCopier
	logger     *slog.Logger
}

// NewService builds the flow. translator and photos may be nil; the
// corresponding step is then skipped.
func NewService(remote scraper.Remote, fetcher PageFetcher, translator Translator, photos PhotoCopier, logger *slog.Logger) *Service {
	return &Service{
		remote:     remote,
		fetcher:    fetcher,
		translator: translator,
		photos:     photos,
		logger:     logger.With("component", "bootstrap"),
	}
}

// Extract fetches the product page and returns its structured data. Errors
// are ErrMissingURL, ErrForeignHost, a *scraper.StatusError or a wrapped
// scraper.ErrTransport.
func (s *Service) Extract(ctx context.Context, req Request) (*models.ExtractedProductData, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, ErrMissingURL
	}
	if !s.remote.IsRemoteLink(url) {
		return nil, fmt.Errorf("%w: %s", ErrForeignHost, url)
	}

	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	data := parser.ExtractProduct(page.Text(), url)

	if s.translator != nil && data.Name != "" {
		data.Name = s.translator.Translate(ctx, data.Name)
	}

	if s.photos != nil && data.PhotoURL != "" && req.TabID != "" {
		stored, err := s.photos.Copy(ctx, data.PhotoURL, req.TabID)
		if err != nil {
			s.logger.Warn("keeping remote photo", "url", data.PhotoURL, "error", err)
		} else {
			data.PhotoURL = stored
		}
	}

	s.logger.Info("product extracted",
		"url", url,
		"article", data.Article,
		"sheet_priced", data.CostPerSheet != nil)
	return data, nil
}
