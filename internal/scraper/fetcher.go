package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maltedev/ltb-sync/internal/ratelimit"
)

// Page is a successfully fetched remote document.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

func (p *Page) Text() string {
	return string(p.Body)
}

// IsJSON reports whether the server declared a JSON content type.
func (p *Page) IsJSON() bool {
	return strings.Contains(strings.ToLower(p.ContentType), "json")
}

type FetcherOptions struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	Limiter        ratelimit.RateLimiter
}

// Fetcher performs single GET requests against the remote catalog with a
// fixed browser-like header profile. It never retries.
type Fetcher struct {
	client  *resty.Client
	limiter ratelimit.RateLimiter
	logger  *slog.Logger
}

func NewFetcher(opts FetcherOptions, logger *slog.Logger) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = DefaultAcceptLanguage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Chain(nil)
	}

	logger = logger.With("component", "fetcher")
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetLogger(restyLogger{logger}).
		SetHeaders(map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept-Language": opts.AcceptLanguage,
			"Accept":          acceptPage,
		})

	return &Fetcher{
		client:  client,
		limiter: opts.Limiter,
		logger:  logger,
	}
}

// Fetch GETs an HTML page.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	return f.get(ctx, url, acceptPage)
}

// FetchJSON GETs a URL asking for JSON. The caller checks IsJSON.
func (f *Fetcher) FetchJSON(ctx context.Context, url string) (*Page, error) {
	return f.get(ctx, url, acceptJSON)
}

func (f *Fetcher) get(ctx context.Context, url, accept string) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	start := time.Now()
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		Get(url)
	if err != nil {
		f.logger.Debug("request failed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	f.logger.Debug("fetched",
		"url", url,
		"status", resp.StatusCode(),
		"bytes", len(resp.Body()),
		"duration", time.Since(start))

	if !resp.IsSuccess() {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode()}
	}

	return &Page{
		URL:         url,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}

// Download fetches raw bytes, e.g. a product image.
func (f *Fetcher) Download(ctx context.Context, url string) (*Page, error) {
	return f.get(ctx, url, "*/*")
}

type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
