// Package translate turns Georgian product names into Russian through a
// MyMemory-compatible HTTP service.
package translate

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultURL      = "https://api.mymemory.translated.net/get"
	DefaultLangPair = "ka|ru"

	// maxQueryRunes is the longest text sent to the service.
	maxQueryRunes = 2000
)

var georgian = regexp.MustCompile(`[\x{10A0}-\x{10FF}]`)

// IsGeorgian reports whether text contains Georgian script.
func IsGeorgian(text string) bool {
	return georgian.MatchString(text)
}

type Config struct {
	URL      string
	LangPair string
	Timeout  time.Duration
}

type Client struct {
	client   *resty.Client
	url      string
	langPair string
	logger   *slog.Logger
}

type response struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.LangPair == "" {
		cfg.LangPair = DefaultLangPair
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		client:   resty.New().SetTimeout(cfg.Timeout).SetRetryCount(0),
		url:      cfg.URL,
		langPair: cfg.LangPair,
		logger:   logger.With("component", "translate"),
	}
}

// Translate returns the translation of text, or text itself when it has no
// Georgian script or the service fails in any way.
func (c *Client) Translate(ctx context.Context, text string) string {
	if text == "" || !IsGeorgian(text) {
		return text
	}

	var out response
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        truncate(text, maxQueryRunes),
			"langpair": c.langPair,
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Get(c.url)
	if err != nil {
		c.logger.Warn("translation request failed", "error", err)
		return text
	}
	if !resp.IsSuccess() {
		c.logger.Warn("translation service returned error", "status", resp.StatusCode())
		return text
	}

	translated := out.ResponseData.TranslatedText
	if translated == "" || translated == text {
		return text
	}
	return translated
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
