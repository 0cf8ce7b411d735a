package scraper

import (
	"errors"
	"fmt"
)

var (
	ErrTransport  = errors.New("remote unreachable")
	ErrInvalidURL = errors.New("invalid remote URL")
)

// StatusError is returned when the remote answered with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Default header profile: a desktop Chrome on Windows, Georgian first.
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultAcceptLanguage = "ka,en;q=0.9"
	acceptPage            = "text/html,application/json"
	acceptJSON            = "application/json"
)
