package photos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/ltb-sync/internal/scraper"
)

var ErrNoDestination = errors.New("no photo destination")

type Downloader interface {
	Download(ctx context.Context, url string) (*scraper.Page, error)
}

// Mirror downloads a remote photo, optimises it and stores it under the
// destination category.
type Mirror struct {
	downloader Downloader
	uploader   Uploader
	now        func() time.Time
	logger     *slog.Logger
}

func NewMirror(downloader Downloader, uploader Uploader, logger *slog.Logger) *Mirror {
	return &Mirror{
		downloader: downloader,
		uploader:   uploader,
		now:        time.Now,
		logger:     logger.With("component", "photos"),
	}
}

// Copy returns the stored URL of the photo at photoURL. Any error means the
// caller should keep the remote URL.
func (m *Mirror) Copy(ctx context.Context, photoURL, tabID string) (string, error) {
	if m == nil || m.uploader == nil || tabID == "" {
		return "", ErrNoDestination
	}

	page, err := m.downloader.Download(ctx, photoURL)
	if err != nil {
		return "", fmt.Errorf("failed to download photo: %w", err)
	}

	data, contentType, ext := page.Body, page.ContentType, rawExtension(photoURL, page.ContentType)
	if optimized, err := Optimize(page.Body); err == nil {
		data, contentType, ext = optimized, "image/jpeg", "jpg"
	} else {
		m.logger.Debug("uploading photo unoptimised", "url", photoURL, "error", err)
	}
	if contentType == "" {
		contentType = "image/" + ext
	}

	key := fmt.Sprintf("%s/ltb-%d.%s", tabID, m.now().UnixMilli(), ext)
	stored, err := m.uploader.Upload(ctx, key, contentType, data)
	if err != nil {
		return "", err
	}

	m.logger.Info("photo stored", "key", key, "bytes", len(data))
	return stored, nil
}

// rawExtension picks the file extension for bytes uploaded as-is.
func rawExtension(url, contentType string) string {
	switch {
	case strings.Contains(url, ".webp"):
		return "webp"
	case strings.Contains(contentType, "png"):
		return "png"
	default:
		return "jpg"
	}
}
