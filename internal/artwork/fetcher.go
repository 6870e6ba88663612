package artwork

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dickeyy/trackpaper/internal/config"
)

// maxArtBytes caps a cover download. Anything larger than this is not
// album art, and the panel thumbnail needs a tiny fraction of it anyway.
const maxArtBytes = 10 * 1024 * 1024

// HTTPFetcher downloads cover art over HTTP/HTTPS
type HTTPFetcher struct {
	logger *zap.Logger
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with the configured per-request timeout
func NewHTTPFetcher(logger *zap.Logger, cfg config.ArtworkConfig) *HTTPFetcher {
	return &HTTPFetcher{
		logger: logger,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
	}
}

// Fetch downloads the bytes behind an artwork URL. The response must carry
// an image/* content type; bodies are read at most to maxArtBytes.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build artwork request: %w", err)
	}
	req.Header.Set("User-Agent", "trackpaperd/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artwork request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork server answered %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("artwork content type %q is not an image", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtBytes))
	if err != nil {
		return nil, fmt.Errorf("read artwork body: %w", err)
	}

	f.logger.Debug("Artwork fetched", zap.Int("bytes", len(data)), zap.String("url", url))
	return data, nil
}
