package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mapscene/animator/pkg/core"
)

// maxDescriptorSize caps the body read for one asset descriptor.
const maxDescriptorSize = 1 << 20

// HTTPLoader fetches JSON asset descriptors from the asset server.
type HTTPLoader struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPLoader creates a loader for baseURL. Relative asset URLs are
// resolved against it.
func NewHTTPLoader(baseURL, apiKey string, timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPLoader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (l *HTTPLoader) resolve(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return l.baseURL + "/" + strings.TrimLeft(url, "/")
}

// Healthcheck checks if the asset server is reachable.
func (l *HTTPLoader) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Load fetches and validates the descriptor at url.
func (l *HTTPLoader) Load(ctx context.Context, url string) (*core.Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.resolve(url), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAssetLoad, url, err)
	}
	req.Header.Set("Accept", "application/json")
	if l.apiKey != "" {
		req.Header.Set("X-API-Key", l.apiKey)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAssetLoad, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrAssetLoad, url, resp.StatusCode)
	}

	var asset core.Asset
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDescriptorSize)).Decode(&asset); err != nil {
		return nil, fmt.Errorf("%w: %s: decoding: %w", ErrAssetLoad, url, err)
	}
	if err := Normalize(&asset, url); err != nil {
		return nil, err
	}
	return &asset, nil
}
