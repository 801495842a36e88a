package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-faktur/internal/resilience"
)

const defaultMaxAssetBytes = 5 << 20

// AssetFetcher retrieves optional image assets (logo, signature) referenced
// by a document. Implementations are best-effort; the renderer treats any
// error as an empty slot.
type AssetFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, imageType string, err error)
}

// HTTPAssets fetches assets over HTTP with a bounded timeout and size. The
// breaker keeps a dead asset host from stalling every render; while open,
// fetches fail fast and the renderer leaves the slot empty.
type HTTPAssets struct {
	Client   *http.Client
	MaxBytes int64
	Breaker  *resilience.Breaker
}

// NewHTTPAssets constructs an asset fetcher with an otel-instrumented client.
func NewHTTPAssets(timeout time.Duration) *HTTPAssets {
	return &HTTPAssets{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker: resilience.NewBreaker("document-assets", 10, 0.5, 30*time.Second),
	}
}

// Fetch downloads the asset and reports its gofpdf image type.
func (a *HTTPAssets) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxBytes := a.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxAssetBytes
	}

	if a.Breaker != nil && !a.Breaker.Allow() {
		return nil, "", resilience.ErrOpenCircuit
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		a.report(false)
		return nil, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		a.report(false)
		return nil, "", fmt.Errorf("asset fetch: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		a.report(false)
		return nil, "", err
	}
	a.report(true)
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("asset fetch: body exceeds %d bytes", maxBytes)
	}

	imageType, err := sniffImageType(data)
	if err != nil {
		return nil, "", err
	}
	return data, imageType, nil
}

func (a *HTTPAssets) report(success bool) {
	if a.Breaker != nil {
		a.Breaker.Report(success)
	}
}

func sniffImageType(data []byte) (string, error) {
	switch http.DetectContentType(data) {
	case "image/png":
		return "PNG", nil
	case "image/jpeg":
		return "JPG", nil
	case "image/gif":
		return "GIF", nil
	default:
		return "", fmt.Errorf("asset fetch: unsupported image type")
	}
}
