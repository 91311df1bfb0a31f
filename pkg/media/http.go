package media

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// HTTPGetter fetches small remote assets such as thumbnails.
type HTTPGetter struct {
	client   *resty.Client
	maxBytes int
}

func NewHTTPGetter(timeout time.Duration, maxBytes int) *HTTPGetter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetHeader("User-Agent", browserUserAgent)

	return &HTTPGetter{client: client, maxBytes: maxBytes}
}

// Get returns the body of url and its content type.
func (g *HTTPGetter) Get(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := g.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > g.maxBytes {
		return nil, "", fmt.Errorf("fetch %s: body exceeds %d bytes", url, g.maxBytes)
	}

	return body, resp.Header().Get("Content-Type"), nil
}
