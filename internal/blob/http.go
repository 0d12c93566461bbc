package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPBackend downloads pre-signed or public https references.
type HTTPBackend struct {
	client HTTPDoer
	scheme string
}

// NewHTTPBackend serves the https scheme. client defaults to http.DefaultClient;
// the router applies the deadline.
func NewHTTPBackend(client HTTPDoer) *HTTPBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBackend{client: client, scheme: "https"}
}

// NewInsecureHTTPBackend serves the plain http scheme. Local runs only.
func NewInsecureHTTPBackend(client HTTPDoer) *HTTPBackend {
	b := NewHTTPBackend(client)
	b.scheme = "http"
	return b
}

func (b *HTTPBackend) Scheme() string {
	return b.scheme
}

func (b *HTTPBackend) Open(ctx context.Context, ref *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.String(), nil)
	if err != nil {
		return nil, newFetchError(CategoryBadData, b.scheme, "build request", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}
	_ = resp.Body.Close()

	msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, newFetchError(CategoryNotFound, b.scheme, msg, nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newFetchError(CategoryAuth, b.scheme, msg, nil)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, newFetchError(CategoryOutage, b.scheme, msg, nil)
	default:
		return nil, newFetchError(CategoryBadData, b.scheme, msg, nil)
	}
}

var _ Backend = (*HTTPBackend)(nil)
