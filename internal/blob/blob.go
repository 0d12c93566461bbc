// Package blob downloads the opaque content behind indirect item references.
// References are URLs; the scheme selects the backend (https, gs, s3).
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"consentbroker/pkg/platform/circuit"
)

const (
	defaultTimeout = 30 * time.Second
	// DefaultMaxSize caps a single download.
	DefaultMaxSize int64 = 64 << 20
)

// Backend downloads objects for one URL scheme.
type Backend interface {
	Scheme() string
	Open(ctx context.Context, ref *url.URL) (io.ReadCloser, error)
}

// Router dispatches references to backends by scheme. Each backend sits
// behind its own circuit breaker.
type Router struct {
	backends    map[string]Backend
	breakers    map[string]*circuit.Breaker
	timeout     time.Duration
	maxSize     int64
	logger      *slog.Logger
	breakerOpts []circuit.Option
}

type Option func(*Router)

func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithMaxSize(n int64) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithBreakerOptions configures every per-scheme breaker.
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(r *Router) {
		r.breakerOpts = append(r.breakerOpts, opts...)
	}
}

func NewRouter(backends []Backend, opts ...Option) *Router {
	r := &Router{
		backends: make(map[string]Backend, len(backends)),
		breakers: make(map[string]*circuit.Breaker, len(backends)),
		timeout:  defaultTimeout,
		maxSize:  DefaultMaxSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	stateChange := circuit.WithStateChange(func(name string, from, to circuit.State) {
		r.logger.Warn("blob circuit state changed", "scheme", name, "from", from.String(), "to", to.String())
	})
	for _, b := range backends {
		r.backends[b.Scheme()] = b
		r.breakers[b.Scheme()] = circuit.New(b.Scheme(), append([]circuit.Option{stateChange}, r.breakerOpts...)...)
	}
	return r
}

// Fetch downloads the whole object behind ref.
func (r *Router) Fetch(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" {
		return nil, newFetchError(CategoryBadData, "unknown", "unparseable reference", err)
	}
	backend, ok := r.backends[u.Scheme]
	if !ok {
		return nil, newFetchError(CategoryBadData, u.Scheme, "no backend for scheme", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var content []byte
	err = r.breakers[u.Scheme].Execute(func() error {
		var ferr error
		content, ferr = r.download(ctx, backend, u)
		return ferr
	}, countsAsHealthy)
	if errors.Is(err, circuit.ErrOpen) {
		return nil, newFetchError(CategoryOutage, u.Scheme, "backend circuit open", err)
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (r *Router) download(ctx context.Context, backend Backend, u *url.URL) ([]byte, error) {
	body, err := backend.Open(ctx, u)
	if err != nil {
		return nil, classifyContext(ctx, u.Scheme, err)
	}
	defer body.Close()

	content, err := io.ReadAll(io.LimitReader(body, r.maxSize+1))
	if err != nil {
		return nil, classifyContext(ctx, u.Scheme, newFetchError(CategoryOutage, u.Scheme, "read object", err))
	}
	if int64(len(content)) > r.maxSize {
		return nil, newFetchError(CategoryTooLarge, u.Scheme, fmt.Sprintf("object exceeds %d bytes", r.maxSize), nil)
	}
	return content, nil
}

// classifyContext turns errors caused by the fetch deadline into timeouts.
func classifyContext(ctx context.Context, scheme string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newFetchError(CategoryTimeout, scheme, "fetch timed out", err)
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return newFetchError(CategoryOutage, scheme, "fetch failed", err)
}

// BreakerState exposes a scheme's breaker state for health reporting.
func (r *Router) BreakerState(scheme string) (circuit.State, bool) {
	b, ok := r.breakers[scheme]
	if !ok {
		return circuit.StateClosed, false
	}
	return b.State(), true
}
