package middleware

import (
	"context"
	"net/http"
	"sync"
)

// Feature is the per-request caching feature handed to downstream
// handlers. Handlers use it to select the query keys a response varies
// by; the middleware reads it when the response headers are finalized.
type Feature struct {
	mu              sync.Mutex
	varyByQueryKeys []string
}

// SetVaryByQueryKeys selects the query string keys the response varies
// by. A single "*" selects all query keys.
func (f *Feature) SetVaryByQueryKeys(keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.varyByQueryKeys = append([]string(nil), keys...)
}

// VaryByQueryKeys returns the selected query keys.
func (f *Feature) VaryByQueryKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.varyByQueryKeys
}

type featureContextKey struct{}

// FeatureFromContext returns the caching feature of the current request,
// or nil if the request does not pass through the caching middleware.
func FeatureFromContext(ctx context.Context) *Feature {
	f, _ := ctx.Value(featureContextKey{}).(*Feature)
	return f
}

// FeatureFromRequest returns the caching feature of the given request.
func FeatureFromRequest(r *http.Request) *Feature {
	return FeatureFromContext(r.Context())
}

func withFeature(r *http.Request, f *Feature) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), featureContextKey{}, f))
}
