// MIT License
//
// Copyright (c) 2024 rescache
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package middleware

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rescache/rescache/pkg/cache"
	"github.com/rescache/rescache/pkg/provider"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaximumBodySize caps per-response buffering at 64 MiB.
	DefaultMaximumBodySize = 64 << 20
)

// DefaultValidity is the lifetime of cached responses that carry no
// freshness information of their own.
var DefaultValidity = 10 * time.Second

// Config holds the caching middleware configuration.
type Config struct {
	// MaximumBodySize is the per-response buffering cap in bytes.
	// Responses exceeding it are served but not cached.
	MaximumBodySize int64 `yaml:"maximum_body_size"`

	// UseCaseSensitivePaths keys request paths verbatim instead of
	// folding them to upper case.
	UseCaseSensitivePaths bool `yaml:"use_case_sensitive_paths"`

	// DefaultValidity overrides the default lifetime for responses
	// without freshness directives. A duration string, e.g. "10s".
	DefaultValidity string `yaml:"default_validity"`
}

// Keyer derives storage keys from requests. See cache.KeyProvider for the
// production implementation.
type Keyer interface {
	BaseKey(req *http.Request) string
	StorageVaryKey(req *http.Request, baseKey string, rules *cache.VaryRules) string
	LookupVaryKeys(req *http.Request, baseKey string, rules *cache.VaryRules) []string
}

// ResponseCache is the response caching middleware. It serves eligible
// requests from the storage provider and captures eligible upstream
// responses on the way out.
//
// The cache is shared and best-effort: concurrent misses under the same
// key race to populate it and the last write wins. There is deliberately
// no single-flight and no locking here.
type ResponseCache struct {
	// storage is the pluggable blob store holding the cached entries.
	storage provider.Provider

	// keys derives base and variant keys.
	keys Keyer

	// maximumBodySize is the per-response buffering cap.
	maximumBodySize int64

	// defaultValidity is the fallback entry lifetime.
	defaultValidity time.Duration

	// metrics holds the middleware counters.
	metrics *Metrics

	// currentTime holds the time source.
	currentTime func() time.Time

	// OnDiagnostic, if set, observes every emitted diagnostic tag.
	OnDiagnostic func(tag cache.Tag)
}

// New creates the caching middleware on top of the given storage provider.
func New(cfg Config, storage provider.Provider, reg prometheus.Registerer) *ResponseCache {
	maxBody := cfg.MaximumBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaximumBodySize
	}
	validity := DefaultValidity
	if cfg.DefaultValidity != "" {
		if d, err := time.ParseDuration(cfg.DefaultValidity); err == nil && d > 0 {
			validity = d
		}
	}
	return &ResponseCache{
		storage:         storage,
		keys:            cache.KeyProvider{CaseSensitivePaths: cfg.UseCaseSensitivePaths},
		maximumBodySize: maxBody,
		defaultValidity: validity,
		metrics:         NewMetrics(reg),
		currentTime:     time.Now,
	}
}

// Wrap installs the middleware in front of next.
func (m *ResponseCache) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.serve(w, r, next)
	})
}

// requestContext is the per-request state carried through the pipeline.
// It is owned by its request and never shared.
type requestContext struct {
	baseKey    string
	storageKey string

	varyRules      *cache.VaryRules
	cachedResponse *cache.CachedResponse
	feature        *Feature
	capture        *CaptureStream

	responseTime time.Time
	validFor     time.Duration

	shouldCache bool
	finalized   bool
}

func (m *ResponseCache) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	rc := &requestContext{responseTime: m.currentTime()}

	if ok, tag := cache.IsRequestCacheable(r); !ok {
		m.diag(tag, "")
		m.metrics.observe(outcomeBypass)
		next.ServeHTTP(w, r)
		return
	}

	rc.baseKey = m.keys.BaseKey(r)

	if m.tryServeFromCache(w, r, rc) {
		return
	}

	if cache.ContainsToken(r.Header.Values(cache.HeaderCacheControl), "only-if-cached") {
		m.diag(cache.GatewayTimeoutServed, rc.baseKey)
		m.metrics.observe(outcomeGatewayTimeout)
		w.WriteHeader(http.StatusGatewayTimeout)
		return
	}

	m.forward(w, r, rc, next)
}

// tryServeFromCache resolves the request to a cached response, via the
// vary indirection if present, and serves it if still fresh. Returns true
// if a response (200 or 304) was written.
func (m *ResponseCache) tryServeFromCache(w http.ResponseWriter, r *http.Request, rc *requestContext) bool {
	ctx := r.Context()

	entry := m.lookup(ctx, rc.baseKey)
	if entry != nil && entry.Kind == cache.KindVaryRules {
		rc.varyRules = entry.Vary
		entry = nil
		for _, key := range m.keys.LookupVaryKeys(r, rc.baseKey, rc.varyRules) {
			if e := m.lookup(ctx, key); e != nil && e.Kind == cache.KindResponse {
				entry = e
				break
			}
		}
	}
	if entry == nil || entry.Kind != cache.KindResponse {
		m.diag(cache.NoResponseServed, rc.baseKey)
		return false
	}

	res := entry.Response
	age := rc.responseTime.Sub(res.Created)

	fresh, tag := cache.IsEntryFresh(r.Header, res.Header, age, rc.responseTime)
	m.diag(tag, rc.baseKey)
	if !fresh {
		return false
	}

	if notModified, tag := cache.IsContentNotModified(r.Header, res.Header); notModified {
		m.diag(tag, rc.baseKey)
		m.diag(cache.NotModifiedServed, rc.baseKey)
		m.metrics.observe(outcomeNotModified)
		m.writeNotModified(w, res.Header)
		return true
	}

	header := w.Header()
	for k, vv := range res.Header {
		header[k] = vv
	}
	header.Set(cache.HeaderAge, formatAge(age))
	w.WriteHeader(res.StatusCode)
	if r.Method != http.MethodHead {
		if _, err := io.Copy(w, res.Body.Reader()); err != nil {
			// The client went away; the stored entry is untouched.
			log.Debug().Err(err).Str("key", rc.baseKey).Msg("Cached response playback truncated")
		}
	}
	m.diag(cache.CachedResponseServed, rc.baseKey)
	m.metrics.observe(outcomeHit)
	return true
}

// notModifiedHeaders is the header subset echoed on a 304.
var notModifiedHeaders = []string{
	cache.HeaderCacheControl,
	cache.HeaderContentLocation,
	cache.HeaderDate,
	cache.HeaderEtag,
	cache.HeaderExpires,
	cache.HeaderVary,
}

func (m *ResponseCache) writeNotModified(w http.ResponseWriter, cached http.Header) {
	header := w.Header()
	for _, name := range notModifiedHeaders {
		if vv := cached.Values(name); len(vv) > 0 {
			header[http.CanonicalHeaderKey(name)] = vv
		}
	}
	w.WriteHeader(http.StatusNotModified)
}

// forward sends the request upstream with the capture stream installed and
// finalizes headers and body on the way back.
func (m *ResponseCache) forward(w http.ResponseWriter, r *http.Request, rc *requestContext, next http.Handler) {
	m.metrics.observe(outcomeMiss)

	rc.feature = &Feature{}
	r = withFeature(r, rc.feature)

	cs := m.installCaptureStream(rc, w, func() { m.finalizeHeaders(r, rc) })
	next.ServeHTTP(cs, r)

	// The upstream handler may never have written; finalize now.
	m.finalizeHeaders(r, rc)
	m.finalizeBody(r, rc)
}

// installCaptureStream wires the capture stream in front of the response
// writer. Installing it twice on the same request is a programming error.
func (m *ResponseCache) installCaptureStream(rc *requestContext, w http.ResponseWriter, onStart func()) *CaptureStream {
	if rc.capture != nil {
		panic("rescache: capture stream installed twice")
	}
	rc.capture = NewCaptureStream(w, m.maximumBodySize, onStart)
	return rc.capture
}

// finalizeHeaders runs once, before the first body byte leaves the
// process: it stamps the Date header, decides cacheability, computes the
// entry lifetime, updates the vary rules and snapshots the response.
func (m *ResponseCache) finalizeHeaders(r *http.Request, rc *requestContext) {
	if rc.finalized {
		return
	}
	rc.finalized = true

	header := rc.capture.Header()
	if _, ok := header[cache.HeaderDate]; !ok {
		header.Set(cache.HeaderDate, cache.FormatDate(rc.responseTime))
	}

	statusCode := rc.capture.Status()
	ok, tag := cache.IsResponseCacheable(r, statusCode, header, rc.responseTime)
	rc.shouldCache = ok
	rc.validFor = m.responseValidFor(header, rc.responseTime)
	rc.storageKey = rc.baseKey
	if !ok {
		m.diag(tag, rc.baseKey)
		return
	}

	varyHeaders := normalizeVaryValues(cache.SplitCommaDelimited(header.Values(cache.HeaderVary)))
	var queryKeys []string
	if rc.feature != nil {
		queryKeys = normalizeVaryValues(rc.feature.VaryByQueryKeys())
	}
	if len(varyHeaders) > 0 || len(queryKeys) > 0 {
		if rc.varyRules == nil || !rc.varyRules.Equals(varyHeaders, queryKeys) {
			rc.varyRules = &cache.VaryRules{
				KeyPrefix: cache.MintVaryPrefix(varyHeaders, queryKeys),
				Headers:   varyHeaders,
				QueryKeys: queryKeys,
			}
		}
		// The rules are rewritten even when unchanged to refresh their TTL.
		m.diag(cache.VaryByRulesUpdated, rc.baseKey)
		if enc, err := cache.NewVaryRulesEntry(rc.varyRules).Encode(); err == nil {
			m.storage.Set(rc.baseKey, enc, rc.validFor)
		} else {
			log.Error().Err(err).Str("key", rc.baseKey).Msg("Failed to encode vary rules")
		}
		rc.storageKey = m.keys.StorageVaryKey(r, rc.baseKey, rc.varyRules)
	}

	// Snapshot status and headers, detached from the live response.
	snapshot := &cache.CachedResponse{
		Created:    rc.responseTime,
		StatusCode: statusCode,
		Header:     make(http.Header, len(header)),
	}
	for k, vv := range header {
		if k == cache.HeaderAge {
			continue
		}
		snapshot.Header[k] = append([]string(nil), vv...)
	}
	rc.cachedResponse = snapshot
}

// finalizeBody publishes the captured body to storage, unless caching was
// vetoed, buffering was abandoned, or the declared Content-Length does not
// match what the upstream actually wrote.
func (m *ResponseCache) finalizeBody(r *http.Request, rc *requestContext) {
	cs := rc.capture

	if !rc.shouldCache || rc.cachedResponse == nil {
		m.diag(cache.ResponseNotCached, rc.storageKey)
		return
	}
	if r.Context().Err() != nil || !cs.BufferingEnabled() {
		m.diag(cache.ResponseNotCached, rc.storageKey)
		return
	}
	if cl := rc.cachedResponse.Header.Get(cache.HeaderContentLength); cl != "" {
		if declared, err := strconv.ParseInt(cl, 10, 64); err == nil && declared != cs.Length() {
			m.diag(cache.ResponseContentLengthMismatchNotCached, rc.storageKey)
			return
		}
	}

	rc.cachedResponse.Body = cs.Body()
	enc, err := cache.NewResponseEntry(rc.cachedResponse).Encode()
	if err != nil {
		log.Error().Err(err).Str("key", rc.storageKey).Msg("Failed to encode cached response")
		return
	}
	m.storage.Set(rc.storageKey, enc, rc.validFor)
	m.diag(cache.ResponseCached, rc.storageKey)
	m.metrics.observeStored()
}

// responseValidFor derives the entry lifetime from the response headers:
// s-maxage, then max-age, then Expires, then the configured default.
func (m *ResponseCache) responseValidFor(header http.Header, responseTime time.Time) time.Duration {
	cc := header.Values(cache.HeaderCacheControl)
	if d, ok := cache.TryParseTimeSpan(cc, "s-maxage"); ok {
		return d
	}
	if d, ok := cache.TryParseTimeSpan(cc, "max-age"); ok {
		return d
	}
	if expires, ok := cache.TryParseDate(header.Get(cache.HeaderExpires)); ok {
		return expires.Sub(responseTime)
	}
	return m.defaultValidity
}

// lookup reads and decodes an entry. Storage and decode failures are
// treated as a miss.
func (m *ResponseCache) lookup(ctx context.Context, key string) *cache.Entry {
	raw := m.storage.Get(ctx, key)
	if raw == nil {
		return nil
	}
	entry, err := cache.DecodeEntry(raw)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to decode cache entry")
		return nil
	}
	return entry
}

func (m *ResponseCache) diag(tag cache.Tag, key string) {
	if tag == "" {
		return
	}
	log.Debug().Str("event", string(tag)).Str("key", key).Msg("Cache decision")
	if m.OnDiagnostic != nil {
		m.OnDiagnostic(tag)
	}
}

// formatAge renders an age as truncated integer seconds.
func formatAge(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	return strconv.FormatInt(int64(age/time.Second), 10)
}

// normalizeVaryValues trims, sorts, upper-cases and dedupes the given
// values for rule comparison and key derivation.
func normalizeVaryValues(values []string) []string {
	normalized := cache.OrderCasingNormalize(values)
	if len(normalized) <= 1 {
		return normalized
	}
	deduped := normalized[:1]
	for _, v := range normalized[1:] {
		if v != deduped[len(deduped)-1] {
			deduped = append(deduped, v)
		}
	}
	return deduped
}
