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

package cache

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// IsRequestCacheable checks if a request may be served from cache.
// Only GET and HEAD requests without authorization and without a
// no-cache directive are eligible. The returned tag names the reason
// for a negative decision.
// https://httpwg.org/specs/rfc7234.html#cache-request-directive
func IsRequestCacheable(req *http.Request) (bool, Tag) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return false, RequestMethodNotCacheable
	}

	// Requests with authorization headers bypass the cache.
	// https://httpwg.org/specs/rfc7234.html#caching.authenticated.responses
	if req.Header.Get(HeaderAuthorization) != "" {
		return false, RequestWithAuthorizationNotCacheable
	}

	if cc := req.Header.Values(HeaderCacheControl); len(cc) > 0 {
		if ContainsToken(cc, "no-cache") {
			return false, RequestWithNoCacheNotCacheable
		}
	} else if ContainsToken(req.Header.Values(HeaderPragma), "no-cache") {
		// According to https://httpwg.org/specs/rfc7234.html#header.pragma,
		// "Pragma: no-cache" only applies when Cache-Control is missing.
		return false, RequestWithPragmaNoCacheNotCacheable
	}

	return true, ""
}

// IsResponseCacheable checks if a response may be stored in a shared
// cache. The response must be an explicitly public 200 without no-store,
// no-cache, private, Set-Cookie or "Vary: *", and must not already be
// expired at responseTime.
func IsResponseCacheable(req *http.Request, statusCode int, header http.Header, responseTime time.Time) (bool, Tag) {
	resCacheControl := header.Values(HeaderCacheControl)

	if !ContainsToken(resCacheControl, "public") {
		return false, ResponseWithoutPublicNotCacheable
	}
	if ContainsToken(req.Header.Values(HeaderCacheControl), "no-store") ||
		ContainsToken(resCacheControl, "no-store") {
		return false, ResponseWithNoStoreNotCacheable
	}
	if ContainsToken(resCacheControl, "no-cache") {
		return false, ResponseWithNoCacheNotCacheable
	}
	if header.Get(HeaderSetCookie) != "" {
		return false, ResponseWithSetCookieNotCacheable
	}

	// "Vary: *" should never be cached:
	// https://tools.ietf.org/html/rfc7231#section-7.1.4
	if strings.TrimSpace(header.Get(HeaderVary)) == "*" {
		return false, ResponseWithVaryStarNotCacheable
	}
	if ContainsToken(resCacheControl, "private") {
		return false, ResponseWithPrivateNotCacheable
	}
	if statusCode != http.StatusOK {
		return false, ResponseWithUnsuccessfulStatusCode
	}

	// The response must still be fresh at the time it was produced.
	sharedMaxAge, hasSharedMaxAge := TryParseTimeSpan(resCacheControl, "s-maxage")
	maxAge, hasMaxAge := TryParseTimeSpan(resCacheControl, "max-age")
	expires, hasExpires := TryParseDate(header.Get(HeaderExpires))

	date, hasDate := TryParseDate(header.Get(HeaderDate))
	if !hasDate {
		if !hasSharedMaxAge && !hasMaxAge && hasExpires && !responseTime.Before(expires) {
			return false, ExpirationExpiresExceeded
		}
		return true, ""
	}

	age := responseTime.Sub(date)
	switch {
	case hasSharedMaxAge:
		if age >= sharedMaxAge {
			return false, ExpirationSharedMaxAgeExceeded
		}
	case hasMaxAge:
		if age >= maxAge {
			return false, ExpirationMaxAgeExceeded
		}
	case hasExpires:
		if !responseTime.Before(expires) {
			return false, ExpirationExpiresExceeded
		}
	}

	return true, ""
}

// IsEntryFresh checks if a cached entry of the given age may be served
// without revalidation, honoring the request's min-fresh, max-age and
// max-stale directives and the cached response's s-maxage, max-age,
// must-revalidate and Expires constraints. s-maxage strictly overrides
// max-age for the shared cache path.
func IsEntryFresh(reqHeader, cachedHeader http.Header, age time.Duration, responseTime time.Time) (bool, Tag) {
	reqCacheControl := reqHeader.Values(HeaderCacheControl)
	cachedCacheControl := cachedHeader.Values(HeaderCacheControl)

	// min-fresh inflates the effective age before all other checks.
	if minFresh, ok := TryParseTimeSpan(reqCacheControl, "min-fresh"); ok {
		age += minFresh
		log.Debug().Dur("minFresh", minFresh).Dur("age", age).Msg("Added min-fresh to entry age")
	}

	sharedMaxAge, hasSharedMaxAge := TryParseTimeSpan(cachedCacheControl, "s-maxage")
	if hasSharedMaxAge {
		// s-maxage carries an implicit must-revalidate.
		if age >= sharedMaxAge {
			return false, ExpirationSharedMaxAgeExceeded
		}
		return true, ""
	}

	cachedMaxAge, hasCachedMaxAge := TryParseTimeSpan(cachedCacheControl, "max-age")
	requestMaxAge, hasRequestMaxAge := TryParseTimeSpan(reqCacheControl, "max-age")

	if hasCachedMaxAge || hasRequestMaxAge {
		lowestMaxAge := cachedMaxAge
		switch {
		case !hasCachedMaxAge:
			lowestMaxAge = requestMaxAge
		case hasRequestMaxAge && requestMaxAge < cachedMaxAge:
			lowestMaxAge = requestMaxAge
		}
		if age >= lowestMaxAge {
			if ContainsToken(cachedCacheControl, "must-revalidate") {
				return false, ExpirationMustRevalidate
			}
			if maxStale, ok := TryParseTimeSpan(reqCacheControl, "max-stale"); ok && age-lowestMaxAge < maxStale {
				// The client accepts the response stale.
				return true, ExpirationMaxStaleSatisfied
			}
			return false, ExpirationMaxAgeExceeded
		}
		return true, ""
	}

	// Neither side specifies a max-age; fall back to Expires.
	if expires, ok := TryParseDate(cachedHeader.Get(HeaderExpires)); ok && !responseTime.Before(expires) {
		return false, ExpirationExpiresExceeded
	}

	return true, ""
}

// IsContentNotModified evaluates the request preconditions against the
// cached response headers, deciding whether a 304 can be served in place
// of the cached content.
//
// If-None-Match takes precedence: a present but unmatched If-None-Match
// does not fall through to If-Unmodified-Since. Entity tags are compared
// with the weak comparison of RFC 7232: the weakness flag is ignored, the
// opaque values are compared verbatim.
func IsContentNotModified(reqHeader, cachedHeader http.Header) (bool, Tag) {
	ifNoneMatch := reqHeader.Values(HeaderIfNoneMatch)
	if len(ifNoneMatch) > 0 {
		if len(ifNoneMatch) == 1 && strings.TrimSpace(ifNoneMatch[0]) == "*" {
			return true, NotModifiedIfNoneMatchStar
		}
		etag := cachedHeader.Get(HeaderEtag)
		if etag == "" {
			return false, ""
		}
		for _, tag := range SplitCommaDelimited(ifNoneMatch) {
			if weakETagsEqual(tag, etag) {
				return true, NotModifiedIfNoneMatchMatched
			}
		}
		return false, ""
	}

	if since := reqHeader.Get(HeaderIfUnmodifiedSince); since != "" {
		threshold, ok := TryParseDate(since)
		if !ok {
			return false, ""
		}
		// The resource time is Last-Modified, or Date if missing.
		resourceTime, ok := TryParseDate(cachedHeader.Get(HeaderLastModified))
		if !ok {
			resourceTime, ok = TryParseDate(cachedHeader.Get(HeaderDate))
		}
		if ok && !resourceTime.After(threshold) {
			return true, NotModifiedIfUnmodifiedSinceSatisfied
		}
	}

	return false, ""
}

// weakETagsEqual compares two entity tags ignoring the weakness flag.
func weakETagsEqual(a, b string) bool {
	return strings.TrimPrefix(a, "W/") == strings.TrimPrefix(b, "W/")
}
