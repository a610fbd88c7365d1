package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func currentTime() time.Time {
	return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func TestIsRequestCacheable(t *testing.T) {
	cases := []struct {
		name    string
		method  string
		headers http.Header
		ok      bool
		tag     Tag
	}{
		{"GET", http.MethodGet, nil, true, ""},
		{"HEAD", http.MethodHead, nil, true, ""},
		{"POST", http.MethodPost, nil, false, RequestMethodNotCacheable},
		{"PUT", http.MethodPut, nil, false, RequestMethodNotCacheable},
		{
			"Authorization bypasses the cache",
			http.MethodGet,
			http.Header{"Authorization": {"Bearer token"}},
			false, RequestWithAuthorizationNotCacheable,
		},
		{
			"Cache-Control no-cache",
			http.MethodGet,
			http.Header{"Cache-Control": {"no-cache"}},
			false, RequestWithNoCacheNotCacheable,
		},
		{
			"Pragma no-cache without Cache-Control",
			http.MethodGet,
			http.Header{"Pragma": {"no-cache"}},
			false, RequestWithPragmaNoCacheNotCacheable,
		},
		{
			"Pragma ignored when Cache-Control present",
			http.MethodGet,
			http.Header{"Cache-Control": {"max-age=10"}, "Pragma": {"no-cache"}},
			true, "",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(c.method, "/", nil)
			for k, vv := range c.headers {
				req.Header[k] = vv
			}
			ok, tag := IsRequestCacheable(req)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.tag, tag)
		})
	}
}

func TestIsResponseCacheable(t *testing.T) {
	cases := []struct {
		name       string
		reqHeaders http.Header
		status     int
		headers    http.Header
		ok         bool
		tag        Tag
	}{
		{
			"Public 200",
			nil, http.StatusOK,
			http.Header{"Cache-Control": {"public, max-age=60"}, "Date": {FormatDate(currentTime())}},
			true, "",
		},
		{
			"Missing public",
			nil, http.StatusOK,
			http.Header{"Cache-Control": {"max-age=60"}},
			false, ResponseWithoutPublicNotCacheable,
		},
		{
			"Response no-store",
			nil, http.StatusOK,
			http.Header{"Cache-Control": {"public, no-store"}},
			false, ResponseWithNoStoreNotCacheable,
		},
		{
			"Request no-store",
			http.Header{"Cache-Control": {"no-store"}}, http.StatusOK,
			http.Header{"Cache-Control": {"public, max-age=60"}},
			false, ResponseWithNoStoreNotCacheable,
		},
		{
			"Response no-cache",
			nil, http.StatusOK,
			http.Header{"Cache-Control": {"public, no-cache"}},
			false, ResponseWithNoCacheNotCacheable,
		},
		{
			"Set-Cookie",
			nil, http.StatusOK,
			http.Header{"Cache-Control": {"public"}, "Set-Cookie": {"id=1"}},
			false, ResponseWithSetCookieNotCacheable,
		},
		{
			"Vary star",
			nil, http.StatusOK,
			http.Header{"Cache-Control": {"public"}, "Vary": {" * "}},
			false, ResponseWithVaryStarNotCacheable,
		},
		{
			"Private",
			nil, http.StatusOK,
			http.Header{"Cache-Control": {"public, private"}},
			false, ResponseWithPrivateNotCacheable,
		},
		{
			"Non-200 status",
			nil, http.StatusNotFound,
			http.Header{"Cache-Control": {"public"}},
			false, ResponseWithUnsuccessfulStatusCode,
		},
		{
			"No freshness info at all",
			nil, http.StatusOK,
			http.Header{"Cache-Control": {"public"}, "Date": {FormatDate(currentTime())}},
			true, "",
		},
		{
			"Already expired by max-age",
			nil, http.StatusOK,
			http.Header{
				"Cache-Control": {"public, max-age=10"},
				"Date":          {FormatDate(currentTime().Add(-11 * time.Second))},
			},
			false, ExpirationMaxAgeExceeded,
		},
		{
			"s-maxage preferred over max-age",
			nil, http.StatusOK,
			http.Header{
				"Cache-Control": {"public, s-maxage=5, max-age=100"},
				"Date":          {FormatDate(currentTime().Add(-10 * time.Second))},
			},
			false, ExpirationSharedMaxAgeExceeded,
		},
		{
			"Expired Expires without max-age",
			nil, http.StatusOK,
			http.Header{
				"Cache-Control": {"public"},
				"Date":          {FormatDate(currentTime().Add(-time.Minute))},
				"Expires":       {FormatDate(currentTime().Add(-time.Second))},
			},
			false, ExpirationExpiresExceeded,
		},
		{
			"Expires ignored when max-age present",
			nil, http.StatusOK,
			http.Header{
				"Cache-Control": {"public, max-age=3600"},
				"Date":          {FormatDate(currentTime())},
				"Expires":       {FormatDate(currentTime().Add(-time.Hour))},
			},
			true, "",
		},
		{
			"Expired Expires without Date",
			nil, http.StatusOK,
			http.Header{
				"Cache-Control": {"public"},
				"Expires":       {FormatDate(currentTime().Add(-time.Second))},
			},
			false, ExpirationExpiresExceeded,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, vv := range c.reqHeaders {
				req.Header[k] = vv
			}
			ok, tag := IsResponseCacheable(req, c.status, c.headers, currentTime())
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.tag, tag)
		})
	}
}

func TestIsEntryFresh(t *testing.T) {
	cases := []struct {
		name      string
		reqCC     string
		cachedCC  string
		expires   string
		age       time.Duration
		fresh     bool
		tag       Tag
	}{
		{
			"Fresh under max-age",
			"", "public, max-age=60", "", seconds(30), true, "",
		},
		{
			"Stale over max-age",
			"", "public, max-age=60", "", seconds(61), false, ExpirationMaxAgeExceeded,
		},
		{
			"Exactly at max-age is stale",
			"", "public, max-age=60", "", seconds(60), false, ExpirationMaxAgeExceeded,
		},
		{
			"s-maxage overrides larger max-age",
			"", "public, s-maxage=10, max-age=100", "", seconds(11), false, ExpirationSharedMaxAgeExceeded,
		},
		{
			"s-maxage ignores max-stale",
			"max-stale=1000", "public, s-maxage=10", "", seconds(11), false, ExpirationSharedMaxAgeExceeded,
		},
		{
			"Request max-age lowers the limit",
			"max-age=10", "public, max-age=100", "", seconds(11), false, ExpirationMaxAgeExceeded,
		},
		{
			"Request max-age alone",
			"max-age=10", "public", "", seconds(11), false, ExpirationMaxAgeExceeded,
		},
		{
			"min-fresh inflates the age",
			"min-fresh=30", "public, max-age=60", "", seconds(31), false, ExpirationMaxAgeExceeded,
		},
		{
			"min-fresh satisfied",
			"min-fresh=30", "public, max-age=60", "", seconds(29), true, "",
		},
		{
			"max-stale accepts a stale entry",
			"max-stale=30", "public, max-age=60", "", seconds(80), true, ExpirationMaxStaleSatisfied,
		},
		{
			"max-stale exceeded",
			"max-stale=10", "public, max-age=60", "", seconds(80), false, ExpirationMaxAgeExceeded,
		},
		{
			"must-revalidate beats max-stale",
			"max-stale=1000", "public, max-age=60, must-revalidate", "", seconds(61), false, ExpirationMustRevalidate,
		},
		{
			"Expires fallback stale",
			"", "public", FormatDate(currentTime().Add(-time.Second)), 0, false, ExpirationExpiresExceeded,
		},
		{
			"Expires fallback fresh",
			"", "public", FormatDate(currentTime().Add(time.Hour)), 0, true, "",
		},
		{
			"max-age present ignores Expires",
			"", "public, max-age=60", FormatDate(currentTime().Add(-time.Hour)), seconds(30), true, "",
		},
		{
			"No freshness info stays fresh",
			"", "public", "", seconds(100000), true, "",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			reqHeader := http.Header{}
			if c.reqCC != "" {
				reqHeader.Set(HeaderCacheControl, c.reqCC)
			}
			cachedHeader := http.Header{}
			if c.cachedCC != "" {
				cachedHeader.Set(HeaderCacheControl, c.cachedCC)
			}
			if c.expires != "" {
				cachedHeader.Set(HeaderExpires, c.expires)
			}
			fresh, tag := IsEntryFresh(reqHeader, cachedHeader, c.age, currentTime())
			assert.Equal(t, c.fresh, fresh)
			assert.Equal(t, c.tag, tag)
		})
	}
}

func TestIsContentNotModified(t *testing.T) {
	lastModified := currentTime().Add(-time.Hour)

	cases := []struct {
		name         string
		reqHeaders   http.Header
		cachedHeader http.Header
		notModified  bool
		tag          Tag
	}{
		{
			"If-None-Match star",
			http.Header{"If-None-Match": {"*"}},
			http.Header{},
			true, NotModifiedIfNoneMatchStar,
		},
		{
			"If-None-Match star among others is not a wildcard",
			http.Header{"If-None-Match": {`*, "abc"`}},
			http.Header{"Etag": {`"abc"`}},
			true, NotModifiedIfNoneMatchMatched,
		},
		{
			"If-None-Match matching tag",
			http.Header{"If-None-Match": {`"abc"`}},
			http.Header{"Etag": {`"abc"`}},
			true, NotModifiedIfNoneMatchMatched,
		},
		{
			"If-None-Match list",
			http.Header{"If-None-Match": {`"x", "abc"`}},
			http.Header{"Etag": {`"abc"`}},
			true, NotModifiedIfNoneMatchMatched,
		},
		{
			"Weak comparison ignores the weakness flag",
			http.Header{"If-None-Match": {`W/"abc"`}},
			http.Header{"Etag": {`"abc"`}},
			true, NotModifiedIfNoneMatchMatched,
		},
		{
			"No cached ETag",
			http.Header{"If-None-Match": {`"abc"`}},
			http.Header{},
			false, "",
		},
		{
			"Unmatched If-None-Match does not fall through",
			http.Header{
				"If-None-Match":       {`"other"`},
				"If-Unmodified-Since": {FormatDate(currentTime())},
			},
			http.Header{
				"Etag":          {`"abc"`},
				"Last-Modified": {FormatDate(lastModified)},
			},
			false, "",
		},
		{
			"If-Unmodified-Since satisfied by Last-Modified",
			http.Header{"If-Unmodified-Since": {FormatDate(currentTime())}},
			http.Header{"Last-Modified": {FormatDate(lastModified)}},
			true, NotModifiedIfUnmodifiedSinceSatisfied,
		},
		{
			"If-Unmodified-Since falls back to Date",
			http.Header{"If-Unmodified-Since": {FormatDate(currentTime())}},
			http.Header{"Date": {FormatDate(lastModified)}},
			true, NotModifiedIfUnmodifiedSinceSatisfied,
		},
		{
			"Resource newer than threshold",
			http.Header{"If-Unmodified-Since": {FormatDate(lastModified)}},
			http.Header{"Last-Modified": {FormatDate(currentTime())}},
			false, "",
		},
		{
			"Unparseable threshold",
			http.Header{"If-Unmodified-Since": {"garbage"}},
			http.Header{"Last-Modified": {FormatDate(lastModified)}},
			false, "",
		},
		{
			"No preconditions",
			http.Header{},
			http.Header{"Etag": {`"abc"`}},
			false, "",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			notModified, tag := IsContentNotModified(c.reqHeaders, c.cachedHeader)
			assert.Equal(t, c.notModified, notModified)
			assert.Equal(t, c.tag, tag)
		})
	}
}
