package cache

import (
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	// Common cache related HTTP headers

	HeaderCacheControl = "Cache-Control"
	HeaderDate         = "Date"

	HeaderAuthorization = "Authorization"

	// Request headers
	HeaderPragma            = "Pragma"
	HeaderIfNoneMatch       = "If-None-Match"
	HeaderIfUnmodifiedSince = "If-Unmodified-Since"

	// Response headers
	HeaderAge             = "Age"
	HeaderEtag            = "ETag"
	HeaderExpires         = "Expires"
	HeaderLastModified    = "Last-Modified"
	HeaderSetCookie       = "Set-Cookie"
	HeaderVary            = "Vary"
	HeaderContentLength   = "Content-Length"
	HeaderContentLocation = "Content-Location"
)

// httpDateFormats are the acceptable date/time formats per
// https://datatracker.ietf.org/doc/html/rfc7231#section-7.1.1.1
//
// Preferred format:
// Sun, 06 Nov 1994 08:49:37 GMT    ; IMF-fixdate, RFC 1123
//
// Obsolete formats:
// Sunday, 06-Nov-94 08:49:37 GMT   ; obsolete RFC 850 format.
// Sun Nov  6 08:49:37 1994         ; ANSI C's asctime() format.
//
// A recipient that parses a timestamp value in an HTTP header field
// MUST accept all three HTTP-date formats. RFC 5322 variants with a
// numeric zone are accepted on top of that.
var httpDateFormats = []string{
	http.TimeFormat,
	time.RFC1123,
	time.RFC1123Z,
	"Monday, 02-Jan-06 15:04:05 GMT", // RFC 850, hard-coded GMT zone.
	time.RFC850,
	time.ANSIC,
	"Mon, 2 Jan 2006 15:04:05 -0700", // RFC 5322, loose day-of-month.
}

// TryParseDate parses a datetime header value. Leading and trailing
// whitespace is allowed; UTC is assumed when no zone is given.
func TryParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range httpDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatDate formats a timestamp as an RFC 1123 GMT date, the only
// format emitted on the wire.
func FormatDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// TryParseTimeSpan scans the given header values for a `directive=seconds`
// token and returns the duration of the first value containing the
// directive. The directive is matched as a case-insensitive substring, the
// argument is a run of ASCII digits, spaces are allowed around the `=`.
//
// Note that substring matching is intentional: asking for `max-age` will
// also match `fresh-max-age`. Keep it that way.
func TryParseTimeSpan(values []string, directive string) (time.Duration, bool) {
	directive = strings.ToLower(directive)
	for _, value := range values {
		idx := strings.Index(strings.ToLower(value), directive)
		if idx < 0 {
			continue
		}
		i := idx + len(directive)
		for i < len(value) && value[i] == ' ' {
			i++
		}
		if i >= len(value) || value[i] != '=' {
			return 0, false
		}
		i++
		for i < len(value) && value[i] == ' ' {
			i++
		}
		var seconds int64
		digits := 0
		for i < len(value) && value[i] >= '0' && value[i] <= '9' {
			seconds = seconds*10 + int64(value[i]-'0')
			digits++
			i++
		}
		if digits == 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}

// ContainsToken checks whether any of the values contains the given token,
// matched as a case-insensitive substring.
func ContainsToken(values []string, token string) bool {
	token = strings.ToLower(token)
	for _, value := range values {
		if strings.Contains(strings.ToLower(value), token) {
			return true
		}
	}
	return false
}

// OrderCasingNormalize normalizes a collection of header names or query
// keys for comparison. Collections with more than one element are
// upper-cased and sorted ascending; a single element is returned as-is.
// Commas are not split here, the caller controls splitting.
func OrderCasingNormalize(values []string) []string {
	if len(values) <= 1 {
		return values
	}
	normalized := make([]string, len(values))
	for i, v := range values {
		normalized[i] = strings.ToUpper(v)
	}
	sort.Strings(normalized)
	return normalized
}

// SplitCommaDelimited splits a comma separated header value into its
// trimmed, non-empty tokens.
func SplitCommaDelimited(values []string) []string {
	var tokens []string
	for _, value := range values {
		for _, token := range strings.Split(value, ",") {
			token = strings.TrimSpace(token)
			if len(token) > 0 {
				tokens = append(tokens, token)
			}
		}
	}
	return tokens
}
