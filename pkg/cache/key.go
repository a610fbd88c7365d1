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
	"sort"
	"strconv"
	"strings"

	xxhash "github.com/cespare/xxhash/v2"
)

const (
	// keyDelimiter separates the components of a storage key.
	keyDelimiter = '\x1e'

	// keySubDelimiter marks the beginning of the header and query
	// sections of a vary key.
	keySubDelimiter = '\x1f'

	// valueSeparator joins multiple values of the same header or query key.
	valueSeparator = ","
)

// KeyProvider derives storage keys from HTTP requests.
type KeyProvider struct {
	// CaseSensitivePaths keys the request path verbatim.
	// If false, the path is folded to upper case.
	CaseSensitivePaths bool
}

// BaseKey derives the primary cache index for a request: the request
// method and the (case-folded) path, joined by a newline.
func (p KeyProvider) BaseKey(req *http.Request) string {
	path := req.URL.Path
	if !p.CaseSensitivePaths {
		path = strings.ToUpper(path)
	}
	return req.Method + "\n" + path
}

// StorageVaryKey derives the key a response variant is stored under. The
// selected header and query values of the request are appended to the base
// key, prefixed by the rule's key prefix:
//
//	{base}\x1e{prefix}[\x1fH\x1e{NAME}={values}...][\x1fQ\x1e{KEY}={values}...]
//
// Header names and query keys are sorted ascending and folded to upper
// case; their values are taken verbatim, multiple values joined by a comma.
func (p KeyProvider) StorageVaryKey(req *http.Request, baseKey string, rules *VaryRules) string {
	var b strings.Builder
	b.WriteString(baseKey)
	b.WriteByte(keyDelimiter)
	b.WriteString(rules.KeyPrefix)

	if len(rules.Headers) > 0 {
		b.WriteByte(keySubDelimiter)
		b.WriteByte('H')
		for _, name := range sortedUpper(rules.Headers) {
			b.WriteByte(keyDelimiter)
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(strings.Join(req.Header.Values(name), valueSeparator))
		}
	}

	if len(rules.QueryKeys) > 0 {
		query := upperQueryValues(req)

		keys := rules.QueryKeys
		if len(keys) == 1 && keys[0] == "*" {
			// A query key of "*" selects all current query keys.
			keys = make([]string, 0, len(query))
			for k := range query {
				keys = append(keys, k)
			}
		}

		b.WriteByte(keySubDelimiter)
		b.WriteByte('Q')
		for _, key := range sortedUpper(keys) {
			b.WriteByte(keyDelimiter)
			b.WriteString(key)
			b.WriteByte('=')
			b.WriteString(strings.Join(query[key], valueSeparator))
		}
	}

	return b.String()
}

// LookupVaryKeys returns the candidate variant keys for a request, in
// lookup order. The production provider derives exactly one.
func (p KeyProvider) LookupVaryKeys(req *http.Request, baseKey string, rules *VaryRules) []string {
	return []string{p.StorageVaryKey(req, baseKey, rules)}
}

// MintVaryPrefix produces the key prefix for a set of normalized vary
// rules. The prefix is a stable hash of the rule sets so that equivalent
// rules yield identical storage keys across processes and restarts.
func MintVaryPrefix(headers, queryKeys []string) string {
	d := xxhash.New()
	for _, h := range headers {
		_, _ = d.WriteString(h)
		_, _ = d.Write([]byte{keyDelimiter})
	}
	_, _ = d.Write([]byte{keySubDelimiter})
	for _, q := range queryKeys {
		_, _ = d.WriteString(q)
		_, _ = d.Write([]byte{keyDelimiter})
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// sortedUpper returns a sorted, upper-cased copy of the given names.
func sortedUpper(names []string) []string {
	cp := make([]string, len(names))
	for i, n := range names {
		cp[i] = strings.ToUpper(n)
	}
	sort.Strings(cp)
	return cp
}

// upperQueryValues collects the request query values keyed by the
// upper-cased query key. Values of keys that differ only in case are
// merged; the values themselves are preserved verbatim.
func upperQueryValues(req *http.Request) map[string][]string {
	query := make(map[string][]string)
	for k, vv := range req.URL.Query() {
		uk := strings.ToUpper(k)
		query[uk] = append(query[uk], vv...)
	}
	return query
}
