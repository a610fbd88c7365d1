package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"io"
	"net/http"
	"time"
)

// EntryKind tags the two shapes stored under the same key space.
type EntryKind uint8

const (
	// KindResponse marks a stored response variant.
	KindResponse EntryKind = iota + 1

	// KindVaryRules marks the indirection record pointing at the
	// variant keys stored under the same base key.
	KindVaryRules
)

var errUnknownEntryKind = errors.New("unknown cache entry kind")

// Entry is the tagged cache entry. Exactly one of Response or Vary is set,
// according to Kind. Entries are immutable once stored; replacement is an
// insert under the same key.
type Entry struct {
	Kind     EntryKind
	Response *CachedResponse
	Vary     *VaryRules
}

// CachedResponse is a stored response variant: the snapshot of an upstream
// response taken at capture time.
type CachedResponse struct {
	// Created is the time the response was captured.
	Created time.Time

	// StatusCode is the snapshotted response status.
	StatusCode int

	// Header is the snapshotted response header set, detached from the
	// live response.
	Header http.Header

	// Body is the captured response body.
	Body SegmentedBody
}

// VaryRules tells the cache which request headers and query keys select
// the response variant stored for a base key.
type VaryRules struct {
	// KeyPrefix is the short unique id scoping the variant keys minted
	// under these rules.
	KeyPrefix string

	// Headers are the normalized header names that vary the response.
	Headers []string

	// QueryKeys are the normalized query keys that vary the response.
	// A single "*" selects all query keys.
	QueryKeys []string
}

// Equals reports whether the normalized rule sets are identical.
func (r *VaryRules) Equals(headers, queryKeys []string) bool {
	return equalValues(r.Headers, headers) && equalValues(r.QueryKeys, queryKeys)
}

func equalValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SegmentedBody is an ordered list of byte segments plus the total length.
// The sum of the segment lengths always equals Length. The body supports
// non-destructive replay; independent readers may consume it concurrently.
type SegmentedBody struct {
	Segments [][]byte
	Length   int64
}

// Reader returns a fresh reader over the full body. Each call returns an
// independent view; the underlying segments are never mutated.
func (b SegmentedBody) Reader() io.Reader {
	readers := make([]io.Reader, len(b.Segments))
	for i, seg := range b.Segments {
		readers[i] = bytes.NewReader(seg)
	}
	return io.MultiReader(readers...)
}

// NewResponseEntry wraps a cached response into a storable entry.
func NewResponseEntry(res *CachedResponse) *Entry {
	return &Entry{Kind: KindResponse, Response: res}
}

// NewVaryRulesEntry wraps vary rules into a storable entry.
func NewVaryRulesEntry(rules *VaryRules) *Entry {
	return &Entry{Kind: KindVaryRules, Vary: rules}
}

// Encode serializes the entry for the byte-oriented storage backend.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeEntry deserializes an entry read back from storage.
func DecodeEntry(raw []byte) (*Entry, error) {
	entry := &Entry{}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(entry); err != nil {
		return nil, err
	}
	switch entry.Kind {
	case KindResponse, KindVaryRules:
		return entry, nil
	default:
		return nil, errUnknownEntryKind
	}
}
