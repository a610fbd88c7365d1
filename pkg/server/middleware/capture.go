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
	"net/http"

	"github.com/rescache/rescache/pkg/cache"
)

// segmentSize is the size of a single capture buffer segment.
const segmentSize = 4 << 10

// CaptureStream is a write-through wrapper around the downstream response
// writer. Every write is forwarded downstream first and then mirrored into
// a segmented in-memory buffer, up to a configured size limit. The moment
// of first write triggers the onStart hook, before any byte leaves the
// process.
type CaptureStream struct {
	inner http.ResponseWriter

	// onStart runs once, before the response headers are sent.
	onStart func()

	// limit is the maximum number of bytes to buffer. Exceeding it
	// silently disables buffering.
	limit int64

	segments  [][]byte
	length    int64
	buffering bool
	started   bool
	status    int
}

// NewCaptureStream wraps the downstream response writer.
func NewCaptureStream(inner http.ResponseWriter, limit int64, onStart func()) *CaptureStream {
	return &CaptureStream{
		inner:     inner,
		onStart:   onStart,
		limit:     limit,
		buffering: true,
		status:    http.StatusOK,
	}
}

// Header returns the downstream header map.
func (cs *CaptureStream) Header() http.Header {
	return cs.inner.Header()
}

// WriteHeader records the status and sends the headers downstream, running
// the start hook first.
func (cs *CaptureStream) WriteHeader(statusCode int) {
	if cs.started {
		return
	}
	cs.status = statusCode
	cs.start()
	cs.inner.WriteHeader(statusCode)
}

// Write forwards p downstream and mirrors it into the capture buffer. A
// downstream write failure is propagated and aborts buffering; bytes
// already emitted are unaffected.
func (cs *CaptureStream) Write(p []byte) (int, error) {
	if !cs.started {
		cs.start()
	}
	n, err := cs.inner.Write(p)
	if err != nil {
		cs.DisableBuffering()
		return n, err
	}
	if cs.buffering {
		cs.buffer(p[:n])
	}
	return n, err
}

// Flush forwards the flush to the downstream writer, if supported.
func (cs *CaptureStream) Flush() {
	if !cs.started {
		cs.start()
	}
	if f, ok := cs.inner.(http.Flusher); ok {
		f.Flush()
	}
}

// DisableBuffering abandons any buffered content. Writes keep being
// forwarded downstream.
func (cs *CaptureStream) DisableBuffering() {
	cs.buffering = false
	cs.segments = nil
	cs.length = 0
}

// BufferingEnabled reports whether the stream is still mirroring writes.
func (cs *CaptureStream) BufferingEnabled() bool {
	return cs.buffering
}

// Length returns the number of bytes buffered so far.
func (cs *CaptureStream) Length() int64 {
	return cs.length
}

// Status returns the response status, or 200 if none was written.
func (cs *CaptureStream) Status() int {
	return cs.status
}

// Started reports whether the response headers have been sent.
func (cs *CaptureStream) Started() bool {
	return cs.started
}

// Body returns the captured body for publication to storage. The segments
// are handed out as-is; the stream must not be written to afterwards.
func (cs *CaptureStream) Body() cache.SegmentedBody {
	return cache.SegmentedBody{Segments: cs.segments, Length: cs.length}
}

func (cs *CaptureStream) start() {
	cs.started = true
	if cs.onStart != nil {
		cs.onStart()
	}
}

// buffer mirrors p into the segment list, disabling buffering when the
// cumulative size would exceed the limit.
func (cs *CaptureStream) buffer(p []byte) {
	if cs.length+int64(len(p)) > cs.limit {
		cs.DisableBuffering()
		return
	}
	for len(p) > 0 {
		if n := len(cs.segments); n > 0 && len(cs.segments[n-1]) < segmentSize {
			seg := cs.segments[n-1]
			room := segmentSize - len(seg)
			if room > len(p) {
				room = len(p)
			}
			cs.segments[n-1] = append(seg, p[:room]...)
			cs.length += int64(room)
			p = p[room:]
			continue
		}
		seg := make([]byte, 0, segmentSize)
		cs.segments = append(cs.segments, seg)
	}
}
