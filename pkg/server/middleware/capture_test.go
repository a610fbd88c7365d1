package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureStreamTee(t *testing.T) {
	rec := httptest.NewRecorder()
	cs := NewCaptureStream(rec, 1<<20, nil)

	n, err := cs.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, err = cs.Write([]byte("world"))
	require.NoError(t, err)

	// Bytes went downstream and into the buffer.
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Equal(t, int64(11), cs.Length())
	assert.True(t, cs.BufferingEnabled())

	body, err := io.ReadAll(cs.Body().Reader())
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestCaptureStreamStartHook(t *testing.T) {
	rec := httptest.NewRecorder()

	started := 0
	var cs *CaptureStream
	cs = NewCaptureStream(rec, 1<<20, func() {
		started++
		// The hook runs before any byte reaches the downstream writer.
		assert.Equal(t, 0, rec.Body.Len())
		assert.True(t, cs.Started())
	})

	cs.WriteHeader(http.StatusCreated)
	_, _ = cs.Write([]byte("payload"))
	cs.WriteHeader(http.StatusTeapot) // ignored, headers already sent

	assert.Equal(t, 1, started)
	assert.Equal(t, http.StatusCreated, cs.Status())
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCaptureStreamImplicitStart(t *testing.T) {
	rec := httptest.NewRecorder()

	started := 0
	cs := NewCaptureStream(rec, 1<<20, func() { started++ })

	// A body write without an explicit WriteHeader still runs the hook
	// and reports a 200.
	_, _ = cs.Write([]byte("x"))
	assert.Equal(t, 1, started)
	assert.Equal(t, http.StatusOK, cs.Status())
}

func TestCaptureStreamSizeLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cs := NewCaptureStream(rec, 8, nil)

	_, err := cs.Write([]byte("12345"))
	require.NoError(t, err)
	assert.True(t, cs.BufferingEnabled())

	// Exceeding the limit silently abandons the buffer; the write still
	// reaches the client.
	_, err = cs.Write([]byte("67890"))
	require.NoError(t, err)
	assert.False(t, cs.BufferingEnabled())
	assert.Equal(t, int64(0), cs.Length())
	assert.Equal(t, "1234567890", rec.Body.String())
}

func TestCaptureStreamSegmentation(t *testing.T) {
	rec := httptest.NewRecorder()
	cs := NewCaptureStream(rec, 1<<20, nil)

	payload := bytes.Repeat([]byte("a"), segmentSize+100)
	_, err := cs.Write(payload)
	require.NoError(t, err)
	_, err = cs.Write([]byte("tail"))
	require.NoError(t, err)

	body := cs.Body()
	assert.Equal(t, int64(len(payload)+4), body.Length)
	require.Len(t, body.Segments, 2)
	assert.Len(t, body.Segments[0], segmentSize)

	replay, err := io.ReadAll(body.Reader())
	require.NoError(t, err)
	assert.Equal(t, append(payload, []byte("tail")...), replay)
}

// failingWriter fails every write after the first n bytes.
type failingWriter struct {
	header http.Header
}

func (w *failingWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *failingWriter) WriteHeader(int) {}

func (w *failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("downstream gone")
}

func TestCaptureStreamWriteError(t *testing.T) {
	cs := NewCaptureStream(&failingWriter{}, 1<<20, nil)

	_, err := cs.Write([]byte("x"))
	assert.Error(t, err)
	assert.False(t, cs.BufferingEnabled())
	assert.Equal(t, int64(0), cs.Length())
}

func TestCaptureStreamDisableBuffering(t *testing.T) {
	rec := httptest.NewRecorder()
	cs := NewCaptureStream(rec, 1<<20, nil)

	_, _ = cs.Write([]byte("buffered"))
	cs.DisableBuffering()

	assert.False(t, cs.BufferingEnabled())
	assert.Empty(t, cs.Body().Segments)

	// Writes keep flowing downstream.
	_, err := cs.Write([]byte(" more"))
	require.NoError(t, err)
	assert.Equal(t, "buffered more", rec.Body.String())
}
