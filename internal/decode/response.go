package decode

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
)

// ErrIncompleteRead is returned by StreamingBody when the stream ends before
// the declared content length was read.
var ErrIncompleteRead = errors.New("incomplete read")

// HTTPResponse is the raw response handed to the decoder. Raw is read at most
// once: either buffered by Content or exposed as a StreamingBody.
type HTTPResponse struct {
	StatusCode int
	Header     http.Header
	Raw        io.Reader

	once    sync.Once
	content []byte
	err     error
}

// Content buffers and returns the whole body.
func (r *HTTPResponse) Content() ([]byte, error) {
	r.once.Do(func() {
		if r.Raw == nil {
			return
		}
		r.content, r.err = io.ReadAll(r.Raw)
	})
	return r.content, r.err
}

// Descriptor is what a protocol parser sees: status, headers and either a
// buffered body or a stream.
type Descriptor struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Stream     *StreamingBody
}

// StreamingBody wraps a response stream and verifies its length at EOF when
// the length is known.
type StreamingBody struct {
	r        io.Reader
	expected int64 // -1 when unknown
	read     int64
}

// NewStreamingBody wraps r. contentLength is the raw Content-Length header
// value; an empty or malformed value disables the length check.
func NewStreamingBody(r io.Reader, contentLength string) *StreamingBody {
	expected := int64(-1)
	if contentLength != "" {
		if n, err := strconv.ParseInt(contentLength, 10, 64); err == nil && n >= 0 {
			expected = n
		}
	}
	return &StreamingBody{r: r, expected: expected}
}

func (b *StreamingBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.read += int64(n)
	if err == io.EOF && b.expected >= 0 && b.read != b.expected {
		return n, fmt.Errorf("%w: read %d of %d bytes", ErrIncompleteRead, b.read, b.expected)
	}
	return n, err
}

// Close closes the underlying stream if it is closable.
func (b *StreamingBody) Close() error {
	if c, ok := b.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ContentLength reports the declared length, or -1.
func (b *StreamingBody) ContentLength() int64 { return b.expected }
