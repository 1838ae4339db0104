package encoding

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"sync"
)

// Buffers above this capacity are dropped instead of pooled
const maxPooledBuffer = 64 * 1024

var (
	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}

	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
			return w
		},
	}
)

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// detach copies the buffer contents so the buffer can go back to the pool
func detach(buf *bytes.Buffer) []byte {
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}

// EncodeJSON encodes v to JSON using a pooled buffer.
// HTML characters are not escaped; payloads never reach a browser.
// The trailing newline written by the encoder is kept.
func EncodeJSON(v interface{}) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return detach(buf), nil
}

// Gzip compresses payload with a pooled writer. The input is never modified.
func Gzip(payload []byte) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	gz := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(gz)
	gz.Reset(buf)

	if _, err := gz.Write(payload); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return detach(buf), nil
}
