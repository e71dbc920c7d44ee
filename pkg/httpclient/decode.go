package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// ErrResponseTooLarge is returned from Read once a body passes
// Config.MaxResponseSize.
var ErrResponseTooLarge = errors.New("response body exceeds maximum size limit")

const (
	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"
)

var decoders = map[string]func(io.Reader) (io.Reader, error){
	EncodingGzip: func(r io.Reader) (io.Reader, error) {
		return gzip.NewReader(r)
	},
	EncodingDeflate: func(r io.Reader) (io.Reader, error) {
		return flate.NewReader(r), nil
	},
	EncodingBrotli: func(r io.Reader) (io.Reader, error) {
		return brotli.NewReader(r), nil
	},
}

// decodeBody replaces a compressed body with a decoding reader and drops
// Content-Encoding. Unknown or broken encodings leave the body as is.
func decodeBody(resp *http.Response, log *slog.Logger) io.ReadCloser {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get(HeaderContentEncoding)))
	if enc == "" || enc == "identity" {
		return resp.Body
	}

	newDecoder, ok := decoders[enc]
	if !ok {
		log.Debug("unsupported content encoding", slog.String("encoding", enc))
		return resp.Body
	}
	r, err := newDecoder(resp.Body)
	if err != nil {
		log.Warn("decoding response body", slog.String("encoding", enc), slog.Any("error", err))
		return resp.Body
	}

	resp.Header.Del(HeaderContentEncoding)
	resp.ContentLength = -1
	return &decodedBody{Reader: r, body: resp.Body}
}

type decodedBody struct {
	io.Reader
	body io.Closer
}

func (d *decodedBody) Close() error {
	if c, ok := d.Reader.(io.Closer); ok {
		_ = c.Close()
	}
	return d.body.Close()
}

// cappedBody fails reads with ErrResponseTooLarge after left goes negative.
type cappedBody struct {
	io.ReadCloser
	left int64
}

func capBody(rc io.ReadCloser, limit int64) io.ReadCloser {
	return &cappedBody{ReadCloser: rc, left: limit}
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.left < 0 {
		return 0, ErrResponseTooLarge
	}
	n, err := b.ReadCloser.Read(p)
	b.left -= int64(n)
	if b.left < 0 {
		return n, ErrResponseTooLarge
	}
	return n, err
}
