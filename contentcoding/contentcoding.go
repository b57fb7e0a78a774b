// Package contentcoding decodes and re-encodes HTTP bodies according to
// their Content-Encoding, so a rewritten body can be sent back under the
// same headers it arrived with.
package contentcoding

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// ErrUnsupported is returned for codings this package cannot round-trip,
// including stacked codings such as "gzip, br".
var ErrUnsupported = errors.New("contentcoding: unsupported coding")

// maxDecoded caps decompressed bodies at 64 MB.
const maxDecoded = 64 << 20

// zstd coders are safe for concurrent DecodeAll/EncodeAll calls.
var (
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecoded))
	})
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil)
	})
)

// Normalize lowercases and trims a Content-Encoding value.
func Normalize(coding string) string {
	return strings.ToLower(strings.TrimSpace(coding))
}

// Supported reports whether coding can be decoded and re-encoded.
func Supported(coding string) bool {
	switch Normalize(coding) {
	case "", "identity", "gzip", "x-gzip", "deflate", "br", "zstd":
		return true
	default:
		return false
	}
}

// Decode returns the identity-coded form of b.
func Decode(coding string, b []byte) ([]byte, error) {
	switch Normalize(coding) {
	case "", "identity":
		return b, nil
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("contentcoding: gzip reader: %w", err)
		}
		defer r.Close()
		return readCapped(r)
	case "deflate":
		r, err := zlib.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("contentcoding: zlib reader: %w", err)
		}
		defer r.Close()
		return readCapped(r)
	case "br":
		return readCapped(brotli.NewReader(bytes.NewReader(b)))
	case "zstd":
		dec, err := zstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("contentcoding: zstd decoder: %w", err)
		}
		out, err := dec.DecodeAll(b, nil)
		if err != nil {
			return nil, fmt.Errorf("contentcoding: zstd decode: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, coding)
	}
}

// Encode applies coding to the identity-coded b.
func Encode(coding string, b []byte) ([]byte, error) {
	switch Normalize(coding) {
	case "", "identity":
		return b, nil
	case "gzip", "x-gzip":
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		return finish(&buf, w, b)
	case "deflate":
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		return finish(&buf, w, b)
	case "br":
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		return finish(&buf, w, b)
	case "zstd":
		enc, err := zstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("contentcoding: zstd encoder: %w", err)
		}
		return enc.EncodeAll(b, nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, coding)
	}
}

func finish(buf *bytes.Buffer, w io.WriteCloser, b []byte) ([]byte, error) {
	if _, err := w.Write(b); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("contentcoding: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("contentcoding: close: %w", err)
	}
	return buf.Bytes(), nil
}

func readCapped(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxDecoded+1))
	if err != nil {
		return nil, fmt.Errorf("contentcoding: read: %w", err)
	}
	if len(b) > maxDecoded {
		return nil, fmt.Errorf("contentcoding: decoded body exceeds %d bytes", maxDecoded)
	}
	return b, nil
}
