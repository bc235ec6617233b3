// internal/content/store.go
package content

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/zeebo/blake3"
)

const oidLength = 64

// Addressor hashes and compresses opaque buffers. It knows nothing about
// commits or files.
type Addressor struct {
	algorithm string
	writers   sync.Pool
}

// NewAddressor returns an addressor for "sha256" (default) or "blake3".
func NewAddressor(algorithm string) (*Addressor, error) {
	switch algorithm {
	case "", "sha256":
		algorithm = "sha256"
	case "blake3":
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}

	return &Addressor{
		algorithm: algorithm,
		writers: sync.Pool{
			New: func() interface{} {
				w, _ := zlib.NewWriterLevel(nil, zlib.BestCompression)
				return w
			},
		},
	}, nil
}

func (a *Addressor) Algorithm() string {
	return a.algorithm
}

// Hash returns the hex oid of data.
func (a *Addressor) Hash(data []byte) string {
	if a.algorithm == "blake3" {
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Compress zlib-compresses data at the best compression level.
func (a *Addressor) Compress(data []byte) ([]byte, error) {
	w := a.writers.Get().(*zlib.Writer)
	defer a.writers.Put(w)

	var buf bytes.Buffer
	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing compression: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func (a *Addressor) Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening zlib stream: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

// ValidOID reports whether s looks like an oid produced by an Addressor.
func ValidOID(s string) bool {
	if len(s) != oidLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
