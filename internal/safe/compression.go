// internal/safe/compression.go
package safe

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Frame flags prepended to every value written by the badger backend.
const (
	frameRaw  byte = 0
	frameZstd byte = 1
)

// CompressionOptions configures compression behavior
type CompressionOptions struct {
	// Minimum size in bytes before compressing
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
}

// DefaultCompressionOptions provides sensible defaults
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 512,
		Level:   2,
	}
}

// compressionManager frames values for the KV backend, compressing the
// ones worth compressing with pooled zstd encoders.
type compressionManager struct {
	opts CompressionOptions

	// Encoder/decoder pools
	encoders sync.Pool
	decoders sync.Pool
}

func newCompressionManager(opts CompressionOptions) (*compressionManager, error) {
	// Create encoder/decoder for validation
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating test encoder: %w", err)
	}
	enc.Close()

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating test decoder: %w", err)
	}
	dec.Close()

	cm := &compressionManager{
		opts: opts,
		encoders: sync.Pool{
			New: func() interface{} {
				enc, _ := zstd.NewWriter(nil,
					zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)),
					zstd.WithEncoderConcurrency(1),
				)
				return enc
			},
		},
		decoders: sync.Pool{
			New: func() interface{} {
				dec, _ := zstd.NewReader(nil,
					zstd.WithDecoderConcurrency(1),
				)
				return dec
			},
		},
	}

	return cm, nil
}

// encode frames content, compressing it when it is at least MinSize and
// compression actually saves space.
func (cm *compressionManager) encode(content []byte) []byte {
	if len(content) >= cm.opts.MinSize {
		enc := cm.encoders.Get().(*zstd.Encoder)
		packed := enc.EncodeAll(content, []byte{frameZstd})
		cm.encoders.Put(enc)
		if len(packed) < len(content)+1 {
			return packed
		}
	}

	framed := make([]byte, 0, len(content)+1)
	framed = append(framed, frameRaw)
	return append(framed, content...)
}

// decode reverses encode.
func (cm *compressionManager) decode(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	switch framed[0] {
	case frameRaw:
		return bytes.Clone(framed[1:]), nil
	case frameZstd:
		dec := cm.decoders.Get().(*zstd.Decoder)
		defer cm.decoders.Put(dec)
		out, err := dec.DecodeAll(framed[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown frame flag %#x", framed[0])
	}
}

// close cleans up resources
func (cm *compressionManager) close() {
	// Get builds fresh coders once the pool is empty, so the drain is bounded.
	for i := 0; i < 16; i++ {
		enc, ok := cm.encoders.Get().(*zstd.Encoder)
		if !ok || enc == nil {
			break
		}
		enc.Close()
	}
	for i := 0; i < 16; i++ {
		dec, ok := cm.decoders.Get().(*zstd.Decoder)
		if !ok || dec == nil {
			break
		}
		dec.Close()
	}
}
