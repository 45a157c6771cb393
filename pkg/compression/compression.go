// Package compression implements pluggable payload compression for
// backup images and other bulk byte transfers inside the storage
// engine. It wraps klauspost/compress's zstd and snappy codecs plus
// the standard library's gzip and zlib implementations behind a single
// Compressor chosen by Algorithm, so callers like pkg/backup can trade
// ratio for speed without caring which library does the work.
package compression

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// Algorithm selects a compression codec.
type Algorithm int

const (
	// AlgorithmNone stores the payload unchanged, for callers that want
	// the format's framing (checksum, versioning) without the CPU cost.
	AlgorithmNone Algorithm = iota
	// AlgorithmSnappy trades ratio for speed - good for backups taken
	// on a schedule tight enough that compression time matters.
	AlgorithmSnappy
	// AlgorithmZstd gives the best ratio of the four at a moderate
	// speed cost; the default for archival backups.
	AlgorithmZstd
	// AlgorithmGzip is the portable choice when the payload needs to be
	// readable by tools outside this engine.
	AlgorithmGzip
	// AlgorithmZlib is gzip's sibling without the gzip container, for
	// callers embedding the stream inside their own framing.
	AlgorithmZlib
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	case AlgorithmGzip:
		return "gzip"
	case AlgorithmZlib:
		return "zlib"
	default:
		return "unknown"
	}
}

// Config selects an Algorithm and, for the algorithms that have one, a
// compression level.
type Config struct {
	Algorithm Algorithm
	Level     int
}

// DefaultConfig is zstd at a balanced level.
func DefaultConfig() *Config {
	return &Config{Algorithm: AlgorithmZstd, Level: 3}
}

// SnappyConfig builds a Config for Algorithm Snappy, which ignores Level.
func SnappyConfig() *Config {
	return &Config{Algorithm: AlgorithmSnappy}
}

// GzipConfig builds a Config for Algorithm Gzip. A level outside
// compress/gzip's NoCompression..BestCompression range is replaced by
// gzip.DefaultCompression.
func GzipConfig(level int) *Config {
	if level < gzip.NoCompression || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &Config{Algorithm: AlgorithmGzip, Level: level}
}

// ZstdConfig builds a Config for Algorithm Zstd. Zstd levels run 1
// (fastest) through 19 (smallest); out-of-range values fall back to 3.
func ZstdConfig(level int) *Config {
	if level < 1 || level > 19 {
		level = 3
	}
	return &Config{Algorithm: AlgorithmZstd, Level: level}
}

// Compressor compresses and decompresses byte slices according to a
// fixed Config. A zero Compressor is not usable; build one with
// NewCompressor.
type Compressor struct {
	config  *Config
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
	scratch *bytes.Buffer
}

// NewCompressor builds a Compressor for config (DefaultConfig if nil).
// Zstd pre-builds its encoder/decoder since both are reusable across
// calls and comparatively expensive to construct.
func NewCompressor(config *Config) (*Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Compressor{config: config, scratch: new(bytes.Buffer)}

	if config.Algorithm == AlgorithmZstd {
		encLevel := zstd.EncoderLevelFromZstd(config.Level)
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
		if err != nil {
			return nil, fmt.Errorf("compression: create zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("compression: create zstd decoder: %w", err)
		}
		c.zstdEnc, c.zstdDec = enc, dec
	}

	return c, nil
}

// deflateWriter returns a flate-family compressor (gzip or zlib) over
// c.scratch at the configured level - the two only differ in container
// framing, so they share this plumbing.
func (c *Compressor) deflateWriter() (io.WriteCloser, error) {
	c.scratch.Reset()
	level := c.config.Level
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = flate.DefaultCompression
	}
	switch c.config.Algorithm {
	case AlgorithmGzip:
		return gzip.NewWriterLevel(c.scratch, level)
	case AlgorithmZlib:
		return zlib.NewWriterLevel(c.scratch, level)
	default:
		return nil, fmt.Errorf("compression: %s is not a deflate-family algorithm", c.config.Algorithm)
	}
}

func (c *Compressor) deflateReader(data []byte) (io.ReadCloser, error) {
	switch c.config.Algorithm {
	case AlgorithmGzip:
		return gzip.NewReader(bytes.NewReader(data))
	case AlgorithmZlib:
		return zlib.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("compression: %s is not a deflate-family algorithm", c.config.Algorithm)
	}
}

// Compress returns data compressed with c's configured algorithm. An
// empty input is returned unchanged without invoking the codec.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch c.config.Algorithm {
	case AlgorithmNone:
		return data, nil

	case AlgorithmSnappy:
		return snappy.Encode(nil, data), nil

	case AlgorithmZstd:
		return c.zstdEnc.EncodeAll(data, nil), nil

	case AlgorithmGzip, AlgorithmZlib:
		w, err := c.deflateWriter()
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("compression: write %s stream: %w", c.config.Algorithm, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compression: close %s stream: %w", c.config.Algorithm, err)
		}
		return c.scratch.Bytes(), nil

	default:
		return nil, fmt.Errorf("compression: unsupported algorithm %v", c.config.Algorithm)
	}
}

// Decompress reverses Compress.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch c.config.Algorithm {
	case AlgorithmNone:
		return data, nil

	case AlgorithmSnappy:
		decoded, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("compression: decode snappy: %w", err)
		}
		return decoded, nil

	case AlgorithmZstd:
		decoded, err := c.zstdDec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("compression: decode zstd: %w", err)
		}
		return decoded, nil

	case AlgorithmGzip, AlgorithmZlib:
		r, err := c.deflateReader(data)
		if err != nil {
			return nil, fmt.Errorf("compression: open %s stream: %w", c.config.Algorithm, err)
		}
		defer r.Close()
		c.scratch.Reset()
		if _, err := io.Copy(c.scratch, r); err != nil {
			return nil, fmt.Errorf("compression: read %s stream: %w", c.config.Algorithm, err)
		}
		return c.scratch.Bytes(), nil

	default:
		return nil, fmt.Errorf("compression: unsupported algorithm %v", c.config.Algorithm)
	}
}

// Close releases the zstd encoder/decoder, if this Compressor built
// them. It is a noop for every other algorithm.
func (c *Compressor) Close() error {
	if c.zstdEnc != nil {
		c.zstdEnc.Close()
	}
	if c.zstdDec != nil {
		c.zstdDec.Close()
	}
	return nil
}

// CompressionRatio is compressedSize/originalSize; 0 if originalSize is 0.
func CompressionRatio(originalSize, compressedSize int) float64 {
	if originalSize == 0 {
		return 0
	}
	return float64(compressedSize) / float64(originalSize)
}

// SpaceSavings is the percentage of originalSize that compression removed.
func SpaceSavings(originalSize, compressedSize int) float64 {
	if originalSize == 0 {
		return 0
	}
	return (1.0 - CompressionRatio(originalSize, compressedSize)) * 100
}
