// Package backup implements offline backup, restore, and integrity
// verification for a table's page file. It never changes the on-disk
// page format the storage manager understands - a backup is simply a
// compressed, checksummed copy of the whole file, taken while the
// table is closed.
//
// Compression is provided by pkg/compression, with the algorithm
// recorded in the image's header so Restore and Verify always use the
// one Backup chose. The integrity checksum uses
// golang.org/x/crypto/blake2b for a fast, collision-resistant digest.
package backup

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	"slotdb/pkg/compression"
)

// magic identifies a slotdb backup image; version allows the format to
// evolve without breaking older backups silently.
const (
	magic   = "SLOTBKP1"
	version = 2
)

// Options controls how Backup compresses a backup image. The zero value
// selects compression.AlgorithmNone and stores the payload uncompressed;
// DefaultOptions and FastOptions are the compressed presets.
type Options struct {
	Algorithm compression.Algorithm
	Level     int
}

// DefaultOptions favors compression ratio over speed - zstd at a high
// level, for archival backups taken off the hot path.
func DefaultOptions() Options {
	return Options{Algorithm: compression.AlgorithmZstd, Level: 19}
}

// FastOptions favors speed over ratio, for backups taken often enough
// that compression time itself becomes a concern.
func FastOptions() Options {
	return Options{Algorithm: compression.AlgorithmSnappy}
}

// Manifest describes one backup image's provenance and integrity digest.
type Manifest struct {
	SourcePath     string
	Algorithm      compression.Algorithm
	OriginalSize   int64
	CompressedSize int64
	Checksum       string // hex-encoded blake2b-256 of the uncompressed bytes
}

// Backup compresses srcPath (a closed table's page file) into dstPath
// using DefaultOptions. srcPath must not be open in a buffer pool
// concurrently with this call.
func Backup(srcPath, dstPath string) (*Manifest, error) {
	return BackupWithOptions(srcPath, dstPath, DefaultOptions())
}

// BackupWithOptions is Backup with an explicit compression choice, e.g.
// FastOptions for a backup taken on a tight schedule.
func BackupWithOptions(srcPath, dstPath string, opts Options) (*Manifest, error) {
	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("backup: read source: %w", err)
	}

	sum := blake2b.Sum256(raw)

	comp, err := newCompressor(opts)
	if err != nil {
		return nil, err
	}
	defer comp.Close()

	compressed, err := comp.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("backup: compress: %w", err)
	}

	f, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("backup: create destination: %w", err)
	}
	defer f.Close()

	if err := writeHeader(f, opts.Algorithm, int64(len(raw)), sum); err != nil {
		return nil, err
	}
	if _, err := f.Write(compressed); err != nil {
		return nil, fmt.Errorf("backup: write payload: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("backup: sync: %w", err)
	}

	return &Manifest{
		SourcePath:     srcPath,
		Algorithm:      opts.Algorithm,
		OriginalSize:   int64(len(raw)),
		CompressedSize: int64(len(compressed)),
		Checksum:       hex.EncodeToString(sum[:]),
	}, nil
}

// Restore decompresses a backup image at srcPath into dstPath, using
// whichever algorithm the image's header names and verifying the
// embedded blake2b checksum before writing anything out. It refuses to
// overwrite an existing file at dstPath.
func Restore(srcPath, dstPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("backup: open backup: %w", err)
	}
	defer f.Close()

	algo, originalSize, wantSum, payload, err := readHeader(f)
	if err != nil {
		return err
	}

	raw, err := decompressPayload(algo, payload, originalSize, wantSum)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dstPath); err == nil {
		return fmt.Errorf("backup: refusing to overwrite existing file %q", dstPath)
	}

	if err := os.WriteFile(dstPath, raw, 0o644); err != nil {
		return fmt.Errorf("backup: write restored file: %w", err)
	}
	return nil
}

// Verify checks a backup image's checksum without restoring it,
// returning the embedded Manifest on success.
func Verify(srcPath string) (*Manifest, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("backup: open backup: %w", err)
	}
	defer f.Close()

	algo, originalSize, wantSum, payload, err := readHeader(f)
	if err != nil {
		return nil, err
	}

	if _, err := decompressPayload(algo, payload, originalSize, wantSum); err != nil {
		return nil, err
	}

	return &Manifest{
		SourcePath:     srcPath,
		Algorithm:      algo,
		OriginalSize:   originalSize,
		CompressedSize: int64(len(payload)),
		Checksum:       hex.EncodeToString(wantSum[:]),
	}, nil
}

func newCompressor(opts Options) (*compression.Compressor, error) {
	var cfg *compression.Config
	switch opts.Algorithm {
	case compression.AlgorithmSnappy:
		cfg = compression.SnappyConfig()
	case compression.AlgorithmGzip:
		cfg = compression.GzipConfig(opts.Level)
	case compression.AlgorithmZlib:
		cfg = &compression.Config{Algorithm: compression.AlgorithmZlib, Level: opts.Level}
	case compression.AlgorithmNone:
		cfg = &compression.Config{Algorithm: compression.AlgorithmNone}
	default:
		cfg = compression.ZstdConfig(opts.Level)
	}
	comp, err := compression.NewCompressor(cfg)
	if err != nil {
		return nil, fmt.Errorf("backup: create compressor: %w", err)
	}
	return comp, nil
}

func decompressPayload(algo compression.Algorithm, payload []byte, originalSize int64, wantSum [32]byte) ([]byte, error) {
	comp, err := newCompressor(Options{Algorithm: algo})
	if err != nil {
		return nil, err
	}
	defer comp.Close()

	raw, err := comp.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("backup: decompress: %w", err)
	}
	if int64(len(raw)) != originalSize {
		return nil, fmt.Errorf("backup: size mismatch: header says %d bytes, decompressed to %d", originalSize, len(raw))
	}

	gotSum := blake2b.Sum256(raw)
	if gotSum != wantSum {
		return nil, fmt.Errorf("backup: checksum mismatch: backup image is corrupt")
	}
	return raw, nil
}

// writeHeader writes magic, version, the compression algorithm,
// originalSize, and the checksum.
func writeHeader(w io.Writer, algo compression.Algorithm, originalSize int64, sum [32]byte) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return fmt.Errorf("backup: write magic: %w", err)
	}
	if err := writeUint32(w, version); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(algo)}); err != nil {
		return fmt.Errorf("backup: write algorithm: %w", err)
	}
	if err := writeUint64(w, uint64(originalSize)); err != nil {
		return err
	}
	if _, err := w.Write(sum[:]); err != nil {
		return fmt.Errorf("backup: write checksum: %w", err)
	}
	return nil
}

func readHeader(r io.Reader) (algo compression.Algorithm, originalSize int64, sum [32]byte, payload []byte, err error) {
	got := make([]byte, len(magic))
	if _, err = io.ReadFull(r, got); err != nil {
		return 0, 0, sum, nil, fmt.Errorf("backup: read magic: %w", err)
	}
	if string(got) != magic {
		return 0, 0, sum, nil, fmt.Errorf("backup: not a slotdb backup image (bad magic)")
	}

	v, err := readUint32(r)
	if err != nil {
		return 0, 0, sum, nil, err
	}
	if v != version {
		return 0, 0, sum, nil, fmt.Errorf("backup: unsupported backup format version %d", v)
	}

	algoByte := make([]byte, 1)
	if _, err = io.ReadFull(r, algoByte); err != nil {
		return 0, 0, sum, nil, fmt.Errorf("backup: read algorithm: %w", err)
	}
	algo = compression.Algorithm(algoByte[0])

	size, err := readUint64(r)
	if err != nil {
		return 0, 0, sum, nil, err
	}

	if _, err = io.ReadFull(r, sum[:]); err != nil {
		return 0, 0, sum, nil, fmt.Errorf("backup: read checksum: %w", err)
	}

	payload, err = io.ReadAll(r)
	if err != nil {
		return 0, 0, sum, nil, fmt.Errorf("backup: read payload: %w", err)
	}
	return algo, int64(size), sum, payload, nil
}

func writeUint32(w io.Writer, v uint32) error {
	b := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	_, err := w.Write(b)
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, fmt.Errorf("backup: read uint32: %w", err)
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func writeUint64(w io.Writer, v uint64) error {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	_, err := w.Write(b)
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, fmt.Errorf("backup: read uint64: %w", err)
	}
	var v uint64
	for i, c := range b {
		v |= uint64(c) << (8 * i)
	}
	return v, nil
}
