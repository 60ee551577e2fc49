package exportutil

import (
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Compression names accepted by NewCompressor.
const (
	CompressionNone  = "none"
	CompressionZstd  = "zstd"
	CompressionLZ4   = "lz4"
	CompressionXZ    = "xz"
	CompressionBZIP2 = "bzip2"
)

var extensions = map[string]string{
	CompressionNone:  "",
	CompressionZstd:  ".zst",
	CompressionLZ4:   ".lz4",
	CompressionXZ:    ".xz",
	CompressionBZIP2: ".bz2",
}

// Extension returns the file name suffix for a compression name.
func Extension(name string) string {
	return extensions[name]
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewCompressor wraps w in a stream compressor. Closing the result flushes
// the stream but leaves w open.
func NewCompressor(w io.Writer, name string) (io.WriteCloser, error) {
	switch name {
	case CompressionNone, "":
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CompressionLZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(lz4.Level1)); err != nil {
			return nil, fmt.Errorf("failed to configure lz4 writer: %w", err)
		}
		return lw, nil
	case CompressionXZ:
		return xz.NewWriter(w)
	case CompressionBZIP2:
		return bzip2.NewWriter(w, nil)
	default:
		return nil, fmt.Errorf("unsupported compression %q", name)
	}
}

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewDecompressor is the reading counterpart of NewCompressor.
func NewDecompressor(r io.Reader, name string) (io.ReadCloser, error) {
	switch name {
	case CompressionNone, "":
		return io.NopCloser(r), nil
	case CompressionZstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{d}, nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case CompressionBZIP2:
		return bzip2.NewReader(r, nil)
	default:
		return nil, fmt.Errorf("unsupported compression %q", name)
	}
}
