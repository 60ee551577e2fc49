package psd

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf16"
)

// File wraps a seekable byte source with the big-endian readers used by
// every section parser. A File is owned by a single decoder; it is not safe
// for concurrent use.
type File struct {
	rs   io.ReadSeeker
	size int64
	big  bool
	buf  [8]byte
}

func newFile(rs io.ReadSeeker) (*File, error) {
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream position: %w", err)
	}
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream size: %w", err)
	}
	if _, err := rs.Seek(cur, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to restore stream position: %w", err)
	}
	return &File{rs: rs, size: size}, nil
}

// Read fills p completely or fails with io.ErrUnexpectedEOF.
func (f *File) Read(p []byte) (int, error) {
	n, err := io.ReadFull(f.rs, p)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// Seek seeks to a position in the file
func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.rs.Seek(offset, whence)
}

// SeekTo moves to an absolute offset.
func (f *File) SeekTo(offset int64) error {
	_, err := f.rs.Seek(offset, io.SeekStart)
	return err
}

// Tell returns the current position in the file
func (f *File) Tell() (int64, error) {
	return f.rs.Seek(0, io.SeekCurrent)
}

// Size is the total length of the underlying source.
func (f *File) Size() int64 {
	return f.size
}

// Skip skips n bytes
func (f *File) Skip(n int64) error {
	_, err := f.rs.Seek(n, io.SeekCurrent)
	return err
}

// ReadBytes reads exactly n bytes. Lengths running past the end of the
// source fail before anything is allocated.
func (f *File) ReadBytes(n int64) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d", n)
	}
	pos, err := f.Tell()
	if err != nil {
		return nil, err
	}
	if n > f.size-pos {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := f.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadString reads a string of specified length
func (f *File) ReadString(length int) (string, error) {
	buf, err := f.ReadBytes(int64(length))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadByte reads a single byte
func (f *File) ReadByte() (byte, error) {
	if _, err := f.Read(f.buf[:1]); err != nil {
		return 0, err
	}
	return f.buf[0], nil
}

// ReadUint16 reads a 16-bit unsigned integer (big endian)
func (f *File) ReadUint16() (uint16, error) {
	if _, err := f.Read(f.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(f.buf[:2]), nil
}

// ReadInt16 reads a 16-bit signed integer (big endian)
func (f *File) ReadInt16() (int16, error) {
	v, err := f.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a 32-bit unsigned integer (big endian)
func (f *File) ReadUint32() (uint32, error) {
	if _, err := f.Read(f.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(f.buf[:4]), nil
}

// ReadInt32 reads a 32-bit signed integer (big endian)
func (f *File) ReadInt32() (int32, error) {
	v, err := f.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a 64-bit unsigned integer (big endian)
func (f *File) ReadUint64() (uint64, error) {
	if _, err := f.Read(f.buf[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(f.buf[:8]), nil
}

// ReadInt64 reads a 64-bit signed integer (big endian)
func (f *File) ReadInt64() (int64, error) {
	v, err := f.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads an IEEE 754 single (big endian)
func (f *File) ReadFloat32() (float32, error) {
	v, err := f.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 reads an IEEE 754 double (big endian)
func (f *File) ReadFloat64() (float64, error) {
	v, err := f.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadLength reads a section length: 4 bytes in PSD documents, 8 in PSB.
func (f *File) ReadLength() (int64, error) {
	if f.big {
		v, err := f.ReadUint64()
		if err != nil {
			return 0, err
		}
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("length %d out of range", v)
		}
		return int64(v), nil
	}
	v, err := f.ReadUint32()
	return int64(v), err
}

// lengthSize is the width in bytes of the fields read by ReadLength.
func (f *File) lengthSize() int64 {
	if f.big {
		return 8
	}
	return 4
}

// countSize is the width in bytes of an RLE scan line byte count.
func (f *File) countSize() int64 {
	if f.big {
		return 4
	}
	return 2
}

// ReadPascalString reads a length-prefixed string and skips the padding
// needed to make the total size (prefix included) a multiple of align. It
// returns the string and the total number of bytes consumed.
func (f *File) ReadPascalString(align int) (string, int, error) {
	n, err := f.ReadByte()
	if err != nil {
		return "", 0, err
	}
	var s string
	if n > 0 {
		if s, err = f.ReadString(int(n)); err != nil {
			return "", 0, err
		}
	}
	size := int(n) + 1
	if align > 1 {
		if rem := size % align; rem != 0 {
			pad := align - rem
			if err := f.Skip(int64(pad)); err != nil {
				return "", 0, err
			}
			size += pad
		}
	}
	return s, size, nil
}

// ReadUnicodeString reads a 4-byte code unit count followed by UTF-16BE
// text. A trailing NUL is dropped.
func (f *File) ReadUnicodeString() (string, error) {
	count, err := f.ReadUint32()
	if err != nil {
		return "", err
	}
	if count == 0 {
		return "", nil
	}
	data, err := f.ReadBytes(int64(count) * 2)
	if err != nil {
		return "", err
	}
	return decodeUTF16(data), nil
}

func decodeUTF16(data []byte) string {
	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	for len(units) > 0 && units[len(units)-1] == 0 {
		units = units[:len(units)-1]
	}
	return string(utf16.Decode(units))
}

// Section returns a view over the next n bytes. Reads through the view
// report EOF at its bound regardless of how much data follows in the
// parent. The parent position is not advanced.
func (f *File) Section(n int64) (*File, error) {
	pos, err := f.Tell()
	if err != nil {
		return nil, err
	}
	if n < 0 || n > f.size-pos {
		return nil, io.ErrUnexpectedEOF
	}
	ra, ok := f.rs.(io.ReaderAt)
	if !ok {
		ra = &seekReaderAt{rs: f.rs}
	}
	return &File{rs: io.NewSectionReader(ra, pos, n), size: n, big: f.big}, nil
}

// Remaining reports the bytes left before the end of the source.
func (f *File) Remaining() (int64, error) {
	pos, err := f.Tell()
	if err != nil {
		return 0, err
	}
	return f.size - pos, nil
}

// seekReaderAt adapts a plain io.ReadSeeker to io.ReaderAt. It restores
// the stream position after every read.
type seekReaderAt struct {
	rs io.ReadSeeker
}

func (s *seekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	cur, err := s.rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	defer s.rs.Seek(cur, io.SeekStart)

	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(s.rs, p)
}
