package psd

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfBounds is returned for image indexes outside [0, NumImages).
var ErrIndexOutOfBounds = errors.New("psd: image index out of bounds")

// FormatError reports a document that violates the file format. The
// stream position cannot be trusted after one is returned.
type FormatError struct {
	Offset int64
	Msg    string
}

func (e *FormatError) Error() string {
	if e.Offset < 0 {
		return "psd: invalid format: " + e.Msg
	}
	return fmt.Sprintf("psd: invalid format at offset %d: %s", e.Offset, e.Msg)
}

func formatErrorf(offset int64, format string, args ...interface{}) error {
	return &FormatError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedError reports a well-formed document that uses a feature this
// package does not implement.
type UnsupportedError string

func (e UnsupportedError) Error() string {
	return "psd: unsupported feature: " + string(e)
}

// IsFormatError reports whether err wraps a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsUnsupported reports whether err wraps an UnsupportedError.
func IsUnsupported(err error) bool {
	var ue UnsupportedError
	return errors.As(err, &ue)
}

// Warning is a non-fatal diagnostic collected while parsing.
type Warning struct {
	Offset     int64
	ResourceID uint16 // zero when not tied to an image resource
	Message    string
	Err        error
}

func (w Warning) String() string {
	s := w.Message
	if w.ResourceID != 0 {
		s = fmt.Sprintf("resource 0x%04X: %s", w.ResourceID, s)
	}
	if w.Offset >= 0 {
		s = fmt.Sprintf("%s (offset %d)", s, w.Offset)
	}
	if w.Err != nil {
		s += ": " + w.Err.Error()
	}
	return s
}
