package psd

import (
	"fmt"
)

// maxPackBitsRun is the longest literal or repeat run a control byte can
// describe.
const maxPackBitsRun = 128

// unpackBits decodes one PackBits compressed scan line from src into dst.
// Control bytes 0..127 copy n+1 literal bytes, 129..255 repeat the next
// byte 257-n times and 128 is a no-op. Output beyond len(dst) is dropped;
// a line that decodes short is an error.
func unpackBits(dst, src []byte) error {
	n := 0
	for i := 0; i < len(src) && n < len(dst); {
		c := src[i]
		i++
		switch {
		case c < 128:
			count := int(c) + 1
			if i+count > len(src) {
				return fmt.Errorf("literal run of %d bytes overruns compressed line of %d bytes", count, len(src))
			}
			n += copy(dst[n:], src[i:i+count])
			i += count
		case c > 128:
			if i >= len(src) {
				return fmt.Errorf("repeat run missing its value byte")
			}
			v := src[i]
			i++
			for count := 257 - int(c); count > 0 && n < len(dst); count-- {
				dst[n] = v
				n++
			}
		}
	}
	if n < len(dst) {
		return fmt.Errorf("compressed line decodes to %d bytes, expected %d", n, len(dst))
	}
	return nil
}

// packBits appends the PackBits encoding of src to dst. Runs of two or
// more equal bytes become repeat runs.
func packBits(dst, src []byte) []byte {
	for i := 0; i < len(src); {
		j := i + 1
		for j < len(src) && j-i < maxPackBitsRun && src[j] == src[i] {
			j++
		}
		if j-i >= 2 {
			dst = append(dst, byte(257-(j-i)), src[i])
			i = j
			continue
		}

		j = i + 1
		for j < len(src) && j-i < maxPackBitsRun {
			if j+1 < len(src) && src[j] == src[j+1] {
				break
			}
			j++
		}
		dst = append(dst, byte(j-i-1))
		dst = append(dst, src[i:j]...)
		i = j
	}
	return dst
}
