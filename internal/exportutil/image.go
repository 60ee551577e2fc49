package exportutil

import (
	"fmt"
	"image"
	_ "image/jpeg" // decoder registration for ReadImage
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// Image formats accepted by WriteImage.
const (
	FormatPNG  = "png"
	FormatTIFF = "tiff"
)

// Scale resizes img by factor with Catmull-Rom interpolation. A factor of
// one returns img unchanged. Deep images keep 16 bits per sample.
func Scale(img image.Image, factor float64) (image.Image, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("invalid scale factor %g", factor)
	}
	if factor == 1 {
		return img, nil
	}
	b := img.Bounds()
	w := max(int(math.Round(float64(b.Dx())*factor)), 1)
	h := max(int(math.Round(float64(b.Dy())*factor)), 1)

	var dst draw.Image
	if isDeep(img) {
		dst = image.NewNRGBA64(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

func isDeep(img image.Image) bool {
	switch img.(type) {
	case *image.Gray16, *image.RGBA64, *image.NRGBA64:
		return true
	}
	return false
}

// WriteImage encodes img as PNG or TIFF. TIFF output is deflate
// compressed.
func WriteImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// ReadImage decodes a PNG, JPEG or TIFF file.
func ReadImage(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, format, nil
}
