package psd

import (
	"bytes"
	"fmt"
	"image"

	"github.com/gen2brain/jpegn"
	bst "github.com/mixcode/binarystruct"
)

// Thumbnail formats.
const (
	ThumbnailRawRGB = 0
	ThumbnailJPEG   = 1
)

const thumbnailHeaderSize = 28

// Thumbnail is resource 0x040C, or 0x0409 for documents written by
// Photoshop 4 (which stores JPEG data with red and blue swapped).
type Thumbnail struct {
	ResourceBlock
	Format         uint32
	Width          int
	Height         int
	WidthBytes     int // padded row size of raw data
	TotalSize      uint32
	CompressedSize uint32
	BitsPerPixel   uint16
	Planes         uint16
	Data           []byte
}

type rawThumbnailHeader struct {
	Format         uint32
	Width          uint32
	Height         uint32
	WidthBytes     uint32
	TotalSize      uint32
	CompressedSize uint32
	BitsPerPixel   uint16
	Planes         uint16
}

func decodeThumbnail(block ResourceBlock, f *File) (Resource, error) {
	var raw rawThumbnailHeader
	if _, err := bst.Read(f, bst.BigEndian, &raw); err != nil {
		return nil, fmt.Errorf("failed to read thumbnail header: %w", err)
	}
	if raw.Format != ThumbnailRawRGB && raw.Format != ThumbnailJPEG {
		return nil, fmt.Errorf("unknown thumbnail format %d", raw.Format)
	}
	if raw.BitsPerPixel != 24 || raw.Planes != 1 {
		return nil, fmt.Errorf("unsupported thumbnail layout: %d bits, %d planes", raw.BitsPerPixel, raw.Planes)
	}
	data, err := f.ReadBytes(block.Length - thumbnailHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read thumbnail data: %w", err)
	}
	return &Thumbnail{
		ResourceBlock:  block,
		Format:         raw.Format,
		Width:          int(raw.Width),
		Height:         int(raw.Height),
		WidthBytes:     int(raw.WidthBytes),
		TotalSize:      raw.TotalSize,
		CompressedSize: raw.CompressedSize,
		BitsPerPixel:   raw.BitsPerPixel,
		Planes:         raw.Planes,
		Data:           data,
	}, nil
}

// Image decodes the thumbnail pixels.
func (t *Thumbnail) Image() (image.Image, error) {
	switch t.Format {
	case ThumbnailJPEG:
		img, err := jpegn.Decode(bytes.NewReader(t.Data), &jpegn.Options{ToRGBA: true})
		if err != nil {
			return nil, fmt.Errorf("failed to decode JPEG thumbnail: %w", err)
		}
		if t.ID == ResourceThumbnailPS4 {
			return swapRedBlue(img), nil
		}
		return img, nil
	case ThumbnailRawRGB:
		return t.rawImage()
	default:
		return nil, UnsupportedError(fmt.Sprintf("thumbnail format %d", t.Format))
	}
}

func (t *Thumbnail) rawImage() (image.Image, error) {
	stride := t.WidthBytes
	if stride < t.Width*3 {
		stride = (t.Width*3 + 3) &^ 3
	}
	if len(t.Data) < stride*(t.Height-1)+t.Width*3 {
		return nil, fmt.Errorf("raw thumbnail data too short: %d bytes for %dx%d", len(t.Data), t.Width, t.Height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		src := t.Data[y*stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < t.Width; x++ {
			dst[4*x] = src[3*x]
			dst[4*x+1] = src[3*x+1]
			dst[4*x+2] = src[3*x+2]
			dst[4*x+3] = 0xff
		}
	}
	return img, nil
}

func swapRedBlue(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			i := dst.PixOffset(x-b.Min.X, y-b.Min.Y)
			dst.Pix[i] = uint8(bl >> 8)
			dst.Pix[i+1] = uint8(g >> 8)
			dst.Pix[i+2] = uint8(r >> 8)
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}
