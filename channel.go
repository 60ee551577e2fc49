package psd

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
)

// Compression is the image data compression method.
type Compression uint16

const (
	CompressionRaw           Compression = 0
	CompressionRLE           Compression = 1
	CompressionZIP           Compression = 2
	CompressionZIPPrediction Compression = 3
)

func (c Compression) String() string {
	switch c {
	case CompressionRaw:
		return "raw"
	case CompressionRLE:
		return "rle"
	case CompressionZIP:
		return "zip"
	case CompressionZIPPrediction:
		return "zip with prediction"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(c))
	}
}

// readCompression reads the 2-byte compression tag and rejects the methods
// that cannot be decoded.
func readCompression(f *File) (Compression, error) {
	pos, _ := f.Tell()
	v, err := f.ReadUint16()
	if err != nil {
		return 0, fmt.Errorf("failed to read compression method: %w", err)
	}
	c := Compression(v)
	switch c {
	case CompressionRaw, CompressionRLE:
		return c, nil
	case CompressionZIP, CompressionZIPPrediction:
		return c, UnsupportedError(c.String() + " compression")
	default:
		return c, formatErrorf(pos, "unknown compression method %d", v)
	}
}

// readByteCounts reads the scan line byte count table of RLE data: 2-byte
// entries in PSD documents and 4-byte entries in PSB.
func readByteCounts(f *File, n int) ([]uint32, error) {
	size := f.countSize()
	pos, err := f.Tell()
	if err != nil {
		return nil, err
	}
	if need := int64(n) * size; need > f.Size()-pos {
		return nil, formatErrorf(pos, "RLE byte count table of %d entries runs past the end of the file", n)
	}
	data, err := f.ReadBytes(int64(n) * size)
	if err != nil {
		return nil, fmt.Errorf("failed to read RLE byte counts: %w", err)
	}
	counts := make([]uint32, n)
	for i := range counts {
		if f.big {
			counts[i] = binary.BigEndian.Uint32(data[i*4:])
		} else {
			counts[i] = uint32(binary.BigEndian.Uint16(data[i*2:]))
		}
	}
	return counts, nil
}

// minPackedRow is the shortest PackBits encoding of an n byte line: every
// packet takes at least two bytes and yields at most 128.
func minPackedRow(n int) int64 {
	return 2 * int64((n+127)/128)
}

// checkCounts verifies an RLE byte count table against the avail bytes of
// compressed data that follow it.
func checkCounts(counts []uint32, rowBytes int, avail, pos int64) error {
	least := minPackedRow(rowBytes)
	var sum int64
	for i, n := range counts {
		if int64(n) < least {
			return formatErrorf(pos, "scan line %d: %d compressed bytes cannot hold %d bytes", i, n, rowBytes)
		}
		sum += int64(n)
	}
	if sum > avail {
		return formatErrorf(pos, "compressed scan lines need %d bytes, %d left", sum, avail)
	}
	return nil
}

// channelPlan tells the decoder what to do with one stored channel.
type channelPlan struct {
	id     int16
	band   int // destination band, -1 to skip
	invert bool
	length int64 // declared length of a layer channel, tag included
}

// channelDecoder reconstructs planar channel data into a raster. Region is
// in channel coordinates and already clipped to the channel bounds.
type channelDecoder struct {
	ctx      context.Context
	f        *File
	width    int
	height   int
	depth    int
	region   image.Rectangle
	xSub     int
	ySub     int
	dst      *Raster
	progress func(float64)

	buf  []byte
	line []byte
}

func (d *channelDecoder) rowBytes() int {
	return (d.width*d.depth + 7) / 8
}

// compositeData is the header of the image data section: the compression
// method and, for RLE, the byte counts of every channel's scan lines.
type compositeData struct {
	comp   Compression
	counts []uint32
}

// readComposite reads the header of the image data section and checks that
// the source holds enough bytes for channels planes. Nothing is allocated
// for the pixels until this passes.
func (d *channelDecoder) readComposite(channels int) (compositeData, error) {
	comp, err := readCompression(d.f)
	if err != nil {
		return compositeData{}, err
	}
	pos, err := d.f.Tell()
	if err != nil {
		return compositeData{}, err
	}
	rowBytes := d.rowBytes()
	if comp == CompressionRaw {
		need := int64(channels) * int64(d.height) * int64(rowBytes)
		if avail := d.f.Size() - pos; need > avail {
			return compositeData{}, formatErrorf(pos, "%d channels of %dx%d need %d bytes of image data, %d left",
				channels, d.width, d.height, need, avail)
		}
		return compositeData{comp: comp}, nil
	}

	counts, err := readByteCounts(d.f, channels*d.height)
	if err != nil {
		return compositeData{}, err
	}
	end, err := d.f.Tell()
	if err != nil {
		return compositeData{}, err
	}
	if err := checkCounts(counts, rowBytes, d.f.Size()-end, pos); err != nil {
		return compositeData{}, err
	}
	return compositeData{comp: comp, counts: counts}, nil
}

// decodeComposite decodes the channels that follow the header read by
// readComposite. Channels after the last planned one are left unread.
func (d *channelDecoder) decodeComposite(plans []channelPlan, data compositeData) (bool, error) {
	for c, p := range plans {
		var rows []uint32
		if data.counts != nil {
			rows = data.counts[c*d.height : (c+1)*d.height]
		}
		aborted, err := d.decodeChannel(c, len(plans), p, data.comp, rows)
		if err != nil || aborted {
			return aborted, err
		}
	}
	return false, nil
}

// checkLayer verifies that the channels of a layer starting at off lie
// inside the source and that every decoded channel is long enough for its
// scan lines in the most compact encoding.
func (d *channelDecoder) checkLayer(plans []channelPlan, off int64) error {
	rowBytes := d.rowBytes()
	rows := int64(d.height)
	least := 2 + rows*min(int64(rowBytes), d.f.countSize()+minPackedRow(rowBytes))
	for _, p := range plans {
		if p.length < 0 || p.length > d.f.Size()-off {
			return formatErrorf(off, "channel %d: %d bytes run past the end of the file", p.id, p.length)
		}
		if p.band >= 0 && p.length < least {
			return formatErrorf(off, "channel %d: %d bytes cannot hold %d rows of %d bytes", p.id, p.length, rows, rowBytes)
		}
		off += p.length
	}
	return nil
}

// decodeLayer reads the channels of one layer starting at off. Every
// channel carries its own compression tag and byte count table.
func (d *channelDecoder) decodeLayer(plans []channelPlan, off int64) (bool, error) {
	rowBytes := d.rowBytes()
	for c, p := range plans {
		next := off + p.length
		if p.band < 0 || p.length < 2 {
			off = next
			continue
		}
		if err := d.f.SeekTo(off); err != nil {
			return false, err
		}
		comp, err := readCompression(d.f)
		if err != nil {
			return false, fmt.Errorf("channel %d: %w", p.id, err)
		}
		var rows []uint32
		switch comp {
		case CompressionRLE:
			if rows, err = readByteCounts(d.f, d.height); err != nil {
				return false, fmt.Errorf("channel %d: %w", p.id, err)
			}
			pos, err := d.f.Tell()
			if err != nil {
				return false, err
			}
			if err := checkCounts(rows, rowBytes, next-pos, off); err != nil {
				return false, fmt.Errorf("channel %d: %w", p.id, err)
			}
		case CompressionRaw:
			if need := int64(d.height) * int64(rowBytes); need > p.length-2 {
				return false, formatErrorf(off, "channel %d: %d bytes cannot hold %d rows of %d bytes", p.id, p.length, d.height, rowBytes)
			}
		}
		aborted, err := d.decodeChannel(c, len(plans), p, comp, rows)
		if err != nil || aborted {
			return aborted, err
		}
		off = next
	}
	return false, d.f.SeekTo(off)
}

// decodeChannel walks every scan line of one channel. Lines outside the
// region, off the subsampling grid, or of a skipped channel are consumed
// by their declared length without decoding.
func (d *channelDecoder) decodeChannel(c, total int, p channelPlan, comp Compression, counts []uint32) (bool, error) {
	rowBytes := d.rowBytes()
	if cap(d.line) < rowBytes {
		d.line = make([]byte, rowBytes)
	}
	line := d.line[:rowBytes]

	for y := 0; y < d.height; y++ {
		if d.ctx.Err() != nil {
			return true, nil
		}

		n := int64(rowBytes)
		if comp == CompressionRLE {
			n = int64(counts[y])
		}
		pos, err := d.f.Tell()
		if err != nil {
			return false, err
		}
		if n > d.f.Size()-pos {
			return false, formatErrorf(pos, "channel %d row %d: %d bytes run past the end of the file", p.id, y, n)
		}

		wanted := p.band >= 0 && y >= d.region.Min.Y && y < d.region.Max.Y && (y-d.region.Min.Y)%d.ySub == 0
		if !wanted {
			if err := d.f.Skip(n); err != nil {
				return false, err
			}
		} else {
			src, err := d.read(n)
			if err != nil {
				return false, fmt.Errorf("failed to read channel %d row %d: %w", p.id, y, err)
			}
			if comp == CompressionRLE {
				if err := unpackBits(line, src); err != nil {
					return false, formatErrorf(pos, "channel %d row %d: %v", p.id, y, err)
				}
			} else {
				line = src
			}
			d.copyRow(line, (y-d.region.Min.Y)/d.ySub, p)
		}

		if d.progress != nil {
			d.progress(float64(c)/float64(total) + float64(y)/float64(d.height*total))
		}
	}
	return false, nil
}

func (d *channelDecoder) read(n int64) ([]byte, error) {
	if int64(cap(d.buf)) < n {
		d.buf = make([]byte, n)
	}
	buf := d.buf[:n]
	if _, err := d.f.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// copyRow stores the region's samples of one decoded line into row y of
// the destination band. Inverted channels are stored as their complement.
func (d *channelDecoder) copyRow(line []byte, y int, p channelPlan) {
	if d.depth == 1 {
		d.copyBits(line, y, p.band)
		return
	}
	dst := d.dst
	bps := d.depth / 8
	x0 := d.region.Min.X

	if dst.Layout == LayoutBanded && d.xSub == 1 {
		row := dst.row(p.band, y)
		copy(row, line[x0*bps:])
		if p.invert {
			for i := range row {
				row[i] = ^row[i]
			}
		}
		return
	}

	for x := 0; x < dst.Width; x++ {
		sx := x0 + x*d.xSub
		plane, o := dst.offset(x, y, p.band)
		out := dst.Pix[plane][o : o+bps]
		copy(out, line[sx*bps:sx*bps+bps])
		if p.invert {
			for i := range out {
				out[i] = ^out[i]
			}
		}
	}
}

// copyBits handles 1-bit lines. Stored bits use 1 for black; the raster
// uses 1 for white, so every bit is flipped.
func (d *channelDecoder) copyBits(line []byte, y, band int) {
	dst := d.dst
	row := dst.row(band, y)
	x0 := d.region.Min.X

	if d.xSub == 1 && x0%8 == 0 {
		src := line[x0/8:]
		for i := range row {
			row[i] = ^src[i]
		}
		return
	}

	for x := 0; x < dst.Width; x++ {
		sx := x0 + x*d.xSub
		bit := (line[sx/8] >> (7 - uint(sx%8))) & 1
		dst.SetSample(x, y, band, uint32(bit^1))
	}
}
