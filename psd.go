package psd

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"go.uber.org/zap"
)

// parse stages, advanced monotonically and never repeated
type stage int

const (
	stageUnparsed stage = iota
	stageHeader
	stageResources
	stageLayers
	stageImageData
)

// PSD decodes one Photoshop document. Queries parse only the sections they
// need and remember the offsets found on the way, so repeated queries do
// not touch the source again. A PSD is not safe for concurrent use; decode
// different images in parallel with separate instances.
type PSD struct {
	file   *File
	closer io.Closer

	log       *zap.Logger
	strict    bool
	decoders  map[uint16]ResourceDecoder
	warnings  []Warning
	stage     stage
	header    *Header
	colorData *ColorData

	resourcesStart int64
	resources      *ResourceSection // nil while only located
	layersStart    int64
	layers         *LayerMaskSection
	imageDataStart int64
}

// Option configures a PSD.
type Option func(*PSD)

// WithLogger sets the logger used for stage transitions and warnings.
func WithLogger(log *zap.Logger) Option {
	return func(p *PSD) {
		if log != nil {
			p.log = log
		}
	}
}

// WithStrictResources makes a failing resource decoder abort parsing
// instead of producing a warning.
func WithStrictResources() Option {
	return func(p *PSD) {
		p.strict = true
	}
}

// WithResourceDecoder adds or replaces the decoder for a resource ID.
func WithResourceDecoder(id uint16, dec ResourceDecoder) Option {
	return func(p *PSD) {
		p.decoders[id] = dec
	}
}

// NewDecoder prepares a document for reading. Nothing is read until the
// first query.
func NewDecoder(rs io.ReadSeeker, opts ...Option) (*PSD, error) {
	f, err := newFile(rs)
	if err != nil {
		return nil, err
	}
	p := &PSD{
		file:     f,
		log:      zap.NewNop(),
		decoders: defaultResourceDecoders(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// New creates a new PSD instance from a file path
func New(filename string, opts ...Option) (*PSD, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	p, err := NewDecoder(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	p.closer = f
	return p, nil
}

// Open opens a PSD file, parses its metadata, and executes the provided
// function
func Open(filename string, fn func(*PSD) error, opts ...Option) error {
	psd, err := New(filename, opts...)
	if err != nil {
		return err
	}
	defer psd.Close()

	if err := psd.Parse(); err != nil {
		return err
	}
	return fn(psd)
}

// Close closes the underlying file when the PSD opened it.
func (p *PSD) Close() error {
	if p.closer != nil {
		err := p.closer.Close()
		p.closer = nil
		return err
	}
	return nil
}

// Parse runs every metadata stage: header, resources and layers.
func (p *PSD) Parse() error {
	if _, err := p.Resources(); err != nil {
		return err
	}
	return p.locateImageData()
}

func (p *PSD) readHeader() error {
	if p.stage >= stageHeader {
		return nil
	}
	if err := p.file.SeekTo(0); err != nil {
		return err
	}
	h, warnings, err := parseHeader(p.file)
	if err != nil {
		return err
	}
	cd, err := parseColorData(p.file, h)
	if err != nil {
		return err
	}
	if p.resourcesStart, err = p.file.Tell(); err != nil {
		return err
	}
	p.header, p.colorData = h, cd
	p.addWarnings(warnings...)
	p.stage = stageHeader
	p.log.Debug("header read",
		zap.String("mode", h.ModeName()),
		zap.Int("width", h.Width()),
		zap.Int("height", h.Height()),
		zap.Uint16("depth", h.Depth),
		zap.Uint16("channels", h.Channels),
		zap.Int64("resources", p.resourcesStart))
	return nil
}

// readResources parses the resource section, or with parse false only
// measures it to find the layer section.
func (p *PSD) readResources(parse bool) error {
	if err := p.readHeader(); err != nil {
		return err
	}
	if p.resources != nil || (!parse && p.stage >= stageResources) {
		return nil
	}
	if err := p.file.SeekTo(p.resourcesStart); err != nil {
		return err
	}

	if parse {
		rp := &resourceParser{f: p.file, decoders: p.decoders, strict: p.strict, log: p.log}
		section, err := rp.parse()
		if err != nil {
			return err
		}
		p.resources = section
		p.layersStart = section.End
		p.addWarnings(rp.warnings...)
		p.log.Debug("resources parsed", zap.Int("count", len(section.Resources)), zap.Int64("end", section.End))
	} else {
		length, err := p.file.ReadUint32()
		if err != nil {
			return fmt.Errorf("failed to read resources length: %w", err)
		}
		p.layersStart = p.resourcesStart + 4 + int64(length)
		if p.layersStart > p.file.Size() {
			return formatErrorf(p.resourcesStart, "image resources length %d exceeds file size", length)
		}
		p.log.Debug("resources located", zap.Int64("end", p.layersStart))
	}
	if p.stage < stageResources {
		p.stage = stageResources
	}
	return nil
}

func (p *PSD) readLayers() error {
	if p.stage >= stageLayers {
		return nil
	}
	if err := p.readResources(false); err != nil {
		return err
	}
	if err := p.file.SeekTo(p.layersStart); err != nil {
		return err
	}
	section, err := parseLayerMaskSection(p.file)
	if err != nil {
		return err
	}
	p.layers = section
	p.imageDataStart = section.ImageDataStart
	p.stage = stageLayers
	p.log.Debug("layers read",
		zap.Int("count", len(section.Layers)),
		zap.Bool("alpha", section.HasAlpha()),
		zap.Int64("image_data", p.imageDataStart))
	return nil
}

func (p *PSD) locateImageData() error {
	if p.stage >= stageImageData {
		return nil
	}
	if err := p.readLayers(); err != nil {
		return err
	}
	if p.imageDataStart+2 > p.file.Size() {
		return formatErrorf(p.imageDataStart, "image data section missing")
	}
	p.stage = stageImageData
	return nil
}

func (p *PSD) addWarnings(ws ...Warning) {
	for _, w := range ws {
		p.log.Warn("psd warning", zap.String("warning", w.String()))
	}
	p.warnings = append(p.warnings, ws...)
}

// Header returns the PSD header
func (p *PSD) Header() (*Header, error) {
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p.header, nil
}

// ColorData returns the indexed color table, or nil for other modes.
func (p *PSD) ColorData() (*ColorData, error) {
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p.colorData, nil
}

// Palette returns the palette of an indexed document.
func (p *PSD) Palette() (color.Palette, error) {
	cd, err := p.ColorData()
	if err != nil {
		return nil, err
	}
	if cd == nil {
		return nil, fmt.Errorf("psd: %s document has no palette", p.header.ModeName())
	}
	return cd.Palette(), nil
}

// Resources returns the parsed image resources. Decoder failures become
// warnings unless WithStrictResources was given.
func (p *PSD) Resources() (*ResourceSection, error) {
	if err := p.readResources(true); err != nil {
		return nil, err
	}
	return p.resources, nil
}

// Layers returns the layer records in file order, bottom-most first.
func (p *PSD) Layers() ([]*LayerInfo, error) {
	if err := p.readLayers(); err != nil {
		return nil, err
	}
	return p.layers.Layers, nil
}

// LayerMask returns the layer and mask section.
func (p *PSD) LayerMask() (*LayerMaskSection, error) {
	if err := p.readLayers(); err != nil {
		return nil, err
	}
	return p.layers, nil
}

// LayerCount returns the number of layers.
func (p *PSD) LayerCount() (int, error) {
	layers, err := p.Layers()
	return len(layers), err
}

// HasAlpha reports whether the composite stores merged transparency, as
// signalled by a negative layer count.
func (p *PSD) HasAlpha() (bool, error) {
	if err := p.readLayers(); err != nil {
		return false, err
	}
	return p.layers.HasAlpha(), nil
}

// NumImages returns one for the composite plus one per layer. The
// composite is counted even when the document has no real merged data.
func (p *PSD) NumImages() (int, error) {
	n, err := p.LayerCount()
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// layer returns the record of image index i, or nil for the composite.
func (p *PSD) layer(i int) (*LayerInfo, error) {
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfBounds, i)
	}
	if i == 0 {
		return nil, p.readHeader()
	}
	layers, err := p.Layers()
	if err != nil {
		return nil, err
	}
	if i > len(layers) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfBounds, i, len(layers)+1)
	}
	return layers[i-1], nil
}

// Width returns the width of image i.
func (p *PSD) Width(i int) (int, error) {
	l, err := p.layer(i)
	if err != nil {
		return 0, err
	}
	if l == nil {
		return p.header.Width(), nil
	}
	return max(l.Width(), 0), nil
}

// Height returns the height of image i.
func (p *PSD) Height(i int) (int, error) {
	l, err := p.layer(i)
	if err != nil {
		return 0, err
	}
	if l == nil {
		return p.header.Height(), nil
	}
	return max(l.Height(), 0), nil
}

// RawLayout describes the samples Decode produces for an image before any
// color conversion.
type RawLayout struct {
	Mode       ColorMode
	Depth      int
	ColorBands int
	HasAlpha   bool
}

// Bands is the total band count, alpha included.
func (l RawLayout) Bands() int {
	if l.HasAlpha {
		return l.ColorBands + 1
	}
	return l.ColorBands
}

// Model is the color model of the samples.
func (l RawLayout) Model() ColorModel {
	return modelForMode(l.Mode)
}

// RawLayout returns the native sample layout of image i.
func (p *PSD) RawLayout(i int) (RawLayout, error) {
	l, err := p.layer(i)
	if err != nil {
		return RawLayout{}, err
	}
	h := p.header
	layout, err := rawLayout(h.Mode, int(h.Depth), int(h.Channels))
	if err != nil {
		return RawLayout{}, err
	}
	if l != nil {
		layout.HasAlpha = l.HasTransparency()
	}
	return layout, nil
}

// rawLayout checks a mode, depth and channel count combination. Channels
// beyond the color components make the first extra one alpha.
func rawLayout(mode ColorMode, depth, channels int) (RawLayout, error) {
	layout := RawLayout{Mode: mode, Depth: depth}
	unsupported := func() (RawLayout, error) {
		return RawLayout{}, UnsupportedError(fmt.Sprintf("%d channels of %d bits in %s mode", channels, depth, mode))
	}
	switch mode {
	case ColorModeBitmap:
		if depth != 1 || channels < 1 {
			return unsupported()
		}
		layout.ColorBands = 1
	case ColorModeIndexedColor:
		if depth != 8 || channels < 1 {
			return unsupported()
		}
		layout.ColorBands = 1
	case ColorModeGrayscale, ColorModeDuotone:
		if depth == 1 || channels < 1 {
			return unsupported()
		}
		layout.ColorBands = 1
		layout.HasAlpha = channels > 1
	case ColorModeRGBColor:
		if depth == 1 || channels < 3 {
			return unsupported()
		}
		layout.ColorBands = 3
		layout.HasAlpha = channels > 3
	case ColorModeCMYKColor:
		if (depth != 8 && depth != 16) || channels < 4 {
			return unsupported()
		}
		layout.ColorBands = 4
		layout.HasAlpha = channels > 4
	default:
		return unsupported()
	}
	return layout, nil
}

// DecodeOptions control a single Decode call.
type DecodeOptions struct {
	// Region selects the source rectangle in image coordinates, with the
	// origin at the image's top left corner. The zero value is the whole
	// image.
	Region image.Rectangle

	// XSubsample and YSubsample keep every Nth column and row, starting at
	// the region's origin. Values below 1 mean 1.
	XSubsample int
	YSubsample int

	Layout Layout

	// ColorSpace converts the result when set and different from the
	// source space.
	ColorSpace *ColorSpace

	// Progress receives the completed fraction after every scan line.
	Progress func(float64)
}

// Result is a decoded image.
type Result struct {
	Index int

	// Raster is nil for a layer with an empty rectangle and for a document
	// with a zero dimension.
	Raster     *Raster
	Layout     RawLayout
	ColorSpace ColorSpace
	Palette    color.Palette

	// Origin is the position of the raster's top left sample in document
	// coordinates.
	Origin image.Point

	// Aborted is set when the context was cancelled; the raster then holds
	// only the rows decoded before that.
	Aborted  bool
	Warnings []Warning
}

// Decode reads the pixels of image i: 0 for the composite, 1..N for the
// layers in file order. Cancelling ctx stops decoding at the next scan line
// and yields a partial result with Aborted set rather than an error.
func (p *PSD) Decode(ctx context.Context, i int, opts *DecodeOptions) (*Result, error) {
	if opts == nil {
		opts = &DecodeOptions{}
	}
	if err := p.locateImageData(); err != nil {
		return nil, err
	}
	l, err := p.layer(i)
	if err != nil {
		return nil, err
	}
	layout, err := p.RawLayout(i)
	if err != nil {
		return nil, err
	}

	h := p.header
	res := &Result{Index: i, Layout: layout, ColorSpace: DefaultColorSpace(layout.Model())}
	if p.colorData != nil {
		res.Palette = p.colorData.Palette()
	}
	if opts.ColorSpace != nil {
		if res.ColorSpace, err = p.ColorSpace(); err != nil {
			return nil, err
		}
	}

	width, height := h.Width(), h.Height()
	if l != nil {
		if l.IsEmpty() {
			res.Origin = image.Pt(int(l.Left), int(l.Top))
			return res, nil
		}
		width, height = l.Width(), l.Height()
	}

	if width == 0 || height == 0 {
		return res, nil
	}

	bounds := image.Rect(0, 0, width, height)
	region := bounds
	if !opts.Region.Empty() {
		region = opts.Region.Intersect(bounds)
		if region.Empty() {
			return nil, fmt.Errorf("psd: region %v lies outside image %d bounds %v", opts.Region, i, bounds)
		}
	}
	xSub, ySub := max(opts.XSubsample, 1), max(opts.YSubsample, 1)

	d := &channelDecoder{
		ctx:      ctx,
		f:        p.file,
		width:    width,
		height:   height,
		depth:    layout.Depth,
		region:   region,
		xSub:     xSub,
		ySub:     ySub,
		progress: opts.Progress,
	}

	// Stored data is checked against the source size before the raster is
	// allocated.
	cmyk := layout.Mode == ColorModeCMYKColor
	var plans []channelPlan
	var composite compositeData
	if l == nil {
		plans = make([]channelPlan, layout.Bands())
		for c := range plans {
			plans[c] = channelPlan{id: int16(c), band: c, invert: cmyk && c < layout.ColorBands}
		}
		if err := p.file.SeekTo(p.imageDataStart); err != nil {
			return nil, err
		}
		if composite, err = d.readComposite(int(h.Channels)); err != nil {
			return nil, fmt.Errorf("failed to decode composite image: %w", err)
		}
	} else {
		plans = make([]channelPlan, len(l.Channels))
		for c, ch := range l.Channels {
			plan := channelPlan{id: ch.ID, band: -1, length: ch.Length}
			switch {
			case ch.ID >= 0 && int(ch.ID) < layout.ColorBands:
				plan.band = int(ch.ID)
				plan.invert = cmyk
			case ch.ID == ChannelTransparency && layout.HasAlpha:
				plan.band = layout.Bands() - 1
			}
			plans[c] = plan
		}
		if err := d.checkLayer(plans, p.layers.layerDataOffset(i-1)); err != nil {
			return nil, fmt.Errorf("failed to decode layer %d: %w", i, err)
		}
	}

	raster, err := NewRaster((region.Dx()+xSub-1)/xSub, (region.Dy()+ySub-1)/ySub, layout.Bands(), layout.Depth, opts.Layout)
	if err != nil {
		return nil, err
	}
	d.dst = raster
	res.Raster = raster
	res.Origin = region.Min

	if l == nil {
		res.Aborted, err = d.decodeComposite(plans, composite)
		if err != nil {
			return nil, fmt.Errorf("failed to decode composite image: %w", err)
		}
		if layout.Mode == ColorModeRGBColor && layout.HasAlpha {
			decomposeAlpha(raster)
		}
	} else {
		res.Origin = res.Origin.Add(image.Pt(int(l.Left), int(l.Top)))
		res.Aborted, err = d.decodeLayer(plans, p.layers.layerDataOffset(i-1))
		if err != nil {
			return nil, fmt.Errorf("failed to decode layer %d: %w", i, err)
		}
	}

	if opts.ColorSpace != nil {
		converted, w, err := convertRaster(raster, res.ColorSpace, *opts.ColorSpace, layout.HasAlpha)
		if err != nil {
			return nil, err
		}
		if w != nil {
			res.Warnings = append(res.Warnings, *w)
			p.addWarnings(*w)
		}
		res.Raster = converted
		res.ColorSpace = *opts.ColorSpace
		res.Layout.ColorBands = opts.ColorSpace.Model.components()
	}

	p.log.Debug("image decoded",
		zap.Int("index", i),
		zap.Int("width", raster.Width),
		zap.Int("height", raster.Height),
		zap.Bool("aborted", res.Aborted))
	return res, nil
}

// ColorSpace returns the source color space of the document: the embedded
// ICC profile when it matches the color mode, the mode's default otherwise.
func (p *PSD) ColorSpace() (ColorSpace, error) {
	if err := p.readHeader(); err != nil {
		return ColorSpace{}, err
	}
	model := modelForMode(p.header.Mode)
	resources, err := p.Resources()
	if err != nil {
		return ColorSpace{}, err
	}
	if icc, ok := resources.Get(ResourceICCProfile).(*ICCProfile); ok && icc.Header.ColorModel() == model {
		return NewColorSpace(model, icc.Data), nil
	}
	return DefaultColorSpace(model), nil
}

// Thumbnails returns the thumbnail resources in file order.
func (p *PSD) Thumbnails() ([]*Thumbnail, error) {
	resources, err := p.Resources()
	if err != nil {
		return nil, err
	}
	var out []*Thumbnail
	for _, res := range resources.Resources {
		if t, ok := res.(*Thumbnail); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// NumThumbnails returns the number of decodable thumbnails.
func (p *PSD) NumThumbnails() (int, error) {
	thumbs, err := p.Thumbnails()
	return len(thumbs), err
}

// ReadThumbnail decodes thumbnail i.
func (p *PSD) ReadThumbnail(i int) (image.Image, error) {
	thumbs, err := p.Thumbnails()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(thumbs) {
		return nil, fmt.Errorf("%w: thumbnail %d of %d", ErrIndexOutOfBounds, i, len(thumbs))
	}
	return thumbs[i].Image()
}

// Warnings returns the diagnostics collected so far.
func (p *PSD) Warnings() []Warning {
	return p.warnings
}
