// Package pngimage defines the decoded representation of a PNG or APNG
// image: the IHDR header, palette, transparency key, pixel data, and the
// ancillary chunks carried through verbatim.
package pngimage

import (
	"image/color"

	"github.com/pkg/errors"
)

// ColorType is the PNG color type byte from the IHDR chunk.
type ColorType uint8

const (
	ColorGray      ColorType = 0
	ColorRGB       ColorType = 2
	ColorIndexed   ColorType = 3
	ColorGrayAlpha ColorType = 4
	ColorRGBA      ColorType = 6
)

// String returns the canonical PNG spec name for the color type.
func (c ColorType) String() string {
	switch c {
	case ColorGray:
		return "Gray"
	case ColorRGB:
		return "RGB"
	case ColorIndexed:
		return "Indexed"
	case ColorGrayAlpha:
		return "GrayAlpha"
	case ColorRGBA:
		return "RGBA"
	default:
		return "Unknown"
	}
}

// Channels returns the number of samples per pixel for the color type,
// excluding any palette indirection.
func (c ColorType) Channels() int {
	switch c {
	case ColorGray:
		return 1
	case ColorRGB:
		return 3
	case ColorIndexed:
		return 1
	case ColorGrayAlpha:
		return 2
	case ColorRGBA:
		return 4
	default:
		return 0
	}
}

// HasAlpha reports whether the color type carries a per-pixel alpha sample.
func (c ColorType) HasAlpha() bool {
	return c == ColorGrayAlpha || c == ColorRGBA
}

// ValidBitDepths returns the bit depths the PNG spec allows for the color
// type, per spec.md §3's IhdrHeader invariant.
func (c ColorType) ValidBitDepths() []uint8 {
	switch c {
	case ColorGray:
		return []uint8{1, 2, 4, 8, 16}
	case ColorRGB, ColorGrayAlpha, ColorRGBA:
		return []uint8{8, 16}
	case ColorIndexed:
		return []uint8{1, 2, 4, 8}
	default:
		return nil
	}
}

// ValidDepth reports whether depth is legal for the color type.
func (c ColorType) ValidDepth(depth uint8) bool {
	for _, d := range c.ValidBitDepths() {
		if d == depth {
			return true
		}
	}
	return false
}

// InterlaceMethod is the IHDR interlace method byte.
type InterlaceMethod uint8

const (
	InterlaceNone  InterlaceMethod = 0
	InterlaceAdam7 InterlaceMethod = 1
)

// IHDRHeader is the parsed IHDR chunk.
type IHDRHeader struct {
	Width, Height     uint32
	BitDepth          uint8
	ColorType         ColorType
	CompressionMethod uint8
	FilterMethod      uint8
	InterlaceMethod   InterlaceMethod
}

// ErrInvalidDepth and ErrInvalidColorType mirror the boundary errors of
// spec.md §6.
var (
	ErrInvalidDepth     = errors.New("pngopt: invalid bit depth for color type")
	ErrInvalidColorType = errors.New("pngopt: invalid color type")
	ErrInvalidDimensions = errors.New("pngopt: invalid image dimensions")
)

// Validate checks the IHDR invariants from spec.md §3.
func (h IHDRHeader) Validate() error {
	if h.Width == 0 || h.Height == 0 || h.Width > 1<<31-1 || h.Height > 1<<31-1 {
		return ErrInvalidDimensions
	}
	switch h.ColorType {
	case ColorGray, ColorRGB, ColorIndexed, ColorGrayAlpha, ColorRGBA:
	default:
		return errors.Wrapf(ErrInvalidColorType, "color type %d", h.ColorType)
	}
	if !h.ColorType.ValidDepth(h.BitDepth) {
		return errors.Wrapf(ErrInvalidDepth, "color type %s, depth %d", h.ColorType, h.BitDepth)
	}
	if h.CompressionMethod != 0 || h.FilterMethod != 0 {
		return errors.New("pngopt: unsupported compression/filter method")
	}
	if h.InterlaceMethod != InterlaceNone && h.InterlaceMethod != InterlaceAdam7 {
		return errors.New("pngopt: unsupported interlace method")
	}
	return nil
}

// BitsPerPixel returns the bit count of one pixel under this header.
func (h IHDRHeader) BitsPerPixel() int {
	return h.ColorType.Channels() * int(h.BitDepth)
}

// RowBytes returns the byte width of one unfiltered scanline of width px
// pixels under this header's bit depth/color type.
func (h IHDRHeader) RowBytes(width int) int {
	bits := width * h.BitsPerPixel()
	return (bits + 7) / 8
}

// PixelStride returns the distance, in bytes, between a pixel and its
// "prior pixel" neighbor for filtering purposes (spec.md §4.5): one byte
// for sub-byte depths, else the pixel's byte width.
func (h IHDRHeader) PixelStride() int {
	bpp := h.BitsPerPixel()
	if bpp < 8 {
		return 1
	}
	return bpp / 8
}

// Palette is an ordered sequence of up to 256 RGB triples with an optional
// parallel alpha channel folded into Entries[i].A (spec.md §3; a shorter
// tRNS prefix means trailing entries default to fully opaque, which the
// parser/serializer is responsible for expanding/truncating).
type Palette struct {
	Entries []color.RGBA
}

// Len returns the number of palette entries.
func (p *Palette) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Entries)
}

// HasAlpha reports whether any entry has alpha other than fully opaque.
func (p *Palette) HasAlpha() bool {
	if p == nil {
		return false
	}
	for _, e := range p.Entries {
		if e.A != 255 {
			return true
		}
	}
	return false
}

// Transparency is the tRNS chunk's single-key form, used for the Gray and
// RGB color types (spec.md §3). Indexed-color transparency is carried as
// per-entry alpha on Palette instead.
type Transparency struct {
	GraySample uint16
	RGBSample  [3]uint16
}

// Pass is one Adam7 reduced image (or the sole pass of a non-interlaced
// image): raw, unfiltered scanlines.
type Pass struct {
	Width, Height int
	Rows          [][]byte // len(Rows) == Height, each len == RowBytes
}

// PixelData holds either the single non-interlaced pass or the seven Adam7
// passes (spec.md §3). A non-interlaced image has len(Passes) == 1; an
// interlaced image always has len(Passes) == 7, with zero-row/zero-column
// passes present as a Pass{Width or Height: 0} rather than omitted, per
// spec.md §4.2's "absent entirely" wording realized as an explicit
// zero-sized pass so indices stay positional.
type PixelData struct {
	Passes []Pass
}

// FilterType is the per-scanline filter byte prefix (spec.md §3/§4.5).
type FilterType uint8

const (
	FilterNone    FilterType = 0
	FilterSub     FilterType = 1
	FilterUp      FilterType = 2
	FilterAverage FilterType = 3
	FilterPaeth   FilterType = 4
)

// FilteredRow is one scanline's chosen filter and filtered bytes (not
// including the filter-type prefix byte itself).
type FilteredRow struct {
	Filter FilterType
	Data   []byte
}

// FilteredPass mirrors Pass but holds filtered rows.
type FilteredPass struct {
	Width, Height int
	Rows          []FilteredRow
}

// FilteredData mirrors PixelData but holds filtered rows, ready for
// concatenation and DEFLATE (spec.md §3).
type FilteredData struct {
	Passes []FilteredPass
}

// AncillaryChunk is an opaque chunk preserved verbatim alongside the
// decoded pixel model (spec.md §3/§4.8).
type AncillaryChunk struct {
	Tag     [4]byte
	Payload []byte
}

// DisposeOp is the fcTL dispose_op field (spec.md §4.9).
type DisposeOp uint8

const (
	DisposeNone       DisposeOp = 0
	DisposeBackground DisposeOp = 1
	DisposePrevious   DisposeOp = 2
)

// BlendOp is the fcTL blend_op field (spec.md §4.9).
type BlendOp uint8

const (
	BlendSource BlendOp = 0
	BlendOver   BlendOp = 1
)

// Frame is one APNG animation frame: its fcTL geometry/timing plus its own
// independently decoded pixel data. The engine isolates each frame's
// pixels for recompression and never composites frames against each other
// (spec.md §4.9).
type Frame struct {
	SequenceNumber uint32
	Width          uint32
	Height         uint32
	XOffset        uint32
	YOffset        uint32
	DelayNum       uint16
	DelayDen       uint16
	Dispose        DisposeOp
	Blend          BlendOp
	IsDefaultImage bool // true when this frame's bytes are also the IDAT "default image"
	Pixels         PixelData
}

// AnimationControl holds the parsed acTL chunk plus the ordered frame
// list (spec.md §3's "optional APNG control").
type AnimationControl struct {
	NumFrames uint32
	NumPlays  uint32
	Frames    []Frame
}

// PNGImage is the fully decoded representation of one PNG/APNG file
// (spec.md §3).
type PNGImage struct {
	Header       IHDRHeader
	Palette      *Palette
	Transparency *Transparency
	Pixels       PixelData
	Ancillary    []AncillaryChunk
	Animation    *AnimationControl
}

// IsAPNG reports whether the image carries animation control.
func (img *PNGImage) IsAPNG() bool {
	return img.Animation != nil
}

// Clone returns a deep copy of the image, used by reductions so that the
// source image stays immutable (spec.md §3 ownership rule).
func (img *PNGImage) Clone() *PNGImage {
	out := &PNGImage{Header: img.Header}
	if img.Palette != nil {
		entries := make([]color.RGBA, len(img.Palette.Entries))
		copy(entries, img.Palette.Entries)
		out.Palette = &Palette{Entries: entries}
	}
	if img.Transparency != nil {
		t := *img.Transparency
		out.Transparency = &t
	}
	out.Pixels = clonePixelData(img.Pixels)
	if len(img.Ancillary) > 0 {
		out.Ancillary = make([]AncillaryChunk, len(img.Ancillary))
		copy(out.Ancillary, img.Ancillary)
	}
	if img.Animation != nil {
		anim := &AnimationControl{
			NumFrames: img.Animation.NumFrames,
			NumPlays:  img.Animation.NumPlays,
			Frames:    make([]Frame, len(img.Animation.Frames)),
		}
		for i, f := range img.Animation.Frames {
			f.Pixels = clonePixelData(f.Pixels)
			anim.Frames[i] = f
		}
		out.Animation = anim
	}
	return out
}

func clonePixelData(pd PixelData) PixelData {
	out := PixelData{Passes: make([]Pass, len(pd.Passes))}
	for i, p := range pd.Passes {
		np := Pass{Width: p.Width, Height: p.Height, Rows: make([][]byte, len(p.Rows))}
		for j, row := range p.Rows {
			np.Rows[j] = append([]byte(nil), row...)
		}
		out.Passes[i] = np
	}
	return out
}
