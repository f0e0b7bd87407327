package pngopt

import (
	"encoding/binary"
	"image/color"

	"github.com/pkg/errors"

	"github.com/go-pngopt/pngopt/internal/pngimage"
)

const ihdrSize = 13

// parseIHDR decodes a 13-byte IHDR payload, the same fixed layout
// shutej-apng's reader and e319c509_user54778-png__internal-chunk's
// chunk parser both assume: width, height, then five single-byte
// fields.
func parseIHDR(payload []byte) (pngimage.IHDRHeader, error) {
	if len(payload) != ihdrSize {
		return pngimage.IHDRHeader{}, errors.Wrap(ErrCorruptFile, "IHDR payload must be 13 bytes")
	}
	h := pngimage.IHDRHeader{
		Width:             binary.BigEndian.Uint32(payload[0:4]),
		Height:            binary.BigEndian.Uint32(payload[4:8]),
		BitDepth:          payload[8],
		ColorType:         pngimage.ColorType(payload[9]),
		CompressionMethod: payload[10],
		FilterMethod:      payload[11],
		InterlaceMethod:   pngimage.InterlaceMethod(payload[12]),
	}
	return h, nil
}

func encodeIHDR(h pngimage.IHDRHeader) []byte {
	buf := make([]byte, ihdrSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Width)
	binary.BigEndian.PutUint32(buf[4:8], h.Height)
	buf[8] = h.BitDepth
	buf[9] = byte(h.ColorType)
	buf[10] = h.CompressionMethod
	buf[11] = h.FilterMethod
	buf[12] = byte(h.InterlaceMethod)
	return buf
}

// parsePLTE decodes a PLTE payload, a flat sequence of RGB triples.
func parsePLTE(payload []byte) *pngimage.Palette {
	n := len(payload) / 3
	entries := make([]color.RGBA, n)
	for i := 0; i < n; i++ {
		entries[i] = color.RGBA{
			R: payload[i*3],
			G: payload[i*3+1],
			B: payload[i*3+2],
			A: 0xff,
		}
	}
	return &pngimage.Palette{Entries: entries}
}

func encodePLTE(p *pngimage.Palette) []byte {
	buf := make([]byte, p.Len()*3)
	for i, e := range p.Entries {
		buf[i*3] = e.R
		buf[i*3+1] = e.G
		buf[i*3+2] = e.B
	}
	return buf
}

// parseTRNS decodes a tRNS payload according to color type: a per-entry
// alpha list for indexed images, or a single exact-match sample (or
// triple, for RGB) otherwise.
func parseTRNS(ct pngimage.ColorType, payload []byte, palette *pngimage.Palette) *pngimage.Transparency {
	switch ct {
	case pngimage.ColorIndexed:
		if palette == nil {
			return nil
		}
		for i, a := range payload {
			if i < len(palette.Entries) {
				palette.Entries[i].A = a
			}
		}
		return nil
	case pngimage.ColorGray:
		if len(payload) < 2 {
			return nil
		}
		return &pngimage.Transparency{GraySample: binary.BigEndian.Uint16(payload[0:2])}
	case pngimage.ColorRGB:
		if len(payload) < 6 {
			return nil
		}
		return &pngimage.Transparency{RGBSample: [3]uint16{
			binary.BigEndian.Uint16(payload[0:2]),
			binary.BigEndian.Uint16(payload[2:4]),
			binary.BigEndian.Uint16(payload[4:6]),
		}}
	default:
		return nil
	}
}

// encodeTRNS re-serializes transparency info, returning nil when there
// is nothing to emit for the given color type.
func encodeTRNS(ct pngimage.ColorType, t *pngimage.Transparency, palette *pngimage.Palette) []byte {
	switch ct {
	case pngimage.ColorIndexed:
		if palette == nil || !palette.HasAlpha() {
			return nil
		}
		buf := make([]byte, palette.Len())
		for i, e := range palette.Entries {
			buf[i] = e.A
		}
		for len(buf) > 0 && buf[len(buf)-1] == 0xff {
			buf = buf[:len(buf)-1]
		}
		if len(buf) == 0 {
			return nil
		}
		return buf
	case pngimage.ColorGray:
		if t == nil {
			return nil
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, t.GraySample)
		return buf
	case pngimage.ColorRGB:
		if t == nil {
			return nil
		}
		buf := make([]byte, 6)
		binary.BigEndian.PutUint16(buf[0:2], t.RGBSample[0])
		binary.BigEndian.PutUint16(buf[2:4], t.RGBSample[1])
		binary.BigEndian.PutUint16(buf[4:6], t.RGBSample[2])
		return buf
	default:
		return nil
	}
}
