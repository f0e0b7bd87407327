// Package rawcodec converts between a PNG image's raw compressed pixel
// stream (the concatenated IDAT or fdAT payloads) and the decoded
// per-pass scanline representation in pngimage.PixelData, per spec.md
// §4.2.
package rawcodec

import (
	"github.com/pkg/errors"

	"github.com/go-pngopt/pngopt/internal/compressor"
	"github.com/go-pngopt/pngopt/internal/filter"
	"github.com/go-pngopt/pngopt/internal/interlace"
	"github.com/go-pngopt/pngopt/internal/pngimage"
)

var ErrShortScanline = errors.New("pngopt: decompressed stream too short for declared geometry")

// Decode inflates the concatenated IDAT/fdAT payload and defilters every
// scanline of every Adam7 pass (or the single pass of a non-interlaced
// image), returning the fully reconstructed pixel data.
func Decode(header pngimage.IHDRHeader, compressed []byte) (pngimage.PixelData, error) {
	raw, err := compressor.Decompress(compressed)
	if err != nil {
		return pngimage.PixelData{}, errors.Wrap(err, "pngopt: inflate raw pixel stream")
	}

	var passCount int
	passDims := make([][2]int, 0, 7)
	if header.InterlaceMethod == pngimage.InterlaceAdam7 {
		passCount = 7
		for i := 0; i < 7; i++ {
			w, h := interlace.PassDimensions(int(header.Width), int(header.Height), i)
			passDims = append(passDims, [2]int{w, h})
		}
	} else {
		passCount = 1
		passDims = append(passDims, [2]int{int(header.Width), int(header.Height)})
	}

	bpp := header.PixelStride()
	offset := 0
	out := pngimage.PixelData{Passes: make([]pngimage.Pass, passCount)}
	for i := 0; i < passCount; i++ {
		w, h := passDims[i][0], passDims[i][1]
		rowBytes := header.RowBytes(w)
		pass := pngimage.Pass{Width: w, Height: h, Rows: make([][]byte, h)}

		var prior []byte
		for y := 0; y < h; y++ {
			if offset >= len(raw) {
				return pngimage.PixelData{}, ErrShortScanline
			}
			ft := pngimage.FilterType(raw[offset])
			offset++
			if offset+rowBytes > len(raw) {
				return pngimage.PixelData{}, ErrShortScanline
			}
			filtered := raw[offset : offset+rowBytes]
			offset += rowBytes

			row := make([]byte, rowBytes)
			filter.Unapply(ft, row, filtered, prior, bpp)
			pass.Rows[y] = row
			prior = row
		}
		out.Passes[i] = pass
	}
	return out, nil
}

// FilterOptions controls how Encode chooses a filter per scanline.
type FilterOptions struct {
	Strategy filter.Strategy
}

// Encode filters every scanline of pixels under opts.Strategy and
// returns the concatenated, not-yet-compressed byte stream (filter byte
// prefix included), ready for a compressor.Compress call.
func Encode(header pngimage.IHDRHeader, pixels pngimage.PixelData, opts FilterOptions) []byte {
	bpp := header.PixelStride()
	var out []byte
	var scratch [5][]byte

	for _, pass := range pixels.Passes {
		if pass.Height == 0 {
			continue
		}
		rowBytes := header.RowBytes(pass.Width)
		var prior []byte
		for _, row := range pass.Rows {
			ft, filtered := filter.ChooseRow(opts.Strategy, row, prior, bpp, scratch)
			out = append(out, byte(ft))
			out = append(out, filtered...)
			prior = row
			_ = rowBytes
		}
	}
	return out
}

// FilteredRows converts pixel data directly into pngimage.FilteredData,
// used by the search driver to evaluate multiple filter strategies and
// compressor parameters against the same filtered representation without
// re-filtering for every trial.
func FilteredRows(header pngimage.IHDRHeader, pixels pngimage.PixelData, strategy filter.Strategy) pngimage.FilteredData {
	bpp := header.PixelStride()
	out := pngimage.FilteredData{Passes: make([]pngimage.FilteredPass, len(pixels.Passes))}
	var scratch [5][]byte

	for pi, pass := range pixels.Passes {
		fp := pngimage.FilteredPass{Width: pass.Width, Height: pass.Height, Rows: make([]pngimage.FilteredRow, pass.Height)}
		var prior []byte
		for y, row := range pass.Rows {
			ft, filtered := filter.ChooseRow(strategy, row, prior, bpp, scratch)
			fp.Rows[y] = pngimage.FilteredRow{Filter: ft, Data: filtered}
			prior = row
		}
		out.Passes[pi] = fp
	}
	return out
}

// Flatten concatenates a FilteredData's rows (filter byte prefix
// included) into a single byte slice ready for compression.
func Flatten(fd pngimage.FilteredData) []byte {
	var size int
	for _, p := range fd.Passes {
		for _, r := range p.Rows {
			size += 1 + len(r.Data)
		}
	}
	out := make([]byte, 0, size)
	for _, p := range fd.Passes {
		for _, r := range p.Rows {
			out = append(out, byte(r.Filter))
			out = append(out, r.Data...)
		}
	}
	return out
}
