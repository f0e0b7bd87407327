// Package reduce implements the lossless, semantics-preserving pixel
// reductions of spec.md §4.3: each is a pure PNGImage -> (PNGImage, bool)
// transform, and Run drives them to a fixed point the same way
// libpng/oxipng-style optimizers do, re-trying every reduction until a
// full pass changes nothing. The allowed (color type, bit depth) pairs
// enumerated here are grounded on the PNG-spec comment table in
// Illirgway-sboptimizeassets' service/png_optimizer.go.
package reduce

import (
	"image/color"
	"sort"

	"github.com/go-pngopt/pngopt/internal/pngimage"
)

// Reduction is one named, independently toggleable transform.
type Reduction func(img *pngimage.PNGImage) (*pngimage.PNGImage, bool)

// Options controls which reductions Run is allowed to apply. All default
// to enabled; APNG images disable every reduction that would alter
// IHDR-level geometry, color type or palette across frames, per spec.md §4.9's
// "defined behavior, not a bug" note that header-changing reductions stay
// off for animated images.
type Options struct {
	StripAlpha     bool
	RGBToGray      bool
	ReduceBitDepth bool
	ToIndexed      bool
	IndexedToGray  bool
	DedupPalette   bool
	ReorderPalette bool
	OptimizeAlpha  bool
	Drop16To8      bool
}

// DefaultOptions enables every reduction.
func DefaultOptions() Options {
	return Options{
		StripAlpha:     true,
		RGBToGray:      true,
		ReduceBitDepth: true,
		ToIndexed:      true,
		IndexedToGray:  true,
		DedupPalette:   true,
		ReorderPalette: true,
		OptimizeAlpha:  true,
		Drop16To8:      true,
	}
}

// Run applies every enabled reduction repeatedly until a full pass
// produces no further change, returning the reduced image. The input is
// never mutated; Run always works from and returns clones.
func Run(img *pngimage.PNGImage, opts Options) *pngimage.PNGImage {
	current := img.Clone()
	if img.IsAPNG() {
		// Animated images keep their header and color model fixed across
		// all frames; only per-frame, header-preserving reductions apply.
		opts = Options{OptimizeAlpha: opts.OptimizeAlpha}
	}

	for {
		changed := false
		for _, step := range enabledSteps(opts) {
			// The palette steps read one index per byte; once an indexed
			// image is packed below 8 bits none of them applies.
			if current.Header.ColorType == pngimage.ColorIndexed && current.Header.BitDepth < 8 {
				return current
			}
			if next, ok := step(current); ok {
				current = next
				changed = true
			}
		}
		if !changed {
			return current
		}
	}
}

func enabledSteps(opts Options) []Reduction {
	var steps []Reduction
	if opts.Drop16To8 {
		steps = append(steps, reduce16To8)
	}
	if opts.StripAlpha {
		steps = append(steps, stripAlpha)
	}
	if opts.RGBToGray {
		steps = append(steps, rgbToGray)
	}
	if opts.ToIndexed {
		steps = append(steps, rgbaToIndexed)
	}
	if opts.IndexedToGray {
		steps = append(steps, indexedToGray)
	}
	if opts.DedupPalette {
		steps = append(steps, dedupPalette)
	}
	if opts.ReduceBitDepth {
		steps = append(steps, reduceBitDepth)
	}
	// Palette reorder runs last among the palette/color-type/bit-depth
	// steps, per spec.md §4.3's stated ordering. Run stops before it once
	// reduceBitDepth has packed an indexed image below 8 bits, so such an
	// image keeps its deduplicated palette order.
	if opts.ReorderPalette {
		steps = append(steps, reorderPalette)
	}
	if opts.OptimizeAlpha {
		steps = append(steps, optimizeAlpha)
	}
	return steps
}

// reduce16To8 drops 16-bit samples to 8-bit when the low byte of every
// sample is a pure replication of the high byte (i.e. the extra
// precision carries no information), per spec.md §4.3.
func reduce16To8(img *pngimage.PNGImage) (*pngimage.PNGImage, bool) {
	if img.Header.BitDepth != 16 {
		return img, false
	}
	channels := img.Header.ColorType.Channels()
	for _, pass := range img.Pixels.Passes {
		for _, row := range pass.Rows {
			for i := 0; i+1 < len(row); i += 2 {
				if row[i] != row[i+1] {
					return img, false
				}
			}
		}
	}
	_ = channels

	out := img.Clone()
	out.Header.BitDepth = 8
	for pi, pass := range out.Pixels.Passes {
		for ri, row := range pass.Rows {
			packed := make([]byte, len(row)/2)
			for i := range packed {
				packed[i] = row[i*2]
			}
			out.Pixels.Passes[pi].Rows[ri] = packed
		}
	}
	if out.Transparency != nil {
		out.Transparency.GraySample &= 0xff
		for i := range out.Transparency.RGBSample {
			out.Transparency.RGBSample[i] &= 0xff
		}
	}
	return out, true
}

// stripAlpha removes a fully-opaque alpha channel, converting RGBA to
// RGB or GrayAlpha to Gray, when every pixel's alpha sample is at
// maximum, per spec.md §4.3.
func stripAlpha(img *pngimage.PNGImage) (*pngimage.PNGImage, bool) {
	if !img.Header.ColorType.HasAlpha() {
		return img, false
	}
	channels := img.Header.ColorType.Channels()
	bpp := img.Header.BitsPerPixel() / 8
	sampleBytes := bpp / channels
	maxVal := uint32(1)<<(8*sampleBytes) - 1

	for _, pass := range img.Pixels.Passes {
		for _, row := range pass.Rows {
			for px := 0; px+bpp <= len(row); px += bpp {
				alphaOff := px + bpp - sampleBytes
				if sampleVal(row[alphaOff:alphaOff+sampleBytes]) != maxVal {
					return img, false
				}
			}
		}
	}

	out := img.Clone()
	newColorType := pngimage.ColorRGB
	if img.Header.ColorType == pngimage.ColorGrayAlpha {
		newColorType = pngimage.ColorGray
	}
	out.Header.ColorType = newColorType
	newChannels := newColorType.Channels()
	newBpp := newChannels * sampleBytes

	for pi, pass := range out.Pixels.Passes {
		for ri, row := range pass.Rows {
			newRow := make([]byte, 0, len(row)*newBpp/bpp)
			for px := 0; px+bpp <= len(row); px += bpp {
				newRow = append(newRow, row[px:px+newBpp]...)
			}
			out.Pixels.Passes[pi].Rows[ri] = newRow
		}
	}
	out.Transparency = nil
	return out, true
}

func sampleVal(b []byte) uint32 {
	var v uint32
	for _, x := range b {
		v = v<<8 | uint32(x)
	}
	return v
}

// rgbToGray converts RGB/RGBA to Gray/GrayAlpha when every pixel's R, G
// and B samples are equal, per spec.md §4.3.
func rgbToGray(img *pngimage.PNGImage) (*pngimage.PNGImage, bool) {
	if img.Header.ColorType != pngimage.ColorRGB && img.Header.ColorType != pngimage.ColorRGBA {
		return img, false
	}
	hasAlpha := img.Header.ColorType.HasAlpha()
	sampleBytes := img.Header.BitDepth / 8
	step := int(sampleBytes) * 3
	if hasAlpha {
		step += int(sampleBytes)
	}

	for _, pass := range img.Pixels.Passes {
		for _, row := range pass.Rows {
			for px := 0; px+step <= len(row); px += step {
				r := row[px : px+int(sampleBytes)]
				g := row[px+int(sampleBytes) : px+2*int(sampleBytes)]
				b := row[px+2*int(sampleBytes) : px+3*int(sampleBytes)]
				if !bytesEqual(r, g) || !bytesEqual(g, b) {
					return img, false
				}
			}
		}
	}

	out := img.Clone()
	newColorType := pngimage.ColorGray
	if hasAlpha {
		newColorType = pngimage.ColorGrayAlpha
	}
	out.Header.ColorType = newColorType

	for pi, pass := range out.Pixels.Passes {
		for ri, row := range pass.Rows {
			var newRow []byte
			for px := 0; px+step <= len(row); px += step {
				newRow = append(newRow, row[px:px+int(sampleBytes)]...)
				if hasAlpha {
					newRow = append(newRow, row[px+3*int(sampleBytes):px+4*int(sampleBytes)]...)
				}
			}
			out.Pixels.Passes[pi].Rows[ri] = newRow
		}
	}
	if out.Transparency != nil {
		out.Transparency.GraySample = out.Transparency.RGBSample[0]
	}
	return out, true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// rgbaToIndexed converts an 8-bit RGB/RGBA image with at most 256
// distinct colors into an indexed image with a deduplicated palette, per
// spec.md §4.3. Gray/GrayAlpha sources are deliberately excluded: Gray
// is already the smaller representation, and accepting it here would
// let indexedToGray immediately convert the result back, looping Run
// forever between the two steps.
func rgbaToIndexed(img *pngimage.PNGImage) (*pngimage.PNGImage, bool) {
	if img.Header.BitDepth != 8 {
		return img, false
	}
	if img.Header.ColorType != pngimage.ColorRGB && img.Header.ColorType != pngimage.ColorRGBA {
		return img, false
	}

	channels := img.Header.ColorType.Channels()
	hasAlpha := img.Header.ColorType.HasAlpha()

	colorIndex := map[color.RGBA]int{}
	var palette []color.RGBA
	indices := make([][]byte, 0)

	for _, pass := range img.Pixels.Passes {
		for _, row := range pass.Rows {
			idxRow := make([]byte, 0, len(row)/channels)
			for px := 0; px+channels <= len(row); px += channels {
				c := pixelToRGBA(img.Header.ColorType, row[px:px+channels], hasAlpha)
				idx, ok := colorIndex[c]
				if !ok {
					if len(palette) >= 256 {
						return img, false
					}
					idx = len(palette)
					colorIndex[c] = idx
					palette = append(palette, c)
				}
				idxRow = append(idxRow, byte(idx))
			}
			indices = append(indices, idxRow)
		}
	}

	out := img.Clone()
	out.Header.ColorType = pngimage.ColorIndexed
	out.Header.BitDepth = 8
	out.Palette = &pngimage.Palette{Entries: palette}
	out.Transparency = nil

	k := 0
	for pi, pass := range out.Pixels.Passes {
		for ri := range pass.Rows {
			out.Pixels.Passes[pi].Rows[ri] = indices[k]
			k++
		}
	}
	return out, true
}

// pixelToRGBA reads one channels-wide, 8-bit-per-sample pixel into an
// RGBA value, expanding Gray/GrayAlpha to equal R/G/B.
func pixelToRGBA(ct pngimage.ColorType, px []byte, hasAlpha bool) color.RGBA {
	switch ct {
	case pngimage.ColorGray:
		return color.RGBA{px[0], px[0], px[0], 255}
	case pngimage.ColorGrayAlpha:
		return color.RGBA{px[0], px[0], px[0], px[1]}
	case pngimage.ColorRGB:
		return color.RGBA{px[0], px[1], px[2], 255}
	case pngimage.ColorRGBA:
		return color.RGBA{px[0], px[1], px[2], px[3]}
	default:
		return color.RGBA{}
	}
}

// indexedToGray converts an indexed image whose palette entries are all
// gray (R==G==B) and fully opaque into a Gray image of equal bit depth,
// per spec.md §4.3.
func indexedToGray(img *pngimage.PNGImage) (*pngimage.PNGImage, bool) {
	if img.Header.ColorType != pngimage.ColorIndexed || img.Palette == nil {
		return img, false
	}
	for _, e := range img.Palette.Entries {
		if e.R != e.G || e.G != e.B || e.A != 255 {
			return img, false
		}
	}

	out := img.Clone()
	out.Header.ColorType = pngimage.ColorGray
	lut := make([]byte, len(img.Palette.Entries))
	for i, e := range img.Palette.Entries {
		lut[i] = e.R
	}
	for pi, pass := range out.Pixels.Passes {
		for ri, row := range pass.Rows {
			newRow := make([]byte, len(row))
			for i, idx := range row {
				if int(idx) < len(lut) {
					newRow[i] = lut[idx]
				}
			}
			out.Pixels.Passes[pi].Rows[ri] = newRow
		}
	}
	out.Palette = nil
	return out, true
}

// dedupPalette removes unused or duplicate palette entries and
// renumbers indices accordingly, per spec.md §4.3.
func dedupPalette(img *pngimage.PNGImage) (*pngimage.PNGImage, bool) {
	if img.Header.ColorType != pngimage.ColorIndexed || img.Palette == nil {
		return img, false
	}
	used := make([]bool, len(img.Palette.Entries))
	for _, pass := range img.Pixels.Passes {
		for _, row := range pass.Rows {
			for _, idx := range row {
				if int(idx) < len(used) {
					used[idx] = true
				}
			}
		}
	}

	remap := make([]int, len(img.Palette.Entries))
	var newEntries []color.RGBA
	seen := map[color.RGBA]int{}
	changed := false
	for i, e := range img.Palette.Entries {
		if !used[i] {
			changed = true
			remap[i] = -1
			continue
		}
		if j, ok := seen[e]; ok {
			remap[i] = j
			changed = true
			continue
		}
		remap[i] = len(newEntries)
		seen[e] = remap[i]
		newEntries = append(newEntries, e)
	}
	if !changed {
		return img, false
	}

	out := img.Clone()
	out.Palette = &pngimage.Palette{Entries: newEntries}
	for pi, pass := range out.Pixels.Passes {
		for ri, row := range pass.Rows {
			newRow := make([]byte, len(row))
			for i, idx := range row {
				if int(idx) < len(remap) && remap[idx] >= 0 {
					newRow[i] = byte(remap[idx])
				}
			}
			out.Pixels.Passes[pi].Rows[ri] = newRow
		}
	}
	return out, true
}

// reorderPalette sorts an indexed image's palette so fully transparent
// entries come first, partially-transparent entries come next, and
// fully-opaque entries come last, breaking ties within each class by
// descending pixel frequency, then remaps pixel indices to match, per
// spec.md §4.3. The comparator mirrors Illirgway-sboptimizeassets'
// service/png_optimizer.go nrgbaPaletteSorter, which orders a palette
// the same way to keep a following tRNS chunk short and group
// same-alpha-class colors together for the filter/DEFLATE stages.
// Reports no change once the palette is already in this order, so it
// does not keep re-triggering Run's fixed point.
func reorderPalette(img *pngimage.PNGImage) (*pngimage.PNGImage, bool) {
	if img.Header.ColorType != pngimage.ColorIndexed || img.Palette == nil {
		return img, false
	}
	n := len(img.Palette.Entries)
	freq := make([]int, n)
	for _, pass := range img.Pixels.Passes {
		for _, row := range pass.Rows {
			for _, idx := range row {
				if int(idx) < n {
					freq[idx]++
				}
			}
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		ci, cj := img.Palette.Entries[i], img.Palette.Entries[j]
		if ci.A != cj.A {
			if ci.A == 0 {
				return true
			}
			if cj.A == 0 {
				return false
			}
			if (ci.A < 255) != (cj.A < 255) {
				return ci.A < 255
			}
		}
		return freq[i] > freq[j]
	})

	sorted := true
	for i, oi := range order {
		if oi != i {
			sorted = false
			break
		}
	}
	if sorted {
		return img, false
	}

	remap := make([]byte, n)
	newEntries := make([]color.RGBA, n)
	for newIdx, oldIdx := range order {
		remap[oldIdx] = byte(newIdx)
		newEntries[newIdx] = img.Palette.Entries[oldIdx]
	}

	out := img.Clone()
	out.Palette = &pngimage.Palette{Entries: newEntries}
	for pi, pass := range out.Pixels.Passes {
		for ri, row := range pass.Rows {
			newRow := make([]byte, len(row))
			for i, idx := range row {
				if int(idx) < n {
					newRow[i] = remap[idx]
				}
			}
			out.Pixels.Passes[pi].Rows[ri] = newRow
		}
	}
	return out, true
}

// reduceBitDepth drops an indexed image's bit depth to the minimum that
// still addresses every used palette index, per spec.md §4.3.
func reduceBitDepth(img *pngimage.PNGImage) (*pngimage.PNGImage, bool) {
	if img.Header.ColorType != pngimage.ColorIndexed || img.Palette == nil {
		return img, false
	}
	maxIdx := 0
	for _, pass := range img.Pixels.Passes {
		for _, row := range pass.Rows {
			for _, idx := range row {
				if int(idx) > maxIdx {
					maxIdx = int(idx)
				}
			}
		}
	}
	needed := uint8(8)
	switch {
	case maxIdx < 2:
		needed = 1
	case maxIdx < 4:
		needed = 2
	case maxIdx < 16:
		needed = 4
	}
	if needed >= img.Header.BitDepth {
		return img, false
	}

	out := img.Clone()
	width := int(img.Header.Width)
	out.Header.BitDepth = needed
	for pi, pass := range out.Pixels.Passes {
		w := pass.Width
		if w == 0 {
			w = width
		}
		for ri, row := range pass.Rows {
			packed := packIndices(row, w, needed)
			out.Pixels.Passes[pi].Rows[ri] = packed
		}
	}
	return out, true
}

func packIndices(row []byte, width int, depth uint8) []byte {
	rowBytes := (width*int(depth) + 7) / 8
	out := make([]byte, rowBytes)
	for x := 0; x < width && x < len(row); x++ {
		bitOff := x * int(depth)
		byteIdx := bitOff / 8
		shift := 8 - int(depth) - (bitOff % 8)
		out[byteIdx] |= (row[x] & (1<<depth - 1)) << shift
	}
	return out
}

// optimizeAlpha rewrites the color of fully-transparent pixels to match
// the nearest preceding opaque pixel in the same row, a lossless change
// (a fully transparent pixel's color is unobservable by any PNG
// consumer) that tends to flatten runs of noisy color noise behind
// transparency into runs the filter/DEFLATE stages compress better, per
// spec.md §4.3.
func optimizeAlpha(img *pngimage.PNGImage) (*pngimage.PNGImage, bool) {
	if !img.Header.ColorType.HasAlpha() || img.Header.BitDepth != 8 {
		return img, false
	}
	channels := img.Header.ColorType.Channels()
	alphaOff := channels - 1

	changed := false
	out := img.Clone()
	for pi, pass := range out.Pixels.Passes {
		for ri, row := range pass.Rows {
			var last []byte
			for px := 0; px+channels <= len(row); px += channels {
				if row[px+alphaOff] == 0 {
					if last != nil {
						for c := 0; c < alphaOff; c++ {
							if row[px+c] != last[c] {
								changed = true
							}
							row[px+c] = last[c]
						}
					}
				} else {
					last = row[px : px+alphaOff]
				}
			}
			out.Pixels.Passes[pi].Rows[ri] = row
		}
	}
	if !changed {
		return img, false
	}
	return out, true
}
