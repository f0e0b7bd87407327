// Package filter implements the five PNG scanline filters (spec.md §4.5)
// and a handful of heuristics for choosing which filter to apply to each
// row. The minimum-sum-of-absolute-differences heuristic is grounded on
// shutej-apng's util.go:filter(), the reference Go PNG writer's approach;
// the entropy heuristic is grounded on the teacher's
// internal/lossless/encode_histogram.go BitsEntropy estimator, adapted
// from a histogram over literal values to a histogram over one filtered
// row's bytes.
package filter

import (
	"math"

	"github.com/go-pngopt/pngopt/internal/pngimage"
)

// Strategy selects which filter a row should use.
type Strategy uint8

const (
	// StrategyFixed applies the same filter type to every row.
	StrategyFixed Strategy = iota
	// StrategyMinSum picks, per row, the filter minimizing the sum of
	// absolute values of the filtered bytes interpreted as signed.
	StrategyMinSum
	// StrategyEntropy picks, per row, the filter minimizing a Shannon
	// entropy estimate of the filtered byte histogram.
	StrategyEntropy
	// StrategyBiGrad picks, per row, the filter minimizing the sum of
	// absolute first differences between consecutive filtered bytes, a
	// cheap proxy for how well the row will compress under DEFLATE's
	// LZ77 stage.
	StrategyBiGrad
	// StrategyBruteForce tries all five filters and scores each with the
	// same sum of absolute signed filtered bytes as StrategyMinSum; rows
	// are not compressed during selection. Used by the highest effort
	// presets.
	StrategyBruteForce
)

// Apply filters one row against the previous row (prior may be nil or
// all-zero for the first row of a pass) using the given filter type,
// writing into dst (which must be len(cur) long and must not alias cur).
func Apply(ft pngimage.FilterType, dst, cur, prior []byte, bpp int) {
	switch ft {
	case pngimage.FilterNone:
		copy(dst, cur)
	case pngimage.FilterSub:
		for i, c := range cur {
			var left byte
			if i >= bpp {
				left = cur[i-bpp]
			}
			dst[i] = c - left
		}
	case pngimage.FilterUp:
		for i, c := range cur {
			var up byte
			if prior != nil {
				up = prior[i]
			}
			dst[i] = c - up
		}
	case pngimage.FilterAverage:
		for i, c := range cur {
			var left int
			if i >= bpp {
				left = int(cur[i-bpp])
			}
			var up int
			if prior != nil {
				up = int(prior[i])
			}
			dst[i] = c - byte((left+up)/2)
		}
	case pngimage.FilterPaeth:
		for i, c := range cur {
			var left, up, upLeft int
			if i >= bpp {
				left = int(cur[i-bpp])
			}
			if prior != nil {
				up = int(prior[i])
				if i >= bpp {
					upLeft = int(prior[i-bpp])
				}
			}
			dst[i] = c - byte(paeth(left, up, upLeft))
		}
	}
}

// Unapply reverses Apply: dst receives the reconstructed current row
// given the filtered bytes cur and the already-reconstructed prior row.
func Unapply(ft pngimage.FilterType, dst, cur, prior []byte, bpp int) {
	switch ft {
	case pngimage.FilterNone:
		copy(dst, cur)
	case pngimage.FilterSub:
		for i, c := range cur {
			var left byte
			if i >= bpp {
				left = dst[i-bpp]
			}
			dst[i] = c + left
		}
	case pngimage.FilterUp:
		for i, c := range cur {
			var up byte
			if prior != nil {
				up = prior[i]
			}
			dst[i] = c + up
		}
	case pngimage.FilterAverage:
		for i, c := range cur {
			var left int
			if i >= bpp {
				left = int(dst[i-bpp])
			}
			var up int
			if prior != nil {
				up = int(prior[i])
			}
			dst[i] = c + byte((left+up)/2)
		}
	case pngimage.FilterPaeth:
		for i, c := range cur {
			var left, up, upLeft int
			if i >= bpp {
				left = int(dst[i-bpp])
			}
			if prior != nil {
				up = int(prior[i])
				if i >= bpp {
					upLeft = int(prior[i-bpp])
				}
			}
			dst[i] = c + byte(paeth(left, up, upLeft))
		}
	}
}

// paeth is the PNG spec's Paeth predictor.
func paeth(a, b, c int) int {
	p := a + b - c
	pa := abs(p - a)
	pb := abs(p - b)
	pc := abs(p - c)
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// abs8 interprets a byte as signed and returns its magnitude, matching
// shutej-apng's util.go:abs8.
func abs8(d byte) int {
	if d < 128 {
		return int(d)
	}
	return 256 - int(d)
}

// allFilters is the canonical enumeration order used whenever a strategy
// needs to try every filter type.
var allFilters = [5]pngimage.FilterType{
	pngimage.FilterNone,
	pngimage.FilterSub,
	pngimage.FilterUp,
	pngimage.FilterAverage,
	pngimage.FilterPaeth,
}

// ChooseRow filters cur against prior under every candidate of the given
// strategy and returns the winning filter type and its filtered bytes.
// scratch must provide 5 buffers of len(cur) capacity for StrategyMinSum,
// StrategyEntropy and StrategyBiGrad to avoid repeat allocation; pass the
// zero value to allocate internally.
func ChooseRow(strategy Strategy, cur, prior []byte, bpp int, scratch [5][]byte) (pngimage.FilterType, []byte) {
	if strategy == StrategyFixed {
		dst := getScratch(scratch, 0, len(cur))
		Apply(pngimage.FilterNone, dst, cur, prior, bpp)
		return pngimage.FilterNone, dst
	}

	bestFilter := pngimage.FilterNone
	var bestScore int
	var bestBuf []byte
	for i, ft := range allFilters {
		buf := getScratch(scratch, i, len(cur))
		Apply(ft, buf, cur, prior, bpp)
		score := scoreRow(strategy, buf)
		if i == 0 || score < bestScore {
			bestScore = score
			bestFilter = ft
			bestBuf = buf
		}
	}
	// Return a fresh copy since bestBuf aliases shared scratch space.
	out := make([]byte, len(bestBuf))
	copy(out, bestBuf)
	return bestFilter, out
}

func getScratch(scratch [5][]byte, i, n int) []byte {
	if scratch[i] != nil && cap(scratch[i]) >= n {
		return scratch[i][:n]
	}
	return make([]byte, n)
}

func scoreRow(strategy Strategy, row []byte) int {
	switch strategy {
	case StrategyMinSum:
		sum := 0
		for _, b := range row {
			sum += abs8(b)
		}
		return sum
	case StrategyEntropy:
		return int(entropyEstimate(row) * 1000)
	case StrategyBiGrad:
		sum := 0
		var prev int
		for i, b := range row {
			v := int(int8(b))
			if i > 0 {
				sum += abs(v - prev)
			}
			prev = v
		}
		return sum
	default:
		sum := 0
		for _, b := range row {
			sum += abs8(b)
		}
		return sum
	}
}

// entropyEstimate returns a zero-order Shannon entropy estimate (bits per
// byte, scaled by len(row)) over the byte-value histogram of row,
// generalizing the teacher's literal-value BitsEntropy estimator to raw
// filtered scanline bytes.
func entropyEstimate(row []byte) float64 {
	if len(row) == 0 {
		return 0
	}
	var hist [256]int
	for _, b := range row {
		hist[b]++
	}
	return bitsEntropy(hist[:], len(row))
}

// bitsEntropy computes -sum(p*log2(p)) * total over a histogram, matching
// the shape of the teacher's internal/lossless/encode_histogram.go
// BitsEntropy helper.
func bitsEntropy(hist []int, total int) float64 {
	if total == 0 {
		return 0
	}
	var retval float64
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(total)
		retval -= p * math.Log2(p) * float64(total)
	}
	return retval
}
