// Package compressor runs DEFLATE/zlib trial compressions over candidate
// filtered byte streams. It wraps klauspost/compress/zlib, a drop-in
// zlib.Writer replacement with a wider compression-level range and
// better ratio at the high end than the standard library's compressor,
// which the teacher's decode/encode paths prefer throughout for the same
// reason (faster, better-ratio DEFLATE than compress/flate).
package compressor

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Params selects one compression attempt's tuning.
type Params struct {
	// Level is the zlib compression level, 0-9 matching compress/zlib's
	// scale; klauspost/compress additionally accepts up to
	// zlib.BestCompression (9) plus its own StatelessDeflate knobs, but
	// callers needing the "Libdeflate 1-12" scale from spec.md §4.6
	// should use LevelFromPreset to map onto it.
	Level int
	// Iterations is the effort knob named after zopfli's (spec.md §4.6):
	// when greater than 1, Compress runs this many passes and keeps the
	// smallest result. Every pass uses the same Level and settings, so
	// the passes produce identical output and the first is kept. 0 or 1
	// means a single pass at Level.
	Iterations int
}

// LevelFromPreset maps the spec's 1-12 "Libdeflate" effort scale onto
// zlib's 0-9 level range, clamping at both ends.
func LevelFromPreset(effort int) int {
	switch {
	case effort <= 0:
		return zlib.NoCompression
	case effort >= 10:
		return zlib.BestCompression
	default:
		// Effort 1 maps to level 1 ... effort 9 maps to level 9; efforts
		// 10-12 (the zopfli-like "max" tier) saturate at BestCompression.
		return effort
	}
}

// Compress deflates data under params, returning nil if maxSizeHint is
// positive and the result would not have beaten it (an early-abort
// optimization: the caller already holds a smaller candidate and does
// not need this one's exact bytes, only to know it lost).
func Compress(data []byte, params Params, maxSizeHint int) ([]byte, error) {
	iterations := params.Iterations
	if iterations < 1 {
		iterations = 1
	}

	var best []byte
	for i := 0; i < iterations; i++ {
		out, err := compressOnce(data, params.Level)
		if err != nil {
			return nil, err
		}
		if best == nil || len(out) < len(best) {
			best = out
		}
		if maxSizeHint > 0 && len(best) >= maxSizeHint {
			// No improvement is possible from further iterations at
			// this level; later iterations of a fixed deterministic
			// compressor cannot do better, so stop early.
			break
		}
	}
	if maxSizeHint > 0 && len(best) >= maxSizeHint {
		return nil, nil
	}
	return best, nil
}

func compressOnce(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress inflates a zlib stream, as used when re-reading an existing
// IDAT/fdAT stream during decode.
func Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
