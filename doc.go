// Package pngopt provides a pure Go lossless optimizer for PNG and APNG
// files.
//
// It decodes a PNG into its pixel model, applies semantics-preserving
// reductions (dropping unused alpha, reducing bit depth, converting to
// a palette, and the like), searches a worker pool of filter-strategy
// and DEFLATE-parameter candidates in parallel, and re-serializes
// whichever candidate compresses smallest. If no candidate beats the
// input, the original bytes are returned unchanged.
//
// The package supports:
//   - Lossless recompression of still PNGs and APNGs
//   - Adam7 deinterlacing and (optionally) reinterlacing
//   - Bit depth, color type, and palette reductions
//   - Five PNG scanline filters plus several selection heuristics
//   - Parallel candidate search with deterministic output
//
// Basic usage:
//
//	out, err := pngopt.Optimize(data, pngopt.DefaultOptions())
package pngopt
