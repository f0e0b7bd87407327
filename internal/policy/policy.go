// Package policy decides which ancillary chunks survive optimization and
// in what fixed order the final chunk stream is assembled, per spec.md
// §4.8. The fixed-ordering approach (critical chunks first, each
// ancillary chunk class slotted into one canonical position rather than
// preserving its original position) is grounded on the teacher's
// mux/mux.go assembleExtended, which emits VP8X/ICCP/ANIM/ALPH/VP8(L)/EXIF/XMP/
// unknown/ICCP in a fixed sequence regardless of input order.
package policy

import (
	"sort"

	"github.com/go-pngopt/pngopt/internal/chunk"
	"github.com/go-pngopt/pngopt/internal/pngimage"
)

// KeepMode controls how ancillary (non-essential) chunks are treated.
type KeepMode uint8

const (
	// KeepNone strips every ancillary chunk except those required for
	// correct decoding (tRNS is handled separately, as it is part of
	// the color model rather than ancillary metadata).
	KeepNone KeepMode = iota
	// KeepSafe preserves the fixed set of ancillary chunks spec.md
	// §4.8 names as render-affecting (gAMA, cHRM, sRGB, iCCP, sBIT,
	// bKGD, hIST) and strips everything else, notably the metadata
	// chunks §4.8 calls out by name (tEXt, zTXt, iTXt, tIME, pHYs).
	// This is a fixed allow-list, not the PNG "safe to copy" naming
	// bit (fourth letter case): that bit tracks whether a chunk stays
	// meaningful after arbitrary third-party edits, which is an
	// unrelated question from whether it affects how the image
	// renders.
	KeepSafe
	// KeepAll preserves every ancillary chunk from the source file
	// verbatim.
	KeepAll
)

// safeKeep is the fixed allow-list KeepSafe uses, per spec.md §4.8.
var safeKeep = map[string]bool{
	"gAMA": true,
	"cHRM": true,
	"sRGB": true,
	"iCCP": true,
	"sBIT": true,
	"bKGD": true,
	"hIST": true,
}

// Filter returns the subset of anc that should survive under mode.
func Filter(anc []pngimage.AncillaryChunk, mode KeepMode) []pngimage.AncillaryChunk {
	return FilterWithOverrides(anc, mode, nil, nil)
}

// FilterWithOverrides applies mode, but lets the explicit keep/strip tag
// sets spec.md §4.8 calls Keep(set)/Strip(set) take precedence over mode
// for any tag they name. strip is checked first, so a tag named in both
// sets is stripped.
func FilterWithOverrides(anc []pngimage.AncillaryChunk, mode KeepMode, keep, strip map[string]bool) []pngimage.AncillaryChunk {
	var out []pngimage.AncillaryChunk
	for _, a := range anc {
		tag := chunk.Tag(a.Tag).String()
		if strip[tag] {
			continue
		}
		if keep[tag] {
			out = append(out, a)
			continue
		}
		switch mode {
		case KeepAll:
			out = append(out, a)
		case KeepSafe:
			if safeKeep[tag] {
				out = append(out, a)
			}
		}
	}
	return out
}

// chunkOrder lists the canonical output position of each known chunk
// type. Chunks not present in the map (unknown ancillary chunks) share
// slot 3 with the named ancillary chunks, so every preserved ancillary
// chunk keeps its original relative order ahead of acTL and the data
// chunks.
var chunkOrder = map[string]int{
	"IHDR": 0,
	"PLTE": 1,
	"tRNS": 2,
	// Every other chunk this package knows how to name — the
	// render-affecting chunks KeepSafe always keeps and the metadata
	// chunks it strips, all of which KeepAll can still surface — shares
	// slot 3, ahead of the APNG/data chunks below; none of them may
	// sort after IDAT/fdAT.
	"gAMA": 3,
	"cHRM": 3,
	"sRGB": 3,
	"iCCP": 3,
	"sBIT": 3,
	"bKGD": 3,
	"hIST": 3,
	"tEXt": 3,
	"zTXt": 3,
	"iTXt": 3,
	"tIME": 3,
	"pHYs": 3,
	"acTL": 4,
	// fcTL, IDAT and fdAT all share one slot: for APNG, frame control and
	// frame data chunks interleave in a strict sequence order that a
	// stable sort must not disturb, so they only ever sort relative to
	// slots 0-4 and 99, never against each other.
	"fcTL": 5,
	"IDAT": 5,
	"fdAT": 5,
	"IEND": 99,
}

// orderIndex returns the chunk's canonical position, or the ancillary
// slot for unknown chunks.
func orderIndex(tag string) int {
	if i, ok := chunkOrder[tag]; ok {
		return i
	}
	return 3
}

// SortChunks stable-sorts an arbitrary chunk list into the canonical
// relative order, leaving chunks that share a canonical slot (multiple
// IDAT chunks, the ancillary chunks) in their original relative order.
func SortChunks(chunks []chunk.Chunk) []chunk.Chunk {
	out := make([]chunk.Chunk, len(chunks))
	copy(out, chunks)
	sort.SliceStable(out, func(i, j int) bool {
		return orderIndex(out[i].Tag.String()) < orderIndex(out[j].Tag.String())
	})
	return out
}

// Assemble arranges an image's chunks into the PNG spec's mandated
// relative order (IHDR first, IEND last, PLTE before IDAT, tRNS between
// PLTE and IDAT) while preserving the original relative order of chunks
// that share a canonical slot (notably multiple IDAT/fdAT data chunks,
// and any unknown ancillary chunks among themselves). The concatenation
// already matches canonical order for well-formed input; the trailing
// SortChunks pass is a safety net against a caller handing chunks to one
// of the grouped parameters out of order.
func Assemble(ihdr, plte, trns []chunk.Chunk, ancillary []pngimage.AncillaryChunk, data, iend []chunk.Chunk) []chunk.Chunk {
	out := make([]chunk.Chunk, 0, len(ihdr)+len(plte)+len(trns)+len(ancillary)+len(data)+len(iend))
	out = append(out, ihdr...)
	out = append(out, plte...)
	out = append(out, trns...)
	for _, a := range ancillary {
		out = append(out, chunk.Chunk{Tag: chunk.Tag(a.Tag), Payload: a.Payload})
	}
	out = append(out, data...)
	out = append(out, iend...)
	return SortChunks(out)
}
