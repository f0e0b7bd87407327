package policy

import (
	"testing"

	"github.com/go-pngopt/pngopt/internal/chunk"
	"github.com/go-pngopt/pngopt/internal/pngimage"
)

func TestFilterKeepNoneStripsEverything(t *testing.T) {
	anc := []pngimage.AncillaryChunk{
		{Tag: [4]byte{'t', 'E', 'X', 't'}},
		{Tag: [4]byte{'g', 'A', 'M', 'A'}},
	}
	got := Filter(anc, KeepNone)
	if len(got) != 0 {
		t.Errorf("KeepNone should strip all chunks, got %d", len(got))
	}
}

func TestFilterKeepSafeRetainsSafeAndAllowlisted(t *testing.T) {
	anc := []pngimage.AncillaryChunk{
		{Tag: [4]byte{'t', 'E', 'X', 't'}}, // metadata, not render-affecting: stripped
		{Tag: [4]byte{'g', 'A', 'M', 'A'}}, // render-affecting: kept
		{Tag: [4]byte{'b', 'K', 'G', 'D'}}, // render-affecting: kept, despite 4th letter uppercase
	}
	got := Filter(anc, KeepSafe)
	var survivors []string
	for _, a := range got {
		survivors = append(survivors, chunk.Tag(a.Tag).String())
	}
	want := map[string]bool{"gAMA": true, "bKGD": true}
	if len(got) != len(want) {
		t.Fatalf("KeepSafe survivors = %v, want exactly %v", survivors, want)
	}
	for _, s := range survivors {
		if !want[s] {
			t.Errorf("KeepSafe unexpectedly kept %s", s)
		}
	}
}

func TestFilterKeepSafeStripsNamedMetadataChunks(t *testing.T) {
	// spec.md §4.8 names these explicitly as chunks Safe must strip.
	anc := []pngimage.AncillaryChunk{
		{Tag: [4]byte{'t', 'E', 'X', 't'}},
		{Tag: [4]byte{'z', 'T', 'X', 't'}},
		{Tag: [4]byte{'i', 'T', 'X', 't'}},
		{Tag: [4]byte{'t', 'I', 'M', 'E'}},
		{Tag: [4]byte{'p', 'H', 'Y', 's'}},
	}
	got := Filter(anc, KeepSafe)
	if len(got) != 0 {
		t.Errorf("expected Safe to strip all of tEXt/zTXt/iTXt/tIME/pHYs, got %d survivors", len(got))
	}
}

func TestFilterWithOverridesKeepSetBeatsMode(t *testing.T) {
	anc := []pngimage.AncillaryChunk{{Tag: [4]byte{'t', 'E', 'X', 't'}}}
	got := FilterWithOverrides(anc, KeepNone, map[string]bool{"tEXt": true}, nil)
	if len(got) != 1 {
		t.Errorf("explicit Keep(set) should override KeepNone, got %d survivors", len(got))
	}
}

func TestFilterWithOverridesStripSetBeatsMode(t *testing.T) {
	anc := []pngimage.AncillaryChunk{{Tag: [4]byte{'g', 'A', 'M', 'A'}}}
	got := FilterWithOverrides(anc, KeepAll, nil, map[string]bool{"gAMA": true})
	if len(got) != 0 {
		t.Errorf("explicit Strip(set) should override KeepAll, got %d survivors", len(got))
	}
}

func TestFilterKeepAllRetainsEverything(t *testing.T) {
	anc := []pngimage.AncillaryChunk{
		{Tag: [4]byte{'t', 'E', 'X', 't'}},
		{Tag: [4]byte{'z', 'T', 'X', 't'}},
	}
	got := Filter(anc, KeepAll)
	if len(got) != len(anc) {
		t.Errorf("KeepAll should retain all chunks, got %d want %d", len(got), len(anc))
	}
}

func TestSortChunksOrdersCanonically(t *testing.T) {
	chunks := []chunk.Chunk{
		{Tag: chunk.TagIEND},
		{Tag: chunk.TagIDAT},
		{Tag: chunk.TagPLTE},
		{Tag: chunk.TagIHDR},
	}
	sorted := SortChunks(chunks)
	want := []string{"IHDR", "PLTE", "IDAT", "IEND"}
	for i, w := range want {
		if sorted[i].Tag.String() != w {
			t.Errorf("position %d = %s, want %s", i, sorted[i].Tag, w)
		}
	}
}

func TestSortChunksPreservesRelativeOrderWithinSlot(t *testing.T) {
	chunks := []chunk.Chunk{
		{Tag: chunk.TagIDAT, Payload: []byte{1}},
		{Tag: chunk.TagIDAT, Payload: []byte{2}},
		{Tag: chunk.TagIDAT, Payload: []byte{3}},
	}
	sorted := SortChunks(chunks)
	for i := range chunks {
		if sorted[i].Payload[0] != byte(i+1) {
			t.Errorf("IDAT chunk %d reordered unexpectedly", i)
		}
	}
}
