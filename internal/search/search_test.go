package search

import (
	"context"
	"testing"

	"github.com/go-pngopt/pngopt/internal/compressor"
	"github.com/go-pngopt/pngopt/internal/filter"
	"github.com/go-pngopt/pngopt/internal/pngimage"
)

func sampleImage() (pngimage.IHDRHeader, pngimage.PixelData) {
	header := pngimage.IHDRHeader{Width: 8, Height: 8, BitDepth: 8, ColorType: pngimage.ColorRGB}
	rows := make([][]byte, 8)
	for y := range rows {
		row := make([]byte, 24)
		for i := range row {
			row[i] = byte((y*17 + i*5) & 0xff)
		}
		rows[y] = row
	}
	return header, pngimage.PixelData{Passes: []pngimage.Pass{{Width: 8, Height: 8, Rows: rows}}}
}

func TestRunPicksSmallestCandidate(t *testing.T) {
	header, pixels := sampleImage()
	specs := []CandidateSpec{
		{Rank: 0, Strategy: filter.StrategyFixed, Params: compressor.Params{Level: 0}},
		{Rank: 1, Strategy: filter.StrategyMinSum, Params: compressor.Params{Level: 9}},
	}

	result, err := Run(context.Background(), header, pixels, specs, Options{Workers: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Size == 0 {
		t.Fatal("expected a non-empty result")
	}
	// Level 0 stores the data uncompressed, so the MinSum/level 9
	// candidate is the smaller one.
	if result.Spec.Rank != 1 {
		t.Errorf("winner rank = %d, want 1 (the compressed candidate)", result.Spec.Rank)
	}
}

func TestRunDeterministicTieBreak(t *testing.T) {
	header, pixels := sampleImage()
	// Two identical specs: the result must pick the lower rank on a tie.
	specs := []CandidateSpec{
		{Rank: 5, Strategy: filter.StrategyFixed, Params: compressor.Params{Level: 6}},
		{Rank: 1, Strategy: filter.StrategyFixed, Params: compressor.Params{Level: 6}},
	}
	result, err := Run(context.Background(), header, pixels, specs, Options{Workers: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Spec.Rank != 1 {
		t.Errorf("winner rank = %d, want 1 (lowest rank on tie)", result.Spec.Rank)
	}
}

func TestPresetSpecsNonEmpty(t *testing.T) {
	for p := Preset0; p <= PresetMax; p++ {
		specs := p.Specs()
		if len(specs) == 0 {
			t.Errorf("preset %d produced no candidates", p)
		}
	}
}

func TestPresetBreadthIncreasesWithEffort(t *testing.T) {
	if len(Preset0.Specs()) >= len(Preset6.Specs()) {
		t.Error("expected preset 6 to enumerate more candidates than preset 0")
	}
}

func TestParsePreset(t *testing.T) {
	if ParsePreset(0, false) != Preset0 {
		t.Error("level 0 should map to Preset0")
	}
	if ParsePreset(6, false) != Preset6 {
		t.Error("level 6 should map to Preset6")
	}
	if ParsePreset(0, true) != PresetMax {
		t.Error("max=true should always map to PresetMax")
	}
	if ParsePreset(100, false) != Preset6 {
		t.Error("out-of-range level should clamp to Preset6")
	}
}
