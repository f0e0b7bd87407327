package compressor

import (
	"bytes"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("hello world, pngopt"), 50)

	compressed, err := Compress(data, Params{Level: 9}, 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) == 0 {
		t.Fatal("expected non-empty compressed output")
	}

	got, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round trip did not reproduce original data")
	}
}

func TestCompressMaxSizeHintAborts(t *testing.T) {
	data := bytes.Repeat([]byte{0}, 1024)

	compressed, err := Compress(data, Params{Level: 1}, 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	// A hint smaller than what this data can ever compress to should
	// make Compress report no improvement.
	result, err := Compress(data, Params{Level: 1}, 1)
	if err != nil {
		t.Fatalf("Compress with hint: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result when hint (%d) is unbeatable, got %d bytes", 1, len(result))
	}
	_ = compressed
}

func TestCompressIterationsPicksSmallest(t *testing.T) {
	data := bytes.Repeat([]byte("abcabcabcabc"), 200)
	out, err := Compress(data, Params{Level: 6, Iterations: 3}, 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected non-empty output")
	}
	single, err := Compress(data, Params{Level: 6}, 0)
	if err != nil {
		t.Fatalf("Compress single pass: %v", err)
	}
	if len(out) > len(single) {
		t.Errorf("3 iterations gave %d bytes, single pass gave %d", len(out), len(single))
	}
}

func TestLevelFromPreset(t *testing.T) {
	tests := []struct {
		effort int
		want   int
	}{
		{0, 0},
		{1, 1},
		{9, 9},
		{12, 9},
		{-5, 0},
	}
	for _, tt := range tests {
		if got := LevelFromPreset(tt.effort); got != tt.want {
			t.Errorf("LevelFromPreset(%d) = %d, want %d", tt.effort, got, tt.want)
		}
	}
}
