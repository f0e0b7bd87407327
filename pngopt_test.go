package pngopt

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"

	"github.com/go-pngopt/pngopt/internal/chunk"
	"github.com/go-pngopt/pngopt/internal/compressor"
	"github.com/go-pngopt/pngopt/internal/filter"
	"github.com/go-pngopt/pngopt/internal/pngimage"
	"github.com/go-pngopt/pngopt/internal/policy"
	"github.com/go-pngopt/pngopt/internal/rawcodec"
)

// buildPNG assembles a minimal, valid, uncompressed-at-high-level PNG
// file for a solid-color image, the same "construct bytes directly via
// the chunk writer" approach rawcodec_test.go and chunk_test.go use,
// so Optimize can be exercised without a real image fixture on disk.
func buildPNG(t *testing.T, width, height int, colorType pngimage.ColorType, fill byte, ancillary ...chunk.Chunk) []byte {
	t.Helper()
	bpp := colorType.Channels() * 8
	rowBytes := (width*bpp + 7) / 8
	rows := make([][]byte, height)
	for y := range rows {
		row := make([]byte, rowBytes)
		for i := range row {
			row[i] = fill
		}
		rows[y] = row
	}
	header := pngimage.IHDRHeader{
		Width: uint32(width), Height: uint32(height),
		BitDepth: 8, ColorType: colorType,
	}
	pixels := pngimage.PixelData{Passes: []pngimage.Pass{{Width: width, Height: height, Rows: rows}}}
	raw := rawcodec.Encode(header, pixels, rawcodec.FilterOptions{Strategy: filter.StrategyFixed})
	compressed, err := compressor.Compress(raw, compressor.Params{Level: 6}, 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	chunks := []chunk.Chunk{{Tag: chunk.TagIHDR, Payload: encodeIHDR(header)}}
	chunks = append(chunks, ancillary...)
	chunks = append(chunks,
		chunk.Chunk{Tag: chunk.TagIDAT, Payload: compressed},
		chunk.Chunk{Tag: chunk.TagIEND},
	)
	var buf bytes.Buffer
	if err := chunk.WriteAll(&buf, chunks); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	return buf.Bytes()
}

func TestOptimizeRoundTripsASolidImage(t *testing.T) {
	data := buildPNG(t, 16, 16, pngimage.ColorRGB, 0x42)

	out, err := Optimize(data, DefaultOptions())
	if err != nil && !errors.Is(err, ErrCannotImprove) {
		t.Fatalf("Optimize: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected non-empty output")
	}

	img, err := decode(out, DefaultOptions())
	if err != nil {
		t.Fatalf("re-decoding optimizer output: %v", err)
	}
	if img.Header.Width != 16 || img.Header.Height != 16 {
		t.Fatalf("dimensions changed: got %dx%d", img.Header.Width, img.Header.Height)
	}
	row := img.Pixels.Passes[0].Rows[0]
	for _, b := range row {
		if b != 0x42 {
			t.Fatalf("pixel data not preserved losslessly: got %#x want 0x42", b)
		}
	}
}

func TestOptimizeAppliesGrayscaleReduction(t *testing.T) {
	// An RGB image where every channel is equal is losslessly
	// convertible to grayscale; the optimized output's color type
	// should reflect that.
	data := buildPNG(t, 8, 8, pngimage.ColorRGB, 0x10)

	out, err := Optimize(data, DefaultOptions())
	if err != nil && !errors.Is(err, ErrCannotImprove) {
		t.Fatalf("Optimize: %v", err)
	}
	img, err := decode(out, DefaultOptions())
	if err != nil {
		t.Fatalf("re-decoding optimizer output: %v", err)
	}
	if img.Header.ColorType != pngimage.ColorGray {
		t.Errorf("expected RGB-to-gray reduction, got color type %s", img.Header.ColorType)
	}
}

func TestOptimizeRejectsNonPNG(t *testing.T) {
	_, err := Optimize([]byte("not a png file at all"), DefaultOptions())
	if !errors.Is(err, ErrNotPng) {
		t.Fatalf("expected ErrNotPng, got %v", err)
	}
}

func TestOptimizeStripSafeDropsTextChunk(t *testing.T) {
	textChunk := chunk.Chunk{Tag: chunk.NewTag("tEXt"), Payload: []byte("Comment\x00hello")}
	data := buildPNG(t, 1, 1, pngimage.ColorGray, 0x00, textChunk)

	opts := DefaultOptions()
	opts.Strip = policy.KeepSafe
	opts.Force = true
	out, err := Optimize(data, opts)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	chunks, err := chunk.ReadAll(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("re-reading optimizer output: %v", err)
	}
	var tags []string
	for _, c := range chunks {
		tags = append(tags, c.Tag.String())
	}
	want := []string{"IHDR", "IDAT", "IEND"}
	if len(tags) != len(want) {
		t.Fatalf("chunk tags = %v, want exactly %v", tags, want)
	}
	for i, w := range want {
		if tags[i] != w {
			t.Errorf("chunk %d = %s, want %s", i, tags[i], w)
		}
	}
}

func TestOptimizeForceWritesEvenWithoutImprovement(t *testing.T) {
	data := buildPNG(t, 2, 2, pngimage.ColorGray, 0x00)
	opts := DefaultOptions()
	opts.Force = true
	out, err := Optimize(data, opts)
	if err != nil {
		t.Fatalf("Optimize with Force: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected output with Force set")
	}
}

