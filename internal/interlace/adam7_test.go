package interlace

import (
	"bytes"
	"testing"

	"github.com/go-pngopt/pngopt/internal/pngimage"
)

func TestPassDimensions(t *testing.T) {
	tests := []struct {
		w, h, idx  int
		wantW, wantH int
	}{
		{8, 8, 0, 1, 1},
		{1, 1, 0, 1, 1},
		{1, 1, 1, 0, 1},
		{1, 1, 6, 1, 0},
		{8, 8, 6, 8, 4},
	}
	for _, tt := range tests {
		w, h := PassDimensions(tt.w, tt.h, tt.idx)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("PassDimensions(%d,%d,%d) = (%d,%d), want (%d,%d)", tt.w, tt.h, tt.idx, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestAdam7RoundTrip8Bit(t *testing.T) {
	header := pngimage.IHDRHeader{ColorType: pngimage.ColorGray, BitDepth: 8}
	width, height := 9, 9
	rows := make([][]byte, height)
	val := byte(0)
	for y := 0; y < height; y++ {
		row := make([]byte, width)
		for x := 0; x < width; x++ {
			row[x] = val
			val++
		}
		rows[y] = row
	}
	flat := pngimage.Pass{Width: width, Height: height, Rows: rows}

	adam7 := ToAdam7(header, flat)
	back := FromAdam7(header, adam7, width, height)

	for y := 0; y < height; y++ {
		if !bytes.Equal(back.Rows[y], flat.Rows[y]) {
			t.Errorf("row %d mismatch: got %v, want %v", y, back.Rows[y], flat.Rows[y])
		}
	}
}

func TestAdam7RoundTripSubByteDepth(t *testing.T) {
	header := pngimage.IHDRHeader{ColorType: pngimage.ColorGray, BitDepth: 2}
	width, height := 13, 5
	rowBytes := header.RowBytes(width)
	rows := make([][]byte, height)
	for y := range rows {
		row := make([]byte, rowBytes)
		for i := range row {
			row[i] = byte((y*7 + i*13) & 0xff)
		}
		rows[y] = row
	}
	flat := pngimage.Pass{Width: width, Height: height, Rows: rows}

	adam7 := ToAdam7(header, flat)
	back := FromAdam7(header, adam7, width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			got := getBits(back.Rows[y], x, 2)
			want := getBits(flat.Rows[y], x, 2)
			if got != want {
				t.Errorf("pixel (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}
