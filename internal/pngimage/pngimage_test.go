package pngimage

import (
	"image/color"
	"testing"
)

func TestColorTypeChannels(t *testing.T) {
	tests := []struct {
		c    ColorType
		want int
	}{
		{ColorGray, 1},
		{ColorRGB, 3},
		{ColorIndexed, 1},
		{ColorGrayAlpha, 2},
		{ColorRGBA, 4},
	}
	for _, tt := range tests {
		if got := tt.c.Channels(); got != tt.want {
			t.Errorf("%v.Channels() = %d, want %d", tt.c, got, tt.want)
		}
	}
}

func TestColorTypeValidDepth(t *testing.T) {
	tests := []struct {
		c     ColorType
		depth uint8
		want  bool
	}{
		{ColorGray, 1, true},
		{ColorGray, 16, true},
		{ColorGray, 3, false},
		{ColorRGB, 8, true},
		{ColorRGB, 4, false},
		{ColorIndexed, 8, true},
		{ColorIndexed, 16, false},
		{ColorGrayAlpha, 8, true},
		{ColorGrayAlpha, 1, false},
		{ColorRGBA, 16, true},
	}
	for _, tt := range tests {
		if got := tt.c.ValidDepth(tt.depth); got != tt.want {
			t.Errorf("ColorType(%d).ValidDepth(%d) = %v, want %v", tt.c, tt.depth, got, tt.want)
		}
	}
}

func TestIHDRHeaderValidate(t *testing.T) {
	good := IHDRHeader{Width: 4, Height: 4, BitDepth: 8, ColorType: ColorRGBA}
	if err := good.Validate(); err != nil {
		t.Errorf("expected valid header, got error: %v", err)
	}

	bad := []IHDRHeader{
		{Width: 0, Height: 4, BitDepth: 8, ColorType: ColorRGBA},
		{Width: 4, Height: 4, BitDepth: 3, ColorType: ColorRGB},
		{Width: 4, Height: 4, BitDepth: 8, ColorType: 5},
		{Width: 4, Height: 4, BitDepth: 8, ColorType: ColorRGBA, InterlaceMethod: 9},
	}
	for i, h := range bad {
		if err := h.Validate(); err == nil {
			t.Errorf("case %d: expected error, got nil", i)
		}
	}
}

func TestRowBytes(t *testing.T) {
	h := IHDRHeader{ColorType: ColorRGB, BitDepth: 8}
	if got := h.RowBytes(4); got != 12 {
		t.Errorf("RowBytes(4) = %d, want 12", got)
	}

	h2 := IHDRHeader{ColorType: ColorGray, BitDepth: 1}
	if got := h2.RowBytes(10); got != 2 {
		t.Errorf("RowBytes(10) = %d, want 2", got)
	}
}

func TestPixelStride(t *testing.T) {
	tests := []struct {
		h    IHDRHeader
		want int
	}{
		{IHDRHeader{ColorType: ColorGray, BitDepth: 1}, 1},
		{IHDRHeader{ColorType: ColorGray, BitDepth: 8}, 1},
		{IHDRHeader{ColorType: ColorRGB, BitDepth: 8}, 3},
		{IHDRHeader{ColorType: ColorRGBA, BitDepth: 16}, 8},
	}
	for _, tt := range tests {
		if got := tt.h.PixelStride(); got != tt.want {
			t.Errorf("PixelStride() = %d, want %d", got, tt.want)
		}
	}
}

func TestPaletteHasAlpha(t *testing.T) {
	var p *Palette
	if p.HasAlpha() {
		t.Error("nil palette should report no alpha")
	}

	p = &Palette{Entries: []color.RGBA{{0, 0, 0, 255}, {1, 1, 1, 255}}}
	if p.HasAlpha() {
		t.Error("fully opaque palette should report no alpha")
	}

	p2 := &Palette{Entries: []color.RGBA{{0, 0, 0, 255}, {1, 1, 1, 200}}}
	if !p2.HasAlpha() {
		t.Error("palette with a translucent entry should report alpha")
	}
}

func TestPNGImageCloneIsIndependent(t *testing.T) {
	img := &PNGImage{
		Header:  IHDRHeader{Width: 2, Height: 1, BitDepth: 8, ColorType: ColorGray},
		Palette: &Palette{Entries: []color.RGBA{{1, 2, 3, 255}}},
		Pixels: PixelData{Passes: []Pass{{
			Width: 2, Height: 1, Rows: [][]byte{{10, 20}},
		}}},
	}

	clone := img.Clone()
	clone.Pixels.Passes[0].Rows[0][0] = 99
	clone.Palette.Entries[0].R = 77

	if img.Pixels.Passes[0].Rows[0][0] != 10 {
		t.Error("mutating clone's pixel row affected the original")
	}
	if img.Palette.Entries[0].R != 1 {
		t.Error("mutating clone's palette affected the original")
	}
}

func TestIsAPNG(t *testing.T) {
	img := &PNGImage{}
	if img.IsAPNG() {
		t.Error("image without Animation should not be APNG")
	}
	img.Animation = &AnimationControl{NumFrames: 1}
	if !img.IsAPNG() {
		t.Error("image with Animation should be APNG")
	}
}
