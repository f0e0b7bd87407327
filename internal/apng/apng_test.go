package apng

import (
	"testing"

	"github.com/go-pngopt/pngopt/internal/pngimage"
)

func TestACTLRoundTrip(t *testing.T) {
	payload := EncodeACTL(7, 3)
	numFrames, numPlays, err := ParseACTL(payload)
	if err != nil {
		t.Fatalf("ParseACTL: %v", err)
	}
	if numFrames != 7 || numPlays != 3 {
		t.Errorf("got (%d,%d), want (7,3)", numFrames, numPlays)
	}
}

func TestACTLRejectsWrongLength(t *testing.T) {
	if _, _, err := ParseACTL([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short acTL payload")
	}
}

func TestFCTLRoundTrip(t *testing.T) {
	f := fcTLFields{
		SequenceNumber: 2,
		Width:          100,
		Height:         50,
		XOffset:        10,
		YOffset:        20,
		DelayNum:       1,
		DelayDen:       30,
		Dispose:        pngimage.DisposeBackground,
		Blend:          pngimage.BlendOver,
	}
	payload := EncodeFCTL(f)
	got, err := ParseFCTL(payload)
	if err != nil {
		t.Fatalf("ParseFCTL: %v", err)
	}
	if got != f {
		t.Errorf("got %+v, want %+v", got, f)
	}
}

func TestFDATRoundTrip(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	payload := EncodeFDAT(9, data)
	seq, got, err := SplitFDAT(payload)
	if err != nil {
		t.Fatalf("SplitFDAT: %v", err)
	}
	if seq != 9 {
		t.Errorf("seq = %d, want 9", seq)
	}
	if len(got) != len(data) {
		t.Fatalf("data length = %d, want %d", len(got), len(data))
	}
}

func TestSequenceAllocatorIncrements(t *testing.T) {
	s := &SequenceAllocator{}
	if v := s.Next(); v != 0 {
		t.Errorf("first Next() = %d, want 0", v)
	}
	if v := s.Next(); v != 1 {
		t.Errorf("second Next() = %d, want 1", v)
	}
}

func TestBuildChunksProducesACTLFirst(t *testing.T) {
	anim := &pngimage.AnimationControl{
		NumFrames: 2,
		NumPlays:  0,
		Frames: []pngimage.Frame{
			{Width: 4, Height: 4, IsDefaultImage: true},
			{Width: 4, Height: 4},
		},
	}
	chunks := BuildChunks(anim, [][]byte{{1, 2, 3}, {4, 5, 6}}, 1024)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	if chunks[0].Tag.String() != "acTL" {
		t.Errorf("first chunk = %s, want acTL", chunks[0].Tag)
	}
}
