// Package apng parses and serializes the APNG extension chunks (acTL,
// fcTL, fdAT) into/from pngimage.AnimationControl, per spec.md §4.9. The
// chunk field layouts are grounded on shutej-apng's writer.go
// (Chunk_acTL, Chunk_fcTL, Chunk_fdAT). Frames keep their original
// dispose and blend ops; no alternative ops are tried.
package apng

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/go-pngopt/pngopt/internal/chunk"
	"github.com/go-pngopt/pngopt/internal/pngimage"
)

const (
	actlSize   = 8
	fctlSize   = 26
	fdatSeqLen = 4
)

var (
	ErrBadACTL = errors.New("pngopt: malformed acTL chunk")
	ErrBadFCTL = errors.New("pngopt: malformed fcTL chunk")
	ErrBadFDAT = errors.New("pngopt: malformed fdAT chunk")
)

// ParseACTL decodes an acTL chunk payload.
func ParseACTL(payload []byte) (numFrames, numPlays uint32, err error) {
	if len(payload) != actlSize {
		return 0, 0, ErrBadACTL
	}
	return binary.BigEndian.Uint32(payload[0:4]), binary.BigEndian.Uint32(payload[4:8]), nil
}

// EncodeACTL serializes an acTL chunk payload.
func EncodeACTL(numFrames, numPlays uint32) []byte {
	buf := make([]byte, actlSize)
	binary.BigEndian.PutUint32(buf[0:4], numFrames)
	binary.BigEndian.PutUint32(buf[4:8], numPlays)
	return buf
}

// fcTLFields is the decoded, not-yet-pixel-attached frame control chunk.
type fcTLFields struct {
	SequenceNumber     uint32
	Width, Height      uint32
	XOffset, YOffset   uint32
	DelayNum, DelayDen uint16
	Dispose            pngimage.DisposeOp
	Blend              pngimage.BlendOp
}

// ParseFCTL decodes an fcTL chunk payload.
func ParseFCTL(payload []byte) (fcTLFields, error) {
	if len(payload) != fctlSize {
		return fcTLFields{}, ErrBadFCTL
	}
	f := fcTLFields{
		SequenceNumber: binary.BigEndian.Uint32(payload[0:4]),
		Width:          binary.BigEndian.Uint32(payload[4:8]),
		Height:         binary.BigEndian.Uint32(payload[8:12]),
		XOffset:        binary.BigEndian.Uint32(payload[12:16]),
		YOffset:        binary.BigEndian.Uint32(payload[16:20]),
		DelayNum:       binary.BigEndian.Uint16(payload[20:22]),
		DelayDen:       binary.BigEndian.Uint16(payload[22:24]),
		Dispose:        pngimage.DisposeOp(payload[24]),
		Blend:          pngimage.BlendOp(payload[25]),
	}
	return f, nil
}

// EncodeFCTL serializes an fcTL chunk payload.
func EncodeFCTL(f fcTLFields) []byte {
	buf := make([]byte, fctlSize)
	binary.BigEndian.PutUint32(buf[0:4], f.SequenceNumber)
	binary.BigEndian.PutUint32(buf[4:8], f.Width)
	binary.BigEndian.PutUint32(buf[8:12], f.Height)
	binary.BigEndian.PutUint32(buf[12:16], f.XOffset)
	binary.BigEndian.PutUint32(buf[16:20], f.YOffset)
	binary.BigEndian.PutUint16(buf[20:22], f.DelayNum)
	binary.BigEndian.PutUint16(buf[22:24], f.DelayDen)
	buf[24] = byte(f.Dispose)
	buf[25] = byte(f.Blend)
	return buf
}

// SplitFDAT separates an fdAT chunk's leading sequence number from its
// compressed frame data, which is otherwise byte-identical to an IDAT
// payload.
func SplitFDAT(payload []byte) (seq uint32, data []byte, err error) {
	if len(payload) < fdatSeqLen {
		return 0, nil, ErrBadFDAT
	}
	return binary.BigEndian.Uint32(payload[0:fdatSeqLen]), payload[fdatSeqLen:], nil
}

// EncodeFDAT prepends a sequence number to a compressed data stream to
// form an fdAT payload.
func EncodeFDAT(seq uint32, data []byte) []byte {
	buf := make([]byte, fdatSeqLen+len(data))
	binary.BigEndian.PutUint32(buf[0:4], seq)
	copy(buf[4:], data)
	return buf
}

// SequenceAllocator hands out the monotonically increasing sequence
// numbers fcTL/fdAT chunks require across the whole animation, mirroring
// shutej-apng's SequenceNumbers helper.
type SequenceAllocator struct {
	next uint32
}

// Next returns the next sequence number and advances the allocator.
func (s *SequenceAllocator) Next() uint32 {
	v := s.next
	s.next++
	return v
}

// BuildChunks serializes an AnimationControl's acTL/fcTL/fdAT/IDAT chunks
// given each frame's already-compressed raw stream. frameCompressed[i]
// corresponds to anim.Frames[i]; the frame with IsDefaultImage true
// contributes an IDAT (not fdAT) chunk and is not preceded by its own
// fcTL-adjacent sequence consumption beyond the fcTL itself, per the
// APNG spec's rule that the default image may be shared with the first
// frame.
func BuildChunks(anim *pngimage.AnimationControl, frameCompressed [][]byte, fdatChunkSize int) []chunk.Chunk {
	if fdatChunkSize <= 0 {
		fdatChunkSize = 1 << 20
	}
	var out []chunk.Chunk
	out = append(out, chunk.Chunk{Tag: chunk.TagACTL, Payload: EncodeACTL(anim.NumFrames, anim.NumPlays)})

	seq := &SequenceAllocator{}
	for i, f := range anim.Frames {
		out = append(out, chunk.Chunk{Tag: chunk.TagFCTL, Payload: EncodeFCTL(fcTLFields{
			SequenceNumber: seq.Next(),
			Width:          f.Width,
			Height:         f.Height,
			XOffset:        f.XOffset,
			YOffset:        f.YOffset,
			DelayNum:       f.DelayNum,
			DelayDen:       f.DelayDen,
			Dispose:        f.Dispose,
			Blend:          f.Blend,
		})})

		if f.IsDefaultImage {
			out = append(out, splitIDAT(frameCompressed[i], fdatChunkSize)...)
			continue
		}
		out = append(out, splitFDAT(seq, frameCompressed[i], fdatChunkSize)...)
	}
	return out
}

func splitIDAT(data []byte, chunkSize int) []chunk.Chunk {
	var out []chunk.Chunk
	off := 0
	for first := true; first || off < len(data); first = false {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		out = append(out, chunk.Chunk{Tag: chunk.TagIDAT, Payload: data[off:end]})
		off = end
	}
	return out
}

func splitFDAT(seq *SequenceAllocator, data []byte, chunkSize int) []chunk.Chunk {
	var out []chunk.Chunk
	off := 0
	for first := true; first || off < len(data); first = false {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		out = append(out, chunk.Chunk{Tag: chunk.TagFDAT, Payload: EncodeFDAT(seq.Next(), data[off:end])})
		off = end
	}
	return out
}
