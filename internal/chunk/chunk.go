// Package chunk implements the PNG chunk stream: the 8-byte signature,
// and the length|tag|payload|CRC framing used by every chunk after it.
// The shape mirrors the RIFF chunk reader in the teacher repo's
// mux/chunk.go and internal/container/riff.go, adapted from RIFF's
// even-byte padding to PNG's unpadded, big-endian, CRC-32-trailed
// framing.
package chunk

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/snksoft/crc"
)

// Signature is the fixed 8-byte PNG file signature.
var Signature = [8]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// Tag is a 4-byte chunk type code, e.g. "IHDR" or "IDAT".
type Tag [4]byte

// NewTag builds a Tag from a string, for use with literal chunk names.
func NewTag(s string) Tag {
	var t Tag
	copy(t[:], s)
	return t
}

func (t Tag) String() string { return string(t[:]) }

// IsAncillary reports whether bit 5 of the first byte is set, marking the
// chunk as non-critical per the PNG spec's chunk-naming convention.
func (t Tag) IsAncillary() bool { return t[0]&0x20 != 0 }

// IsPrivate reports whether bit 5 of the second byte is set.
func (t Tag) IsPrivate() bool { return t[1]&0x20 != 0 }

// IsSafeToCopy reports whether bit 5 of the fourth byte is set, meaning an
// editor that does not understand the chunk may still copy it unmodified.
func (t Tag) IsSafeToCopy() bool { return t[3]&0x20 != 0 }

// Chunk is one length-prefixed, CRC-trailed chunk record.
type Chunk struct {
	Tag     Tag
	Payload []byte
}

// Well-known critical chunk tags.
var (
	TagIHDR = NewTag("IHDR")
	TagPLTE = NewTag("PLTE")
	TagIDAT = NewTag("IDAT")
	TagIEND = NewTag("IEND")
	TagTRNS = NewTag("tRNS")
	TagACTL = NewTag("acTL")
	TagFCTL = NewTag("fcTL")
	TagFDAT = NewTag("fdAT")
)

// checksum computes the PNG CRC-32 over tag+payload, matching the
// reference polynomial the spec mandates (ISO 3309 / ITU-T V.42, the same
// table zlib's crc32 uses).
func checksum(tag Tag, payload []byte) uint32 {
	buf := make([]byte, 0, 4+len(payload))
	buf = append(buf, tag[:]...)
	buf = append(buf, payload...)
	return uint32(crc.CalculateCRC(crc.CRC32, buf))
}

// MaxChunkLength bounds a single chunk payload to the PNG spec's signed
// 31-bit length limit.
const MaxChunkLength = 1<<31 - 1

var (
	ErrBadSignature = errors.New("pngopt: not a PNG file (bad signature)")
	ErrChunkTooLong = errors.New("pngopt: chunk length exceeds 2^31-1")
	ErrBadCRC       = errors.New("pngopt: chunk CRC mismatch")
	ErrTruncated    = errors.New("pngopt: truncated chunk stream")
)

// Reader streams chunks out of a PNG byte stream after validating the
// leading signature.
type Reader struct {
	r   *bufio.Reader
	hdr [8]byte
}

// NewReader validates the 8-byte PNG signature and returns a Reader
// positioned at the first chunk.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var sig [8]byte
	if _, err := io.ReadFull(br, sig[:]); err != nil {
		return nil, errors.Wrap(ErrBadSignature, err.Error())
	}
	if sig != Signature {
		return nil, ErrBadSignature
	}
	return &Reader{r: br}, nil
}

// Next reads the following chunk, or returns io.EOF once the stream is
// exhausted (callers typically stop at IEND instead of relying on EOF).
func (r *Reader) Next() (Chunk, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:8]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Chunk{}, ErrTruncated
		}
		return Chunk{}, err
	}
	length := binary.BigEndian.Uint32(r.hdr[:4])
	if length > MaxChunkLength {
		return Chunk{}, ErrChunkTooLong
	}
	var tag Tag
	copy(tag[:], r.hdr[4:8])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Chunk{}, errors.Wrap(ErrTruncated, err.Error())
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r.r, crcBuf[:]); err != nil {
		return Chunk{}, errors.Wrap(ErrTruncated, err.Error())
	}
	want := binary.BigEndian.Uint32(crcBuf[:])
	if got := checksum(tag, payload); got != want {
		return Chunk{}, errors.Wrapf(ErrBadCRC, "chunk %s: got %08x want %08x", tag, got, want)
	}
	return Chunk{Tag: tag, Payload: payload}, nil
}

// ReadAll reads every chunk through and including IEND. It is the common
// entry point for decoding a whole file into memory.
func ReadAll(r io.Reader) ([]Chunk, error) {
	cr, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	var chunks []Chunk
	for {
		c, err := cr.Next()
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
		if c.Tag == TagIEND {
			return chunks, nil
		}
	}
}

// Writer serializes chunks into a PNG byte stream, writing the signature
// on construction.
type Writer struct {
	w   io.Writer
	buf [8]byte
	err error
}

// NewWriter writes the PNG signature and returns a Writer ready to accept
// chunks.
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := w.Write(Signature[:]); err != nil {
		return nil, err
	}
	return &Writer{w: w}, nil
}

// Write emits one chunk with its length prefix and trailing CRC.
func (w *Writer) Write(c Chunk) error {
	if w.err != nil {
		return w.err
	}
	if len(c.Payload) > MaxChunkLength {
		w.err = ErrChunkTooLong
		return w.err
	}
	binary.BigEndian.PutUint32(w.buf[:4], uint32(len(c.Payload)))
	copy(w.buf[4:8], c.Tag[:])
	if _, err := w.w.Write(w.buf[:8]); err != nil {
		w.err = err
		return err
	}
	if len(c.Payload) > 0 {
		if _, err := w.w.Write(c.Payload); err != nil {
			w.err = err
			return err
		}
	}
	sum := checksum(c.Tag, c.Payload)
	binary.BigEndian.PutUint32(w.buf[:4], sum)
	if _, err := w.w.Write(w.buf[:4]); err != nil {
		w.err = err
		return err
	}
	return nil
}

// WriteAll serializes an entire chunk list, signature included.
func WriteAll(w io.Writer, chunks []Chunk) error {
	cw, err := NewWriter(w)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if err := cw.Write(c); err != nil {
			return err
		}
	}
	return nil
}
