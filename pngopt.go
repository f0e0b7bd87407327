package pngopt

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/go-pngopt/pngopt/internal/apng"
	"github.com/go-pngopt/pngopt/internal/chunk"
	"github.com/go-pngopt/pngopt/internal/filter"
	"github.com/go-pngopt/pngopt/internal/interlace"
	"github.com/go-pngopt/pngopt/internal/pngimage"
	"github.com/go-pngopt/pngopt/internal/policy"
	"github.com/go-pngopt/pngopt/internal/rawcodec"
	"github.com/go-pngopt/pngopt/internal/reduce"
	"github.com/go-pngopt/pngopt/internal/search"
)

// Optimize reads a PNG/APNG from data, runs the optimization pipeline,
// and returns the smallest byte-for-byte-valid PNG it finds. If no
// candidate beats len(data) and opts.Force is false, it returns
// ErrCannotImprove together with the unchanged input bytes.
func Optimize(data []byte, opts Options) ([]byte, error) {
	img, err := decode(data, opts)
	if err != nil {
		return nil, err
	}

	reduced := reduce.Run(img, opts.reduceOptions())
	applyInterlaceMode(reduced, opts.Interlace)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	preset := search.ParsePreset(opts.PresetLevel, opts.PresetMax)

	out, err := encode(reduced, opts, preset, logger)
	if err != nil {
		return nil, err
	}

	if len(out) >= len(data) && !opts.Force {
		return data, errors.Wrapf(ErrCannotImprove, "best candidate %d bytes >= input %d bytes", len(out), len(data))
	}
	return out, nil
}

// OptimizeFile reads path, optimizes it, and returns the resulting
// bytes without modifying the file on disk.
func OptimizeFile(path string, opts Options) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(ErrIoError, err.Error())
	}
	return Optimize(data, opts)
}

// OptimizeInPlace optimizes path and, if the result is smaller (or
// opts.Force is set), atomically replaces the file with it via a
// write-to-temp-then-rename sequence, the same pattern
// Illirgway-sboptimizeassets' service/png_optimizer.go uses to avoid
// ever leaving a half-written file in place of the original.
func OptimizeInPlace(path string, opts Options) error {
	out, err := OptimizeFile(path, opts)
	if err != nil && !errors.Is(err, ErrCannotImprove) {
		return err
	}
	if errors.Is(err, ErrCannotImprove) && !opts.Force {
		return nil
	}

	tmp := path + ".pngopt-tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return errors.Wrap(ErrIoError, err.Error())
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(ErrIoError, err.Error())
	}
	return nil
}

// decode parses the chunk stream and builds the pixel-level image
// model.
func decode(data []byte, opts Options) (*pngimage.PNGImage, error) {
	chunks, err := readChunks(data, opts.FixErrors)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 || chunks[0].Tag != chunk.TagIHDR {
		return nil, errors.Wrap(ErrCorruptFile, "missing leading IHDR chunk")
	}

	header, err := parseIHDR(chunks[0].Payload)
	if err != nil {
		return nil, err
	}
	if err := header.Validate(); err != nil {
		return nil, mapHeaderErr(err)
	}

	img := &pngimage.PNGImage{Header: header}
	var idatParts [][]byte
	var actlPayload []byte
	var frameChunks []frameChunkGroup
	var current *frameChunkGroup

	for _, c := range chunks[1:] {
		switch c.Tag {
		case chunk.TagPLTE:
			img.Palette = parsePLTE(c.Payload)
		case chunk.TagTRNS:
			img.Transparency = parseTRNS(header.ColorType, c.Payload, img.Palette)
		case chunk.TagACTL:
			actlPayload = c.Payload
		case chunk.TagFCTL:
			f, err := apng.ParseFCTL(c.Payload)
			if err != nil {
				return nil, err
			}
			if current != nil {
				frameChunks = append(frameChunks, *current)
			}
			current = &frameChunkGroup{fctl: f}
		case chunk.TagFDAT:
			if current == nil {
				return nil, errors.New("pngopt: fdAT chunk without preceding fcTL")
			}
			_, part, err := apng.SplitFDAT(c.Payload)
			if err != nil {
				return nil, err
			}
			current.data = append(current.data, part...)
		case chunk.TagIDAT:
			idatParts = append(idatParts, c.Payload)
			if current != nil && !current.isDefault && len(frameChunks) == 0 {
				current.isDefault = true
				current.data = append(current.data, c.Payload...)
			}
		case chunk.TagIEND:
			// handled structurally; nothing to record.
		default:
			img.Ancillary = append(img.Ancillary, pngimage.AncillaryChunk{Tag: c.Tag, Payload: c.Payload})
		}
	}
	if current != nil {
		frameChunks = append(frameChunks, *current)
	}

	concatenatedIDAT := concatParts(idatParts)

	if actlPayload != nil {
		numFrames, numPlays, err := apng.ParseACTL(actlPayload)
		if err != nil {
			return nil, err
		}
		anim := &pngimage.AnimationControl{NumFrames: numFrames, NumPlays: numPlays}
		for _, fc := range frameChunks {
			frameHeader := header
			frameHeader.Width = fc.fctl.Width
			frameHeader.Height = fc.fctl.Height

			compressed := fc.data
			if fc.isDefault {
				compressed = concatenatedIDAT
			}
			pixels, err := rawcodec.Decode(frameHeader, compressed)
			if err != nil {
				return nil, errors.Wrap(err, "decoding APNG frame")
			}
			anim.Frames = append(anim.Frames, pngimage.Frame{
				SequenceNumber: fc.fctl.SequenceNumber,
				Width:          fc.fctl.Width,
				Height:         fc.fctl.Height,
				XOffset:        fc.fctl.XOffset,
				YOffset:        fc.fctl.YOffset,
				DelayNum:       fc.fctl.DelayNum,
				DelayDen:       fc.fctl.DelayDen,
				Dispose:        fc.fctl.Dispose,
				Blend:          fc.fctl.Blend,
				IsDefaultImage: fc.isDefault,
				Pixels:         pixels,
			})
		}
		img.Animation = anim
		// The still-image Pixels field mirrors the default frame so
		// that callers inspecting img outside the APNG path still see
		// something decodable; it is not independently re-encoded.
		if len(anim.Frames) > 0 {
			for _, f := range anim.Frames {
				if f.IsDefaultImage {
					img.Pixels = f.Pixels
					break
				}
			}
		}
		return img, nil
	}

	pixels, err := rawcodec.Decode(header, concatenatedIDAT)
	if err != nil {
		return nil, errors.Wrap(err, "decoding IDAT stream")
	}
	img.Pixels = pixels
	return img, nil
}

type frameChunkGroup struct {
	fctl      fcTLCompat
	data      []byte
	isDefault bool
}

// fcTLCompat aliases the unexported apng field struct's shape via the
// exported parse/encode functions; decode only needs the fields, so it
// reconstructs them through ParseFCTL's return value directly.
type fcTLCompat = struct {
	SequenceNumber     uint32
	Width, Height      uint32
	XOffset, YOffset   uint32
	DelayNum, DelayDen uint16
	Dispose            pngimage.DisposeOp
	Blend              pngimage.BlendOp
}

func readChunks(data []byte, fixErrors bool) ([]chunk.Chunk, error) {
	chunks, err := chunk.ReadAll(bytes.NewReader(data))
	if err != nil {
		if fixErrors && errors.Is(err, chunk.ErrBadCRC) {
			return readChunksLenient(data)
		}
		if errors.Is(err, chunk.ErrBadSignature) {
			return nil, ErrNotPng
		}
		return nil, errors.Wrap(ErrCorruptFile, err.Error())
	}
	return chunks, nil
}

// readChunksLenient re-reads the stream chunk by chunk, skipping any
// whose CRC fails to validate instead of aborting the whole decode,
// honoring the FixErrors option.
func readChunksLenient(data []byte) ([]chunk.Chunk, error) {
	r, err := chunk.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrNotPng
	}
	var out []chunk.Chunk
	for {
		c, err := r.Next()
		if err != nil {
			if errors.Is(err, chunk.ErrBadCRC) {
				continue
			}
			if err == io.EOF {
				break
			}
			return out, nil
		}
		out = append(out, c)
		if c.Tag == chunk.TagIEND {
			break
		}
	}
	return out, nil
}

// mapHeaderErr translates pngimage's own validation sentinels onto this
// package's boundary errors, since pngimage cannot import pngopt
// without creating a cycle.
func mapHeaderErr(err error) error {
	switch {
	case errors.Is(err, pngimage.ErrInvalidDepth):
		return errors.Wrap(ErrInvalidDepth, err.Error())
	case errors.Is(err, pngimage.ErrInvalidColorType):
		return errors.Wrap(ErrInvalidColorType, err.Error())
	default:
		return errors.Wrap(ErrCorruptFile, err.Error())
	}
}

func concatParts(parts [][]byte) []byte {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// encode runs the search driver over the (already reduced) image and
// serializes the winning candidate's chunks.
func encode(img *pngimage.PNGImage, opts Options, preset search.Preset, logger *zap.Logger) ([]byte, error) {
	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	specs := preset.Specs()
	if len(opts.Filters) > 0 {
		specs = filterSpecsByStrategy(specs, opts.Filters)
	}
	if opts.Deflate != (search.CandidateSpec{}) {
		specs = append([]search.CandidateSpec{opts.Deflate}, specs...)
	}
	searchOpts := search.Options{Workers: opts.Workers, Logger: logger}

	ihdr := []chunk.Chunk{{Tag: chunk.TagIHDR, Payload: encodeIHDR(img.Header)}}
	var plte []chunk.Chunk
	if img.Palette != nil {
		plte = []chunk.Chunk{{Tag: chunk.TagPLTE, Payload: encodePLTE(img.Palette)}}
	}
	var trns []chunk.Chunk
	if t := encodeTRNS(img.Header.ColorType, img.Transparency, img.Palette); t != nil {
		trns = []chunk.Chunk{{Tag: chunk.TagTRNS, Payload: t}}
	}
	ancillary := policy.FilterWithOverrides(img.Ancillary, opts.Strip, toTagSet(opts.KeepChunks), toTagSet(opts.StripChunks))

	var dataChunks []chunk.Chunk
	if img.IsAPNG() {
		var err error
		dataChunks, err = encodeAnimation(ctx, img, specs, searchOpts)
		if err != nil {
			return nil, err
		}
	} else {
		result, err := search.Run(ctx, img.Header, img.Pixels, specs, searchOpts)
		if err != nil {
			return nil, wrapSearchErr(err)
		}
		dataChunks = splitIDAT(result.Compressed, 1<<20)
	}
	iend := []chunk.Chunk{{Tag: chunk.TagIEND}}

	outChunks := policy.Assemble(ihdr, plte, trns, ancillary, dataChunks, iend)

	var buf bytes.Buffer
	if err := chunk.WriteAll(&buf, outChunks); err != nil {
		return nil, errors.Wrap(ErrIoError, err.Error())
	}
	return buf.Bytes(), nil
}

// toTagSet turns a chunk-type override list (spec.md §4.8's Keep(set)
// and Strip(set) variants) into the lookup map policy.FilterWithOverrides
// expects; a nil/empty list means no override is in effect.
func toTagSet(tags []string) map[string]bool {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return set
}

func encodeAnimation(ctx context.Context, img *pngimage.PNGImage, specs []search.CandidateSpec, opts search.Options) ([]chunk.Chunk, error) {
	compressed := make([][]byte, len(img.Animation.Frames))
	for i, f := range img.Animation.Frames {
		frameHeader := img.Header
		frameHeader.Width = f.Width
		frameHeader.Height = f.Height
		result, err := search.Run(ctx, frameHeader, f.Pixels, specs, opts)
		if err != nil {
			return nil, wrapSearchErr(err)
		}
		compressed[i] = result.Compressed
	}
	return apng.BuildChunks(img.Animation, compressed, 1<<20), nil
}

// wrapSearchErr maps a search driver failure onto the library's
// boundary errors, distinguishing a caller-requested timeout from an
// actual compression failure.
func wrapSearchErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	return errors.Wrap(ErrDeflateError, err.Error())
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

// applyInterlaceMode converts img's pixel passes to/from Adam7 when the
// caller's InterlaceMode disagrees with the decoded header, keeping
// Header.InterlaceMethod consistent with the resulting PixelData shape.
func applyInterlaceMode(img *pngimage.PNGImage, mode InterlaceMode) {
	switch mode {
	case InterlaceForceOff:
		if img.Header.InterlaceMethod == pngimage.InterlaceAdam7 {
			flat := interlace.FromAdam7(img.Header, img.Pixels, int(img.Header.Width), int(img.Header.Height))
			img.Pixels = pngimage.PixelData{Passes: []pngimage.Pass{flat}}
			img.Header.InterlaceMethod = pngimage.InterlaceNone
		}
	case InterlaceForceOn:
		if img.Header.InterlaceMethod == pngimage.InterlaceNone {
			img.Pixels = interlace.ToAdam7(img.Header, img.Pixels.Passes[0])
			img.Header.InterlaceMethod = pngimage.InterlaceAdam7
		}
	}
}

// filterSpecsByStrategy keeps only candidates whose filter strategy is
// in allowed, preserving each candidate's original Rank so tie-breaking
// stays stable regardless of which strategies the caller restricted to.
func filterSpecsByStrategy(specs []search.CandidateSpec, allowed []filter.Strategy) []search.CandidateSpec {
	want := make(map[filter.Strategy]bool, len(allowed))
	for _, s := range allowed {
		want[s] = true
	}
	out := specs[:0:0]
	for _, spec := range specs {
		if want[spec.Strategy] {
			out = append(out, spec)
		}
	}
	if len(out) == 0 {
		return specs
	}
	return out
}
