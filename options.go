package pngopt

import (
	"time"

	"go.uber.org/zap"

	"github.com/go-pngopt/pngopt/internal/filter"
	"github.com/go-pngopt/pngopt/internal/policy"
	"github.com/go-pngopt/pngopt/internal/reduce"
	"github.com/go-pngopt/pngopt/internal/search"
)

// InterlaceMode controls what the output's interlace method should be.
type InterlaceMode uint8

const (
	InterlaceKeep InterlaceMode = iota
	InterlaceForceOff
	InterlaceForceOn
)

// Options is the single configuration record the library API and the
// CLI both bind to, per spec.md §6.
type Options struct {
	// FixErrors accepts inputs with recoverable CRC errors instead of
	// failing the whole decode.
	FixErrors bool

	// Force writes the output even when no candidate improved on the
	// input size.
	Force bool

	// Filters keeps only the preset's candidates whose filter strategy
	// it names; nil means "use the preset's default set". Strategies the
	// preset does not include are not added, and when none of the named
	// strategies is in the preset, the preset's full set is used.
	Filters []filter.Strategy

	Interlace InterlaceMode

	OptimizeAlpha bool

	BitDepthReduction  bool
	ColorTypeReduction bool
	PaletteReduction   bool
	GrayscaleReduction bool

	// Scale16 requests a 16-bit to 8-bit reduction even when it is not
	// strictly lossless. No reduction reads this field: the 16-to-8 step
	// runs under BitDepthReduction and only when every sample's low byte
	// equals its high byte, so lossy scaling is never performed.
	Scale16 bool

	Strip policy.KeepMode

	// KeepChunks and StripChunks are explicit ancillary chunk type
	// overrides — spec.md §4.8's Keep(set)/Strip(set) variants — that
	// take precedence over Strip for any tag they name (StripChunks
	// wins if a tag appears in both).
	KeepChunks  []string
	StripChunks []string

	// Deflate, when non-zero, is tried as one extra candidate ahead of
	// the preset's candidates; when zero valued, only PresetLevel's
	// candidates are tried.
	Deflate search.CandidateSpec

	// FastEvaluation requests an approximate size estimator for early
	// trial ranking. The search driver does not read this field: every
	// candidate is ranked by a full compression pass.
	FastEvaluation bool

	Timeout time.Duration

	// PresetLevel selects defaults for every field above that the
	// caller has not explicitly overridden.
	PresetLevel int
	PresetMax   bool

	Workers int
	Logger  *zap.Logger
}

// DefaultOptions returns preset level 3's configuration, the engine's
// balanced default.
func DefaultOptions() Options {
	return Options{
		PresetLevel:        3,
		BitDepthReduction:  true,
		ColorTypeReduction: true,
		PaletteReduction:   true,
		GrayscaleReduction: true,
		// OptimizeAlpha is opt-in, per spec.md §4.3's "(opt-in)" tag,
		// the same way Scale16 stays off by default below.
		OptimizeAlpha: false,
		Strip:         policy.KeepSafe,
		Logger:        zap.NewNop(),
	}
}

// reduceOptions derives the internal/reduce Options this configuration
// implies.
func (o Options) reduceOptions() reduce.Options {
	base := search.Preset(0).ReduceOptions()
	preset := search.ParsePreset(o.PresetLevel, o.PresetMax)
	if preset != search.Preset0 {
		base = reduce.DefaultOptions()
	}
	base.StripAlpha = base.StripAlpha && o.ColorTypeReduction
	base.RGBToGray = base.RGBToGray && o.GrayscaleReduction && o.ColorTypeReduction
	base.ToIndexed = base.ToIndexed && o.PaletteReduction
	base.IndexedToGray = base.IndexedToGray && o.GrayscaleReduction
	base.DedupPalette = base.DedupPalette && o.PaletteReduction
	base.ReorderPalette = base.ReorderPalette && o.PaletteReduction
	base.ReduceBitDepth = base.ReduceBitDepth && o.BitDepthReduction
	base.Drop16To8 = base.Drop16To8 && o.BitDepthReduction
	base.OptimizeAlpha = base.OptimizeAlpha && o.OptimizeAlpha
	return base
}
