package search

import (
	"github.com/go-pngopt/pngopt/internal/compressor"
	"github.com/go-pngopt/pngopt/internal/filter"
	"github.com/go-pngopt/pngopt/internal/reduce"
)

// Preset is the named effort level controlling candidate enumeration
// breadth and which reductions run, per spec.md §6's preset table.
type Preset int

const (
	Preset0 Preset = iota
	Preset1
	Preset2
	Preset3
	Preset4
	Preset5
	Preset6
	PresetMax
)

// ParsePreset maps the CLI's 0-6 / "max" vocabulary onto a Preset.
func ParsePreset(level int, max bool) Preset {
	if max {
		return PresetMax
	}
	switch {
	case level <= 0:
		return Preset0
	case level >= 6:
		return Preset6
	default:
		return Preset(level)
	}
}

// ReduceOptions returns the reduction set a preset enables, per spec.md
// §6: level 0 disables every reduction, every other level enables all
// of them.
func (p Preset) ReduceOptions() reduce.Options {
	if p == Preset0 {
		return reduce.Options{}
	}
	return reduce.DefaultOptions()
}

// Specs builds the full candidate list for a preset, with Rank assigned
// in generation order so best-tracking ties resolve deterministically.
func (p Preset) Specs() []CandidateSpec {
	var strategies []filter.Strategy
	var deflateParams []compressor.Params

	switch p {
	case Preset0:
		strategies = []filter.Strategy{filter.StrategyFixed}
		deflateParams = []compressor.Params{{Level: compressor.LevelFromPreset(5)}}
	case Preset1:
		strategies = []filter.Strategy{filter.StrategyBruteForce}
		deflateParams = []compressor.Params{{Level: compressor.LevelFromPreset(8)}}
	case Preset2:
		strategies = []filter.Strategy{filter.StrategyMinSum}
		deflateParams = []compressor.Params{{Level: compressor.LevelFromPreset(11)}}
	case Preset3:
		strategies = []filter.Strategy{filter.StrategyMinSum, filter.StrategyEntropy}
		deflateParams = []compressor.Params{{Level: compressor.LevelFromPreset(11)}}
	case Preset4:
		strategies = []filter.Strategy{filter.StrategyMinSum, filter.StrategyEntropy, filter.StrategyBruteForce}
		deflateParams = []compressor.Params{{Level: compressor.LevelFromPreset(12)}}
	case Preset5:
		strategies = []filter.Strategy{filter.StrategyMinSum, filter.StrategyEntropy, filter.StrategyBruteForce, filter.StrategyBiGrad}
		deflateParams = []compressor.Params{{Level: compressor.LevelFromPreset(12)}}
	default: // Preset6, PresetMax
		strategies = []filter.Strategy{
			filter.StrategyFixed, filter.StrategyMinSum, filter.StrategyEntropy,
			filter.StrategyBiGrad, filter.StrategyBruteForce,
		}
		deflateParams = []compressor.Params{{Level: compressor.LevelFromPreset(12), Iterations: 255}}
	}

	var specs []CandidateSpec
	rank := 0
	for _, s := range strategies {
		for _, params := range deflateParams {
			specs = append(specs, CandidateSpec{Rank: rank, Strategy: s, Params: params})
			rank++
		}
	}
	return specs
}
