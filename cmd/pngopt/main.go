// Command pngopt losslessly recompresses PNG and APNG files from the
// command line.
//
// Usage:
//
//	pngopt [options] <input> [<input> ...]
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"github.com/go-pngopt/pngopt"
	"github.com/go-pngopt/pngopt/internal/policy"
)

type args struct {
	Inputs    []string      `arg:"positional,required" help:"PNG/APNG files to optimize in place"`
	Out       string        `arg:"-o" help:"write the first input's result here instead of optimizing in place"`
	Preset    int           `arg:"-P" default:"3" help:"preset level 0-6 (higher tries more candidates)"`
	Max       bool          `arg:"--max" help:"use the exhaustive preset instead of -P"`
	Force     bool          `arg:"-f" help:"write output even if it isn't smaller than the input"`
	FixErrors bool          `help:"tolerate recoverable CRC errors in the input"`
	Strip     string        `default:"safe" help:"which ancillary chunks to strip: none, safe, all"`
	Keep      []string      `help:"ancillary chunk types to always keep, overriding --strip (e.g. --keep tEXt tIME)"`
	StripOnly []string      `arg:"--strip-only" help:"ancillary chunk types to always strip, overriding --strip"`
	Workers   int           `help:"worker pool size (0 = number of CPUs)"`
	Timeout   time.Duration `help:"abort a single file's optimization after this long (0 = no timeout)"`
	Verbose   bool          `arg:"-v" help:"log progress to stderr"`
}

func (args) Version() string {
	return "pngopt (lossless PNG/APNG optimizer)"
}

func main() {
	var a args
	arg.MustParse(&a)

	if err := run(a); err != nil {
		fmt.Fprintf(os.Stderr, "pngopt: %v\n", err)
		os.Exit(1)
	}
}

func run(a args) error {
	strip, err := parseStrip(a.Strip)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if a.Verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
	}

	opts := pngopt.DefaultOptions()
	opts.PresetLevel = a.Preset
	opts.PresetMax = a.Max
	opts.Force = a.Force
	opts.FixErrors = a.FixErrors
	opts.Strip = strip
	opts.KeepChunks = a.Keep
	opts.StripChunks = a.StripOnly
	opts.Workers = a.Workers
	opts.Timeout = a.Timeout
	opts.Logger = logger

	if a.Out != "" {
		if len(a.Inputs) != 1 {
			return fmt.Errorf("-o requires exactly one input file")
		}
		return runSingleToFile(a.Inputs[0], a.Out, opts)
	}

	var failures int
	for _, path := range a.Inputs {
		if err := runInPlace(path, opts); err != nil {
			fmt.Fprintf(os.Stderr, "pngopt: %s: %v\n", path, err)
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, len(a.Inputs))
	}
	return nil
}

func runSingleToFile(input, output string, opts pngopt.Options) error {
	out, err := pngopt.OptimizeFile(input, opts)
	if err != nil && out == nil {
		return err
	}
	return os.WriteFile(output, out, 0o644)
}

func runInPlace(path string, opts pngopt.Options) error {
	before, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := pngopt.OptimizeInPlace(path, opts); err != nil {
		return err
	}
	after, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s: %d -> %d bytes\n", path, before.Size(), after.Size())
	return nil
}

func parseStrip(s string) (policy.KeepMode, error) {
	switch s {
	case "none":
		return policy.KeepAll, nil
	case "safe":
		return policy.KeepSafe, nil
	case "all":
		return policy.KeepNone, nil
	default:
		return 0, fmt.Errorf("unknown --strip value %q (want none, safe, or all)", s)
	}
}
