// Package search drives the candidate trial loop: for a given image (or
// APNG frame), it enumerates filter-strategy/compressor-parameter
// candidates, compresses each in parallel, and keeps the smallest
// deterministically, per spec.md §4.7 and §5. The worker pool shape
// (atomic task-claiming counter, a capped worker count derived from
// runtime.GOMAXPROCS, a sync.WaitGroup join) is grounded on the
// teacher's internal/lossy/encode_parallel.go encodeFrameParallel; the
// (size, rank) deterministic tie-break is this package's adaptation of
// that file's "claim work atomically, record results independently"
// shape to an unordered task pool instead of ordered rows.
package search

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/go-pngopt/pngopt/internal/compressor"
	"github.com/go-pngopt/pngopt/internal/filter"
	"github.com/go-pngopt/pngopt/internal/pngimage"
	"github.com/go-pngopt/pngopt/internal/pool"
	"github.com/go-pngopt/pngopt/internal/rawcodec"
)

// CandidateSpec is one point in the filter-strategy x compressor-params
// search space. Rank is assigned at generation time (not completion
// time) so that two candidates finishing with equal compressed size
// always resolve to the same winner regardless of goroutine scheduling,
// per spec.md §5's determinism invariant.
type CandidateSpec struct {
	Rank     int
	Strategy filter.Strategy
	Params   compressor.Params
}

// Result is one completed trial.
type Result struct {
	Spec       CandidateSpec
	Compressed []byte
	Size       int
	Filtered   pngimage.FilteredData
}

// Options controls the search driver's concurrency and candidate set.
type Options struct {
	// Workers caps the number of concurrent trial goroutines; 0 means
	// runtime.GOMAXPROCS(0).
	Workers int
	Logger  *zap.Logger
}

// Run evaluates every candidate in specs against header/pixels and
// returns the smallest result, breaking ties by the lowest Rank. The
// pixel data is filtered once per distinct Strategy (not once per
// candidate) since many compressor Params share a Strategy; the
// filtered bytes are cached across candidates within a strategy via the
// driver's own bookkeeping rather than via pool, since they are already
// sized per image.
func Run(ctx context.Context, header pngimage.IHDRHeader, pixels pngimage.PixelData, specs []CandidateSpec, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(specs) {
		workers = len(specs)
	}
	if workers < 1 {
		workers = 1
	}

	filteredCache := make([]pngimage.FilteredData, len(specs))
	var filterOnce sync.Map // strategy -> *sync.Once, guards computing filteredCache per distinct strategy

	var nextIdx atomic.Int64
	var mu sync.Mutex
	var best Result
	haveBest := false
	var firstErr error
	firstErrRank := 0

	worker := func() {
		for {
			if ctx.Err() != nil {
				return
			}
			i := int(nextIdx.Add(1) - 1)
			if i >= len(specs) {
				return
			}
			spec := specs[i]

			onceAny, _ := filterOnce.LoadOrStore(spec.Strategy, &sync.Once{})
			once := onceAny.(*sync.Once)
			once.Do(func() {
				fd := rawcodec.FilteredRows(header, pixels, spec.Strategy)
				for j, s := range specs {
					if s.Strategy == spec.Strategy {
						filteredCache[j] = fd
					}
				}
			})

			mu.Lock()
			hint := 0
			if haveBest {
				hint = best.Size
				if spec.Rank < best.Spec.Rank {
					// A lower rank wins an equal-size tie, so only prune
					// results strictly larger than the current best.
					hint = best.Size + 1
				}
			}
			mu.Unlock()

			flat := rawcodec.Flatten(filteredCache[i])
			buf := pool.Get(len(flat))
			copy(buf, flat)

			compressed, err := compressor.Compress(buf[:len(flat)], spec.Params, hint)
			pool.Put(buf)
			if err != nil {
				logger.Warn("candidate compression failed", zap.Int("rank", spec.Rank), zap.Error(err))
				mu.Lock()
				if firstErr == nil || spec.Rank < firstErrRank {
					firstErr, firstErrRank = err, spec.Rank
				}
				mu.Unlock()
				continue
			}
			if compressed == nil {
				// Pruned: could not beat the current best.
				continue
			}

			mu.Lock()
			if !haveBest || betterCandidate(len(compressed), spec.Rank, best.Size, best.Spec.Rank) {
				best = Result{Spec: spec, Compressed: compressed, Size: len(compressed), Filtered: filteredCache[i]}
				haveBest = true
			}
			mu.Unlock()
		}
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker()
		}()
	}
	wg.Wait()

	if !haveBest && firstErr != nil {
		return Result{}, errors.Wrap(firstErr, "pngopt: every candidate failed to compress")
	}

	logger.Debug("search completed",
		zap.Int("candidates", len(specs)),
		zap.Int("winner_rank", best.Spec.Rank),
		zap.Int("winner_size", best.Size),
	)
	return best, ctx.Err()
}

// betterCandidate reports whether (size, rank) lexicographically
// precedes (bestSize, bestRank): smaller size wins; equal size resolves
// to the lower rank, keeping results identical across runs regardless
// of goroutine completion order.
func betterCandidate(size, rank, bestSize, bestRank int) bool {
	if size != bestSize {
		return size < bestSize
	}
	return rank < bestRank
}
