package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

const (
	minCodeLen    = 4
	maxCodeLen    = 32
	progressEvery = 1_000_000
)

// scanOptions tunes code selection.
type scanOptions struct {
	// Quorum is how many distinct files must list a code before it is
	// imported. 1 imports the union of all files.
	Quorum int
	// Capacity is the expected number of codes per file, used to size the
	// bloom filters.
	Capacity uint
	// FalsePositiveRate of each bloom filter.
	FalsePositiveRate float64
}

// validCode reports whether a normalized code may be stored.
func validCode(code string) bool {
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '-' && c != '_' {
			return false
		}
	}
	return true
}

// selectCodes returns the sorted codes listed in at least opts.Quorum of the
// files. Pass 1 builds a bloom filter per file; pass 2 re-reads every file
// and keeps codes that the other files' filters may contain, tagging each
// with the bit of the file it came from. Bloom false positives only add
// candidates, the exact file count comes from the merged bitmasks.
func selectCodes(ctx context.Context, files []string, opts scanOptions) ([]string, error) {
	if len(files) == 0 {
		return nil, errors.New("no input files")
	}
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("at most %d files are supported, got %d", bits.UintSize, len(files))
	}
	if opts.Quorum < 1 || opts.Quorum > len(files) {
		return nil, errors.Errorf("quorum %d out of range [1, %d]", opts.Quorum, len(files))
	}

	var filters []*bloom.BloomFilter
	if opts.Quorum > 1 {
		slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

		var err error
		if filters, err = buildFilters(ctx, files, opts); err != nil {
			return nil, errors.Wrap(err, "build bloom filters")
		}
	}

	slog.Info("pass 2: collecting candidate codes", slog.Int("quorum", opts.Quorum))

	masks := make([]map[string]uint, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			m, err := collectCandidates(gctx, i, path, filters, opts.Quorum)
			if err != nil {
				return err
			}
			masks[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}

	var codes []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= opts.Quorum {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func buildFilters(ctx context.Context, files []string, opts scanOptions) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(opts.Capacity, opts.FalsePositiveRate)
			var count uint64
			err := streamCodes(ctx, path, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}

			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// collectCandidates returns the codes of file idx that could reach quorum,
// each tagged with the file's bit.
func collectCandidates(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter, quorum int) (map[string]uint, error) {
	candidates := make(map[string]uint)
	fileBit := uint(1) << uint(idx)

	err := streamCodes(ctx, path, func(code string) {
		if _, ok := candidates[code]; ok {
			return
		}
		hits := 1
		for j, f := range filters {
			if hits >= quorum {
				break
			}
			if j != idx && f.TestString(code) {
				hits++
			}
		}
		if hits >= quorum {
			candidates[code] = fileBit
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("pass 2 complete", slog.Int("file", idx+1), slog.Int("candidates", len(candidates)))
	return candidates, nil
}

// streamCodes calls fn for every valid normalized code in a gzip file.
// Malformed lines are counted and skipped.
func streamCodes(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var skipped int
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := promotion.NormalizeCode(scanner.Text())
		if code == "" {
			continue
		}
		if !validCode(code) {
			skipped++
			continue
		}
		fn(code)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	if skipped > 0 {
		slog.Warn("skipped malformed codes", slog.String("file", path), slog.Int("count", skipped))
	}
	return nil
}
