package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minCodeLen    = 4
	maxCodeLen    = 32
	maxFeeds      = bits.UintSize
)

var hundred = decimal.NewFromInt(100)

// Offer is a code accepted from the feeds with the discount to store.
type Offer struct {
	Code    string
	Percent decimal.Decimal
}

// Importer cross-checks coupon feeds.
type Importer struct {
	// MinFeeds is how many distinct feeds must list a code.
	MinFeeds int
	// Capacity sizes each feed's bloom filter.
	Capacity uint
}

// candidate is a code seen in pass 2 with the feeds that listed it.
type candidate struct {
	feeds   uint
	percent decimal.Decimal
}

// Scan returns offers listed in at least MinFeeds of files, sorted by code.
//
// Pass 1 builds one bloom filter per feed. Pass 2 re-reads each feed and keeps
// codes that enough other filters claim to contain; exact feed membership is
// then counted from pass 2 results so false positives never reach the output.
func (i Importer) Scan(ctx context.Context, files []string) ([]Offer, error) {
	if len(files) > maxFeeds {
		return nil, errors.Errorf("at most %d feeds supported, got %d", maxFeeds, len(files))
	}
	minFeeds := max(i.MinFeeds, 1)
	if len(files) < minFeeds {
		slog.Warn("fewer feeds than required", slog.Int("feeds", len(files)), slog.Int("min_feeds", minFeeds))
		return nil, nil
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := i.buildFilters(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding candidate codes")
	results := make([]map[string]candidate, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for idx, f := range files {
		g.Go(func() error {
			found, err := findCandidates(gctx, idx, f, filters, minFeeds)
			if err != nil {
				return errors.Wrapf(err, "scan file %d for candidates", idx+1)
			}
			results[idx] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeCandidates(results, minFeeds), nil
}

func (i Importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	capacity := i.Capacity
	if capacity == 0 {
		capacity = 1_000_000
	}
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for idx, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(capacity, bloomFPR)
			var count uint64
			if err := streamFeed(ctx, path, func(code string, _ decimal.Decimal) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", idx+1), slog.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", idx+1)
			}
			slog.Info("pass 1 complete", slog.Int("file", idx+1), slog.Uint64("total_codes", count))
			filters[idx] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findCandidates keeps codes of feed idx that at least minFeeds-1 other
// filters report, with the lowest percentage this feed gives them.
func findCandidates(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter, minFeeds int) (map[string]candidate, error) {
	found := make(map[string]candidate)
	bit := uint(1) << uint(idx)

	err := streamFeed(ctx, path, func(code string, percent decimal.Decimal) {
		if c, ok := found[code]; ok {
			if percent.LessThan(c.percent) {
				c.percent = percent
				found[code] = c
			}
			return
		}
		hits := 1
		for j, f := range filters {
			if j != idx && f.TestString(code) {
				hits++
			}
		}
		if hits >= minFeeds {
			found[code] = candidate{feeds: bit, percent: percent}
		}
	})
	if err != nil {
		return nil, err
	}

	slog.Info("pass 2 complete", slog.Int("file", idx+1), slog.Int("candidates", len(found)))
	return found, nil
}

func mergeCandidates(results []map[string]candidate, minFeeds int) []Offer {
	merged := make(map[string]candidate)
	for _, r := range results {
		for code, c := range r {
			m, ok := merged[code]
			if !ok || c.percent.LessThan(m.percent) {
				m.percent = c.percent
			}
			m.feeds |= c.feeds
			merged[code] = m
		}
	}

	var offers []Offer
	for code, c := range merged {
		if bits.OnesCount(c.feeds) >= minFeeds {
			offers = append(offers, Offer{Code: code, Percent: c.percent})
		}
	}
	sort.Slice(offers, func(a, b int) bool { return offers[a].Code < offers[b].Code })
	return offers
}

// parseLine parses "CODE,PERCENT". Codes are upper-cased; percentages must be
// in (0, 100].
func parseLine(line string) (string, decimal.Decimal, bool) {
	code, pct, ok := strings.Cut(strings.TrimSpace(line), ",")
	if !ok {
		return "", decimal.Decimal{}, false
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return "", decimal.Decimal{}, false
	}
	percent, err := decimal.NewFromString(strings.TrimSpace(pct))
	if err != nil || !percent.IsPositive() || percent.GreaterThan(hundred) {
		return "", decimal.Decimal{}, false
	}
	return code, percent, true
}

// streamFeed opens a gzip feed and calls fn for each well-formed line.
// Malformed lines are counted and skipped.
func streamFeed(ctx context.Context, path string, fn func(code string, percent decimal.Decimal)) error {
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
		code, percent, ok := parseLine(scanner.Text())
		if !ok {
			skipped++
			continue
		}
		fn(code, percent)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	if skipped > 0 {
		slog.Warn("skipped malformed lines", slog.String("path", path), slog.Int("count", skipped))
	}
	return nil
}
