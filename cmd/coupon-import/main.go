// Command coupon-import loads partner coupon feeds into the coupons table.
//
// Each feed is a gzip file of CODE,PERCENT lines. A code is imported only when
// at least --min-feeds feeds list it; the smallest advertised percentage wins.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/rentacar/internal/domain/coupon"
	"github.com/xenking/rentacar/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		minFeeds    int
		capacity    uint
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz coupon feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&minFeeds, "min-feeds", 2, "number of feeds a code must appear in")
	flag.UintVar(&capacity, "bloom-capacity", 10_000_000, "expected codes per feed")
	flag.BoolVar(&dryRun, "dry-run", false, "report accepted codes without writing them")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, minFeeds, capacity, dryRun); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, minFeeds int, capacity uint, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list feeds")
	}
	sort.Strings(files)

	imp := Importer{MinFeeds: minFeeds, Capacity: capacity}
	offers, err := imp.Scan(ctx, files)
	if err != nil {
		return errors.Wrap(err, "scan feeds")
	}

	slog.Info("accepted codes", slog.Int("count", len(offers)))
	if len(offers) == 0 || dryRun {
		return nil
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return writeCoupons(ctx, postgres.NewCouponRepository(pool), offers)
}

type couponUpserter interface {
	Upsert(ctx context.Context, c *coupon.Coupon) error
}

// writeCoupons upserts every accepted offer.
func writeCoupons(ctx context.Context, repo couponUpserter, offers []Offer) error {
	slog.Info("writing coupons to database", slog.Int("count", len(offers)))

	for i, o := range offers {
		c := &coupon.Coupon{
			Code:            o.Code,
			DiscountPercent: o.Percent,
			Description:     o.Percent.String() + "% off (partner feed)",
		}
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", o.Code)
		}

		if (i+1)%1000 == 0 || i+1 == len(offers) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(offers)))
		}
	}
	return nil
}
