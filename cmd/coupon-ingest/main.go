// Command coupon-ingest imports bulk promo-code drops into the coupons table.
//
// Marketing delivers several multi-gigabyte gzip files of candidate codes,
// and a code is only honored when it shows up in at least two of them. The
// files do not fit in memory as a set, so the import streams them twice:
// the first sweep builds a per-file bloom filter, the second keeps codes
// that probably exist in another file and settles membership exactly by
// merging per-file bitmasks.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"souq/internal/domain/coupon"
	"souq/internal/repository"
)

const (
	filterCapacity = 120_000_000
	filterFPR      = 0.001

	// Codes outside this length range are noise in the drops and are skipped
	// on both sweeps.
	codeLenMin = 8
	codeLenMax = 10

	logEveryCodes = 10_000_000
	writeBatch    = 500
)

type ingestOptions struct {
	dataDir   string
	dbURL     string
	percent   decimal.Decimal
	validDays int
}

func main() {
	var (
		opts    ingestOptions
		percent string
	)

	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory with promo drop .gz files")
	flag.StringVar(&opts.dbURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&percent, "value", "10", "percentage discount for imported codes")
	flag.IntVar(&opts.validDays, "valid-days", 90, "days until imported codes expire")
	flag.Parse()

	if opts.dbURL == "" {
		opts.dbURL = os.Getenv("DATABASE_URL")
	}
	if opts.dbURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	var err error
	if opts.percent, err = decimal.NewFromString(percent); err != nil {
		slog.Error("invalid --value", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := ingest(ctx, opts); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("coupon ingest completed")
}

func ingest(ctx context.Context, opts ingestOptions) error {
	drops, err := filepath.Glob(filepath.Join(opts.dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list drops")
	}
	if len(drops) < 2 {
		return errors.Errorf("need at least 2 drop files in %s, found %d", opts.dataDir, len(drops))
	}

	slog.Info("first sweep: building per-file filters", slog.Int("drops", len(drops)))
	filters, err := sweepFilters(ctx, drops)
	if err != nil {
		return err
	}

	slog.Info("second sweep: settling membership")
	honored, err := sweepCandidates(ctx, drops, filters)
	if err != nil {
		return err
	}

	slog.Info("honored codes", slog.Int("count", len(honored)))
	if len(honored) == 0 {
		return nil
	}

	pool, err := repository.NewPool(ctx, opts.dbURL)
	if err != nil {
		return errors.Wrap(err, "connect database")
	}
	defer pool.Close()

	expire := time.Now().AddDate(0, 0, opts.validDays)
	return storeCodes(ctx, pool, honored, opts.percent, expire)
}

// sweepFilters streams every drop once and fills one bloom filter per drop.
func sweepFilters(ctx context.Context, drops []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(drops))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range drops {
		g.Go(func() error {
			f := bloom.NewWithEstimates(filterCapacity, filterFPR)
			var seen uint64
			err := eachCode(gctx, path, func(code string) {
				f.AddString(code)
				if seen++; seen%logEveryCodes == 0 {
					slog.Info("sweep 1", slog.String("drop", filepath.Base(path)), slog.Uint64("codes", seen))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "sweep %s", path)
			}
			slog.Info("sweep 1 done", slog.String("drop", filepath.Base(path)), slog.Uint64("codes", seen))
			filters[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// sweepCandidates re-streams every drop, keeping codes that another drop's
// filter claims to contain. Each kept code carries a bitmask of the drops it
// was streamed from; merging the masks and counting set bits settles the
// "present in 2+ drops" rule exactly, so bloom false positives only cost
// memory, never correctness.
func sweepCandidates(ctx context.Context, drops []string, filters []*bloom.BloomFilter) ([]string, error) {
	perDrop := make([]map[string]uint, len(drops))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range drops {
		g.Go(func() error {
			found := make(map[string]uint)
			bit := uint(1) << uint(i)
			err := eachCode(gctx, path, func(code string) {
				for j, f := range filters {
					if j != i && f.TestString(code) {
						found[code] |= bit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "sweep %s", path)
			}
			slog.Info("sweep 2 done", slog.String("drop", filepath.Base(path)), slog.Int("candidates", len(found)))
			perDrop[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	masks := make(map[string]uint)
	for _, found := range perDrop {
		for code, bit := range found {
			masks[code] |= bit
		}
	}

	honored := make([]string, 0, len(masks))
	for code, mask := range masks {
		if bits.OnesCount(mask) >= 2 {
			honored = append(honored, code)
		}
	}
	return honored, nil
}

// eachCode streams a gzip drop line by line, filtering out malformed codes.
func eachCode(ctx context.Context, path string, fn func(code string)) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer func() { _ = file.Close() }()

	gz, err := pgzip.NewReader(file)
	if err != nil {
		return errors.Wrap(err, "gzip")
	}
	defer func() { _ = gz.Close() }()

	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := sc.Text()
		if len(code) >= codeLenMin && len(code) <= codeLenMax {
			fn(code)
		}
	}
	return errors.Wrap(sc.Err(), "scan")
}

const insertPromoSQL = `INSERT INTO coupons (id, code, type, value, expire_at, active)
	VALUES ('promo-' || $1, $1, 'PERCENTAGE', $2, $3, TRUE)
	ON CONFLICT (code) DO UPDATE SET value = $2, expire_at = $3, active = TRUE`

// storeCodes upserts honored codes as percentage coupons in batches.
func storeCodes(ctx context.Context, pool *pgxpool.Pool, codes []string, percent decimal.Decimal, expire time.Time) error {
	slog.Info("writing coupons", slog.Int("count", len(codes)))

	for start := 0; start < len(codes); start += writeBatch {
		end := min(start+writeBatch, len(codes))

		var batch pgx.Batch
		for _, code := range codes[start:end] {
			batch.Queue(insertPromoSQL, coupon.Canonicalize(code), percent, expire)
		}
		if err := pool.SendBatch(ctx, &batch).Close(); err != nil {
			return errors.Wrapf(err, "write batch at %d", start)
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(codes)))
	}
	return nil
}
