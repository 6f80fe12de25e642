// Command promo-ingest bulk-loads promotion codes for a campaign from
// gzip-compressed code lists. A code is imported when it appears in at least
// --quorum of the input files; every imported code shares the same discount
// terms. Codes that already exist are left untouched.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
)

const (
	defaultBloomCapacity = 10_000_000
	defaultBloomFPR      = 0.001
	defaultBatchSize     = 1000
	dateLayout           = "2006-01-02"
)

type campaignFlags struct {
	Percent  string
	Amount   string
	Start    string
	End      string
	MaxUses  int
	MinOrder string
}

// template builds the discount terms shared by every imported code.
func (f campaignFlags) template(now time.Time) (promotion.Promotion, error) {
	var p promotion.Promotion
	switch {
	case f.Percent != "" && f.Amount != "":
		return p, errors.New("set only one of --percent and --amount")
	case f.Percent != "":
		v, err := decimal.NewFromString(f.Percent)
		if err != nil {
			return p, errors.Wrap(err, "parse --percent")
		}
		if !v.IsPositive() || v.GreaterThan(decimal.NewFromInt(100)) {
			return p, errors.Errorf("--percent %s out of range (0, 100]", v)
		}
		p.DiscountPercentage = decimal.NewNullDecimal(v)
	case f.Amount != "":
		v, err := decimal.NewFromString(f.Amount)
		if err != nil {
			return p, errors.Wrap(err, "parse --amount")
		}
		if !v.IsPositive() {
			return p, errors.Errorf("--amount %s must be positive", v)
		}
		p.DiscountAmount = decimal.NewNullDecimal(v)
	default:
		return p, errors.New("one of --percent or --amount is required")
	}

	p.StartDate = now.UTC().Truncate(24 * time.Hour)
	if f.Start != "" {
		t, err := time.Parse(dateLayout, f.Start)
		if err != nil {
			return p, errors.Wrap(err, "parse --start")
		}
		p.StartDate = t
	}
	if f.End == "" {
		return p, errors.New("--end is required")
	}
	end, err := time.Parse(dateLayout, f.End)
	if err != nil {
		return p, errors.Wrap(err, "parse --end")
	}
	// The end date is inclusive: the campaign runs through the whole day.
	p.EndDate = end.Add(24*time.Hour - time.Second)
	if p.EndDate.Before(p.StartDate) {
		return p, errors.New("--end is before --start")
	}

	if f.MaxUses < 1 {
		return p, errors.New("--max-uses must be positive")
	}
	p.MaxUses = f.MaxUses

	if f.MinOrder != "" {
		v, err := decimal.NewFromString(f.MinOrder)
		if err != nil {
			return p, errors.Wrap(err, "parse --min-order")
		}
		if v.IsNegative() {
			return p, errors.New("--min-order must not be negative")
		}
		p.MinOrderAmount = decimal.NewNullDecimal(v)
	}
	p.IsActive = true
	return p, nil
}

// expandFiles resolves comma separated paths and glob patterns, keeping
// order and dropping duplicates.
func expandFiles(arg string) ([]string, error) {
	var (
		files []string
		seen  = make(map[string]struct{})
	)
	for _, pattern := range strings.Split(arg, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "glob %q", pattern)
		}
		if len(matches) == 0 {
			return nil, errors.Errorf("no files match %q", pattern)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	return files, nil
}

// promotionsFor stamps the campaign terms onto each code.
func promotionsFor(codes []string, tmpl promotion.Promotion) []promotion.Promotion {
	promos := make([]promotion.Promotion, len(codes))
	for i, code := range codes {
		p := tmpl
		p.Code = code
		promos[i] = p
	}
	return promos
}

func main() {
	var (
		filesArg    string
		databaseURL string
		quorum      int
		capacity    uint
		batchSize   int
		dryRun      bool
		campaign    campaignFlags
	)

	flag.StringVar(&filesArg, "files", "data/*.gz", "comma separated gzip files or glob patterns, one code per line")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&quorum, "quorum", 1, "minimum number of files a code must appear in")
	flag.UintVar(&capacity, "bloom-capacity", defaultBloomCapacity, "expected codes per file")
	flag.IntVar(&batchSize, "batch-size", defaultBatchSize, "codes inserted per transaction")
	flag.BoolVar(&dryRun, "dry-run", false, "select codes without writing them")
	flag.StringVar(&campaign.Percent, "percent", "", "percentage discount, e.g. 15")
	flag.StringVar(&campaign.Amount, "amount", "", "flat discount amount, e.g. 9.50")
	flag.StringVar(&campaign.Start, "start", "", "first valid day, YYYY-MM-DD (default: today)")
	flag.StringVar(&campaign.End, "end", "", "last valid day, YYYY-MM-DD")
	flag.IntVar(&campaign.MaxUses, "max-uses", 1, "redemptions allowed per code")
	flag.StringVar(&campaign.MinOrder, "min-order", "", "minimum order subtotal")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if batchSize < 1 {
		slog.Error("--batch-size must be positive")
		os.Exit(1)
	}

	tmpl, err := campaign.template(time.Now())
	if err != nil {
		slog.Error("invalid campaign", slog.String("error", err.Error()))
		os.Exit(1)
	}

	files, err := expandFiles(filesArg)
	if err != nil {
		slog.Error("invalid --files", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := scanOptions{Quorum: quorum, Capacity: capacity, FalsePositiveRate: defaultBloomFPR}
	if err := run(ctx, files, opts, tmpl, databaseURL, batchSize, dryRun); err != nil {
		slog.Error("ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("ingest completed successfully")
}

func run(ctx context.Context, files []string, opts scanOptions, tmpl promotion.Promotion, databaseURL string, batchSize int, dryRun bool) error {
	start := time.Now()

	codes, err := selectCodes(ctx, files, opts)
	if err != nil {
		return errors.Wrap(err, "select codes")
	}

	slog.Info("codes selected",
		slog.Int("count", len(codes)),
		slog.Int("files", len(files)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if dryRun || len(codes) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL, 2)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	w := postgres.NewCatalogWriter(pool)
	var inserted int64
	for lo := 0; lo < len(codes); lo += batchSize {
		hi := min(lo+batchSize, len(codes))
		n, err := w.InsertPromotions(ctx, promotionsFor(codes[lo:hi], tmpl))
		if err != nil {
			return errors.Wrapf(err, "insert codes %d..%d", lo, hi)
		}
		inserted += n
	}

	slog.Info("promotions inserted",
		slog.Int64("inserted", inserted),
		slog.Int64("existing", int64(len(codes))-inserted),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
