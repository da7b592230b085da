package us

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/sync/errgroup"

	"spxbacktest/internal/domain"
	"spxbacktest/internal/gather"
	"spxbacktest/internal/store"
	"spxbacktest/internal/strategy"
	"spxbacktest/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var (
	_ gather.Gatherer      = (*DailyBarGatherer)(nil)
	_ gather.BarFetcher    = (*AlpacaSource)(nil)
	_ strategy.PriceSource = (*AlpacaSource)(nil)
	_ barsClient           = (*marketdata.Client)(nil)
)

// barsClient is the subset of the marketdata client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// ---------------------------------------------------------------------------
// AlpacaSource: daily bars for one symbol from the Alpaca market-data API.
// ---------------------------------------------------------------------------

// SourceOptions configures an AlpacaSource.
type SourceOptions struct {
	APIKey     string
	APISecret  string
	DataURL    string
	Feed       string // "sip" or "iex"
	Adjustment string // "raw", "split", "dividend", "all"

	// MaxAttempts bounds retries of a failed request; values below 1 mean
	// a single attempt. Only rate limiting, server errors, and transport
	// failures are retried.
	MaxAttempts int
	RetryDelay  time.Duration

	// Limiter paces requests when set.
	Limiter *util.RateLimiter
}

// AlpacaSource fetches daily bars from Alpaca.
type AlpacaSource struct {
	client      barsClient
	feed        marketdata.Feed
	adjustment  marketdata.Adjustment
	maxAttempts int
	retryDelay  time.Duration
	limiter     *util.RateLimiter
	log         *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource with a marketdata client built from
// opts.
func NewAlpacaSource(opts SourceOptions) *AlpacaSource {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}
	return newAlpacaSource(marketdata.NewClient(clientOpts), opts)
}

func newAlpacaSource(client barsClient, opts SourceOptions) *AlpacaSource {
	feed := opts.Feed
	if feed == "" {
		feed = "sip"
	}
	adj := opts.Adjustment
	if adj == "" {
		adj = "all"
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &AlpacaSource{
		client:      client,
		feed:        marketdata.Feed(feed),
		adjustment:  marketdata.Adjustment(adj),
		maxAttempts: max(opts.MaxAttempts, 1),
		retryDelay:  delay,
		limiter:     opts.Limiter,
		log:         slog.Default().With("source", "alpaca"),
	}
}

// FetchBars returns the daily bars for symbol in [start, end]. Failures are
// reported as *gather.FetchError; cancellation of ctx returns ctx.Err().
func (a *AlpacaSource) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, &gather.FetchError{Symbol: symbol, Err: errors.New("empty symbol")}
	}

	var bars []domain.Bar
	err := util.RetryIf(ctx, a.maxAttempts, a.retryDelay, retryable, func() error {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		bars, err = a.getBars(ctx, symbol, start, end)
		if err != nil && ctx.Err() == nil {
			a.log.Warn("GetBars failed", "symbol", symbol, "error", err)
		}
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &gather.FetchError{Symbol: symbol, Err: err}
	}

	a.log.Debug("fetched bars", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

// MaxAttempts returns how many times a failed request is tried.
func (a *AlpacaSource) MaxAttempts() int { return a.maxAttempts }

// retryable reports whether a failed GetBars call may succeed if repeated.
// API rejections other than 429 and 5xx (bad credentials, unknown symbol,
// malformed request) are final.
func retryable(err error) bool {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// FetchPrices returns the ascending daily closes for symbol in [start, end].
func (a *AlpacaSource) FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	bars, err := a.FetchBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	return domain.ClosePoints(bars), nil
}

type barsResult struct {
	bars []marketdata.Bar
	err  error
}

// getBars issues one GetBars call. The client does not take a context, so the
// call runs in its own goroutine and is abandoned if ctx ends first.
func (a *AlpacaSource) getBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan barsResult, 1)
	go func() {
		bars, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Start:      start,
			End:        end,
			Feed:       a.feed,
			Adjustment: a.adjustment,
		})
		ch <- barsResult{bars: bars, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("GetBars: %w", res.err)
		}
		return toDomainBars(symbol, res.bars), nil
	}
}

func toDomainBars(symbol string, in []marketdata.Bar) []domain.Bar {
	out := make([]domain.Bar, 0, len(in))
	for _, ab := range in {
		out = append(out, domain.Bar{
			Symbol:     symbol,
			Timestamp:  ab.Timestamp.UTC(),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// DailyBarGatherer: backfill daily bars for a symbol list into the store.
// ---------------------------------------------------------------------------

// DailyBarGatherer keeps the local bar store current for a fixed list of
// symbols. Each symbol fetches only what the store is missing between the
// start date and now.
type DailyBarGatherer struct {
	fetcher    gather.BarFetcher
	store      store.BarStore
	symbols    []string
	startDate  string
	maxWorkers int
	now        func() time.Time
	log        *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer writing bars fetched through
// f into s.
func NewDailyBarGatherer(f gather.BarFetcher, s store.BarStore, symbols []string, startDate string, maxWorkers int) *DailyBarGatherer {
	return &DailyBarGatherer{
		fetcher:    f,
		store:      s,
		symbols:    symbols,
		startDate:  startDate,
		maxWorkers: max(maxWorkers, 1),
		now:        time.Now,
		log:        slog.Default().With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run backfills every configured symbol. A failed symbol is logged and the
// rest continue; the failures are returned joined once all symbols finish.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	start, err := time.Parse(time.DateOnly, g.startDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.startDate, err)
	}
	end := g.now().UTC()
	if !start.Before(end) {
		return fmt.Errorf("start date %s is not in the past", g.startDate)
	}

	g.log.Info("starting us-daily",
		"symbols", len(g.symbols),
		"start", g.startDate,
		"end", end.Format(time.DateOnly),
		"workers", g.maxWorkers,
	)

	var (
		written  atomic.Int64
		runStart = time.Now()
		failed   = make([]error, len(g.symbols))
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.maxWorkers)
	for i, sym := range g.symbols {
		sym := strings.ToUpper(sym)
		eg.Go(func() error {
			n, err := g.backfill(egCtx, sym, start, end)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				g.log.Error("backfill failed", "symbol", sym, "error", err)
				failed[i] = err
				return nil
			}
			written.Add(int64(n))
			g.log.Info("symbol done", "symbol", sym, "bars", n)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	g.log.Info("complete",
		"bars", written.Load(),
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return errors.Join(failed...)
}

// backfill fetches the spans of [start, end] missing from the store for sym
// and writes them. It returns the number of bars written.
func (g *DailyBarGatherer) backfill(ctx context.Context, sym string, start, end time.Time) (int, error) {
	missing, err := g.missingRanges(ctx, sym, start, end)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, r := range missing {
		bars, err := g.fetcher.FetchBars(ctx, sym, r.Start, r.End)
		if err != nil {
			return written, err
		}
		if len(bars) == 0 {
			continue
		}
		if err := g.store.WriteBars(ctx, domain.MarketUS, bars); err != nil {
			return written, fmt.Errorf("writing bars for %s: %w", sym, err)
		}
		written += len(bars)
	}
	return written, nil
}

// missingRanges returns what to fetch for sym: the head before its earliest
// stored bar, any hole between stored bars, and the tail after its latest
// one. Holes up to gather.CoverageSlack are weekends and holidays and are
// skipped.
func (g *DailyBarGatherer) missingRanges(ctx context.Context, sym string, start, end time.Time) ([]gather.DateRange, error) {
	stored, err := g.store.ReadBars(ctx, sym, domain.MarketUS, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading stored bars for %s: %w", sym, err)
	}
	if len(stored) == 0 {
		return []gather.DateRange{{Start: start, End: end}}, nil
	}

	ts := make([]time.Time, len(stored))
	for i, b := range stored {
		ts[i] = b.Timestamp
	}
	slices.SortFunc(ts, time.Time.Compare)

	var out []gather.DateRange
	if ts[0].Sub(start) > gather.CoverageSlack {
		out = append(out, gather.DateRange{Start: start, End: domain.CivilDate(ts[0]).Add(-time.Nanosecond)})
	}
	for i := 1; i < len(ts); i++ {
		if ts[i].Sub(ts[i-1]) > gather.CoverageSlack {
			out = append(out, gather.DateRange{
				Start: domain.CivilDate(ts[i-1]).AddDate(0, 0, 1),
				End:   domain.CivilDate(ts[i]).Add(-time.Nanosecond),
			})
		}
	}
	if from := domain.CivilDate(ts[len(ts)-1]).AddDate(0, 0, 1); !from.After(end) {
		out = append(out, gather.DateRange{Start: from, End: end})
	}
	return out, nil
}
