// Package gather supplies daily price history to the backtester: from an
// upstream market-data provider, from the local bar store, or from the store
// with an upstream fallback.
package gather

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"spxbacktest/internal/domain"
	"spxbacktest/internal/store"
	"spxbacktest/internal/strategy"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run starts the data gathering process. It blocks until the work is
	// done or ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within [Start, End].
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// FetchError reports a failure to retrieve prices from a provider. Callers
// match it with errors.As.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching prices for %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// endOfDay returns the last instant of t's calendar day. Providers stamp
// daily bars at the exchange-local open of the day, so an inclusive range
// must reach past midnight UTC to include the final session.
func endOfDay(t time.Time) time.Time {
	return domain.CivilDate(t).Add(24*time.Hour - time.Nanosecond)
}

// BarFetcher retrieves raw daily bars for one symbol over [start, end].
type BarFetcher interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// ---------------------------------------------------------------------------
// StoreSource
// ---------------------------------------------------------------------------

var _ strategy.PriceSource = (*StoreSource)(nil)

// StoreSource serves prices from a BarStore without touching the network.
type StoreSource struct {
	store  store.BarStore
	market domain.Market
}

// NewStoreSource returns a PriceSource reading from s.
func NewStoreSource(s store.BarStore, market domain.Market) *StoreSource {
	return &StoreSource{store: s, market: market}
}

// FetchPrices reads the stored closes for symbol in [start, end]. A store
// failure is reported as a FetchError.
func (s *StoreSource) FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	symbol = strings.ToUpper(symbol)
	bars, err := s.store.ReadBars(ctx, symbol, s.market, domain.CivilDate(start), endOfDay(end))
	if err != nil {
		return nil, &FetchError{Symbol: symbol, Err: err}
	}
	return domain.ClosePoints(bars), nil
}

// ---------------------------------------------------------------------------
// CachedSource
// ---------------------------------------------------------------------------

// CoverageSlack is the widest hole the stored bars may leave, at either
// requested bound or between two consecutive sessions, and still count as
// covering the range. It absorbs weekends and market holidays.
const CoverageSlack = 7 * 24 * time.Hour

var _ strategy.PriceSource = (*CachedSource)(nil)

// CachedSource reads from the store first and falls back to the upstream
// fetcher when the stored bars do not cover the requested range. Fetched bars
// are written back so later runs stay local.
type CachedSource struct {
	store    store.BarStore
	market   domain.Market
	upstream BarFetcher
	now      func() time.Time
	log      *slog.Logger
}

// NewCachedSource returns a PriceSource backed by s with upstream as the
// fallback.
func NewCachedSource(s store.BarStore, market domain.Market, upstream BarFetcher) *CachedSource {
	return &CachedSource{
		store:    s,
		market:   market,
		upstream: upstream,
		now:      time.Now,
		log:      slog.Default().With("component", "cached-source"),
	}
}

// FetchPrices returns the closes for symbol in [start, end].
func (c *CachedSource) FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	symbol = strings.ToUpper(symbol)
	start, end = domain.CivilDate(start), endOfDay(end)

	bars, err := c.store.ReadBars(ctx, symbol, c.market, start, end)
	if err != nil {
		// A broken cache should not block a run that can reach upstream.
		c.log.Warn("reading cached bars failed", "symbol", symbol, "error", err)
		bars = nil
	}
	if c.covers(bars, start, end) {
		c.log.Debug("cache hit", "symbol", symbol, "bars", len(bars))
		return domain.ClosePoints(bars), nil
	}

	c.log.Info("cache miss, fetching upstream", "symbol", symbol,
		"start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))

	fetched, err := c.upstream.FetchBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(fetched) > 0 {
		if err := c.store.WriteBars(ctx, c.market, fetched); err != nil {
			c.log.Warn("caching fetched bars failed", "symbol", symbol, "error", err)
		}
	}
	return domain.ClosePoints(fetched), nil
}

// covers reports whether bars span [start, end] with no hole wider than
// CoverageSlack: not at either bound and not between consecutive bars. The
// end bound is clamped to now, so ranges reaching into the future only need
// bars up to today.
func (c *CachedSource) covers(bars []domain.Bar, start, end time.Time) bool {
	if len(bars) == 0 {
		return false
	}
	if now := c.now(); end.After(now) {
		end = now
	}
	ts := make([]time.Time, len(bars))
	for i, b := range bars {
		ts[i] = b.Timestamp
	}
	slices.SortFunc(ts, time.Time.Compare)

	if ts[0].Sub(start) > CoverageSlack || end.Sub(ts[len(ts)-1]) > CoverageSlack {
		return false
	}
	for i := 1; i < len(ts); i++ {
		if ts[i].Sub(ts[i-1]) > CoverageSlack {
			return false
		}
	}
	return true
}
