package gather

import (
	"context"
	"errors"
	"testing"
	"time"

	"spxbacktest/internal/domain"
	"spxbacktest/internal/store"
)

type fakeFetcher struct {
	bars  []domain.Bar
	err   error
	calls int
}

func (f *fakeFetcher) FetchBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Bar
	for _, b := range f.bars {
		if b.Symbol == symbol && !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dailyBars returns one bar per weekday in [start, end] with increasing
// closes starting at 100.
func dailyBars(symbol string, start, end time.Time) []domain.Bar {
	var bars []domain.Bar
	price := 100.0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		bars = append(bars, domain.Bar{
			Symbol: symbol, Timestamp: d.Add(4 * time.Hour),
			Open: price, High: price, Low: price, Close: price, Volume: 1000,
		})
		price++
	}
	return bars
}

func TestFetchErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	var err error = &FetchError{Symbol: "SPY", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(FetchError, cause) = false, want true")
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Symbol != "SPY" {
		t.Errorf("errors.As(FetchError) = %v, symbol %q", fe, fe.Symbol)
	}
	if got, want := err.Error(), "fetching prices for SPY: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{Start: day(2020, 1, 1), End: day(2020, 12, 31)}
	tests := []struct {
		t    time.Time
		want bool
	}{
		{day(2020, 1, 1), true},
		{day(2020, 6, 15), true},
		{day(2020, 12, 31), true},
		{day(2019, 12, 31), false},
		{day(2021, 1, 1), false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.t); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.t.Format(time.DateOnly), got, tt.want)
		}
	}
}

func TestStoreSource(t *testing.T) {
	ctx := context.Background()
	s := store.NewParquetStore(t.TempDir())
	bars := dailyBars("SPY", day(2020, 1, 1), day(2020, 1, 31))
	if err := s.WriteBars(ctx, domain.MarketUS, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	src := NewStoreSource(s, domain.MarketUS)
	points, err := src.FetchPrices(ctx, "spy", day(2020, 1, 6), day(2020, 1, 10))
	if err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	if len(points) != 5 {
		t.Fatalf("got %d points, want 5", len(points))
	}
	if !points[0].Date.Equal(day(2020, 1, 6)) {
		t.Errorf("first date = %v, want 2020-01-06 (civil date)", points[0].Date)
	}
	for i := 1; i < len(points); i++ {
		if !points[i].Date.After(points[i-1].Date) {
			t.Errorf("points not ascending at %d", i)
		}
	}
}

func TestCachedSourceMissFetchesAndWritesBack(t *testing.T) {
	ctx := context.Background()
	s := store.NewParquetStore(t.TempDir())
	start, end := day(2020, 1, 1), day(2020, 3, 31)
	up := &fakeFetcher{bars: dailyBars("SPY", start, end)}

	src := NewCachedSource(s, domain.MarketUS, up)
	points, err := src.FetchPrices(ctx, "SPY", start, end)
	if err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	if up.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", up.calls)
	}
	if len(points) != len(up.bars) {
		t.Errorf("got %d points, want %d", len(points), len(up.bars))
	}

	stored, err := s.ReadBars(ctx, "SPY", domain.MarketUS, start, day(2020, 4, 1))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(stored) != len(up.bars) {
		t.Errorf("stored %d bars, want %d", len(stored), len(up.bars))
	}

	// Second run is served from the store.
	again, err := src.FetchPrices(ctx, "SPY", start, end)
	if err != nil {
		t.Fatalf("FetchPrices (cached): %v", err)
	}
	if up.calls != 1 {
		t.Errorf("upstream calls after cached run = %d, want 1", up.calls)
	}
	if len(again) != len(points) {
		t.Errorf("cached run returned %d points, want %d", len(again), len(points))
	}
}

func TestCachedSourcePartialCoverageRefetches(t *testing.T) {
	ctx := context.Background()
	s := store.NewParquetStore(t.TempDir())
	// Only January is cached; the request runs through March.
	if err := s.WriteBars(ctx, domain.MarketUS, dailyBars("SPY", day(2020, 1, 1), day(2020, 1, 31))); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	up := &fakeFetcher{bars: dailyBars("SPY", day(2020, 1, 1), day(2020, 3, 31))}

	src := NewCachedSource(s, domain.MarketUS, up)
	if _, err := src.FetchPrices(ctx, "SPY", day(2020, 1, 1), day(2020, 3, 31)); err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	if up.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", up.calls)
	}
}

func TestCachedSourceInteriorGapRefetches(t *testing.T) {
	ctx := context.Background()
	s := store.NewParquetStore(t.TempDir())
	up := &fakeFetcher{bars: dailyBars("SPY", day(2013, 1, 1), day(2023, 1, 1))}
	src := NewCachedSource(s, domain.MarketUS, up)

	// Two separate runs leave 2013 and 2022 cached with nothing between.
	if _, err := src.FetchPrices(ctx, "SPY", day(2013, 1, 1), day(2013, 12, 31)); err != nil {
		t.Fatalf("FetchPrices 2013: %v", err)
	}
	if _, err := src.FetchPrices(ctx, "SPY", day(2022, 1, 1), day(2023, 1, 1)); err != nil {
		t.Fatalf("FetchPrices 2022: %v", err)
	}
	up.calls = 0

	points, err := src.FetchPrices(ctx, "SPY", day(2013, 1, 1), day(2023, 1, 1))
	if err != nil {
		t.Fatalf("FetchPrices full range: %v", err)
	}
	if up.calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (2014-2021 missing from cache)", up.calls)
	}
	if want := len(up.bars); len(points) != want {
		t.Errorf("len(points) = %d, want %d", len(points), want)
	}

	// The refetch filled the hole, so the same range is now served locally.
	up.calls = 0
	if _, err := src.FetchPrices(ctx, "SPY", day(2013, 1, 1), day(2023, 1, 1)); err != nil {
		t.Fatalf("FetchPrices again: %v", err)
	}
	if up.calls != 0 {
		t.Errorf("upstream calls after refill = %d, want 0", up.calls)
	}
}

func TestCachedSourceFutureEndClampedToNow(t *testing.T) {
	ctx := context.Background()
	s := store.NewParquetStore(t.TempDir())
	if err := s.WriteBars(ctx, domain.MarketUS, dailyBars("SPY", day(2020, 1, 1), day(2020, 6, 30))); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	up := &fakeFetcher{}

	src := NewCachedSource(s, domain.MarketUS, up)
	src.now = func() time.Time { return day(2020, 7, 1) }
	if _, err := src.FetchPrices(ctx, "SPY", day(2020, 1, 1), day(2021, 1, 1)); err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	if up.calls != 0 {
		t.Errorf("upstream calls = %d, want 0 (range ends in the future)", up.calls)
	}
}

func TestCachedSourceUpstreamErrorPropagates(t *testing.T) {
	s := store.NewParquetStore(t.TempDir())
	fetchErr := &FetchError{Symbol: "SPY", Err: errors.New("rate limited")}
	up := &fakeFetcher{err: fetchErr}

	src := NewCachedSource(s, domain.MarketUS, up)
	_, err := src.FetchPrices(context.Background(), "SPY", day(2020, 1, 1), day(2020, 3, 31))
	if err != fetchErr {
		t.Errorf("err = %v, want the upstream FetchError unmodified", err)
	}
}
