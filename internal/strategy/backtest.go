package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"spxbacktest/internal/domain"
)

// PriceSource supplies the ascending daily close series for a symbol over
// [start, end].
type PriceSource interface {
	FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error)
}

// Request is the immutable input of one backtest run.
type Request struct {
	Symbol            string
	Strategy          string // registry name; empty selects DefaultStrategy
	Start             time.Time
	End               time.Time
	InitialInvestment float64
	Params            domain.StrategyParams
}

// SeriesPoint is one row of the annotated series used for charting.
type SeriesPoint struct {
	Date  time.Time
	Close float64
	SMA   Float
	Buy   Bool
	Sell  Bool
}

// BacktestResult holds the metrics and annotated series produced by a run.
type BacktestResult struct {
	RunID             string
	Symbol            string
	Strategy          string
	Params            domain.StrategyParams
	Start             time.Time
	End               time.Time
	InitialInvestment float64

	FinalAmount      float64
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	TotalTrades      int

	Exit   PositionState
	Trades []Trade
	Series []SeriesPoint
}

// Backtester fetches a price series and replays a registered strategy over
// it. It holds no per-run state and is safe for concurrent use.
type Backtester struct {
	source   PriceSource
	registry *Registry
	log      *slog.Logger
}

// NewBacktester creates a Backtester that reads prices from source and looks
// up strategies in registry.
func NewBacktester(source PriceSource, registry *Registry) *Backtester {
	return &Backtester{
		source:   source,
		registry: registry,
		log:      slog.Default().With("component", "backtester"),
	}
}

// Strategies returns the sorted names of the strategies this Backtester can
// run.
func (bt *Backtester) Strategies() []string {
	return bt.registry.List()
}

// Run validates req, fetches its price series, and evaluates it. Parameter
// and date-range errors are reported before any fetch. Errors from the
// PriceSource are returned unmodified.
func (bt *Backtester) Run(ctx context.Context, req Request) (*BacktestResult, error) {
	strat, err := bt.prepare(req)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	points, err := bt.source.FetchPrices(ctx, req.Symbol, req.Start, req.End)
	if err != nil {
		bt.log.Error("fetching prices", "symbol", req.Symbol, "error", err)
		return nil, err
	}
	fetched := time.Since(started)

	res, err := Evaluate(strat, points, req)
	if err != nil {
		bt.log.Warn("backtest failed", "symbol", req.Symbol, "bars", len(points), "error", err)
		return nil, err
	}

	bt.log.Info("backtest complete",
		"runID", res.RunID,
		"symbol", res.Symbol,
		"strategy", res.Strategy,
		"bars", len(points),
		"trades", res.TotalTrades,
		"finalAmount", res.FinalAmount,
		"fetch", fetched.Round(time.Millisecond),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return res, nil
}

// Evaluate runs req against an already fetched series without any I/O.
func (bt *Backtester) Evaluate(points []domain.PricePoint, req Request) (*BacktestResult, error) {
	strat, err := bt.prepare(req)
	if err != nil {
		return nil, err
	}
	return Evaluate(strat, points, req)
}

func (bt *Backtester) prepare(req Request) (Strategy, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	name := req.Strategy
	if name == "" {
		name = DefaultStrategy
	}
	return bt.registry.New(name, req.Params)
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidParameter)
	}
	if !(req.InitialInvestment > 0) || math.IsInf(req.InitialInvestment, 0) {
		return fmt.Errorf("%w: initial investment must be positive, got %v", ErrInvalidParameter, req.InitialInvestment)
	}
	_, err := YearsBetween(req.Start, req.End)
	return err
}

// Evaluate computes signals, simulates trades, and measures performance of
// strat over points. It is deterministic: identical inputs give identical
// metrics.
func Evaluate(strat Strategy, points []domain.PricePoint, req Request) (*BacktestResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no prices for %s", ErrInsufficientData, req.Symbol)
	}
	if err := ValidateSeries(points); err != nil {
		return nil, err
	}
	if len(points) <= strat.WarmUp() {
		return nil, fmt.Errorf("%w: %d bars do not cover the %d-bar warm-up window",
			ErrInsufficientData, len(points), strat.WarmUp())
	}

	closes := domain.Closes(points)
	signals := strat.Signals(closes)

	outcome, err := Simulate(points, signals, req.InitialInvestment)
	if err != nil {
		return nil, err
	}

	years, err := YearsBetween(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	annualized, err := AnnualizedReturn(outcome.FinalAmount, req.InitialInvestment, years)
	if err != nil {
		return nil, err
	}
	sharpe, err := SharpeRatio(DailyReturns(closes))
	if err != nil {
		return nil, err
	}

	series := make([]SeriesPoint, len(points))
	for i, p := range points {
		series[i] = SeriesPoint{
			Date:  p.Date,
			Close: p.Close,
			SMA:   signals.SMA[i],
			Buy:   signals.Buy[i],
			Sell:  signals.Sell[i],
		}
	}

	return &BacktestResult{
		RunID:             uuid.NewString(),
		Symbol:            req.Symbol,
		Strategy:          strat.Name(),
		Params:            req.Params,
		Start:             req.Start,
		End:               req.End,
		InitialInvestment: req.InitialInvestment,
		FinalAmount:       outcome.FinalAmount,
		TotalReturn:       outcome.FinalAmount/req.InitialInvestment - 1,
		AnnualizedReturn:  annualized,
		SharpeRatio:       sharpe,
		TotalTrades:       len(outcome.Trades),
		Exit:              outcome.Exit,
		Trades:            outcome.Trades,
		Series:            series,
	}, nil
}
