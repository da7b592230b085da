// Package app assembles stores, price sources, and the backtester from
// configuration for the commands.
package app

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"spxbacktest/internal/config"
	"spxbacktest/internal/domain"
	"spxbacktest/internal/gather"
	"spxbacktest/internal/gather/us"
	"spxbacktest/internal/store"
	"spxbacktest/internal/strategy"
	"spxbacktest/internal/strategy/builtins"
	"spxbacktest/internal/util"
)

// OpenStore opens the bar store selected by cfg.Storage.Backend. The returned
// closer releases it.
func OpenStore(cfg *config.Config) (store.BarStore, io.Closer, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "", "parquet":
		return store.NewParquetStore(cfg.Storage.DataDir), nopCloser{}, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewAlpacaSource builds the Alpaca source a backtest run reads through. A
// run makes a single attempt; a failed fetch surfaces to the caller.
func NewAlpacaSource(cfg *config.Config) *us.AlpacaSource {
	return newAlpacaSource(cfg, 1)
}

// NewGatherSource builds the Alpaca source the backfill gatherer uses, which
// retries transient failures up to cfg.Gather.MaxAttempts times.
func NewGatherSource(cfg *config.Config) *us.AlpacaSource {
	return newAlpacaSource(cfg, cfg.Gather.MaxAttempts)
}

func newAlpacaSource(cfg *config.Config, attempts int) *us.AlpacaSource {
	return us.NewAlpacaSource(us.SourceOptions{
		APIKey:      cfg.Alpaca.APIKey,
		APISecret:   cfg.Alpaca.APISecret,
		DataURL:     cfg.Alpaca.DataURL,
		Feed:        cfg.Alpaca.Feed,
		Adjustment:  cfg.Alpaca.Adjustment,
		MaxAttempts: attempts,
		RetryDelay:  time.Second,
		Limiter:     util.NewRateLimiterBurst(cfg.Gather.RateLimitPerMin, 5),
	})
}

// NewPriceSource returns the PriceSource selected by cfg.Gather.Source.
func NewPriceSource(cfg *config.Config, s store.BarStore) (strategy.PriceSource, error) {
	switch strings.ToLower(cfg.Gather.Source) {
	case "alpaca":
		return NewAlpacaSource(cfg), nil
	case "store":
		return gather.NewStoreSource(s, domain.MarketUS), nil
	case "", "cached":
		return gather.NewCachedSource(s, domain.MarketUS, NewAlpacaSource(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown price source %q", cfg.Gather.Source)
	}
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *strategy.Registry {
	reg := strategy.NewRegistry()
	builtins.Register(reg)
	return reg
}

// NewBacktester opens the configured store and source and returns a
// Backtester over them, plus a closer for the store.
func NewBacktester(cfg *config.Config) (*strategy.Backtester, io.Closer, error) {
	s, closer, err := OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	src, err := NewPriceSource(cfg, s)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return strategy.NewBacktester(src, NewRegistry()), closer, nil
}

// DefaultRequest returns the backtest request described by cfg.Backtest.
func DefaultRequest(cfg *config.Config) (strategy.Request, error) {
	start, end, err := cfg.Backtest.Dates()
	if err != nil {
		return strategy.Request{}, err
	}
	return strategy.Request{
		Symbol:            strings.ToUpper(cfg.Backtest.Symbol),
		Strategy:          cfg.Backtest.Strategy,
		Start:             start,
		End:               end,
		InitialInvestment: cfg.Backtest.InitialInvestment,
		Params:            cfg.Backtest.Params(),
	}, nil
}

// LoadConfig loads the config file named by config.Path. A missing file at
// the default path falls back to built-in defaults so the commands run
// without one.
func LoadConfig() (*config.Config, error) {
	path := config.Path()
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == config.DefaultPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("loading config %s: %w", path, err)
}
