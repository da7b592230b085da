// Package store defines the BarStore interface for caching daily bars and
// provides Parquet and SQLite implementations.
package store

import (
	"context"
	"time"

	"spxbacktest/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars for market, replacing any stored bar
	// with the same symbol and timestamp.
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within
	// [start, end], ascending by timestamp.
	ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given
	// market, sorted.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)
}
