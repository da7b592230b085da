package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spxbacktest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_DATA_URL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "LOG_LEVEL", "BACKTEST_SYMBOL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  backend: "sqlite"
  data_dir: "/tmp/spx/data"
  sqlite_path: "/tmp/spx/bars.db"
server:
  host: "127.0.0.1"
  port: 8181
  grpc_port: 9191
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
  feed: "iex"
  adjustment: "split"
logging:
  level: "debug"
  format: "text"
gather:
  source: "alpaca"
  symbols: ["SPY", "QQQ"]
  start_date: "2015-01-01"
  max_workers: 2
  rate_limit_per_min: 100
  max_attempts: 5
backtest:
  symbol: "QQQ"
  start_date: "2016-01-01"
  end_date: "2021-01-01"
  initial_investment: 25000
  ma_period: 20
  buy_below_pct: 2.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "sqlite")
	}
	if cfg.Storage.SQLitePath != "/tmp/spx/bars.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/spx/bars.db")
	}

	// -- Server --
	if cfg.Server.HTTPAddr() != "127.0.0.1:8181" {
		t.Errorf("Server.HTTPAddr() = %q, want %q", cfg.Server.HTTPAddr(), "127.0.0.1:8181")
	}
	if cfg.Server.GRPCAddr() != "127.0.0.1:9191" {
		t.Errorf("Server.GRPCAddr() = %q, want %q", cfg.Server.GRPCAddr(), "127.0.0.1:9191")
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" || cfg.Alpaca.APISecret != "test-secret" {
		t.Errorf("Alpaca credentials = %q/%q, want test-key/test-secret", cfg.Alpaca.APIKey, cfg.Alpaca.APISecret)
	}
	if cfg.Alpaca.Feed != "iex" || cfg.Alpaca.Adjustment != "split" {
		t.Errorf("Alpaca feed/adjustment = %q/%q, want iex/split", cfg.Alpaca.Feed, cfg.Alpaca.Adjustment)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want debug/text", cfg.Logging)
	}

	// -- Gather --
	if cfg.Gather.Source != "alpaca" {
		t.Errorf("Gather.Source = %q, want %q", cfg.Gather.Source, "alpaca")
	}
	if len(cfg.Gather.Symbols) != 2 || cfg.Gather.Symbols[1] != "QQQ" {
		t.Errorf("Gather.Symbols = %v, want [SPY QQQ]", cfg.Gather.Symbols)
	}
	if cfg.Gather.MaxAttempts != 5 {
		t.Errorf("Gather.MaxAttempts = %d, want 5", cfg.Gather.MaxAttempts)
	}

	// -- Backtest --
	if cfg.Backtest.Symbol != "QQQ" {
		t.Errorf("Backtest.Symbol = %q, want %q", cfg.Backtest.Symbol, "QQQ")
	}
	if cfg.Backtest.InitialInvestment != 25000 {
		t.Errorf("Backtest.InitialInvestment = %v, want 25000", cfg.Backtest.InitialInvestment)
	}
	if p := cfg.Backtest.Params(); p.MAPeriod != 20 || p.BuyBelowPct != 2.5 {
		t.Errorf("Backtest.Params() = %+v, want 20/2.5", p)
	}
	start, end, err := cfg.Backtest.Dates()
	if err != nil {
		t.Fatalf("Dates(): %v", err)
	}
	if !start.Equal(time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Dates() = %v, %v", start, end)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "logging:\n  level: warn\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
	if cfg.Storage.Backend != "parquet" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "parquet")
	}
	if cfg.Gather.Source != "cached" {
		t.Errorf("Gather.Source = %q, want %q", cfg.Gather.Source, "cached")
	}
	b := cfg.Backtest
	if b.Symbol != "SPY" || b.StartDate != "2013-01-01" || b.EndDate != "2023-01-01" {
		t.Errorf("Backtest symbol/dates = %q %q %q, want SPY 2013-01-01 2023-01-01", b.Symbol, b.StartDate, b.EndDate)
	}
	if p := b.Params(); b.InitialInvestment != 10000 || p.MAPeriod != 50 || p.BuyBelowPct != 5 {
		t.Errorf("Backtest = %v %+v, want 10000 / 50 / 5", b.InitialInvestment, p)
	}
}

func TestLoadExplicitZeroPct(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "backtest:\n  buy_below_pct: 0\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if got := cfg.Backtest.Params().BuyBelowPct; got != 0 {
		t.Errorf("BuyBelowPct = %v, want 0 (explicit)", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
backtest:
  symbol: "SPY"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("BACKTEST_SYMBOL", "iwm")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Backtest.Symbol != "IWM" {
		t.Errorf("Backtest.Symbol = %q, want %q (env override)", cfg.Backtest.Symbol, "IWM")
	}

	t.Setenv("APCA_API_KEY_ID", "sdk-key")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "sdk-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (APCA_API_KEY_ID wins)", cfg.Alpaca.APIKey, "sdk-key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() of a missing file returned nil error")
	}
}

func TestBacktestDatesInvalid(t *testing.T) {
	b := BacktestConfig{StartDate: "2020/01/01", EndDate: "2021-01-01"}
	if _, _, err := b.Dates(); err == nil {
		t.Error("Dates() accepted a malformed start date")
	}
}
