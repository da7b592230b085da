package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"spxbacktest/internal/domain"
)

// DefaultPath is the configuration file read when SPXBACKTEST_CONFIG is unset.
const DefaultPath = "config/spxbacktest.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for spxbacktest.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Server   Server         `yaml:"server"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Gather   GatherConfig   `yaml:"gather"`
	Backtest BacktestConfig `yaml:"backtest"`
}

// Storage selects and locates the bar cache.
type Storage struct {
	Backend    string `yaml:"backend"` // "parquet" or "sqlite"
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// HTTPAddr returns host:port for the HTTP listener.
func (s Server) HTTPAddr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// GRPCAddr returns host:grpc_port for the gRPC listener.
func (s Server) GRPCAddr() string { return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort) }

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	DataURL    string `yaml:"data_url"`
	Feed       string `yaml:"feed"`       // "sip" or "iex"
	Adjustment string `yaml:"adjustment"` // "raw", "split", "dividend", "all"
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls where prices come from and how backfills run.
type GatherConfig struct {
	Source          string   `yaml:"source"` // "alpaca", "store", or "cached"
	Symbols         []string `yaml:"symbols"`
	StartDate       string   `yaml:"start_date"`
	MaxWorkers      int      `yaml:"max_workers"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	MaxAttempts     int      `yaml:"max_attempts"`
}

// BacktestConfig holds the default inputs of a backtest run.
type BacktestConfig struct {
	Symbol            string  `yaml:"symbol"`
	Strategy          string  `yaml:"strategy"`
	StartDate         string  `yaml:"start_date"`
	EndDate           string  `yaml:"end_date"`
	InitialInvestment float64 `yaml:"initial_investment"`
	MAPeriod          int     `yaml:"ma_period"`
	// BuyBelowPct is a pointer so an explicit 0 survives defaulting.
	BuyBelowPct *float64 `yaml:"buy_below_pct"`
}

// Params returns the strategy parameters of the configured run.
func (b BacktestConfig) Params() domain.StrategyParams {
	p := domain.StrategyParams{MAPeriod: b.MAPeriod}
	if b.BuyBelowPct != nil {
		p.BuyBelowPct = *b.BuyBelowPct
	}
	return p
}

// Dates parses StartDate and EndDate as YYYY-MM-DD.
func (b BacktestConfig) Dates() (start, end time.Time, err error) {
	start, err = time.Parse(time.DateOnly, b.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing backtest start date %q: %w", b.StartDate, err)
	}
	end, err = time.Parse(time.DateOnly, b.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing backtest end date %q: %w", b.EndDate, err)
	}
	return start, end, nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the config file path from SPXBACKTEST_CONFIG, or DefaultPath.
func Path() string {
	if p := os.Getenv("SPXBACKTEST_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults
// for anything still unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// Default returns a Config with only defaults and environment overrides, for
// commands that can run without a config file.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("BACKTEST_SYMBOL"); v != "" {
		cfg.Backtest.Symbol = strings.ToUpper(v)
	}

	// Standard Alpaca env vars take priority: they are the names the SDK uses.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// applyDefaults fills zero-valued fields. Backtest defaults mirror the
// inputs the tool has always opened with.
func applyDefaults(cfg *Config) {
	setDefault(&cfg.Storage.Backend, "parquet")
	setDefault(&cfg.Storage.DataDir, "data")
	setDefault(&cfg.Storage.SQLitePath, "data/spxbacktest.db")

	setDefault(&cfg.Server.Host, "0.0.0.0")
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}

	setDefault(&cfg.Alpaca.Feed, "sip")
	setDefault(&cfg.Alpaca.Adjustment, "all")

	setDefault(&cfg.Logging.Level, "info")
	setDefault(&cfg.Logging.Format, "json")

	setDefault(&cfg.Gather.Source, "cached")
	setDefault(&cfg.Gather.StartDate, "2013-01-01")
	if cfg.Gather.MaxWorkers == 0 {
		cfg.Gather.MaxWorkers = 4
	}
	if cfg.Gather.RateLimitPerMin == 0 {
		cfg.Gather.RateLimitPerMin = 200
	}
	if cfg.Gather.MaxAttempts == 0 {
		cfg.Gather.MaxAttempts = 3
	}

	setDefault(&cfg.Backtest.Symbol, "SPY")
	setDefault(&cfg.Backtest.Strategy, "sma-dip")
	setDefault(&cfg.Backtest.StartDate, "2013-01-01")
	setDefault(&cfg.Backtest.EndDate, "2023-01-01")
	if cfg.Backtest.InitialInvestment == 0 {
		cfg.Backtest.InitialInvestment = 10000
	}
	if cfg.Backtest.MAPeriod == 0 {
		cfg.Backtest.MAPeriod = 50
	}
	if cfg.Backtest.BuyBelowPct == nil {
		pct := 5.0
		cfg.Backtest.BuyBelowPct = &pct
	}
}

func setDefault(field *string, v string) {
	if *field == "" {
		*field = v
	}
}
