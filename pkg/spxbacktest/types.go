// Package spxbacktest is the Go SDK for the spx-server HTTP API.
package spxbacktest

// DateLayout is the wire format of every date field.
const DateLayout = "2006-01-02"

// BacktestRequest is the body of POST /api/v1/backtest. Omitted fields take
// the server's configured defaults. The numeric parameters are pointers so an
// explicit 0 reaches the server and is rejected or honored rather than
// replaced by a default.
type BacktestRequest struct {
	Symbol            string   `json:"symbol,omitempty"`
	Strategy          string   `json:"strategy,omitempty"`
	StartDate         string   `json:"start_date,omitempty"`
	EndDate           string   `json:"end_date,omitempty"`
	InitialInvestment *float64 `json:"initial_investment,omitempty"`
	MAPeriod          *int     `json:"ma_period,omitempty"`
	BuyBelowPct       *float64 `json:"buy_below_pct,omitempty"`
	IncludeSeries     bool     `json:"include_series,omitempty"`
}

// Float64 returns a pointer to v, for the optional request fields.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for the optional request fields.
func Int(v int) *int { return &v }

// BacktestResponse is the result of one backtest run.
type BacktestResponse struct {
	RunID             string  `json:"run_id"`
	Symbol            string  `json:"symbol"`
	Strategy          string  `json:"strategy"`
	MAPeriod          int     `json:"ma_period"`
	BuyBelowPct       float64 `json:"buy_below_pct"`
	StartDate         string  `json:"start_date"`
	EndDate           string  `json:"end_date"`
	InitialInvestment float64 `json:"initial_investment"`

	FinalAmount      float64 `json:"final_amount"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	TotalTrades      int     `json:"total_trades"`
	EndedInPosition  bool    `json:"ended_in_position"`

	Trades []TradeJSON   `json:"trades"`
	Series []SeriesPoint `json:"series,omitempty"`
}

// TradeJSON is one simulated fill.
type TradeJSON struct {
	Date   string  `json:"date"`
	Side   string  `json:"side"`
	Price  float64 `json:"price"`
	Shares float64 `json:"shares"`
	Value  float64 `json:"value"`
	Forced bool    `json:"forced,omitempty"`
}

// SeriesPoint is one day of the annotated price series. SMA, Buy, and Sell
// are null during the moving-average warm-up.
type SeriesPoint struct {
	Date  string   `json:"date"`
	Close float64  `json:"close"`
	SMA   *float64 `json:"sma"`
	Buy   *bool    `json:"buy"`
	Sell  *bool    `json:"sell"`
}

// StrategiesResponse lists the strategies the server can run.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
	Default    string   `json:"default"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidArgument  = "invalid_argument"
	CodeInsufficientData = "insufficient_data"
	CodeUpstream         = "upstream_unavailable"
	CodeCanceled         = "canceled"
	CodeInternal         = "internal"
)
