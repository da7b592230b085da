// Package report renders backtest results for terminals.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"spxbacktest/internal/strategy"
)

// FormatCurrency formats v as dollars with comma separators and two
// decimals, e.g. $10,000.00 or -$12.50. Non-finite values render as "-".
func FormatCurrency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		// Beyond int64: keep the digits without separators.
		return sign + "$" + whole + "." + frac
	}
	return sign + "$" + humanize.Comma(n) + "." + frac
}

// FormatPercent formats a fraction as a percentage with two decimals, e.g.
// 0.1234 as 12.34%.
func FormatPercent(r float64) string {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return "-"
	}
	return decimal.NewFromFloat(r).Shift(2).StringFixed(2) + "%"
}

// FormatRatio formats a dimensionless ratio with two decimals.
func FormatRatio(r float64) string {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return "-"
	}
	return decimal.NewFromFloat(r).StringFixed(2)
}

// FormatShares formats a fractional share count with four decimals.
func FormatShares(s float64) string {
	return humanize.FormatFloat("#,###.####", s)
}

// Summary returns the headline lines of a run.
func Summary(res *strategy.BacktestResult) []string {
	return []string{
		fmt.Sprintf("Final Amount: %s", FormatCurrency(res.FinalAmount)),
		fmt.Sprintf("Annualized Return: %s", FormatPercent(res.AnnualizedReturn)),
		fmt.Sprintf("Sharpe Ratio: %s", FormatRatio(res.SharpeRatio)),
	}
}

// Details returns the supplementary lines of a run: inputs, total return,
// and trade count.
func Details(res *strategy.BacktestResult) []string {
	state := "cash"
	if res.Exit.InPosition {
		state = "invested (liquidated at last close)"
	}
	return []string{
		fmt.Sprintf("Symbol: %s  Strategy: %s  MA: %d days  Buy below: %s%%",
			res.Symbol, res.Strategy, res.Params.MAPeriod, FormatRatio(res.Params.BuyBelowPct)),
		fmt.Sprintf("Period: %s to %s", res.Start.Format("2006-01-02"), res.End.Format("2006-01-02")),
		fmt.Sprintf("Initial Investment: %s", FormatCurrency(res.InitialInvestment)),
		fmt.Sprintf("Total Return: %s", FormatPercent(res.TotalReturn)),
		fmt.Sprintf("Trades: %s  Ended: %s", humanize.Comma(int64(res.TotalTrades)), state),
	}
}

// TradeLog returns one line per simulated fill.
func TradeLog(trades []strategy.Trade) []string {
	lines := make([]string, 0, len(trades))
	for _, t := range trades {
		note := ""
		if t.Forced {
			note = " (final liquidation)"
		}
		lines = append(lines, fmt.Sprintf("%s  %-4s %s shares @ %s = %s%s",
			t.Date.Format("2006-01-02"), t.Side, FormatShares(t.Shares),
			FormatCurrency(t.Price), FormatCurrency(t.Value), note))
	}
	return lines
}
