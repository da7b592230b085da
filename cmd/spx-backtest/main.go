// Command spx-backtest runs one SMA dip-buy backtest and prints the report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"spxbacktest/internal/app"
	"spxbacktest/internal/report"
	"spxbacktest/internal/util"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	metricStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}
	b := cfg.Backtest

	symbol := flag.String("symbol", b.Symbol, "ticker to backtest")
	strat := flag.String("strategy", b.Strategy, "strategy name")
	start := flag.String("start", b.StartDate, "start date (YYYY-MM-DD)")
	end := flag.String("end", b.EndDate, "end date (YYYY-MM-DD)")
	investment := flag.Float64("investment", b.InitialInvestment, "initial investment")
	maPeriod := flag.Int("ma", b.MAPeriod, "moving average period in days")
	pct := flag.Float64("buy-below", b.Params().BuyBelowPct, "buy when the prior close is this many percent below the SMA")
	source := flag.String("source", cfg.Gather.Source, "price source: alpaca, store, or cached")
	width := flag.Int("width", 100, "chart width in columns (0 disables the chart)")
	height := flag.Int("height", 20, "chart height in rows")
	trades := flag.Bool("trades", false, "print the trade log")
	asJSON := flag.Bool("json", false, "print the result as JSON")
	flag.Parse()

	// Logs go to stderr so the report stays clean on stdout.
	util.SetDefault(util.NewLoggerTo(os.Stderr, cfg.Logging.Level, "text"))

	cfg.Backtest.Symbol = strings.ToUpper(*symbol)
	cfg.Backtest.Strategy = *strat
	cfg.Backtest.StartDate = *start
	cfg.Backtest.EndDate = *end
	cfg.Backtest.InitialInvestment = *investment
	cfg.Backtest.MAPeriod = *maPeriod
	cfg.Backtest.BuyBelowPct = pct
	cfg.Gather.Source = *source

	req, err := app.DefaultRequest(cfg)
	if err != nil {
		fail(err)
	}

	bt, closer, err := app.NewBacktester(cfg)
	if err != nil {
		fail(err)
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := bt.Run(ctx, req)
	if err != nil {
		closer.Close()
		fail(err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fail(err)
		}
		return
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf(" SPX Backtesting Tool  %s  %s ", res.Symbol, time.Now().Format("2006-01-02 15:04"))))
	fmt.Println()
	for _, line := range report.Summary(res) {
		fmt.Println(metricStyle.Render(line))
	}
	for _, line := range report.Details(res) {
		fmt.Println(dimStyle.Render(line))
	}
	if *trades {
		fmt.Println()
		for _, line := range report.TradeLog(res.Trades) {
			fmt.Println(line)
		}
	}
	if chart := report.Chart(res.Series, *width, *height); chart != "" {
		fmt.Println()
		fmt.Print(chart)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, errStyle.Render("backtest failed: ")+err.Error())
	os.Exit(1)
}
