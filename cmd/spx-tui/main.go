// Command spx-tui is a terminal viewer for SMA dip-buy backtests.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"spxbacktest/internal/app"
	"spxbacktest/internal/util"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	symbol := flag.String("symbol", cfg.Backtest.Symbol, "ticker to backtest")
	flag.Parse()
	cfg.Backtest.Symbol = strings.ToUpper(*symbol)

	// The terminal belongs to the UI; logs go to a file.
	logPath := fmt.Sprintf("/tmp/spx-tui-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	util.SetDefault(util.NewLoggerTo(logFile, cfg.Logging.Level, "text"))

	req, err := app.DefaultRequest(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	bt, closer, err := app.NewBacktester(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	m := initialModel(bt, req)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
