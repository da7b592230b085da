// Command spx-gather backfills daily bars for the configured symbols into the
// local store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"spxbacktest/internal/app"
	"spxbacktest/internal/gather/us"
	"spxbacktest/internal/util"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	symbols := flag.String("symbols", strings.Join(cfg.Gather.Symbols, ","), "comma-separated symbols to backfill")
	start := flag.String("start", cfg.Gather.StartDate, "first date to backfill (YYYY-MM-DD)")
	workers := flag.Int("workers", cfg.Gather.MaxWorkers, "concurrent symbols")
	flag.Parse()

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/spx-gather-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer logFile.Close()
	util.SetDefault(util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level, "text"))

	var list []string
	for _, s := range strings.Split(*symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, strings.ToUpper(s))
		}
	}
	if len(list) == 0 {
		list = []string{strings.ToUpper(cfg.Backtest.Symbol)}
	}

	bars, closer, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer closer.Close()

	gatherer := us.NewDailyBarGatherer(app.NewGatherSource(cfg), bars, list, *start, *workers)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting spx-gather", "logFile", logFileName, "symbols", list, "storage", cfg.Storage.Backend)
	if err := gatherer.Run(ctx); err != nil {
		slog.Error("gather finished with errors", "error", err)
		closer.Close()
		os.Exit(1)
	}
}
