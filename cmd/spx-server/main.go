// Command spx-server serves backtests over HTTP and gRPC.
package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"spxbacktest/internal/api"
	"spxbacktest/internal/app"
	"spxbacktest/internal/util"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	bt, closer, err := app.NewBacktester(cfg)
	if err != nil {
		log.Fatalf("building backtester: %v", err)
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := api.NewServer(cfg, bt)
	slog.Info("starting spx-server",
		"http", cfg.Server.HTTPAddr(),
		"grpc", cfg.Server.GRPCAddr(),
		"storage", cfg.Storage.Backend,
		"source", cfg.Gather.Source,
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		closer.Close()
		log.Fatalf("server error: %v", err)
	}
	slog.Info("spx-server stopped")
}
