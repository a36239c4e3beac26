package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"

	"github.com/andryanduta/predikta/internal/app"
	"github.com/andryanduta/predikta/internal/config"
	"github.com/andryanduta/predikta/internal/platform/logging"
	"github.com/andryanduta/predikta/internal/usecase"
)

// scan aggregates upcoming matches across the tracked competitions,
// predicts them once and prints the result as JSON on stdout. Logs stay
// off stdout so the output pipes cleanly.
func main() {
	days := flag.Int("days", 0, "lookahead window in days (default: LOOKAHEAD_DAYS)")
	verbose := flag.Bool("verbose", false, "log progress to stderr")
	flag.Parse()

	if err := run(*days, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "scan failed:", err)
		os.Exit(1)
	}
}

func run(days int, verbose bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if days <= 0 {
		days = cfg.LookaheadDays
	}

	logger := logging.NewNop()
	if verbose {
		logger = logging.NewJSONStderr(cfg.LogLevel)
	}
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Close(closeCtx)
	}()

	predictions, degraded, err := application.PredictUpcoming(ctx, days)
	if err != nil {
		return err
	}

	out, err := sonic.MarshalIndent(struct {
		Predictions []usecase.MatchPrediction `json:"predictions"`
		Degraded    bool                      `json:"degraded"`
	}{Predictions: predictions, Degraded: degraded}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode predictions: %w", err)
	}

	_, err = os.Stdout.Write(append(out, '\n'))
	return err
}
