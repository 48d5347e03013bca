// Command weather-job performs one extract-load run: fetch hourly weather
// for the configured location and upsert it into the local database.
//
// Exit codes:
//
//	0 – success
//	1 – run failure (network/parse/upsert)
//	2 – initialization failure (bad config, unreachable database)
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mlindgren/weatherjob/internal/config"
	"github.com/mlindgren/weatherjob/internal/store"
	"github.com/mlindgren/weatherjob/internal/weather"
	"github.com/mlindgren/weatherjob/internal/weather/providers"
)

const (
	exitOK   = 0
	exitRun  = 1
	exitInit = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("ERROR: failed to load config: %v", err)
		return exitInit
	}

	logger, closeLog, err := newLogger(cfg.LogFile)
	if err != nil {
		log.Printf("ERROR: failed to open log file: %v", err)
		return exitInit
	}
	defer closeLog()

	logger.Printf("INFO: starting job – location: %s, units: %s, VC_API_KEY: %s",
		cfg.Location, cfg.UnitGroup, cfg.SafeKey())

	retry := store.DefaultRetry()
	retry.MaxAttempts = cfg.MaxAttempts
	st, err := store.Open(cfg.DatabaseDSN, retry, logger)
	if err != nil {
		logger.Printf("ERROR: failed to initialize database: %v", err)
		return exitInit
	}
	defer st.Close()

	backoff := providers.DefaultBackoff()
	backoff.MaxAttempts = cfg.MaxAttempts
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	provider := providers.NewVisualCrossingProvider(httpClient, cfg.APIKey, cfg.UnitGroup, backoff, logger)

	svc := weather.NewService(provider, st, logger)

	if err := svc.RunOnce(context.Background(), cfg.Location); err != nil {
		logger.Printf("ERROR: run failed: %v", err)
		return exitRun
	}

	logger.Printf("INFO: run completed")
	return exitOK
}

// newLogger returns a run-tagged logger writing to stderr and, when
// configured, a log file as well.
func newLogger(logFile string) (*log.Logger, func(), error) {
	prefix := fmt.Sprintf("[%s] ", uuid.NewString()[:8])

	if logFile == "" {
		return log.New(os.Stderr, prefix, log.LstdFlags), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	w := io.MultiWriter(os.Stderr, f)
	return log.New(w, prefix, log.LstdFlags), func() { f.Close() }, nil
}
