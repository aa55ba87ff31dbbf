// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

// Command mirror copies every result file in the results directory into the
// store once and prints a JSON report. Files already stored are skipped.
//
//	mirror              # mirror RESULTS_DIR into STORE_PATH
//	mirror -dry-run     # validate files without writing
//
// The exit status is 1 when any file failed to mirror.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crowdwatch/internal/config"
	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/query"
	"github.com/tomtom215/crowdwatch/internal/results"
	"github.com/tomtom215/crowdwatch/internal/store"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Validate result files without writing to the store")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	// The report owns stdout; logs go to stderr.
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, *dryRun, os.Stdout)
	stop()
	os.Exit(code)
}

// run mirrors once and writes the report to out, returning the exit status.
func run(ctx context.Context, cfg *config.Config, dryRun bool, out io.Writer) int {
	st, err := store.Open(cfg.Store)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open store")
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	watcher := results.NewWatcher(cfg.Results.Dir, results.Options{DisableFSNotify: true})
	if err := watcher.Scan(); err != nil {
		logging.Error().Err(err).Str("dir", cfg.Results.Dir).Msg("Failed to scan results directory")
		return 1
	}

	report, err := query.NewMirror(watcher, st).Run(ctx, dryRun)
	if err != nil {
		logging.Error().Err(err).Msg("Mirror aborted")
		return 1
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		return 1
	}
	if !report.Success {
		return 1
	}
	return 0
}
