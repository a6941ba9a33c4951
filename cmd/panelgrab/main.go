package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/panelgrab/panelgrab/internal/config"
	"github.com/panelgrab/panelgrab/internal/reporting"
	"github.com/panelgrab/panelgrab/internal/scanner"
	"github.com/panelgrab/panelgrab/internal/ui"
)

func main() {
	ui.PrintBanner()

	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if err := config.Validate(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ui.PrintConfig(cfg)

	engine, err := scanner.NewEngine(cfg, scanner.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\n[!] Received signal %s, shutting down gracefully...\n", sig)
		cancel()
	}()

	type scanResult struct {
		report *scanner.Report
		err    error
	}

	resultCh := make(chan scanResult, 1)
	go func() {
		report, err := engine.Run(ctx)
		resultCh <- scanResult{report: report, err: err}
	}()

	if !cfg.Verbose {
		go ui.StartProgressReporter(ctx, engine.Progress())
	}

	sr := <-resultCh
	cancel()

	if sr.err != nil {
		if ctx.Err() != nil && sr.report != nil {
			fmt.Fprintln(os.Stderr, "[!] Scan cancelled, reporting partial results")
		} else {
			fmt.Fprintf(os.Stderr, "Scan error: %s\n", sr.err)
			os.Exit(1)
		}
	}

	report := sr.report
	if report == nil {
		os.Exit(1)
	}

	if cfg.Verbose {
		for _, result := range report.Results {
			ui.PrintResult(result)
		}
	}

	ui.PrintSummary(report)

	if cfg.OutputFile != "" {
		filename := cfg.OutputFile + "." + cfg.ExportFormat
		if err := reporting.Export(report, filename, cfg.ExportFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to export report: %s\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nReport saved: %s\n", filename)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
