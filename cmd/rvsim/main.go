// Package main implements rvsim, a command line RV64I simulator that boots
// El Torito ISO images, ELF executables and flat binaries.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
	"github.com/rs/xid"
)

func main() {
	ctx := app.Context()

	opts, err := parseFlags(os.Args[1:])
	logger := createLogger(os.Stderr, opts.Debug, opts.Quiet)
	if err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "%s\n\n", usageErr.msg)
			usageErr.showUsage(os.Stderr)
		} else {
			logger.Error("Invalid options", log.Err(err))
		}
		os.Exit(1)
	}

	os.Exit(run(ctx, logger, opts, os.Stdout))
}

// createLogger builds the process logger. Log output goes to w so it does
// not interleave with what the guest writes to stdout.
func createLogger(w io.Writer, debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = w
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// run executes one simulation and maps its outcome to a process exit
// status: the guest's exit code on a clean exit, 1 otherwise.
func run(ctx context.Context, logger *log.Logger, opts options, stdout io.Writer) int {
	logger = logger.With(log.String("run", xid.New().String()))

	if opts.Statsview != "" {
		startStatsview(logger, opts.Statsview)
	}

	if opts.Extract != "" {
		if err := extractBootImage(logger, opts); err != nil {
			logger.Error("Extracting boot image failed", log.Err(err))
			return 1
		}
		return 0
	}

	if opts.CPUProfile != "" {
		stop, err := startCPUProfile(opts.CPUProfile)
		if err != nil {
			logger.Error("Starting CPU profile failed", log.Err(err))
			return 1
		}
		defer stop()
	}

	exitCode, err := simulate(ctx, logger, opts, stdout)

	if opts.MemProfile != "" {
		if err := writeHeapProfile(opts.MemProfile); err != nil {
			logger.Error("Writing heap profile failed", log.Err(err))
		}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Simulation cancelled")
		} else {
			logger.Error("Simulation failed", log.Err(err))
		}
		return 1
	}

	return int(exitCode)
}

func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}

func startStatsview(logger *log.Logger, addr string) {
	viewer.SetConfiguration(viewer.WithAddr(addr))
	mgr := statsview.New()
	go func() {
		if err := mgr.Start(); err != nil {
			logger.Error("Statsview server stopped", log.Err(err))
		}
	}()

	logger.Info("Statsview available", log.String("url", "http://"+addr+"/debug/statsview"))
}
