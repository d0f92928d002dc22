// Command benchmark runs the RV64I timing microbenchmarks.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv     Output results in CSV format (default: human-readable)
//	-json    Output results as a JSON report
//	-core    Run only the core benchmark subset
//	-config  Timing configuration file (.json/.yaml)
package main

import (
	"flag"
	"os"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"

	"github.com/sarchlab/rvsim/benchmarks"
	"github.com/sarchlab/rvsim/timing/latency"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as a JSON report")
	coreOnly := flag.Bool("core", false, "Run only the core benchmark subset")
	configPath := flag.String("config", "", "Timing configuration file (.json/.yaml)")
	flag.Parse()

	cfg := log.DefaultConfig()
	cfg.Output = os.Stderr
	logger := log.NewWithConfig(cfg)

	config := benchmarks.DefaultConfig()
	config.Output = os.Stdout
	if *configPath != "" {
		timing, err := latency.LoadConfig(*configPath)
		if err == nil {
			err = timing.Validate()
		}
		if err != nil {
			logger.Fatal("Loading timing config failed", log.Err(err))
		}
		config.Timing = timing
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	results, err := harness.RunAll(app.Context())
	if err != nil {
		logger.Error("Benchmark run interrupted", log.Err(err))
	}

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			logger.Fatal("Writing JSON report failed", log.Err(err))
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)
	}

	summary := benchmarks.Summarize(results)
	if summary.Passed != summary.TotalBenchmarks {
		logger.Error("Benchmarks failed",
			log.Int("passed", summary.Passed),
			log.Int("total", summary.TotalBenchmarks))
		os.Exit(1)
	}
}
