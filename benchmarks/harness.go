// Package benchmarks provides RV64I microbenchmarks and a harness that runs
// them through the functional emulator with the timing core attached.
package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/latency"
)

const (
	// ProgramAddr is where every benchmark program is loaded.
	ProgramAddr = 0x1000
	// StackTop is the initial stack pointer.
	StackTop = 0x10000
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	SimulatedCycles     uint64  `json:"simulated_cycles"`
	InstructionsRetired uint64  `json:"instructions_retired"`
	CPI                 float64 `json:"cpi"`

	FetchStalls    uint64 `json:"fetch_stalls"`
	MemoryStalls   uint64 `json:"memory_stalls"`
	ControlFlow    uint64 `json:"control_flow"`
	Mispredictions uint64 `json:"mispredictions"`

	ICacheHits   uint64 `json:"icache_hits"`
	ICacheMisses uint64 `json:"icache_misses"`
	DCacheHits   uint64 `json:"dcache_hits"`
	DCacheMisses uint64 `json:"dcache_misses"`

	BranchAccuracyPercent float64 `json:"branch_accuracy_percent"`

	ExitCode int64 `json:"exit_code"`

	// Passed is true when the program exited cleanly with ExpectedExit.
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`

	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	Name        string
	Description string

	// Setup prepares registers and memory before the program starts.
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is RV64I machine code loaded at ProgramAddr.
	Program []byte

	ExpectedExit int64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Timing is the timing model configuration. Nil selects the defaults.
	Timing *latency.TimingConfig

	// MaxInstructions bounds every run. 0 means no limit.
	MaxInstructions uint64

	// Output is where to write results (default: os.Stdout).
	Output io.Writer
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Timing:          latency.DefaultTimingConfig(),
		MaxInstructions: 1_000_000,
		Output:          os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}
	return &Harness{config: config}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks in order. It stops early, returning the
// results gathered so far, when ctx is cancelled.
func (h *Harness) RunAll(ctx context.Context) ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, h.runBenchmark(ctx, bench))
	}

	return results, nil
}

func (h *Harness) runBenchmark(ctx context.Context, bench Benchmark) BenchmarkResult {
	memory := emu.NewMemory()
	timingCore := core.NewCore(memory, h.config.Timing)
	emulator := emu.NewEmulator(
		emu.WithMemory(memory),
		emu.WithObserver(timingCore),
		emu.WithStrict(true),
		emu.WithMaxInstructions(h.config.MaxInstructions),
		emu.WithStdout(io.Discard),
		emu.WithStderr(io.Discard),
	)

	emulator.RegFile().WriteReg(emu.RegSP, StackTop)
	if bench.Setup != nil {
		bench.Setup(emulator.RegFile(), memory)
	}
	emulator.LoadProgram(ProgramAddr, bench.Program)

	start := time.Now()
	exitCode, err := emulator.Run(ctx)
	wallTime := time.Since(start)

	stats := timingCore.Stats()
	result := BenchmarkResult{
		Name:                  bench.Name,
		Description:           bench.Description,
		SimulatedCycles:       stats.Cycles,
		InstructionsRetired:   stats.Instructions,
		CPI:                   stats.CPI(),
		FetchStalls:           stats.FetchStalls,
		MemoryStalls:          stats.MemoryStalls,
		ControlFlow:           stats.ControlFlow,
		Mispredictions:        stats.Mispredictions,
		ICacheHits:            stats.ICache.Hits,
		ICacheMisses:          stats.ICache.Misses,
		DCacheHits:            stats.DCache.Hits,
		DCacheMisses:          stats.DCache.Misses,
		BranchAccuracyPercent: stats.Predictor.Accuracy(),
		ExitCode:              exitCode,
		Passed:                err == nil && exitCode == bench.ExpectedExit,
		WallTime:              wallTime,
	}
	if err != nil {
		result.Error = err.Error()
	}

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	w := h.config.Output

	_, _ = fmt.Fprintln(w, "=== RV64I Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(w, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(w, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(w, "  Exit Code: %d (passed: %v)\n", r.ExitCode, r.Passed)
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(w, "  --- Timing ---")
		_, _ = fmt.Fprintf(w, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(w, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(w, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(w, "  Fetch Stalls:         %d\n", r.FetchStalls)
		_, _ = fmt.Fprintf(w, "  Memory Stalls:        %d\n", r.MemoryStalls)
		_, _ = fmt.Fprintln(w, "  --- Caches ---")
		_, _ = fmt.Fprintf(w, "  L1I Hits/Misses:      %d/%d\n", r.ICacheHits, r.ICacheMisses)
		_, _ = fmt.Fprintf(w, "  L1D Hits/Misses:      %d/%d\n", r.DCacheHits, r.DCacheMisses)

		if r.ControlFlow > 0 {
			_, _ = fmt.Fprintln(w, "  --- Branch Predictor ---")
			_, _ = fmt.Fprintf(w, "  Control Flow:    %d\n", r.ControlFlow)
			_, _ = fmt.Fprintf(w, "  Mispredictions:  %d\n", r.Mispredictions)
			_, _ = fmt.Fprintf(w, "  Accuracy:        %.1f%%\n", r.BranchAccuracyPercent)
		}

		_, _ = fmt.Fprintf(w, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV outputs benchmark results in CSV format.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	w := h.config.Output

	_, _ = fmt.Fprintln(w,
		"name,cycles,instructions,cpi,fetch_stalls,mem_stalls,control_flow,mispredictions,icache_hits,icache_misses,dcache_hits,dcache_misses,exit_code,passed")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%d,%v\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.FetchStalls,
			r.MemoryStalls,
			r.ControlFlow,
			r.Mispredictions,
			r.ICacheHits,
			r.ICacheMisses,
			r.DCacheHits,
			r.DCacheMisses,
			r.ExitCode,
			r.Passed,
		)
	}
}

// BenchmarkReport is the complete JSON output for a harness run.
type BenchmarkReport struct {
	Metadata ReportMetadata    `json:"metadata"`
	Results  []BenchmarkResult `json:"results"`
	Summary  ReportSummary     `json:"summary"`
}

// ReportMetadata describes the run.
type ReportMetadata struct {
	Timestamp string                `json:"timestamp"`
	Timing    *latency.TimingConfig `json:"timing"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks   int           `json:"total_benchmarks"`
	Passed            int           `json:"passed"`
	TotalCycles       uint64        `json:"total_cycles"`
	TotalInstructions uint64        `json:"total_instructions"`
	AverageCPI        float64       `json:"average_cpi"`
	TotalWallTime     time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.InstructionsRetired
		summary.TotalWallTime += r.WallTime
		if r.Passed {
			summary.Passed++
		}
	}
	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}
	return summary
}

// PrintJSON outputs benchmark results in JSON format.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Timing:    h.config.Timing,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
