package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bradleyjkemp/memviz"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/term"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/latency"
)

// registerCellWidth is the printed width of one "name=0x%016x" cell.
const registerCellWidth = 26

func loadProgram(opts options) (*loader.Program, error) {
	switch opts.Format {
	case formatELF:
		return loader.LoadELF(opts.Input)
	case formatRaw:
		return loader.LoadRaw(opts.Input, opts.LoadAddr)
	default:
		return loader.LoadISO(opts.Input, opts.LoadAddr)
	}
}

func newMemory(storage string) *emu.Memory {
	if storage == storagePaged {
		return emu.NewMemoryWithStorage(emu.NewPagedStorage())
	}
	return emu.NewMemory()
}

func loadTimingConfig(path string) (*latency.TimingConfig, error) {
	if path == "" {
		return latency.DefaultTimingConfig(), nil
	}

	config, err := latency.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config %s: %w", path, err)
	}
	return config, nil
}

// extractBootImage writes the boot image of the ISO at opts.Input to
// opts.Extract.
func extractBootImage(logger *log.Logger, opts options) error {
	image, err := os.ReadFile(opts.Input)
	if err != nil {
		return fmt.Errorf("failed to read ISO image: %w", err)
	}

	bootImage, entry, err := loader.ExtractBootImage(image)
	if err != nil {
		return err
	}

	if err := os.WriteFile(opts.Extract, bootImage, 0o644); err != nil {
		return fmt.Errorf("failed to write boot image: %w", err)
	}

	logger.Info("Boot image extracted",
		log.String("file", opts.Extract),
		log.Hex("load_rba", entry.LoadRBA),
		log.Int("sectors", int(entry.SectorCount)),
		log.Int("bytes", len(bootImage)))
	return nil
}

// simulate loads the image, runs it to completion and reports the result.
// It returns the guest's exit code.
func simulate(ctx context.Context, logger *log.Logger, opts options, stdout io.Writer) (int64, error) {
	prog, err := loadProgram(opts)
	if err != nil {
		return -1, fmt.Errorf("loading program: %w", err)
	}

	entry := prog.EntryPoint
	if opts.EntrySet {
		entry = opts.Entry
	}

	logger.Debug("Program loaded",
		log.String("file", opts.Input),
		log.String("format", opts.Format),
		log.Hex("entry", entry),
		log.Int("segments", len(prog.Segments)),
		log.Uint64("bytes", prog.Size()))

	memory := newMemory(opts.Storage)
	prog.LoadInto(memory)

	emuOpts := []emu.EmulatorOption{
		emu.WithMemory(memory),
		emu.WithStdout(stdout),
		emu.WithStdin(os.Stdin),
		emu.WithStrict(opts.Strict),
		emu.WithMaxInstructions(opts.MaxInstr),
		emu.WithLogger(logger),
	}

	var timingCore *core.Core
	if opts.Timing {
		config, err := loadTimingConfig(opts.Config)
		if err != nil {
			return -1, err
		}
		timingCore = core.NewCore(memory, config)
		emuOpts = append(emuOpts, emu.WithObserver(timingCore))
	}

	emulator := emu.NewEmulator(emuOpts...)
	emulator.SetPC(entry)
	if prog.InitialSP != 0 {
		emulator.RegFile().WriteReg(emu.RegSP, prog.InitialSP)
	}

	start := time.Now()
	exitCode, runErr := emulator.Run(ctx)
	elapsed := time.Since(start)

	if opts.Verbose {
		logger.Info("Run finished",
			log.Int64("exit_code", exitCode),
			log.Uint64("instructions", emulator.InstructionCount()),
			log.Hex("pc", emulator.RegFile().PC),
			log.Duration("elapsed", elapsed))
	}
	if timingCore != nil {
		logTimingStats(logger, timingCore.Stats())
	}
	if opts.DumpRegs {
		dumpRegisters(stdout, emulator.RegFile(), terminalColumns(stdout))
	}
	if opts.Memviz != "" {
		if err := writeMemviz(opts.Memviz, emulator.RegFile()); err != nil {
			logger.Error("Writing memviz dump failed", log.Err(err))
		}
	}

	if runErr != nil {
		var illegal *emu.IllegalInstructionError
		if errors.As(runErr, &illegal) {
			logger.Error("Illegal instruction",
				log.Hex("pc", illegal.PC),
				log.Hex("word", illegal.Word))
		}
		return -1, runErr
	}
	return exitCode, nil
}

func logTimingStats(logger *log.Logger, stats core.Stats) {
	logger.Info("Timing statistics",
		log.Uint64("cycles", stats.Cycles),
		log.Uint64("instructions", stats.Instructions),
		log.Float64("cpi", stats.CPI()),
		log.Uint64("fetch_stalls", stats.FetchStalls),
		log.Uint64("memory_stalls", stats.MemoryStalls),
		log.Uint64("control_flow", stats.ControlFlow),
		log.Uint64("mispredictions", stats.Mispredictions),
		log.Float64("predictor_accuracy", stats.Predictor.Accuracy()))
	logger.Info("Cache statistics",
		log.Uint64("l1i_hits", stats.ICache.Hits),
		log.Uint64("l1i_misses", stats.ICache.Misses),
		log.Uint64("l1d_hits", stats.DCache.Hits),
		log.Uint64("l1d_misses", stats.DCache.Misses))
}

// terminalColumns picks how many registers to print per line. Output that
// is not a terminal gets four.
func terminalColumns(w io.Writer) int {
	const fallback = 4

	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return fallback
	}

	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < registerCellWidth {
		return fallback
	}
	return width / registerCellWidth
}

func dumpRegisters(w io.Writer, regs *emu.RegFile, columns int) {
	if columns < 1 {
		columns = 1
	}

	fmt.Fprintf(w, "pc   = 0x%016x\n", regs.PC)
	for i := range uint8(32) {
		fmt.Fprintf(w, "%-4s = 0x%016x", emu.ABINames[i], regs.ReadReg(i))
		if int(i+1)%columns == 0 || i == 31 {
			fmt.Fprintln(w)
		} else {
			fmt.Fprint(w, "  ")
		}
	}
}

func writeMemviz(path string, regs *emu.RegFile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create memviz file: %w", err)
	}
	defer f.Close()

	memviz.Map(f, regs)
	return nil
}
