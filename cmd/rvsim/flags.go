package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// Image formats accepted by -format.
const (
	formatISO = "iso"
	formatELF = "elf"
	formatRaw = "raw"
)

// Storage backends accepted by -storage.
const (
	storageSparse = "sparse"
	storagePaged  = "paged"
)

// defaultLoadAddr is where ISO boot images and raw binaries are placed.
const defaultLoadAddr = 0x80000000

type options struct {
	Input string

	Format    string
	LoadAddr  uint64
	Entry     uint64
	EntrySet  bool
	MaxInstr  uint64
	Strict    bool
	Storage   string
	Timing    bool
	Config    string
	DumpRegs  bool
	Memviz    string
	Statsview string
	Extract   string

	CPUProfile string
	MemProfile string

	Debug   bool
	Quiet   bool
	Verbose bool
}

// usageError asks the caller to print the flag defaults.
type usageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *usageError) Error() string {
	return e.msg
}

func (e *usageError) showUsage(w io.Writer) {
	fmt.Fprintf(w, "usage: rvsim [options] <image>\n\n")
	e.flags.SetOutput(w)
	e.flags.PrintDefaults()
}

func parseFlags(args []string) (options, error) {
	var opts options

	flags := flag.NewFlagSet("rvsim", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	flags.StringVar(&opts.Format, "format", formatISO, "image format (iso/elf/raw)")
	flags.Uint64Var(&opts.LoadAddr, "load-addr", defaultLoadAddr, "load address for iso and raw images")
	flags.Uint64Var(&opts.Entry, "entry", 0, "override the image's entry point")
	flags.Uint64Var(&opts.MaxInstr, "max-instr", 0, "stop after this many instructions (0 is unlimited)")
	flags.BoolVar(&opts.Strict, "strict", false, "fault on illegal instructions instead of skipping them")
	flags.StringVar(&opts.Storage, "storage", storageSparse, "memory backend (sparse/paged)")
	flags.BoolVar(&opts.Timing, "timing", false, "enable the cycle-approximate timing model")
	flags.StringVar(&opts.Config, "config", "", "timing configuration file (.json/.yaml)")
	flags.BoolVar(&opts.DumpRegs, "dump-regs", false, "print the register file after the run")
	flags.StringVar(&opts.Memviz, "memviz", "", "write a graphviz dump of the final register file to this file")
	flags.StringVar(&opts.Statsview, "statsview", "", "serve runtime statistics on this address, for example localhost:12600")
	flags.StringVar(&opts.Extract, "extract", "", "write the ISO boot image to this file and exit")
	flags.StringVar(&opts.CPUProfile, "cpuprofile", "", "write a CPU profile to this file")
	flags.StringVar(&opts.MemProfile, "memprofile", "", "write a heap profile to this file after the run")
	flags.BoolVar(&opts.Debug, "debug", false, "trace every retired instruction")
	flags.BoolVar(&opts.Quiet, "q", false, "only log errors")
	flags.BoolVar(&opts.Verbose, "v", false, "print run statistics")

	if err := flags.Parse(args); err != nil {
		return opts, &usageError{flags: flags, msg: err.Error()}
	}

	flags.Visit(func(f *flag.Flag) {
		if f.Name == "entry" {
			opts.EntrySet = true
		}
	})

	rest := flags.Args()
	if len(rest) != 1 {
		return opts, &usageError{flags: flags, msg: "expected exactly one image file"}
	}
	opts.Input = rest[0]

	opts.Format = strings.ToLower(opts.Format)
	switch opts.Format {
	case formatISO, formatELF, formatRaw:
	default:
		return opts, fmt.Errorf("unsupported format: %s. Valid options: iso, elf, raw", opts.Format)
	}

	opts.Storage = strings.ToLower(opts.Storage)
	switch opts.Storage {
	case storageSparse, storagePaged:
	default:
		return opts, fmt.Errorf("unsupported storage: %s. Valid options: sparse, paged", opts.Storage)
	}

	if opts.Extract != "" && opts.Format != formatISO {
		return opts, fmt.Errorf("-extract needs an iso image, got format %s", opts.Format)
	}
	if opts.Config != "" && !opts.Timing {
		return opts, fmt.Errorf("-config is only used with -timing")
	}

	return opts, nil
}
