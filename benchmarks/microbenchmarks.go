package benchmarks

import "github.com/sarchlab/rvsim/emu"

// Register numbers used by the benchmark programs.
const (
	x0 uint8 = 0
	ra       = emu.RegRA
	sp       = emu.RegSP
	t0 uint8 = 5
	t1 uint8 = 6
	a0       = emu.RegA0
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// targets a single characteristic of the timing model.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		memoryStrided(),
		functionCalls(),
		branchTaken(),
		loopSum(),
	}
}

// GetCoreBenchmarks returns a small set for quick checks: a loop, memory
// traffic and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSum(),
		memorySequential(),
		branchTaken(),
	}
}

func arithmeticSequential() Benchmark {
	words := make([]uint32, 0, 21)
	for range 4 {
		for rd := a0; rd < a0+5; rd++ {
			words = append(words, EncodeADDI(rd, rd, 1))
		}
	}
	words = append(words, WordEBREAK)

	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "20 ADDIs over five independent registers, measures ALU throughput",
		Program:      BuildProgram(words...),
		ExpectedExit: 4,
	}
}

func dependencyChain() Benchmark {
	words := make([]uint32, 0, 21)
	for range 20 {
		words = append(words, EncodeADDI(a0, a0, 1))
	}
	words = append(words, WordEBREAK)

	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs on a0, measures back-to-back latency",
		Program:      BuildProgram(words...),
		ExpectedExit: 20,
	}
}

func memorySequential() Benchmark {
	words := make([]uint32, 0, 21)
	for i := range int32(10) {
		words = append(words,
			EncodeSW(t0, sp, 4*i),
			EncodeLW(a0, sp, 4*i),
		)
	}
	words = append(words, WordEBREAK)

	return Benchmark{
		Name:        "memory_sequential",
		Description: "10 store/load pairs to consecutive words, measures L1D hit latency",
		Setup: func(regFile *emu.RegFile, _ *emu.Memory) {
			regFile.WriteReg(t0, 42)
		},
		Program:      BuildProgram(words...),
		ExpectedExit: 42,
	}
}

func memoryStrided() Benchmark {
	return Benchmark{
		Name:        "memory_strided",
		Description: "64 stores one cache line apart, measures L1D miss cost",
		Setup: func(regFile *emu.RegFile, _ *emu.Memory) {
			regFile.WriteReg(t0, regFile.ReadReg(sp))
			regFile.WriteReg(t1, 64)
		},
		Program: BuildProgram(
			EncodeSW(t1, t0, 0),
			EncodeADDI(t0, t0, 64),
			EncodeADDI(a0, a0, 1),
			EncodeADDI(t1, t1, -1),
			EncodeBNE(t1, x0, -16),
			WordEBREAK,
		),
		ExpectedExit: 64,
	}
}

func functionCalls() Benchmark {
	// Five calls to a function at word 6 that increments a0.
	words := make([]uint32, 0, 8)
	for i := range int32(5) {
		words = append(words, EncodeJAL(ra, (6-i)*4))
	}
	words = append(words,
		WordEBREAK,
		EncodeADDI(a0, a0, 1),
		EncodeJALR(x0, ra, 0),
	)

	return Benchmark{
		Name:         "function_calls",
		Description:  "5 JAL/JALR call-return pairs, measures jump overhead",
		Program:      BuildProgram(words...),
		ExpectedExit: 5,
	}
}

func branchTaken() Benchmark {
	// Each taken BEQ skips an ADDI that would poison a0.
	words := make([]uint32, 0, 16)
	for range 5 {
		words = append(words,
			EncodeBEQ(x0, x0, 8),
			EncodeADDI(a0, a0, 100),
			EncodeADDI(a0, a0, 1),
		)
	}
	words = append(words, WordEBREAK)

	return Benchmark{
		Name:         "branch_taken",
		Description:  "5 always-taken forward branches, measures cold predictor cost",
		Program:      BuildProgram(words...),
		ExpectedExit: 5,
	}
}

func loopSum() Benchmark {
	return Benchmark{
		Name:        "loop_sum",
		Description: "sums 10..1 in a BNE loop, measures predictor warm-up",
		Program: BuildProgram(
			EncodeADDI(t0, x0, 10),
			EncodeADDI(t1, x0, 0),
			EncodeADD(t1, t1, t0),
			EncodeADDI(t0, t0, -1),
			EncodeBNE(t0, x0, -8),
			EncodeADDI(a0, t1, 0),
			WordEBREAK,
		),
		ExpectedExit: 55,
	}
}
