package benchmarks_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/benchmarks"
)

var _ = Describe("Encoders", func() {
	DescribeTable("should match reference encodings",
		func(word, expected uint32) {
			Expect(word).To(Equal(expected))
		},
		Entry("addi x1, x0, 10", benchmarks.EncodeADDI(1, 0, 10), uint32(0x00A00093)),
		Entry("addi x1, x1, -1", benchmarks.EncodeADDI(1, 1, -1), uint32(0xFFF08093)),
		Entry("add x2, x2, x1", benchmarks.EncodeADD(2, 2, 1), uint32(0x00110133)),
		Entry("bne x1, x0, -8", benchmarks.EncodeBNE(1, 0, -8), uint32(0xFE009CE3)),
		Entry("sw x5, 0(x2)", benchmarks.EncodeSW(5, 2, 0), uint32(0x00512023)),
		Entry("lw x6, 0(x2)", benchmarks.EncodeLW(6, 2, 0), uint32(0x00012303)),
		Entry("jalr x0, 0(x1)", benchmarks.EncodeJALR(0, 1, 0), uint32(0x00008067)),
		Entry("jal x1, 8", benchmarks.EncodeJAL(1, 8), uint32(0x008000EF)),
		Entry("beq x0, x0, 8", benchmarks.EncodeBEQ(0, 0, 8), uint32(0x00000463)),
	)
})

var _ = Describe("Harness", func() {
	var (
		out     *bytes.Buffer
		harness *benchmarks.Harness
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		config := benchmarks.DefaultConfig()
		config.Output = out
		harness = benchmarks.NewHarness(config)
	})

	It("should pass every microbenchmark", func() {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())

		results, err := harness.RunAll(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(len(benchmarks.GetMicrobenchmarks())))
		for _, r := range results {
			Expect(r.Error).To(BeEmpty(), r.Name)
			Expect(r.Passed).To(BeTrue(), r.Name)
			Expect(r.SimulatedCycles).To(BeNumerically(">=", r.InstructionsRetired), r.Name)
			Expect(r.ICacheMisses).To(BeNumerically(">", 0), r.Name)
		}
	})

	It("should count retired instructions exactly", func() {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())

		results, err := harness.RunAll(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].Name).To(Equal("loop_sum"))
		Expect(results[0].InstructionsRetired).To(Equal(uint64(34)))
		Expect(results[0].ControlFlow).To(Equal(uint64(10)))
		Expect(results[1].Name).To(Equal("memory_sequential"))
		Expect(results[1].InstructionsRetired).To(Equal(uint64(21)))
		Expect(results[1].DCacheHits + results[1].DCacheMisses).To(Equal(uint64(20)))
	})

	It("should miss in the data cache once per line for strided stores", func() {
		for _, b := range benchmarks.GetMicrobenchmarks() {
			if b.Name == "memory_strided" {
				harness.AddBenchmark(b)
			}
		}

		results, err := harness.RunAll(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].DCacheMisses).To(Equal(uint64(64)))
		Expect(results[0].MemoryStalls).To(BeNumerically(">", 0))
	})

	It("should record failures instead of aborting", func() {
		harness.AddBenchmark(benchmarks.Benchmark{
			Name:    "illegal",
			Program: benchmarks.BuildProgram(0xFFFFFFFF),
		})
		harness.AddBenchmark(benchmarks.Benchmark{
			Name:         "wrong_exit",
			Program:      benchmarks.BuildProgram(benchmarks.WordEBREAK),
			ExpectedExit: 1,
		})

		results, err := harness.RunAll(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].Passed).To(BeFalse())
		Expect(results[0].Error).To(ContainSubstring("illegal instruction"))
		Expect(results[1].Passed).To(BeFalse())
		Expect(results[1].Error).To(BeEmpty())
	})

	It("should stop when the context is cancelled", func() {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results, err := harness.RunAll(ctx)

		Expect(err).To(MatchError(context.Canceled))
		Expect(results).To(BeEmpty())
	})

	Describe("reports", func() {
		var results []benchmarks.BenchmarkResult

		BeforeEach(func() {
			harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
			var err error
			results, err = harness.RunAll(context.Background())
			Expect(err).NotTo(HaveOccurred())
		})

		It("should print one block per benchmark", func() {
			harness.PrintResults(results)

			Expect(strings.Count(out.String(), "Benchmark: ")).To(Equal(3))
			Expect(out.String()).To(ContainSubstring("loop_sum"))
		})

		It("should print a CSV header and one row per benchmark", func() {
			harness.PrintCSV(results)

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			Expect(lines).To(HaveLen(4))
			Expect(lines[0]).To(HavePrefix("name,cycles,instructions,cpi"))
			Expect(lines[1]).To(HavePrefix("loop_sum,"))
			Expect(lines[1]).To(HaveSuffix(",55,true"))
		})

		It("should print a JSON report with a summary", func() {
			Expect(harness.PrintJSON(results)).To(Succeed())

			var report benchmarks.BenchmarkReport
			Expect(json.Unmarshal(out.Bytes(), &report)).To(Succeed())
			Expect(report.Results).To(HaveLen(3))
			Expect(report.Summary.TotalBenchmarks).To(Equal(3))
			Expect(report.Summary.Passed).To(Equal(3))
			Expect(report.Summary.AverageCPI).To(BeNumerically(">=", 1))
			Expect(report.Metadata.Timing.MemoryLatency).To(Equal(uint64(40)))
		})
	})
})
