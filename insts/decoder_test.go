package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("Field extraction", func() {
		// ADDI x1, x2, 5 -> 0000_0000_0101 00010 000 00001 0010011
		It("should decode ADDI x1, x2, 5", func() {
			inst := decoder.Decode(0b00000000010100010000000010010011)

			Expect(inst.Opcode).To(Equal(uint8(0x13)))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Rs1).To(Equal(uint8(2)))
			Expect(inst.Funct3).To(Equal(uint8(0)))
			Expect(inst.Imm).To(Equal(uint32(5)))
			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Format).To(Equal(insts.FormatI))
		})

		// SUB x3, x1, x2 -> 0x402081B3
		It("should decode SUB x3, x1, x2", func() {
			inst := decoder.Decode(0x402081B3)

			Expect(inst.Op).To(Equal(insts.OpSUB))
			Expect(inst.Format).To(Equal(insts.FormatR))
			Expect(inst.Rd).To(Equal(uint8(3)))
			Expect(inst.Rs1).To(Equal(uint8(1)))
			Expect(inst.Rs2).To(Equal(uint8(2)))
			Expect(inst.Funct7).To(Equal(uint8(0x20)))
			Expect(inst.Imm).To(BeZero())
		})

		It("should keep the raw word", func() {
			inst := decoder.Decode(0x002081B3)
			Expect(inst.Word).To(Equal(uint32(0x002081B3)))
		})
	})

	Describe("Purity", func() {
		It("should return identical results for identical words", func() {
			words := []uint32{0x00510093, 0xFE209CE3, 0x005000EF, 0x00000000, 0xFFFFFFFF}
			for _, w := range words {
				Expect(decoder.Decode(w)).To(Equal(decoder.Decode(w)))
				Expect(decoder.Decode(w)).To(Equal(insts.NewDecoder().Decode(w)))
			}
		})
	})

	DescribeTable("operation resolution",
		func(word uint32, op insts.Op, format insts.Format) {
			inst := decoder.Decode(word)
			Expect(inst.Op).To(Equal(op))
			Expect(inst.Format).To(Equal(format))
		},
		Entry("add x3, x1, x2", uint32(0x002081B3), insts.OpADD, insts.FormatR),
		Entry("sub x3, x1, x2", uint32(0x402081B3), insts.OpSUB, insts.FormatR),
		Entry("sra x5, x6, x7", uint32(0x407352B3), insts.OpSRA, insts.FormatR),
		Entry("sltu x4, x5, x6", uint32(0x0062B233), insts.OpSLTU, insts.FormatR),
		Entry("addi x1, x0, -1", uint32(0xFFF00093), insts.OpADDI, insts.FormatI),
		Entry("srai x1, x2, 63", uint32(0x43F15093), insts.OpSRAI, insts.FormatI),
		Entry("slli x1, x2, 40", uint32(0x02811093), insts.OpSLLI, insts.FormatI),
		Entry("lw x5, -4(x2)", uint32(0xFFC12283), insts.OpLW, insts.FormatI),
		Entry("jalr x1, 8(x5)", uint32(0x008280E7), insts.OpJALR, insts.FormatI),
		Entry("ecall", uint32(0x00000073), insts.OpECALL, insts.FormatI),
		Entry("ebreak", uint32(0x00100073), insts.OpEBREAK, insts.FormatI),
		Entry("sw x5, 8(x2)", uint32(0x00512423), insts.OpSW, insts.FormatS),
		Entry("sb x7, -1(x3)", uint32(0xFE718FA3), insts.OpSB, insts.FormatS),
		Entry("beq x1, x2, 16", uint32(0x00208863), insts.OpBEQ, insts.FormatB),
		Entry("bne x1, x2, -8", uint32(0xFE209CE3), insts.OpBNE, insts.FormatB),
		Entry("bgeu x3, x4, 4094", uint32(0x7E41FFE3), insts.OpBGEU, insts.FormatB),
		Entry("lui x5, 0x12345", uint32(0x123452B7), insts.OpLUI, insts.FormatU),
		Entry("auipc x6, 0xfffff", uint32(0xFFFFF317), insts.OpAUIPC, insts.FormatU),
		Entry("jal x1, 2052", uint32(0x005000EF), insts.OpJAL, insts.FormatJ),
	)

	DescribeTable("illegal encodings",
		func(word uint32) {
			Expect(decoder.Decode(word).Op).To(Equal(insts.OpIllegal))
		},
		Entry("all-zero word", uint32(0x00000000)),
		Entry("all-ones word", uint32(0xFFFFFFFF)),
		Entry("mul (M extension)", uint32(0x023100B3)),
		Entry("ld (not modelled)", uint32(0x00013283)),
		Entry("sd (not modelled)", uint32(0x00513023)),
		Entry("branch funct3=2", uint32(0x0020A063)),
		Entry("jalr funct3=1", uint32(0x008290E7)),
		Entry("csrrw", uint32(0x30029073)),
		Entry("slli with funct6 set", uint32(0x40111093)),
	)

	Describe("Immediates by format", func() {
		It("should sign-extend I-type immediates", func() {
			inst := decoder.Decode(0xFFF00093) // addi x1, x0, -1
			Expect(inst.Imm).To(Equal(uint32(0xFFFFFFFF)))
			Expect(inst.Imm64()).To(Equal(^uint64(0)))
		})

		It("should assemble split S-type immediates", func() {
			inst := decoder.Decode(0x00512423) // sw x5, 8(x2)
			Expect(inst.Rs1).To(Equal(uint8(2)))
			Expect(inst.Rs2).To(Equal(uint8(5)))
			Expect(inst.Imm).To(Equal(uint32(8)))
		})

		It("should decode BEQ x1, x2, 1026", func() {
			inst := decoder.Decode(0b01000000001000001000000101100011)
			Expect(inst.Rs1).To(Equal(uint8(1)))
			Expect(inst.Rs2).To(Equal(uint8(2)))
			Expect(inst.Imm).To(Equal(uint32(1026)))
		})

		It("should decode negative branch offsets", func() {
			inst := decoder.Decode(0xFE209CE3) // bne x1, x2, -8
			Expect(int32(inst.Imm)).To(Equal(int32(-8)))
		})

		It("should decode JAL immediate 2052", func() {
			inst := decoder.Decode(0b00000000010100000000000001101111)
			Expect(inst.Imm).To(Equal(uint32(2052)))
		})

		It("should sign-extend backward JAL offsets", func() {
			inst := decoder.Decode(0xFFDFF06F) // jal x0, -4
			Expect(int32(inst.Imm)).To(Equal(int32(-4)))
		})

		It("should keep U-type immediates in the upper bits", func() {
			inst := decoder.Decode(0x123452B7) // lui x5, 0x12345
			Expect(inst.Rd).To(Equal(uint8(5)))
			Expect(inst.Imm).To(Equal(uint32(0x12345000)))
		})

		It("should leave the immediate zero for unknown opcodes", func() {
			Expect(decoder.Decode(0xFFFFFFFF).Imm).To(BeZero())
		})
	})

	Describe("String", func() {
		It("should render common forms", func() {
			Expect(decoder.Decode(0x00510093).String()).To(Equal("addi x1, x2, 5"))
			Expect(decoder.Decode(0xFFC12283).String()).To(Equal("lw x5, -4(x2)"))
			Expect(decoder.Decode(0x00512423).String()).To(Equal("sw x5, 8(x2)"))
			Expect(decoder.Decode(0xFE209CE3).String()).To(Equal("bne x1, x2, -8"))
			Expect(decoder.Decode(0x123452B7).String()).To(Equal("lui x5, 0x12345"))
			Expect(decoder.Decode(0x00000073).String()).To(Equal("ecall"))
			Expect(decoder.Decode(0x00000000).String()).To(Equal("illegal 0x00000000"))
		})
	})
})
