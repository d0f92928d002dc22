// Package insts provides RV64I instruction definitions and decoding.
package insts

import "fmt"

// Op represents a resolved RV64I operation.
type Op uint16

// RV64I operations. OpIllegal covers every encoding the simulator does not
// implement.
const (
	OpIllegal Op = iota

	// Register-register ALU
	OpADD
	OpSUB
	OpXOR
	OpOR
	OpAND
	OpSLL
	OpSRL
	OpSRA
	OpSLT
	OpSLTU

	// Register-immediate ALU
	OpADDI
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpSLTI
	OpSLTIU

	// Loads
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU

	// Stores
	OpSB
	OpSH
	OpSW

	// Branches
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	// Jumps and upper immediates
	OpJAL
	OpJALR
	OpLUI
	OpAUIPC

	// Environment
	OpECALL
	OpEBREAK

	numOps
)

var opNames = [numOps]string{
	OpIllegal: "illegal",
	OpADD:     "add",
	OpSUB:     "sub",
	OpXOR:     "xor",
	OpOR:      "or",
	OpAND:     "and",
	OpSLL:     "sll",
	OpSRL:     "srl",
	OpSRA:     "sra",
	OpSLT:     "slt",
	OpSLTU:    "sltu",
	OpADDI:    "addi",
	OpXORI:    "xori",
	OpORI:     "ori",
	OpANDI:    "andi",
	OpSLLI:    "slli",
	OpSRLI:    "srli",
	OpSRAI:    "srai",
	OpSLTI:    "slti",
	OpSLTIU:   "sltiu",
	OpLB:      "lb",
	OpLH:      "lh",
	OpLW:      "lw",
	OpLBU:     "lbu",
	OpLHU:     "lhu",
	OpSB:      "sb",
	OpSH:      "sh",
	OpSW:      "sw",
	OpBEQ:     "beq",
	OpBNE:     "bne",
	OpBLT:     "blt",
	OpBGE:     "bge",
	OpBLTU:    "bltu",
	OpBGEU:    "bgeu",
	OpJAL:     "jal",
	OpJALR:    "jalr",
	OpLUI:     "lui",
	OpAUIPC:   "auipc",
	OpECALL:   "ecall",
	OpEBREAK:  "ebreak",
}

// String returns the lower-case assembler mnemonic.
func (op Op) String() string {
	if op >= numOps {
		return fmt.Sprintf("op(%d)", uint16(op))
	}
	return opNames[op]
}

// Major opcodes (bits [6:0]).
const (
	OpcodeLoad   uint8 = 0b0000011
	OpcodeOpImm  uint8 = 0b0010011
	OpcodeAUIPC  uint8 = 0b0010111
	OpcodeStore  uint8 = 0b0100011
	OpcodeOp     uint8 = 0b0110011
	OpcodeLUI    uint8 = 0b0110111
	OpcodeBranch uint8 = 0b1100011
	OpcodeJALR   uint8 = 0b1100111
	OpcodeJAL    uint8 = 0b1101111
	OpcodeSystem uint8 = 0b1110011
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // Register-register
	FormatI              // Register-immediate, load, JALR, environment
	FormatS              // Store
	FormatB              // Branch
	FormatU              // Upper immediate
	FormatJ              // Jump and link
)

// Instruction represents a decoded RV64I instruction.
type Instruction struct {
	Word   uint32 // Raw instruction word
	Op     Op     // Resolved operation
	Format Format // Encoding format

	// Fixed fields
	Opcode uint8 // bits [6:0]
	Rd     uint8 // bits [11:7]
	Funct3 uint8 // bits [14:12]
	Rs1    uint8 // bits [19:15]
	Rs2    uint8 // bits [24:20]
	Funct7 uint8 // bits [31:25]

	// Imm holds the format-specific immediate, sign- or zero-extended to
	// 32 bits.
	Imm uint32
}

// Imm64 returns the immediate sign-extended to register width.
func (i Instruction) Imm64() uint64 {
	return uint64(int64(int32(i.Imm)))
}

// String renders the instruction in assembler syntax.
func (i Instruction) String() string {
	imm := int32(i.Imm)

	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%v x%d, x%d, x%d", i.Op, i.Rd, i.Rs1, i.Rs2)
	case FormatI:
		switch i.Op {
		case OpLB, OpLH, OpLW, OpLBU, OpLHU, OpJALR:
			return fmt.Sprintf("%v x%d, %d(x%d)", i.Op, i.Rd, imm, i.Rs1)
		case OpSLLI, OpSRLI, OpSRAI:
			return fmt.Sprintf("%v x%d, x%d, %d", i.Op, i.Rd, i.Rs1, i.Imm&0x3f)
		case OpECALL, OpEBREAK:
			return i.Op.String()
		case OpIllegal:
			return fmt.Sprintf("illegal 0x%08x", i.Word)
		}
		return fmt.Sprintf("%v x%d, x%d, %d", i.Op, i.Rd, i.Rs1, imm)
	case FormatS:
		if i.Op == OpIllegal {
			return fmt.Sprintf("illegal 0x%08x", i.Word)
		}
		return fmt.Sprintf("%v x%d, %d(x%d)", i.Op, i.Rs2, imm, i.Rs1)
	case FormatB:
		if i.Op == OpIllegal {
			return fmt.Sprintf("illegal 0x%08x", i.Word)
		}
		return fmt.Sprintf("%v x%d, x%d, %d", i.Op, i.Rs1, i.Rs2, imm)
	case FormatU:
		return fmt.Sprintf("%v x%d, 0x%x", i.Op, i.Rd, i.Imm>>12)
	case FormatJ:
		return fmt.Sprintf("%v x%d, %d", i.Op, i.Rd, imm)
	default:
		return fmt.Sprintf("illegal 0x%08x", i.Word)
	}
}

// Decoder decodes RV64I machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV64I instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word. It is pure: the same word always
// yields the same Instruction.
func (d *Decoder) Decode(word uint32) Instruction {
	inst := Instruction{
		Word:   word,
		Opcode: uint8(word & 0x7f),
		Rd:     uint8((word >> 7) & 0x1f),
		Funct3: uint8((word >> 12) & 0x7),
		Rs1:    uint8((word >> 15) & 0x1f),
		Rs2:    uint8((word >> 20) & 0x1f),
		Funct7: uint8(word >> 25),
	}

	switch inst.Opcode {
	case OpcodeOp:
		inst.Format = FormatR
		inst.Op = d.resolveOp(inst.Funct3, inst.Funct7)
	case OpcodeOpImm:
		inst.Format = FormatI
		inst.Imm = ImmI(word)
		inst.Op = d.resolveOpImm(inst.Funct3, inst.Funct7)
	case OpcodeLoad:
		inst.Format = FormatI
		inst.Imm = ImmI(word)
		inst.Op = d.resolveLoad(inst.Funct3)
	case OpcodeJALR:
		inst.Format = FormatI
		inst.Imm = ImmI(word)
		if inst.Funct3 == 0 {
			inst.Op = OpJALR
		}
	case OpcodeSystem:
		inst.Format = FormatI
		inst.Imm = ImmI(word)
		inst.Op = d.resolveSystem(word)
	case OpcodeStore:
		inst.Format = FormatS
		inst.Imm = ImmS(word)
		inst.Op = d.resolveStore(inst.Funct3)
	case OpcodeBranch:
		inst.Format = FormatB
		inst.Imm = ImmB(word)
		inst.Op = d.resolveBranch(inst.Funct3)
	case OpcodeLUI:
		inst.Format = FormatU
		inst.Imm = ImmU(word)
		inst.Op = OpLUI
	case OpcodeAUIPC:
		inst.Format = FormatU
		inst.Imm = ImmU(word)
		inst.Op = OpAUIPC
	case OpcodeJAL:
		inst.Format = FormatJ
		inst.Imm = ImmJ(word)
		inst.Op = OpJAL
	default:
		inst.Format = FormatUnknown
		inst.Op = OpIllegal
	}

	return inst
}

// resolveOp maps an OP-class funct3/funct7 pair to its operation.
// funct7 must be 0 except for SUB and SRA, which require 0b0100000.
func (d *Decoder) resolveOp(funct3, funct7 uint8) Op {
	switch funct7 {
	case 0b0000000:
		return [8]Op{OpADD, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpOR, OpAND}[funct3]
	case 0b0100000:
		switch funct3 {
		case 0b000:
			return OpSUB
		case 0b101:
			return OpSRA
		}
	}
	return OpIllegal
}

// resolveOpImm maps an OP-IMM funct3 to its operation. Shifts carry a 6-bit
// shift amount, so only funct7[6:1] selects between logical and arithmetic.
func (d *Decoder) resolveOpImm(funct3, funct7 uint8) Op {
	funct6 := funct7 >> 1

	switch funct3 {
	case 0b000:
		return OpADDI
	case 0b001:
		if funct6 == 0 {
			return OpSLLI
		}
	case 0b010:
		return OpSLTI
	case 0b011:
		return OpSLTIU
	case 0b100:
		return OpXORI
	case 0b101:
		switch funct6 {
		case 0b000000:
			return OpSRLI
		case 0b010000:
			return OpSRAI
		}
	case 0b110:
		return OpORI
	case 0b111:
		return OpANDI
	}
	return OpIllegal
}

func (d *Decoder) resolveLoad(funct3 uint8) Op {
	switch funct3 {
	case 0b000:
		return OpLB
	case 0b001:
		return OpLH
	case 0b010:
		return OpLW
	case 0b100:
		return OpLBU
	case 0b101:
		return OpLHU
	default:
		return OpIllegal
	}
}

func (d *Decoder) resolveStore(funct3 uint8) Op {
	switch funct3 {
	case 0b000:
		return OpSB
	case 0b001:
		return OpSH
	case 0b010:
		return OpSW
	default:
		return OpIllegal
	}
}

func (d *Decoder) resolveBranch(funct3 uint8) Op {
	switch funct3 {
	case 0b000:
		return OpBEQ
	case 0b001:
		return OpBNE
	case 0b100:
		return OpBLT
	case 0b101:
		return OpBGE
	case 0b110:
		return OpBLTU
	case 0b111:
		return OpBGEU
	default:
		return OpIllegal
	}
}

// resolveSystem accepts only the two environment instructions; everything
// else in the SYSTEM space is CSR access, which is not modelled.
func (d *Decoder) resolveSystem(word uint32) Op {
	switch word {
	case 0x00000073:
		return OpECALL
	case 0x00100073:
		return OpEBREAK
	default:
		return OpIllegal
	}
}
