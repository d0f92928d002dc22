// Package insts provides RV64I instruction definitions and decoding.
//
// This package implements decoding of RISC-V machine code into structured
// instruction representations. It supports:
//   - Register-register ALU: ADD, SUB, XOR, OR, AND, SLL, SRL, SRA, SLT, SLTU
//   - Register-immediate ALU: ADDI, XORI, ORI, ANDI, SLLI, SRLI, SRAI, SLTI, SLTIU
//   - Loads and stores: LB, LH, LW, LBU, LHU, SB, SH, SW
//   - Branches: BEQ, BNE, BLT, BGE, BLTU, BGEU
//   - Jumps and upper immediates: JAL, JALR, LUI, AUIPC
//   - Environment: ECALL, EBREAK
//
// Every other encoding decodes to OpIllegal.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00510093) // ADDI x1, x2, 5
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts
