// Package emu provides functional RV64I emulation.
package emu

// shiftMask selects the shift amount for 64-bit shifts.
const shiftMask = 0x3f

// ALU implements RV64I integer arithmetic and logic operations.
// The second operand is either rs2 or the sign-extended immediate; the
// caller decides which.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// ADD performs rd = rs1 + op2.
func (a *ALU) ADD(rd, rs1 uint8, op2 uint64) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)+op2)
}

// SUB performs rd = rs1 - op2.
func (a *ALU) SUB(rd, rs1 uint8, op2 uint64) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)-op2)
}

// XOR performs rd = rs1 ^ op2.
func (a *ALU) XOR(rd, rs1 uint8, op2 uint64) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)^op2)
}

// OR performs rd = rs1 | op2.
func (a *ALU) OR(rd, rs1 uint8, op2 uint64) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)|op2)
}

// AND performs rd = rs1 & op2.
func (a *ALU) AND(rd, rs1 uint8, op2 uint64) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)&op2)
}

// SLL performs a logical left shift by the low 6 bits of op2.
func (a *ALU) SLL(rd, rs1 uint8, op2 uint64) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)<<(op2&shiftMask))
}

// SRL performs a logical right shift by the low 6 bits of op2.
func (a *ALU) SRL(rd, rs1 uint8, op2 uint64) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)>>(op2&shiftMask))
}

// SRA performs an arithmetic right shift by the low 6 bits of op2.
func (a *ALU) SRA(rd, rs1 uint8, op2 uint64) {
	a.regFile.WriteReg(rd, uint64(int64(a.regFile.ReadReg(rs1))>>(op2&shiftMask)))
}

// SLT sets rd to 1 if rs1 < op2 as signed integers, else 0.
func (a *ALU) SLT(rd, rs1 uint8, op2 uint64) {
	a.regFile.WriteReg(rd, boolToUint64(int64(a.regFile.ReadReg(rs1)) < int64(op2)))
}

// SLTU sets rd to 1 if rs1 < op2 as unsigned integers, else 0.
func (a *ALU) SLTU(rd, rs1 uint8, op2 uint64) {
	a.regFile.WriteReg(rd, boolToUint64(a.regFile.ReadReg(rs1) < op2))
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
