// Package emu provides functional RV64I emulation.
package emu

import "github.com/sarchlab/rvsim/insts"

// BranchUnit implements RV64I branch and jump operations.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// CheckCondition evaluates a conditional branch's comparison on rs1 and rs2.
// Non-branch operations never take.
func (b *BranchUnit) CheckCondition(op insts.Op, rs1, rs2 uint8) bool {
	v1 := b.regFile.ReadReg(rs1)
	v2 := b.regFile.ReadReg(rs2)

	switch op {
	case insts.OpBEQ:
		return v1 == v2
	case insts.OpBNE:
		return v1 != v2
	case insts.OpBLT:
		return int64(v1) < int64(v2)
	case insts.OpBGE:
		return int64(v1) >= int64(v2)
	case insts.OpBLTU:
		return v1 < v2
	case insts.OpBGEU:
		return v1 >= v2
	default:
		return false
	}
}

// Branch performs a PC-relative branch. The offset is relative to the
// branch instruction's own address.
func (b *BranchUnit) Branch(offset uint64) {
	b.regFile.PC += offset
}

// JAL saves the return address (PC + 4) to rd, then branches to PC + offset.
func (b *BranchUnit) JAL(rd uint8, offset uint64) {
	pc := b.regFile.PC
	b.regFile.WriteReg(rd, pc+4)
	b.regFile.PC = pc + offset
}

// JALR saves the return address (PC + 4) to rd, then branches to
// (rs1 + offset) with the low bit cleared.
func (b *BranchUnit) JALR(rd, rs1 uint8, offset uint64) {
	// Read target address first (in case rd == rs1)
	target := (b.regFile.ReadReg(rs1) + offset) &^ 1

	b.regFile.WriteReg(rd, b.regFile.PC+4)
	b.regFile.PC = target
}
