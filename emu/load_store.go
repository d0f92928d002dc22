// Package emu provides functional RV64I emulation.
package emu

// LoadStoreUnit implements RV64I load and store operations.
// Addresses are computed by the caller.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// LB loads a byte with sign extension: rd = sext(mem[addr])
func (lsu *LoadStoreUnit) LB(rd uint8, addr uint64) {
	value := lsu.memory.Read8(addr)
	lsu.regFile.WriteReg(rd, uint64(int64(int8(value))))
}

// LH loads a halfword with sign extension: rd = sext(mem16[addr])
func (lsu *LoadStoreUnit) LH(rd uint8, addr uint64) {
	value := lsu.memory.Read16(addr)
	lsu.regFile.WriteReg(rd, uint64(int64(int16(value))))
}

// LW loads a word with sign extension: rd = sext(mem32[addr])
func (lsu *LoadStoreUnit) LW(rd uint8, addr uint64) {
	value := lsu.memory.Read32(addr)
	lsu.regFile.WriteReg(rd, uint64(int64(int32(value))))
}

// LBU loads a byte with zero extension: rd = zext(mem[addr])
func (lsu *LoadStoreUnit) LBU(rd uint8, addr uint64) {
	lsu.regFile.WriteReg(rd, uint64(lsu.memory.Read8(addr)))
}

// LHU loads a halfword with zero extension: rd = zext(mem16[addr])
func (lsu *LoadStoreUnit) LHU(rd uint8, addr uint64) {
	lsu.regFile.WriteReg(rd, uint64(lsu.memory.Read16(addr)))
}

// SB stores a byte: mem[addr] = rs2[7:0]
func (lsu *LoadStoreUnit) SB(rs2 uint8, addr uint64) {
	lsu.memory.Write8(addr, uint8(lsu.regFile.ReadReg(rs2)))
}

// SH stores a halfword: mem16[addr] = rs2[15:0]
func (lsu *LoadStoreUnit) SH(rs2 uint8, addr uint64) {
	lsu.memory.Write16(addr, uint16(lsu.regFile.ReadReg(rs2)))
}

// SW stores a word: mem32[addr] = rs2[31:0]
func (lsu *LoadStoreUnit) SW(rs2 uint8, addr uint64) {
	lsu.memory.Write32(addr, uint32(lsu.regFile.ReadReg(rs2)))
}
