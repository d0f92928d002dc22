// Package emu provides functional RV64I emulation.
package emu

// ABI register numbers used by the emulator itself.
const (
	RegZero uint8 = 0  // hardwired zero
	RegRA   uint8 = 1  // return address
	RegSP   uint8 = 2  // stack pointer
	RegA0   uint8 = 10 // first argument / return value
	RegA1   uint8 = 11
	RegA2   uint8 = 12
	RegA7   uint8 = 17 // syscall number
)

// ABINames maps register numbers to their calling-convention names.
var ABINames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegFile represents the RV64I register file.
// It contains 32 general-purpose registers (x0-x31) and the program
// counter (PC).
type RegFile struct {
	// X holds general-purpose registers x0-x31.
	// X[0] is never consulted: register 0 always reads as 0.
	X [32]uint64

	// PC is the program counter.
	PC uint64
}

// ReadReg reads a register value. Register 0 returns 0.
// Registers >= 32 also return 0.
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg == RegZero || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to register 0 and to
// registers >= 32 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg == RegZero || reg >= 32 {
		return
	}
	r.X[reg] = value
}

// ReadReg32 reads the lower 32 bits of a register.
func (r *RegFile) ReadReg32(reg uint8) uint32 {
	return uint32(r.ReadReg(reg))
}
