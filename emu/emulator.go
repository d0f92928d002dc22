// Package emu provides functional RV64I emulation.
package emu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/retrogolib/log"

	"github.com/sarchlab/rvsim/insts"
)

// InstructionSize is the width of every instruction in bytes.
const InstructionSize = 4

// ErrMaxInstructions is returned once the configured instruction budget is
// used up.
var ErrMaxInstructions = errors.New("max instructions reached")

// IllegalInstructionError reports an instruction word the emulator does not
// implement.
type IllegalInstructionError struct {
	PC   uint64
	Word uint32
}

func (e *IllegalInstructionError) Error() string {
	return fmt.Sprintf("illegal instruction 0x%08X at PC=0x%X", e.Word, e.PC)
}

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated (exit syscall or EBREAK).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Err is set if an error occurred during execution.
	Err error
}

// Observer receives execution events. Timing models use it to account for
// fetches, memory traffic and control flow without touching the emulator.
type Observer interface {
	// OnFetch is called with the PC and the fetched word before decode.
	OnFetch(pc uint64, word uint32)
	// OnMemoryAccess is called for every load and store.
	OnMemoryAccess(addr uint64, size int, isWrite bool)
	// OnRetire is called after an instruction completes; nextPC is the
	// PC it left behind.
	OnRetire(pc uint64, inst insts.Instruction, nextPC uint64)
}

// Emulator executes RV64I instructions functionally.
type Emulator struct {
	regFile        *RegFile
	memory         *Memory
	decoder        *insts.Decoder
	syscallHandler SyscallHandler

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	// I/O
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logger   *log.Logger
	trace    bool
	observer Observer

	// strict reports illegal instructions as errors; otherwise they are
	// skipped as no-ops.
	strict bool

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stderr = w
	}
}

// WithStdin sets the reader served by the read syscall.
func WithStdin(r io.Reader) EmulatorOption {
	return func(e *Emulator) {
		e.stdin = r
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) {
		e.syscallHandler = handler
	}
}

// WithMemory replaces the default sparse memory.
func WithMemory(memory *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = memory
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithStrict selects between reporting illegal instructions as errors
// (true) and skipping them as no-ops (false, the default).
func WithStrict(strict bool) EmulatorOption {
	return func(e *Emulator) {
		e.strict = strict
	}
}

// WithLogger sets the logger for skipped illegal instructions. When the
// logger has debug level enabled every retired instruction is traced too.
func WithLogger(logger *log.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// WithObserver attaches an execution observer.
func WithObserver(observer Observer) EmulatorOption {
	return func(e *Emulator) {
		e.observer = observer
	}
}

// NewEmulator creates a new RV64I emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		decoder: insts.NewDecoder(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.memory == nil {
		e.memory = NewMemory()
	}
	if e.logger != nil {
		e.trace = e.logger.Enabled(context.Background(), log.DebugLevel)
	}

	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
	e.branchUnit = NewBranchUnit(e.regFile)

	if e.syscallHandler == nil {
		handler := NewDefaultSyscallHandler(e.regFile, e.memory, e.stdout, e.stderr)
		handler.SetStdin(e.stdin)
		e.syscallHandler = handler
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// SetPC sets the program counter.
func (e *Emulator) SetPC(pc uint64) {
	e.regFile.PC = pc
}

// LoadProgram copies a program into memory and sets the entry point.
func (e *Emulator) LoadProgram(entry uint64, program []byte) {
	e.memory.LoadProgram(entry, program)
	e.regFile.PC = entry
}

// Reset clears registers, memory and the instruction count.
func (e *Emulator) Reset() {
	*e.regFile = RegFile{}
	e.memory.Clear()
	e.instructionCount = 0
}

// Fetch assembles the little-endian word at PC. It does not advance PC.
// Unmapped bytes read as zero.
func (e *Emulator) Fetch() uint32 {
	return e.memory.Read32(e.regFile.PC)
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := e.regFile.PC

	word := e.Fetch()
	if e.observer != nil {
		e.observer.OnFetch(pc, word)
	}

	inst := e.decoder.Decode(word)

	result := e.Execute(inst)
	if result.Err != nil {
		return result
	}

	e.instructionCount++

	if e.observer != nil {
		e.observer.OnRetire(pc, inst, e.regFile.PC)
	}
	if e.trace {
		e.logger.Debug("Retired",
			log.Hex("pc", pc),
			log.Hex("word", word),
			log.String("inst", inst.String()))
	}

	return result
}

// Run executes instructions until the program exits, an error occurs or ctx
// is cancelled. ctx is checked between instructions.
// Returns the exit code (-1 on error).
func (e *Emulator) Run(ctx context.Context) (int64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return -1, err
		}

		result := e.Step()
		if result.Exited {
			return result.ExitCode, nil
		}
		if result.Err != nil {
			return -1, result.Err
		}
	}
}

// Execute runs one decoded instruction at the current PC and advances PC.
func (e *Emulator) Execute(inst insts.Instruction) StepResult {
	switch inst.Op {
	case insts.OpADD, insts.OpSUB, insts.OpXOR, insts.OpOR, insts.OpAND,
		insts.OpSLL, insts.OpSRL, insts.OpSRA, insts.OpSLT, insts.OpSLTU:
		e.executeALU(inst.Op, inst.Rd, inst.Rs1, e.regFile.ReadReg(inst.Rs2))
	case insts.OpADDI, insts.OpXORI, insts.OpORI, insts.OpANDI,
		insts.OpSLLI, insts.OpSRLI, insts.OpSRAI, insts.OpSLTI, insts.OpSLTIU:
		e.executeALU(inst.Op, inst.Rd, inst.Rs1, inst.Imm64())
	case insts.OpLB, insts.OpLH, insts.OpLW, insts.OpLBU, insts.OpLHU:
		e.executeLoad(inst)
	case insts.OpSB, insts.OpSH, insts.OpSW:
		e.executeStore(inst)
	case insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGE, insts.OpBLTU, insts.OpBGEU:
		if e.branchUnit.CheckCondition(inst.Op, inst.Rs1, inst.Rs2) {
			e.branchUnit.Branch(inst.Imm64())
			return StepResult{} // PC already updated by branch
		}
	case insts.OpJAL:
		e.branchUnit.JAL(inst.Rd, inst.Imm64())
		return StepResult{}
	case insts.OpJALR:
		e.branchUnit.JALR(inst.Rd, inst.Rs1, inst.Imm64())
		return StepResult{}
	case insts.OpLUI:
		e.regFile.WriteReg(inst.Rd, inst.Imm64())
	case insts.OpAUIPC:
		e.regFile.WriteReg(inst.Rd, e.regFile.PC+inst.Imm64())
	case insts.OpECALL:
		return e.executeECALL()
	case insts.OpEBREAK:
		return StepResult{
			Exited:   true,
			ExitCode: int64(e.regFile.ReadReg(RegA0)),
		}
	default:
		return e.executeIllegal(inst)
	}

	e.regFile.PC += InstructionSize

	return StepResult{}
}

// executeALU dispatches register-register and register-immediate ALU
// operations; op2 is rs2 or the immediate.
func (e *Emulator) executeALU(op insts.Op, rd, rs1 uint8, op2 uint64) {
	switch op {
	case insts.OpADD, insts.OpADDI:
		e.alu.ADD(rd, rs1, op2)
	case insts.OpSUB:
		e.alu.SUB(rd, rs1, op2)
	case insts.OpXOR, insts.OpXORI:
		e.alu.XOR(rd, rs1, op2)
	case insts.OpOR, insts.OpORI:
		e.alu.OR(rd, rs1, op2)
	case insts.OpAND, insts.OpANDI:
		e.alu.AND(rd, rs1, op2)
	case insts.OpSLL, insts.OpSLLI:
		e.alu.SLL(rd, rs1, op2)
	case insts.OpSRL, insts.OpSRLI:
		e.alu.SRL(rd, rs1, op2)
	case insts.OpSRA, insts.OpSRAI:
		e.alu.SRA(rd, rs1, op2)
	case insts.OpSLT, insts.OpSLTI:
		e.alu.SLT(rd, rs1, op2)
	case insts.OpSLTU, insts.OpSLTIU:
		e.alu.SLTU(rd, rs1, op2)
	}
}

// executeLoad executes LB, LH, LW, LBU and LHU at rs1 + imm.
func (e *Emulator) executeLoad(inst insts.Instruction) {
	addr := e.regFile.ReadReg(inst.Rs1) + inst.Imm64()

	switch inst.Op {
	case insts.OpLB:
		e.notifyAccess(addr, 1, false)
		e.lsu.LB(inst.Rd, addr)
	case insts.OpLH:
		e.notifyAccess(addr, 2, false)
		e.lsu.LH(inst.Rd, addr)
	case insts.OpLW:
		e.notifyAccess(addr, 4, false)
		e.lsu.LW(inst.Rd, addr)
	case insts.OpLBU:
		e.notifyAccess(addr, 1, false)
		e.lsu.LBU(inst.Rd, addr)
	case insts.OpLHU:
		e.notifyAccess(addr, 2, false)
		e.lsu.LHU(inst.Rd, addr)
	}
}

// executeStore executes SB, SH and SW at rs1 + imm.
func (e *Emulator) executeStore(inst insts.Instruction) {
	addr := e.regFile.ReadReg(inst.Rs1) + inst.Imm64()

	switch inst.Op {
	case insts.OpSB:
		e.notifyAccess(addr, 1, true)
		e.lsu.SB(inst.Rs2, addr)
	case insts.OpSH:
		e.notifyAccess(addr, 2, true)
		e.lsu.SH(inst.Rs2, addr)
	case insts.OpSW:
		e.notifyAccess(addr, 4, true)
		e.lsu.SW(inst.Rs2, addr)
	}
}

func (e *Emulator) notifyAccess(addr uint64, size int, isWrite bool) {
	if e.observer != nil {
		e.observer.OnMemoryAccess(addr, size, isWrite)
	}
}

// executeECALL handles the environment call instruction.
func (e *Emulator) executeECALL() StepResult {
	// Advance PC first (syscall return address is next instruction)
	e.regFile.PC += InstructionSize

	syscallResult := e.syscallHandler.Handle()

	return StepResult{
		Exited:   syscallResult.Exited,
		ExitCode: syscallResult.ExitCode,
	}
}

// executeIllegal faults in strict mode and leaves PC on the offending
// instruction. Otherwise the instruction is skipped.
func (e *Emulator) executeIllegal(inst insts.Instruction) StepResult {
	if e.strict {
		return StepResult{
			Err: &IllegalInstructionError{PC: e.regFile.PC, Word: inst.Word},
		}
	}

	if e.logger != nil {
		e.logger.Warn("Skipping illegal instruction",
			log.Hex("pc", e.regFile.PC),
			log.Hex("word", inst.Word))
	}
	e.regFile.PC += InstructionSize

	return StepResult{}
}
