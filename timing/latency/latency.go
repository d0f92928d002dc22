// Package latency provides instruction timing models for cycle-approximate
// simulation.
//
// The latency values model a simple in-order RV64I core and can be
// configured via TimingConfig.
package latency

import (
	"github.com/sarchlab/rvsim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given instruction.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch {
	case t.IsLoadOp(inst):
		return t.config.LoadLatency
	case t.IsStoreOp(inst):
		return t.config.StoreLatency
	case t.IsBranchOp(inst):
		return t.config.BranchLatency
	case t.IsJumpOp(inst):
		return t.config.JumpLatency
	case inst.Op == insts.OpECALL || inst.Op == insts.OpEBREAK:
		return t.config.SyscallLatency
	case inst.Op == insts.OpIllegal:
		return 1
	default:
		return t.config.ALULatency
	}
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	return t.IsLoadOp(inst) || t.IsStoreOp(inst)
}

// IsLoadOp returns true if the instruction is a load operation.
func (t *Table) IsLoadOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Op {
	case insts.OpLB, insts.OpLH, insts.OpLW, insts.OpLBU, insts.OpLHU:
		return true
	default:
		return false
	}
}

// IsStoreOp returns true if the instruction is a store operation.
func (t *Table) IsStoreOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Op {
	case insts.OpSB, insts.OpSH, insts.OpSW:
		return true
	default:
		return false
	}
}

// IsBranchOp returns true if the instruction is a conditional branch.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Op {
	case insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGE, insts.OpBLTU, insts.OpBGEU:
		return true
	default:
		return false
	}
}

// IsJumpOp returns true for the unconditional jumps JAL and JALR.
func (t *Table) IsJumpOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Op == insts.OpJAL || inst.Op == insts.OpJALR
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
