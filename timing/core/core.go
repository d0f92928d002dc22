// Package core provides a cycle-approximate timing model of an in-order
// RV64I core. It runs beside the functional emulator as an emu.Observer:
// the emulator decides what executes, the core decides how long it takes.
package core

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/latency"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// FetchStalls is the number of cycles lost to instruction cache misses.
	FetchStalls uint64
	// MemoryStalls is the number of cycles lost to data cache misses and
	// store forwarding.
	MemoryStalls uint64
	// ControlFlow is the number of retired branches and jumps.
	ControlFlow uint64
	// Mispredictions is the number of control-flow instructions that paid
	// the misprediction penalty.
	Mispredictions uint64

	ICache    cache.Statistics
	DCache    cache.Statistics
	Predictor BranchPredictorStats
}

// CPI returns cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core accumulates cycles for the instruction stream reported by an
// emulator.
type Core struct {
	config    *latency.TimingConfig
	table     *latency.Table
	icache    *cache.Cache
	dcache    *cache.Cache
	predictor *BranchPredictor

	// stall cycles observed since the last retirement
	pending uint64

	stats Stats
}

var _ emu.Observer = (*Core)(nil)

// NewCore creates a Core whose caches fill from memory. A nil config
// selects latency.DefaultTimingConfig.
func NewCore(memory *emu.Memory, config *latency.TimingConfig) *Core {
	if config == nil {
		config = latency.DefaultTimingConfig()
	}

	l1i := cache.DefaultL1IConfig()
	l1i.HitLatency = config.L1IHitLatency
	l1i.MissLatency = config.MemoryLatency

	l1d := cache.DefaultL1DConfig()
	l1d.HitLatency = config.L1DHitLatency
	l1d.MissLatency = config.MemoryLatency

	backing := cache.NewShadowBacking(memory)

	return &Core{
		config:    config,
		table:     latency.NewTableWithConfig(config),
		icache:    cache.New(l1i, backing),
		dcache:    cache.New(l1d, backing),
		predictor: NewBranchPredictor(config.BHTSize, config.BTBSize),
	}
}

// OnFetch charges instruction cache misses.
func (c *Core) OnFetch(pc uint64, _ uint32) {
	result := c.icache.Read(pc, emu.InstructionSize)
	if stall := c.extra(result, c.icache); stall > 0 {
		c.pending += stall
		c.stats.FetchStalls += stall
	}
}

// OnMemoryAccess charges data cache misses and store forwarding. A store
// also drops the I-cache line it touches so that fetches after it see the
// new bytes.
func (c *Core) OnMemoryAccess(addr uint64, size int, isWrite bool) {
	var result cache.AccessResult
	if isWrite {
		result = c.dcache.Write(addr, size, 0)
		c.icache.Invalidate(addr)
	} else {
		result = c.dcache.Read(addr, size)
	}

	if stall := c.extra(result, c.dcache); stall > 0 {
		c.pending += stall
		c.stats.MemoryStalls += stall
	}
}

// OnRetire adds the instruction's latency, pending stalls and any
// misprediction penalty.
func (c *Core) OnRetire(pc uint64, inst insts.Instruction, nextPC uint64) {
	cycles := c.table.GetLatency(&inst) + c.pending
	c.pending = 0

	isJump := c.table.IsJumpOp(&inst)
	if isJump || c.table.IsBranchOp(&inst) {
		c.stats.ControlFlow++

		taken := isJump || nextPC != pc+emu.InstructionSize
		pred := c.predictor.Predict(pc)
		if !c.predictor.Update(pc, pred, taken, nextPC) {
			cycles += c.config.BranchMispredictPenalty
			c.stats.Mispredictions++
		}
	}

	c.stats.Cycles += cycles
	c.stats.Instructions++
}

// extra returns the cycles an access took beyond a plain hit.
func (c *Core) extra(result cache.AccessResult, l1 *cache.Cache) uint64 {
	hit := l1.Config().HitLatency
	if result.Latency <= hit {
		return 0
	}
	return result.Latency - hit
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	stats := c.stats
	stats.ICache = c.icache.Stats()
	stats.DCache = c.dcache.Stats()
	stats.Predictor = c.predictor.Stats()
	return stats
}

// Config returns the timing configuration in use.
func (c *Core) Config() *latency.TimingConfig {
	return c.config
}

// Reset empties both caches and the predictor and clears the statistics.
func (c *Core) Reset() {
	c.icache.Flush()
	c.dcache.Flush()
	c.icache.ResetStats()
	c.dcache.ResetStats()
	c.predictor.Reset()
	c.pending = 0
	c.stats = Stats{}
}
