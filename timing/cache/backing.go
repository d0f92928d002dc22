// Package cache models set-associative caches on top of the Akita cache
// directory.
package cache

import (
	"github.com/sarchlab/rvsim/emu"
)

// MemoryBacking wraps emu.Memory as a BackingStore.
type MemoryBacking struct {
	memory *emu.Memory
}

// NewMemoryBacking creates a new MemoryBacking adapter.
func NewMemoryBacking(memory *emu.Memory) *MemoryBacking {
	return &MemoryBacking{memory: memory}
}

// Read fetches data from the backing memory.
func (m *MemoryBacking) Read(addr uint64, size int) []byte {
	return m.memory.ReadBytes(addr, size)
}

// Write stores data to the backing memory.
func (m *MemoryBacking) Write(addr uint64, data []byte) {
	m.memory.LoadProgram(addr, data)
}

// ShadowBacking reads from emu.Memory but discards writebacks. Timing
// caches that run beside the functional emulator use it so that stale
// lines never overwrite architectural state.
type ShadowBacking struct {
	memory *emu.Memory
	// Discarded counts writebacks that were dropped.
	Discarded uint64
}

// NewShadowBacking creates a ShadowBacking over memory.
func NewShadowBacking(memory *emu.Memory) *ShadowBacking {
	return &ShadowBacking{memory: memory}
}

// Read fetches data from the backing memory.
func (s *ShadowBacking) Read(addr uint64, size int) []byte {
	return s.memory.ReadBytes(addr, size)
}

// Write drops the data.
func (s *ShadowBacking) Write(uint64, []byte) {
	s.Discarded++
}
