// Package loader produces ready-to-run programs for the emulator from El
// Torito boot images, RISC-V ELF executables and flat binaries.
package loader

import (
	"errors"
	"fmt"
	"os"

	"github.com/sarchlab/rvsim/emu"
)

var (
	// ErrInvalidInput reports malformed or truncated input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound reports that a required structure is absent.
	ErrNotFound = errors.New("not found")
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// SegmentFlagAll marks flat images, which carry no protection information.
const SegmentFlagAll = SegmentFlagExecute | SegmentFlagWrite | SegmentFlagRead

// Segment represents a contiguous range of the initial memory image.
type Segment struct {
	// VirtAddr is the address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program is a memory image plus the register state needed to start it.
type Program struct {
	// EntryPoint is the address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments.
	Segments []Segment
	// InitialSP is the initial stack pointer value, or 0 when the image
	// sets up its own stack.
	InitialSP uint64
}

// LoadInto writes every segment into mem. Bytes between the end of a
// segment's data and its MemSize are zeroed.
func (p *Program) LoadInto(mem *emu.Memory) {
	for _, seg := range p.Segments {
		mem.LoadProgram(seg.VirtAddr, seg.Data)
		for off := uint64(len(seg.Data)); off < seg.MemSize; off++ {
			mem.Write8(seg.VirtAddr+off, 0)
		}
	}
}

// Size returns the total in-memory size of all segments.
func (p *Program) Size() uint64 {
	var total uint64
	for _, seg := range p.Segments {
		total += seg.MemSize
	}
	return total
}

// newFlatProgram wraps a raw byte buffer as a single segment entered at its
// first byte.
func newFlatProgram(data []byte, loadAddr uint64) *Program {
	return &Program{
		EntryPoint: loadAddr,
		Segments: []Segment{{
			VirtAddr: loadAddr,
			Data:     data,
			MemSize:  uint64(len(data)),
			Flags:    SegmentFlagAll,
		}},
	}
}

// LoadRaw reads a flat binary and places it at loadAddr.
func LoadRaw(path string, loadAddr uint64) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("raw image %s is empty: %w", path, ErrInvalidInput)
	}

	return newFlatProgram(data, loadAddr), nil
}
