// Package emu provides functional RV64I emulation.
package emu

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Storage is the byte-level backing store behind Memory. Addresses that were
// never written read as zero.
type Storage interface {
	// Read8 returns the byte at addr, or 0 if it was never written.
	Read8(addr uint64) byte
	// Write8 stores a byte at addr.
	Write8(addr uint64, value byte)
	// Addresses returns every written address in ascending order.
	Addresses() []uint64
	// Clear drops all contents.
	Clear()
}

// SparseStorage keeps one map entry per written byte.
type SparseStorage struct {
	bytes map[uint64]byte
}

// NewSparseStorage creates an empty SparseStorage.
func NewSparseStorage() *SparseStorage {
	return &SparseStorage{bytes: make(map[uint64]byte)}
}

// Read8 returns the byte at addr.
func (s *SparseStorage) Read8(addr uint64) byte {
	return s.bytes[addr]
}

// Write8 stores a byte at addr.
func (s *SparseStorage) Write8(addr uint64, value byte) {
	s.bytes[addr] = value
}

// Addresses returns every written address in ascending order.
func (s *SparseStorage) Addresses() []uint64 {
	addrs := maps.Keys(s.bytes)
	slices.Sort(addrs)
	return addrs
}

// Clear drops all contents.
func (s *SparseStorage) Clear() {
	s.bytes = make(map[uint64]byte)
}

// PageSize is the allocation granule of PagedStorage.
const PageSize = 4096

type page struct {
	data    [PageSize]byte
	written [PageSize / 64]uint64
}

// PagedStorage allocates 4 KiB pages on first write. It is faster than
// SparseStorage for dense images such as boot sectors.
type PagedStorage struct {
	pages map[uint64]*page
}

// NewPagedStorage creates an empty PagedStorage.
func NewPagedStorage() *PagedStorage {
	return &PagedStorage{pages: make(map[uint64]*page)}
}

// Read8 returns the byte at addr.
func (p *PagedStorage) Read8(addr uint64) byte {
	pg := p.pages[addr/PageSize]
	if pg == nil {
		return 0
	}
	return pg.data[addr%PageSize]
}

// Write8 stores a byte at addr.
func (p *PagedStorage) Write8(addr uint64, value byte) {
	pageNum := addr / PageSize
	pg := p.pages[pageNum]
	if pg == nil {
		pg = &page{}
		p.pages[pageNum] = pg
	}

	offset := addr % PageSize
	pg.data[offset] = value
	pg.written[offset/64] |= 1 << (offset % 64)
}

// Addresses returns every written address in ascending order.
func (p *PagedStorage) Addresses() []uint64 {
	pageNums := maps.Keys(p.pages)
	slices.Sort(pageNums)

	var addrs []uint64
	for _, pageNum := range pageNums {
		pg := p.pages[pageNum]
		for offset := uint64(0); offset < PageSize; offset++ {
			if pg.written[offset/64]&(1<<(offset%64)) != 0 {
				addrs = append(addrs, pageNum*PageSize+offset)
			}
		}
	}
	return addrs
}

// Clear drops all contents.
func (p *PagedStorage) Clear() {
	p.pages = make(map[uint64]*page)
}

// Memory is the emulator's byte-addressable address space. Multi-byte
// accesses are little-endian and touch every byte at its own address.
type Memory struct {
	storage Storage
}

// NewMemory creates a Memory backed by SparseStorage.
func NewMemory() *Memory {
	return NewMemoryWithStorage(NewSparseStorage())
}

// NewMemoryWithStorage creates a Memory over the given storage.
func NewMemoryWithStorage(storage Storage) *Memory {
	return &Memory{storage: storage}
}

// Storage returns the backing storage.
func (m *Memory) Storage() Storage {
	return m.storage
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint64) uint8 {
	return m.storage.Read8(addr)
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint64, value uint8) {
	m.storage.Write8(addr, value)
}

// Read16 reads a little-endian halfword.
func (m *Memory) Read16(addr uint64) uint16 {
	return uint16(m.readN(addr, 2))
}

// Write16 writes a little-endian halfword.
func (m *Memory) Write16(addr uint64, value uint16) {
	m.writeN(addr, 2, uint64(value))
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint64) uint32 {
	return uint32(m.readN(addr, 4))
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint64, value uint32) {
	m.writeN(addr, 4, uint64(value))
}

// Read64 reads a little-endian doubleword.
func (m *Memory) Read64(addr uint64) uint64 {
	return m.readN(addr, 8)
}

// Write64 writes a little-endian doubleword.
func (m *Memory) Write64(addr uint64, value uint64) {
	m.writeN(addr, 8, value)
}

func (m *Memory) readN(addr uint64, n int) uint64 {
	var value uint64
	for i := 0; i < n; i++ {
		value |= uint64(m.storage.Read8(addr+uint64(i))) << (8 * i)
	}
	return value
}

func (m *Memory) writeN(addr uint64, n int, value uint64) {
	for i := 0; i < n; i++ {
		m.storage.Write8(addr+uint64(i), byte(value>>(8*i)))
	}
}

// LoadProgram copies data into memory starting at addr.
func (m *Memory) LoadProgram(addr uint64, data []byte) {
	for i, b := range data {
		m.storage.Write8(addr+uint64(i), b)
	}
}

// ReadBytes returns n bytes starting at addr.
func (m *Memory) ReadBytes(addr uint64, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = m.storage.Read8(addr + uint64(i))
	}
	return buf
}

// Addresses returns every written address in ascending order.
func (m *Memory) Addresses() []uint64 {
	return m.storage.Addresses()
}

// Clear drops all contents.
func (m *Memory) Clear() {
	m.storage.Clear()
}
