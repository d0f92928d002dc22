package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitLatency in cycles
	HitLatency uint64
	// MissLatency in cycles (includes memory access time)
	MissLatency uint64
}

// DefaultL1IConfig returns the default L1 instruction cache: 16KB,
// 4-way, 64B lines.
func DefaultL1IConfig() Config {
	return Config{
		Size:          16 * 1024,
		Associativity: 4,
		BlockSize:     64,
		HitLatency:    1,
		MissLatency:   40,
	}
}

// DefaultL1DConfig returns the default L1 data cache: 32KB, 8-way, 64B
// lines.
func DefaultL1DConfig() Config {
	return Config{
		Size:          32 * 1024,
		Associativity: 8,
		BlockSize:     64,
		HitLatency:    2,
		MissLatency:   40,
	}
}

// AccessResult describes one cache access.
type AccessResult struct {
	Hit     bool
	Latency uint64
	// Data is the loaded value. Writes leave it zero.
	Data uint64
	// Evicted reports that the fill replaced a valid line, whose
	// block address is EvictedAddr.
	Evicted     bool
	EvictedAddr uint64
}

// StoreForwardLatency is the extra latency (in cycles) when a load reads
// the address written by the immediately preceding store.
const StoreForwardLatency uint64 = 1

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// BackingStore is the next level of the memory hierarchy.
type BackingStore interface {
	Read(addr uint64, size int) []byte
	Write(addr uint64, data []byte)
}

// Cache is a write-back, write-allocate set-associative cache. Tags and
// LRU state live in an Akita directory; line contents live in lines,
// indexed by set and way.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	lines     [][]byte
	backing   BackingStore
	stats     Statistics

	// last store, for store-to-load forwarding
	lastStore      uint64
	lastStoreValid bool
}

// New creates a cache. A nil backing fills lines with zeros and drops
// write-backs.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)

	lines := make([][]byte, numSets*config.Associativity)
	for i := range lines {
		lines[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		lines:   lines,
		backing: backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics and keeps the cached lines.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// Read loads size bytes at addr.
func (c *Cache) Read(addr uint64, size int) AccessResult {
	c.stats.Reads++

	block, result := c.access(addr)
	result.Data = extractData(c.line(block), c.offset(addr), size)

	if result.Hit && c.lastStoreValid && c.lastStore == addr {
		result.Latency += StoreForwardLatency
		c.lastStoreValid = false
	}

	return result
}

// Write stores the low size bytes of data at addr, allocating the line on
// a miss.
func (c *Cache) Write(addr uint64, size int, data uint64) AccessResult {
	c.stats.Writes++
	c.lastStore = addr
	c.lastStoreValid = true

	block, result := c.access(addr)
	storeData(c.line(block), c.offset(addr), size, data)
	block.IsDirty = true

	return result
}

// access finds or fills the line holding addr and charges hit or miss
// latency.
func (c *Cache) access(addr uint64) (*akitacache.Block, AccessResult) {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return block, AccessResult{Hit: true, Latency: c.config.HitLatency}
	}

	c.stats.Misses++
	result := AccessResult{Latency: c.config.MissLatency}
	block = c.fill(c.blockAddr(addr), &result)
	return block, result
}

// fill replaces the LRU line of addr's set with the block at blockAddr.
func (c *Cache) fill(blockAddr uint64, result *AccessResult) *akitacache.Block {
	victim := c.directory.FindVictim(blockAddr)
	data := c.line(victim)

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag
		c.writeBack(victim)
	}

	if c.backing != nil {
		copy(data, c.backing.Read(blockAddr, c.config.BlockSize))
	} else {
		clear(data)
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return victim
}

func (c *Cache) writeBack(block *akitacache.Block) {
	if !block.IsDirty || c.backing == nil {
		return
	}
	c.stats.Writebacks++
	c.backing.Write(block.Tag, c.line(block))
}

// Invalidate drops the line holding addr without writing it back.
func (c *Cache) Invalidate(addr uint64) {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush writes back every dirty line and invalidates the whole cache.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				c.writeBack(block)
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
	c.lastStoreValid = false
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return addr - addr%uint64(c.config.BlockSize)
}

func (c *Cache) offset(addr uint64) uint64 {
	return addr % uint64(c.config.BlockSize)
}

func (c *Cache) line(block *akitacache.Block) []byte {
	return c.lines[block.SetID*c.config.Associativity+block.WayID]
}

// extractData reads a little-endian value of size bytes from data.
func extractData(data []byte, offset uint64, size int) uint64 {
	if int(offset)+size > len(data) {
		return 0
	}

	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

// storeData writes the low size bytes of value into data, little-endian.
func storeData(data []byte, offset uint64, size int, value uint64) {
	if int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
