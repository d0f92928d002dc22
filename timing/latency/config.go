package latency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// TimingConfig holds latency values for different instruction classes and
// the sizing of the structures the timing core models.
type TimingConfig struct {
	// ALULatency is the execution latency for register and immediate ALU
	// operations, LUI and AUIPC. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency" yaml:"alu_latency"`

	// BranchLatency is the base latency of a conditional branch, excluding
	// any misprediction penalty. Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency" yaml:"branch_latency"`

	// JumpLatency is the base latency of JAL and JALR. Default: 1 cycle.
	JumpLatency uint64 `json:"jump_latency" yaml:"jump_latency"`

	// BranchMispredictPenalty is the additional cycles lost when the front
	// end fetched down the wrong path. Default: 3 cycles (5-stage in-order).
	BranchMispredictPenalty uint64 `json:"branch_mispredict_penalty" yaml:"branch_mispredict_penalty"`

	// LoadLatency is the load-to-use latency assuming an L1 hit.
	// Default: 2 cycles.
	LoadLatency uint64 `json:"load_latency" yaml:"load_latency"`

	// StoreLatency is the latency of a store. Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency" yaml:"store_latency"`

	// SyscallLatency is the latency of ECALL and EBREAK.
	// Default: 1 cycle (handling is external).
	SyscallLatency uint64 `json:"syscall_latency" yaml:"syscall_latency"`

	// L1IHitLatency is the instruction cache hit latency. Default: 1 cycle.
	L1IHitLatency uint64 `json:"l1i_hit_latency" yaml:"l1i_hit_latency"`

	// L1DHitLatency is the data cache hit latency. Default: 2 cycles.
	L1DHitLatency uint64 `json:"l1d_hit_latency" yaml:"l1d_hit_latency"`

	// MemoryLatency is the cost of an L1 miss. Default: 40 cycles.
	MemoryLatency uint64 `json:"memory_latency" yaml:"memory_latency"`

	// BHTSize is the number of branch history table entries.
	// Must be a power of 2. Default: 512.
	BHTSize uint32 `json:"bht_size" yaml:"bht_size"`

	// BTBSize is the number of branch target buffer entries.
	// Must be a power of 2. Default: 64.
	BTBSize uint32 `json:"btb_size" yaml:"btb_size"`
}

// DefaultTimingConfig returns a TimingConfig modeling a classic 5-stage
// in-order RV64I core.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:              1,
		BranchLatency:           1,
		JumpLatency:             1,
		BranchMispredictPenalty: 3,
		LoadLatency:             2,
		StoreLatency:            1,
		SyscallLatency:          1,
		L1IHitLatency:           1,
		L1DHitLatency:           2,
		MemoryLatency:           40,
		BHTSize:                 512,
		BTBSize:                 64,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadConfig loads a TimingConfig from a JSON or YAML file, chosen by
// extension. Fields absent from the file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON or YAML file, chosen by
// extension.
func (c *TimingConfig) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

// Validate checks that all latency values are > 0 and table sizes are
// powers of two.
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.BranchLatency == 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.JumpLatency == 0 {
		return fmt.Errorf("jump_latency must be > 0")
	}
	if c.LoadLatency == 0 {
		return fmt.Errorf("load_latency must be > 0")
	}
	if c.StoreLatency == 0 {
		return fmt.Errorf("store_latency must be > 0")
	}
	if c.SyscallLatency == 0 {
		return fmt.Errorf("syscall_latency must be > 0")
	}
	if c.L1IHitLatency == 0 || c.L1DHitLatency == 0 {
		return fmt.Errorf("cache hit latencies must be > 0")
	}
	if c.MemoryLatency < c.L1IHitLatency || c.MemoryLatency < c.L1DHitLatency {
		return fmt.Errorf("memory_latency must be >= the cache hit latencies")
	}
	if !isPowerOfTwo(c.BHTSize) {
		return fmt.Errorf("bht_size must be a power of 2, got %d", c.BHTSize)
	}
	if !isPowerOfTwo(c.BTBSize) {
		return fmt.Errorf("btb_size must be a power of 2, got %d", c.BTBSize)
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
