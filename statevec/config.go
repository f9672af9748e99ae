package statevec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TierSpec describes one storage tier, fastest first.
type TierSpec struct {
	Kind           string `yaml:"kind"`                      // memory | mapped | remote
	Path           string `yaml:"path,omitempty"`            // mapped: slot file path
	CapacityBlocks int64  `yaml:"capacity_blocks,omitempty"` // -1 or 0 = unlimited / all slots
	Endpoint       string `yaml:"endpoint,omitempty"`        // remote
	AccessKey      string `yaml:"access_key,omitempty"`
	SecretKey      string `yaml:"secret_key,omitempty"`
	Bucket         string `yaml:"bucket,omitempty"`
	Prefix         string `yaml:"prefix,omitempty"`
	UseSSL         bool   `yaml:"use_ssl,omitempty"`
}

// Config holds store parameters.
type Config struct {
	QubitCount         uint32     `yaml:"qubit_count"`
	BlockBits          uint32     `yaml:"block_bits"`           // log2 amplitudes per block
	BudgetBytes        int64      `yaml:"budget_bytes"`         // RAM budget for resident blocks
	MaxGateQubits      uint32     `yaml:"max_gate_qubits"`      // largest gate arity registered, default 3
	Tiers              []TierSpec `yaml:"tiers"`                // fastest first
	CheckpointDir      string     `yaml:"checkpoint_dir"`       // empty = checkpointing disabled
	CheckpointInterval uint64     `yaml:"checkpoint_interval"`  // gates between automatic checkpoints, 0 = manual only
	NormTolerance      float64    `yaml:"norm_tolerance"`       // default 1e-6
	DisableNormCheck   bool       `yaml:"disable_norm_check"`   // skip the post-gate norm pass
	RetryAttempts      uint64     `yaml:"retry_attempts"`       // tier IO retries, default 4
}

// OrDefault returns a normalized copy of c (or defaults if c is nil).
func (c *Config) OrDefault() *Config {
	out := Config{MaxGateQubits: 3, NormTolerance: 1e-6, RetryAttempts: 4}
	if c != nil {
		out = *c
	}
	if out.MaxGateQubits == 0 {
		out.MaxGateQubits = 3
	}
	if out.NormTolerance <= 0 {
		out.NormTolerance = 1e-6
	}
	if out.RetryAttempts == 0 {
		out.RetryAttempts = 4
	}
	return &out
}

// BlockBytes returns the in-memory byte size of one block's amplitudes.
func (c *Config) BlockBytes() int64 {
	return 16 << c.BlockBits
}

// BudgetBlocks returns the resident block budget derived from BudgetBytes.
func (c *Config) BudgetBlocks() int {
	return int(c.BudgetBytes / c.BlockBytes())
}

// TotalBlocks returns the number of blocks partitioning the index space.
func (c *Config) TotalBlocks() uint64 {
	return uint64(1) << (c.QubitCount - c.BlockBits)
}

// Validate rejects impossible geometry and budgets. The budget must hold the
// worst-case concurrent block group of the largest registered gate: a k-qubit
// gate with all targets above BlockBits needs 2^k blocks jointly resident.
func (c *Config) Validate() error {
	if c.QubitCount == 0 || c.QubitCount > 48 {
		return fmt.Errorf("statevec: qubit_count %d out of range [1,48]", c.QubitCount)
	}
	if c.BlockBits > c.QubitCount {
		return fmt.Errorf("statevec: block_bits %d exceeds qubit_count %d", c.BlockBits, c.QubitCount)
	}
	budget := c.BudgetBlocks()
	if budget < 1 {
		return fmt.Errorf("%w: budget %d bytes holds no %d-byte block", ErrBudgetTooSmall, c.BudgetBytes, c.BlockBytes())
	}
	crossBits := c.MaxGateQubits
	if avail := c.QubitCount - c.BlockBits; crossBits > avail {
		crossBits = avail
	}
	if need := 1 << crossBits; budget < need {
		return fmt.Errorf("%w: budget %d blocks, a %d-qubit gate may need %d jointly resident",
			ErrBudgetTooSmall, budget, c.MaxGateQubits, need)
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("statevec: at least one tier required")
	}
	return nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("statevec: parse config %s: %w", path, err)
	}
	return cfg.OrDefault(), nil
}
