package statevec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// BlockLocation records which tier holds a materialized block.
type BlockLocation struct {
	Index uint64 `yaml:"index"`
	Tier  int    `yaml:"tier"`
}

// manifest is the committed checkpoint record. It is only written after
// every dirty block of the round has finished flushing (write-ahead
// ordering: flush data, then commit metadata), via temp file + atomic rename
// so a reader never observes a partial manifest.
type manifest struct {
	Epoch      uint64          `yaml:"epoch"`
	QubitCount uint32          `yaml:"qubit_count"`
	BlockBits  uint32          `yaml:"block_bits"`
	Tiers      []TierSpec      `yaml:"tiers"`
	Blocks     []BlockLocation `yaml:"blocks"`
	Committed  bool            `yaml:"committed"`
}

// CheckpointState is the manager's phase: Idle → Flushing → Committing → Idle.
type CheckpointState int

const (
	CheckpointIdle CheckpointState = iota
	CheckpointFlushing
	CheckpointCommitting
)

func (st CheckpointState) String() string {
	switch st {
	case CheckpointFlushing:
		return "flushing"
	case CheckpointCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// CheckpointManager persists enough metadata to resume an interrupted
// simulation from the last consistent point. It observes the BlockManager's
// dirty set; with write-through in effect the flush phase is usually a no-op.
type CheckpointManager struct {
	store *Store
	dir   string
	epoch uint64
	state CheckpointState
}

// NewCheckpointManager attaches a checkpoint manager writing manifests
// under dir.
func NewCheckpointManager(s *Store, dir string) *CheckpointManager {
	return &CheckpointManager{store: s, dir: dir}
}

// Epoch returns the epoch of the last committed checkpoint.
func (c *CheckpointManager) Epoch() uint64 { return c.epoch }

// State returns the current phase.
func (c *CheckpointManager) State() CheckpointState { return c.state }

func manifestName(epoch uint64) string {
	return fmt.Sprintf("checkpoint-%08d.yaml", epoch)
}

// Checkpoint drains the dirty set, then commits a new manifest. Valid only
// from Idle.
func (c *CheckpointManager) Checkpoint(ctx context.Context) error {
	if c.state != CheckpointIdle {
		return fmt.Errorf("statevec: checkpoint requested while %s", c.state)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	c.state = CheckpointFlushing
	defer func() { c.state = CheckpointIdle }()
	if err := c.store.mgr.FlushAll(ctx); err != nil {
		return fmt.Errorf("statevec: checkpoint flush: %w", err)
	}

	c.state = CheckpointCommitting
	man := manifest{
		Epoch:      c.epoch + 1,
		QubitCount: c.store.cfg.QubitCount,
		BlockBits:  c.store.cfg.BlockBits,
		Tiers:      c.store.cfg.Tiers,
		Blocks:     c.store.mgr.BlockTable(),
		Committed:  true,
	}
	data, err := yaml.Marshal(&man)
	if err != nil {
		return err
	}
	path := filepath.Join(c.dir, manifestName(man.Epoch))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	c.epoch = man.Epoch
	logrus.Infof("statevec: checkpoint epoch %d committed (%d blocks)", c.epoch, len(man.Blocks))
	return nil
}

// CheckpointOnShutdown attempts one best-effort checkpoint within deadline.
// If the deadline is exceeded the prior checkpoint remains the recovery
// point; no partially committed manifest is ever left behind.
func (c *CheckpointManager) CheckpointOnShutdown(deadline time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()
	if err := c.Checkpoint(ctx); err != nil {
		logrus.Warnf("statevec: shutdown checkpoint not committed, resuming from epoch %d: %v", c.epoch, err)
		return err
	}
	return nil
}

// Resume reconstructs a store from the newest committed checkpoint under
// dir, opening the tier hierarchy the manifest records and validating that
// every block-table entry is readable in its tier. A manifest that fails
// validation falls back to the next-older committed one; if none passes,
// ErrCorruptCheckpoint.
//
// base supplies the non-geometry configuration (budget, tolerances, retry
// policy); geometry and tier layout always come from the manifest.
func Resume(ctx context.Context, dir string, base *Config) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "checkpoint-") && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for _, name := range names {
		s, err := resumeFrom(ctx, filepath.Join(dir, name), dir, base)
		if err != nil {
			logrus.Warnf("statevec: checkpoint %s unusable, trying older: %v", name, err)
			continue
		}
		return s, nil
	}
	return nil, ErrCorruptCheckpoint
}

func resumeFrom(ctx context.Context, path, dir string, base *Config) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var man manifest
	if err := yaml.Unmarshal(data, &man); err != nil {
		return nil, err
	}
	if !man.Committed {
		return nil, fmt.Errorf("manifest not committed")
	}

	cfg := base.OrDefault()
	cfg.QubitCount = man.QubitCount
	cfg.BlockBits = man.BlockBits
	cfg.Tiers = man.Tiers
	cfg.CheckpointDir = dir
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tiers, err := OpenTiers(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mgr, err := NewBlockManager(cfg, tiers)
	if err != nil {
		closeTiers(tiers)
		return nil, err
	}
	if err := mgr.restoreTable(man.Blocks); err != nil {
		closeTiers(tiers)
		return nil, err
	}
	for _, loc := range man.Blocks {
		ok, err := tiers[loc.Tier].Contains(ctx, loc.Index)
		if err != nil {
			closeTiers(tiers)
			return nil, err
		}
		if !ok {
			closeTiers(tiers)
			return nil, fmt.Errorf("block %d missing from tier %d", loc.Index, loc.Tier)
		}
	}
	// Blocks first flushed after the manifest committed are readable in their
	// tiers but absent from the table; pick them up so no amplitude mass is
	// dropped.
	if err := mgr.reconcileTiers(ctx); err != nil {
		closeTiers(tiers)
		return nil, err
	}

	s := &Store{cfg: cfg, mgr: mgr}
	s.ckpt = NewCheckpointManager(s, dir)
	s.ckpt.epoch = man.Epoch
	logrus.Infof("statevec: resumed from checkpoint epoch %d (%d blocks)", man.Epoch, len(man.Blocks))
	return s, nil
}
