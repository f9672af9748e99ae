package statevec

import (
	"context"
	"fmt"

	"github.com/hqsim/hqsim/statevec/storage"
)

// OpenTiers opens the tier hierarchy cfg describes, fastest first. On error
// every tier opened so far is closed.
func OpenTiers(ctx context.Context, cfg *Config) ([]storage.Tier, error) {
	tiers := make([]storage.Tier, 0, len(cfg.Tiers))
	for i, spec := range cfg.Tiers {
		t, err := openTier(ctx, cfg, spec)
		if err != nil {
			closeTiers(tiers)
			return nil, fmt.Errorf("statevec: open tier %d (%s): %w", i, spec.Kind, err)
		}
		tiers = append(tiers, t)
	}
	return tiers, nil
}

func openTier(ctx context.Context, cfg *Config, spec TierSpec) (storage.Tier, error) {
	switch storage.Kind(spec.Kind) {
	case storage.KindMemory:
		return storage.NewMemoryTier(spec.CapacityBlocks), nil
	case storage.KindMapped:
		if spec.Path == "" {
			return nil, fmt.Errorf("mapped tier requires a path")
		}
		return storage.OpenMapped(spec.Path, cfg.QubitCount, cfg.BlockBits, spec.CapacityBlocks)
	case storage.KindRemote:
		return storage.OpenRemote(ctx, storage.RemoteConfig{
			Endpoint:  spec.Endpoint,
			AccessKey: spec.AccessKey,
			SecretKey: spec.SecretKey,
			Bucket:    spec.Bucket,
			Prefix:    spec.Prefix,
			UseSSL:    spec.UseSSL,
		})
	}
	return nil, fmt.Errorf("unknown tier kind %q", spec.Kind)
}

func closeTiers(tiers []storage.Tier) {
	for _, t := range tiers {
		_ = t.Close()
	}
}
