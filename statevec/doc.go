// Package statevec simulates a quantum state vector too large for RAM by
// partitioning the 2^n amplitude vector into fixed-size blocks spread across
// a storage tier hierarchy. Resident memory is bounded by a block budget
// independent of qubit count; gates are applied against the tiered
// representation with a minimal working set.
//
// Quick start:
//
//	cfg := &statevec.Config{
//		QubitCount:  20,
//		BlockBits:   14,
//		BudgetBytes: 8 << 20,
//		Tiers:       []statevec.TierSpec{{Kind: "memory"}},
//	}
//	tiers, _ := statevec.OpenTiers(ctx, cfg)
//	st, _ := statevec.New(ctx, cfg, tiers)
//	st.ApplyGate(ctx, statevec.H(), 0)
//	st.ApplyGate(ctx, statevec.CNOT(), 0, 1)
//	outcomes, _ := st.Measure(ctx, 0, 1)
package statevec
