package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hqsim/hqsim/bench/gen"
	"github.com/hqsim/hqsim/bench/metrics"
	"github.com/hqsim/hqsim/statevec"
)

// Stage B sweeps the resident budget at fixed geometry over a mapped tier,
// showing the capacity-for-latency trade as eviction pressure rises.
func runStageB() {
	const qubits = 16
	const bits = 10
	const gateCount = 32
	budgets := []int{4, 8, 16, 64}

	ctx := context.Background()
	circuit := gen.RandomCircuit(gateCount, qubits, 7)

	var rows []metrics.Row
	for _, budget := range budgets {
		fmt.Printf("stage B: budget=%d blocks\n", budget)
		dir, err := os.MkdirTemp("", "hqsim-bench-")
		if err != nil {
			panic(err)
		}

		cfg := (&statevec.Config{
			QubitCount:  qubits,
			BlockBits:   bits,
			BudgetBytes: int64(budget) * (16 << bits),
			Tiers: []statevec.TierSpec{
				{Kind: "mapped", Path: filepath.Join(dir, "blocks.hqsv")},
			},
			DisableNormCheck: true,
		}).OrDefault()
		tiers, err := statevec.OpenTiers(ctx, cfg)
		if err != nil {
			panic(err)
		}
		st, err := statevec.New(ctx, cfg, tiers)
		if err != nil {
			panic(err)
		}

		metrics.GC()
		durations := make([]time.Duration, len(circuit))
		for i, op := range circuit {
			t0 := time.Now()
			if err := st.ApplyGate(ctx, op.Gate, op.Targets...); err != nil {
				panic(err)
			}
			durations[i] = time.Since(t0)
		}
		stats := metrics.LatencyStatsFromDurations(durations)
		metrics.GC()
		after := metrics.Take()

		rows = append(rows, metrics.Row{
			QubitCount:   qubits,
			BlockBits:    bits,
			BudgetBlocks: budget,
			TierKind:     "mapped",
			Gates:        len(circuit),
			GateP50Ms:    stats.P50Ms,
			GateP99Ms:    stats.P99Ms,
			HeapAllocMB:  float64(after.HeapAlloc) / 1024 / 1024,
		})
		fmt.Printf("  GateP50=%.2fms P99=%.2fms Heap=%.1fMB resident=%d\n",
			stats.P50Ms, stats.P99Ms, rows[len(rows)-1].HeapAllocMB, st.Manager().ResidentCount())

		for _, t := range tiers {
			t.Close()
		}
		os.RemoveAll(dir)
	}

	path := metrics.ReportPath("bench_report_stage_b_")
	if err := metrics.WriteCSV(rows, path); err != nil {
		panic(err)
	}
	fmt.Printf("report written to %s\n", path)
}
