package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hqsim/hqsim/bench/gen"
	"github.com/hqsim/hqsim/bench/metrics"
	"github.com/hqsim/hqsim/statevec"
	"github.com/hqsim/hqsim/statevec/storage"
)

// Stage A sweeps block size at fixed qubit count and budget, memory tier
// only, to find the gate-latency sweet spot.
func runStageA() {
	const qubits = 16
	const gateCount = 64
	bitsList := []uint32{8, 10, 12, 14}

	ctx := context.Background()
	circuit := gen.RandomCircuit(gateCount, qubits, 42)

	var rows []metrics.Row
	for _, bits := range bitsList {
		fmt.Printf("stage A: qubits=%d blockBits=%d\n", qubits, bits)
		metrics.GC()

		cfg := (&statevec.Config{
			QubitCount:       qubits,
			BlockBits:        bits,
			BudgetBytes:      int64(8) << (bits + 4),
			Tiers:            []statevec.TierSpec{{Kind: "memory"}},
			DisableNormCheck: true,
		}).OrDefault()
		st, err := statevec.New(ctx, cfg, []storage.Tier{storage.NewMemoryTier(-1)})
		if err != nil {
			panic(err)
		}

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
			BudgetBlocks: cfg.BudgetBlocks(),
			TierKind:     "memory",
			Gates:        len(circuit),
			GateP50Ms:    stats.P50Ms,
			GateP99Ms:    stats.P99Ms,
			HeapAllocMB:  float64(after.HeapAlloc) / 1024 / 1024,
		})
		fmt.Printf("  GateP50=%.2fms P99=%.2fms Heap=%.1fMB\n", stats.P50Ms, stats.P99Ms, rows[len(rows)-1].HeapAllocMB)
	}

	path := metrics.ReportPath("bench_report_stage_a_")
	if err := metrics.WriteCSV(rows, path); err != nil {
		panic(err)
	}
	fmt.Printf("report written to %s\n", path)
}
