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

// Stage C compares a pure memory tier against a mapped tier at identical
// geometry and budget, isolating the mmap + msync cost of write-through.
func runStageC() {
	const qubits = 14
	const bits = 8
	const budget = 8
	const gateCount = 32

	ctx := context.Background()
	circuit := gen.RandomCircuit(gateCount, qubits, 99)

	var rows []metrics.Row
	for _, kind := range []string{"memory", "mapped"} {
		fmt.Printf("stage C: tier=%s\n", kind)
		spec := statevec.TierSpec{Kind: kind}
		var dir string
		if kind == "mapped" {
			var err error
			if dir, err = os.MkdirTemp("", "hqsim-bench-"); err != nil {
				panic(err)
			}
			spec.Path = filepath.Join(dir, "blocks.hqsv")
		}

		cfg := (&statevec.Config{
			QubitCount:       qubits,
			BlockBits:        bits,
			BudgetBytes:      budget * (16 << bits),
			Tiers:            []statevec.TierSpec{spec},
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
			TierKind:     kind,
			Gates:        len(circuit),
			GateP50Ms:    stats.P50Ms,
			GateP99Ms:    stats.P99Ms,
			HeapAllocMB:  float64(after.HeapAlloc) / 1024 / 1024,
		})
		fmt.Printf("  GateP50=%.2fms P99=%.2fms\n", stats.P50Ms, stats.P99Ms)

		for _, t := range tiers {
			t.Close()
		}
		if dir != "" {
			os.RemoveAll(dir)
		}
	}

	path := metrics.ReportPath("bench_report_stage_c_")
	if err := metrics.WriteCSV(rows, path); err != nil {
		panic(err)
	}
	fmt.Printf("report written to %s\n", path)
}
