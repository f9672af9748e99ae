// Package metrics provides runtime metric collection for the bench harness.
package metrics

import (
	"runtime"
	"runtime/debug"
	"sort"
	"time"
)

// Snapshot is a point-in-time runtime metric sample.
type Snapshot struct {
	TS           time.Time
	HeapAlloc    uint64
	HeapSys      uint64
	HeapReleased uint64
	NumGC        uint32
}

// Take samples the current runtime metrics.
func Take() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Snapshot{
		TS:           time.Now(),
		HeapAlloc:    m.HeapAlloc,
		HeapSys:      m.HeapSys,
		HeapReleased: m.HeapReleased,
		NumGC:        m.NumGC,
	}
}

// GC forces a collection and returns freed pages to the OS, so HeapAlloc
// reflects live data between stages.
func GC() {
	runtime.GC()
	debug.FreeOSMemory()
}

// LatencyStats summarizes a set of durations.
type LatencyStats struct {
	P50Ms float64
	P95Ms float64
	P99Ms float64
	AvgMs float64
	N     int
}

// LatencyStatsFromDurations computes percentile statistics.
func LatencyStatsFromDurations(durations []time.Duration) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{}
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	pct := func(p float64) float64 {
		i := int(p * float64(len(sorted)-1))
		return float64(sorted[i].Nanoseconds()) / 1e6
	}
	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return LatencyStats{
		P50Ms: pct(0.50),
		P95Ms: pct(0.95),
		P99Ms: pct(0.99),
		AvgMs: float64(sum.Nanoseconds()) / 1e6 / float64(len(sorted)),
		N:     len(sorted),
	}
}
