package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Row is one bench measurement: a (geometry, budget, tier) configuration and
// the gate latency / memory numbers observed under it.
type Row struct {
	QubitCount   uint32
	BlockBits    uint32
	BudgetBlocks int
	TierKind     string
	Gates        int
	GateP50Ms    float64
	GateP99Ms    float64
	HeapAllocMB  float64
}

// ReportPath returns a timestamped report file name.
func ReportPath(prefix string) string {
	return prefix + time.Now().Format("20060102_150405") + ".csv"
}

// WriteCSV writes rows with a header.
func WriteCSV(rows []Row, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"qubits", "block_bits", "budget_blocks", "tier", "gates", "gate_p50_ms", "gate_p99_ms", "heap_alloc_mb"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatUint(uint64(r.QubitCount), 10),
			strconv.FormatUint(uint64(r.BlockBits), 10),
			strconv.Itoa(r.BudgetBlocks),
			r.TierKind,
			strconv.Itoa(r.Gates),
			fmt.Sprintf("%.3f", r.GateP50Ms),
			fmt.Sprintf("%.3f", r.GateP99Ms),
			fmt.Sprintf("%.1f", r.HeapAllocMB),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
