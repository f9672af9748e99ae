package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hqsim/hqsim/statevec"
)

var (
	circuitPath      string  // YAML circuit file; empty = built-in GHZ
	measureQubits    int     // number of low qubits to report probabilities for
	sampleSeed       int64   // when >= 0, sample and collapse with this seed
	shutdownDeadline float64 // seconds allowed for the best-effort checkpoint on SIGINT/SIGTERM
)

// circuitOp is one gate application as read from a circuit file.
type circuitOp struct {
	Gate    string    `yaml:"gate"`
	Targets []uint32  `yaml:"targets"`
	Params  []float64 `yaml:"params,omitempty"`
}

func loadCircuit(path string) ([]circuitOp, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ops []circuitOp
	if err := yaml.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("parse circuit %s: %w", path, err)
	}
	return ops, nil
}

// ghzCircuit entangles all n qubits: H on qubit 0, then a CNOT chain.
func ghzCircuit(n uint32) []circuitOp {
	ops := []circuitOp{{Gate: "H", Targets: []uint32{0}}}
	for q := uint32(1); q < n; q++ {
		ops = append(ops, circuitOp{Gate: "CNOT", Targets: []uint32{q - 1, q}})
	}
	return ops
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a gate circuit against a fresh store",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := statevec.LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Load config: %v", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tiers, err := statevec.OpenTiers(ctx, cfg)
		if err != nil {
			logrus.Fatalf("Open tiers: %v", err)
		}
		st, err := statevec.New(ctx, cfg, tiers)
		if err != nil {
			logrus.Fatalf("Create store: %v", err)
		}

		ops := ghzCircuit(cfg.QubitCount)
		if circuitPath != "" {
			if ops, err = loadCircuit(circuitPath); err != nil {
				logrus.Fatalf("Load circuit: %v", err)
			}
		}
		logrus.Infof("Running %d gates on %d qubits (blockBits=%d, budget=%d blocks)",
			len(ops), cfg.QubitCount, cfg.BlockBits, cfg.BudgetBlocks())

		for i, op := range ops {
			g, err := statevec.ByName(op.Gate, op.Params...)
			if err != nil {
				logrus.Fatalf("Gate %d: %v", i, err)
			}
			if err := st.ApplyGate(ctx, g, op.Targets...); err != nil {
				if ctx.Err() != nil && st.Checkpoints() != nil {
					st.Checkpoints().CheckpointOnShutdown(time.Duration(shutdownDeadline * float64(time.Second)))
				}
				logrus.Fatalf("Apply gate %d (%s): %v", i, op.Gate, err)
			}
		}

		reportProbabilities(ctx, st)
		if sampleSeed >= 0 {
			targets := measureTargets(st)
			outcome, err := st.Sample(ctx, rand.New(rand.NewSource(sampleSeed)), targets...)
			if err != nil {
				logrus.Fatalf("Sample: %v", err)
			}
			fmt.Printf("sampled outcome: %s (p=%.6f)\n", outcome.Bits(len(targets)), outcome.Probability)
		}
		if st.Checkpoints() != nil {
			if err := st.Checkpoints().Checkpoint(ctx); err != nil {
				logrus.Fatalf("Final checkpoint: %v", err)
			}
		}
	},
}

func measureTargets(st *statevec.Store) []uint32 {
	n := measureQubits
	if n <= 0 || uint32(n) > st.Config().QubitCount {
		n = int(st.Config().QubitCount)
	}
	if n > 10 {
		n = 10
	}
	targets := make([]uint32, n)
	for i := range targets {
		targets[i] = uint32(i)
	}
	return targets
}

func reportProbabilities(ctx context.Context, st *statevec.Store) {
	targets := measureTargets(st)
	outcomes, err := st.Measure(ctx, targets...)
	if err != nil {
		logrus.Fatalf("Measure: %v", err)
	}
	for _, o := range outcomes {
		if o.Probability > 1e-9 {
			fmt.Printf("|%s⟩  p=%.6f\n", o.Bits(len(targets)), o.Probability)
		}
	}
}

func init() {
	runCmd.Flags().StringVar(&circuitPath, "circuit", "", "YAML circuit file (default: GHZ over all qubits)")
	runCmd.Flags().IntVar(&measureQubits, "measure", 0, "Report probabilities for the lowest N qubits (0 = all, capped at 10)")
	runCmd.Flags().Int64Var(&sampleSeed, "sample-seed", -1, "Sample and collapse with this RNG seed (-1 = no sampling)")
	runCmd.Flags().Float64Var(&shutdownDeadline, "shutdown-deadline", 5, "Seconds allowed for the best-effort checkpoint on interrupt")
	rootCmd.AddCommand(runCmd)
}
