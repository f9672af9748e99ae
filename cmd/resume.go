package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hqsim/hqsim/statevec"
)

var checkpointDir string

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume from the newest committed checkpoint and report state",
	Run: func(cmd *cobra.Command, args []string) {
		base, err := statevec.LoadConfig(configPath)
		if err != nil {
			logrus.Warnf("Load config (using defaults): %v", err)
			base = nil
		}
		dir := checkpointDir
		if dir == "" && base != nil {
			dir = base.CheckpointDir
		}
		if dir == "" {
			logrus.Fatalf("No checkpoint directory given (--checkpoint-dir or checkpoint_dir in config)")
		}

		ctx := context.Background()
		st, err := statevec.Resume(ctx, dir, base)
		if err != nil {
			logrus.Fatalf("Resume: %v", err)
		}
		fmt.Printf("resumed epoch %d: %d qubits, blockBits=%d\n",
			st.Checkpoints().Epoch(), st.Config().QubitCount, st.Config().BlockBits)
		if err := st.CheckNorm(ctx); err != nil {
			logrus.Warnf("Norm check: %v", err)
		}
		reportProbabilities(ctx, st)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print tier usage for the configured hierarchy",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := statevec.LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Load config: %v", err)
		}
		ctx := context.Background()
		tiers, err := statevec.OpenTiers(ctx, cfg)
		if err != nil {
			logrus.Fatalf("Open tiers: %v", err)
		}
		for i, t := range tiers {
			s := t.Stats()
			capacity := fmt.Sprintf("%d", s.Capacity)
			if s.Capacity < 0 {
				capacity = "unlimited"
			}
			fmt.Printf("tier %d (%s): %d blocks, capacity %s\n", i, s.Kind, s.Blocks, capacity)
			t.Close()
		}
	},
}

func init() {
	resumeCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Checkpoint directory (default: checkpoint_dir from config)")
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statsCmd)
}
