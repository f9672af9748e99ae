package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string // YAML engine config (geometry, budget, tiers, checkpointing)
	logLevel   string // log verbosity level
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "hqsim",
	Short: "Hierarchical block-storage quantum state simulator",
	Long: "Simulates quantum state vectors larger than RAM by spreading amplitude blocks\n" +
		"across a tier hierarchy (memory, mmap'd file, remote object store) under a fixed\n" +
		"resident-memory budget.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "hqsim.yaml", "Path to engine config YAML")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
