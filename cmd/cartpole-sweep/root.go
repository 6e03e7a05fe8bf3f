package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cartpole-dt-sweep/internal/config"
	"cartpole-dt-sweep/internal/logging"
)

// app carries the flags shared by every subcommand and the resolved config.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	checkpoint string
	resultsDir string
	seed       int64
	workers    int

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cartpole-sweep",
		Short: "Train PPO on CartPole and sweep the simulation time-step multiplier",
		Long: "cartpole-sweep trains a policy-gradient agent on CartPole under a fixed time-step\n" +
			"multiplier, then evaluates it across log-spaced multipliers and optionally saves\n" +
			"a plot and spreadsheet of the mean returns.",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version:           version,
		PersistentPreRunE: a.setup,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "YAML experiment config")
	f.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&a.logFormat, "log-format", "text", "Log format (text, json)")
	f.StringVar(&a.checkpoint, "checkpoint", "", "Policy checkpoint path (overrides config)")
	f.StringVar(&a.resultsDir, "results-dir", "", "Directory for saved experiments (overrides config)")
	f.Int64Var(&a.seed, "seed", 0, "Random seed; 0 picks one from the clock")
	f.IntVar(&a.workers, "workers", 0, "Parallel evaluation workers (overrides config)")

	root.AddCommand(newTrainCmd(a))
	root.AddCommand(newTestCmd(a))
	root.AddCommand(newCheckCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	logging.Init(level, a.logFormat, cmd.ErrOrStderr())

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("checkpoint") {
		cfg.Checkpoint = a.checkpoint
	}
	if flags.Changed("results-dir") {
		cfg.ResultsDir = a.resultsDir
	}
	if flags.Changed("seed") {
		cfg.Seed = a.seed
	}
	if flags.Changed("workers") {
		cfg.Workers = a.workers
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	return nil
}
