package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"cartpole-dt-sweep/internal/cartpole"
	"cartpole-dt-sweep/internal/policy"
	"cartpole-dt-sweep/internal/sweep"
)

func newCheckCmd(a *app) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:    "check",
		Short:  "Run one episode at the checker multiplier and print each reward",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCheck(cmd, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print action, flags and state")
	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, verbose bool) error {
	cfg := a.cfg
	out := cmd.OutOrStdout()

	pol, _, err := policy.Load(cfg.Checkpoint)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	env, err := cartpole.NewEnv(rand.New(rand.NewSource(cfg.Seed+1)), cfg.CheckerDelta)
	if err != nil {
		return fmt.Errorf("checker env: %w", err)
	}

	sweep.Check(pol, env, cfg.MaxEpisodeSteps, rng, func(r sweep.StepRecord) {
		if !verbose {
			fmt.Fprintln(out, r.Reward)
			return
		}
		fmt.Fprintf(out, "%d\taction=%d\treward=%g\tterminated=%t\ttruncated=%t\tx=%.4f\ttheta=%.4f\n",
			r.Step, r.Action, r.Reward, r.Terminated, r.Truncated, r.State.X, r.State.Theta)
	})
	return nil
}
