package main

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cartpole-dt-sweep/internal/cartpole"
	"cartpole-dt-sweep/internal/display"
	"cartpole-dt-sweep/internal/logging"
	"cartpole-dt-sweep/internal/policy"
	"cartpole-dt-sweep/internal/ppo"
)

func newTrainCmd(a *app) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a PPO policy at the training multiplier and save the checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTrain(cmd, quiet)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	return cmd
}

func (a *app) runTrain(cmd *cobra.Command, quiet bool) error {
	cfg := a.cfg
	logger := logging.New("train")

	rng := rand.New(rand.NewSource(cfg.Seed))
	pol, err := policy.New(cfg.NetArch, rng)
	if err != nil {
		return err
	}
	env, err := cartpole.NewEnv(rand.New(rand.NewSource(cfg.Seed+1)), cfg.TrainingDelta)
	if err != nil {
		return fmt.Errorf("training env: %w", err)
	}
	trainer, err := ppo.NewTrainer(cfg.PPO, pol, env, rng)
	if err != nil {
		return err
	}

	logger.Info("training",
		"timesteps", cfg.Timesteps,
		"net_arch", fmt.Sprint(cfg.NetArch),
		"training_delta", cfg.TrainingDelta,
		"seed", cfg.Seed,
	)

	if !quiet {
		prog := display.NewProgress(cmd.ErrOrStderr())
		tracker := prog.Training(cfg.Timesteps)
		trainer.OnRollout = func(s ppo.Stats) { tracker.Update(s.Timesteps, s.MeanReturn) }
		defer func() {
			tracker.Done()
			prog.Stop()
		}()
	}

	stats, err := trainer.Train(cmd.Context(), cfg.Timesteps)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	meta := policy.Meta{
		RunID:         uuid.NewString(),
		Timesteps:     stats.Timesteps,
		TrainingDelta: cfg.TrainingDelta,
		PPO:           cfg.PPO,
	}
	if err := pol.Save(cfg.Checkpoint, meta); err != nil {
		return err
	}
	logger.Info("checkpoint saved",
		"path", cfg.Checkpoint,
		"run_id", meta.RunID,
		"timesteps", stats.Timesteps,
		"episodes", stats.Episodes,
		"ep_rew_mean", stats.MeanReturn,
	)
	return nil
}
