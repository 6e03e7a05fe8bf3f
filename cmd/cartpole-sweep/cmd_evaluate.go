package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cartpole-dt-sweep/internal/config"
	"cartpole-dt-sweep/internal/display"
	"cartpole-dt-sweep/internal/policy"
	"cartpole-dt-sweep/internal/report"
	"cartpole-dt-sweep/internal/sweep"
)

const savePrompt = "Do you want to save this experiment? (yes/no): "

type testFlags struct {
	save  bool
	quiet bool
}

func newTestCmd(a *app) *cobra.Command {
	var flags testFlags
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Evaluate the checkpoint across time-step multipliers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTest(cmd, flags)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&flags.save, "save", false, "Save the experiment without asking")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "Hide the progress bars")
	return cmd
}

func (a *app) runTest(cmd *cobra.Command, flags testFlags) error {
	cfg := a.cfg
	out := cmd.OutOrStdout()

	pol, meta, err := policy.Load(cfg.Checkpoint)
	if err != nil {
		return err
	}

	multipliers := sweep.Multipliers(cfg.StartDeltaExponent, cfg.EndDeltaExponent, cfg.NumDeltas)
	sweepCfg := sweep.Config{
		Seeds:    cfg.Seeds,
		MaxSteps: cfg.MaxEpisodeSteps,
		Workers:  cfg.Workers,
		BaseSeed: cfg.Seed,
	}

	var rep sweep.Reporter
	var prog *display.Progress
	if !flags.quiet {
		prog = display.NewProgress(cmd.ErrOrStderr())
		rep = prog.Sweep(len(multipliers))
	}
	res, err := sweep.Run(cmd.Context(), pol, multipliers, sweepCfg, rep)
	if prog != nil {
		prog.Stop()
	}
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	fmt.Fprintln(out, report.ResultsTable(res))

	save := flags.save
	if !save {
		save, err = confirm(cmd.InOrStdin(), out, savePrompt)
		if err != nil {
			return err
		}
	}
	if !save {
		return nil
	}

	params := append(cfg.Parameters(),
		config.Parameter{Name: "run_id", Value: uuid.NewString()},
		config.Parameter{Name: "checkpoint_run_id", Value: meta.RunID},
		config.Parameter{Name: "seed", Value: cfg.Seed},
	)
	dir, err := report.Save(cfg.ResultsDir, params, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Experiment saved to %s\n", dir)
	return nil
}

// confirm asks question on out and reports whether the answer read from in
// is "yes". A closed input counts as no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprint(out, question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(line)) == "yes", nil
}
