package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cartpole-dt-sweep/internal/report"
)

type harness struct {
	dir        string
	configPath string
	checkpoint string
	resultsDir string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	dir := t.TempDir()
	h := harness{
		dir:        dir,
		configPath: filepath.Join(dir, "experiment.yaml"),
		checkpoint: filepath.Join(dir, "ppo_cartpole.json"),
		resultsDir: filepath.Join(dir, "results"),
	}
	body := strings.Join([]string{
		"timesteps: 256",
		"net_arch: [8]",
		"seeds: 3",
		"num_deltas: 3",
		"start_delta_exponent: -6",
		"end_delta_exponent: 0",
		"max_episode_steps: 20",
		"seed: 42",
		"workers: 2",
		"checkpoint: " + h.checkpoint,
		"results_dir: " + h.resultsDir,
		"ppo:",
		"  n_steps: 128",
		"  batch_size: 32",
		"  epochs: 2",
	}, "\n")
	if err := os.WriteFile(h.configPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return h
}

func (h harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--config", h.configPath))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTrainThenTestAndSave(t *testing.T) {
	h := newHarness(t)

	if _, err := h.run(t, "", "train", "--quiet"); err != nil {
		t.Fatalf("train: %v", err)
	}
	if _, err := os.Stat(h.checkpoint); err != nil {
		t.Fatalf("checkpoint not written: %v", err)
	}

	out, err := h.run(t, "yes\n", "test", "--quiet")
	if err != nil {
		t.Fatalf("test: %v", err)
	}
	if !strings.Contains(out, savePrompt) {
		t.Errorf("prompt missing from output:\n%s", out)
	}
	expDir := filepath.Join(h.resultsDir, "exp001")
	if !strings.Contains(out, "Experiment saved to "+expDir) {
		t.Errorf("save message missing from output:\n%s", out)
	}
	for _, name := range []string{report.PlotFile, report.WorkbookFile} {
		if _, err := os.Stat(filepath.Join(expDir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	if _, err := h.run(t, "", "test", "--quiet", "--save"); err != nil {
		t.Fatalf("test --save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.resultsDir, "exp002")); err != nil {
		t.Errorf("second experiment dir missing: %v", err)
	}
}

func TestTestDeclineDoesNotSave(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "", "train", "--quiet"); err != nil {
		t.Fatalf("train: %v", err)
	}
	for _, answer := range []string{"no\n", "y\n", ""} {
		out, err := h.run(t, answer, "test", "--quiet")
		if err != nil {
			t.Fatalf("test (answer %q): %v", answer, err)
		}
		if strings.Contains(out, "Experiment saved") {
			t.Errorf("answer %q saved the experiment", answer)
		}
	}
	if _, err := os.Stat(h.resultsDir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("results dir should not exist, stat err = %v", err)
	}
}

func TestTestWithoutCheckpointFails(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "", "test", "--quiet"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestCheckPrintsOneRewardPerStep(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "", "train", "--quiet"); err != nil {
		t.Fatalf("train: %v", err)
	}
	out, err := h.run(t, "", "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want 20:\n%s", len(lines), out)
	}
	for _, l := range lines {
		if l != "1" {
			t.Fatalf("reward line %q, want 1 at the checker multiplier", l)
		}
	}
}

func TestUnknownModeFails(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "", "evaluate"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestInvalidConfigFails(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "", "train", "--workers", "-1"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestConfirm(t *testing.T) {
	for answer, want := range map[string]bool{
		"yes\n":   true,
		" YES \n": true,
		"yes":     true,
		"no\n":    false,
		"y\n":     false,
		"":        false,
	} {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(answer), &out, "save? ")
		if err != nil {
			t.Fatalf("confirm(%q): %v", answer, err)
		}
		if got != want {
			t.Errorf("confirm(%q) = %v, want %v", answer, got, want)
		}
		if out.String() != "save? " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}
