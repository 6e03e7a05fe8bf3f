package policy

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"cartpole-dt-sweep/internal/config"
)

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := New([]int{8, 8}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	return p
}

func TestNewRequiresHiddenLayer(t *testing.T) {
	if _, err := New(nil, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected error for empty net arch")
	}
}

func TestActionReturnsValidChoice(t *testing.T) {
	p := newTestPolicy(t)
	rng := rand.New(rand.NewSource(2))
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		action, logProb, value := p.Action([]float64{0.01, 0, -0.02, 0.03}, rng)
		if action != 0 && action != 1 {
			t.Fatalf("action = %d", action)
		}
		if logProb > 0 || math.IsNaN(logProb) {
			t.Fatalf("logProb = %v", logProb)
		}
		if math.IsNaN(value) {
			t.Fatal("value is NaN")
		}
		seen[action] = true
	}
	// A fresh actor has near-uniform output, so both actions show up.
	if len(seen) != 2 {
		t.Fatalf("expected both actions to be sampled, saw %v", seen)
	}
}

func TestPredictIsArgmax(t *testing.T) {
	p := newTestPolicy(t)
	last := p.Actor.Layers[len(p.Actor.Layers)-1]
	last.B[0], last.B[1] = -5, 5
	if got := p.Predict([]float64{0, 0, 0, 0}); got != 1 {
		t.Fatalf("Predict = %d, want 1", got)
	}
	last.B[0], last.B[1] = 5, -5
	if got := p.Predict([]float64{0, 0, 0, 0}); got != 0 {
		t.Fatalf("Predict = %d, want 0", got)
	}
}

func TestLogSoftmax(t *testing.T) {
	got := LogSoftmax([]float64{1000, 1000})
	for _, v := range got {
		if math.Abs(v-math.Log(0.5)) > 1e-12 {
			t.Fatalf("LogSoftmax = %v, want log(0.5) each", got)
		}
	}
	probs := softmax([]float64{0, math.Log(3)})
	if math.Abs(probs[1]-0.75) > 1e-12 {
		t.Fatalf("softmax = %v", probs)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	p := newTestPolicy(t)
	path := filepath.Join(t.TempDir(), "nested", "ppo_cartpole.json")
	meta := Meta{RunID: "run-1", Timesteps: 1234, TrainingDelta: 1e-10, PPO: config.DefaultPPO(), SavedAt: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)}
	if err := p.Save(path, meta); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, gotMeta, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(meta, gotMeta); diff != "" {
		t.Errorf("meta mismatch:\n%s", diff)
	}
	if diff := cmp.Diff(p.NetArch, loaded.NetArch); diff != "" {
		t.Errorf("net arch mismatch:\n%s", diff)
	}
	obs := []float64{0.02, -0.1, 0.05, 0.3}
	if diff := cmp.Diff(p.Actor.Predict(obs), loaded.Actor.Predict(obs)); diff != "" {
		t.Errorf("actor output mismatch:\n%s", diff)
	}
	if p.Value(obs) != loaded.Value(obs) {
		t.Errorf("value %v != %v", p.Value(obs), loaded.Value(obs))
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}

	garbage := filepath.Join(dir, "garbage.json")
	if err := os.WriteFile(garbage, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(garbage); !errors.Is(err, ErrCheckpoint) {
		t.Errorf("garbage error = %v, want ErrCheckpoint", err)
	}

	version := filepath.Join(dir, "version.json")
	if err := os.WriteFile(version, []byte(`{"version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(version); !errors.Is(err, ErrCheckpoint) {
		t.Errorf("version error = %v, want ErrCheckpoint", err)
	}

	p := newTestPolicy(t)
	p.NetArch = []int{16}
	mismatch := filepath.Join(dir, "mismatch.json")
	if err := p.Save(mismatch, Meta{}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(mismatch); !errors.Is(err, ErrCheckpoint) {
		t.Errorf("arch mismatch error = %v, want ErrCheckpoint", err)
	}
}
