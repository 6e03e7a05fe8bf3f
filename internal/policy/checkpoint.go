package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"cartpole-dt-sweep/internal/cartpole"
	"cartpole-dt-sweep/internal/config"
	"cartpole-dt-sweep/internal/nn"
)

const checkpointVersion = 1

var ErrCheckpoint = errors.New("invalid checkpoint")

// Meta describes how a checkpoint was produced.
type Meta struct {
	RunID         string     `json:"run_id"`
	Timesteps     int        `json:"timesteps"`
	TrainingDelta float64    `json:"training_delta"`
	PPO           config.PPO `json:"ppo"`
	SavedAt       time.Time  `json:"saved_at"`
}

type checkpoint struct {
	Version int               `json:"version"`
	NetArch []int             `json:"net_arch"`
	Meta    Meta              `json:"meta"`
	Actor   []nn.LayerWeights `json:"actor"`
	Critic  []nn.LayerWeights `json:"critic"`
}

// Save writes the policy to path, replacing any previous checkpoint only
// once the new one is fully on disk.
func (p *Policy) Save(path string, meta Meta) error {
	if meta.SavedAt.IsZero() {
		meta.SavedAt = time.Now().UTC()
	}
	body, err := json.Marshal(checkpoint{
		Version: checkpointVersion,
		NetArch: p.NetArch,
		Meta:    meta,
		Actor:   p.Actor.Export(),
		Critic:  p.Critic.Export(),
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint written by Save.
func Load(path string) (*Policy, Meta, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp checkpoint
	if err := json.Unmarshal(body, &cp); err != nil {
		return nil, Meta{}, fmt.Errorf("%w: %v", ErrCheckpoint, err)
	}
	if cp.Version != checkpointVersion {
		return nil, Meta{}, fmt.Errorf("%w: unsupported version %d", ErrCheckpoint, cp.Version)
	}
	actor, err := nn.FromWeights(cp.Actor)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("%w: actor: %v", ErrCheckpoint, err)
	}
	critic, err := nn.FromWeights(cp.Critic)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("%w: critic: %v", ErrCheckpoint, err)
	}
	if !slices.Equal(layerSizes(cp.NetArch, cartpole.NumActions), actor.Sizes()) || !slices.Equal(layerSizes(cp.NetArch, 1), critic.Sizes()) {
		return nil, Meta{}, fmt.Errorf("%w: weights do not match net_arch %v", ErrCheckpoint, cp.NetArch)
	}
	return &Policy{Actor: actor, Critic: critic, NetArch: cp.NetArch}, cp.Meta, nil
}
