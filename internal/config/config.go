// Package config holds the experiment parameters. Values come from the
// built-in defaults, then an optional YAML file, then CARTPOLE_* environment
// variables; command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Timesteps          int     `yaml:"timesteps"`
	NetArch            []int   `yaml:"net_arch"`
	Seeds              int     `yaml:"seeds"`
	StartDeltaExponent float64 `yaml:"start_delta_exponent"`
	EndDeltaExponent   float64 `yaml:"end_delta_exponent"`
	NumDeltas          int     `yaml:"num_deltas"`
	TrainingDelta      float64 `yaml:"training_delta"`
	CheckerDelta       float64 `yaml:"checker_delta"`
	MaxEpisodeSteps    int     `yaml:"max_episode_steps"`

	Checkpoint string `yaml:"checkpoint"`
	ResultsDir string `yaml:"results_dir"`
	Seed       int64  `yaml:"seed"`
	Workers    int    `yaml:"workers"`

	PPO PPO `yaml:"ppo"`
}

// PPO holds the optimiser hyperparameters.
type PPO struct {
	NSteps       int     `yaml:"n_steps"`
	BatchSize    int     `yaml:"batch_size"`
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	Gamma        float64 `yaml:"gamma"`
	GAELambda    float64 `yaml:"gae_lambda"`
	ClipRange    float64 `yaml:"clip_range"`
	EntCoef      float64 `yaml:"ent_coef"`
	VFCoef       float64 `yaml:"vf_coef"`
	MaxGradNorm  float64 `yaml:"max_grad_norm"`
}

func Default() Config {
	return Config{
		Timesteps:          500_000,
		NetArch:            []int{64, 64, 64},
		Seeds:              100,
		StartDeltaExponent: -15,
		EndDeltaExponent:   0,
		NumDeltas:          15,
		TrainingDelta:      1e-10,
		CheckerDelta:       1e-10,
		MaxEpisodeSteps:    500,
		Checkpoint:         "ppo_cartpole.json",
		ResultsDir:         "results",
		Seed:               0,
		Workers:            runtime.GOMAXPROCS(0),
		PPO:                DefaultPPO(),
	}
}

func DefaultPPO() PPO {
	return PPO{
		NSteps:       2048,
		BatchSize:    64,
		Epochs:       10,
		LearningRate: 3e-4,
		Gamma:        0.99,
		GAELambda:    0.95,
		ClipRange:    0.2,
		EntCoef:      0.0,
		VFCoef:       0.5,
		MaxGradNorm:  0.5,
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from CARTPOLE_* variables. Unparseable values
// are ignored.
func (c *Config) ApplyEnv() {
	c.Timesteps = getenvInt("CARTPOLE_TIMESTEPS", c.Timesteps)
	c.Seeds = getenvInt("CARTPOLE_SEEDS", c.Seeds)
	c.NumDeltas = getenvInt("CARTPOLE_NUM_DELTAS", c.NumDeltas)
	c.TrainingDelta = getenvFloat("CARTPOLE_TRAINING_DELTA", c.TrainingDelta)
	c.CheckerDelta = getenvFloat("CARTPOLE_CHECKER_DELTA", c.CheckerDelta)
	c.Checkpoint = getenv("CARTPOLE_CHECKPOINT", c.Checkpoint)
	c.ResultsDir = getenv("CARTPOLE_RESULTS_DIR", c.ResultsDir)
	c.Seed = getenvInt64("CARTPOLE_SEED", c.Seed)
	c.Workers = getenvInt("CARTPOLE_WORKERS", c.Workers)
}

func (c Config) Validate() error {
	switch {
	case c.Timesteps <= 0:
		return fmt.Errorf("%w: timesteps must be > 0", ErrInvalid)
	case len(c.NetArch) == 0:
		return fmt.Errorf("%w: net_arch must list at least one hidden layer", ErrInvalid)
	case c.Seeds <= 0:
		return fmt.Errorf("%w: seeds must be > 0", ErrInvalid)
	case c.NumDeltas <= 0:
		return fmt.Errorf("%w: num_deltas must be > 0", ErrInvalid)
	case c.StartDeltaExponent > c.EndDeltaExponent:
		return fmt.Errorf("%w: start_delta_exponent %v is above end_delta_exponent %v", ErrInvalid, c.StartDeltaExponent, c.EndDeltaExponent)
	case c.TrainingDelta <= 0 || c.CheckerDelta <= 0:
		return fmt.Errorf("%w: training_delta and checker_delta must be > 0", ErrInvalid)
	case c.MaxEpisodeSteps <= 0:
		return fmt.Errorf("%w: max_episode_steps must be > 0", ErrInvalid)
	case c.Checkpoint == "":
		return fmt.Errorf("%w: checkpoint path is empty", ErrInvalid)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be > 0", ErrInvalid)
	}
	for _, w := range c.NetArch {
		if w <= 0 {
			return fmt.Errorf("%w: net_arch widths must be > 0, got %v", ErrInvalid, c.NetArch)
		}
	}
	p := c.PPO
	switch {
	case p.NSteps <= 0 || p.BatchSize <= 0 || p.Epochs <= 0:
		return fmt.Errorf("%w: ppo n_steps, batch_size and epochs must be > 0", ErrInvalid)
	case p.LearningRate <= 0:
		return fmt.Errorf("%w: ppo learning_rate must be > 0", ErrInvalid)
	case p.Gamma < 0 || p.Gamma > 1 || p.GAELambda < 0 || p.GAELambda > 1:
		return fmt.Errorf("%w: ppo gamma and gae_lambda must be within [0, 1]", ErrInvalid)
	case p.ClipRange <= 0:
		return fmt.Errorf("%w: ppo clip_range must be > 0", ErrInvalid)
	}
	return nil
}

// Parameter is one row of the experiment's parameter sheet.
type Parameter struct {
	Name  string
	Value any
}

// Parameters lists the values that identify an experiment, in the order
// they are reported.
func (c Config) Parameters() []Parameter {
	return []Parameter{
		{"n_timesteps", c.Timesteps},
		{"policy_net_arch", fmt.Sprint(c.NetArch)},
		{"seeds", c.Seeds},
		{"num_deltas", c.NumDeltas},
		{"start_delta_exponent", c.StartDeltaExponent},
		{"end_delta_exponent", c.EndDeltaExponent},
		{"training_delta", c.TrainingDelta},
		{"checker_delta", c.CheckerDelta},
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
