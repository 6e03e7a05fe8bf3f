package sweep

import (
	"math/rand"

	"cartpole-dt-sweep/internal/cartpole"
)

// Sampler picks actions stochastically.
type Sampler interface {
	Action(obs []float64, rng *rand.Rand) (int, float64, float64)
}

// StepRecord is one step of a diagnostic run.
type StepRecord struct {
	Step       int
	Action     int
	Reward     float64
	Terminated bool
	Truncated  bool
	State      cartpole.State
}

// Check steps env for exactly steps steps with sampled actions, without
// resetting when the episode ends, and hands every step to emit. It is a
// sanity probe for how the environment behaves at a given multiplier.
func Check(p Sampler, env *cartpole.Env, steps int, rng *rand.Rand, emit func(StepRecord)) {
	obs := env.Observation()
	for i := 0; i < steps; i++ {
		action, _, _ := p.Action(obs, rng)
		state, reward, terminated, truncated := env.Step(action)
		emit(StepRecord{
			Step:       i,
			Action:     action,
			Reward:     reward,
			Terminated: terminated,
			Truncated:  truncated,
			State:      state,
		})
		obs = state.Vector()
	}
}
