package policy

import (
	"fmt"
	"math"
	"math/rand"

	"cartpole-dt-sweep/internal/cartpole"
	"cartpole-dt-sweep/internal/nn"
)

// Policy is an actor-critic pair: the actor maps an observation to action
// logits and the critic to a state-value estimate.
type Policy struct {
	Actor   *nn.MLP
	Critic  *nn.MLP
	NetArch []int
}

// New builds a freshly initialised policy with the given hidden widths for
// both networks.
func New(netArch []int, rng *rand.Rand) (*Policy, error) {
	if len(netArch) == 0 {
		return nil, fmt.Errorf("policy needs at least one hidden layer")
	}
	actor, err := nn.NewMLP(layerSizes(netArch, cartpole.NumActions), 0.01, rng)
	if err != nil {
		return nil, fmt.Errorf("build actor: %w", err)
	}
	critic, err := nn.NewMLP(layerSizes(netArch, 1), 1.0, rng)
	if err != nil {
		return nil, fmt.Errorf("build critic: %w", err)
	}
	return &Policy{
		Actor:   actor,
		Critic:  critic,
		NetArch: append([]int(nil), netArch...),
	}, nil
}

func layerSizes(hidden []int, out int) []int {
	sizes := make([]int, 0, len(hidden)+2)
	sizes = append(sizes, cartpole.ObservationSize)
	sizes = append(sizes, hidden...)
	return append(sizes, out)
}

// Action samples an action and returns it with its log-probability and the
// critic's value estimate.
func (p *Policy) Action(state []float64, rng *rand.Rand) (int, float64, float64) {
	probs := softmax(p.Actor.Predict(state))
	choice := sampleCategorical(probs, rng)
	logProb := math.Log(probs[choice] + 1e-8)
	return choice, logProb, p.Value(state)
}

// Predict returns the most probable action.
func (p *Policy) Predict(state []float64) int {
	logits := p.Actor.Predict(state)
	best := 0
	for i, v := range logits[1:] {
		if v > logits[best] {
			best = i + 1
		}
	}
	return best
}

func (p *Policy) Value(state []float64) float64 {
	return p.Critic.Predict(state)[0]
}

// Params lists the trainable parameters of actor then critic.
func (p *Policy) Params() [][]float64 {
	return append(p.Actor.Params(), p.Critic.Params()...)
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	values := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		values[i] = math.Exp(v - maxLogit)
		sum += values[i]
	}
	for i := range values {
		values[i] /= sum
	}
	return values
}

// LogSoftmax returns log-probabilities for a row of logits.
func LogSoftmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(v - maxLogit)
	}
	lse := maxLogit + math.Log(sum)
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = v - lse
	}
	return out
}

func sampleCategorical(probs []float64, rng *rand.Rand) int {
	threshold := rng.Float64()
	var cumulativeProb float64
	for i, prob := range probs {
		cumulativeProb += prob
		if threshold <= cumulativeProb {
			return i
		}
	}
	return len(probs) - 1
}
