package buffer

import (
	"errors"
	"math/rand"
)

// RolloutBuffer holds one on-policy rollout of fixed length and the
// advantages computed over it.
type RolloutBuffer struct {
	steps    []Step
	capacity int

	Advantages []float64
	Returns    []float64
}

var (
	ErrBufferFull  = errors.New("buffer is full")
	ErrBufferEmpty = errors.New("buffer is empty")
)

func NewRolloutBuffer(capacity int) (*RolloutBuffer, error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be greater than zero")
	}
	return &RolloutBuffer{
		steps:    make([]Step, 0, capacity),
		capacity: capacity,
	}, nil
}

func (rb *RolloutBuffer) Add(step Step) error {
	if len(rb.steps) >= rb.capacity {
		return ErrBufferFull
	}
	rb.steps = append(rb.steps, step)
	return nil
}

// ComputeAdvantages fills Advantages and Returns using generalised
// advantage estimation. lastValue is the critic's estimate for the
// observation following the final stored step and lastDone reports whether
// that observation starts a new episode.
func (rb *RolloutBuffer) ComputeAdvantages(lastValue float64, lastDone bool, gamma, lambda float64) error {
	n := len(rb.steps)
	if n == 0 {
		return ErrBufferEmpty
	}
	rb.Advantages = make([]float64, n)
	rb.Returns = make([]float64, n)

	var lastGAE float64
	for t := n - 1; t >= 0; t-- {
		var nextNonTerminal, nextValue float64
		if t == n-1 {
			nextValue = lastValue
			if !lastDone {
				nextNonTerminal = 1
			}
		} else {
			nextValue = rb.steps[t+1].Value
			if !rb.steps[t+1].EpisodeStart {
				nextNonTerminal = 1
			}
		}
		delta := rb.steps[t].Reward + gamma*nextValue*nextNonTerminal - rb.steps[t].Value
		lastGAE = delta + gamma*lambda*nextNonTerminal*lastGAE
		rb.Advantages[t] = lastGAE
		rb.Returns[t] = lastGAE + rb.steps[t].Value
	}
	return nil
}

// Minibatches shuffles the stored indices and splits them into batches of
// at most size entries. Every index appears exactly once.
func (rb *RolloutBuffer) Minibatches(rng *rand.Rand, size int) [][]int {
	if size <= 0 || size > len(rb.steps) {
		size = len(rb.steps)
	}
	perm := rng.Perm(len(rb.steps))
	batches := make([][]int, 0, (len(perm)+size-1)/max(size, 1))
	for start := 0; start < len(perm); start += size {
		end := min(start+size, len(perm))
		batches = append(batches, perm[start:end])
	}
	return batches
}

func (rb *RolloutBuffer) Steps() []Step {
	return rb.steps
}

func (rb *RolloutBuffer) Full() bool {
	return len(rb.steps) >= rb.capacity
}

func (rb *RolloutBuffer) Capacity() int {
	return rb.capacity
}

func (rb *RolloutBuffer) Size() int {
	return len(rb.steps)
}

func (rb *RolloutBuffer) Reset() {
	rb.steps = rb.steps[:0]
	rb.Advantages = nil
	rb.Returns = nil
}
