package cartpole

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

const (
	gravity        = 9.8
	massCart       = 1.0
	massPole       = 0.1
	length         = 0.5
	totalMass      = massCart + massPole
	poleMassLength = massPole * length
	forceMax       = 10.0
	tau            = 0.02

	xThreshold     = 2.4
	thetaThreshold = 12.0 * 2.0 * math.Pi / 360.0
	maxSteps       = 500

	// ObservationSize is the length of the vector returned by Observation.
	ObservationSize = 4
	// NumActions is the number of discrete actions: 0 pushes left, 1 pushes right.
	NumActions = 2
)

var ErrInvalidMultiplier = errors.New("dt multiplier must be positive and finite")

type State struct {
	X        float64 `json:"x"`
	XDot     float64 `json:"x_dot"`
	Theta    float64 `json:"theta"`
	ThetaDot float64 `json:"theta_dot"`
}

// Env is a CartPole simulator whose integration interval is the classic
// 0.02s scaled by DtMultiplier.
type Env struct {
	State        State
	Steps        int
	Rand         *rand.Rand
	DtMultiplier float64

	terminated bool
	truncated  bool
}

func NewEnv(rng *rand.Rand, dtMultiplier float64) (*Env, error) {
	if dtMultiplier <= 0 || math.IsInf(dtMultiplier, 0) || math.IsNaN(dtMultiplier) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMultiplier, dtMultiplier)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	env := &Env{Rand: rng, DtMultiplier: dtMultiplier}
	env.Reset()
	return env, nil
}

func (e *Env) Reset() State {
	e.State = State{
		X:        e.Rand.Float64()*0.1 - 0.05,
		XDot:     e.Rand.Float64()*0.1 - 0.05,
		Theta:    e.Rand.Float64()*0.1 - 0.05,
		ThetaDot: e.Rand.Float64()*0.1 - 0.05,
	}
	e.Steps = 0
	e.terminated = false
	e.truncated = false
	return e.State
}

// Tau is the effective integration interval in seconds.
func (e *Env) Tau() float64 {
	return tau * e.DtMultiplier
}

// Step advances the simulation by one interval. Once the episode has ended
// further calls leave the state untouched and pay no reward.
func (e *Env) Step(action int) (State, float64, bool, bool) {
	if e.terminated || e.truncated {
		return e.State, 0, e.terminated, e.truncated
	}

	force := forceMax
	if action == 0 {
		force = -forceMax
	}

	x := e.State.X
	xDot := e.State.XDot
	theta := e.State.Theta
	thetaDot := e.State.ThetaDot

	cosTheta := math.Cos(theta)
	sinTheta := math.Sin(theta)

	dt := e.Tau()
	temp := (force + poleMassLength*thetaDot*thetaDot*sinTheta) / totalMass
	thetaAcc := (gravity*sinTheta - cosTheta*temp) / (length * (4.0/3.0 - massPole*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass
	x += dt * xDot
	xDot += dt * xAcc
	theta += dt * thetaDot
	thetaDot += dt * thetaAcc

	e.State = State{
		X:        x,
		XDot:     xDot,
		Theta:    theta,
		ThetaDot: thetaDot,
	}
	e.Steps++

	e.terminated = x < -xThreshold || x > xThreshold || theta < -thetaThreshold || theta > thetaThreshold
	e.truncated = !e.terminated && e.Steps >= maxSteps
	return e.State, 1.0, e.terminated, e.truncated
}

func (e *Env) Observation() []float64 {
	return e.State.Vector()
}

func (s State) Vector() []float64 {
	return []float64{s.X, s.XDot, s.Theta, s.ThetaDot}
}

func MaxSteps() int {
	return maxSteps
}
