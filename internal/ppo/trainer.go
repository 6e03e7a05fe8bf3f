// Package ppo trains a policy.Policy on CartPole with proximal policy
// optimisation: clipped surrogate objective, GAE advantages and a single
// Adam optimiser shared by actor and critic.
package ppo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"cartpole-dt-sweep/internal/buffer"
	"cartpole-dt-sweep/internal/cartpole"
	"cartpole-dt-sweep/internal/config"
	"cartpole-dt-sweep/internal/logging"
	"cartpole-dt-sweep/internal/nn"
	"cartpole-dt-sweep/internal/policy"
)

// episodeWindow is how many finished episodes MeanReturn averages over.
const episodeWindow = 100

// Stats summarises the most recent rollout and update.
type Stats struct {
	Timesteps    int
	Episodes     int
	MeanReturn   float64
	PolicyLoss   float64
	ValueLoss    float64
	Entropy      float64
	ApproxKL     float64
	ClipFraction float64
}

type Trainer struct {
	Config config.PPO
	Policy *policy.Policy
	Env    *cartpole.Env
	Rand   *rand.Rand
	Logger *slog.Logger

	// OnRollout, when set, is called after every update.
	OnRollout func(Stats)

	buf *buffer.RolloutBuffer
	opt *nn.Adam

	obs           []float64
	episodeStart  bool
	episodeReturn float64
	returns       []float64
	episodes      int
	steps         int
}

func NewTrainer(cfg config.PPO, pol *policy.Policy, env *cartpole.Env, rng *rand.Rand) (*Trainer, error) {
	if pol == nil || env == nil {
		return nil, errors.New("trainer needs a policy and an environment")
	}
	buf, err := buffer.NewRolloutBuffer(cfg.NSteps)
	if err != nil {
		return nil, fmt.Errorf("rollout buffer: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Trainer{
		Config:       cfg,
		Policy:       pol,
		Env:          env,
		Rand:         rng,
		Logger:       logging.New("ppo"),
		buf:          buf,
		opt:          nn.NewAdam(cfg.LearningRate, pol.Params()),
		obs:          env.Reset().Vector(),
		episodeStart: true,
	}, nil
}

// Train runs rollouts and updates until at least total environment steps
// have been taken in this trainer's lifetime. Cancellation is checked
// between rollouts.
func (t *Trainer) Train(ctx context.Context, total int) (Stats, error) {
	if total <= 0 {
		return Stats{}, errors.New("total timesteps must be > 0")
	}
	var stats Stats
	for t.steps < total {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		if err := t.collect(); err != nil {
			return stats, err
		}
		stats = t.update()
		stats.Timesteps = t.steps
		stats.Episodes = t.episodes
		if len(t.returns) > 0 {
			stats.MeanReturn = stat.Mean(t.returns, nil)
		}

		t.Logger.Debug("rollout",
			"timesteps", stats.Timesteps,
			"episodes", stats.Episodes,
			"ep_rew_mean", stats.MeanReturn,
			"policy_loss", stats.PolicyLoss,
			"value_loss", stats.ValueLoss,
			"entropy", stats.Entropy,
			"approx_kl", stats.ApproxKL,
			"clip_fraction", stats.ClipFraction,
		)
		if t.OnRollout != nil {
			t.OnRollout(stats)
		}
	}
	return stats, nil
}

func (t *Trainer) collect() error {
	t.buf.Reset()
	for !t.buf.Full() {
		action, logProb, value := t.Policy.Action(t.obs, t.Rand)
		state, reward, terminated, truncated := t.Env.Step(action)
		t.steps++
		t.episodeReturn += reward

		// Time-limit truncation is not a real terminal state: fold the
		// critic's estimate of the cut-off state into the reward.
		if truncated {
			reward += t.Config.Gamma * t.Policy.Value(state.Vector())
		}
		err := t.buf.Add(buffer.Step{
			Obs:          t.obs,
			Action:       action,
			Reward:       reward,
			LogProb:      logProb,
			Value:        value,
			EpisodeStart: t.episodeStart,
		})
		if err != nil {
			return fmt.Errorf("store transition: %w", err)
		}

		t.episodeStart = terminated || truncated
		if t.episodeStart {
			t.finishEpisode()
			t.obs = t.Env.Reset().Vector()
		} else {
			t.obs = state.Vector()
		}
	}
	return t.buf.ComputeAdvantages(t.Policy.Value(t.obs), t.episodeStart, t.Config.Gamma, t.Config.GAELambda)
}

func (t *Trainer) finishEpisode() {
	t.episodes++
	t.returns = append(t.returns, t.episodeReturn)
	if len(t.returns) > episodeWindow {
		t.returns = t.returns[len(t.returns)-episodeWindow:]
	}
	t.episodeReturn = 0
}

func (t *Trainer) update() Stats {
	var sum Stats
	var batches int
	params := t.Policy.Params()
	for epoch := 0; epoch < t.Config.Epochs; epoch++ {
		for _, idx := range t.buf.Minibatches(t.Rand, t.Config.BatchSize) {
			b := t.batch(idx)
			st, grads := t.minibatchLoss(b)
			nn.ClipGradNorm(grads, t.Config.MaxGradNorm)
			t.opt.Step(params, grads)

			sum.PolicyLoss += st.PolicyLoss
			sum.ValueLoss += st.ValueLoss
			sum.Entropy += st.Entropy
			sum.ApproxKL += st.ApproxKL
			sum.ClipFraction += st.ClipFraction
			batches++
		}
	}
	if batches > 0 {
		n := float64(batches)
		sum.PolicyLoss /= n
		sum.ValueLoss /= n
		sum.Entropy /= n
		sum.ApproxKL /= n
		sum.ClipFraction /= n
	}
	return sum
}

type batch struct {
	obs         *mat.Dense
	actions     []int
	oldLogProbs []float64
	advantages  []float64
	returns     []float64
}

func (t *Trainer) batch(idx []int) batch {
	steps := t.buf.Steps()
	b := batch{
		obs:         mat.NewDense(len(idx), cartpole.ObservationSize, nil),
		actions:     make([]int, len(idx)),
		oldLogProbs: make([]float64, len(idx)),
		advantages:  make([]float64, len(idx)),
		returns:     make([]float64, len(idx)),
	}
	for row, i := range idx {
		b.obs.SetRow(row, steps[i].Obs)
		b.actions[row] = steps[i].Action
		b.oldLogProbs[row] = steps[i].LogProb
		b.advantages[row] = t.buf.Advantages[i]
		b.returns[row] = t.buf.Returns[i]
	}
	if len(idx) > 1 {
		mean, std := stat.MeanStdDev(b.advantages, nil)
		for i := range b.advantages {
			b.advantages[i] = (b.advantages[i] - mean) / (std + 1e-8)
		}
	}
	return b
}

// minibatchLoss evaluates the PPO objective on one batch and returns its
// components together with gradients laid out like Policy.Params.
func (t *Trainer) minibatchLoss(b batch) (Stats, [][]float64) {
	n, _ := b.obs.Dims()
	inv := 1 / float64(n)
	clip := t.Config.ClipRange

	logits, actorTrace := t.Policy.Actor.Forward(b.obs)
	values, criticTrace := t.Policy.Critic.Forward(b.obs)

	dLogits := mat.NewDense(n, cartpole.NumActions, nil)
	dValues := mat.NewDense(n, 1, nil)
	var st Stats
	for i := 0; i < n; i++ {
		logp := policy.LogSoftmax(mat.Row(nil, i, logits))
		probs := make([]float64, len(logp))
		var entropy float64
		for k, lp := range logp {
			probs[k] = math.Exp(lp)
			entropy -= probs[k] * lp
		}

		a := b.actions[i]
		adv := b.advantages[i]
		logRatio := logp[a] - b.oldLogProbs[i]
		ratio := math.Exp(logRatio)
		surr1 := ratio * adv
		surr2 := math.Max(1-clip, math.Min(ratio, 1+clip)) * adv
		st.PolicyLoss -= math.Min(surr1, surr2) * inv
		st.Entropy += entropy * inv
		st.ApproxKL += ((ratio - 1) - logRatio) * inv
		if math.Abs(ratio-1) > clip {
			st.ClipFraction += inv
		}

		var dLogp float64
		if surr1 <= surr2 || (ratio >= 1-clip && ratio <= 1+clip) {
			dLogp = -adv * ratio * inv
		}
		for k := range logp {
			var onehot float64
			if k == a {
				onehot = 1
			}
			g := dLogp*(onehot-probs[k]) + t.Config.EntCoef*inv*probs[k]*(logp[k]+entropy)
			dLogits.Set(i, k, g)
		}

		diff := values.At(i, 0) - b.returns[i]
		st.ValueLoss += diff * diff * inv
		dValues.Set(i, 0, t.Config.VFCoef*2*diff*inv)
	}

	actorGrads := t.Policy.Actor.Backward(actorTrace, dLogits).Flat()
	criticGrads := t.Policy.Critic.Backward(criticTrace, dValues).Flat()
	return st, append(actorGrads, criticGrads...)
}

// Steps reports how many environment steps the trainer has taken.
func (t *Trainer) Steps() int {
	return t.steps
}
