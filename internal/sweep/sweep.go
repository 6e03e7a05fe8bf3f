// Package sweep evaluates a trained policy across a range of CartPole
// integration-interval multipliers.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"cartpole-dt-sweep/internal/cartpole"
	"cartpole-dt-sweep/internal/logging"
)

// Predictor picks an action deterministically.
type Predictor interface {
	Predict(obs []float64) int
}

type Config struct {
	Seeds    int
	MaxSteps int
	Workers  int
	// BaseSeed offsets the per-episode rng seeds. Episode i of every
	// multiplier starts from the same seed so the curves share initial
	// states.
	BaseSeed int64
}

// Result pairs every multiplier with the mean return measured for it.
type Result struct {
	Multipliers []float64
	MeanReturns []float64
	StdReturns  []float64
}

// Reporter receives progress notifications. SeedDone may be called from
// several goroutines at once.
type Reporter interface {
	StartMultiplier(index int, multiplier float64, seeds int)
	SeedDone()
	FinishMultiplier(index int, meanReturn float64)
}

type nopReporter struct{}

func (nopReporter) StartMultiplier(int, float64, int) {}
func (nopReporter) SeedDone()                         {}
func (nopReporter) FinishMultiplier(int, float64)     {}

// Multipliers returns n values spaced evenly in log10 between
// 10^startExp and 10^endExp inclusive.
func Multipliers(startExp, endExp float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{math.Pow(10, startExp)}
	}
	return floats.LogSpan(make([]float64, n), math.Pow(10, startExp), math.Pow(10, endExp))
}

// Run evaluates p for every multiplier and returns one mean return per
// multiplier, in order.
func Run(ctx context.Context, p Predictor, multipliers []float64, cfg Config, rep Reporter) (Result, error) {
	if p == nil {
		return Result{}, errors.New("sweep needs a policy")
	}
	if cfg.Seeds <= 0 {
		return Result{}, errors.New("seeds must be > 0")
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = cartpole.MaxSteps()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if rep == nil {
		rep = nopReporter{}
	}
	logger := logging.New("sweep")

	res := Result{
		Multipliers: append([]float64(nil), multipliers...),
		MeanReturns: make([]float64, 0, len(multipliers)),
		StdReturns:  make([]float64, 0, len(multipliers)),
	}
	for i, dt := range multipliers {
		rep.StartMultiplier(i, dt, cfg.Seeds)
		returns, err := evaluate(ctx, p, dt, cfg, rep)
		if err != nil {
			return Result{}, fmt.Errorf("dt_multip %g: %w", dt, err)
		}
		mean, std := stat.MeanStdDev(returns, nil)
		if len(returns) == 1 {
			std = 0
		}
		res.MeanReturns = append(res.MeanReturns, mean)
		res.StdReturns = append(res.StdReturns, std)
		rep.FinishMultiplier(i, mean)
		logger.Info("evaluated", "dt_multip", dt, "mean_return", mean, "std_return", std, "seeds", cfg.Seeds)
	}
	return res, nil
}

func evaluate(ctx context.Context, p Predictor, dt float64, cfg Config, rep Reporter) ([]float64, error) {
	if _, err := cartpole.NewEnv(rand.New(rand.NewSource(0)), dt); err != nil {
		return nil, err
	}
	returns := make([]float64, cfg.Seeds)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for seed := 0; seed < cfg.Seeds; seed++ {
		seed := seed
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			env, err := cartpole.NewEnv(rand.New(rand.NewSource(cfg.BaseSeed+int64(seed))), dt)
			if err != nil {
				return err
			}
			returns[seed] = Episode(p, env, cfg.MaxSteps)
			rep.SeedDone()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return returns, nil
}

// Episode plays one episode from the env's current reset state with
// greedy actions and returns its undiscounted return.
func Episode(p Predictor, env *cartpole.Env, maxSteps int) float64 {
	obs := env.Observation()
	var ret float64
	for step := 0; step < maxSteps; step++ {
		state, reward, terminated, truncated := env.Step(p.Predict(obs))
		ret += reward
		if terminated || truncated {
			break
		}
		obs = state.Vector()
	}
	return ret
}
