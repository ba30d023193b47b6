package main

import (
	"context"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/sph/config"
	"github.com/pthm-cable/sph/game"
	"github.com/pthm-cable/sph/telemetry"
)

// failedFitness is returned for parameter sets the simulation rejects.
const failedFitness = 1e9

// Fitness component weights.
const (
	weightEnergy      = 1.0  // mean kinetic energy per particle once settled
	weightDensity     = 4.0  // mean relative density error once settled
	weightHeight      = 2.0  // coefficient of variation of mean height once settled
	weightInstability = 50.0 // degenerate + escaped particles per particle
	settledFraction   = 0.25 // trailing share of windows scored as settled
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int64
	seeds       []int64
	baseConfig  *config.Config
	statsWindow float64

	// Best run tracking
	mu             sync.Mutex
	bestFitness    float64
	bestWindows    []telemetry.WindowStats
	lastDensityErr float64 // settled density error from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: 0.25,
		bestFitness: math.Inf(1),
	}
}

// BestWindows returns the window stats of the best seed of the best evaluation.
func (fe *FitnessEvaluator) BestWindows() []telemetry.WindowStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestWindows
}

// LastDensityError returns the settled density error from the most recent evaluation.
func (fe *FitnessEvaluator) LastDensityError() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastDensityErr
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness    float64
	densityErr float64
	windows    []telemetry.WindowStats
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			windows, err := fe.runSimulation(x, s)
			if err != nil {
				results[idx] = seedResult{fitness: failedFitness}
				return
			}
			f, densityErr := computeFitness(windows)
			results[idx] = seedResult{fitness: f, densityErr: densityErr, windows: windows}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalDensity float64
	bestSeed := -1
	for i, r := range results {
		totalFitness += r.fitness
		totalDensity += r.densityErr
		if bestSeed < 0 || r.fitness < results[bestSeed].fitness {
			bestSeed = i
		}
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness && bestSeed >= 0 {
		fe.bestFitness = avgFitness
		fe.bestWindows = results[bestSeed].windows
	}
	fe.lastDensityErr = totalDensity / n
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single headless run and returns its windows.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) ([]telemetry.WindowStats, error) {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	var windows []telemetry.WindowStats
	g, err := game.NewGameWithOptions(game.Options{
		Config:         cfg,
		Seed:           seed,
		StatsWindowSec: fe.statsWindow,
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	if err != nil {
		return nil, err
	}
	defer g.Unload()

	ctx := context.Background()
	for g.Tick() < fe.maxTicks {
		if err := g.UpdateHeadless(ctx); err != nil {
			return nil, err
		}
	}
	return windows, nil
}

// copyConfig creates a copy of the base config. Every section is a value, so
// a struct copy is deep.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// computeFitness scores a run (lower = better) and returns the settled
// density error alongside.
func computeFitness(windows []telemetry.WindowStats) (fitness, densityErr float64) {
	if len(windows) == 0 {
		return failedFitness, 0
	}

	var unstable, particles int
	for _, w := range windows {
		unstable += w.Degenerate + w.Escaped
		particles = max(particles, w.Particles)
	}

	start := len(windows) - max(1, int(float64(len(windows))*settledFraction))
	settled := windows[start:]

	energy := make([]float64, len(settled))
	density := make([]float64, len(settled))
	height := make([]float64, len(settled))
	for i, w := range settled {
		energy[i] = w.KineticEnergy / float64(max(w.Particles, 1))
		density[i] = w.DensityError
		height[i] = w.MeanHeight
	}

	densityErr = stat.Mean(density, nil)
	fitness = weightEnergy*stat.Mean(energy, nil) +
		weightDensity*densityErr +
		weightHeight*cv(height) +
		weightInstability*float64(unstable)/float64(max(particles, 1))
	return fitness, densityErr
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if mean == 0 {
		return 0
	}
	return math.Abs(std / mean)
}
