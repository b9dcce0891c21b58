// Package forest implements a bagged ensemble of regression trees.
//
// Fitting is deterministic for a given seed. A single master source seeded
// with Params.Seed draws one 63-bit seed per tree, in tree index order,
// before any tree is fitted. Tree i then consumes its own source in a fixed
// order: first n draws of Intn(n) for the bootstrap sample, then one feature
// permutation for every node that passes the stopping checks, visiting nodes
// depth-first, left child before right. Trees can therefore be fitted in
// parallel without changing the result.
package forest

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/charangentem-coder/rental-price-predictor/models"
	"github.com/charangentem-coder/rental-price-predictor/utils"
)

// Params configures the ensemble. MaxDepth <= 0 means unlimited depth and
// MaxFeatures <= 0 means every feature is considered at each split.
type Params struct {
	NTrees          int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Seed            int64
}

// DefaultParams mirrors the hyper-parameters the rent model has always used.
func DefaultParams() Params {
	return Params{
		NTrees:          100,
		MaxDepth:        20,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		Seed:            42,
	}
}

// Forest is a fitted ensemble. Prediction is the mean of all tree outputs.
type Forest struct {
	Params    Params
	NFeatures int
	Trees     []Tree
}

// Fit trains the ensemble on X (one row per sample) and y, running at most
// workers tree fits at once.
func Fit(ctx context.Context, X [][]float64, y []float64, p Params, workers int) (*Forest, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("forest: fit: %w", models.ErrEmptyDataset)
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("forest: fit: %d rows but %d targets", len(X), len(y))
	}
	if p.NTrees < 1 {
		return nil, fmt.Errorf("forest: fit: need at least one tree, got %d", p.NTrees)
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("forest: fit: row %d has %d features, want %d", i, len(row), width)
		}
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}

	master := rand.New(rand.NewSource(p.Seed))
	seeds := make([]int64, p.NTrees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	f := &Forest{Params: p, NFeatures: width, Trees: make([]Tree, p.NTrees)}

	pool := utils.NewWorkerPool(ctx, workers)
	for i := range seeds {
		pool.Submit(func(ctx context.Context) error {
			f.Trees[i] = fitTree(X, y, p, rand.New(rand.NewSource(seeds[i])))
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, fmt.Errorf("forest: fit: %w", err)
	}
	return f, nil
}

// Predict returns the ensemble estimate for one encoded vector.
func (f *Forest) Predict(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// PredictAll returns one estimate per row of X.
func (f *Forest) PredictAll(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = f.Predict(x)
	}
	return out
}

// Validate checks structural consistency of a decoded forest.
func (f *Forest) Validate() error {
	if f.NFeatures < 1 {
		return fmt.Errorf("forest has %d features", f.NFeatures)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	if len(f.Trees) != f.Params.NTrees {
		return fmt.Errorf("forest has %d trees, params say %d", len(f.Trees), f.Params.NTrees)
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
