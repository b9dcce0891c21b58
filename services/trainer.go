package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/charangentem-coder/rental-price-predictor/artifact"
	"github.com/charangentem-coder/rental-price-predictor/features"
	"github.com/charangentem-coder/rental-price-predictor/forest"
	"github.com/charangentem-coder/rental-price-predictor/models"
	"github.com/charangentem-coder/rental-price-predictor/utils"
)

// TrainingOutcome is everything one training run produces.
type TrainingOutcome struct {
	Artifact *artifact.ModelArtifact
	Metrics  models.EvaluationMetrics
	Holdout  []models.HoldoutPrediction
}

// Trainer fits the transformer and the tree ensemble and evaluates them on
// a held-out partition.
type Trainer struct {
	logger  *utils.Logger
	params  forest.Params
	workers int
}

// NewTrainer creates a Trainer. params.Seed is replaced by the seed passed
// to each run; workers bounds the number of trees fitted concurrently.
func NewTrainer(logger *utils.Logger, params forest.Params, workers int) *Trainer {
	return &Trainer{logger: logger, params: params, workers: workers}
}

// Train returns the model artifact and its held-out metrics.
func (t *Trainer) Train(ctx context.Context, dataset []*models.RawRecord, testFraction float64, seed int64) (*artifact.ModelArtifact, *models.EvaluationMetrics, error) {
	out, err := t.Run(ctx, dataset, testFraction, seed)
	if err != nil {
		return nil, nil, err
	}
	return out.Artifact, &out.Metrics, nil
}

// Run performs a full training run. The same dataset, fraction and seed
// always yield the same artifact and metrics.
func (t *Trainer) Run(ctx context.Context, dataset []*models.RawRecord, testFraction float64, seed int64) (*TrainingOutcome, error) {
	trainIdx, testIdx, err := Split(len(dataset), testFraction, seed)
	if err != nil {
		return nil, err
	}
	train := pick(dataset, trainIdx)
	test := pick(dataset, testIdx)
	t.logger.Info("[trainer] Split %d records: %d train / %d test (seed %d)",
		len(dataset), len(train), len(test), seed)

	schema, err := features.BuildSchema(train)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	state, err := features.Fit(train, schema)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	t.logger.Debug("[trainer] Encoded width: %d features", schema.Width())

	params := t.params
	params.Seed = seed
	t.logger.Info("[trainer] Fitting %d trees (max depth %d, min split %d, min leaf %d)",
		params.NTrees, params.MaxDepth, params.MinSamplesSplit, params.MinSamplesLeaf)
	est, err := forest.Fit(ctx, features.TransformAll(train, state, schema), targets(train), params, t.workers)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}

	unseen := 0
	for _, r := range test {
		unseen += len(features.Inspect(r, state))
	}
	if unseen > 0 {
		t.logger.Debug("[trainer] %d categorical values in the test partition were not seen in training", unseen)
	}

	actual := targets(test)
	predicted := est.PredictAll(features.TransformAll(test, state, schema))
	metrics := Evaluate(predicted, actual)
	metrics.TrainSize = len(train)
	metrics.TestSize = len(test)

	holdout := make([]models.HoldoutPrediction, len(test))
	for i, r := range test {
		holdout[i] = models.HoldoutPrediction{PropertyID: r.PropertyID, Actual: actual[i], Predicted: predicted[i]}
	}

	t.logger.Info("[trainer] MAE %.2f | RMSE %.2f | R² %.4f",
		metrics.MeanAbsoluteError, metrics.RootMeanSquaredError, metrics.RSquared)

	return &TrainingOutcome{
		Artifact: artifact.New(schema, state, est),
		Metrics:  metrics,
		Holdout:  holdout,
	}, nil
}

// Split partitions n record indices. The permutation comes from a
// math/rand source seeded with seed; its first ceil(testFraction*n) entries
// form the test partition and the rest, in permuted order, the train
// partition.
func Split(n int, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 || math.IsNaN(testFraction) {
		return nil, nil, fmt.Errorf("trainer: test fraction %v outside (0, 1)", testFraction)
	}
	if n < 2 {
		return nil, nil, fmt.Errorf("trainer: %d records: %w", n, models.ErrInsufficientData)
	}

	// The epsilon keeps products such as 0.3*10 from rounding up a whole record.
	nTest := int(math.Ceil(testFraction*float64(n) - 1e-9))
	if nTest == 0 || nTest >= n {
		return nil, nil, fmt.Errorf("trainer: %d records with test fraction %v: %w",
			n, testFraction, models.ErrInsufficientData)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// Evaluate computes MAE, RMSE and R² of predicted against actual. When the
// actual values are constant R² is 1 for a perfect fit and 0 otherwise.
func Evaluate(predicted, actual []float64) models.EvaluationMetrics {
	if len(actual) == 0 {
		return models.EvaluationMetrics{}
	}
	n := float64(len(actual))
	m := models.EvaluationMetrics{
		MeanAbsoluteError:    floats.Distance(predicted, actual, 1) / n,
		RootMeanSquaredError: floats.Distance(predicted, actual, 2) / math.Sqrt(n),
	}

	if isConstant(actual) {
		if m.MeanAbsoluteError == 0 {
			m.RSquared = 1
		}
		return m
	}
	m.RSquared = stat.RSquaredFrom(predicted, actual, nil)
	return m
}

func isConstant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

func pick(records []*models.RawRecord, idx []int) []*models.RawRecord {
	out := make([]*models.RawRecord, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}

func targets(records []*models.RawRecord) []float64 {
	y := make([]float64, len(records))
	for i, r := range records {
		y[i] = r.Rent
	}
	return y
}
