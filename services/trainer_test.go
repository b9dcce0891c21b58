package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"testing"

	"github.com/charangentem-coder/rental-price-predictor/artifact"
	"github.com/charangentem-coder/rental-price-predictor/forest"
	"github.com/charangentem-coder/rental-price-predictor/models"
)

var (
	testCities      = []string{"Mumbai", "Pune", "Bangalore", "Delhi"}
	testLocations   = []string{"Central", "North", "South", "East", "West"}
	testFurnishings = []string{"Furnished", "Semi-Furnished", "Unfurnished"}
)

// syntheticDataset builds n records whose rent depends on size, city and
// furnishing, so a fitted model has real signal to find.
func syntheticDataset(n int) []*models.RawRecord {
	records := make([]*models.RawRecord, n)
	for i := 0; i < n; i++ {
		city := i % len(testCities)
		furnishing := (i / 3) % len(testFurnishings)
		bhk := 1 + i%4
		size := 400 + float64(bhk)*250 + float64((i*37)%200)
		records[i] = &models.RawRecord{
			PropertyID:  fmt.Sprintf("P%04d", i),
			City:        testCities[city],
			Location:    testLocations[(i*7)%len(testLocations)],
			BHK:         bhk,
			SizeSqft:    size,
			Bathrooms:   1 + i%3,
			Floor:       i % 12,
			TotalFloors: 12,
			Furnishing:  testFurnishings[furnishing],
			PropertyAge: (i * 3) % 25,
			Parking:     i % 3,
			Rent:        size*20 + float64(city)*8000 + float64(2-furnishing)*3000,
		}
	}
	return records
}

func fastTrainer() *Trainer {
	p := forest.DefaultParams()
	p.NTrees = 12
	return NewTrainer(newTestLogger(), p, 4)
}

func TestSplitSizesAndDeterminism(t *testing.T) {
	train, test, err := Split(100, 0.2, 42)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(test) != 20 || len(train) != 80 {
		t.Fatalf("sizes: got %d/%d, want 80/20", len(train), len(test))
	}

	_, again, _ := Split(100, 0.2, 42)
	if !slices.Equal(test, again) {
		t.Errorf("test indices differ across runs: %v vs %v", test, again)
	}

	seen := make(map[int]bool)
	for _, i := range append(slices.Clone(train), test...) {
		if seen[i] {
			t.Fatalf("index %d appears twice", i)
		}
		seen[i] = true
	}
	if len(seen) != 100 {
		t.Errorf("partition covers %d indices, want 100", len(seen))
	}

	_, other, _ := Split(100, 0.2, 43)
	if slices.Equal(test, other) {
		t.Error("different seeds produced the same test partition")
	}
}

func TestSplitRoundsUp(t *testing.T) {
	tests := []struct {
		n        int
		fraction float64
		wantTest int
	}{
		{10, 0.3, 3},
		{10, 0.25, 3},
		{7, 0.2, 2},
		{2, 0.5, 1},
	}
	for _, tt := range tests {
		_, test, err := Split(tt.n, tt.fraction, 1)
		if err != nil {
			t.Errorf("Split(%d, %v): %v", tt.n, tt.fraction, err)
			continue
		}
		if len(test) != tt.wantTest {
			t.Errorf("Split(%d, %v): test size %d, want %d", tt.n, tt.fraction, len(test), tt.wantTest)
		}
	}
}

func TestSplitInsufficientData(t *testing.T) {
	for _, n := range []int{0, 1} {
		if _, _, err := Split(n, 0.2, 42); !errors.Is(err, models.ErrInsufficientData) {
			t.Errorf("Split(%d): got %v, want ErrInsufficientData", n, err)
		}
	}
	if _, _, err := Split(2, 0.99, 42); !errors.Is(err, models.ErrInsufficientData) {
		t.Errorf("empty train partition: got %v, want ErrInsufficientData", err)
	}
	if _, _, err := Split(10, 0, 42); err == nil {
		t.Error("zero fraction: expected error")
	}
}

func TestTrainDeterministic(t *testing.T) {
	data := syntheticDataset(100)
	ctx := context.Background()

	a1, m1, err := fastTrainer().Train(ctx, data, 0.2, 42)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	a2, m2, err := NewTrainer(newTestLogger(), a1.Estimator.Params, 1).Train(ctx, data, 0.2, 42)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	b1, _ := artifact.Serialize(a1)
	b2, _ := artifact.Serialize(a2)
	if !bytes.Equal(b1, b2) {
		t.Error("artifacts from identical runs differ")
	}
	if !reflect.DeepEqual(m1, m2) {
		t.Errorf("metrics differ: %+v vs %+v", m1, m2)
	}
}

func TestTrainProducesUsefulModel(t *testing.T) {
	out, err := fastTrainer().Run(context.Background(), syntheticDataset(200), 0.2, 42)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	m := out.Metrics
	if m.TrainSize != 160 || m.TestSize != 40 {
		t.Errorf("sizes: got %d/%d, want 160/40", m.TrainSize, m.TestSize)
	}
	if m.RSquared < 0.5 {
		t.Errorf("R²: got %.4f, want >= 0.5", m.RSquared)
	}
	if m.RootMeanSquaredError < m.MeanAbsoluteError {
		t.Errorf("RMSE %.2f below MAE %.2f", m.RootMeanSquaredError, m.MeanAbsoluteError)
	}
	if len(out.Holdout) != 40 {
		t.Errorf("holdout rows: got %d, want 40", len(out.Holdout))
	}
	if err := out.Artifact.Validate(); err != nil {
		t.Errorf("artifact invalid: %v", err)
	}
}

func TestTrainSchemaFromTrainPartitionOnly(t *testing.T) {
	data := syntheticDataset(50)
	trainIdx, testIdx, _ := Split(len(data), 0.2, 42)
	// A city that only occurs in the test partition must stay out of the schema.
	data[testIdx[0]].City = "Goa"

	a, _, err := fastTrainer().Train(context.Background(), data, 0.2, 42)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	city := a.Schema.Categorical[0]
	if city.Index("Goa") >= 0 {
		t.Error("test-only category leaked into the schema")
	}

	var sum float64
	for _, i := range trainIdx {
		sum += data[i].SizeSqft
	}
	mean := sum / float64(len(trainIdx))
	if got := a.Transformer.Numeric[1].Mean; math.Abs(got-mean) > 1e-9 {
		t.Errorf("Size_sqft mean: got %v, want train-only mean %v", got, mean)
	}
}

func TestTrainInsufficientData(t *testing.T) {
	_, _, err := fastTrainer().Train(context.Background(), syntheticDataset(1), 0.2, 42)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Errorf("Train: got %v, want ErrInsufficientData", err)
	}
}

func TestEvaluate(t *testing.T) {
	m := Evaluate([]float64{2, 4, 6}, []float64{1, 4, 8})
	if math.Abs(m.MeanAbsoluteError-1) > 1e-12 {
		t.Errorf("MAE: got %v, want 1", m.MeanAbsoluteError)
	}
	if want := math.Sqrt(5.0 / 3.0); math.Abs(m.RootMeanSquaredError-want) > 1e-12 {
		t.Errorf("RMSE: got %v, want %v", m.RootMeanSquaredError, want)
	}
	// mean 13/3, SS_tot = 100/9 + 1/9 + 121/9 = 222/9, SS_res = 5
	if want := 1 - 5/(222.0/9.0); math.Abs(m.RSquared-want) > 1e-12 {
		t.Errorf("R²: got %v, want %v", m.RSquared, want)
	}

	if got := Evaluate([]float64{3, 3}, []float64{3, 3}).RSquared; got != 1 {
		t.Errorf("perfect constant fit R²: got %v, want 1", got)
	}
	if got := Evaluate([]float64{2, 4}, []float64{3, 3}).RSquared; got != 0 {
		t.Errorf("imperfect constant fit R²: got %v, want 0", got)
	}
}
