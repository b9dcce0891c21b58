package models

import "time"

// RawRecord is one property observation, either read from the historical
// dataset or built from user input at inference time.
// Rent is only meaningful for training records.
type RawRecord struct {
	PropertyID  string
	City        string
	Location    string
	BHK         int
	SizeSqft    float64
	Bathrooms   int
	Floor       int
	TotalFloors int
	Furnishing  string
	PropertyAge int
	Parking     int
	Rent        float64
}

// Column names as they appear in the source dataset.
const (
	ColPropertyID  = "Property_ID"
	ColCity        = "City"
	ColLocation    = "Location"
	ColBHK         = "BHK"
	ColSizeSqft    = "Size_sqft"
	ColBathrooms   = "Bathrooms"
	ColFloor       = "Floor"
	ColTotalFloors = "Total_Floors"
	ColFurnishing  = "Furnishing"
	ColPropertyAge = "Property_Age"
	ColParking     = "Parking"
	ColRent        = "Rent"
)

// NumericColumns lists the standardized feature columns in vector order.
var NumericColumns = []string{
	ColBHK, ColSizeSqft, ColBathrooms, ColFloor, ColTotalFloors, ColPropertyAge, ColParking,
}

// CategoricalColumns lists the one-hot encoded feature columns in vector order.
var CategoricalColumns = []string{ColCity, ColLocation, ColFurnishing}

// Numeric returns the value of a numeric feature column.
func (r *RawRecord) Numeric(col string) (float64, bool) {
	switch col {
	case ColBHK:
		return float64(r.BHK), true
	case ColSizeSqft:
		return r.SizeSqft, true
	case ColBathrooms:
		return float64(r.Bathrooms), true
	case ColFloor:
		return float64(r.Floor), true
	case ColTotalFloors:
		return float64(r.TotalFloors), true
	case ColPropertyAge:
		return float64(r.PropertyAge), true
	case ColParking:
		return float64(r.Parking), true
	}
	return 0, false
}

// Categorical returns the value of a categorical feature column.
func (r *RawRecord) Categorical(col string) (string, bool) {
	switch col {
	case ColCity:
		return r.City, true
	case ColLocation:
		return r.Location, true
	case ColFurnishing:
		return r.Furnishing, true
	}
	return "", false
}

// EvaluationMetrics is the held-out evaluation of one training run.
type EvaluationMetrics struct {
	MeanAbsoluteError    float64 `json:"mean_absolute_error"`
	RootMeanSquaredError float64 `json:"root_mean_squared_error"`
	RSquared             float64 `json:"r2_score"`
	TrainSize            int     `json:"train_size"`
	TestSize             int     `json:"test_size"`
}

// Estimate is a single prediction together with any encoding degradations.
type Estimate struct {
	Rent     float64                  `json:"rent"`
	Warnings []UnknownCategoryWarning `json:"warnings,omitempty"`
}

// Degraded reports whether any categorical value fell outside the trained basis.
func (e *Estimate) Degraded() bool {
	return len(e.Warnings) > 0
}

// TrainingRun is the history entry written for every completed training run.
type TrainingRun struct {
	ID               string
	ArtifactID       string
	ArtifactLocation string
	Metrics          EvaluationMetrics
	NTrees           int
	Seed             int64
	TestFraction     float64
	CreatedAt        time.Time
}

// HoldoutPrediction pairs a test-partition record with its prediction.
type HoldoutPrediction struct {
	PropertyID string
	Actual     float64
	Predicted  float64
}
