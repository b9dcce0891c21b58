package features

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/charangentem-coder/rental-price-predictor/models"
)

func sampleRecords() []*models.RawRecord {
	return []*models.RawRecord{
		{City: "Mumbai", Location: "Andheri", BHK: 2, SizeSqft: 850, Bathrooms: 2, Floor: 3, TotalFloors: 10, Furnishing: "Furnished", PropertyAge: 5, Parking: 1, Rent: 45000},
		{City: "Pune", Location: "Baner", BHK: 1, SizeSqft: 600, Bathrooms: 1, Floor: 1, TotalFloors: 4, Furnishing: "Unfurnished", PropertyAge: 10, Parking: 1, Rent: 18000},
		{City: "Bangalore", Location: "Whitefield", BHK: 3, SizeSqft: 1400, Bathrooms: 3, Floor: 7, TotalFloors: 12, Furnishing: "Semi-Furnished", PropertyAge: 2, Parking: 1, Rent: 38000},
		{City: "Mumbai", Location: "Bandra", BHK: 3, SizeSqft: 1200, Bathrooms: 2, Floor: 9, TotalFloors: 20, Furnishing: "Furnished", PropertyAge: 8, Parking: 1, Rent: 95000},
	}
}

func TestBuildSchemaSortedDistinct(t *testing.T) {
	s, err := BuildSchema(sampleRecords())
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}

	want := map[string][]string{
		models.ColCity:       {"Bangalore", "Mumbai", "Pune"},
		models.ColLocation:   {"Andheri", "Bandra", "Baner", "Whitefield"},
		models.ColFurnishing: {"Furnished", "Semi-Furnished", "Unfurnished"},
	}
	for _, c := range s.Categorical {
		if !slices.Equal(c.Values, want[c.Name]) {
			t.Errorf("%s: got %v, want %v", c.Name, c.Values, want[c.Name])
		}
	}
	if !slices.Equal(s.Numeric, models.NumericColumns) {
		t.Errorf("numeric: got %v, want %v", s.Numeric, models.NumericColumns)
	}
	if got, want := s.Width(), 7+3+4+3; got != want {
		t.Errorf("Width: got %d, want %d", got, want)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuildSchemaEmpty(t *testing.T) {
	if _, err := BuildSchema(nil); !errors.Is(err, models.ErrEmptyDataset) {
		t.Errorf("BuildSchema(nil): got %v, want ErrEmptyDataset", err)
	}
}

func TestFitStatistics(t *testing.T) {
	records := sampleRecords()
	s, _ := BuildSchema(records)
	st, err := Fit(records, s)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// BHK: 2,1,3,3 -> mean 2.25, population variance 0.6875
	bhk := st.Numeric[0]
	if bhk.Column != models.ColBHK {
		t.Fatalf("first numeric column: got %s, want %s", bhk.Column, models.ColBHK)
	}
	if math.Abs(bhk.Mean-2.25) > 1e-12 {
		t.Errorf("BHK mean: got %v, want 2.25", bhk.Mean)
	}
	if math.Abs(bhk.StdDev-math.Sqrt(0.6875)) > 1e-12 {
		t.Errorf("BHK std: got %v, want %v", bhk.StdDev, math.Sqrt(0.6875))
	}
	if err := st.Matches(s); err != nil {
		t.Errorf("Matches: %v", err)
	}
}

func TestOneHotKnownAndUnknown(t *testing.T) {
	schema := &Schema{
		Categorical: []CategoricalColumn{
			{Name: models.ColFurnishing, Values: []string{"Semi-Furnished", "Furnished", "Unfurnished"}},
		},
	}
	st := &State{Categorical: schema.Categorical}

	tests := []struct {
		furnishing string
		want       Vector
	}{
		{"Furnished", Vector{0, 1, 0}},
		{"Semi-Furnished", Vector{1, 0, 0}},
		{"Luxury", Vector{0, 0, 0}},
	}
	for _, tt := range tests {
		got := Transform(&models.RawRecord{Furnishing: tt.furnishing}, st, schema)
		if !slices.Equal(got, tt.want) {
			t.Errorf("Transform(%q) = %v; want %v", tt.furnishing, got, tt.want)
		}
	}

	warnings := Inspect(&models.RawRecord{Furnishing: "Luxury"}, st)
	if len(warnings) != 1 || warnings[0].Value != "Luxury" {
		t.Errorf("Inspect: got %v, want one warning for Luxury", warnings)
	}
}

func TestConstantColumnEncodesToZero(t *testing.T) {
	records := sampleRecords()
	s, _ := BuildSchema(records)
	st, _ := Fit(records, s)

	// Parking is 1 everywhere.
	parking := st.Numeric[6]
	if parking.StdDev != 0 {
		t.Fatalf("Parking std: got %v, want 0", parking.StdDev)
	}
	for _, v := range []float64{0, 1, 7, -3} {
		if got := parking.Scale(v); got != 0 {
			t.Errorf("Scale(%v) = %v; want 0", v, got)
		}
	}

	vec := Transform(&models.RawRecord{Parking: 4, City: "Mumbai"}, st, s)
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("vec[%d] = %v; want finite", i, v)
		}
	}
}

func TestTransformIsPure(t *testing.T) {
	records := sampleRecords()
	s, _ := BuildSchema(records)
	st, _ := Fit(records, s)

	r := records[2]
	a := Transform(r, st, s)
	b := Transform(r, st, s)
	if !slices.Equal(a, b) {
		t.Errorf("Transform not deterministic: %v vs %v", a, b)
	}
	if len(a) != s.Width() {
		t.Errorf("len: got %d, want %d", len(a), s.Width())
	}
	if len(s.FeatureNames()) != len(a) {
		t.Errorf("FeatureNames: got %d names, want %d", len(s.FeatureNames()), len(a))
	}
}

func TestMatchesDetectsDrift(t *testing.T) {
	records := sampleRecords()
	s, _ := BuildSchema(records)
	st, _ := Fit(records, s)

	st.Categorical[0].Values = []string{"Mumbai"}
	if err := st.Matches(s); err == nil {
		t.Error("Matches: expected error for a basis that differs from the schema")
	}
}
