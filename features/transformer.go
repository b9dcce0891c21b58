package features

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/charangentem-coder/rental-price-predictor/models"
)

// Vector is an encoded record: standardized numeric values followed by the
// one-hot blocks of every categorical column.
type Vector []float64

// NumericStat holds the frozen standardization statistics of one column.
type NumericStat struct {
	Column string
	Mean   float64
	StdDev float64
}

// State is the fitted transformer. Statistics come from the training
// partition only and are never recomputed.
type State struct {
	Numeric     []NumericStat
	Categorical []CategoricalColumn
}

// Fit computes population mean and standard deviation for every numeric
// column and copies the categorical bases from the schema.
func Fit(records []*models.RawRecord, schema *Schema) (*State, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("features: fit: %w", models.ErrEmptyDataset)
	}

	st := &State{
		Numeric:     make([]NumericStat, 0, len(schema.Numeric)),
		Categorical: make([]CategoricalColumn, 0, len(schema.Categorical)),
	}

	values := make([]float64, len(records))
	for _, col := range schema.Numeric {
		for i, r := range records {
			v, ok := r.Numeric(col)
			if !ok {
				return nil, fmt.Errorf("features: fit: unknown numeric column %q", col)
			}
			values[i] = v
		}
		st.Numeric = append(st.Numeric, fitColumn(col, values))
	}

	for _, c := range schema.Categorical {
		st.Categorical = append(st.Categorical, CategoricalColumn{
			Name:   c.Name,
			Values: slices.Clone(c.Values),
		})
	}
	return st, nil
}

// fitColumn pins constant columns to an exact zero deviation so rounding in
// the mean can never produce a tiny, exploding divisor.
func fitColumn(col string, values []float64) NumericStat {
	constant := true
	for _, v := range values[1:] {
		if v != values[0] {
			constant = false
			break
		}
	}
	if constant {
		return NumericStat{Column: col, Mean: values[0], StdDev: 0}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return NumericStat{Column: col, Mean: mean, StdDev: std}
}

// Transform encodes a record. It is a pure function of its inputs; a
// categorical value outside the frozen basis yields an all-zero block.
func Transform(r *models.RawRecord, st *State, schema *Schema) Vector {
	vec := make(Vector, 0, schema.Width())

	for i, col := range schema.Numeric {
		raw, _ := r.Numeric(col)
		vec = append(vec, st.Numeric[i].Scale(raw))
	}

	for i, c := range schema.Categorical {
		basis := &st.Categorical[i]
		block := make([]float64, len(basis.Values))
		value, _ := r.Categorical(c.Name)
		if idx := basis.Index(value); idx >= 0 {
			block[idx] = 1
		}
		vec = append(vec, block...)
	}
	return vec
}

// TransformAll encodes every record in order, one matrix row per record.
func TransformAll(records []*models.RawRecord, st *State, schema *Schema) [][]float64 {
	out := make([][]float64, len(records))
	for i, r := range records {
		out[i] = Transform(r, st, schema)
	}
	return out
}

// Inspect lists the categorical values of r that fall outside the frozen basis.
func Inspect(r *models.RawRecord, st *State) []models.UnknownCategoryWarning {
	var warnings []models.UnknownCategoryWarning
	for i := range st.Categorical {
		basis := &st.Categorical[i]
		value, _ := r.Categorical(basis.Name)
		if basis.Index(value) < 0 {
			warnings = append(warnings, models.UnknownCategoryWarning{Column: basis.Name, Value: value})
		}
	}
	return warnings
}

// Scale standardizes a raw value. Zero deviation encodes to 0.
func (n NumericStat) Scale(raw float64) float64 {
	if n.StdDev == 0 {
		return 0
	}
	return (raw - n.Mean) / n.StdDev
}

// Matches checks that the state was fitted against schema: same numeric
// columns in the same order and identical categorical bases.
func (st *State) Matches(schema *Schema) error {
	if len(st.Numeric) != len(schema.Numeric) {
		return fmt.Errorf("numeric columns: state has %d, schema has %d", len(st.Numeric), len(schema.Numeric))
	}
	for i, n := range st.Numeric {
		if n.Column != schema.Numeric[i] {
			return fmt.Errorf("numeric column %d: state %q, schema %q", i, n.Column, schema.Numeric[i])
		}
		if n.StdDev < 0 {
			return fmt.Errorf("numeric column %q: negative deviation", n.Column)
		}
	}
	if len(st.Categorical) != len(schema.Categorical) {
		return fmt.Errorf("categorical columns: state has %d, schema has %d", len(st.Categorical), len(schema.Categorical))
	}
	for i, c := range st.Categorical {
		sc := schema.Categorical[i]
		if c.Name != sc.Name || !slices.Equal(c.Values, sc.Values) {
			return fmt.Errorf("categorical column %q: basis differs from schema", c.Name)
		}
	}
	return nil
}
