// Package features holds the frozen feature schema and the preprocessing
// transformer that turns a RawRecord into a fixed-length numeric vector.
package features

import (
	"fmt"
	"sort"

	"github.com/charangentem-coder/rental-price-predictor/models"
)

// CategoricalColumn is a categorical column with its ordered basis of known values.
type CategoricalColumn struct {
	Name   string
	Values []string
}

// Index returns the basis position of value, or -1 when it is unknown.
func (c *CategoricalColumn) Index(value string) int {
	for i, v := range c.Values {
		if v == value {
			return i
		}
	}
	return -1
}

// Schema is the authoritative column layout of the encoded vector.
// It is frozen once training finishes.
type Schema struct {
	Numeric     []string
	Categorical []CategoricalColumn
}

// BuildSchema derives the schema from training records: the sorted set of
// distinct values for every categorical column.
func BuildSchema(records []*models.RawRecord) (*Schema, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("features: build schema: %w", models.ErrEmptyDataset)
	}

	s := &Schema{
		Numeric:     append([]string(nil), models.NumericColumns...),
		Categorical: make([]CategoricalColumn, 0, len(models.CategoricalColumns)),
	}

	for _, col := range models.CategoricalColumns {
		seen := make(map[string]struct{})
		for _, r := range records {
			v, _ := r.Categorical(col)
			seen[v] = struct{}{}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		s.Categorical = append(s.Categorical, CategoricalColumn{Name: col, Values: values})
	}
	return s, nil
}

// Width is the length of every vector encoded against this schema.
func (s *Schema) Width() int {
	n := len(s.Numeric)
	for _, c := range s.Categorical {
		n += len(c.Values)
	}
	return n
}

// FeatureNames labels each position of the encoded vector, e.g. "BHK" or
// "Furnishing=Furnished".
func (s *Schema) FeatureNames() []string {
	names := make([]string, 0, s.Width())
	names = append(names, s.Numeric...)
	for _, c := range s.Categorical {
		for _, v := range c.Values {
			names = append(names, c.Name+"="+v)
		}
	}
	return names
}

// Validate checks that every column is a known record column and that no
// categorical basis repeats a value.
func (s *Schema) Validate() error {
	var zero models.RawRecord
	for _, col := range s.Numeric {
		if _, ok := zero.Numeric(col); !ok {
			return fmt.Errorf("unknown numeric column %q", col)
		}
	}
	for _, c := range s.Categorical {
		if _, ok := zero.Categorical(c.Name); !ok {
			return fmt.Errorf("unknown categorical column %q", c.Name)
		}
		seen := make(map[string]struct{}, len(c.Values))
		for _, v := range c.Values {
			if _, dup := seen[v]; dup {
				return fmt.Errorf("column %q: duplicate value %q", c.Name, v)
			}
			seen[v] = struct{}{}
		}
	}
	return nil
}
