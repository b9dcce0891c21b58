package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/charangentem-coder/rental-price-predictor/models"
)

// CSVWriter writes held-out predictions to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{"property_id", "actual_rent", "predicted_rent", "abs_error"}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteHoldout appends the evaluated test rows.
func (c *CSVWriter) WriteHoldout(rows []models.HoldoutPrediction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range rows {
		diff := r.Predicted - r.Actual
		if diff < 0 {
			diff = -diff
		}
		row := []string{
			r.PropertyID,
			strconv.FormatFloat(r.Actual, 'f', -1, 64),
			strconv.FormatFloat(r.Predicted, 'f', 2, 64),
			strconv.FormatFloat(diff, 'f', 2, 64),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
