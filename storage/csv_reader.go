package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charangentem-coder/rental-price-predictor/models"
	"github.com/charangentem-coder/rental-price-predictor/utils"
)

// datasetColumns are the columns a training CSV must carry, in any order.
var datasetColumns = []string{
	models.ColPropertyID, models.ColCity, models.ColLocation, models.ColBHK,
	models.ColSizeSqft, models.ColBathrooms, models.ColFloor, models.ColTotalFloors,
	models.ColFurnishing, models.ColPropertyAge, models.ColParking, models.ColRent,
}

// CSVReader loads historical rental records from a CSV file with a header row.
// Rows whose cells cannot be parsed are skipped with a warning.
type CSVReader struct {
	path   string
	logger *utils.Logger
}

// NewCSVReader creates a reader for the dataset at path.
func NewCSVReader(path string, logger *utils.Logger) *CSVReader {
	return &CSVReader{path: path, logger: logger}
}

// ReadAll parses every data row of the file.
func (c *CSVReader) ReadAll(ctx context.Context) ([]*models.RawRecord, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", c.path, err)
	}
	defer f.Close()

	records, err := c.read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("csv: %q: %w", c.path, err)
	}
	return records, nil
}

func (c *CSVReader) read(ctx context.Context, src io.Reader) ([]*models.RawRecord, error) {
	r := csv.NewReader(src)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range datasetColumns {
		if _, ok := pos[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var (
		records []*models.RawRecord
		skipped int
		line    = 1
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec, err := parseRow(row, pos)
		if err != nil {
			skipped++
			c.logger.Warn("[csv] Skipping line %d: %v", line, err)
			continue
		}
		records = append(records, rec)
	}

	c.logger.Info("[csv] Loaded %d records from %s (skipped %d)", len(records), c.path, skipped)
	return records, nil
}

func parseRow(row []string, pos map[string]int) (*models.RawRecord, error) {
	p := rowParser{row: row, pos: pos}
	rec := &models.RawRecord{
		PropertyID:  p.textCell(models.ColPropertyID),
		City:        p.textCell(models.ColCity),
		Location:    p.textCell(models.ColLocation),
		BHK:         p.intCell(models.ColBHK),
		SizeSqft:    p.floatCell(models.ColSizeSqft),
		Bathrooms:   p.intCell(models.ColBathrooms),
		Floor:       p.intCell(models.ColFloor),
		TotalFloors: p.intCell(models.ColTotalFloors),
		Furnishing:  p.textCell(models.ColFurnishing),
		PropertyAge: p.intCell(models.ColPropertyAge),
		Parking:     p.intCell(models.ColParking),
		Rent:        p.floatCell(models.ColRent),
	}
	return rec, p.err
}

// rowParser records the first failure and keeps going, so parseRow reads flat.
type rowParser struct {
	row []string
	pos map[string]int
	err error
}

func (p *rowParser) cell(col string) string {
	i := p.pos[col]
	if i >= len(p.row) {
		if p.err == nil {
			p.err = &models.MissingFieldError{Field: col}
		}
		return ""
	}
	return strings.TrimSpace(p.row[i])
}

func (p *rowParser) textCell(col string) string {
	return p.cell(col)
}

func (p *rowParser) intCell(col string) int {
	raw := p.cell(col)
	n, err := strconv.Atoi(raw)
	if err != nil {
		// Integral floats such as "2.0" are common in exported datasets.
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int(f)) {
			p.fail(col, "integer")
			return 0
		}
		n = int(f)
	}
	return n
}

func (p *rowParser) floatCell(col string) float64 {
	f, err := strconv.ParseFloat(p.cell(col), 64)
	if err != nil {
		p.fail(col, "number")
	}
	return f
}

func (p *rowParser) fail(col, want string) {
	if p.err == nil {
		p.err = &models.FieldTypeError{Field: col, Want: want}
	}
}
