package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/charangentem-coder/rental-price-predictor/artifact"
	"github.com/charangentem-coder/rental-price-predictor/features"
	"github.com/charangentem-coder/rental-price-predictor/models"
	"github.com/charangentem-coder/rental-price-predictor/storage"
	"github.com/charangentem-coder/rental-price-predictor/utils"
)

var errNilRecord = errors.New("predictor: nil record")

// Handle is a loaded, immutable model. It is safe for concurrent use.
type Handle struct {
	artifact    *artifact.ModelArtifact
	location    string
	fingerprint string
	logger      *utils.Logger
}

// Location is where the artifact was loaded from.
func (h *Handle) Location() string { return h.location }

// Fingerprint is the content-derived ID of the loaded artifact.
func (h *Handle) Fingerprint() string { return h.fingerprint }

// Artifact exposes the loaded artifact. Callers must not modify it.
func (h *Handle) Artifact() *artifact.ModelArtifact { return h.artifact }

// Estimate encodes the record with the frozen transformer and runs the
// ensemble. Categorical values outside the trained basis are reported as
// warnings and logged; they never fail the prediction.
func (h *Handle) Estimate(r *models.RawRecord) (*models.Estimate, error) {
	if h == nil || h.artifact == nil {
		return nil, models.ErrModelNotLoaded
	}
	if r == nil {
		return nil, errNilRecord
	}
	a := h.artifact

	warnings := features.Inspect(r, &a.Transformer)
	for _, w := range warnings {
		h.logger.Warn("[predictor] Degraded prediction: %s", w)
	}

	vec := features.Transform(r, &a.Transformer, &a.Schema)
	return &models.Estimate{Rent: a.Estimator.Predict(vec), Warnings: warnings}, nil
}

// Predict returns the rent estimate for one record.
func Predict(h *Handle, r *models.RawRecord) (float64, error) {
	est, err := h.Estimate(r)
	if err != nil {
		return 0, err
	}
	return est.Rent, nil
}

// Loader loads artifacts at most once per location and hands out the
// cached Handle afterwards. Concurrent first calls share a single read.
// Failed loads are not cached.
type Loader struct {
	store  storage.ArtifactReader
	logger *utils.Logger
	group  singleflight.Group

	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewLoader creates a Loader reading from store.
func NewLoader(store storage.ArtifactReader, logger *utils.Logger) *Loader {
	return &Loader{store: store, logger: logger, handles: make(map[string]*Handle)}
}

// LoadOnce returns the Handle for location, reading and validating the
// artifact only on the first successful call.
func (l *Loader) LoadOnce(ctx context.Context, location string) (*Handle, error) {
	if h := l.cached(location); h != nil {
		return h, nil
	}

	// The shared read must not fail for every waiter because the first
	// caller gave up.
	readCtx := context.WithoutCancel(ctx)
	v, err, _ := l.group.Do(location, func() (interface{}, error) {
		if h := l.cached(location); h != nil {
			return h, nil
		}
		h, err := l.load(readCtx, location)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.handles[location] = h
		l.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Loaded returns the cached Handle for location or ErrModelNotLoaded.
func (l *Loader) Loaded(location string) (*Handle, error) {
	if h := l.cached(location); h != nil {
		return h, nil
	}
	return nil, models.ErrModelNotLoaded
}

func (l *Loader) cached(location string) *Handle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.handles[location]
}

func (l *Loader) load(ctx context.Context, location string) (*Handle, error) {
	l.logger.Info("[loader] Loading model artifact from %s", location)
	data, err := l.store.Read(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	a, err := artifact.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", location, err)
	}
	id := a.Fingerprint()
	l.logger.Info("[loader] Model %s ready (%d trees, %d features)",
		id, len(a.Estimator.Trees), a.Schema.Width())
	return &Handle{artifact: a, location: location, fingerprint: id.String(), logger: l.logger}, nil
}

// ParseRecord builds a RawRecord from loosely typed input such as a decoded
// JSON object. Keys match the dataset column names case-insensitively
// ("City", "size_sqft", ...). Only presence and primitive types are checked;
// ranges are left to the caller. Property_ID is optional and Rent ignored.
// Two keys naming the same column yield a DuplicateFieldError.
func ParseRecord(fields map[string]interface{}) (models.RawRecord, error) {
	norm := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, dup := norm[key]; dup {
			return models.RawRecord{}, &models.DuplicateFieldError{Field: columnName(key)}
		}
		norm[key] = v
	}
	p := fieldParser{fields: norm}

	rec := models.RawRecord{
		City:        p.text(models.ColCity),
		Location:    p.text(models.ColLocation),
		BHK:         p.integer(models.ColBHK),
		SizeSqft:    p.number(models.ColSizeSqft),
		Bathrooms:   p.integer(models.ColBathrooms),
		Floor:       p.integer(models.ColFloor),
		TotalFloors: p.integer(models.ColTotalFloors),
		Furnishing:  p.text(models.ColFurnishing),
		PropertyAge: p.integer(models.ColPropertyAge),
		Parking:     p.integer(models.ColParking),
	}
	if id, ok := norm[strings.ToLower(models.ColPropertyID)].(string); ok {
		rec.PropertyID = id
	}
	if p.err != nil {
		return models.RawRecord{}, p.err
	}
	return rec, nil
}

// columnName maps a lower-cased key back to its dataset column name.
func columnName(key string) string {
	for _, cols := range [][]string{models.CategoricalColumns, models.NumericColumns, {models.ColPropertyID, models.ColRent}} {
		for _, col := range cols {
			if strings.ToLower(col) == key {
				return col
			}
		}
	}
	return key
}

type fieldParser struct {
	fields map[string]interface{}
	err    error
}

func (p *fieldParser) get(col string) (interface{}, bool) {
	if p.err != nil {
		return nil, false
	}
	v, ok := p.fields[strings.ToLower(col)]
	if !ok || v == nil {
		p.err = &models.MissingFieldError{Field: col}
		return nil, false
	}
	return v, true
}

func (p *fieldParser) text(col string) string {
	v, ok := p.get(col)
	if !ok {
		return ""
	}
	s, isString := v.(string)
	if !isString {
		p.err = &models.FieldTypeError{Field: col, Want: "string"}
	}
	return s
}

func (p *fieldParser) number(col string) float64 {
	v, ok := p.get(col)
	if !ok {
		return 0
	}
	f, isNumber := toFloat(v)
	if !isNumber {
		p.err = &models.FieldTypeError{Field: col, Want: "number"}
	}
	return f
}

func (p *fieldParser) integer(col string) int {
	v, ok := p.get(col)
	if !ok {
		return 0
	}
	f, isNumber := toFloat(v)
	if !isNumber || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		p.err = &models.FieldTypeError{Field: col, Want: "integer"}
		return 0
	}
	return int(f)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
