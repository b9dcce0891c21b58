package storage

import (
	"context"

	"github.com/charangentem-coder/rental-price-predictor/models"
)

// RecordReader is the interface any training dataset source must satisfy.
type RecordReader interface {
	ReadAll(ctx context.Context) ([]*models.RawRecord, error)
}

// RecordWriter persists historical records and reports how many were stored.
type RecordWriter interface {
	WriteRecords(ctx context.Context, records []*models.RawRecord) (int, error)
	ReplaceRecords(ctx context.Context, records []*models.RawRecord) (int, error)
	Close() error
}

// ArtifactReader fetches a serialized model artifact by location.
type ArtifactReader interface {
	Read(ctx context.Context, location string) ([]byte, error)
}

// ArtifactWriter stores a serialized model artifact, replacing any previous
// artifact at the same location as a whole.
type ArtifactWriter interface {
	Write(ctx context.Context, location string, data []byte) error
}

// ArtifactStore reads and writes artifacts.
type ArtifactStore interface {
	ArtifactReader
	ArtifactWriter
}

// RunRecorder keeps the history of training runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.TrainingRun) error
}
