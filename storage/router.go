package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/charangentem-coder/rental-price-predictor/utils"
)

// Router picks the artifact backend from the location: gs:// goes to GCS,
// everything else to the local filesystem. The GCS client is created on
// first use. Reads are retried with exponential back-off unless the
// artifact does not exist.
type Router struct {
	files  ArtifactStore
	retry  *utils.RetryConfig
	logger *utils.Logger

	gcsOnce sync.Once
	gcs     ArtifactStore
	gcsErr  error
}

// NewRouter creates a Router retrying reads up to maxRetries times.
func NewRouter(logger *utils.Logger, maxRetries int) *Router {
	return &Router{
		files:  NewFileStore(),
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   500 * time.Millisecond,
			Logger:      logger,
			Retryable:   retryableRead,
		},
	}
}

func (r *Router) Read(ctx context.Context, location string) ([]byte, error) {
	store, err := r.backend(ctx, location)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = r.retry.Do(ctx, "read-artifact", func() error {
		var readErr error
		data, readErr = store.Read(ctx, location)
		return readErr
	})
	return data, err
}

func (r *Router) Write(ctx context.Context, location string, data []byte) error {
	store, err := r.backend(ctx, location)
	if err != nil {
		return err
	}
	return store.Write(ctx, location, data)
}

func (r *Router) backend(ctx context.Context, location string) (ArtifactStore, error) {
	if !isGCSLocation(location) {
		return r.files, nil
	}
	r.gcsOnce.Do(func() {
		if r.gcs != nil {
			return
		}
		r.logger.Info("[storage] Connecting to Google Cloud Storage")
		store, err := NewGCSStore(ctx)
		if err != nil {
			r.gcsErr = err
			return
		}
		r.gcs = store
	})
	return r.gcs, r.gcsErr
}

// Close releases the GCS client if one was created.
func (r *Router) Close() error {
	if c, ok := r.gcs.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func retryableRead(err error) bool {
	return !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, gcs.ErrObjectNotExist)
}
