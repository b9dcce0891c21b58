package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// GCSStore keeps artifacts in Google Cloud Storage under gs://bucket/object
// locations. Object writes are atomic on the GCS side.
type GCSStore struct {
	client *gcs.Client
}

// NewGCSStore creates a client using application default credentials.
func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: new client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

func (s *GCSStore) Read(ctx context.Context, location string) ([]byte, error) {
	bucket, object, err := parseGCSLocation(location)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: open %q: %w", location, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs: read %q: %w", location, err)
	}
	return data, nil
}

func (s *GCSStore) Write(ctx context.Context, location string, data []byte) error {
	bucket, object, err := parseGCSLocation(location)
	if err != nil {
		return err
	}
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs: write %q: %w", location, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs: finalize %q: %w", location, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func isGCSLocation(location string) bool {
	return strings.HasPrefix(location, gcsScheme)
}

func parseGCSLocation(location string) (bucket, object string, err error) {
	if !isGCSLocation(location) {
		return "", "", fmt.Errorf("gcs: %q is not a gs:// location", location)
	}
	rest := strings.TrimPrefix(location, gcsScheme)
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gcs: %q must look like gs://bucket/object", location)
	}
	return bucket, object, nil
}
