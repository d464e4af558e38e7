package backup

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// StorageService provides the object storage operations backups need.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// Upload writes data to bucketName under objectName.
	Upload(ctx context.Context, bucketName, objectName string, data []byte) error

	// Download reads the object bytes.
	Download(ctx context.Context, bucketName, objectName string) ([]byte, error)
}

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a storage client using Application Default
// Credentials (gcloud auth application-default login).
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// Close releases the storage client.
func (s *GCSStorageService) Close() error {
	return s.client.Close()
}

// Upload writes data to a GCS object, replacing any previous content.
func (s *GCSStorageService) Upload(ctx context.Context, bucketName, objectName string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// Download reads a GCS object.
func (s *GCSStorageService) Download(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	r, err := s.client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader %s/%s: %w", bucketName, objectName, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object path.
func ParseGCSURI(uri string) (string, string, error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// ObjectName returns the object path of a backup taken at t:
// backups/YYYY/MM/DD/ledger-<unix>.json, dated in UTC.
func ObjectName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("backups/%04d/%02d/%02d/ledger-%d.json", t.Year(), int(t.Month()), t.Day(), t.Unix())
}
