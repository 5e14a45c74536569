// Package gcs provides a report archive backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	archive "github.com/JakeFAU/channel-liveness/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// ReportArchive writes rendered reports to a configured GCS bucket.
type ReportArchive struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed report archive.
func New(client *storage.Client, cfg Config) (*ReportArchive, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &ReportArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// PutReport uploads the report as <prefix>/<run_id>.txt and returns a gs:// URI.
func (a *ReportArchive) PutReport(ctx context.Context, runID string, report string) (string, error) {
	name, err := archive.ReportObjectName(a.prefix, runID)
	if err != nil {
		return "", err
	}
	writer := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = "text/plain; charset=utf-8"
	if _, err := io.Copy(writer, strings.NewReader(report)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy report: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy report: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, name), nil
}
