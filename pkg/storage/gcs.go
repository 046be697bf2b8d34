package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

// GCSConfig holds Google Cloud Storage settings.
type GCSConfig struct {
	Bucket    string
	PublicURL string
}

// GCS is a Sink backed by a Google Cloud Storage bucket.
type GCS struct {
	cfg     GCSConfig
	service *gcs.Service
}

// NewGCS creates a GCS sink. Client options usually come from
// googleauth.ClientOptions with the devstorage.read_write scope.
func NewGCS(ctx context.Context, cfg GCSConfig, opts ...option.ClientOption) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	svc, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: create gcs service: %w", err)
	}
	return &GCS{cfg: cfg, service: svc}, nil
}

// PutObject uploads data under key and returns its URL.
func (g *GCS) PutObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	obj := &gcs.Object{Name: key, ContentType: contentType}
	_, err := g.service.Objects.Insert(g.cfg.Bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("gcs put %s/%s: %w", g.cfg.Bucket, key, err)
	}
	return g.URL(key), nil
}

// URL returns the public URL of key.
func (g *GCS) URL(key string) string {
	if g.cfg.PublicURL != "" {
		return joinURL(g.cfg.PublicURL, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.cfg.Bucket, key)
}

var _ Sink = (*GCS)(nil)
