package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/modern-blog/internal/config"
	"github.com/rs/zerolog"
)

// MinIO stores images in an S3 compatible bucket
type MinIO struct {
	client  *minio.Client
	bucket  string
	baseURL string
	maxSize int64
	log     zerolog.Logger
}

// NewMinIO connects to the configured endpoint and makes sure the bucket exists
func NewMinIO(ctx context.Context, cfg *config.StorageConfig, log zerolog.Logger) (*MinIO, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
		Region: cfg.MinIORegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{Region: cfg.MinIORegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	scheme := "http"
	if cfg.MinIOUseSSL {
		scheme = "https"
	}

	m := &MinIO{
		client:  client,
		bucket:  cfg.MinIOBucket,
		baseURL: fmt.Sprintf("%s://%s/%s", scheme, cfg.MinIOEndpoint, cfg.MinIOBucket),
		maxSize: cfg.MaxUploadSize,
		log:     log.With().Str("component", "storage").Str("backend", "minio").Logger(),
	}
	m.log.Info().Str("bucket", m.bucket).Str("endpoint", cfg.MinIOEndpoint).Msg("Object storage ready")
	return m, nil
}

func (m *MinIO) Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	up, err := inspect(r, size, m.maxSize)
	if err != nil {
		return "", err
	}

	now := time.Now()
	object := fmt.Sprintf("articles/%d/%02d/%s%s", now.Year(), now.Month(), uuid.New().String(), up.ext)

	_, err = m.client.PutObject(ctx, m.bucket, object, up.body, size, minio.PutObjectOptions{
		ContentType: up.contentType,
		UserMetadata: map[string]string{
			"original-filename": filename,
			"uploaded-at":       now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return m.baseURL + "/" + object, nil
}

func (m *MinIO) Release(ctx context.Context, ref string) error {
	if !strings.HasPrefix(ref, m.baseURL+"/") {
		return ErrForeignRef
	}
	object := strings.TrimPrefix(ref, m.baseURL+"/")

	if err := m.client.RemoveObject(ctx, m.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}
