package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// ThankYouURLTTL is how long a download link rendered on a thank-you page stays valid.
	ThankYouURLTTL = 15 * time.Minute
	// EmailURLTTL is how long a download link sent by email stays valid.
	EmailURLTTL = 72 * time.Hour

	// MinIO ignores the region but presigning needs one to skip a bucket-location lookup.
	defaultRegion = "us-east-1"
)

// MinIOService implements Presigner using MinIO.
type MinIOService struct {
	client *minio.Client
	bucket string
}

// NewMinIOService creates a new MinIO storage service bound to the lead-magnet bucket.
func NewMinIOService(cfg Config) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}
	if cfg.GetMinioBucketLeadMagnets() == "" {
		return nil, fmt.Errorf("lead magnet bucket not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
		Region: defaultRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOService{client: client, bucket: cfg.GetMinioBucketLeadMagnets()}, nil
}

// EnsureBucketExists creates the lead-magnet bucket if it doesn't exist.
func (s *MinIOService) EnsureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: defaultRegion})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}

	return nil
}

// GenerateDownloadURL creates a presigned URL that downloads the file as an attachment.
func (s *MinIOService) GenerateDownloadURL(ctx context.Context, fileKey string, ttl time.Duration) (*PresignedURL, error) {
	if fileKey == "" {
		return nil, fmt.Errorf("empty file key")
	}
	expiresAt := time.Now().Add(ttl)

	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(fileKey)))

	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, fileKey, ttl, reqParams)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned download URL: %w", err)
	}

	return &PresignedURL{
		URL:       presignedURL.String(),
		FileKey:   fileKey,
		ExpiresAt: expiresAt,
	}, nil
}

var _ Presigner = (*MinIOService)(nil)
