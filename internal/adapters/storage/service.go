// Package storage presigns lead-magnet downloads from S3-compatible object storage.
package storage

import (
	"context"
	"time"
)

// PresignedURL contains the URL and metadata for a presigned download.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Presigner hands out time-limited download links for lead-magnet files.
type Presigner interface {
	GenerateDownloadURL(ctx context.Context, fileKey string, ttl time.Duration) (*PresignedURL, error)
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketLeadMagnets() string
	IsMinIOEnabled() bool
}
