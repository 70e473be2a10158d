// Package storage wraps S3-compatible object storage for uploaded documents.
package storage

import (
	"context"
	"io"
	"time"
)

// PresignedURL is a time-limited link to an object.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StorageService is the object storage surface used by the CRM.
type StorageService interface {
	// UploadFile stores reader under folder and returns the generated object key.
	UploadFile(ctx context.Context, bucket, folder, fileName, contentType string, reader io.Reader, size int64) (string, error)
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error)
	DeleteObject(ctx context.Context, bucket, fileKey string) error
	EnsureBucketExists(ctx context.Context, bucket string) error
	ValidateContentType(contentType string) error
	ValidateFileSize(sizeBytes int64) error
	GetMaxFileSize() int64
}

// Config is satisfied by platform/config.Config.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	IsMinIOEnabled() bool
}
