package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"premunia_crm_backend/internal/adapters/storage"
	"premunia_crm_backend/internal/uploads/transport"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
)

// Storage is the part of the object store used for uploads.
type Storage interface {
	UploadFile(ctx context.Context, bucket, folder, fileName, contentType string, reader io.Reader, size int64) (string, error)
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*storage.PresignedURL, error)
	ValidateContentType(contentType string) error
	ValidateFileSize(sizeBytes int64) error
}

type Service struct {
	storage Storage
	bucket  string
	log     *logger.Logger
	now     func() time.Time
}

func New(store Storage, bucket string, log *logger.Logger) *Service {
	return &Service{storage: store, bucket: bucket, log: log, now: time.Now}
}

// File is one uploaded multipart part.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload stores the file under YYYY/MM/ and returns a presigned download URL.
func (s *Service) Upload(ctx context.Context, identity httpkit.Identity, file File) (transport.UploadResponse, error) {
	if err := s.storage.ValidateContentType(file.ContentType); err != nil {
		return transport.UploadResponse{}, apperr.Validation(err.Error())
	}
	if err := s.storage.ValidateFileSize(file.Size); err != nil {
		return transport.UploadResponse{}, apperr.Validation(err.Error())
	}

	folder := s.now().UTC().Format("2006/01")
	key, err := s.storage.UploadFile(ctx, s.bucket, folder, file.Name, file.ContentType, file.Body, file.Size)
	if err != nil {
		return transport.UploadResponse{}, apperr.Unavailable("uploads.Upload", err)
	}
	s.log.Info("file uploaded", "key", key, "size", file.Size, "userId", identity.UserID())

	return s.presign(ctx, key)
}

// URL re-issues a download link for a previously uploaded object.
func (s *Service) URL(ctx context.Context, pathname string) (transport.UploadResponse, error) {
	pathname = strings.TrimPrefix(strings.TrimSpace(pathname), "/")
	if pathname == "" || strings.Contains(pathname, "..") {
		return transport.UploadResponse{}, apperr.Validation("invalid pathname")
	}
	return s.presign(ctx, pathname)
}

func (s *Service) presign(ctx context.Context, key string) (transport.UploadResponse, error) {
	url, err := s.storage.GenerateDownloadURL(ctx, s.bucket, key)
	if err != nil {
		return transport.UploadResponse{}, apperr.Unavailable("uploads.presign", err)
	}
	return transport.UploadResponse{URL: url.URL, Pathname: key, ExpiresAt: url.ExpiresAt}, nil
}

var errStorageDisabled = errors.New("object storage is not configured")

// Disabled answers every call with Unavailable when MinIO is not configured.
type Disabled struct{}

func (Disabled) UploadFile(context.Context, string, string, string, string, io.Reader, int64) (string, error) {
	return "", errStorageDisabled
}

func (Disabled) GenerateDownloadURL(context.Context, string, string) (*storage.PresignedURL, error) {
	return nil, errStorageDisabled
}

func (Disabled) ValidateContentType(string) error { return nil }
func (Disabled) ValidateFileSize(int64) error     { return nil }
