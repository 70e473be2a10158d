package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrContentTypeNotAllowed is returned for MIME types outside AllowedContentTypes.
	ErrContentTypeNotAllowed = errors.New("content type not allowed")
	// ErrInvalidFileSize is returned for empty or oversized files.
	ErrInvalidFileSize = errors.New("invalid file size")
)

// AllowedContentTypes lists the document types staff attach to prospect files.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,

	"application/pdf":          true,
	"application/msword":       true,
	"application/vnd.ms-excel": true,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,

	"text/plain": true,
	"text/csv":   true,
}

// ValidateContentType checks if the content type is allowed.
func (s *MinIOService) ValidateContentType(contentType string) error {
	return validateContentType(contentType)
}

// ValidateFileSize checks if the file size is within limits.
func (s *MinIOService) ValidateFileSize(sizeBytes int64) error {
	return validateFileSize(sizeBytes, s.maxFileSize)
}

func validateContentType(contentType string) error {
	normalized := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("%w: %q", ErrContentTypeNotAllowed, contentType)
	}
	return nil
}

func validateFileSize(sizeBytes, maxSize int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidFileSize)
	}
	if maxSize > 0 && sizeBytes > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrInvalidFileSize, sizeBytes, maxSize)
	}
	return nil
}
