package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrInvalidMimeType = errors.New("file type not allowed")
	ErrEmptyFile       = errors.New("file is empty")
)

// AllowedUploadMimeTypes lists the source-photo types accepted for generation
var AllowedUploadMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
}

// ValidateUpload reads an uploaded source photo, enforcing size and MIME
// limits. MIME type is detected from content (magic bytes), not the filename.
func ValidateUpload(reader io.Reader, maxSize int64) ([]byte, string, error) {
	// Limit to maxSize + 1 to detect oversized files without buffering more
	limitedReader := io.LimitReader(reader, maxSize+1)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}

	if len(data) == 0 {
		return nil, "", ErrEmptyFile
	}

	if int64(len(data)) > maxSize {
		return nil, "", ErrFileTooLarge
	}

	mimeType := http.DetectContentType(data)
	// "image/jpeg; charset=utf-8" -> "image/jpeg"
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	allowed := false
	for _, t := range AllowedUploadMimeTypes {
		if t == mimeType {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, "", ErrInvalidMimeType
	}

	return data, mimeType, nil
}
