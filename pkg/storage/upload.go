package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// ObjectStore is the subset of S3 used by upload handlers.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// Uploaded describes a stored object.
type Uploaded struct {
	Key         string `json:"s3_key"`
	URL         string `json:"file_url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"file_size"`
	Filename    string `json:"filename"`
}

// UploadForm checks a multipart file against maxSize and allowed, then stores it under folder/owner.
func UploadForm(ctx context.Context, store ObjectStore, file *multipart.FileHeader, folder, owner string, maxSize int64, allowed func(contentType, filename string) bool) (*Uploaded, error) {
	if file.Size > maxSize {
		return nil, fmt.Errorf("%w: limit is %dMB", ErrTooLarge, maxSize/(1024*1024))
	}
	headerType := strings.ToLower(file.Header.Get("Content-Type"))
	if !allowed(headerType, file.Filename) {
		return nil, ErrUnsupportedType
	}
	contentType := ContentTypeForFilename(file.Filename)
	if _, ok := AllowedImageTypes[headerType]; ok {
		contentType = headerType
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	key := ObjectKey(folder, owner, file.Filename)
	url, err := store.Upload(ctx, key, contentType, rc, file.Size)
	if err != nil {
		return nil, err
	}
	return &Uploaded{Key: key, URL: url, ContentType: contentType, Size: file.Size, Filename: file.Filename}, nil
}

// AttachmentAllowed adapts ValidateAttachmentType to UploadForm.
func AttachmentAllowed(_, filename string) bool {
	return ValidateAttachmentType(filename)
}
