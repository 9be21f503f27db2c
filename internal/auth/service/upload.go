package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/storage"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// Upload defaults.
const (
	DefaultMaxFileSize   = 10 * 1024 * 1024
	DefaultUploadFolder  = "uploads"
	DefaultPresignExpiry = 3600
	MinPresignExpiry     = 60
	MaxPresignExpiry     = 86400
)

// DefaultAllowedMimeTypes are accepted when none are configured.
var DefaultAllowedMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
}

// ErrObjectNotFound is returned when deleting a key that does not exist.
var ErrObjectNotFound = errors.New("object_not_found")

// File is an uploaded file held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// StoredFile describes an object after upload.
type StoredFile struct {
	Key         string
	URL         string
	Size        int64
	ContentType string
}

// PresignedURL is a time-limited URL for one object.
type PresignedURL struct {
	URL       string
	Key       string
	ExpiresIn int
	ExpiresAt time.Time
}

// UploadService validates client files and delegates them to object storage.
type UploadService struct {
	Objects          storage.ObjectStore
	MaxFileSize      int64
	AllowedMimeTypes []string
	Clock            Clock
}

// SizeLimit is the largest accepted upload in bytes.
func (s *UploadService) SizeLimit() int64 {
	if s.MaxFileSize > 0 {
		return s.MaxFileSize
	}
	return DefaultMaxFileSize
}

func (s *UploadService) allowed() []string {
	if len(s.AllowedMimeTypes) > 0 {
		return s.AllowedMimeTypes
	}
	return DefaultAllowedMimeTypes
}

func (s *UploadService) checkType(contentType string) error {
	if !slices.Contains(s.allowed(), contentType) {
		return rejected("File type %s is not allowed. Allowed types: %s", contentType, strings.Join(s.allowed(), ", "))
	}
	return nil
}

// Upload stores f under folder.
func (s *UploadService) Upload(ctx context.Context, f File, folder string) (StoredFile, error) {
	if len(f.Data) == 0 {
		return StoredFile{}, rejected("No file provided")
	}
	if int64(len(f.Data)) > s.SizeLimit() {
		return StoredFile{}, rejected("File size exceeds the limit of %dMB", s.SizeLimit()/(1024*1024))
	}
	if err := s.checkType(f.ContentType); err != nil {
		return StoredFile{}, err
	}

	key := storage.GenerateKey(folderOrDefault(folder), f.Name, s.Clock.now())
	size := int64(len(f.Data))
	if err := s.Objects.Put(ctx, key, bytes.NewReader(f.Data), size, f.ContentType); err != nil {
		return StoredFile{}, err
	}

	slogx.FromContext(ctx).Info("file uploaded", slog.String("key", key), slog.Int64("size", size))
	return StoredFile{Key: key, URL: s.Objects.PublicURL(key), Size: size, ContentType: f.ContentType}, nil
}

// PresignUpload returns a URL the client can upload filename to directly.
func (s *UploadService) PresignUpload(ctx context.Context, filename, contentType, folder string, expiresIn int) (PresignedURL, error) {
	if err := s.checkType(contentType); err != nil {
		return PresignedURL{}, err
	}
	ttl, err := presignTTL(expiresIn)
	if err != nil {
		return PresignedURL{}, err
	}

	key := storage.GenerateKey(folderOrDefault(folder), filename, s.Clock.now())
	url, err := s.Objects.PresignPut(ctx, key, contentType, ttl)
	if err != nil {
		return PresignedURL{}, err
	}
	return s.presigned(url, key, ttl), nil
}

// PresignDownload returns a URL the client can fetch key from directly.
func (s *UploadService) PresignDownload(ctx context.Context, key string, expiresIn int) (PresignedURL, error) {
	if key == "" {
		return PresignedURL{}, rejected("key is required")
	}
	ttl, err := presignTTL(expiresIn)
	if err != nil {
		return PresignedURL{}, err
	}

	url, err := s.Objects.PresignGet(ctx, key, ttl)
	if err != nil {
		return PresignedURL{}, err
	}
	return s.presigned(url, key, ttl), nil
}

// Delete removes the object at key.
func (s *UploadService) Delete(ctx context.Context, key string) error {
	if key == "" {
		return rejected("key is required")
	}
	err := s.Objects.Delete(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrObjectNotFound
	}
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("file deleted", slog.String("key", key))
	return nil
}

func (s *UploadService) presigned(url, key string, ttl time.Duration) PresignedURL {
	return PresignedURL{
		URL:       url,
		Key:       key,
		ExpiresIn: int(ttl / time.Second),
		ExpiresAt: s.Clock.now().Add(ttl),
	}
}

func folderOrDefault(folder string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" || strings.Contains(folder, "..") {
		return DefaultUploadFolder
	}
	return folder
}

// presignTTL converts expiresIn seconds, where zero means the default.
func presignTTL(expiresIn int) (time.Duration, error) {
	if expiresIn == 0 {
		expiresIn = DefaultPresignExpiry
	}
	if expiresIn < MinPresignExpiry || expiresIn > MaxPresignExpiry {
		return 0, rejected("expiresIn must be between %d and %d seconds", MinPresignExpiry, MaxPresignExpiry)
	}
	return time.Duration(expiresIn) * time.Second, nil
}

