package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/storage"
	"github.com/stretchr/testify/require"
)

func newUploadService(t *testing.T) (*UploadService, *storage.MemoryStore) {
	t.Helper()
	objects := storage.NewMemoryStore("https://files.example.com")
	now := time.UnixMilli(1700000000000).UTC()
	return &UploadService{
		Objects:     objects,
		MaxFileSize: 1024,
		Clock:       func() time.Time { return now },
	}, objects
}

func TestUploadService_Upload(t *testing.T) {
	t.Parallel()
	svc, objects := newUploadService(t)
	ctx := context.Background()

	stored, err := svc.Upload(ctx, File{Name: "my cat.png", ContentType: "image/png", Data: []byte("png-bytes")}, "")
	require.NoError(t, err)
	require.Equal(t, "uploads/1700000000000-my_cat.png", stored.Key)
	require.Equal(t, "https://files.example.com/uploads/1700000000000-my_cat.png", stored.URL)
	require.Equal(t, int64(9), stored.Size)

	obj, ok := objects.Get(stored.Key)
	require.True(t, ok)
	require.True(t, bytes.Equal([]byte("png-bytes"), obj.Body))

	stored, err = svc.Upload(ctx, File{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}, "docs")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stored.Key, "docs/"))
}

func TestUploadService_Rejections(t *testing.T) {
	t.Parallel()
	svc, _ := newUploadService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		file File
		want string
	}{
		{"empty", File{Name: "a.png", ContentType: "image/png"}, "No file provided"},
		{"too large", File{Name: "a.png", ContentType: "image/png", Data: make([]byte, 1025)}, "File size exceeds"},
		{"bad type", File{Name: "a.exe", ContentType: "application/x-msdownload", Data: []byte("MZ")}, "File type application/x-msdownload is not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.file, "")
			var rej *RejectedError
			require.True(t, errors.As(err, &rej))
			require.Contains(t, rej.Reason, tt.want)
		})
	}
}

func TestUploadService_Presign(t *testing.T) {
	t.Parallel()
	svc, _ := newUploadService(t)
	ctx := context.Background()

	up, err := svc.PresignUpload(ctx, "photo.jpg", "image/jpeg", "avatars", 0)
	require.NoError(t, err)
	require.Equal(t, "avatars/1700000000000-photo.jpg", up.Key)
	require.Equal(t, DefaultPresignExpiry, up.ExpiresIn)
	require.Contains(t, up.URL, "method=PUT")

	_, err = svc.PresignUpload(ctx, "run.sh", "text/x-shellscript", "", 0)
	require.Error(t, err)

	down, err := svc.PresignDownload(ctx, up.Key, 120)
	require.NoError(t, err)
	require.Equal(t, 120, down.ExpiresIn)
	require.Equal(t, time.UnixMilli(1700000000000).UTC().Add(2*time.Minute), down.ExpiresAt)

	for _, bad := range []int{59, 86401, -5} {
		_, err := svc.PresignDownload(ctx, up.Key, bad)
		var rej *RejectedError
		require.True(t, errors.As(err, &rej), "expiresIn %d", bad)
	}
	for _, ok := range []int{60, 86400} {
		_, err := svc.PresignDownload(ctx, up.Key, ok)
		require.NoError(t, err)
	}
}

func TestUploadService_Delete(t *testing.T) {
	t.Parallel()
	svc, _ := newUploadService(t)
	ctx := context.Background()

	stored, err := svc.Upload(ctx, File{Name: "a.gif", ContentType: "image/gif", Data: []byte("GIF89a")}, "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, stored.Key))
	require.ErrorIs(t, svc.Delete(ctx, stored.Key), ErrObjectNotFound)
}

func TestFolderOrDefault(t *testing.T) {
	t.Parallel()

	require.Equal(t, "uploads", folderOrDefault(""))
	require.Equal(t, "uploads", folderOrDefault("../secrets"))
	require.Equal(t, "avatars", folderOrDefault("/avatars/"))
}
