// Package storage puts uploaded files into an S3-compatible bucket and hands
// out presigned URLs for direct client access.
package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned for keys that do not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore is a bucket of objects addressed by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
	Delete(ctx context.Context, key string) error

	// PresignPut returns a URL the client can PUT the object to until ttl
	// elapses. The upload must use contentType.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// PresignGet returns a URL the client can GET the object from until ttl
	// elapses.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)

	// PublicURL is where the object is served from when the bucket is public.
	PublicURL(key string) string
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// GenerateKey builds "folder/{unixMillis}-{name}" with every character of
// filename outside [a-zA-Z0-9.-] replaced by an underscore.
func GenerateKey(folder, filename string, now time.Time) string {
	folder = strings.Trim(folder, "/")
	name := unsafeKeyChars.ReplaceAllString(filename, "_")
	return folder + "/" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + name
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
