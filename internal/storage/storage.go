// Package storage provides the object storage abstraction for uploaded and
// processed images.
//
// Two implementations exist: LocalStorage for development and R2Storage for
// production (Cloudflare R2 via the S3 API).
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Storage defines the interface for object storage operations.
type Storage interface {
	// Put stores data at the given key. Fails with ErrKeyExists when the
	// key is taken and overwrite is disabled, ErrTooLarge when data exceeds
	// opts.MaxSize.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get returns the object data (caller closes) and its metadata.
	// Returns ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the key. Idempotent.
	Delete(ctx context.Context, key string) error

	// URL returns an access URL for the object: permanent when the backend
	// has a public base URL and expires is zero, presigned otherwise.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object exists at the key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type; auto-detected from the key when empty.
	ContentType string

	// MaxSize in bytes; 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool

	// Public marks the object world-readable where the backend supports it.
	Public bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	BasePath string // root directory, e.g. "./storage"
	BaseURL  string // public URL prefix, e.g. "http://localhost:8080/files"
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's custom-domain URL. Empty means presigned
	// URLs for all access.
	PublicURL string

	// Region defaults to "auto", which is what R2 expects.
	Region string
}

// Provider identifiers as they appear in configuration.
const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// =============================================================================
// Key Generation
// =============================================================================

// UploadKey generates a storage key for a user's source image.
// Format: uploads/{userID}/{uuid}.{ext}
func UploadKey(userID uuid.UUID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s%s", userID, uuid.New(), filepath.Ext(filename))
}

// ProcessedKey generates a storage key for a job's output image.
// Format: processed/{userID}/{jobID}.{ext}
func ProcessedKey(userID, jobID uuid.UUID, ext string) string {
	return fmt.Sprintf("processed/%s/%s%s", userID, jobID, ext)
}

// AvatarKey generates a storage key for a user's avatar.
// Format: avatars/{userID}/{uuid}.{ext}
func AvatarKey(userID uuid.UUID, filename string) string {
	return fmt.Sprintf("avatars/%s/%s%s", userID, uuid.New(), filepath.Ext(filename))
}
