package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LibraryItem is a processed image saved to a user's library.
type LibraryItem struct {
	ID     uuid.UUID
	UserID uuid.UUID

	Name string
	Type OperationType

	OriginalKey  string // storage key of the source image
	ProcessedKey string // storage key of the processed image
	FileSize     int64  // bytes

	OriginalWidth   int
	OriginalHeight  int
	ProcessedWidth  int
	ProcessedHeight int

	Settings json.RawMessage

	IsFavorite bool
	Tags       []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileSizeMB returns the item's size in megabytes rounded to two decimals.
func (i *LibraryItem) FileSizeMB() float64 {
	mb := float64(i.FileSize) / (1024 * 1024)
	return float64(int(mb*100+0.5)) / 100
}

// LibraryFolder groups library items. Folder names are unique per user.
type LibraryFolder struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Description string
	Color       string // hex color, e.g. "#3B82F6"
	ItemCount   int    // populated by list queries
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultFolderColor is applied when a folder is created without a color.
const DefaultFolderColor = "#3B82F6"

// SharedItem is a public or token-gated share of a library item.
type SharedItem struct {
	ID         uuid.UUID
	ItemID     uuid.UUID
	ShareToken string // 64-char hex token
	IsPublic   bool
	ExpiresAt  *time.Time
	ViewCount  int
	CreatedAt  time.Time
}

// IsExpired reports whether the share has passed its expiry, if one is set.
func (s *SharedItem) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
