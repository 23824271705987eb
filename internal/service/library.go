// This file implements the library service: saved processed images,
// folders, and shares.
package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/metrics"
	"github.com/sami8890/Sam-pixels/internal/repository"
	"github.com/sami8890/Sam-pixels/internal/storage"
)

const shareTokenBytes = 32

// SaveItemParams describes a completed job being saved to the library.
type SaveItemParams struct {
	UserID uuid.UUID
	JobID  uuid.UUID
	Name   string
	Tags   []string
}

// ShareParams describes a share being created for a library item.
type ShareParams struct {
	UserID    uuid.UUID
	ItemID    uuid.UUID
	IsPublic  bool
	ExpiresAt *time.Time
}

// SharedView is a resolved share: the share record plus its item and a
// download URL.
type SharedView struct {
	Share domain.SharedItem
	Item  domain.LibraryItem
	URL   string
}

// =============================================================================
// Interface Definition
// =============================================================================

// LibraryService manages a user's saved processed images.
type LibraryService interface {
	// SaveFromJob copies a completed job's metadata into the library.
	// Returns domain.EINVALID when the job is not completed.
	SaveFromJob(ctx context.Context, params SaveItemParams) (*domain.LibraryItem, error)

	// GetItem returns an item owned by the user.
	GetItem(ctx context.Context, itemID, userID uuid.UUID) (*domain.LibraryItem, error)

	// ListItems returns a filtered page of the user's library.
	ListItems(ctx context.Context, params repository.ListLibraryItemsParams) ([]domain.LibraryItem, error)

	// UpdateItem updates name, favorite flag, and tags.
	UpdateItem(ctx context.Context, params repository.UpdateLibraryItemParams) (*domain.LibraryItem, error)

	// DeleteItem removes the item and its stored images.
	DeleteItem(ctx context.Context, itemID, userID uuid.UUID) error

	// CreateFolder creates a folder; names are unique per user.
	CreateFolder(ctx context.Context, params repository.CreateFolderParams) (*domain.LibraryFolder, error)

	// ListFolders returns the user's folders with item counts.
	ListFolders(ctx context.Context, userID uuid.UUID) ([]domain.LibraryFolder, error)

	// DeleteFolder removes a folder; its items stay in the library.
	DeleteFolder(ctx context.Context, folderID, userID uuid.UUID) error

	// MoveItem places an item into a folder, or out of it when folderID is nil.
	MoveItem(ctx context.Context, userID, itemID uuid.UUID, folderID *uuid.UUID) error

	// Share creates a share link for an item the user owns.
	Share(ctx context.Context, params ShareParams) (*domain.SharedItem, error)

	// ResolveShare loads a share by token for public viewing. Expired shares
	// return ENOTFOUND.
	ResolveShare(ctx context.Context, token string) (*SharedView, error)

	// Unshare revokes a share the user owns.
	Unshare(ctx context.Context, shareID, userID uuid.UUID) error
}

// =============================================================================
// Implementation
// =============================================================================

type libraryService struct {
	queries *repository.Queries
	store   storage.Storage
	logger  *slog.Logger
	now     func() time.Time
}

// NewLibraryService creates a new LibraryService.
func NewLibraryService(queries *repository.Queries, store storage.Storage, logger *slog.Logger) LibraryService {
	return &libraryService{
		queries: queries,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// SaveFromJob copies a completed job's output into the library.
func (s *libraryService) SaveFromJob(ctx context.Context, params SaveItemParams) (*domain.LibraryItem, error) {
	const op = "LibraryService.SaveFromJob"

	job, err := s.queries.GetJobForUser(ctx, params.JobID, params.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "job", params.JobID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve job")
	}
	if job.Status != domain.JobStatusCompleted || job.OutputKey == "" {
		return nil, domain.Invalid(op, "Only completed jobs can be saved")
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = string(job.Type)
	}

	body, info, err := s.store.Get(ctx, job.OutputKey)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to read processed image")
	}
	body.Close() // only the metadata is needed

	// Dimensions were recorded on the job by the worker; fall back to zero
	// when absent rather than re-decoding.
	item, err := s.queries.CreateLibraryItem(ctx, repository.CreateLibraryItemParams{
		UserID:       params.UserID,
		Name:         name,
		Type:         job.Type,
		OriginalKey:  job.InputKey,
		ProcessedKey: job.OutputKey,
		FileSize:     info.Size,
		Settings:     job.Settings,
		Tags:         params.Tags,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to save library item")
	}

	metrics.LibraryItemsSaved.Inc()
	s.logger.Info("library item saved", "item_id", item.ID, "user_id", params.UserID)

	return &item, nil
}

// GetItem returns an item owned by the user.
func (s *libraryService) GetItem(ctx context.Context, itemID, userID uuid.UUID) (*domain.LibraryItem, error) {
	const op = "LibraryService.GetItem"

	item, err := s.queries.GetLibraryItem(ctx, itemID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "library item", itemID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve library item")
	}
	return &item, nil
}

// ListItems returns a filtered page of the user's library.
func (s *libraryService) ListItems(ctx context.Context, params repository.ListLibraryItemsParams) ([]domain.LibraryItem, error) {
	const op = "LibraryService.ListItems"

	if params.Limit <= 0 {
		params.Limit = defaultJobPageSize
	}
	if params.Limit > maxJobPageSize {
		params.Limit = maxJobPageSize
	}

	items, err := s.queries.ListLibraryItems(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list library items")
	}
	return items, nil
}

// UpdateItem updates name, favorite flag, and tags.
func (s *libraryService) UpdateItem(ctx context.Context, params repository.UpdateLibraryItemParams) (*domain.LibraryItem, error) {
	const op = "LibraryService.UpdateItem"

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return nil, domain.Invalid(op, "Name is required")
	}

	item, err := s.queries.UpdateLibraryItem(ctx, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "library item", params.ID.String())
		}
		return nil, domain.Internal(err, op, "Failed to update library item")
	}
	return &item, nil
}

// DeleteItem removes the item row and its stored images.
func (s *libraryService) DeleteItem(ctx context.Context, itemID, userID uuid.UUID) error {
	const op = "LibraryService.DeleteItem"

	item, err := s.GetItem(ctx, itemID, userID)
	if err != nil {
		return err
	}

	if err := s.queries.DeleteLibraryItem(ctx, itemID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "library item", itemID.String())
		}
		return domain.Internal(err, op, "Failed to delete library item")
	}

	// Object deletion is best effort; orphaned objects are cheaper than a
	// failed delete after the row is gone.
	for _, key := range []string{item.ProcessedKey, item.OriginalKey} {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete stored object", "key", key, "error", err)
		}
	}
	return nil
}

// CreateFolder creates a folder; names are unique per user.
func (s *libraryService) CreateFolder(ctx context.Context, params repository.CreateFolderParams) (*domain.LibraryFolder, error) {
	const op = "LibraryService.CreateFolder"

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return nil, domain.Invalid(op, "Folder name is required")
	}
	if params.Color == "" {
		params.Color = domain.DefaultFolderColor
	}

	folder, err := s.queries.CreateFolder(ctx, params)
	if err != nil {
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return nil, domain.Conflict(op, "A folder with that name already exists")
		}
		return nil, domain.Internal(err, op, "Failed to create folder")
	}
	return &folder, nil
}

// ListFolders returns the user's folders with item counts.
func (s *libraryService) ListFolders(ctx context.Context, userID uuid.UUID) ([]domain.LibraryFolder, error) {
	const op = "LibraryService.ListFolders"

	folders, err := s.queries.ListFolders(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list folders")
	}
	return folders, nil
}

// DeleteFolder removes a folder; its items stay in the library.
func (s *libraryService) DeleteFolder(ctx context.Context, folderID, userID uuid.UUID) error {
	const op = "LibraryService.DeleteFolder"

	if err := s.queries.DeleteFolder(ctx, folderID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "folder", folderID.String())
		}
		return domain.Internal(err, op, "Failed to delete folder")
	}
	return nil
}

// MoveItem places an item into a folder, or removes it when folderID is nil.
func (s *libraryService) MoveItem(ctx context.Context, userID, itemID uuid.UUID, folderID *uuid.UUID) error {
	const op = "LibraryService.MoveItem"

	// Verify ownership of the item before touching memberships.
	if _, err := s.GetItem(ctx, itemID, userID); err != nil {
		return err
	}

	if folderID == nil {
		// Removing from all folders: delete memberships one folder at a time
		// is wasteful, so rely on the folder-scoped remove per caller intent.
		folders, err := s.queries.ListFolders(ctx, userID)
		if err != nil {
			return domain.Internal(err, op, "Failed to list folders")
		}
		for _, f := range folders {
			if err := s.queries.RemoveItemFromFolder(ctx, f.ID, itemID); err != nil {
				return domain.Internal(err, op, "Failed to remove item from folder")
			}
		}
		return nil
	}

	if _, err := s.queries.GetFolder(ctx, *folderID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "folder", folderID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve folder")
	}

	if err := s.queries.AddItemToFolder(ctx, *folderID, itemID); err != nil {
		return domain.Internal(err, op, "Failed to move item")
	}
	return nil
}

// Share creates a share link for an item the user owns.
func (s *libraryService) Share(ctx context.Context, params ShareParams) (*domain.SharedItem, error) {
	const op = "LibraryService.Share"

	if _, err := s.GetItem(ctx, params.ItemID, params.UserID); err != nil {
		return nil, err
	}
	if params.ExpiresAt != nil && params.ExpiresAt.Before(s.now()) {
		return nil, domain.Invalid(op, "Expiry must be in the future")
	}

	token, err := generateShareToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate share token")
	}

	share, err := s.queries.CreateShare(ctx, repository.CreateShareParams{
		ItemID:     params.ItemID,
		ShareToken: token,
		IsPublic:   params.IsPublic,
		ExpiresAt:  params.ExpiresAt,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create share")
	}

	s.logger.Info("item shared", "item_id", params.ItemID, "share_id", share.ID)
	return &share, nil
}

// ResolveShare loads a share by token for public viewing.
func (s *libraryService) ResolveShare(ctx context.Context, token string) (*SharedView, error) {
	const op = "LibraryService.ResolveShare"

	if len(token) != shareTokenBytes*2 {
		return nil, domain.NotFound(op, "share", token)
	}

	share, err := s.queries.GetShareByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "share", token)
		}
		return nil, domain.Internal(err, op, "Failed to resolve share")
	}

	if share.IsExpired(s.now()) {
		return nil, domain.NotFound(op, "share", token)
	}

	item, err := s.queries.GetLibraryItemByID(ctx, share.ItemID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load shared item")
	}

	url, err := s.store.URL(ctx, item.ProcessedKey, 15*time.Minute)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate image URL")
	}

	return &SharedView{Share: share, Item: item, URL: url}, nil
}

// Unshare revokes a share the user owns.
func (s *libraryService) Unshare(ctx context.Context, shareID, userID uuid.UUID) error {
	const op = "LibraryService.Unshare"

	if err := s.queries.DeleteShare(ctx, shareID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "share", shareID.String())
		}
		return domain.Internal(err, op, "Failed to revoke share")
	}
	return nil
}

// generateShareToken returns a 64-character hex token.
func generateShareToken() (string, error) {
	b := make([]byte, shareTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
