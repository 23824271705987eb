package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

const libraryItemColumns = `id, user_id, name, type, original_key, processed_key, file_size,
	original_width, original_height, processed_width, processed_height,
	settings, is_favorite, tags, created_at, updated_at`

func scanLibraryItem(row interface{ Scan(...interface{}) error }) (domain.LibraryItem, error) {
	var (
		item     domain.LibraryItem
		settings pqtype.NullRawMessage
		tags     pqtype.NullRawMessage
	)
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Name,
		&item.Type,
		&item.OriginalKey,
		&item.ProcessedKey,
		&item.FileSize,
		&item.OriginalWidth,
		&item.OriginalHeight,
		&item.ProcessedWidth,
		&item.ProcessedHeight,
		&settings,
		&item.IsFavorite,
		&tags,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return domain.LibraryItem{}, err
	}
	if settings.Valid {
		item.Settings = json.RawMessage(settings.RawMessage)
	}
	if tags.Valid {
		if err := json.Unmarshal(tags.RawMessage, &item.Tags); err != nil {
			return domain.LibraryItem{}, err
		}
	}
	return item, nil
}

// CreateLibraryItemParams contains the fields needed to save a processed
// image into the library.
type CreateLibraryItemParams struct {
	UserID          uuid.UUID
	Name            string
	Type            domain.OperationType
	OriginalKey     string
	ProcessedKey    string
	FileSize        int64
	OriginalWidth   int
	OriginalHeight  int
	ProcessedWidth  int
	ProcessedHeight int
	Settings        json.RawMessage
	Tags            []string
}

// CreateLibraryItem inserts a library item and returns the created row.
func (q *Queries) CreateLibraryItem(ctx context.Context, params CreateLibraryItemParams) (domain.LibraryItem, error) {
	settings := pqtype.NullRawMessage{RawMessage: params.Settings, Valid: params.Settings != nil}
	tags, err := marshalTags(params.Tags)
	if err != nil {
		return domain.LibraryItem{}, err
	}
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO library_items
			(id, user_id, name, type, original_key, processed_key, file_size,
			 original_width, original_height, processed_width, processed_height,
			 settings, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+libraryItemColumns,
		uuid.New(), params.UserID, params.Name, params.Type,
		params.OriginalKey, params.ProcessedKey, params.FileSize,
		params.OriginalWidth, params.OriginalHeight,
		params.ProcessedWidth, params.ProcessedHeight,
		settings, tags,
	)
	return scanLibraryItem(row)
}

func marshalTags(tags []string) (pqtype.NullRawMessage, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

// GetLibraryItem fetches an item by primary key, scoped to its owner.
func (q *Queries) GetLibraryItem(ctx context.Context, id, userID uuid.UUID) (domain.LibraryItem, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+libraryItemColumns+`
		FROM library_items
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	return scanLibraryItem(row)
}

// GetLibraryItemByID fetches an item by primary key regardless of owner.
// Used when resolving public shares.
func (q *Queries) GetLibraryItemByID(ctx context.Context, id uuid.UUID) (domain.LibraryItem, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+libraryItemColumns+`
		FROM library_items
		WHERE id = $1`,
		id,
	)
	return scanLibraryItem(row)
}

// ListLibraryItemsParams filters and pages a library listing.
type ListLibraryItemsParams struct {
	UserID        uuid.UUID
	FolderID      *uuid.UUID
	Type          domain.OperationType // empty matches all types
	FavoritesOnly bool
	Limit         int
	Offset        int
}

// ListLibraryItems returns a page of the user's library, newest first.
// A nil FolderID matches items in any folder, including none.
func (q *Queries) ListLibraryItems(ctx context.Context, params ListLibraryItemsParams) ([]domain.LibraryItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+libraryItemColumns+`
		FROM library_items
		WHERE user_id = $1
		  AND ($2::uuid IS NULL OR id IN (
			SELECT item_id FROM library_folder_items WHERE folder_id = $2))
		  AND ($3 = '' OR type = $3)
		  AND (NOT $4 OR is_favorite)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`,
		params.UserID,
		uuidOrNil(params.FolderID),
		string(params.Type),
		params.FavoritesOnly,
		params.Limit,
		params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.LibraryItem
	for rows.Next() {
		item, err := scanLibraryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func uuidOrNil(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

// UpdateLibraryItemParams contains the mutable fields of a library item.
type UpdateLibraryItemParams struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Name       string
	IsFavorite bool
	Tags       []string
}

// UpdateLibraryItem updates an item's name, favorite flag, and tags.
func (q *Queries) UpdateLibraryItem(ctx context.Context, params UpdateLibraryItemParams) (domain.LibraryItem, error) {
	tags, err := marshalTags(params.Tags)
	if err != nil {
		return domain.LibraryItem{}, err
	}
	row := q.db.QueryRowContext(ctx, `
		UPDATE library_items
		SET name = $3, is_favorite = $4, tags = $5, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+libraryItemColumns,
		params.ID, params.UserID, params.Name, params.IsFavorite, tags,
	)
	return scanLibraryItem(row)
}

// DeleteLibraryItem removes an item. Shares and folder memberships cascade
// at the schema level.
func (q *Queries) DeleteLibraryItem(ctx context.Context, id, userID uuid.UUID) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM library_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// === Folders ===

const folderColumns = `id, user_id, name, description, color, created_at, updated_at`

func scanFolder(row interface{ Scan(...interface{}) error }) (domain.LibraryFolder, error) {
	var f domain.LibraryFolder
	err := row.Scan(&f.ID, &f.UserID, &f.Name, &f.Description, &f.Color, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

// CreateFolderParams contains the fields needed to insert a folder.
type CreateFolderParams struct {
	UserID      uuid.UUID
	Name        string
	Description string
	Color       string
}

// CreateFolder inserts a library folder. Folder names are unique per user;
// a duplicate surfaces as a unique-constraint violation.
func (q *Queries) CreateFolder(ctx context.Context, params CreateFolderParams) (domain.LibraryFolder, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO library_folders (id, user_id, name, description, color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+folderColumns,
		uuid.New(), params.UserID, params.Name, params.Description, params.Color,
	)
	return scanFolder(row)
}

// GetFolder fetches a folder by primary key, scoped to its owner.
func (q *Queries) GetFolder(ctx context.Context, id, userID uuid.UUID) (domain.LibraryFolder, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+folderColumns+` FROM library_folders WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	return scanFolder(row)
}

// ListFolders returns the user's folders with item counts, ordered by name.
func (q *Queries) ListFolders(ctx context.Context, userID uuid.UUID) ([]domain.LibraryFolder, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT f.id, f.user_id, f.name, f.description, f.color, f.created_at, f.updated_at,
		       count(fi.item_id)
		FROM library_folders f
		LEFT JOIN library_folder_items fi ON fi.folder_id = f.id
		WHERE f.user_id = $1
		GROUP BY f.id
		ORDER BY f.name`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []domain.LibraryFolder
	for rows.Next() {
		var f domain.LibraryFolder
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.Description, &f.Color,
			&f.CreatedAt, &f.UpdatedAt, &f.ItemCount); err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// DeleteFolder removes a folder. Items stay in the library; only the
// membership rows cascade.
func (q *Queries) DeleteFolder(ctx context.Context, id, userID uuid.UUID) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM library_folders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AddItemToFolder places an item in a folder. Idempotent.
func (q *Queries) AddItemToFolder(ctx context.Context, folderID, itemID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO library_folder_items (folder_id, item_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		folderID, itemID,
	)
	return err
}

// RemoveItemFromFolder takes an item out of a folder. Idempotent.
func (q *Queries) RemoveItemFromFolder(ctx context.Context, folderID, itemID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM library_folder_items WHERE folder_id = $1 AND item_id = $2`,
		folderID, itemID,
	)
	return err
}

// === Shares ===

const shareColumns = `id, item_id, share_token, is_public, expires_at, view_count, created_at`

func scanShare(row interface{ Scan(...interface{}) error }) (domain.SharedItem, error) {
	var (
		s         domain.SharedItem
		expiresAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.ItemID, &s.ShareToken, &s.IsPublic, &expiresAt, &s.ViewCount, &s.CreatedAt)
	if err != nil {
		return domain.SharedItem{}, err
	}
	s.ExpiresAt = domain.NullTimeValue(expiresAt)
	return s, nil
}

// CreateShareParams contains the fields needed to share an item.
type CreateShareParams struct {
	ItemID     uuid.UUID
	ShareToken string
	IsPublic   bool
	ExpiresAt  *time.Time
}

// CreateShare inserts a share record for a library item.
func (q *Queries) CreateShare(ctx context.Context, params CreateShareParams) (domain.SharedItem, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO shared_items (id, item_id, share_token, is_public, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+shareColumns,
		uuid.New(), params.ItemID, params.ShareToken, params.IsPublic,
		domain.ToNullTime(params.ExpiresAt),
	)
	return scanShare(row)
}

// GetShareByToken fetches a share by its token and bumps the view counter.
func (q *Queries) GetShareByToken(ctx context.Context, token string) (domain.SharedItem, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE shared_items
		SET view_count = view_count + 1
		WHERE share_token = $1
		RETURNING `+shareColumns,
		token,
	)
	return scanShare(row)
}

// DeleteShare revokes a share, scoped to the item's owner.
func (q *Queries) DeleteShare(ctx context.Context, shareID, userID uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM shared_items
		WHERE id = $1
		  AND item_id IN (SELECT id FROM library_items WHERE user_id = $2)`,
		shareID, userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}
