package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/auth"
	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/repository"
	"github.com/sami8890/Sam-pixels/internal/service"
)

// LibraryHandler handles library item, folder, and share endpoints.
type LibraryHandler struct {
	library service.LibraryService
	logger  *slog.Logger
}

// NewLibraryHandler creates a new LibraryHandler.
func NewLibraryHandler(library service.LibraryService, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{
		library: library,
		logger:  logger,
	}
}

// =============================================================================
// Request / Response Types
// =============================================================================

type saveItemRequest struct {
	JobID string   `json:"job_id"`
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
}

type updateItemRequest struct {
	Name       string   `json:"name"`
	IsFavorite bool     `json:"is_favorite"`
	Tags       []string `json:"tags"`
}

type createFolderRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type moveItemRequest struct {
	FolderID *string `json:"folder_id"` // null removes the item from its folder
}

type shareRequest struct {
	IsPublic  bool       `json:"is_public"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type itemResponse struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Type            domain.OperationType `json:"type"`
	FileSize        int64                `json:"file_size"`
	OriginalWidth   int                  `json:"original_width"`
	OriginalHeight  int                  `json:"original_height"`
	ProcessedWidth  int                  `json:"processed_width"`
	ProcessedHeight int                  `json:"processed_height"`
	Settings        json.RawMessage      `json:"settings,omitempty"`
	IsFavorite      bool                 `json:"is_favorite"`
	Tags            []string             `json:"tags"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func toItemResponse(i *domain.LibraryItem) itemResponse {
	tags := i.Tags
	if tags == nil {
		tags = []string{}
	}
	return itemResponse{
		ID:              i.ID.String(),
		Name:            i.Name,
		Type:            i.Type,
		FileSize:        i.FileSize,
		OriginalWidth:   i.OriginalWidth,
		OriginalHeight:  i.OriginalHeight,
		ProcessedWidth:  i.ProcessedWidth,
		ProcessedHeight: i.ProcessedHeight,
		Settings:        i.Settings,
		IsFavorite:      i.IsFavorite,
		Tags:            tags,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}
}

type folderResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func toFolderResponse(f *domain.LibraryFolder) folderResponse {
	return folderResponse{
		ID:          f.ID.String(),
		Name:        f.Name,
		Description: f.Description,
		Color:       f.Color,
		ItemCount:   f.ItemCount,
		CreatedAt:   f.CreatedAt,
	}
}

type shareResponse struct {
	ID        string     `json:"id"`
	Token     string     `json:"token"`
	IsPublic  bool       `json:"is_public"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	ViewCount int        `json:"view_count"`
	CreatedAt time.Time  `json:"created_at"`
}

func toShareResponse(s *domain.SharedItem) shareResponse {
	return shareResponse{
		ID:        s.ID.String(),
		Token:     s.ShareToken,
		IsPublic:  s.IsPublic,
		ExpiresAt: s.ExpiresAt,
		ViewCount: s.ViewCount,
		CreatedAt: s.CreatedAt,
	}
}

// =============================================================================
// Item Handlers
// =============================================================================

// SaveItem handles POST /api/library/items, saving a completed job's
// output into the library.
func (h *LibraryHandler) SaveItem(w http.ResponseWriter, r *http.Request) {
	const op = "LibraryHandler.SaveItem"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req saveItemRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid job_id"))
		return
	}

	item, err := h.library.SaveFromJob(r.Context(), service.SaveItemParams{
		UserID: user.ID,
		JobID:  jobID,
		Name:   req.Name,
		Tags:   req.Tags,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, map[string]itemResponse{"item": toItemResponse(item)})
}

// ListItems handles GET /api/library/items with optional filters:
// folder_id, type, favorites, limit, offset.
func (h *LibraryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	const op = "LibraryHandler.ListItems"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	params := repository.ListLibraryItemsParams{
		UserID:        user.ID,
		Type:          domain.OperationType(r.URL.Query().Get("type")),
		FavoritesOnly: r.URL.Query().Get("favorites") == "true",
		Limit:         queryInt(r, "limit", 0),
		Offset:        queryInt(r, "offset", 0),
	}

	if raw := r.URL.Query().Get("folder_id"); raw != "" {
		folderID, err := uuid.Parse(raw)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid folder_id"))
			return
		}
		params.FolderID = &folderID
	}

	items, err := h.library.ListItems(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]itemResponse, 0, len(items))
	for i := range items {
		out = append(out, toItemResponse(&items[i]))
	}

	respondJSON(w, h.logger, http.StatusOK, map[string][]itemResponse{"items": out})
}

// GetItem handles GET /api/library/items/{id}.
func (h *LibraryHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	item, err := h.library.GetItem(r.Context(), itemID, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]itemResponse{"item": toItemResponse(item)})
}

// UpdateItem handles PATCH /api/library/items/{id}.
func (h *LibraryHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	item, err := h.library.UpdateItem(r.Context(), repository.UpdateLibraryItemParams{
		ID:         itemID,
		UserID:     user.ID,
		Name:       req.Name,
		IsFavorite: req.IsFavorite,
		Tags:       req.Tags,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]itemResponse{"item": toItemResponse(item)})
}

// DeleteItem handles DELETE /api/library/items/{id}.
func (h *LibraryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.library.DeleteItem(r.Context(), itemID, user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MoveItem handles PUT /api/library/items/{id}/folder.
func (h *LibraryHandler) MoveItem(w http.ResponseWriter, r *http.Request) {
	const op = "LibraryHandler.MoveItem"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req moveItemRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var folderID *uuid.UUID
	if req.FolderID != nil {
		id, err := uuid.Parse(*req.FolderID)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid folder_id"))
			return
		}
		folderID = &id
	}

	if err := h.library.MoveItem(r.Context(), user.ID, itemID, folderID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Folder Handlers
// =============================================================================

// CreateFolder handles POST /api/library/folders.
func (h *LibraryHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req createFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	folder, err := h.library.CreateFolder(r.Context(), repository.CreateFolderParams{
		UserID:      user.ID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, map[string]folderResponse{"folder": toFolderResponse(folder)})
}

// ListFolders handles GET /api/library/folders.
func (h *LibraryHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	folders, err := h.library.ListFolders(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]folderResponse, 0, len(folders))
	for i := range folders {
		out = append(out, toFolderResponse(&folders[i]))
	}

	respondJSON(w, h.logger, http.StatusOK, map[string][]folderResponse{"folders": out})
}

// DeleteFolder handles DELETE /api/library/folders/{id}. Items in the
// folder stay in the library.
func (h *LibraryHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	folderID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.library.DeleteFolder(r.Context(), folderID, user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Share Handlers
// =============================================================================

// ShareItem handles POST /api/library/items/{id}/share.
func (h *LibraryHandler) ShareItem(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req shareRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	share, err := h.library.Share(r.Context(), service.ShareParams{
		UserID:    user.ID,
		ItemID:    itemID,
		IsPublic:  req.IsPublic,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, map[string]shareResponse{"share": toShareResponse(share)})
}

// Unshare handles DELETE /api/library/shares/{id}.
func (h *LibraryHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	shareID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.library.Unshare(r.Context(), shareID, user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ViewShare handles GET /share/{token}, the public share endpoint. No
// authentication required; expired or unknown tokens return 404.
func (h *LibraryHandler) ViewShare(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	view, err := h.library.ResolveShare(r.Context(), token)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"item": toItemResponse(&view.Item),
		"url":  view.URL,
		"share": map[string]interface{}{
			"is_public":  view.Share.IsPublic,
			"view_count": view.Share.ViewCount,
			"expires_at": view.Share.ExpiresAt,
		},
	})
}
