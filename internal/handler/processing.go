package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/auth"
	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/service"
)

// maxMultipartMemory is how much of a multipart upload is buffered in
// memory before spilling to disk. The upload itself may be larger.
const maxMultipartMemory = 8 << 20

// ProcessingHandler handles job submission and job state endpoints.
type ProcessingHandler struct {
	processing service.ProcessingService
	logger     *slog.Logger
}

// NewProcessingHandler creates a new ProcessingHandler.
func NewProcessingHandler(processing service.ProcessingService, logger *slog.Logger) *ProcessingHandler {
	return &ProcessingHandler{
		processing: processing,
		logger:     logger,
	}
}

// =============================================================================
// Response Types
// =============================================================================

type jobResponse struct {
	ID             string               `json:"id"`
	Type           domain.OperationType `json:"type"`
	Status         domain.JobStatus     `json:"status"`
	Settings       json.RawMessage      `json:"settings,omitempty"`
	ProcessingTime *float64             `json:"processing_time,omitempty"`
	ErrorMessage   string               `json:"error_message,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	StartedAt      *time.Time           `json:"started_at,omitempty"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
}

func toJobResponse(j *domain.ProcessingJob) jobResponse {
	return jobResponse{
		ID:             j.ID.String(),
		Type:           j.Type,
		Status:         j.Status,
		Settings:       j.Settings,
		ProcessingTime: j.ProcessingTime,
		ErrorMessage:   j.ErrorMessage,
		CreatedAt:      j.CreatedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
	}
}

// =============================================================================
// Handlers
// =============================================================================

// Submit handles POST /api/jobs.
//
// The request is multipart/form-data with fields:
// - image: the source image file (required)
// - type: operation type, e.g. "background-removal" (required)
// - settings: operation-specific JSON parameters (optional)
func (h *ProcessingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	const op = "ProcessingHandler.Submit"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Request must be multipart/form-data with an image file"))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Missing image file"))
		return
	}
	defer file.Close()

	var settings json.RawMessage
	if raw := r.FormValue("settings"); raw != "" {
		if !json.Valid([]byte(raw)) {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "Settings must be valid JSON"))
			return
		}
		settings = json.RawMessage(raw)
	}

	job, err := h.processing.Submit(r.Context(), service.SubmitJobParams{
		UserID:      user.ID,
		Type:        domain.OperationType(r.FormValue("type")),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        file,
		Settings:    settings,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusAccepted, map[string]jobResponse{"job": toJobResponse(job)})
}

// GetJob handles GET /api/jobs/{id}.
func (h *ProcessingHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	jobID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	job, err := h.processing.GetJob(r.Context(), jobID, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]jobResponse{"job": toJobResponse(job)})
}

// ListJobs handles GET /api/jobs with optional limit and offset parameters.
func (h *ProcessingHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	jobs, err := h.processing.ListJobs(r.Context(), user.ID, limit, offset)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobResponse(&jobs[i]))
	}

	respondJSON(w, h.logger, http.StatusOK, map[string][]jobResponse{"jobs": out})
}

// Result handles GET /api/jobs/{id}/result, returning a short-lived
// download URL for the processed image.
func (h *ProcessingHandler) Result(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	jobID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	url, err := h.processing.ResultURL(r.Context(), jobID, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]string{"url": url})
}

// =============================================================================
// Request Helpers
// =============================================================================

// pathUUID parses a UUID path parameter from the matched route pattern.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	const op = "handler.pathUUID"

	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Invalid(op, "Invalid "+name+" parameter")
	}
	return id, nil
}

// queryInt parses an integer query parameter, returning def when absent or
// malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
