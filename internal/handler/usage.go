package handler

import (
	"log/slog"
	"net/http"

	"github.com/sami8890/Sam-pixels/internal/auth"
	"github.com/sami8890/Sam-pixels/internal/service"
)

// UsageHandler exposes the quota limit table.
type UsageHandler struct {
	quota  service.QuotaService
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(quota service.QuotaService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		quota:  quota,
		logger: logger,
	}
}

// Limits handles GET /api/usage/limits.
//
// The response always contains all three buckets with their used and limit
// counters; a limit of -1 means the bucket has no ceiling.
func (h *UsageHandler) Limits(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limits, err := h.quota.GetLimits(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"limits": limits})
}

// usageDayResponse is one calendar day of the usage history, bucketed the
// same way as the limit table.
type usageDayResponse struct {
	Date              string `json:"date"`
	BackgroundRemoval int    `json:"background-removal"`
	ImageUpscaling    int    `json:"image-upscaling"`
	ImageTransform    int    `json:"image-transform"`
}

// History handles GET /api/usage/history.
//
// Returns the trailing window of ledger rows, oldest first. The window is
// controlled by the optional "days" query parameter (default 30, capped at
// 90); days without activity are omitted rather than zero-filled.
func (h *UsageHandler) History(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	days := queryInt(r, "days", 0)

	usages, err := h.quota.GetHistory(r.Context(), user.ID, days)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]usageDayResponse, 0, len(usages))
	for _, u := range usages {
		out = append(out, usageDayResponse{
			Date:              u.Date.Format("2006-01-02"),
			BackgroundRemoval: u.BackgroundRemovalCount,
			ImageUpscaling:    u.ImageUpscalingCount,
			ImageTransform:    u.TextWatermarkCount + u.CropResizeCount,
		})
	}

	respondJSON(w, h.logger, http.StatusOK, map[string][]usageDayResponse{"history": out})
}
