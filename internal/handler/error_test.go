package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

// =============================================================================
// Error Response Tests - Security Focus
// =============================================================================

func TestValidationErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Create a validation error with an internal operation name
	ve := domain.NewValidationError("UserService.Register", "email", "Email is required")

	req := httptest.NewRequest("POST", "/api/auth/register", nil)
	rec := httptest.NewRecorder()

	ValidationErrorResponse(rec, req, logger, ve)

	body := rec.Body.String()

	// Should NOT contain internal operation names
	if strings.Contains(body, "UserService") {
		t.Errorf("response exposes internal operation name: %s", body)
	}

	// Should contain the field error
	if !strings.Contains(body, "email") {
		t.Errorf("response should contain field name: %s", body)
	}
	if !strings.Contains(body, "Email is required") {
		t.Errorf("response should contain field message: %s", body)
	}

	var parsed JSONError
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if parsed.Error.Code != domain.EINVALID {
		t.Errorf("error code = %q, want %q", parsed.Error.Code, domain.EINVALID)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Create an internal error wrapping a database error
	dbErr := &mockDatabaseError{message: "pq: relation \"users\" does not exist"}
	internalErr := domain.Internal(dbErr, "UserRepository.GetByEmail", "Database query failed")

	req := httptest.NewRequest("GET", "/api/users/123", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, internalErr)

	body := rec.Body.String()

	// Should NOT contain database error details
	if strings.Contains(body, "pq:") {
		t.Errorf("response exposes database error: %s", body)
	}
	if strings.Contains(body, "relation") {
		t.Errorf("response exposes database schema: %s", body)
	}
	if strings.Contains(body, "UserRepository") {
		t.Errorf("response exposes internal operation: %s", body)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestErrorResponse_UnwrappedErrorReturnsGeneric(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Create a raw error (not a domain.Error)
	rawErr := &mockDatabaseError{message: "FATAL: password authentication failed for user \"postgres\""}

	req := httptest.NewRequest("GET", "/api/data", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, rawErr)

	body := rec.Body.String()

	// Should NOT contain the raw error
	if strings.Contains(body, "FATAL") {
		t.Errorf("response exposes raw error: %s", body)
	}
	if strings.Contains(body, "postgres") {
		t.Errorf("response exposes database user: %s", body)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EPAYMENT, http.StatusPaymentRequired},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unknown_code", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ErrorCodeToHTTPStatus(tt.code); got != tt.status {
				t.Errorf("ErrorCodeToHTTPStatus(%q) = %d, want %d", tt.code, got, tt.status)
			}
		})
	}
}

func TestErrorResponse_QuotaExceededIsPaymentRequired(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	err := domain.Errorf(domain.EPAYMENT, "QuotaService.CheckQuota",
		"Daily limit reached. Upgrade your plan to continue processing.")

	req := httptest.NewRequest("POST", "/api/jobs", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, err)

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusPaymentRequired)
	}

	var parsed JSONError
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if parsed.Error.Code != domain.EPAYMENT {
		t.Errorf("error code = %q, want %q", parsed.Error.Code, domain.EPAYMENT)
	}
	if !strings.Contains(parsed.Error.Message, "Upgrade your plan") {
		t.Errorf("message should keep the upgrade hint, got: %s", parsed.Error.Message)
	}
	if strings.Contains(rec.Body.String(), "QuotaService") {
		t.Errorf("response exposes internal operation: %s", rec.Body.String())
	}
}

// mockDatabaseError simulates a database error for testing
type mockDatabaseError struct {
	message string
}

func (e *mockDatabaseError) Error() string {
	return e.message
}
