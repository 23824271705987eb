package handler

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sami8890/Sam-pixels/internal/auth"
	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/service"
	"github.com/sami8890/Sam-pixels/internal/session"
)

// LoginLimiter lets the login handler feed results back into the rate
// limiter without importing the middleware package (which imports handler).
type LoginLimiter interface {
	RecordFailedLogin(ip string)
	ResetLogin(ip string)
}

// AuthHandler handles registration, login, logout, and account endpoints.
type AuthHandler struct {
	users    service.UserService
	limiter  LoginLimiter
	logger   *slog.Logger
	isSecure bool
}

// NewAuthHandler creates a new AuthHandler. limiter may be nil when login
// rate limiting is handled elsewhere.
func NewAuthHandler(users service.UserService, limiter LoginLimiter, logger *slog.Logger, isSecure bool) *AuthHandler {
	return &AuthHandler{
		users:    users,
		limiter:  limiter,
		logger:   logger,
		isSecure: isSecure,
	}
}

// =============================================================================
// Request / Response Types
// =============================================================================

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// userResponse is the public representation of a user. The password hash
// never leaves the service layer.
type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

// =============================================================================
// Handlers
// =============================================================================

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.users.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, map[string]userResponse{"user": toUserResponse(user)})
}

// Login handles POST /api/auth/login. On success a session cookie is set;
// failed attempts are reported to the rate limiter.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	remoteIP := clientIP(r)

	result, err := h.users.Login(r.Context(), req.Email, req.Password, remoteIP)
	if err != nil {
		if h.limiter != nil && domain.ErrorCode(err) == domain.EUNAUTHORIZED {
			h.limiter.RecordFailedLogin(remoteIP)
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if h.limiter != nil {
		h.limiter.ResetLogin(remoteIP)
	}

	setSessionCookie(w, result.Token, h.isSecure)
	respondJSON(w, h.logger, http.StatusOK, map[string]userResponse{"user": toUserResponse(result.User)})
}

// Logout handles POST /api/auth/logout. Idempotent: a missing or invalid
// session still clears the cookie and returns 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(session.CookieName)
	if err == nil {
		if err := h.users.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Error("failed to invalidate session", "error", err)
		}
	}

	clearSessionCookie(w, h.isSecure)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]userResponse{"user": toUserResponse(user)})
}

// UpdateProfile handles PATCH /api/auth/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	err := h.users.UpdateProfile(r.Context(), domain.ProfileUpdateParams{
		UserID: user.ID,
		Name:   req.Name,
	})
	if err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword handles POST /api/auth/password. Changing the password
// invalidates all other sessions, so the client keeps only this one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	err := h.users.ChangePassword(r.Context(), domain.PasswordChangeParams{
		UserID:          user.ID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Session Cookie Helpers
// =============================================================================

// setSessionCookie sets the session cookie on the response. HttpOnly and
// SameSite=Lax; Secure in production.
func setSessionCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     session.CookiePath,
		MaxAge:   session.CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie removes the session cookie from the client.
func clearSessionCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     session.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clientIP extracts the client IP, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
