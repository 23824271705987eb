package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/auth"
	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/session"
)

// =============================================================================
// Mock UserService Implementation
// =============================================================================

// mockUserService implements the service.UserService interface for testing.
type mockUserService struct {
	GetBySessionTokenFunc func(ctx context.Context, token string) (*domain.User, error)
	LogoutFunc            func(ctx context.Context, token string) error
}

func (m *mockUserService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Login(ctx context.Context, email, password, remoteIP string) (*domain.LoginResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	if m.GetBySessionTokenFunc != nil {
		return m.GetBySessionTokenFunc(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) UpdateProfile(ctx context.Context, params domain.ProfileUpdateParams) error {
	return errors.New("not implemented")
}

func (m *mockUserService) ChangePassword(ctx context.Context, params domain.PasswordChangeParams) error {
	return errors.New("not implemented")
}

func (m *mockUserService) DeleteExpiredSessions(ctx context.Context) error {
	return nil
}

// =============================================================================
// Test Helpers
// =============================================================================

// newTestLogger creates a logger that only reports errors during tests.
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestAuthMiddleware(mock *mockUserService) *AuthMiddleware {
	return NewAuthMiddleware(mock, newTestLogger(), false)
}

func testUser() *domain.User {
	return &domain.User{
		ID:    uuid.New(),
		Email: "test@example.com",
	}
}

// =============================================================================
// WithUser Middleware Tests
// =============================================================================

func TestWithUser_NoCookie_ContinuesWithoutUser(t *testing.T) {
	mock := &mockUserService{}
	mw := newTestAuthMiddleware(mock)

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if auth.GetUser(r.Context()) != nil {
			t.Error("expected no user in context")
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()

	mw.WithUser(handler).ServeHTTP(rec, req)

	if !handlerCalled {
		t.Error("expected next handler to be called")
	}
}

func TestWithUser_ValidSession_SetsUserInContext(t *testing.T) {
	want := testUser()
	mock := &mockUserService{
		GetBySessionTokenFunc: func(ctx context.Context, token string) (*domain.User, error) {
			if token != "valid-token" {
				t.Errorf("expected token %q, got %q", "valid-token", token)
			}
			return want, nil
		},
	}
	mw := newTestAuthMiddleware(mock)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := auth.GetUser(r.Context())
		if got == nil {
			t.Fatal("expected user in context")
		}
		if got.ID != want.ID {
			t.Errorf("expected user %s, got %s", want.ID, got.ID)
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "valid-token"})
	rec := httptest.NewRecorder()

	mw.WithUser(handler).ServeHTTP(rec, req)
}

func TestWithUser_InvalidSession_ClearsCookieAndContinues(t *testing.T) {
	mock := &mockUserService{
		GetBySessionTokenFunc: func(ctx context.Context, token string) (*domain.User, error) {
			return nil, domain.Unauthorized("UserService.GetBySessionToken", "Invalid or expired session")
		},
	}
	mw := newTestAuthMiddleware(mock)

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if auth.GetUser(r.Context()) != nil {
			t.Error("expected no user in context")
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "expired-token"})
	rec := httptest.NewRecorder()

	mw.WithUser(handler).ServeHTTP(rec, req)

	if !handlerCalled {
		t.Error("expected next handler to be called")
	}

	setCookie := rec.Header().Get("Set-Cookie")
	if !strings.Contains(setCookie, session.CookieName+"=") {
		t.Errorf("expected session cookie to be cleared, got %q", setCookie)
	}
	if !strings.Contains(setCookie, "Max-Age=0") {
		t.Errorf("expected Max-Age=0 on cleared cookie, got %q", setCookie)
	}
}

// =============================================================================
// RequireUser Middleware Tests
// =============================================================================

func TestRequireUser_NoUser_Returns401(t *testing.T) {
	mock := &mockUserService{}
	mw := newTestAuthMiddleware(mock)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()

	mw.RequireUser(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON response, got %q", ct)
	}
}

func TestRequireUser_WithUser_CallsNext(t *testing.T) {
	mock := &mockUserService{}
	mw := newTestAuthMiddleware(mock)

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req = req.WithContext(auth.SetUser(req.Context(), testUser()))
	rec := httptest.NewRecorder()

	mw.RequireUser(handler).ServeHTTP(rec, req)

	if !handlerCalled {
		t.Error("expected next handler to be called")
	}
}

// =============================================================================
// Stack Tests
// =============================================================================

func TestStack_AppliesMiddlewareInOrder(t *testing.T) {
	var order []string

	mkMw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	stack := Stack(mkMw("first"), mkMw("second"), mkMw("third"))
	handler := stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	want := []string{"first", "second", "third", "handler"}
	if len(order) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], order[i])
		}
	}
}
