package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attire-api/internal/domain"
	"attire-api/internal/service"
)

type stubUsers struct {
	signup         func(context.Context, service.SignupInput) (*service.AuthResult, error)
	login          func(context.Context, string, string) (*service.AuthResult, error)
	authenticate   func(context.Context, string) (*domain.User, error)
	forgotPassword func(context.Context, string) error
	resetPassword  func(context.Context, string, service.ResetPasswordInput) (*service.AuthResult, error)
	updatePassword func(context.Context, string, service.UpdatePasswordInput) (*service.AuthResult, error)
	updateProfile  func(context.Context, string, service.ProfileInput) (*service.AuthResult, error)
	getProfile     func(context.Context, string) (*domain.Profile, error)
}

func (s *stubUsers) Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error) {
	return s.signup(ctx, in)
}

func (s *stubUsers) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	return s.login(ctx, email, password)
}

func (s *stubUsers) Authenticate(ctx context.Context, raw string) (*domain.User, error) {
	if s.authenticate == nil {
		return nil, service.ErrNotLoggedIn
	}
	return s.authenticate(ctx, raw)
}

func (s *stubUsers) ForgotPassword(ctx context.Context, email string) error {
	return s.forgotPassword(ctx, email)
}

func (s *stubUsers) ResetPassword(ctx context.Context, secret string, in service.ResetPasswordInput) (*service.AuthResult, error) {
	return s.resetPassword(ctx, secret, in)
}

func (s *stubUsers) UpdatePassword(ctx context.Context, id string, in service.UpdatePasswordInput) (*service.AuthResult, error) {
	return s.updatePassword(ctx, id, in)
}

func (s *stubUsers) UpdateProfile(ctx context.Context, id string, in service.ProfileInput) (*service.AuthResult, error) {
	return s.updateProfile(ctx, id, in)
}

func (s *stubUsers) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	return s.getProfile(ctx, id)
}

var testProfile = domain.Profile{ID: "u1", Name: "Asha", Email: "asha@example.com", Phone: "9876543210", Gender: domain.GenderFemale}

func okResult() (*service.AuthResult, error) {
	return &service.AuthResult{User: testProfile, Token: "tok-123"}, nil
}

func newRouter(users service.UserService, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetOutput(io.Discard)
	}
	if opts.Cookie.MaxAge == 0 {
		opts.Cookie.MaxAge = 90 * 24 * time.Hour
	}
	router := gin.New()
	NewHandler(users, opts).RegisterRoutes(router)
	return router
}

func do(router *gin.Engine, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestSignup_SetsCookieAndReturnsToken(t *testing.T) {
	var got service.SignupInput
	users := &stubUsers{signup: func(_ context.Context, in service.SignupInput) (*service.AuthResult, error) {
		got = in
		return okResult()
	}}
	router := newRouter(users, Options{Cookie: CookieOptions{Secure: true}})

	rec := do(router, http.MethodPost, "/api/v1/users/signup",
		`{"name":"Asha","email":"a@x.com","phone":"9876543210","gender":"female","password":"secret1","confirmPassword":"secret1","passwordHash":"evil"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "secret1", got.ConfirmPassword)

	body := decode[AuthResponse](t, rec)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "tok-123", body.Token)
	assert.Equal(t, testProfile, body.Data.User)
	assert.NotContains(t, rec.Body.String(), "password")

	cookie := sessionCookie(t, rec)
	assert.Equal(t, "tok-123", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
	assert.Equal(t, 90*24*60*60, cookie.MaxAge)
	assert.Equal(t, "/", cookie.Path)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStatus string
		wantMsg    string
	}{
		{"validation", &service.Error{Kind: service.KindValidation, Message: "Name is required"}, http.StatusBadRequest, "fail", "Name is required"},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "fail", "Incorrect email or password"},
		{"not found", service.ErrNoSuchEmail, http.StatusNotFound, "fail", "There is no user with that email address"},
		{"conflict", service.ErrEmailTaken, http.StatusConflict, "fail", "Email is already registered"},
		{"reset token", service.ErrInvalidOrExpiredToken, http.StatusBadRequest, "fail", "Token is invalid or has expired"},
		{"dependency", &service.Error{Kind: service.KindDependency, Message: "There was an error sending the email. Try again later", Err: errors.New("smtp")}, http.StatusInternalServerError, "error", "There was an error sending the email. Try again later"},
		{"unexpected", errors.New("disk I/O error: /var/lib/db"), http.StatusInternalServerError, "error", "Something went wrong"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &stubUsers{login: func(context.Context, string, string) (*service.AuthResult, error) {
				return nil, tc.err
			}}
			rec := do(newRouter(users, Options{}), http.MethodPost, "/api/v1/users/login", `{"email":"a@x.com","password":"x"}`)

			assert.Equal(t, tc.wantCode, rec.Code)
			body := decode[ErrorResponse](t, rec)
			assert.Equal(t, tc.wantStatus, body.Status)
			assert.Equal(t, tc.wantMsg, body.Message)
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestLogin_EmptyAndMalformedBody(t *testing.T) {
	var gotEmail, gotPassword = "unset", "unset"
	users := &stubUsers{login: func(_ context.Context, email, password string) (*service.AuthResult, error) {
		gotEmail, gotPassword = email, password
		return nil, &service.Error{Kind: service.KindValidation, Message: "Please provide email and password"}
	}}
	router := newRouter(users, Options{})

	rec := do(router, http.MethodPost, "/api/v1/users/login", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "", gotEmail)
	assert.Equal(t, "", gotPassword)
	assert.Equal(t, "Please provide email and password", decode[ErrorResponse](t, rec).Message)

	rec = do(router, http.MethodPost, "/api/v1/users/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode[ErrorResponse](t, rec).Message)
}

func TestBodyLimit(t *testing.T) {
	users := &stubUsers{login: func(context.Context, string, string) (*service.AuthResult, error) {
		return okResult()
	}}
	router := newRouter(users, Options{MaxBodyBytes: 64})

	big := `{"email":"` + strings.Repeat("a", 200) + `@x.com","password":"x"}`
	rec := do(router, http.MethodPost, "/api/v1/users/login", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAuthGuard_HeaderBeforeCookie(t *testing.T) {
	var seen []string
	users := &stubUsers{
		authenticate: func(_ context.Context, raw string) (*domain.User, error) {
			seen = append(seen, raw)
			if raw == "" {
				return nil, service.ErrNotLoggedIn
			}
			return &domain.User{ID: "u1"}, nil
		},
		getProfile: func(_ context.Context, id string) (*domain.Profile, error) {
			p := testProfile
			p.ID = id
			return &p, nil
		},
	}
	router := newRouter(users, Options{})

	rec := do(router, http.MethodGet, "/api/v1/users/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer header-token")
		r.AddCookie(&http.Cookie{Name: "jwt", Value: "cookie-token"})
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", decode[UserResponse](t, rec).Data.User.ID)

	rec = do(router, http.MethodGet, "/api/v1/users/me", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "jwt", Value: "cookie-token"})
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "You are not logged in. Please login to get access", decode[ErrorResponse](t, rec).Message)

	assert.Equal(t, []string{"header-token", "cookie-token", ""}, seen)
}

func TestAuthGuard_RejectsStaleToken(t *testing.T) {
	called := false
	users := &stubUsers{
		authenticate: func(context.Context, string) (*domain.User, error) {
			return nil, service.ErrPasswordChanged
		},
		updateProfile: func(context.Context, string, service.ProfileInput) (*service.AuthResult, error) {
			called = true
			return okResult()
		},
	}
	rec := do(newRouter(users, Options{}), http.MethodPatch, "/api/v1/users/updateUser", `{"name":"x"}`, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer old")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Password was recently changed. Please login again", decode[ErrorResponse](t, rec).Message)
	assert.False(t, called)
}

func TestProtectedHandlers_WithoutGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	called := false
	users := &stubUsers{
		getProfile: func(context.Context, string) (*domain.Profile, error) {
			called = true
			return &domain.Profile{}, nil
		},
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := NewHandler(users, Options{Logger: logger})
	router := gin.New()
	router.GET("/me", h.me)
	router.PATCH("/password", h.updatePassword)
	router.PATCH("/profile", h.updateUser)

	tests := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/me", ""},
		{http.MethodPatch, "/password", `{"currentPassword":"secret1","password":"secret22","confirmPassword":"secret22"}`},
		{http.MethodPatch, "/profile", `{"name":"Asha"}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(router, tt.method, tt.path, tt.body)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "You are not logged in. Please login to get access", decode[ErrorResponse](t, rec).Message)
		})
	}
	assert.False(t, called)
}

func TestUpdatePassword_UsesCurrentUser(t *testing.T) {
	var gotID string
	var gotInput service.UpdatePasswordInput
	users := &stubUsers{
		authenticate: func(context.Context, string) (*domain.User, error) {
			return &domain.User{ID: "u42"}, nil
		},
		updatePassword: func(_ context.Context, id string, in service.UpdatePasswordInput) (*service.AuthResult, error) {
			gotID, gotInput = id, in
			return okResult()
		},
	}
	rec := do(newRouter(users, Options{}), http.MethodPatch, "/api/v1/users/updatePassword",
		`{"currentPassword":"old","password":"secret22","confirmPassword":"secret22"}`,
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer t") })

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u42", gotID)
	assert.Equal(t, "old", gotInput.CurrentPassword)
	assert.Equal(t, "tok-123", sessionCookie(t, rec).Value)
}

func TestForgotAndResetPassword(t *testing.T) {
	var gotSecret string
	users := &stubUsers{
		forgotPassword: func(_ context.Context, email string) error {
			if email != "a@x.com" {
				return service.ErrNoSuchEmail
			}
			return nil
		},
		resetPassword: func(_ context.Context, secret string, _ service.ResetPasswordInput) (*service.AuthResult, error) {
			gotSecret = secret
			return okResult()
		},
	}
	router := newRouter(users, Options{})

	rec := do(router, http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"a@x.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decode[MessageResponse](t, rec).Status)

	rec = do(router, http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"b@x.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/users/resetPassword/abc123", `{"password":"brandnew","confirmPassword":"brandnew"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", gotSecret)
	assert.Equal(t, "tok-123", decode[AuthResponse](t, rec).Token)
}

func TestLogout_ClearsCookie(t *testing.T) {
	rec := do(newRouter(&stubUsers{}, Options{}), http.MethodPost, "/api/v1/users/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := sessionCookie(t, rec)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestCORS(t *testing.T) {
	router := newRouter(&stubUsers{}, Options{AllowedOrigins: []string{"http://localhost:5173", "https://attire-clothing.vercel.app/"}})

	rec := do(router, http.MethodOptions, "/api/v1/users/login", "", func(r *http.Request) {
		r.Header.Set("Origin", "https://attire-clothing.vercel.app")
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://attire-clothing.vercel.app", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(router, http.MethodOptions, "/api/v1/users/login", "", func(r *http.Request) {
		r.Header.Set("Origin", "https://evil.example")
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeadersAndHealth(t *testing.T) {
	rec := do(newRouter(&stubUsers{}, Options{}), http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
}

func TestNoRoute(t *testing.T) {
	rec := do(newRouter(&stubUsers{}, Options{}), http.MethodGet, "/api/v1/products", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "fail", decode[ErrorResponse](t, rec).Status)
}

func TestRecovery(t *testing.T) {
	users := &stubUsers{login: func(context.Context, string, string) (*service.AuthResult, error) {
		panic("boom")
	}}
	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)

	rec := do(newRouter(users, Options{Logger: logger}), http.MethodPost, "/api/v1/users/login", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Something went wrong", decode[ErrorResponse](t, rec).Message)
	assert.Contains(t, logs.String(), "boom")
}
