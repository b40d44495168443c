package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"authgate/internal/auth"
	"authgate/internal/config"
)

type googleStub struct {
	exchange func(ctx context.Context, code string) (*auth.GoogleClaims, error)
	allowed  func(email string) bool
}

func (g *googleStub) AuthURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (g *googleStub) Exchange(ctx context.Context, code string) (*auth.GoogleClaims, error) {
	if g.exchange != nil {
		return g.exchange(ctx, code)
	}
	return &auth.GoogleClaims{Sub: "sub-1", Email: "user@example.com", EmailVerified: true, Name: "User"}, nil
}

func (g *googleStub) IsEmailAllowed(email string) bool {
	if g.allowed != nil {
		return g.allowed(email)
	}
	return true
}

type captureMailer struct {
	code string
}

func (m *captureMailer) SendVerificationCode(_ context.Context, _, code string) error {
	m.code = code
	return nil
}

type testEnv struct {
	router http.Handler
	mailer *captureMailer
	google *googleStub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := auth.NewInMemoryRepository()
	codec := auth.NewTokenCodec("test-secret", time.Minute, time.Hour)
	mailer := &captureMailer{}
	codes := auth.NewCodeEngine(repo, mailer, 15*time.Minute, logger)
	service := auth.NewService(repo, codec, auth.NewMemoryBlocklist(), codes, logger)
	google := &googleStub{}

	cfg := config.Config{Environment: "test", AllowedOrigins: []string{"*"}}
	router := NewRouter(cfg, google, service, codes, logger)
	return &testEnv{router: router, mailer: mailer, google: google}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return payload
}

func TestBeginGoogleReturnsConsentURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/auth/google", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	payload := decodeBody(t, rec)
	authURL, _ := payload["auth_url"].(string)
	state, _ := payload["state"].(string)
	if authURL == "" || state == "" {
		t.Fatalf("expected auth_url and state, got %v", payload)
	}
	if !strings.Contains(authURL, state) {
		t.Fatal("expected state to be embedded in the consent URL")
	}
}

func TestCompleteGoogleIssuesTokens(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/google/callback", `{"code":"auth-code"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	payload := decodeBody(t, rec)
	if payload["access_token"] == "" || payload["refresh_token"] == "" {
		t.Fatalf("expected token pair, got %v", payload)
	}
	user, ok := payload["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user object, got %T", payload["user"])
	}
	if user["email"] != "user@example.com" {
		t.Fatalf("expected user email, got %v", user["email"])
	}
}

func TestCompleteGoogleRejectsUnverifiedEmail(t *testing.T) {
	env := newTestEnv(t)
	env.google.exchange = func(ctx context.Context, code string) (*auth.GoogleClaims, error) {
		return &auth.GoogleClaims{Sub: "sub-1", Email: "user@example.com", EmailVerified: false}, nil
	}

	rec := env.do(t, http.MethodPost, "/api/auth/google/callback", `{"code":"auth-code"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestCompleteGoogleRejectsDisallowedEmail(t *testing.T) {
	env := newTestEnv(t)
	env.google.allowed = func(email string) bool { return false }

	rec := env.do(t, http.MethodPost, "/api/auth/google/callback", `{"code":"auth-code"}`, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestCompleteGoogleSurfacesProviderError(t *testing.T) {
	env := newTestEnv(t)
	env.google.exchange = func(ctx context.Context, code string) (*auth.GoogleClaims, error) {
		return nil, errors.New("exchange refused")
	}

	rec := env.do(t, http.MethodPost, "/api/auth/google/callback", `{"code":"bad"}`, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["code"] != "provider_error" {
		t.Fatalf("expected provider_error code, got %v", payload["code"])
	}
}

func TestRequestEmailCodeValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/email/request", `{"email":"not-an-email"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/email/request", `{"email":"u@x.com"}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}
	if env.mailer.code == "" {
		t.Fatal("expected a verification code to be dispatched")
	}
}

func TestVerifyEmailCodeRejectsWrongCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/email/request", `{"email":"u@x.com"}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/email/verify", `{"email":"u@x.com","code":"000000"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["code"] != "invalid_verification_code" {
		t.Fatalf("expected invalid_verification_code, got %v", payload["code"])
	}
}

func TestEmailLoginRefreshLogoutFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/email/request", `{"email":"u@x.com"}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/email/verify", `{"email":"u@x.com","code":"`+env.mailer.code+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	login := decodeBody(t, rec)
	accessToken, _ := login["access_token"].(string)
	refreshToken, _ := login["refresh_token"].(string)
	if accessToken == "" || refreshToken == "" {
		t.Fatal("expected a token pair from email login")
	}

	// The access token authenticates /me.
	rec = env.do(t, http.MethodGet, "/api/auth/me", "", map[string]string{"Authorization": "Bearer " + accessToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 from /me, got %d", rec.Code)
	}
	me := decodeBody(t, rec)
	if me["email"] != "u@x.com" {
		t.Fatalf("expected profile email, got %v", me["email"])
	}

	// Refresh rotates; the old refresh token dies.
	rec = env.do(t, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+refreshToken+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 from refresh, got %d", rec.Code)
	}
	rotated := decodeBody(t, rec)
	newRefresh, _ := rotated["refresh_token"].(string)
	if newRefresh == "" || newRefresh == refreshToken {
		t.Fatal("expected a rotated refresh token")
	}

	rec = env.do(t, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+refreshToken+`"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected stale token refresh to 401, got %d", rec.Code)
	}

	// Logout ends the lineage and revokes the access token.
	rec = env.do(t, http.MethodPost, "/api/auth/logout", "", map[string]string{"Authorization": "Bearer " + accessToken})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 from logout, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+newRefresh+`"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected refresh after logout to 401, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/auth/me", "", map[string]string{"Authorization": "Bearer " + accessToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to 401, got %d", rec.Code)
	}
	revoked := decodeBody(t, rec)
	if revoked["code"] != "token_revoked" {
		t.Fatalf("expected token_revoked, got %v", revoked["code"])
	}
}
