package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"authgate/internal/auth"
)

// GoogleAuthenticator is the capability the transport needs from the identity
// provider adapter.
type GoogleAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleClaims, error)
	IsEmailAllowed(email string) bool
}

// AuthHandler exposes the login, refresh, and logout endpoints consumed by
// mobile clients.
type AuthHandler struct {
	google  GoogleAuthenticator
	service *auth.Service
	codes   *auth.CodeEngine
	logger  *slog.Logger
}

// NewAuthHandler creates a handler. google may be nil when federated login is
// not configured; the endpoints then answer 503.
func NewAuthHandler(google GoogleAuthenticator, service *auth.Service, codes *auth.CodeEngine, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{google: google, service: service, codes: codes, logger: logger}
}

// BeginGoogle handles GET /api/auth/google
// Returns the consent URL and the CSRF state the client must compare against
// the callback. Mobile clients open the URL in the system browser.
func (h *AuthHandler) BeginGoogle(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusServiceUnavailable, "provider_unavailable", "federated login is not configured")
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"auth_url": h.google.AuthURL(state),
		"state":    state,
	})
}

// CompleteGoogle handles POST /api/auth/google/callback
// Exchanges the authorization code for a verified identity and completes the
// federated login.
func (h *AuthHandler) CompleteGoogle(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusServiceUnavailable, "provider_unavailable", "federated login is not configured")
		return
	}

	var payload struct {
		Code string `json:"code"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(payload.Code) == "" {
		writeError(w, http.StatusBadRequest, "invalid_payload", "code is required")
		return
	}

	exchangeCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims, err := h.google.Exchange(exchangeCtx, payload.Code)
	if err != nil {
		h.logger.Warn("google exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "provider_error", "identity provider rejected the request")
		return
	}

	if !claims.EmailVerified {
		writeError(w, http.StatusUnauthorized, "email_unverified", "email address is not verified with the provider")
		return
	}
	if !h.google.IsEmailAllowed(claims.Email) {
		writeError(w, http.StatusForbidden, "email_not_allowed", "account is not allowed to sign in")
		return
	}

	user, pair, err := h.service.LoginWithGoogle(r.Context(), claims, deviceFromRequest(r))
	if err != nil {
		h.logger.Error("google login failed", "error", err)
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse(user, pair))
}

// RequestEmailCode handles POST /api/auth/email/request
// Stores a one-time code and emails it. Responds 202 whether or not the
// address maps to an existing account.
func (h *AuthHandler) RequestEmailCode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeDecodeError(w, err)
		return
	}

	email, ok := normalizeEmail(payload.Email)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_payload", "a valid email is required")
		return
	}

	if err := h.codes.RequestCode(r.Context(), email); err != nil {
		h.logger.Error("verification code request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not send verification code")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// VerifyEmailCode handles POST /api/auth/email/verify
// Validates the code and completes an email login.
func (h *AuthHandler) VerifyEmailCode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeDecodeError(w, err)
		return
	}

	email, ok := normalizeEmail(payload.Email)
	code := strings.TrimSpace(payload.Code)
	if !ok || code == "" {
		writeError(w, http.StatusBadRequest, "invalid_payload", "email and code are required")
		return
	}

	user, pair, err := h.service.LoginWithEmailCode(r.Context(), email, code, deviceFromRequest(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse(user, pair))
}

// Refresh handles POST /api/auth/refresh
// Rotates the refresh token and returns a fresh pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeDecodeError(w, err)
		return
	}

	pair, err := h.service.Refresh(r.Context(), strings.TrimSpace(payload.RefreshToken), deviceFromRequest(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Logout handles POST /api/auth/logout (bearer-protected)
// Revokes the presented access token and ends every session of the user.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		unauthorized(w)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token_malformed", "access token invalid")
		return
	}

	if err := h.service.Logout(r.Context(), userID, AccessTokenFromContext(r.Context())); err != nil {
		h.logger.Error("logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me (bearer-protected)
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		unauthorized(w)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token_malformed", "access token invalid")
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("load user failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}
	if user == nil {
		unauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, userPayload(user))
}

func loginResponse(user *auth.User, pair auth.TokenPair) map[string]any {
	return map[string]any{
		"user":          userPayload(user),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}
}

func userPayload(user *auth.User) map[string]any {
	return map[string]any{
		"id":            user.ID,
		"email":         user.Email,
		"display_name":  user.DisplayName,
		"login_count":   user.LoginCount,
		"last_login_at": user.LastLoginAt,
		"created_at":    user.CreatedAt,
	}
}

func deviceFromRequest(r *http.Request) auth.Device {
	return auth.Device{
		Info:      r.UserAgent(),
		IPAddress: r.RemoteAddr,
	}
}

func normalizeEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > 254 {
		return "", false
	}
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" || domain == "" || !strings.Contains(domain, ".") {
		return "", false
	}
	return email, true
}
