package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"authgate/internal/auth"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

const maxJSONBodyBytes int64 = 64 << 10

var errPayloadTooLarge = errors.New("payload too large")

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	limited := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() {
		_ = limited.Close()
	}()

	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w (max %d bytes)", errPayloadTooLarge, maxErr.Limit)
		}
		return err
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errPayloadTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "payload too large")
		return
	}
	// Generic message to avoid leaking JSON parsing details
	writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
}

// writeAuthError maps the core error taxonomy onto transport responses with
// stable machine-readable codes. Unknown errors become an opaque 500.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, "invalid_payload", "missing required fields")
	case errors.Is(err, auth.ErrInvalidVerificationCode):
		writeError(w, http.StatusUnauthorized, "invalid_verification_code", "invalid or expired verification code")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "invalid refresh token")
	case errors.Is(err, auth.ErrRefreshTokenExpired):
		writeError(w, http.StatusUnauthorized, "refresh_token_expired", "refresh token expired, log in again")
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token_expired", "access token expired")
	case errors.Is(err, auth.ErrTokenMalformed):
		writeError(w, http.StatusUnauthorized, "token_malformed", "access token invalid")
	case errors.Is(err, auth.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, "token_revoked", "access token revoked")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
