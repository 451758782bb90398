package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"leadgate/api"
	"leadgate/services/accounts"
	"leadgate/services/adminauth"
	"leadgate/services/credentials"
	"leadgate/services/sessions"
	"leadgate/utils"
)

// AuthHandler handles the admin authentication endpoints.
type AuthHandler struct {
	auth     *adminauth.Service
	sessions *sessions.Service
	accounts *accounts.Service
	verifier *credentials.Verifier
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authSvc *adminauth.Service, sessionsSvc *sessions.Service, accountsSvc *accounts.Service, verifier *credentials.Verifier) *AuthHandler {
	return &AuthHandler{
		auth:     authSvc,
		sessions: sessionsSvc,
		accounts: accountsSvc,
		verifier: verifier,
	}
}

// LoginRequest represents the login request body. The admin account is
// shared, so only the password is submitted.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse represents the login response.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	Role      string `json:"role"`
}

// StatusResponse reports the login state machine position, including the
// lockout countdown the dashboard displays.
type StatusResponse struct {
	State              string `json:"state"`
	LockoutRemainingMs int64  `json:"lockoutRemainingMs,omitempty"`
}

// Login authenticates the admin and returns a session token. Failed
// attempts count toward the per-IP lockout; once locked, attempts are
// rejected before the password is even checked.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	session, err := h.auth.Login(r.Context(), utils.ClientIP(r), req.Password)
	if err != nil {
		var lockout *adminauth.LockoutError
		switch {
		case errors.As(err, &lockout):
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.FormatInt(int64(lockout.Remaining.Seconds())+1, 10))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error":        lockout.Error(),
				"retryAfterMs": lockout.Remaining.Milliseconds(),
			})
		case errors.Is(err, adminauth.ErrInvalidCredentials):
			// Generic on purpose: no oracle for what exactly was wrong.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid password"})
		default:
			http.Error(w, `{"error": "failed to create session"}`, http.StatusInternalServerError)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     api.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	resp := LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z"),
		Role:      string(session.Role),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Logout invalidates the current session. Logging out twice is fine.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := api.ExtractToken(r)

	if err := h.auth.Logout(token); err != nil {
		http.Error(w, `{"error": "failed to revoke session"}`, http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     api.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "logged out"})
}

// Me returns info about the current admin session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := api.ExtractToken(r)
	if token == "" {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	session, err := h.sessions.Validate(token)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired session"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"role":              string(session.Role),
		"issuedAt":          session.IssuedAt.Format(time.RFC3339),
		"expiresAt":         session.ExpiresAt.Format(time.RFC3339),
		"generatedPassword": h.accounts.HasGeneratedPassword(),
	})
}

// Refresh replaces the session with one carrying a fresh expiry.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := api.ExtractToken(r)
	if token == "" {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	session, err := h.sessions.Refresh(token)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired session"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     api.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	resp := LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z"),
		Role:      string(session.Role),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Status reports the login state machine, including the remaining lockout
// time the login page counts down from.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.auth.Status()

	resp := StatusResponse{State: status.State.String()}
	if status.LockoutRemaining > 0 {
		resp.LockoutRemainingMs = status.LockoutRemaining.Milliseconds()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ChangePasswordRequest represents a password change request.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword changes the admin password. The route sits behind the
// admin guard; the current password is still re-verified here.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if !h.verifier.Verify(req.CurrentPassword, h.accounts.PasswordHash()) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "current password is incorrect"})
		return
	}

	if err := h.accounts.UpdatePassword(req.NewPassword); err != nil {
		if errors.Is(err, credentials.ErrPasswordTooShort) || errors.Is(err, credentials.ErrPasswordRequired) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		http.Error(w, `{"error": "failed to update password"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "password changed"})
}

// Options handles CORS preflight requests.
func (h *AuthHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
