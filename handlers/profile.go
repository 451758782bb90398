package handlers

import (
	"encoding/json"
	"net/http"

	"leadgate/services/identity"
)

// ProfileHandler serves the end-user's cached profile. Routes using it
// sit behind the authenticated-only guard, so by the time a request lands
// here the identity state has resolved and carries a user.
type ProfileHandler struct {
	authCtx *identity.Context
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(authCtx *identity.Context) *ProfileHandler {
	return &ProfileHandler{authCtx: authCtx}
}

// Me returns the current user and profile.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	state := h.authCtx.State()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user":    state.User,
		"profile": state.Profile,
	})
}

// SignOut terminates the end-user session. Idempotent: signing out with
// no active session succeeds.
func (h *ProfileHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.authCtx.SignOut(r.Context()); err != nil {
		http.Error(w, `{"error": "failed to sign out"}`, http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "signed out"})
}
