package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"leadgate/config"
	"leadgate/services/forms"
)

// ConfigHandler exposes non-secret configuration to the site and the
// admin-gated reload/override endpoints.
type ConfigHandler struct {
	config *config.Provider
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(configProvider *config.Provider) *ConfigHandler {
	return &ConfigHandler{config: configProvider}
}

// Site returns the non-secret values the site needs. Secrets (password
// hash, signing key) never leave the server.
func (h *ConfigHandler) Site(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Get()

	formIDs := make([]string, 0, 3)
	for _, id := range []string{"contact", "booking", "newsletter"} {
		if _, ok := forms.SchemaFor(id); ok {
			formIDs = append(formIDs, id)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"forms":                  formIDs,
		"sessionDurationSeconds": int(cfg.SessionDuration.Seconds()),
		"loginMaxAttempts":       cfg.LoginMaxAttempts,
	})
}

// Reload re-reads environment configuration and persisted overrides.
// Admin-gated by the router.
func (h *ConfigHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.config.Reload(); err != nil {
		http.Error(w, `{"error": "failed to reload configuration"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "reloaded"})
}

// WebhookOverrideRequest is the body for patching a webhook URL.
type WebhookOverrideRequest struct {
	URL string `json:"url"`
}

// SetWebhook patches the webhook URL for a form source at runtime. An
// empty URL clears the override, falling back to the environment value.
func (h *ConfigHandler) SetWebhook(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]

	var req WebhookOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.config.SetWebhookOverride(source, req.URL); err != nil {
		http.Error(w, `{"error": "unknown webhook source"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
}
