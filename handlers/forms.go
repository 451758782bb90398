package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"leadgate/config"
	"leadgate/services/forms"
	"leadgate/services/relay"
)

// FormsHandler handles form submission endpoints: the acknowledged
// pipeline to backend functions and the legacy webhook relay.
type FormsHandler struct {
	pipeline *forms.Pipeline
	relay    *relay.Relay
	config   *config.Provider
}

// NewFormsHandler creates a new forms handler.
func NewFormsHandler(pipeline *forms.Pipeline, relaySvc *relay.Relay, configProvider *config.Provider) *FormsHandler {
	return &FormsHandler{
		pipeline: pipeline,
		relay:    relaySvc,
		config:   configProvider,
	}
}

// SubmitRequest is a form submission body: the raw field values.
type SubmitRequest map[string]string

// Submit validates and relays a submission through the acknowledged
// pipeline. Validation failures return field-level errors without any
// network call; a backend error field means failure even on HTTP 200.
func (h *FormsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	endpointID := mux.Vars(r)["endpointID"]

	var fields SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	result, err := h.pipeline.Submit(r.Context(), endpointID, fields)
	if err != nil {
		var validation forms.ValidationError
		var backend *forms.BackendError
		w.Header().Set("Content-Type", "application/json")
		switch {
		case errors.Is(err, forms.ErrUnknownEndpoint):
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "unknown form"})
		case errors.As(err, &validation):
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]any{
				"error":  "validation failed",
				"fields": validation,
			})
		case errors.As(err, &backend):
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": backend.Message})
		default:
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]string{"error": forms.ErrBackendUnreachable.Error()})
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": result.Message,
		"data":    result.Data,
	})
}

// RelayRequest is the legacy webhook relay body.
type RelayRequest struct {
	Fields  map[string]string `json:"fields"`
	PageURL string            `json:"pageUrl"`
}

// Relay sends a submission straight to the configured third-party webhook
// for the source. Delivery is fire-and-forget: `delivered` only means the
// request left this service without a local network error. Input is still
// validated against the source's schema first.
func (h *FormsHandler) Relay(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]

	webhookURL, err := h.config.WebhookURL(source)
	if err != nil {
		http.Error(w, `{"error": "unknown form"}`, http.StatusNotFound)
		return
	}

	var req RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := forms.Validate(source, req.Fields); err != nil {
		var validation forms.ValidationError
		w.Header().Set("Content-Type", "application/json")
		if errors.As(err, &validation) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]any{
				"error":  "validation failed",
				"fields": validation,
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown form"})
		return
	}

	delivered := h.relay.Send(r.Context(), webhookURL, req.Fields, relay.Metadata{
		SourceTag: source,
		PageURL:   req.PageURL,
		Referrer:  r.Referer(),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]bool{"delivered": delivered})
}

// Broadcast fans a submission out to every configured automation webhook.
// Same opaque delivery contract as Relay.
func (h *FormsHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	delivered := h.relay.Broadcast(r.Context(), h.config.WebhookURLs(), req.Fields, relay.Metadata{
		SourceTag: "broadcast",
		PageURL:   req.PageURL,
		Referrer:  r.Referer(),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"delivered": delivered})
}
