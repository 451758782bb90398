// Package relay is the legacy direct-to-webhook delivery path used by
// marketing form variants. Delivery is fire-and-forget: the remote
// response body is never read, so "success" only means no local network
// error occurred — not that the remote endpoint accepted the payload.
// Callers needing acknowledged delivery use the forms pipeline instead.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sourcegraph/conc/pool"
)

const (
	sendTimeout        = 10 * time.Second
	broadcastParallel  = 4
	timestampFieldName = "timestamp"
)

// Metadata is request context attached to every relayed payload.
type Metadata struct {
	SourceTag string
	PageURL   string
	Referrer  string
}

// Relay posts form payloads to third-party automation webhooks.
type Relay struct {
	client *http.Client
	logger *slog.Logger
}

// NewRelay creates a webhook relay.
func NewRelay(client *http.Client, logger *slog.Logger) *Relay {
	if client == nil {
		client = &http.Client{Timeout: sendTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{client: client, logger: logger}
}

// Send posts the payload to a single webhook, enriched with the source
// tag, timestamp, page URL, and referrer. The returned bool is true when
// no local network error occurred; the remote response is opaque and its
// status is never interpreted (at-most-once, unconfirmed delivery).
func (r *Relay) Send(ctx context.Context, webhookURL string, data map[string]string, meta Metadata) bool {
	payload := make(map[string]string, len(data)+4)
	for k, v := range data {
		payload[k] = v
	}
	payload["source"] = meta.SourceTag
	payload[timestampFieldName] = time.Now().UTC().Format(time.RFC3339)
	payload["page_url"] = meta.PageURL
	payload["referrer"] = meta.Referrer

	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("webhook payload encode failed", "source", meta.SourceTag, "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("webhook request build failed", "source", meta.SourceTag, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("webhook dispatch failed", "source", meta.SourceTag, "error", err)
		return false
	}

	// Opaque response: drain and drop without inspection.
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()

	r.logger.Debug("webhook dispatched", "source", meta.SourceTag, "url", webhookURL)
	return true
}

// Broadcast fans the payload out to several webhooks concurrently and
// returns how many dispatches completed without a local error.
func (r *Relay) Broadcast(ctx context.Context, webhookURLs []string, data map[string]string, meta Metadata) int {
	p := pool.NewWithResults[bool]().WithMaxGoroutines(broadcastParallel)
	for _, url := range webhookURLs {
		url := url
		p.Go(func() bool {
			return r.Send(ctx, url, data, meta)
		})
	}

	delivered := 0
	for _, ok := range p.Wait() {
		if ok {
			delivered++
		}
	}
	return delivered
}
