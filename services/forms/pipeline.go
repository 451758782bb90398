// Package forms validates form submissions and relays them to backend
// function endpoints. This is the acknowledged delivery path: the backend
// response is read, and an explicit error field in it means failure
// regardless of the HTTP status code.
package forms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"leadgate/models"
)

// ErrBackendUnreachable is surfaced for transport-level failures. The
// message is deliberately generic; transport detail goes to the log only.
var ErrBackendUnreachable = errors.New("submission service unavailable, please try again")

// BackendError is a failure reported by the backend function itself via
// the error field of its response.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return e.Message
}

const (
	submitTimeout    = 15 * time.Second
	submitAttempts   = 3
	submitRetryDelay = 200 * time.Millisecond
	maxResponseBytes = 1 << 20
)

// Result is the outcome of a successful submission.
type Result struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// backendResponse is the wire contract with backend functions.
type backendResponse struct {
	Error   string         `json:"error,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Pipeline relays validated submissions to backend functions.
type Pipeline struct {
	client   *http.Client
	baseURL  string
	logger   *slog.Logger
	inFlight atomic.Int32
}

// NewPipeline creates a submission pipeline targeting the backend
// function base URL.
func NewPipeline(baseURL string, client *http.Client, logger *slog.Logger) *Pipeline {
	if client == nil {
		client = &http.Client{Timeout: submitTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// InFlight reports whether a submission is currently in progress. The
// pipeline itself does not reject concurrent submissions; callers decide
// whether to block resubmission.
func (p *Pipeline) InFlight() bool {
	return p.inFlight.Load() > 0
}

// Submit validates the fields against the endpoint's schema and relays
// them to the backend function. Validation failures return a
// ValidationError before any network call. Transport errors are retried;
// a response carrying an error field is final and takes precedence over
// transport-level success.
func (p *Pipeline) Submit(ctx context.Context, endpointID string, fields map[string]string) (Result, error) {
	if err := Validate(endpointID, fields); err != nil {
		return Result{}, err
	}

	submission := models.FormSubmission{
		ID:          uuid.NewString(),
		EndpointID:  endpointID,
		Fields:      fields,
		Source:      endpointID,
		SubmittedAt: time.Now().UTC(),
	}

	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	body, err := json.Marshal(submission)
	if err != nil {
		return Result{}, fmt.Errorf("encode submission: %w", err)
	}

	url := p.baseURL + "/functions/" + endpointID

	var resp backendResponse
	var status int
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")

			res, err := p.client.Do(req)
			if err != nil {
				return err
			}
			defer res.Body.Close()

			status = res.StatusCode
			if status >= http.StatusInternalServerError {
				_, _ = io.Copy(io.Discard, res.Body)
				return fmt.Errorf("backend status %d", status)
			}

			raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
			if err != nil {
				return err
			}

			resp = backendResponse{}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &resp); err != nil {
					return retry.Unrecoverable(fmt.Errorf("decode backend response: %w", err))
				}
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(submitAttempts),
		retry.Delay(submitRetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		p.logger.Warn("form submission transport failure",
			"endpoint", endpointID,
			"submission", submission.ID,
			"error", err)
		return Result{}, ErrBackendUnreachable
	}

	// An explicit error field wins over transport-level success.
	if resp.Error != "" {
		p.logger.Info("form submission rejected by backend",
			"endpoint", endpointID,
			"submission", submission.ID,
			"error", resp.Error)
		return Result{}, &BackendError{Message: resp.Error}
	}

	if status >= http.StatusBadRequest {
		p.logger.Warn("form submission failed",
			"endpoint", endpointID,
			"submission", submission.ID,
			"status", status)
		return Result{}, ErrBackendUnreachable
	}

	message := resp.Message
	if message == "" {
		message = "Thank you! Your submission has been received."
	}

	p.logger.Debug("form submission delivered",
		"endpoint", endpointID,
		"submission", submission.ID)

	return Result{Message: message, Data: resp.Data}, nil
}
