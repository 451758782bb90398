package forms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// setupTestPipeline creates a pipeline pointed at a scripted backend,
// returning the pipeline and a request counter.
func setupTestPipeline(t *testing.T, handler http.HandlerFunc) (*Pipeline, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewPipeline(server.URL, server.Client(), nil), &calls
}

func TestSubmit_Success(t *testing.T) {
	pipeline, calls := setupTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/contact" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "thanks!"}`))
	})

	result, err := pipeline.Submit(context.Background(), "contact", validContactFields())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Message != "thanks!" {
		t.Errorf("expected backend message, got %q", result.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 backend call, got %d", calls.Load())
	}
}

func TestSubmit_ValidationFailureMakesNoNetworkCall(t *testing.T) {
	pipeline, calls := setupTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	fields := validContactFields()
	fields["message"] = "hi"

	_, err := pipeline.Submit(context.Background(), "contact", fields)
	var validation ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected zero network calls on validation failure, got %d", calls.Load())
	}
}

func TestSubmit_ErrorFieldBeatsTransportSuccess(t *testing.T) {
	pipeline, calls := setupTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		// HTTP 200 with an error field is still a failure.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"error": "duplicate submission"}`))
	})

	_, err := pipeline.Submit(context.Background(), "contact", validContactFields())
	var backend *BackendError
	if !errors.As(err, &backend) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if backend.Message != "duplicate submission" {
		t.Errorf("expected backend message surfaced, got %q", backend.Message)
	}
	// An error field is a final answer, not a transport failure: no retry.
	if calls.Load() != 1 {
		t.Errorf("expected 1 backend call, got %d", calls.Load())
	}
}

func TestSubmit_RetriesServerErrors(t *testing.T) {
	var pipeline *Pipeline
	var calls *atomic.Int32
	pipeline, calls = setupTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Load() < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"message": "recovered"}`))
	})

	result, err := pipeline.Submit(context.Background(), "contact", validContactFields())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Message != "recovered" {
		t.Errorf("expected recovered message, got %q", result.Message)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 backend calls, got %d", calls.Load())
	}
}

func TestSubmit_TransportFailureIsGeneric(t *testing.T) {
	pipeline, calls := setupTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := pipeline.Submit(context.Background(), "contact", validContactFields())
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
	if calls.Load() != submitAttempts {
		t.Errorf("expected %d attempts, got %d", submitAttempts, calls.Load())
	}
}

func TestSubmit_ClientErrorNotRetried(t *testing.T) {
	pipeline, calls := setupTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{}`))
	})

	_, err := pipeline.Submit(context.Background(), "contact", validContactFields())
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected no retry on 4xx, got %d calls", calls.Load())
	}
}

func TestSubmit_UnreachableBackend(t *testing.T) {
	pipeline := NewPipeline("http://127.0.0.1:1", nil, nil)

	_, err := pipeline.Submit(context.Background(), "contact", validContactFields())
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
}

func TestInFlight_FalseWhenIdle(t *testing.T) {
	pipeline, _ := setupTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	if pipeline.InFlight() {
		t.Error("expected no in-flight submission")
	}
}
