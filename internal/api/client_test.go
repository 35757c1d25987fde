package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error for empty base URL")
	}
	if _, err := New(); err == nil {
		t.Error("expected error for missing base URL option")
	}
}

func TestNewClient_DefaultValues(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://relay.example/"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if client.BaseURL() != "http://relay.example" {
		t.Errorf("BaseURL() = %q, trailing slash not trimmed", client.BaseURL())
	}
	if client.httpClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.httpClient.Timeout, DefaultTimeout)
	}
	if client.maxRetries != DefaultMaxRetries {
		t.Errorf("maxRetries = %d, want %d", client.maxRetries, DefaultMaxRetries)
	}
	if client.retryDelay != DefaultRetryDelay {
		t.Errorf("retryDelay = %v, want %v", client.retryDelay, DefaultRetryDelay)
	}
}

func TestNew_WithOptions(t *testing.T) {
	custom := &http.Client{Timeout: 5 * time.Second}
	client, err := New(
		WithBaseURL("http://relay.example"),
		WithRetries(5),
		WithHTTPClient(custom),
		WithRetryOn([]int{418}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.maxRetries != 5 {
		t.Errorf("maxRetries = %d, want 5", client.maxRetries)
	}
	if client.HTTPClient() != custom {
		t.Error("custom HTTP client not used")
	}
	if !client.retry.RetryableOn(418) || client.retry.RetryableOn(503) {
		t.Error("RetryOn codes not applied")
	}
}

func TestNew_WithTimeout(t *testing.T) {
	client, err := New(WithBaseURL("http://relay.example"), WithTimeout(time.Minute))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.httpClient.Timeout != time.Minute {
		t.Errorf("timeout = %v, want 1m", client.httpClient.Timeout)
	}
}

func TestClient_Do_Retry(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Response{Status: StatusSuccess})
	}))
	defer server.Close()

	client, _ := NewClient(Config{
		BaseURL:    server.URL,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})

	var result Response
	if err := client.Do(context.Background(), http.MethodGet, "/health", nil, &result); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if result.Status != StatusSuccess {
		t.Errorf("Status = %q", result.Status)
	}
}

func TestClient_Do_RetryResendsBody(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username != "alice" {
			t.Errorf("attempt %d: body not resent (err %v)", atomic.LoadInt32(&attempts)+1, err)
		}
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Response{Status: StatusSuccess})
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL, RetryDelay: time.Millisecond})
	err := client.Register(context.Background(), RegisterRequest{Username: "alice", RSAPublicKey: "a", SignPublicKey: "b"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
}

func TestClient_Do_NoRetryOn4xx(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set(RequestIDHeader, "req-123")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(Response{Status: StatusError, Message: "recipient or sender does not exist"})
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL, RetryDelay: time.Millisecond})

	err := client.Do(context.Background(), http.MethodGet, "/receive/bob", nil, nil)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", attempts)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.RequestID != "req-123" {
		t.Errorf("RequestID = %q, want req-123", apiErr.RequestID)
	}
	if apiErr.Message != "recipient or sender does not exist" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestClient_Do_RetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL, MaxRetries: 2, RetryDelay: time.Millisecond})
	err := client.Do(context.Background(), http.MethodGet, "/get_users", nil, nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestClient_Do_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.Do(ctx, http.MethodGet, "/health", nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := NewClient(Config{BaseURL: url, MaxRetries: -1})
	err := client.Do(context.Background(), http.MethodGet, "/health", nil, nil)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if netErr.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", netErr.Attempt)
	}
}

func TestAPIError_Is(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{400, ErrBadRequest},
		{404, ErrUserNotFound},
		{413, ErrPayloadTooLarge},
		{429, ErrRateLimited},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status}
		if !errors.Is(err, tt.target) {
			t.Errorf("APIError{%d} does not match %v", tt.status, tt.target)
		}
	}

	if errors.Is(&APIError{StatusCode: 500}, ErrUserNotFound) {
		t.Error("500 should not match ErrUserNotFound")
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		err  *APIError
		want string
	}{
		{&APIError{StatusCode: 404}, "API error 404"},
		{&APIError{StatusCode: 404, Message: "no such user"}, "API error 404: no such user"},
		{&APIError{StatusCode: 500, RequestID: "r1"}, "API error 500 (request_id: r1)"},
		{&APIError{StatusCode: 400, Message: "missing", RequestID: "r2"}, "API error 400: missing (request_id: r2)"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
