package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

type articlePayload struct {
	Title string `json:"title"`
}

func TestClientGetDecodesResult(t *testing.T) {
	srv := NewTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/top-headlines" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("country"); got != "us" {
			t.Errorf("country = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(articlePayload{Title: "hello"})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.BaseURL()))

	var out articlePayload
	resp, err := client.Get(context.Background(), "/v2/top-headlines", &out, WithQuery(map[string]string{"country": "us"}))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	if out.Title != "hello" {
		t.Fatalf("Title = %q", out.Title)
	}
}

func TestClientNonOKReturnsStatusError(t *testing.T) {
	srv := NewTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.BaseURL()))

	_, err := client.Get(context.Background(), "/", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want StatusError", err)
	}
	if se.StatusCode() != http.StatusTooManyRequests {
		t.Fatalf("StatusCode() = %d", se.StatusCode())
	}
	if se.Body != "rate limited" {
		t.Fatalf("Body = %q", se.Body)
	}
}

func TestClientRequestHeaders(t *testing.T) {
	srv := NewTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Api-Key"); got != "k" {
			t.Errorf("X-Api-Key = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.BaseURL()))

	_, err := client.Get(context.Background(), "/", nil,
		WithBearer(" token-123 "),
		WithRequestHeaders(map[string]string{"X-Api-Key": "k"}),
	)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestClientPostBody(t *testing.T) {
	srv := NewTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in articlePayload
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if in.Title != "posted" {
			t.Errorf("Title = %q", in.Title)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.BaseURL()))

	var out articlePayload
	if _, err := client.Post(context.Background(), "/", articlePayload{Title: "posted"}, &out); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if out.Title != "posted" {
		t.Fatalf("Title = %q", out.Title)
	}
}

func TestClientHonorsContext(t *testing.T) {
	srv := NewTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.BaseURL()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Get(ctx, "/", nil); err == nil {
		t.Fatalf("expected error from cancelled context")
	}
}

func TestDefaultClientOptions(t *testing.T) {
	cfg := defaultClientOptions()
	if cfg.Timeout <= 0 {
		t.Fatalf("default timeout = %v", cfg.Timeout)
	}
	if cfg.Headers["Content-Type"] != "application/json" {
		t.Fatalf("default headers = %v", cfg.Headers)
	}
}
