package shorten

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestShortenSuccess(t *testing.T) {
	var gotAuth string
	var gotBody shortenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/shorten" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(shortenResponse{ShortURL: "https://gk.fm/abc123"})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token", 5*time.Second)
	short, err := c.Shorten("https://groovekit.app/groove?Tempo=80")
	if err != nil {
		t.Fatalf("Shorten: %v", err)
	}
	if short != "https://gk.fm/abc123" {
		t.Errorf("short URL = %q", short)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody.URL != "https://groovekit.app/groove?Tempo=80" {
		t.Errorf("posted URL = %q", gotBody.URL)
	}
}

func TestShortenNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected authorization header %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(shortenResponse{ShortURL: "https://gk.fm/anon"})
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "", 5*time.Second).Shorten("https://example.com"); err != nil {
		t.Fatalf("Shorten: %v", err)
	}
}

func TestShortenFailureKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   FailureKind
	}{
		{"unauthorized", http.StatusUnauthorized, "bad token", FailureUnauthorized},
		{"forbidden", http.StatusForbidden, "nope", FailureUnauthorized},
		{"rate limited", http.StatusTooManyRequests, "slow down", FailureRateLimited},
		{"server error", http.StatusInternalServerError, "boom", FailureUnknown},
		{"empty short url", http.StatusOK, `{"short_url":""}`, FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, "t", 5*time.Second).Shorten("https://example.com")
			var failure *Failure
			if !errors.As(err, &failure) {
				t.Fatalf("error = %v, want *Failure", err)
			}
			if failure.Kind != tt.want {
				t.Errorf("kind = %s, want %s", failure.Kind, tt.want)
			}
			if tt.status != http.StatusOK && failure.Status != tt.status {
				t.Errorf("status = %d, want %d", failure.Status, tt.status)
			}
		})
	}
}

func TestShortenNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := New(srv.URL, "", time.Second).Shorten("https://example.com")
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("error = %v, want *Failure", err)
	}
	if failure.Kind != FailureNetwork {
		t.Errorf("kind = %s, want %s", failure.Kind, FailureNetwork)
	}
}
