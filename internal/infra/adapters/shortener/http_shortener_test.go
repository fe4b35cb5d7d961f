//go:build !integration

package shortener

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"telegram-link-gateway/internal/config"
)

func TestHTTPShortener_Shorten(t *testing.T) {
	ctx := context.Background()

	t.Run("should send key and url and return the short link", func(t *testing.T) {
		var gotAPI, gotURL string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAPI = r.URL.Query().Get("api")
			gotURL = r.URL.Query().Get("url")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"success","shortenedUrl":"https://gplinks.co/AbC"}`))
		}))
		defer srv.Close()

		s, err := NewHTTPShortener(config.ShortenerConfig{Endpoint: srv.URL + "/api", APIKey: "k3y"})
		if err != nil {
			t.Fatal(err)
		}
		got, err := s.Shorten(ctx, "https://t.me/stream_bot?start=tok&x=1")
		if err != nil {
			t.Fatalf("Shorten failed: %v", err)
		}
		if got != "https://gplinks.co/AbC" {
			t.Errorf("unexpected short url %q", got)
		}
		if gotAPI != "k3y" || gotURL != "https://t.me/stream_bot?start=tok&x=1" {
			t.Errorf("unexpected query api=%q url=%q", gotAPI, gotURL)
		}
	})

	failures := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non 2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) }},
		{"error status", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"error","message":"invalid api key"}`))
		}},
		{"empty url", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"success","shortenedUrl":""}`))
		}},
	}
	for _, tt := range failures {
		t.Run("should fail on "+tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			s, _ := NewHTTPShortener(config.ShortenerConfig{Endpoint: srv.URL})
			if _, err := s.Shorten(ctx, "https://t.me/x"); !errors.Is(err, ErrBadResponse) {
				t.Fatalf("expected ErrBadResponse, got %v", err)
			}
		})
	}

	t.Run("should honour the timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()
		s, _ := NewHTTPShortener(config.ShortenerConfig{Endpoint: srv.URL, Timeout: 20 * time.Millisecond})
		if _, err := s.Shorten(ctx, "https://t.me/x"); err == nil {
			t.Fatal("expected timeout error")
		}
	})

	t.Run("should reject self-signed certificates unless told otherwise", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"success","shortenedUrl":"https://s/1"}`))
		}))
		defer srv.Close()

		strict, _ := NewHTTPShortener(config.ShortenerConfig{Endpoint: srv.URL})
		if _, err := strict.Shorten(ctx, "https://t.me/x"); err == nil {
			t.Fatal("expected certificate error")
		}
		lax, _ := NewHTTPShortener(config.ShortenerConfig{Endpoint: srv.URL, InsecureSkipVerify: true})
		if got, err := lax.Shorten(ctx, "https://t.me/x"); err != nil || got != "https://s/1" {
			t.Fatalf("expected success with verification disabled, got %q %v", got, err)
		}
	})

	if _, err := NewHTTPShortener(config.ShortenerConfig{}); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
