package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientBasicRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	client := NewClient(Options{})
	req, _ := http.NewRequest("GET", server.URL, nil)
	resp, body, err := client.Do(context.Background(), req)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if string(body) != "hello" {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestClientDoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin" {
			w.Header().Set("Location", "/login")
			w.WriteHeader(302)
			return
		}
		w.WriteHeader(200)
	}))
	defer server.Close()

	client := NewClient(Options{})
	req, _ := http.NewRequest("GET", server.URL+"/admin", nil)
	resp, _, err := client.Do(context.Background(), req)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 302 {
		t.Errorf("expected raw 302, got %d", resp.StatusCode)
	}
}

func TestClientBodyCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("A", 3*1024*1024)))
	}))
	defer server.Close()

	client := NewClient(Options{MaxBodyMB: 1})
	req, _ := http.NewRequest("GET", server.URL, nil)
	_, body, err := client.Do(context.Background(), req)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body) != 1024*1024 {
		t.Errorf("expected body capped at 1MB, got %d bytes", len(body))
	}
}

func TestClientContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	client := NewClient(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, _ := http.NewRequest("GET", server.URL, nil)
	_, _, err := client.Do(ctx, req)

	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
