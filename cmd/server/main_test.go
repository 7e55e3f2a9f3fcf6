package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"sei-tracker/internal/config"
)

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
		want    bool
	}{
		{"wildcard", "*", "https://evil.example", true},
		{"empty allows all", "", "https://any.example", true},
		{"listed", "https://a.example, https://b.example", "https://b.example", true},
		{"not listed", "https://a.example", "https://b.example", false},
		{"no origin header", "https://a.example", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originChecker(tt.allowed)(r); got != tt.want {
				t.Errorf("originChecker(%q)(%q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
			}
		})
	}
}

func TestCreateStoresMemory(t *testing.T) {
	stores, cleanup, err := createStores(context.Background(), config.StorageConfig{
		Backend:     config.StorageMemory,
		JournalSize: 10,
	})
	if err != nil {
		t.Fatalf("createStores: %v", err)
	}
	defer cleanup()

	if stores.journal == nil || stores.flows == nil {
		t.Fatal("expected memory stores")
	}
}

func TestNewServerMockWiring(t *testing.T) {
	cfg := config.Default()
	stores, cleanup, err := createStores(context.Background(), cfg.Storage)
	if err != nil {
		t.Fatalf("createStores: %v", err)
	}
	defer cleanup()

	s := newServer(cfg, stores, zerolog.Nop())

	if s.snapshots == nil || s.events == nil {
		t.Fatal("upstream not wired")
	}
	if got := len(s.router.Kinds()); got != 3 {
		t.Errorf("router kinds = %d, want 3", got)
	}
	if s.httpServer.Addr != ":3001" {
		t.Errorf("addr = %q, want :3001", s.httpServer.Addr)
	}

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != 200 {
		t.Errorf("/health status = %d", rec.Code)
	}
}
