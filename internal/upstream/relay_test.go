package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sei-tracker/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func fastRelayConfig() *RelayConfig {
	return &RelayConfig{
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectDelay:    20 * time.Millisecond,
		MaxReconnectAttempts: 3,
		PingInterval:         time.Second,
		ReadTimeout:          5 * time.Second,
		WriteTimeout:         time.Second,
		Buffer:               16,
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestRelayClient_ReceivesEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		frames := []string{
			`{"hash":"h1","blockHeight":10,"data":{"denom":"PEPE","amount":"12.5","to":"sei1abc"}}`,
			`not json`,
			`{"blockHeight":11,"data":{}}`,
			`{"hash":"h2","blockHeight":12,"data":{"tokenId":"nft001","price":100}}`,
		}
		for _, f := range frames {
			if err := c.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewRelayClient(wsURL(server), fastRelayConfig(), nil)
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer client.Close()

	if !client.Connected() {
		t.Error("expected connected after Start")
	}

	first := receive(t, client)
	if first.Hash != "h1" || first.Data.Denom != "PEPE" {
		t.Errorf("unexpected first event: %+v", first)
	}
	if got := first.Data.Amount.String(); got != "12.5" {
		t.Errorf("expected amount 12.5, got %s", got)
	}

	second := receive(t, client)
	if second.Hash != "h2" || second.Data.TokenID != "nft001" {
		t.Errorf("unexpected second event: %+v", second)
	}
	if got := second.Data.Price.IntPart(); got != 100 {
		t.Errorf("expected price 100, got %d", got)
	}
}

func TestRelayClient_Reconnects(t *testing.T) {
	var connections atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connections.Add(1)
		if n == 1 {
			// Drop the first connection immediately.
			c.Close()
			return
		}
		defer c.Close()
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"hash":"after-reconnect","blockHeight":1,"data":{}}`))
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewRelayClient(wsURL(server), fastRelayConfig(), nil)
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer client.Close()

	ev := receive(t, client)
	if ev.Hash != "after-reconnect" {
		t.Errorf("expected event after reconnect, got %q", ev.Hash)
	}
	if connections.Load() < 2 {
		t.Errorf("expected at least 2 connections, got %d", connections.Load())
	}
}

func TestRelayClient_GivesUpAndClosesStream(t *testing.T) {
	var upgrades atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if upgrades.Add(1) > 1 {
			http.Error(w, "gone", http.StatusServiceUnavailable)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c.Close()
	}))
	defer server.Close()

	client := NewRelayClient(wsURL(server), fastRelayConfig(), nil)
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer client.Close()

	select {
	case _, ok := <-client.Events():
		if ok {
			t.Fatal("expected closed stream")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream not closed after reconnect attempts exhausted")
	}
	if client.Connected() {
		t.Error("expected disconnected")
	}
	// initial dial plus three reconnect attempts
	if got := upgrades.Load(); got != 4 {
		t.Errorf("expected 4 dial attempts, got %d", got)
	}
}

func TestRelayClient_StartFailsWhenUnreachable(t *testing.T) {
	client := NewRelayClient("ws://127.0.0.1:1/none", fastRelayConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Start(ctx); err == nil {
		client.Close()
		t.Fatal("expected dial error")
	}
}

func TestRelayClient_CloseIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewRelayClient(wsURL(server), fastRelayConfig(), nil)
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, ok := <-client.Events(); ok {
		t.Error("expected closed stream after Close")
	}
}

func receive(t *testing.T, client *RelayClient) domain.RawEvent {
	t.Helper()
	select {
	case ev, ok := <-client.Events():
		if !ok {
			t.Fatal("stream closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return domain.RawEvent{}
}
