package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dickeyy/trackpaper/internal/config"
	"github.com/dickeyy/trackpaper/internal/domain"
)

func testFeedConfig(endpoint string) config.FeedConfig {
	return config.FeedConfig{
		Source:            "feed",
		Endpoint:          endpoint,
		User:              "mrdickeyy",
		IdleTimeoutMs:     2000,
		BackoffBaseMs:     10,
		BackoffMaxMs:      100,
		StabilityWindowMs: 10,
	}
}

// newWSServer upgrades every request and hands the connection to fn
func newWSServer(t *testing.T, fn func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	var upgrader websocket.Upgrader
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		fn(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.FeedConfig
	}{
		{"HTTP Scheme", config.FeedConfig{Endpoint: "http://api.example.com/feed", User: "u"}},
		{"Garbage URL", config.FeedConfig{Endpoint: "://nope", User: "u"}},
		{"Missing User", config.FeedConfig{Endpoint: "wss://api.example.com/feed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(zap.NewNop(), tt.cfg); err == nil {
				t.Error("expected a configuration error, got nil")
			}
		})
	}
}

func TestNewClient_UserQueryParam(t *testing.T) {
	c, err := NewClient(zap.NewNop(), testFeedConfig("wss://api.example.com/now-playing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(c.url, "user=mrdickeyy") {
		t.Errorf("user parameter missing from %q", c.url)
	}
}

func TestClient_ConnectAndReceive(t *testing.T) {
	payloads := []string{
		`{"artist":"A","title":"X","isPlaying":true}`,
		`{"artist":"A","title":"Y","isPlaying":true}`,
	}
	hold := make(chan struct{})
	defer close(hold)

	srv := newWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}
		<-hold
	})
	defer srv.Close()

	client, err := NewClient(zap.NewNop(), testFeedConfig(wsURL(srv)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	go func() { _ = client.Start(ctx) }()

	for i, want := range payloads {
		select {
		case msg := <-client.Messages():
			if string(msg.Payload) != want {
				t.Errorf("message %d: want %q, got %q", i, want, msg.Payload)
			}
			if msg.ReceivedAt.IsZero() {
				t.Errorf("message %d: missing arrival timestamp", i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for message %d", i)
		}
	}

	if state := client.State(); state.Phase != domain.PhaseConnected {
		t.Errorf("state after receive: want Connected, got %v", state.Phase)
	}

	if err := client.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if state := client.State(); state.Phase != domain.PhaseDisconnected {
		t.Errorf("state after stop: want Disconnected, got %v", state.Phase)
	}
}

func TestClient_BackoffAfterRefusedConnection(t *testing.T) {
	// A server that is already gone: every dial is refused
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := wsURL(srv)
	srv.Close()

	client, err := NewClient(zap.NewNop(), testFeedConfig(endpoint))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	go func() { _ = client.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	seenBackoff := false
	for time.Now().Before(deadline) {
		state := client.State()
		if state.Phase == domain.PhaseBackoff {
			seenBackoff = true
			if state.Attempt < 1 {
				t.Errorf("backoff attempt: want >= 1, got %d", state.Attempt)
			}
			if state.NextRetryAt.IsZero() {
				t.Error("backoff without a retry time")
			}
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !seenBackoff {
		t.Error("client never entered Backoff against a dead endpoint")
	}

	if err := client.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	conns := make(chan *websocket.Conn, 4)
	srv := newWSServer(t, func(conn *websocket.Conn) {
		conns <- conn
		// First connection is dropped immediately; later ones are held open
		// by the test body.
	})
	defer srv.Close()

	client, err := NewClient(zap.NewNop(), testFeedConfig(wsURL(srv)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	go func() { _ = client.Start(context.Background()) }()

	// Kill the first connection, then feed a message through the second
	first := <-conns
	first.Close()

	select {
	case second := <-conns:
		payload := `{"artist":"B","title":"Z","isPlaying":true}`
		if err := second.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			t.Fatalf("write on reconnected conn: %v", err)
		}
		select {
		case msg := <-client.Messages():
			if string(msg.Payload) != payload {
				t.Errorf("want %q, got %q", payload, msg.Payload)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no message after reconnect")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never reconnected")
	}

	if err := client.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestNextBackoff(t *testing.T) {
	client, err := NewClient(zap.NewNop(), config.FeedConfig{
		Endpoint:      "wss://api.example.com/feed",
		User:          "u",
		BackoffBaseMs: 1000,
		BackoffMaxMs:  60000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for attempt := 1; attempt <= 12; attempt++ {
		for i := 0; i < 50; i++ {
			d := client.nextBackoff(attempt)
			if d < 500*time.Millisecond {
				t.Fatalf("attempt %d: delay %v below half the base", attempt, d)
			}
			if d > 60*time.Second {
				t.Fatalf("attempt %d: delay %v exceeds the cap", attempt, d)
			}
		}
	}
}
