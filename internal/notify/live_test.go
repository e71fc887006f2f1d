package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialLive(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) LiveEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev LiveEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func TestLive_BroadcastsTranscripts(t *testing.T) {
	live := NewLive(LiveConfig{Logger: testLogger()})
	srv := httptest.NewServer(live)
	defer srv.Close()

	a := dialLive(t, srv, nil)
	b := dialLive(t, srv, nil)
	for _, c := range []*websocket.Conn{a, b} {
		if ev := readEvent(t, c); ev.Type != "status" || ev.Content != "connected" {
			t.Fatalf("welcome = %+v", ev)
		}
	}
	if live.Clients() != 2 {
		t.Fatalf("Clients = %d, want 2", live.Clients())
	}

	if err := live.NotifyTranscript(context.Background(), sampleRecord); err != nil {
		t.Fatalf("NotifyTranscript: %v", err)
	}
	for _, c := range []*websocket.Conn{a, b} {
		ev := readEvent(t, c)
		if ev.Type != "transcript" || ev.Transcript == nil || ev.Transcript.Filename != sampleRecord.Filename {
			t.Errorf("event = %+v", ev)
		}
	}
}

func TestLive_NoClients(t *testing.T) {
	live := NewLive(LiveConfig{})
	if err := live.NotifyTranscript(context.Background(), sampleRecord); err != nil {
		t.Errorf("NotifyTranscript with no clients: %v", err)
	}
	if live.Name() != "live" {
		t.Errorf("Name = %q", live.Name())
	}
}

func TestLive_RejectsForeignOrigin(t *testing.T) {
	live := NewLive(LiveConfig{AllowedOrigins: []string{"https://ok.example"}, Logger: testLogger()})
	srv := httptest.NewServer(live)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("resp = %v", resp)
	}

	dialLive(t, srv, http.Header{"Origin": {"https://ok.example"}})
}

func TestLive_CloseDisconnects(t *testing.T) {
	live := NewLive(LiveConfig{Logger: testLogger()})
	srv := httptest.NewServer(live)
	defer srv.Close()

	conn := dialLive(t, srv, nil)
	readEvent(t, conn)

	live.Close()
	if live.Clients() != 0 {
		t.Errorf("Clients after Close = %d", live.Clients())
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after Close")
	}
}

func TestLive_StalledClientDoesNotBlock(t *testing.T) {
	live := NewLive(LiveConfig{Logger: testLogger()})
	// No writer goroutine drains this client, like a peer that stopped reading.
	stalled := newLiveClient(nil)
	live.clients[stalled] = struct{}{}

	start := time.Now()
	for i := 0; i <= liveQueueSize; i++ {
		if err := live.NotifyTranscript(context.Background(), sampleRecord); err != nil {
			t.Fatalf("NotifyTranscript: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("broadcast blocked for %v", elapsed)
	}
	if live.Clients() != 0 {
		t.Errorf("Clients = %d, stalled client should be dropped once its queue is full", live.Clients())
	}
	if stalled.enqueue([]byte("late")) {
		t.Error("dropped client still accepts frames")
	}
}
