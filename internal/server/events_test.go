package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"transcripthost/internal/domain"
	"transcripthost/internal/index"
	"transcripthost/internal/notify"
	"transcripthost/internal/service"
	"transcripthost/internal/storage"
	"transcripthost/internal/transcript"

	"github.com/gorilla/websocket"
)

func TestEvents_LiveFeedThroughMiddleware(t *testing.T) {
	live := notify.NewLive(notify.LiveConfig{Logger: testLogger()})
	backend := service.New(service.Config{
		Fetcher:     stubFetcher{},
		Renderer:    transcript.NewRenderer(transcript.RendererConfig{Logger: testLogger()}),
		Files:       storage.NewMemory(storage.MemoryConfig{}),
		Transcripts: storage.NewMemory(storage.MemoryConfig{}),
		Index:       index.NewJSONFile(filepath.Join(t.TempDir(), "metadata.json")),
		Notifiers:   []domain.Notifier{live},
		Logger:      testLogger(),
	})
	s := New(Config{Backend: backend, Logger: testLogger(), Events: live})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev notify.LiveEvent
	if err := conn.ReadJSON(&ev); err != nil || ev.Type != "status" {
		t.Fatalf("welcome = %+v, %v", ev, err)
	}

	resp, err := http.Post(srv.URL+"/api/transcripts/generate", "application/json", strings.NewReader(`{"channelId":"77"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}

	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != "transcript" || ev.Transcript == nil || ev.Transcript.ChannelID != "77" {
		t.Errorf("event = %+v", ev)
	}
}

func TestEvents_RequiresAuth(t *testing.T) {
	live := notify.NewLive(notify.LiveConfig{Logger: testLogger()})
	s := newTestServer(t, func(c *Config) {
		c.Events = live
		c.Auth = AuthConfig{Enabled: true, Username: "admin", PasswordHash: "x"}
	})
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestEvents_NotMountedByDefault(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
