package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"transcripthost/internal/domain"
	"transcripthost/internal/metrics"

	"github.com/gorilla/websocket"
)

const (
	liveWriteTimeout = 5 * time.Second
	liveQueueSize    = 16
)

// LiveEvent is the JSON frame pushed to websocket clients.
type LiveEvent struct {
	Type       string                   `json:"type"` // "status" | "transcript"
	Content    string                   `json:"content,omitempty"`
	Transcript *domain.TranscriptRecord `json:"transcript,omitempty"`
}

type LiveConfig struct {
	AllowedOrigins []string // "*" or empty allows any origin
	Logger         *slog.Logger
}

// Live is a Notifier that broadcasts new transcripts to connected websocket
// clients. It is also the http.Handler that accepts those clients.
type Live struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*liveClient]struct{}
}

// liveClient frames are written by its own goroutine from a bounded queue,
// so a slow reader never blocks broadcast.
type liveClient struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newLiveClient(conn *websocket.Conn) *liveClient {
	return &liveClient{
		conn: conn,
		out:  make(chan []byte, liveQueueSize),
		done: make(chan struct{}),
	}
}

func NewLive(cfg LiveConfig) *Live {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	origins := cfg.AllowedOrigins
	return &Live{
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(origins) == 0 ||
					slices.Contains(origins, "*") || slices.Contains(origins, origin)
			},
		},
		clients: make(map[*liveClient]struct{}),
	}
}

func (l *Live) Name() string { return "live" }

// NotifyTranscript pushes rec to every client. Clients that fail to accept
// the frame are dropped; that is never an error for the caller.
func (l *Live) NotifyTranscript(_ context.Context, rec domain.TranscriptRecord) error {
	l.broadcast(LiveEvent{Type: "transcript", Transcript: &rec})
	return nil
}

func (l *Live) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Warn("live upgrade failed", "err", err)
		return
	}

	client := newLiveClient(conn)
	if welcome, err := json.Marshal(LiveEvent{Type: "status", Content: "connected"}); err == nil {
		client.enqueue(welcome)
	}
	l.mu.Lock()
	l.clients[client] = struct{}{}
	metrics.LiveClients.Set(int64(len(l.clients)))
	l.mu.Unlock()
	l.logger.Info("live client connected", "remote", r.RemoteAddr)

	defer l.remove(client)
	go func() {
		if err := client.writeLoop(); err != nil {
			l.logger.Warn("live send failed, dropping client", "err", err)
		}
		l.remove(client)
	}()

	// Clients only listen; reads exist to notice the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.logger.Warn("live read error", "err", err)
			}
			return
		}
	}
}

// Clients returns the number of connected clients.
func (l *Live) Clients() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clients)
}

// Close disconnects every client.
func (l *Live) Close() {
	l.mu.Lock()
	clients := l.clients
	l.clients = make(map[*liveClient]struct{})
	metrics.LiveClients.Set(0)
	l.mu.Unlock()

	for c := range clients {
		c.stop()
		if c.conn == nil {
			continue
		}
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
}

// broadcast queues ev for every client without waiting on the network.
// A client whose queue is full is dropped.
func (l *Live) broadcast(ev LiveEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		l.logger.Warn("live encode failed", "err", err)
		return
	}
	l.mu.RLock()
	clients := make([]*liveClient, 0, len(l.clients))
	for c := range l.clients {
		clients = append(clients, c)
	}
	l.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(data) {
			l.logger.Warn("live client queue full, dropping client")
			l.remove(c)
		}
	}
}

func (l *Live) remove(c *liveClient) {
	l.mu.Lock()
	if _, ok := l.clients[c]; ok {
		delete(l.clients, c)
		metrics.LiveClients.Set(int64(len(l.clients)))
	}
	l.mu.Unlock()
	c.stop()
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *liveClient) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *liveClient) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

func (c *liveClient) writeLoop() error {
	for {
		select {
		case <-c.done:
			return nil
		case data := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		}
	}
}
