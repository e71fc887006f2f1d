package discord

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"transcripthost/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// rewriteTransport sends every request to the test server, keeping the path.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r2 := r.Clone(r.Context())
	r2.URL.Scheme = t.target.Scheme
	r2.URL.Host = t.target.Host
	r2.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(r2)
}

type fakeDiscord struct {
	messagesStatus int
	messagesBody   string
	channelStatus  int
	channelBody    string

	hits       atomic.Int32
	lastAuth   atomic.Value
	lastLimit  atomic.Value
	channelHit atomic.Bool
}

func (f *fakeDiscord) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	f.lastAuth.Store(r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")
	if strings.HasSuffix(r.URL.Path, "/messages") {
		f.lastLimit.Store(r.URL.Query().Get("limit"))
		w.WriteHeader(f.messagesStatus)
		w.Write([]byte(f.messagesBody))
		return
	}
	f.channelHit.Store(true)
	w.WriteHeader(f.channelStatus)
	w.Write([]byte(f.channelBody))
}

func newTestFetcher(t *testing.T, fake *fakeDiscord, token string) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	target, _ := url.Parse(srv.URL)
	return NewFetcher(FetcherConfig{
		Token:      token,
		HTTPClient: &http.Client{Transport: rewriteTransport{target: target}},
		Timeout:    5 * time.Second,
		Logger:     testLogger(),
	})
}

const unsortedMessages = `[
	{"id":"3","channel_id":"c1","content":"third","timestamp":"2024-01-01T00:00:02Z","author":{"id":"u1","username":"alice"}},
	{"id":"1","channel_id":"c1","content":"first","timestamp":"2024-01-01T00:00:01Z","author":{"id":"u2","username":"bob","avatar":"abc","bot":true}},
	{"id":"2","channel_id":"c1","content":"tie","timestamp":"2024-01-01T00:00:01Z","author":{"id":"u1","username":"alice"},
	 "attachments":[{"id":"a1","url":"https://cdn.example/x.png","filename":"x.png","content_type":"image/png","size":10}],
	 "embeds":[{"title":"T","description":"D"}]}
]`

func TestFetch_SortsAndReturnsChannel(t *testing.T) {
	fake := &fakeDiscord{
		messagesStatus: http.StatusOK,
		messagesBody:   unsortedMessages,
		channelStatus:  http.StatusOK,
		channelBody:    `{"id":"c1","guild_id":"g1","name":"ticket-0042","type":0}`,
	}
	f := newTestFetcher(t, fake, "secret-token")

	msgs, ch, err := f.Fetch(context.Background(), "c1", 50)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	if strings.Join(ids, ",") != "1,2,3" {
		t.Errorf("order = %v, want [1 2 3]", ids)
	}
	if ch.Name != "ticket-0042" || ch.GuildID != "g1" || ch.ID != "c1" {
		t.Errorf("unexpected channel context: %+v", ch)
	}
	if got := fake.lastAuth.Load(); got != "Bot secret-token" {
		t.Errorf("Authorization = %v", got)
	}
	if got := fake.lastLimit.Load(); got != "50" {
		t.Errorf("limit query = %v", got)
	}
	if !msgs[0].Author.Bot || msgs[0].Author.Avatar != "abc" {
		t.Errorf("author not converted: %+v", msgs[0].Author)
	}
	if len(msgs[1].Attachments) != 1 || msgs[1].Attachments[0].ContentType != "image/png" {
		t.Errorf("attachments not converted: %+v", msgs[1].Attachments)
	}
	if len(msgs[1].Embeds) != 1 || msgs[1].Embeds[0].Description != "D" {
		t.Errorf("embeds not converted: %+v", msgs[1].Embeds)
	}
}

func TestFetch_MissingChannelName_UsesPlaceholder(t *testing.T) {
	fake := &fakeDiscord{
		messagesStatus: http.StatusOK,
		messagesBody:   `[]`,
		channelStatus:  http.StatusOK,
		channelBody:    `{"id":"c1","type":1}`,
	}
	f := newTestFetcher(t, fake, "Bot already-prefixed")

	msgs, ch, err := f.Fetch(context.Background(), "c1", 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
	if ch.Name != UnknownChannelName {
		t.Errorf("Name = %q, want %q", ch.Name, UnknownChannelName)
	}
	if got := fake.lastAuth.Load(); got != "Bot already-prefixed" {
		t.Errorf("Authorization = %v", got)
	}
}

func TestFetch_MissingToken_NoNetwork(t *testing.T) {
	fake := &fakeDiscord{}
	f := newTestFetcher(t, fake, "  ")

	_, _, err := f.Fetch(context.Background(), "c1", 10)
	if !errors.Is(err, domain.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
	if fake.hits.Load() != 0 {
		t.Errorf("expected no upstream calls, got %d", fake.hits.Load())
	}
}

func TestFetch_InvalidInput(t *testing.T) {
	fake := &fakeDiscord{}
	f := newTestFetcher(t, fake, "tok")

	tests := []struct {
		channel string
		limit   int
	}{
		{"", 10},
		{"c1", 0},
		{"c1", MaxMessageLimit + 1},
	}
	for _, tt := range tests {
		_, _, err := f.Fetch(context.Background(), tt.channel, tt.limit)
		if !errors.Is(err, domain.ErrInputInvalid) {
			t.Errorf("Fetch(%q, %d): expected ErrInputInvalid, got %v", tt.channel, tt.limit, err)
		}
	}
	if fake.hits.Load() != 0 {
		t.Errorf("expected no upstream calls, got %d", fake.hits.Load())
	}
}

func TestFetch_UpstreamErrorPreservesStatus(t *testing.T) {
	fake := &fakeDiscord{
		messagesStatus: http.StatusForbidden,
		messagesBody:   `{"message":"Missing Access","code":50001}`,
	}
	f := newTestFetcher(t, fake, "tok")

	_, _, err := f.Fetch(context.Background(), "c1", 10)
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.Status != http.StatusForbidden || ue.Message != "Missing Access" {
		t.Errorf("unexpected upstream error: %+v", ue)
	}
	if fake.channelHit.Load() {
		t.Error("channel metadata must not be requested after a failed message fetch")
	}
	if fake.hits.Load() != 1 {
		t.Errorf("expected exactly one upstream call (no retries), got %d", fake.hits.Load())
	}
}

func TestFetch_ChannelErrorPreservesStatus(t *testing.T) {
	fake := &fakeDiscord{
		messagesStatus: http.StatusOK,
		messagesBody:   `[]`,
		channelStatus:  http.StatusNotFound,
		channelBody:    `{"message":"Unknown Channel","code":10003}`,
	}
	f := newTestFetcher(t, fake, "tok")

	_, _, err := f.Fetch(context.Background(), "c1", 10)
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusNotFound {
		t.Fatalf("expected 404 UpstreamError, got %v", err)
	}
}

func TestFetch_ServerErrorNotRetried(t *testing.T) {
	fake := &fakeDiscord{
		messagesStatus: http.StatusInternalServerError,
		messagesBody:   `{"message":"Internal Server Error","code":0}`,
	}
	f := newTestFetcher(t, fake, "tok")

	_, _, err := f.Fetch(context.Background(), "c1", 10)
	if domain.HTTPStatus(err) != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d (%v)", domain.HTTPStatus(err), err)
	}
	if fake.hits.Load() != 1 {
		t.Errorf("expected one call, got %d", fake.hits.Load())
	}
}

func TestFetch_MalformedPayload(t *testing.T) {
	for _, body := range []string{
		`{"not":"a list"}`,
		`[{"id":"1","content":"no author","timestamp":"2024-01-01T00:00:00Z"}]`,
		`[{"id":"1","content":"no timestamp","author":{"id":"u1","username":"a"}}]`,
	} {
		fake := &fakeDiscord{messagesStatus: http.StatusOK, messagesBody: body}
		f := newTestFetcher(t, fake, "tok")

		_, _, err := f.Fetch(context.Background(), "c1", 10)
		if !errors.Is(err, domain.ErrMalformedResponse) {
			t.Errorf("body %s: expected ErrMalformedResponse, got %v", body, err)
		}
	}
}

func TestSortChronological_StableOnTies(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	msgs := []domain.Message{
		{ID: "late", Timestamp: t2},
		{ID: "a", Timestamp: t1},
		{ID: "b", Timestamp: t1},
		{ID: "c", Timestamp: t1},
	}
	SortChronological(msgs)

	want := []string{"a", "b", "c", "late"}
	for i, m := range msgs {
		if m.ID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, m.ID, want[i])
		}
	}
}

func TestDecodeMessages(t *testing.T) {
	msgs, err := DecodeMessages(strings.NewReader(unsortedMessages))
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[0].ID != "1" || msgs[2].ID != "3" {
		t.Errorf("unexpected decode result: %+v", msgs)
	}

	if _, err := DecodeMessages(strings.NewReader(`"nope"`)); !errors.Is(err, domain.ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}
