package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"transcripthost/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func sampleRecord(id string, at time.Time) domain.TranscriptRecord {
	return domain.TranscriptRecord{
		ID:           id,
		Filename:     "transcript-" + id + ".html",
		URL:          "/transcripts/transcript-" + id + ".html",
		TicketID:     "T-" + id,
		ChannelID:    "100",
		GuildID:      "200",
		Username:     "alice",
		TicketType:   "support",
		Inquiry:      "refund",
		OpenedAt:     "2024-01-01T10:00:00Z",
		ClosedAt:     "2024-01-01T11:00:00Z",
		MessageCount: 3,
		Size:         512,
		UploadedAt:   at,
	}
}

// exerciseIndex runs the behaviour every TranscriptIndex must share.
func exerciseIndex(t *testing.T, idx domain.TranscriptIndex) {
	t.Helper()
	ctx := context.Background()

	empty, err := idx.List(ctx)
	if err != nil {
		t.Fatalf("List on empty index: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty index, got %d records", len(empty))
	}

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := idx.Append(ctx, sampleRecord(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Append %s: %v", id, err)
		}
	}

	records, err := idx.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, id := range []string{"a", "b", "c"} {
		if records[i].ID != id {
			t.Errorf("record %d: expected %s, got %s", i, id, records[i].ID)
		}
	}

	got, err := idx.Get(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	want := sampleRecord("b", base.Add(time.Minute))
	if got.Filename != want.Filename || got.TicketType != want.TicketType || got.Inquiry != want.Inquiry ||
		got.MessageCount != want.MessageCount || got.Size != want.Size || !got.UploadedAt.Equal(want.UploadedAt) {
		t.Errorf("Get returned %+v, want %+v", got, want)
	}

	if _, err := idx.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJSONFile(t *testing.T) {
	idx := NewJSONFile(filepath.Join(t.TempDir(), "transcripts", "metadata.json"))
	exerciseIndex(t, idx)

	data, err := os.ReadFile(idx.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "[\n  {\n    \"id\": \"a\"") {
		t.Errorf("metadata not pretty printed with two spaces:\n%s", data)
	}
	if !strings.Contains(string(data), `"ticketId": "T-a"`) {
		t.Error("ticketId field missing from metadata")
	}
	entries, _ := os.ReadDir(filepath.Dir(idx.Path()))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %d entries", len(entries))
	}
}

func TestJSONFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	os.WriteFile(path, []byte("{not json"), 0o644)
	idx := NewJSONFile(path)
	if _, err := idx.List(context.Background()); err == nil {
		t.Error("expected parse error for corrupt metadata")
	}
	if err := idx.Append(context.Background(), sampleRecord("x", time.Now())); err == nil {
		t.Error("append must not overwrite unreadable metadata")
	}
}

func TestSQLite(t *testing.T) {
	idx, err := NewSQLite(filepath.Join(t.TempDir(), "data", "index.db"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	exerciseIndex(t, idx)
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := NewSQLite(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	idx.Append(context.Background(), sampleRecord("persist", time.Now()))
	idx.Close()

	idx, err = NewSQLite(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	records, _ := idx.List(context.Background())
	if len(records) != 1 || records[0].ID != "persist" {
		t.Errorf("record not persisted: %+v", records)
	}
}

func TestRunMigrations_Version(t *testing.T) {
	idx, err := NewSQLite(filepath.Join(t.TempDir(), "index.db"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	v, err := GetSchemaVersion(idx.DB())
	if err != nil {
		t.Fatal(err)
	}
	if v != schemaVersion {
		t.Errorf("expected schema version %d, got %d", schemaVersion, v)
	}
	// A second run is a no-op.
	if err := RunMigrations(idx.DB(), testLogger()); err != nil {
		t.Errorf("second migration run failed: %v", err)
	}
}

func TestRunMigrations_PartialUpgrade(t *testing.T) {
	idx, err := NewSQLite(filepath.Join(t.TempDir(), "index.db"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	// Pretend v2 was never recorded although its columns exist.
	if _, err := idx.DB().Exec("DELETE FROM schema_version WHERE version = 2"); err != nil {
		t.Fatal(err)
	}
	if err := RunMigrations(idx.DB(), testLogger()); err != nil {
		t.Fatalf("re-applying v2 over existing columns: %v", err)
	}
	if v, _ := GetSchemaVersion(idx.DB()); v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	if err := Nop.Append(ctx, sampleRecord("x", time.Now())); err != nil {
		t.Fatal(err)
	}
	records, _ := Nop.List(ctx)
	if len(records) != 0 {
		t.Errorf("Nop listed %d records", len(records))
	}
	if _, err := Nop.Get(ctx, "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
