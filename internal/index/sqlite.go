package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"transcripthost/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLite keeps transcript records in a SQLite database.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLite(dbPath string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return &SQLite{db: db, logger: logger}, nil
}

// DB exposes the handle for health checks.
func (s *SQLite) DB() *sql.DB { return s.db }

const recordColumns = `id, filename, url, ticket_id, channel_id, guild_id, user_id, username,
	closed_by, ticket_type, inquiry, opened_at, closed_at, message_count, size, uploaded_at`

func (s *SQLite) Append(ctx context.Context, rec domain.TranscriptRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.URL, rec.TicketID, rec.ChannelID, rec.GuildID, rec.UserID, rec.Username,
		rec.ClosedBy, rec.TicketType, rec.Inquiry, rec.OpenedAt, rec.ClosedAt, rec.MessageCount, rec.Size,
		rec.UploadedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transcript record: %w", err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]domain.TranscriptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM transcripts ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var records []domain.TranscriptRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable transcript row", "err", err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, id string) (*domain.TranscriptRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM transcripts WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transcript %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (domain.TranscriptRecord, error) {
	var rec domain.TranscriptRecord
	var uploadedAt string
	err := sc.Scan(&rec.ID, &rec.Filename, &rec.URL, &rec.TicketID, &rec.ChannelID, &rec.GuildID,
		&rec.UserID, &rec.Username, &rec.ClosedBy, &rec.TicketType, &rec.Inquiry, &rec.OpenedAt,
		&rec.ClosedAt, &rec.MessageCount, &rec.Size, &uploadedAt)
	if err != nil {
		return rec, err
	}
	rec.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedAt)
	if err != nil {
		return rec, fmt.Errorf("parse uploaded_at %q: %w", uploadedAt, err)
	}
	return rec, nil
}
