package index

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// schemaVersion is the current expected schema version.
const schemaVersion = 2

type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations are applied in order, each exactly once, tracked in schema_version.
var migrations = []migration{
	{
		Version:     1,
		Description: "base schema: transcripts",
		SQL: `
		CREATE TABLE IF NOT EXISTS transcripts (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			id            TEXT NOT NULL UNIQUE,
			filename      TEXT NOT NULL,
			url           TEXT NOT NULL,
			ticket_id     TEXT DEFAULT '',
			channel_id    TEXT DEFAULT '',
			guild_id      TEXT DEFAULT '',
			user_id       TEXT DEFAULT '',
			username      TEXT DEFAULT '',
			closed_by     TEXT DEFAULT '',
			message_count INTEGER DEFAULT 0,
			size          INTEGER DEFAULT 0,
			uploaded_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transcripts_channel ON transcripts(channel_id);
		`,
	},
	{
		Version:     2,
		Description: "v2: ticket metadata columns",
		SQL: `
		ALTER TABLE transcripts ADD COLUMN ticket_type TEXT DEFAULT '';
		ALTER TABLE transcripts ADD COLUMN inquiry TEXT DEFAULT '';
		ALTER TABLE transcripts ADD COLUMN opened_at TEXT DEFAULT '';
		ALTER TABLE transcripts ADD COLUMN closed_at TEXT DEFAULT '';
		`,
	},
}

// RunMigrations applies all pending schema migrations.
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("query schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		logger.Info("applying migration", "version", m.Version, "description", m.Description)
		if err := applyMigration(db, m, logger); err != nil {
			return err
		}
		logger.Info("migration applied", "version", m.Version)
	}
	return nil
}

// applyMigration runs each statement of m in one transaction. Statements that
// fail because the column or table already exists are skipped.
func applyMigration(db *sql.DB, m migration, logger *slog.Logger) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration v%d: %w", m.Version, err)
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(m.SQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			msg := strings.ToLower(err.Error())
			if strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists") {
				logger.Debug("migration statement skipped (already applied)", "stmt_prefix", truncate(stmt, 60))
				continue
			}
			return fmt.Errorf("migration v%d statement failed: %w\nSQL: %s", m.Version, err, truncate(stmt, 200))
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("record migration v%d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration v%d: %w", m.Version, err)
	}
	return nil
}

// GetSchemaVersion returns 0 for a database that was never migrated.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&name)
	if err != nil {
		return 0, nil
	}
	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
