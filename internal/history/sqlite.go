package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/inkgen/inkgen/internal/model"
)

// timeLayout is RFC 3339 with a fixed-width nanosecond fraction so that
// lexical order on the stored string matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OpenSQLite opens (or creates) the SQLite database at the given path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL mode for concurrent reads while the miss path writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SQLiteLog stores conversation turns in SQLite.
type SQLiteLog struct {
	db *sql.DB

	// now is replaceable in tests.
	now func() time.Time
}

var _ Log = (*SQLiteLog)(nil)

// New creates a SQLiteLog and runs schema migrations.
func New(db *sql.DB) (*SQLiteLog, error) {
	l := &SQLiteLog{db: db, now: time.Now}
	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

func (l *SQLiteLog) migrate() error {
	if _, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := l.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := l.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Ordered migration list; index 0 = migration from v0 to v1.
	migrations := []func() error{
		l.migrateV1, // v0 → v1: turns table
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := l.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

func (l *SQLiteLog) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at        TEXT NOT NULL,
		role              TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		text              TEXT NOT NULL,
		image_url         TEXT,
		engineered_prompt TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at, id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Append inserts a turn and returns its assigned ID. The timestamp is set
// here, at insert time.
func (l *SQLiteLog) Append(ctx context.Context, turn model.ConversationTurn) (int64, error) {
	createdAt := l.now().UTC().Format(timeLayout)
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO turns (created_at, role, text, image_url, engineered_prompt)
		 VALUES (?, ?, ?, ?, ?)`,
		createdAt, turn.Role, turn.Text, turn.ImageURL, turn.EngineeredPrompt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAll returns the full history, oldest first.
func (l *SQLiteLog) ListAll(ctx context.Context) ([]model.ConversationTurn, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, created_at, role, text, image_url, engineered_prompt
		 FROM turns ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []model.ConversationTurn
	for rows.Next() {
		var t model.ConversationTurn
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Role, &t.Text, &t.ImageURL, &t.EngineeredPrompt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
