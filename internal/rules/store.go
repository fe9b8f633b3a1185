// Package rules persists the rule/context corpus and gathers the
// session-visible document set that feeds the RAG index.
//
// Storage is a single SQLite file (modernc.org/sqlite, pure Go driver,
// no cgo) because the whole deployment is one offline machine. Rows are
// soft-deleted via the active flag so ingestion endpoints can undo and
// the corpus hash stays derivable from live rows only.
package rules

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rules_context (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source      TEXT NOT NULL,
	filename    TEXT,
	content     TEXT NOT NULL,
	session_id  TEXT,
	active      INTEGER NOT NULL DEFAULT 1,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_rules_context_session
	ON rules_context(session_id, active);
`

// Store manages rule/context rows in SQLite.
//
// Store is safe for concurrent use; database/sql serializes access to
// the underlying connection pool.
type Store struct {
	db           *sql.DB
	fallbackPath string
	logger       *slog.Logger
}

// Open opens (creating if needed) the rules database at dbPath.
// fallbackPath names the bundled default ruleset file returned by
// ListActive when the table is empty; it may be "" to disable the
// fallback. logger may be nil.
func Open(dbPath, fallbackPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db, fallbackPath: fallbackPath, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Add inserts an active rule/context row and returns its id.
// sessionID "" stores NULL, making the row global.
func (s *Store) Add(ctx context.Context, source, filename, content, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rules_context(source, filename, content, session_id, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		source, nullable(filename), content, nullable(sessionID), time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting rule row: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}

	s.logger.Debug("added rule context",
		"id", id, "source", source, "session_id", sessionID, "bytes", len(content))
	return id, nil
}

// Deactivate soft-deletes a row by id. Unknown ids are a no-op.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE rules_context SET active = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deactivating rule row %d: %w", id, err)
	}
	return nil
}

// ClearSession soft-deletes every row scoped to the given session.
// Global rows are untouched.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id must not be empty")
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE rules_context SET active = 0 WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clearing session %q: %w", sessionID, err)
	}
	return nil
}

// List returns the raw active rows visible to a session (global rows plus
// rows matching sessionID), ordered by ascending id. Unlike ListActive it
// applies neither the initial-override rule nor the file fallback; it
// backs the listing endpoint, not the index build.
func (s *Store) List(ctx context.Context, sessionID string) ([]Document, error) {
	rows, err := s.queryVisible(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActive gathers the corpus for a session: active rows visible to the
// session (global OR matching session id) in ascending-id order, with the
// seeded default ruleset suppressed once any user-supplied row is visible.
// When nothing is visible at all, the bundled fallback file (if
// configured) is wrapped as a single synthetic file document.
//
// Persistence failures degrade to the fallback path rather than
// propagate; the index must stay buildable even when the database is
// broken.
func (s *Store) ListActive(ctx context.Context, sessionID string) ([]Document, error) {
	docs, err := s.queryVisible(ctx, sessionID)
	if err != nil {
		s.logger.Warn("gathering rule rows failed, using fallback",
			"session_id", sessionID, "error", err)
		docs = nil
	}

	docs = suppressInitial(docs)

	if len(docs) == 0 {
		if doc, ok := s.fallbackDocument(); ok {
			return []Document{doc}, nil
		}
	}
	return docs, nil
}

// SeedInitial inserts the bundled default ruleset as a global row with
// source "initial", once. Subsequent calls are no-ops while an active
// initial row exists. Missing fallback file is not an error.
func (s *Store) SeedInitial(ctx context.Context) error {
	if s.fallbackPath == "" {
		return nil
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rules_context
		 WHERE source = ? AND session_id IS NULL AND active = 1`,
		SourceInitial,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking seeded ruleset: %w", err)
	}
	if count > 0 {
		return nil
	}

	content, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		s.logger.Debug("no default ruleset file to seed",
			"path", s.fallbackPath, "error", err)
		return nil
	}

	_, err = s.Add(ctx, SourceInitial, filepath.Base(s.fallbackPath), string(content), "")
	if err != nil {
		return fmt.Errorf("seeding default ruleset: %w", err)
	}
	s.logger.Info("seeded default ruleset", "path", s.fallbackPath)
	return nil
}

// queryVisible returns active rows visible to sessionID in id order.
func (s *Store) queryVisible(ctx context.Context, sessionID string) ([]Document, error) {
	query := `SELECT id, source, filename, content, session_id, created_at
		FROM rules_context
		WHERE active = 1 AND (session_id IS NULL OR session_id = ?)
		ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying rule rows: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []Document
	for rows.Next() {
		var (
			doc       Document
			filename  sql.NullString
			sessionID sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&doc.ID, &doc.Source, &filename, &doc.Content,
			&sessionID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning rule row: %w", err)
		}
		doc.Filename = filename.String
		doc.SessionID = sessionID.String
		doc.CreatedAt = createdAt
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rule rows: %w", err)
	}
	return docs, nil
}

// suppressInitial drops seeded "initial" rows when any user-supplied row
// is present in the visible set. The policy applies to the visible set as
// a whole, so a session-scoped addition hides the global seed within that
// session's view.
func suppressInitial(docs []Document) []Document {
	hasUserRows := false
	for _, d := range docs {
		if d.Source != SourceInitial {
			hasUserRows = true
			break
		}
	}
	if !hasUserRows {
		return docs
	}

	filtered := docs[:0]
	for _, d := range docs {
		if d.Source != SourceInitial {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// fallbackDocument wraps the configured fallback file as a synthetic
// corpus document.
func (s *Store) fallbackDocument() (Document, bool) {
	if s.fallbackPath == "" {
		return Document{}, false
	}
	content, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		s.logger.Debug("fallback ruleset unavailable",
			"path", s.fallbackPath, "error", err)
		return Document{}, false
	}
	return Document{
		Source:   SourceFile,
		Filename: filepath.Base(s.fallbackPath),
		Content:  string(content),
	}, true
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
