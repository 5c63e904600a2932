// Package notes keeps private per-session notes in a local SQLite file.
// Notes never leave the machine.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linesmerrill/jurysane-api/models"

	_ "modernc.org/sqlite"
)

// Default titles
const (
	NewNoteTitle      = "New Note"
	UntitledNoteTitle = "Untitled Note"
)

// fixed width so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a note does not exist for the session
var ErrNotFound = errors.New("note not found")

// Store is a notes database
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the notes database at path. ":memory:" gives a
// throwaway store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create notes directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open notes database: %w", err)
	}
	// one connection keeps ":memory:" a single database and serializes writers
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	queries := []string{`
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
		`CREATE INDEX IF NOT EXISTS notes_session_idx ON notes (session_id, created_at);`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(context.Background(), q); err != nil {
			return fmt.Errorf("failed to migrate notes database: %w", err)
		}
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// List returns the notes of a session, newest first
func (s *Store) List(ctx context.Context, sessionID string) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, title, content, created_at, updated_at
		FROM notes
		WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return out, nil
}

// Get returns one note
func (s *Store) Get(ctx context.Context, sessionID, id string) (models.Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, title, content, created_at, updated_at
		FROM notes
		WHERE session_id = ? AND id = ?`, sessionID, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, ErrNotFound
	}
	return n, err
}

// Create adds an empty note titled "New Note"
func (s *Store) Create(ctx context.Context, sessionID string) (models.Note, error) {
	now := s.now().UTC()
	n := models.Note{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Title:     NewNoteTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, session_id, title, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.SessionID, n.Title, n.Content, formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
	if err != nil {
		return models.Note{}, fmt.Errorf("failed to create note: %w", err)
	}
	return n, nil
}

// Save writes the title and content of n. Both are trimmed and a blank
// title becomes "Untitled Note".
func (s *Store) Save(ctx context.Context, n models.Note) (models.Note, error) {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		n.Title = UntitledNoteTitle
	}
	n.Content = strings.TrimSpace(n.Content)
	n.UpdatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, updated_at = ?
		WHERE session_id = ? AND id = ?`,
		n.Title, n.Content, formatTime(n.UpdatedAt), n.SessionID, n.ID)
	if err != nil {
		return models.Note{}, fmt.Errorf("failed to save note: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return models.Note{}, ErrNotFound
	}
	return s.Get(ctx, n.SessionID, n.ID)
}

// Delete removes a note
func (s *Store) Delete(ctx context.Context, sessionID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE session_id = ? AND id = ?`, sessionID, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (models.Note, error) {
	var n models.Note
	var created, updated string
	if err := row.Scan(&n.ID, &n.SessionID, &n.Title, &n.Content, &created, &updated); err != nil {
		return models.Note{}, err
	}
	var err error
	if n.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return models.Note{}, fmt.Errorf("bad created_at on note %s: %w", n.ID, err)
	}
	if n.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return models.Note{}, fmt.Errorf("bad updated_at on note %s: %w", n.ID, err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
