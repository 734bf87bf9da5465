// Package history keeps the current session's conversion records and chat
// transcript in an in-memory SQLite database. Nothing survives process exit;
// the store exists so the daemon can serve progress, downloads and a
// history listing for the session it is running.
package history

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Conversion statuses, matching the vocabulary the daemon reports.
const (
	StatusQueued   = "queued"
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusError    = "error"
)

// Conversion is one recorded conversion attempt. Audio is kept out of this
// struct; fetch it with Audio.
type Conversion struct {
	ID         string
	Source     string
	Backend    string
	Status     string
	Error      string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// ChatMessage is one recorded chat turn.
type ChatMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store wraps the in-memory database.
type Store struct {
	db *sql.DB
}

// Open creates the in-memory store and applies migrations.
func Open() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A :memory: database exists per connection; a second connection would
	// see an empty schema.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
	}
	return nil
}

// --- Conversions ---

// CreateConversion records a new conversion in queued state.
func (s *Store) CreateConversion(id, source, backend string) error {
	_, err := s.db.Exec(`
		INSERT INTO conversions (id, source, backend, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, source, backend, StatusQueued, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// MarkRunning moves a conversion to running state.
func (s *Store) MarkRunning(id string) error {
	return s.setStatus(id, StatusRunning, "", nil)
}

// MarkFinished stores the audio and moves the conversion to finished state.
func (s *Store) MarkFinished(id string, audio []byte) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE conversions SET status = ?, audio = ?, finished_at = ? WHERE id = ?`,
		StatusFinished, audio, now, id,
	)
	if err != nil {
		return err
	}
	return checkUpdated(res)
}

// MarkFailed moves the conversion to error state with the given message.
func (s *Store) MarkFailed(id, errMsg string) error {
	now := time.Now().UTC()
	return s.setStatus(id, StatusError, errMsg, &now)
}

func (s *Store) setStatus(id, status, errMsg string, finishedAt *time.Time) error {
	var finished any
	if finishedAt != nil {
		finished = finishedAt.Format(time.RFC3339)
	}
	res, err := s.db.Exec(`
		UPDATE conversions SET status = ?, error = ?, finished_at = COALESCE(?, finished_at)
		WHERE id = ?`,
		status, errMsg, finished, id,
	)
	if err != nil {
		return err
	}
	return checkUpdated(res)
}

func checkUpdated(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetConversion returns one conversion record without its audio.
func (s *Store) GetConversion(id string) (Conversion, error) {
	row := s.db.QueryRow(`
		SELECT id, source, backend, status, error, created_at, finished_at
		FROM conversions WHERE id = ?`, id)
	return scanConversion(row)
}

// Audio returns the stored audio of a finished conversion.
func (s *Store) Audio(id string) ([]byte, error) {
	var audio []byte
	err := s.db.QueryRow(`SELECT audio FROM conversions WHERE id = ? AND audio IS NOT NULL`, id).Scan(&audio)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// RecentConversions lists the newest conversions first, up to limit.
func (s *Store) RecentConversions(limit int) ([]Conversion, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, source, backend, status, error, created_at, finished_at
		FROM conversions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversion(row rowScanner) (Conversion, error) {
	var c Conversion
	var createdAt string
	var finishedAt sql.NullString
	err := row.Scan(&c.ID, &c.Source, &c.Backend, &c.Status, &c.Error, &createdAt, &finishedAt)
	if err == sql.ErrNoRows {
		return Conversion{}, ErrNotFound
	}
	if err != nil {
		return Conversion{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Conversion{}, fmt.Errorf("parsing created_at: %w", err)
	}
	c.CreatedAt = t
	if finishedAt.Valid {
		ft, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return Conversion{}, fmt.Errorf("parsing finished_at: %w", err)
		}
		c.FinishedAt = &ft
	}
	return c, nil
}

// --- Chat transcript ---

// AppendChatMessage records one chat turn.
func (s *Store) AppendChatMessage(role, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (role, content, created_at) VALUES (?, ?, ?)`,
		role, content, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ChatTranscript returns all recorded chat turns in append order.
func (s *Store) ChatTranscript() ([]ChatMessage, error) {
	rows, err := s.db.Query(`SELECT role, content, created_at FROM chat_messages ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt string
		if err := rows.Scan(&m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		m.CreatedAt = t
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClearChat removes the whole transcript.
func (s *Store) ClearChat() error {
	_, err := s.db.Exec(`DELETE FROM chat_messages`)
	return err
}
