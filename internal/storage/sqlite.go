package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the log of served suggestions.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "hintd.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection: the in-memory database is per-connection and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
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

type migration struct {
	version int
	name    string
}

// pendingMigrations lists embedded migrations missing from applied, oldest first.
func pendingMigrations(applied []int) ([]migration, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	var pending []migration
	for _, name := range names {
		var version int
		base := path.Base(name)
		if _, err := fmt.Sscanf(base, "%d_", &version); err != nil {
			return nil, fmt.Errorf("migration %q has no version prefix: %w", base, err)
		}
		if !done[version] {
			pending = append(pending, migration{version: version, name: name})
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].version < pending[j].version })
	return pending, nil
}

// migrate brings the schema up to date. Every migration runs in its own
// transaction together with its schema_version row.
func (s *Store) migrate() error {
	const bootstrap = `CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := s.db.Exec(bootstrap); err != nil {
		return fmt.Errorf("bootstrapping schema_version: %w", err)
	}

	applied, err := s.AppliedMigrations()
	if err != nil {
		return fmt.Errorf("loading applied migrations: %w", err)
	}
	pending, err := pendingMigrations(applied)
	if err != nil {
		return err
	}

	for _, m := range pending {
		script, err := migrationsFS.ReadFile(m.name)
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if err := s.withTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(string(script)); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version)
			return err
		}); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) withTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// AppliedMigrations returns the applied schema versions, lowest first.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Suggestions ---

const suggestionColumns = `id, created_at, request_time, category, note_text, predicted_at, hint_text, found, status, accepted, feedback_at, request_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSuggestion(r rowScanner) (Suggestion, error) {
	var (
		sg         Suggestion
		createdAt  string
		accepted   sql.NullBool
		feedbackAt sql.NullString
	)
	if err := r.Scan(&sg.ID, &createdAt, &sg.RequestTime, &sg.Category, &sg.NoteText, &sg.PredictedAt,
		&sg.HintText, &sg.Found, &sg.Status, &accepted, &feedbackAt, &sg.RequestJSON); err != nil {
		return Suggestion{}, err
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Suggestion{}, fmt.Errorf("parsing created_at: %w", err)
	}
	sg.CreatedAt = t
	if accepted.Valid {
		v := accepted.Bool
		sg.Accepted = &v
	}
	if feedbackAt.Valid {
		ft, err := time.Parse(time.RFC3339, feedbackAt.String)
		if err != nil {
			return Suggestion{}, fmt.Errorf("parsing feedback_at: %w", err)
		}
		sg.FeedbackAt = &ft
	}
	return sg, nil
}

// SaveSuggestion inserts a served suggestion. An empty Status is stored as
// StatusServed.
func (s *Store) SaveSuggestion(sg Suggestion) error {
	status := sg.Status
	if status == "" {
		status = StatusServed
	}
	_, err := s.db.Exec(`
		INSERT INTO suggestions (id, created_at, request_time, category, note_text, predicted_at, hint_text, found, status, request_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sg.ID, sg.CreatedAt.UTC().Format(time.RFC3339), sg.RequestTime, sg.Category, sg.NoteText,
		sg.PredictedAt, sg.HintText, sg.Found, status, sg.RequestJSON,
	)
	return err
}

func (s *Store) GetSuggestion(id string) (Suggestion, error) {
	sg, err := scanSuggestion(s.db.QueryRow(`SELECT `+suggestionColumns+` FROM suggestions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Suggestion{}, ErrNotFound
	}
	return sg, err
}

// ListSuggestions returns suggestions newest first.
func (s *Store) ListSuggestions(limit, offset int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(`SELECT `+suggestionColumns+` FROM suggestions
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sg)
	}
	return results, rows.Err()
}

func (s *Store) GetRecentSuggestions(limit int) ([]Suggestion, error) {
	return s.ListSuggestions(limit, 0)
}

// CountSuggestions returns the number of logged suggestions.
func (s *Store) CountSuggestions() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM suggestions").Scan(&n)
	return n, err
}

// UpdateFeedback records the user's answer to a served hint. Answering again
// overwrites the previous answer.
func (s *Store) UpdateFeedback(id string, accepted bool) error {
	status := StatusRejected
	if accepted {
		status = StatusAccepted
	}
	res, err := s.db.Exec(`UPDATE suggestions SET accepted = ?, status = ?, feedback_at = ? WHERE id = ?`,
		accepted, status, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteSuggestion(id string) error {
	res, err := s.db.Exec(`DELETE FROM suggestions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// PurgeBefore deletes suggestions created before t and returns how many were removed.
func (s *Store) PurgeBefore(t time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM suggestions WHERE created_at < ?`, t.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
