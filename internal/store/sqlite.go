// Package store keeps finished interview transcripts in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smithers-cli/smithers/internal/interview"
)

// ErrNotFound is returned by Get for unknown session ids.
var ErrNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	role        TEXT NOT NULL,
	resume_path TEXT NOT NULL,
	model       TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	verdict     TEXT
);
CREATE TABLE IF NOT EXISTS turns (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	question   INTEGER NOT NULL,
	content    TEXT NOT NULL,
	PRIMARY KEY (session_id, seq)
);`

// Summary is a row of the session listing.
type Summary struct {
	ID        string
	Role      string
	Model     string
	Status    interview.Status
	StartedAt time.Time
	Turns     int
	// Recommend is nil when the session has no structured verdict.
	Recommend *bool
}

// SQLiteStore persists transcripts in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save writes the transcript, replacing any previous copy with the same id.
func (s *SQLiteStore) Save(ctx context.Context, t *interview.Transcript) (err error) {
	if t == nil || t.ID == "" {
		return errors.New("transcript with an id is required")
	}

	var verdict sql.NullString
	if t.Verdict != nil {
		data, err := json.Marshal(t.Verdict)
		if err != nil {
			return fmt.Errorf("encoding verdict: %w", err)
		}
		verdict = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM turns WHERE session_id = ?", t.ID); err != nil {
		return fmt.Errorf("clearing turns of %s: %w", t.ID, err)
	}

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO sessions
		(id, role, resume_path, model, status, started_at, finished_at, verdict)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Role, t.ResumePath, t.Model, string(t.Status),
		t.StartedAt.UnixMilli(), t.FinishedAt.UnixMilli(), verdict,
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", t.ID, err)
	}

	for i, turn := range t.Turns {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO turns (session_id, seq, kind, question, content) VALUES (?, ?, ?, ?, ?)",
			t.ID, i, string(turn.Kind), turn.Question, turn.Content,
		)
		if err != nil {
			return fmt.Errorf("saving turn %d of %s: %w", i, t.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing session %s: %w", t.ID, err)
	}

	return nil
}

// List returns the most recent sessions first. A non-positive limit returns all.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `SELECT s.id, s.role, s.model, s.status, s.started_at, s.verdict,
			(SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at DESC, s.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var (
			sum     Summary
			status  string
			started int64
			verdict sql.NullString
		)
		if err := rows.Scan(&sum.ID, &sum.Role, &sum.Model, &status, &started, &verdict, &sum.Turns); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}

		sum.Status = interview.Status(status)
		sum.StartedAt = time.UnixMilli(started)

		if v, err := decodeVerdict(verdict); err == nil && v != nil && v.Structured {
			recommend := v.Recommend
			sum.Recommend = &recommend
		}

		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return summaries, nil
}

// Get loads a full transcript.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*interview.Transcript, error) {
	var (
		t        interview.Transcript
		status   string
		started  int64
		finished int64
		verdict  sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `SELECT id, role, resume_path, model, status, started_at, finished_at, verdict
		FROM sessions WHERE id = ?`, id).
		Scan(&t.ID, &t.Role, &t.ResumePath, &t.Model, &status, &started, &finished, &verdict)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	t.Status = interview.Status(status)
	t.StartedAt = time.UnixMilli(started)
	t.FinishedAt = time.UnixMilli(finished)

	if t.Verdict, err = decodeVerdict(verdict); err != nil {
		return nil, fmt.Errorf("decoding verdict of %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, question, content FROM turns WHERE session_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("loading turns of %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			turn interview.Turn
			kind string
		)
		if err := rows.Scan(&kind, &turn.Question, &turn.Content); err != nil {
			return nil, fmt.Errorf("scanning turn of %s: %w", id, err)
		}
		turn.Kind = interview.Kind(kind)
		t.Turns = append(t.Turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns of %s: %w", id, err)
	}

	return &t, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeVerdict(raw sql.NullString) (*interview.Verdict, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}

	var v interview.Verdict
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return nil, err
	}
	return &v, nil
}
