// Package store keeps a SQLite history of decoded text and transmissions.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ColonelBlimp/lightmorse/internal/receiver"
	"github.com/ColonelBlimp/lightmorse/internal/transmit"
)

// ErrInvalidLimit indicates a listing limit must be positive
var ErrInvalidLimit = errors.New("limit must be positive")

//go:embed schema.sql
var schemaSQL string

// Store wraps the history database.
type Store struct {
	*sql.DB
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db}, nil
}

// Decode is one stored decoder flush.
type Decode struct {
	ID        int64
	SessionID uuid.UUID
	At        time.Time
	Reason    string
	Letter    string
	Morse     string
	Text      string
}

// RecordDecode stores a decoder flush.
func (s *Store) RecordDecode(r receiver.Result) error {
	letter := ""
	if r.Letter != 0 {
		letter = string(r.Letter)
	}
	_, err := s.Exec(`
		INSERT INTO decodes (session_id, at_ms, reason, letter, morse, text)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.SessionID.String(), r.At.UnixMilli(), r.Reason.String(), letter, r.Morse, r.Text)
	if err != nil {
		return fmt.Errorf("insert decode: %w", err)
	}
	return nil
}

// RecentDecodes returns up to limit decodes, newest first.
func (s *Store) RecentDecodes(limit int) ([]Decode, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.Query(`
		SELECT id, session_id, at_ms, reason, letter, morse, text
		FROM decodes
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decodes: %w", err)
	}
	defer rows.Close()

	var out []Decode
	for rows.Next() {
		var d Decode
		var session string
		var atMS int64
		if err := rows.Scan(&d.ID, &session, &atMS, &d.Reason, &d.Letter, &d.Morse, &d.Text); err != nil {
			return nil, fmt.Errorf("scan decode: %w", err)
		}
		if d.SessionID, err = uuid.Parse(session); err != nil {
			return nil, fmt.Errorf("decode %d: %w", d.ID, err)
		}
		d.At = time.UnixMilli(atMS)
		out = append(out, d)
	}
	return out, rows.Err()
}

// SessionText returns the final decoded text of a session, or "" if the
// session is unknown.
func (s *Store) SessionText(id uuid.UUID) (string, error) {
	var text string
	err := s.QueryRow(`
		SELECT text FROM decodes
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT 1`, id.String()).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query session text: %w", err)
	}
	return text, nil
}

// RecordTransmission stores a transmission report.
func (s *Store) RecordTransmission(r transmit.Report) error {
	_, err := s.Exec(`
		INSERT INTO transmissions (id, started_ms, finished_ms, text, morse, pulses, failures, canceled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Started.UnixMilli(), r.Finished.UnixMilli(),
		r.Text, r.Morse, r.Pulses, r.Failures, r.Canceled)
	if err != nil {
		return fmt.Errorf("insert transmission: %w", err)
	}
	return nil
}

// RecentTransmissions returns up to limit transmissions, newest first.
func (s *Store) RecentTransmissions(limit int) ([]transmit.Report, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.Query(`
		SELECT id, started_ms, finished_ms, text, morse, pulses, failures, canceled
		FROM transmissions
		ORDER BY started_ms DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transmissions: %w", err)
	}
	defer rows.Close()

	var out []transmit.Report
	for rows.Next() {
		var r transmit.Report
		var id string
		var started, finished int64
		if err := rows.Scan(&id, &started, &finished, &r.Text, &r.Morse, &r.Pulses, &r.Failures, &r.Canceled); err != nil {
			return nil, fmt.Errorf("scan transmission: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("transmission id: %w", err)
		}
		r.Started = time.UnixMilli(started)
		r.Finished = time.UnixMilli(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
