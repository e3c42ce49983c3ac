package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// SessionRecord holds the settings a session was recorded with.
type SessionRecord struct {
	SessionID       string  `json:"session_id"`
	Device          string  `json:"device"`
	SampleFrequency float64 `json:"sample_frequency"`
	DominantEye     string  `json:"dominant_eye"`
	ScreenWidth     int     `json:"screen_width"`
	ScreenHeight    int     `json:"screen_height"`
	ProjectRoot     string  `json:"project_root"`
	StartedUnixMs   int64   `json:"started_unix_ms"`
	StoppedUnixMs   *int64  `json:"stopped_unix_ms,omitempty"`
	StopError       string  `json:"stop_error,omitempty"`
}

func (db *DB) CreateSession(s SessionRecord) error {
	_, err := db.Exec(`
		INSERT INTO sessions (
			session_id, device, sample_frequency, dominant_eye,
			screen_width, screen_height, project_root, started_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.Device, s.SampleFrequency, s.DominantEye,
		s.ScreenWidth, s.ScreenHeight, s.ProjectRoot, s.StartedUnixMs,
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", s.SessionID, err)
	}
	return nil
}

// EndSession marks a session stopped. stopErr is empty for a clean stop.
func (db *DB) EndSession(id string, stoppedUnixMs int64, stopErr string) error {
	res, err := db.Exec(`
		UPDATE sessions SET stopped_unix_ms = ?, stop_error = NULLIF(?, '')
		WHERE session_id = ?`, stoppedUnixMs, stopErr, id)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

const sessionColumns = `session_id, device, sample_frequency, dominant_eye,
	screen_width, screen_height, project_root, started_unix_ms,
	stopped_unix_ms, COALESCE(stop_error, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (SessionRecord, error) {
	var s SessionRecord
	var stopped sql.NullInt64
	if err := row.Scan(
		&s.SessionID, &s.Device, &s.SampleFrequency, &s.DominantEye,
		&s.ScreenWidth, &s.ScreenHeight, &s.ProjectRoot, &s.StartedUnixMs,
		&stopped, &s.StopError,
	); err != nil {
		return s, err
	}
	if stopped.Valid {
		v := stopped.Int64
		s.StoppedUnixMs = &v
	}
	return s, nil
}

func (db *DB) Session(id string) (SessionRecord, error) {
	row := db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return s, err
}

// Sessions lists sessions, newest first.
func (db *DB) Sessions() ([]SessionRecord, error) {
	rows, err := db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_unix_ms DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []SessionRecord{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
