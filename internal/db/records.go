package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/gaze.report/internal/gaze"
)

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

const insertGazeSQL = `
	INSERT INTO gaze_records (
		session_id, timestamp, aoi, screen_x, screen_y,
		line, column, path, token, token_type, structure_json,
		unchanged, remark, raw_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertGaze(ex execer, r gaze.Record) error {
	raw, err := json.Marshal(r.Raw)
	if err != nil {
		return fmt.Errorf("encode raw sample: %w", err)
	}

	var x, y, line, column sql.NullInt64
	var path, token, tokenType, structure sql.NullString
	var unchanged int
	if r.Point != nil {
		x = sql.NullInt64{Int64: int64(r.Point.X), Valid: true}
		y = sql.NullInt64{Int64: int64(r.Point.Y), Valid: true}
	}
	if r.Location != nil {
		line = sql.NullInt64{Int64: int64(r.Location.Line), Valid: true}
		column = sql.NullInt64{Int64: int64(r.Location.Column), Valid: true}
		path = sql.NullString{String: r.Location.Path, Valid: true}
	}
	if r.Structure != nil {
		token = sql.NullString{String: r.Structure.Token, Valid: true}
		tokenType = sql.NullString{String: r.Structure.Kind, Valid: true}
		b, err := json.Marshal(r.Structure)
		if err != nil {
			return fmt.Errorf("encode structure: %w", err)
		}
		structure = sql.NullString{String: string(b), Valid: true}
		if r.Structure.Unchanged {
			unchanged = 1
		}
	}

	_, err = ex.Exec(insertGazeSQL,
		r.SessionID, r.Timestamp, r.AOI, x, y,
		line, column, path, token, tokenType, structure,
		unchanged, r.Remark, string(raw),
	)
	return err
}

// InsertGaze stores one record immediately. Sessions use Sink, which batches.
func (db *DB) InsertGaze(r gaze.Record) error {
	return insertGaze(db, r)
}

const insertSelectionSQL = `
	INSERT INTO selections (
		session_id, timestamp, path, start_position, end_position, selected_text
	) VALUES (?, ?, ?, ?, ?, ?)`

func (db *DB) InsertSelection(s gaze.Selection) error {
	_, err := db.Exec(insertSelectionSQL, s.SessionID, s.Timestamp, s.Path, s.Start, s.End, s.Text)
	if err != nil {
		return fmt.Errorf("insert selection: %w", err)
	}
	return nil
}

// GazeRecords returns a session's records in timestamp order. A limit of
// zero or less returns all of them.
func (db *DB) GazeRecords(sessionID string, limit int) ([]gaze.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT session_id, timestamp, aoi, screen_x, screen_y,
			line, column, path, structure_json, remark, raw_json
		FROM gaze_records
		WHERE session_id = ?
		ORDER BY timestamp, record_id
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []gaze.Record{}
	for rows.Next() {
		var r gaze.Record
		var x, y, line, column sql.NullInt64
		var path, structure sql.NullString
		var raw string
		if err := rows.Scan(&r.SessionID, &r.Timestamp, &r.AOI, &x, &y,
			&line, &column, &path, &structure, &r.Remark, &raw); err != nil {
			return nil, err
		}
		if x.Valid && y.Valid {
			r.Point = &gaze.ScreenPoint{X: int(x.Int64), Y: int(y.Int64)}
		}
		if line.Valid {
			r.Location = &gaze.Location{Line: int(line.Int64), Column: int(column.Int64), Path: path.String}
		}
		if structure.Valid {
			r.Structure = &gaze.Structure{}
			if err := json.Unmarshal([]byte(structure.String), r.Structure); err != nil {
				return nil, fmt.Errorf("decode structure: %w", err)
			}
		}
		if err := json.Unmarshal([]byte(raw), &r.Raw); err != nil {
			return nil, fmt.Errorf("decode raw sample: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// AOICount is the number of samples a session spent on one AOI label.
type AOICount struct {
	AOI   string `json:"aoi"`
	Count int    `json:"count"`
}

// AOICounts groups a session's records by AOI, most viewed first. Records
// without a label (failed projections) are excluded.
func (db *DB) AOICounts(sessionID string) ([]AOICount, error) {
	rows, err := db.Query(`
		SELECT aoi, COUNT(*) AS n
		FROM gaze_records
		WHERE session_id = ? AND aoi != ''
		GROUP BY aoi
		ORDER BY n DESC, aoi`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []AOICount{}
	for rows.Next() {
		var c AOICount
		if err := rows.Scan(&c.AOI, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (db *DB) Selections(sessionID string) ([]gaze.Selection, error) {
	rows, err := db.Query(`
		SELECT session_id, timestamp, path, start_position, end_position, selected_text
		FROM selections
		WHERE session_id = ?
		ORDER BY timestamp, selection_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	selections := []gaze.Selection{}
	for rows.Next() {
		var s gaze.Selection
		if err := rows.Scan(&s.SessionID, &s.Timestamp, &s.Path, &s.Start, &s.End, &s.Text); err != nil {
			return nil, err
		}
		selections = append(selections, s)
	}
	return selections, rows.Err()
}
