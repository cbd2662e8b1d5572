package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/cursorflow/internal/detector"
)

// Trace is a recorded session of detections, kept for replay and tuning.
type Trace struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Detections int       `json:"detections"`
	StartedAt  time.Time `json:"started_at"`
}

// TraceRepository stores traces and their detections.
type TraceRepository struct {
	db *sql.DB
}

// Traces returns the trace repository for this store.
func (s *Store) Traces() *TraceRepository {
	return &TraceRepository{db: s.db}
}

// Create starts a new, empty trace.
func (r *TraceRepository) Create(name string) (*Trace, error) {
	t := &Trace{
		ID:        uuid.New().String(),
		Name:      name,
		StartedAt: time.Now(),
	}

	_, err := r.db.Exec(
		`INSERT INTO traces (id, name, detections, started_at) VALUES (?, ?, 0, ?)`,
		t.ID, t.Name, t.StartedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Append adds detections to the end of a trace in a single transaction.
func (r *TraceRepository) Append(traceID string, detections []detector.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRow(`SELECT detections FROM traces WHERE id = ?`, traceID).Scan(&next)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO trace_detections (trace_id, sequence, x, y, timestamp_ms) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, d := range detections {
		if _, err := stmt.Exec(traceID, next+i, d.X, d.Y, d.Timestamp.UnixMilli()); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`UPDATE traces SET detections = ? WHERE id = ?`, next+len(detections), traceID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves trace metadata by ID.
func (r *TraceRepository) GetByID(id string) (*Trace, error) {
	t := &Trace{}
	err := r.db.QueryRow(
		`SELECT id, name, detections, started_at FROM traces WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Detections, &t.StartedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// List returns all traces, newest first.
func (r *TraceRepository) List() ([]*Trace, error) {
	rows, err := r.db.Query(`SELECT id, name, detections, started_at FROM traces ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var traces []*Trace
	for rows.Next() {
		t := &Trace{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Detections, &t.StartedAt); err != nil {
			return nil, err
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

// Detections returns the detections of a trace in recording order.
func (r *TraceRepository) Detections(traceID string) ([]detector.Detection, error) {
	if _, err := r.GetByID(traceID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(
		`SELECT x, y, timestamp_ms FROM trace_detections WHERE trace_id = ? ORDER BY sequence`, traceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var detections []detector.Detection
	for rows.Next() {
		var d detector.Detection
		var ms int64
		if err := rows.Scan(&d.X, &d.Y, &ms); err != nil {
			return nil, err
		}
		d.Timestamp = time.UnixMilli(ms)
		detections = append(detections, d)
	}
	return detections, rows.Err()
}

// Delete removes a trace and its detections.
func (r *TraceRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM traces WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}
