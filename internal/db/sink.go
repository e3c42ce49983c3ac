package db

import (
	"fmt"
	"sync"

	"github.com/banshee-data/gaze.report/internal/gaze"
)

// DefaultBatchSize is the number of gaze records written per transaction.
const DefaultBatchSize = 64

// Sink buffers gaze records and writes them in batches. Selections are
// rare and written straight through. Safe for concurrent use.
type Sink struct {
	db        *DB
	batchSize int

	mu      sync.Mutex
	pending []gaze.Record
}

func NewSink(db *DB, batchSize int) *Sink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Sink{db: db, batchSize: batchSize}
}

func (s *Sink) RecordGaze(r gaze.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, r)
	if len(s.pending) < s.batchSize {
		return nil
	}
	return s.flushLocked()
}

func (s *Sink) RecordSelection(sel gaze.Selection) error {
	return s.db.InsertSelection(sel)
}

// Flush writes any buffered records.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Sink) flushLocked() error {
	if len(s.pending) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin gaze batch: %w", err)
	}
	for _, r := range s.pending {
		if err := insertGaze(tx, r); err != nil {
			tx.Rollback()
			// drop the batch so one bad record cannot wedge the session
			s.pending = s.pending[:0]
			return fmt.Errorf("insert gaze record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		s.pending = s.pending[:0]
		return fmt.Errorf("commit gaze batch: %w", err)
	}
	s.pending = s.pending[:0]
	return nil
}

// Pending is the number of buffered records.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
