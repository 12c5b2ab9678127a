package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrHistoryNotSaved wraps any failure to persist a finished session's history.
// The records stay in memory so the save can be retried.
var ErrHistoryNotSaved = errors.New("results not saved")

// Record is one completed step
type Record struct {
	ID             string
	ItemName       string
	Category       Category
	ElapsedSeconds float64
	// Known is false for items that were still pending when a quiz ended
	Known       bool
	CompletedAt time.Time
}

// HistoryStore persists all records of a session as one unit
type HistoryStore interface {
	AppendHistory(ctx context.Context, sessionName string, records []Record) error
}

// Recorder builds the append-only history of one session.
// It is owned by a single Player and is not safe for concurrent use.
type Recorder struct {
	records []Record
	saved   bool
	newID   func() string
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{
		records: make([]Record, 0),
		newID:   func() string { return uuid.NewString() },
	}
}

// Record appends a completion record for item and returns it
func (r *Recorder) Record(item Item, category Category, elapsed time.Duration, known bool, completedAt time.Time) Record {
	if elapsed < 0 {
		elapsed = 0
	}
	rec := Record{
		ID:             r.newID(),
		ItemName:       item.Name,
		Category:       category,
		ElapsedSeconds: elapsed.Seconds(),
		Known:          known,
		CompletedAt:    completedAt,
	}
	r.records = append(r.records, rec)
	return rec
}

// Records returns a copy of the history built so far
func (r *Recorder) Records() []Record {
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of records
func (r *Recorder) Len() int {
	return len(r.records)
}

// TotalElapsed sums the elapsed time of every record
func (r *Recorder) TotalElapsed() time.Duration {
	var total float64
	for _, rec := range r.records {
		total += rec.ElapsedSeconds
	}
	return time.Duration(total * float64(time.Second))
}

// Saved reports whether Finalize has succeeded
func (r *Recorder) Saved() bool {
	return r.saved
}

// Finalize hands every record to store in a single call. A session with no records is not written.
// On failure the error wraps ErrHistoryNotSaved and the records are kept for a retry.
func (r *Recorder) Finalize(ctx context.Context, store HistoryStore, sessionName string) error {
	if r.saved {
		return nil
	}
	if len(r.records) == 0 {
		r.saved = true
		return nil
	}
	if store == nil {
		return fmt.Errorf("%w: no history store", ErrHistoryNotSaved)
	}
	if err := store.AppendHistory(ctx, sessionName, r.Records()); err != nil {
		return fmt.Errorf("%w: %w", ErrHistoryNotSaved, err)
	}
	r.saved = true
	return nil
}
