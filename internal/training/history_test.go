package training

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistoryStore struct {
	err     error
	calls   int
	session string
	records []Record
}

func (f *fakeHistoryStore) AppendHistory(_ context.Context, sessionName string, records []Record) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.session = sessionName
	f.records = records
	return nil
}

func TestRecorder_RecordAppends(t *testing.T) {
	r := NewRecorder()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rec := r.Record(Item{Name: "Jab"}, CategoryTechnique, 1500*time.Millisecond, true, now)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Jab", rec.ItemName)
	assert.Equal(t, CategoryTechnique, rec.Category)
	assert.InDelta(t, 1.5, rec.ElapsedSeconds, 1e-9)
	assert.True(t, rec.Known)
	assert.Equal(t, now, rec.CompletedAt)
	assert.Equal(t, 1, r.Len())

	r.Record(Item{Name: "Cross"}, CategoryTechnique, -time.Second, true, now)
	assert.Equal(t, 0.0, r.Records()[1].ElapsedSeconds)
	assert.Equal(t, 1500*time.Millisecond, r.TotalElapsed())
}

func TestRecorder_FinalizeFailureKeepsRecords(t *testing.T) {
	r := NewRecorder()
	r.Record(Item{Name: "Jab"}, CategoryTechnique, time.Second, true, time.Now())
	store := &fakeHistoryStore{err: errors.New("disk full")}

	err := r.Finalize(context.Background(), store, "evening")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHistoryNotSaved)
	assert.False(t, r.Saved())
	assert.Equal(t, 1, r.Len())

	store.err = nil
	require.NoError(t, r.Finalize(context.Background(), store, "evening"))
	assert.True(t, r.Saved())
	assert.Equal(t, "evening", store.session)
	assert.Len(t, store.records, 1)
	assert.Equal(t, 2, store.calls)

	// further calls are no-ops
	require.NoError(t, r.Finalize(context.Background(), store, "evening"))
	assert.Equal(t, 2, store.calls)
}

func TestRecorder_FinalizeEmptySkipsStore(t *testing.T) {
	r := NewRecorder()
	store := &fakeHistoryStore{}

	require.NoError(t, r.Finalize(context.Background(), store, "nothing"))
	assert.Equal(t, 0, store.calls)
}
