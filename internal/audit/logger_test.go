package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEntryWriter struct {
	entries  []Entry
	writeErr error
}

func (m *mockEntryWriter) InsertAuditEntry(ctx context.Context, entry Entry) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

var loggerNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestLogger() *Logger {
	return NewLogger().WithClock(func() time.Time { return loggerNow })
}

func TestRecordGrantAndRevoke(t *testing.T) {
	w := &mockEntryWriter{}
	logger := newTestLogger()

	err := logger.Record(context.Background(), w, 1, 5, 10,
		[]string{"orders.view"}, []string{"menu.edit", "menu.view"})
	require.NoError(t, err)
	require.Len(t, w.entries, 2)

	grant := w.entries[0]
	assert.Equal(t, ActionGrant, grant.Action)
	assert.Equal(t, int64(1), grant.ActorID)
	assert.Equal(t, int64(5), grant.TargetUserID)
	assert.Equal(t, int64(10), grant.BranchID)
	assert.Equal(t, []string{"orders.view"}, grant.Keys)
	assert.Equal(t, loggerNow, grant.At)

	revoke := w.entries[1]
	assert.Equal(t, ActionBulkRevoke, revoke.Action)
	assert.Equal(t, []string{"menu.edit", "menu.view"}, revoke.Keys)
}

func TestRecordSortsKeys(t *testing.T) {
	w := &mockEntryWriter{}
	logger := newTestLogger()

	granted := []string{"orders.view", "menu.edit", "kds.view"}
	err := logger.Record(context.Background(), w, 1, 5, 10, granted, nil)
	require.NoError(t, err)

	require.Len(t, w.entries, 1)
	assert.Equal(t, ActionBulkGrant, w.entries[0].Action)
	assert.Equal(t, []string{"kds.view", "menu.edit", "orders.view"}, w.entries[0].Keys)
	// The caller's slice is untouched.
	assert.Equal(t, []string{"orders.view", "menu.edit", "kds.view"}, granted)
}

func TestRecordEmptySetsWriteNothing(t *testing.T) {
	w := &mockEntryWriter{}
	logger := newTestLogger()

	err := logger.Record(context.Background(), w, 1, 5, 10, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, w.entries)
}

func TestRecordWriterFailurePropagates(t *testing.T) {
	w := &mockEntryWriter{writeErr: errors.New("disk full")}
	logger := newTestLogger()

	err := logger.Record(context.Background(), w, 1, 5, 10, []string{"orders.view"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, w.writeErr)
}

func TestRecordRequiresWriter(t *testing.T) {
	logger := newTestLogger()
	err := logger.Record(context.Background(), nil, 1, 5, 10, []string{"orders.view"}, nil)
	require.Error(t, err)
}
