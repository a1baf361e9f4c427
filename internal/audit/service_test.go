package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTimelineRepo struct {
	entries   []Entry
	lastLimit int
	lastOff   int
	queryErr  error
}

func (m *mockTimelineRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	m.lastLimit = limit
	m.lastOff = offset
	if offset >= len(m.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.entries) {
		end = len(m.entries)
	}
	return m.entries[offset:end], nil
}

func fakeEntries(n int) []Entry {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{
			ID:           int64(n - i),
			ActorID:      1,
			TargetUserID: 5,
			BranchID:     10,
			Action:       ActionGrant,
			Keys:         []string{"orders.view"},
			At:           base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return entries
}

func TestTimelineDefaults(t *testing.T) {
	repo := &mockTimelineRepo{entries: fakeEntries(5)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)

	assert.Len(t, result.Rows, 5)
	assert.Equal(t, 1, result.Paging.Page)
	assert.Equal(t, 20, result.Paging.PageSize)
	assert.False(t, result.Paging.HasNext)
	assert.Zero(t, result.Paging.PrevPage)
	// One extra row is requested to detect the next page.
	assert.Equal(t, 21, repo.lastLimit)
}

func TestTimelinePaging(t *testing.T) {
	repo := &mockTimelineRepo{entries: fakeEntries(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 10)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 5)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.PrevPage)
	assert.Equal(t, 20, repo.lastOff)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &mockTimelineRepo{entries: fakeEntries(60)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, result.Paging.PageSize)
	assert.Len(t, result.Rows, 50)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: -2, PageSize: -1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Paging.Page)
	assert.Equal(t, 20, result.Paging.PageSize)
}

func TestTimelineRepositoryError(t *testing.T) {
	repo := &mockTimelineRepo{queryErr: errors.New("timeout")}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.queryErr)
}
