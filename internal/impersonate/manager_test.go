package impersonate

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGate struct {
	allowed map[int64]bool
	err     error
}

func (m *mockGate) CanImpersonate(ctx context.Context, userID int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.allowed[userID], nil
}

type mockDirectory struct {
	users map[int64]bool
	err   error
}

func (m *mockDirectory) Exists(ctx context.Context, userID int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.users[userID], nil
}

var managerNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gate := &mockGate{allowed: map[int64]bool{1: true}}
	users := &mockDirectory{users: map[int64]bool{2: true, 3: true}}
	manager := NewManager(client, gate, users, 30*time.Minute).
		WithClock(func() time.Time { return managerNow })
	return manager, mr
}

func TestStartAndActive(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	state, err := manager.Start(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.RealActorID)
	assert.Equal(t, int64(2), state.ViewedUserID)
	assert.Equal(t, managerNow, state.StartedAt)

	active, err := manager.Active(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, state, *active)

	effective, err := manager.EffectiveIdentity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), effective)
}

func TestStartReplacesActiveSession(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Start(ctx, 1, 2)
	require.NoError(t, err)
	_, err = manager.Start(ctx, 1, 3)
	require.NoError(t, err)

	active, err := manager.Active(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, int64(3), active.ViewedUserID)
}

func TestStartNotPermitted(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.Start(context.Background(), 2, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotPermitted))
}

func TestStartSelfTarget(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.Start(context.Background(), 1, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTarget))
}

func TestStartUnknownTarget(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.Start(context.Background(), 1, 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTarget))
}

func TestEndClearsSession(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Start(ctx, 1, 2)
	require.NoError(t, err)
	require.NoError(t, manager.End(ctx, 1))

	active, err := manager.Active(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, active)

	effective, err := manager.EffectiveIdentity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), effective)
}

func TestEndIdleIsNoOp(t *testing.T) {
	manager, _ := newTestManager(t)
	assert.NoError(t, manager.End(context.Background(), 1))
}

func TestSessionExpires(t *testing.T) {
	manager, mr := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Start(ctx, 1, 2)
	require.NoError(t, err)

	mr.FastForward(31 * time.Minute)

	active, err := manager.Active(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, active)

	effective, err := manager.EffectiveIdentity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), effective)
}

func TestActiveIdle(t *testing.T) {
	manager, _ := newTestManager(t)

	active, err := manager.Active(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, active)
}
