// Package impersonate manages "view as" sessions: a privileged actor browses
// the panel as another user while every write stays attributed to the real
// actor.
package impersonate

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotPermitted indicates the actor lacks the impersonation
	// capability.
	ErrNotPermitted = errors.New("impersonate: actor not permitted")
	// ErrInvalidTarget indicates the target equals the actor or does not
	// exist.
	ErrInvalidTarget = errors.New("impersonate: invalid target user")
)

// Gatekeeper decides who may impersonate. The capability sits outside the
// branch/module permission catalogue.
type Gatekeeper interface {
	CanImpersonate(ctx context.Context, userID int64) (bool, error)
}

// UserDirectory answers whether a target user exists and is active.
type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// SessionState is the single source of truth for one actor's impersonation,
// shared by every tab and device of that actor.
type SessionState struct {
	RealActorID  int64     `json:"real_actor_id"`
	ViewedUserID int64     `json:"viewed_user_id"`
	StartedAt    time.Time `json:"started_at"`
}

// Manager stores at most one active session per real actor in Redis with a
// TTL. Reads, starts and ends never block each other.
type Manager struct {
	client *redis.Client
	gate   Gatekeeper
	users  UserDirectory
	ttl    time.Duration
	clock  func() time.Time
}

// NewManager constructs a Manager.
func NewManager(client *redis.Client, gate Gatekeeper, users UserDirectory, ttl time.Duration) *Manager {
	return &Manager{
		client: client,
		gate:   gate,
		users:  users,
		ttl:    ttl,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock, used by tests.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// Start opens a session viewing viewedUserID. An already active session is
// replaced, not stacked.
func (m *Manager) Start(ctx context.Context, realActorID, viewedUserID int64) (SessionState, error) {
	allowed, err := m.gate.CanImpersonate(ctx, realActorID)
	if err != nil {
		return SessionState{}, err
	}
	if !allowed {
		return SessionState{}, ErrNotPermitted
	}
	if viewedUserID == realActorID {
		return SessionState{}, ErrInvalidTarget
	}
	exists, err := m.users.Exists(ctx, viewedUserID)
	if err != nil {
		return SessionState{}, err
	}
	if !exists {
		return SessionState{}, ErrInvalidTarget
	}

	state := SessionState{
		RealActorID:  realActorID,
		ViewedUserID: viewedUserID,
		StartedAt:    m.clock(),
	}
	data, err := json.Marshal(state)
	if err != nil {
		return SessionState{}, err
	}
	if err := m.client.Set(ctx, sessionKey(realActorID), data, m.ttl).Err(); err != nil {
		return SessionState{}, err
	}
	return state, nil
}

// End closes the actor's session. Ending an idle session is a no-op.
func (m *Manager) End(ctx context.Context, realActorID int64) error {
	err := m.client.Del(ctx, sessionKey(realActorID)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Active returns the current session, or nil when the actor is idle or the
// session expired.
func (m *Manager) Active(ctx context.Context, realActorID int64) (*SessionState, error) {
	data, err := m.client.Get(ctx, sessionKey(realActorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// EffectiveIdentity returns the viewed user while a session is active, the
// real actor otherwise. Only read paths consult this; writes and audit
// entries always use the real actor.
func (m *Manager) EffectiveIdentity(ctx context.Context, realActorID int64) (int64, error) {
	state, err := m.Active(ctx, realActorID)
	if err != nil {
		return 0, err
	}
	if state == nil {
		return realActorID, nil
	}
	return state.ViewedUserID, nil
}

// KeyPrefix is the redis key namespace, shared with the sweep job.
const KeyPrefix = "impersonation:"

func sessionKey(realActorID int64) string {
	return KeyPrefix + strconv.FormatInt(realActorID, 10)
}
