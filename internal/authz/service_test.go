package authz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/branchline/branchline/internal/audit"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	mu sync.Mutex

	perms  map[string][]string
	roles  map[int64][]Role
	access map[int64][]int64
	audits []audit.Entry

	replaceCalls int

	// Error injection
	txError      error
	listError    error
	rolesError   error
	lockError    error
	replaceError error
	auditError   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		perms:  make(map[string][]string),
		roles:  make(map[int64][]Role),
		access: make(map[int64][]int64),
	}
}

func pairKey(userID, branchID int64) string {
	return fmt.Sprintf("%d:%d", userID, branchID)
}

func (m *mockRepository) setPerms(userID, branchID int64, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perms[pairKey(userID, branchID)] = keys
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	m.mu.Lock()
	savedPerms := make(map[string][]string, len(m.perms))
	for k, v := range m.perms {
		savedPerms[k] = v
	}
	savedAudits := len(m.audits)
	m.mu.Unlock()

	if err := fn(ctx, &mockTxRepo{mock: m}); err != nil {
		// Emulate rollback.
		m.mu.Lock()
		m.perms = savedPerms
		m.audits = m.audits[:savedAudits]
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *mockRepository) ListPermissionKeys(ctx context.Context, userID, branchID int64) ([]string, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perms[pairKey(userID, branchID)], nil
}

func (m *mockRepository) ListRoles(ctx context.Context, userID int64) ([]Role, error) {
	if m.rolesError != nil {
		return nil, m.rolesError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[userID], nil
}

func (m *mockRepository) ListBranchAccess(ctx context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access[userID], nil
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) LockPermissionKeys(ctx context.Context, userID, branchID int64) ([]string, error) {
	if t.mock.lockError != nil {
		return nil, t.mock.lockError
	}
	t.mock.mu.Lock()
	defer t.mock.mu.Unlock()
	return t.mock.perms[pairKey(userID, branchID)], nil
}

func (t *mockTxRepo) ReplacePermissions(ctx context.Context, userID, branchID int64, keys []string, grantedBy int64, at time.Time) error {
	if t.mock.replaceError != nil {
		return t.mock.replaceError
	}
	t.mock.mu.Lock()
	defer t.mock.mu.Unlock()
	t.mock.replaceCalls++
	t.mock.perms[pairKey(userID, branchID)] = keys
	return nil
}

func (t *mockTxRepo) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	if t.mock.auditError != nil {
		return t.mock.auditError
	}
	t.mock.mu.Lock()
	defer t.mock.mu.Unlock()
	t.mock.audits = append(t.mock.audits, entry)
	return nil
}

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestService(repo *mockRepository) *Service {
	clock := func() time.Time { return fixedNow }
	auditor := audit.NewLogger().WithClock(clock)
	return NewService(repo, DefaultCatalog(), auditor).WithClock(clock)
}

// ============================================================================
// SAVE
// ============================================================================

func TestSaveRoundTrip(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	svc := newTestService(repo)
	ctx := context.Background()

	snapshot, err := svc.Load(ctx, 2, 10)
	require.NoError(t, err)
	require.Empty(t, snapshot)

	newSet := NewSet(PermOrdersView, PermOrdersCreate)
	err = svc.Save(ctx, SaveInput{ActorID: 1, UserID: 2, BranchID: 10, NewSet: newSet, Snapshot: snapshot})
	require.NoError(t, err)

	stored, err := svc.Load(ctx, 2, 10)
	require.NoError(t, err)
	assert.True(t, stored.Equal(newSet))

	require.Len(t, repo.audits, 1)
	entry := repo.audits[0]
	assert.Equal(t, audit.ActionBulkGrant, entry.Action)
	assert.Equal(t, int64(1), entry.ActorID)
	assert.Equal(t, int64(2), entry.TargetUserID)
	assert.Equal(t, int64(10), entry.BranchID)
	assert.Equal(t, []string{PermOrdersCreate, PermOrdersView}, entry.Keys)
	assert.Equal(t, fixedNow, entry.At)
}

func TestSaveRejectsUnknownKey(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	svc := newTestService(repo)

	err := svc.Save(context.Background(), SaveInput{
		ActorID:  1,
		UserID:   2,
		BranchID: 10,
		NewSet:   NewSet("orders.delete"),
		Snapshot: NewSet(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidKey))
	assert.Zero(t, repo.replaceCalls)
}

func TestSaveNoOpWritesNothing(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	repo.setPerms(2, 10, PermOrdersView, PermOrdersCreate)
	svc := newTestService(repo)

	same := NewSet(PermOrdersView, PermOrdersCreate)
	err := svc.Save(context.Background(), SaveInput{
		ActorID:  1,
		UserID:   2,
		BranchID: 10,
		NewSet:   same,
		Snapshot: same.Clone(),
	})
	require.NoError(t, err)
	assert.Zero(t, repo.replaceCalls)
	assert.Empty(t, repo.audits)
}

func TestSaveConcurrentModification(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	svc := newTestService(repo)
	ctx := context.Background()

	snapshot, err := svc.Load(ctx, 2, 10)
	require.NoError(t, err)

	// Another editor replaces the set after our snapshot was taken.
	repo.setPerms(2, 10, PermMenuView)

	err = svc.Save(ctx, SaveInput{
		ActorID:  1,
		UserID:   2,
		BranchID: 10,
		NewSet:   NewSet(PermOrdersView),
		Snapshot: snapshot,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConcurrentModification))

	// The concurrent editor's write survives untouched.
	stored, err := svc.Load(ctx, 2, 10)
	require.NoError(t, err)
	assert.True(t, stored.Equal(NewSet(PermMenuView)))
}

func TestSaveActorOutsideScope(t *testing.T) {
	repo := newMockRepository()
	repo.roles[3] = []Role{RoleBranchManager}
	repo.access[3] = []int64{10}
	repo.setPerms(3, 10, PermStaffPermissions)
	svc := newTestService(repo)

	err := svc.Save(context.Background(), SaveInput{
		ActorID:  3,
		UserID:   2,
		BranchID: 99,
		NewSet:   NewSet(PermOrdersView),
		Snapshot: NewSet(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestSaveActorMissingCapability(t *testing.T) {
	repo := newMockRepository()
	repo.roles[3] = []Role{RoleBranchManager}
	repo.access[3] = []int64{10}
	repo.setPerms(3, 10, PermOrdersView)
	svc := newTestService(repo)

	err := svc.Save(context.Background(), SaveInput{
		ActorID:  3,
		UserID:   2,
		BranchID: 10,
		NewSet:   NewSet(PermOrdersView),
		Snapshot: NewSet(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestSaveBranchManagerWithCapability(t *testing.T) {
	repo := newMockRepository()
	repo.roles[3] = []Role{"manager"}
	repo.access[3] = []int64{10}
	repo.setPerms(3, 10, PermStaffPermissions)
	svc := newTestService(repo)
	ctx := context.Background()

	err := svc.Save(ctx, SaveInput{
		ActorID:  3,
		UserID:   2,
		BranchID: 10,
		NewSet:   NewSet(PermOrdersView),
		Snapshot: NewSet(),
	})
	require.NoError(t, err)

	stored, err := svc.Load(ctx, 2, 10)
	require.NoError(t, err)
	assert.True(t, stored.Has(PermOrdersView))
}

func TestSaveGrantAndRevokeEntries(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	repo.setPerms(2, 10, PermOrdersView, PermOrdersCreate, PermMenuView)
	svc := newTestService(repo)

	snapshot := NewSet(PermOrdersView, PermOrdersCreate, PermMenuView)
	next := NewSet(PermOrdersView, PermOrdersCancel)
	err := svc.Save(context.Background(), SaveInput{
		ActorID: 1, UserID: 2, BranchID: 10, NewSet: next, Snapshot: snapshot,
	})
	require.NoError(t, err)

	require.Len(t, repo.audits, 2)
	grant, revoke := repo.audits[0], repo.audits[1]
	assert.Equal(t, audit.ActionGrant, grant.Action)
	assert.Equal(t, []string{PermOrdersCancel}, grant.Keys)
	assert.Equal(t, audit.ActionBulkRevoke, revoke.Action)
	assert.Equal(t, []string{PermMenuView, PermOrdersCreate}, revoke.Keys)
}

func TestSaveAuditFailureAborts(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	repo.auditError = errors.New("insert failed")
	svc := newTestService(repo)
	ctx := context.Background()

	err := svc.Save(ctx, SaveInput{
		ActorID:  1,
		UserID:   2,
		BranchID: 10,
		NewSet:   NewSet(PermOrdersView),
		Snapshot: NewSet(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuditFailed))

	// The whole transaction rolled back: no permissions, no audit rows.
	stored, err := svc.Load(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, repo.audits)
}

// ============================================================================
// DEFAULTS
// ============================================================================

func TestApplyDefaultsCashierScenario(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	repo.roles[5] = []Role{"employee"}
	svc := newTestService(repo)
	ctx := context.Background()

	// Seeding resolves the legacy alias to the cashier template.
	err := svc.ApplyDefaults(ctx, 1, 5, 10, "")
	require.NoError(t, err)

	stored, err := svc.Load(ctx, 5, 10)
	require.NoError(t, err)
	assert.True(t, stored.Equal(NewSet(PermOrdersView, PermOrdersCreate)))
	assert.Equal(t, 0, svc.CountOverrides(RoleCashier, stored))

	// The admin tailors the set: one extra grant, one revoke.
	next := NewSet(PermOrdersView, PermOrdersCancel)
	err = svc.Save(ctx, SaveInput{ActorID: 1, UserID: 5, BranchID: 10, NewSet: next, Snapshot: stored})
	require.NoError(t, err)

	stored, err = svc.Load(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.CountOverrides(RoleCashier, stored))

	// Re-seeding resets the overrides back to the template.
	err = svc.ApplyDefaults(ctx, 1, 5, 10, RoleCashier)
	require.NoError(t, err)

	stored, err = svc.Load(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, svc.CountOverrides(RoleCashier, stored))
}

func TestApplyDefaultsNoOpWhenAlreadyDefault(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	repo.roles[5] = []Role{RoleCashier}
	svc := newTestService(repo)
	ctx := context.Background()

	require.NoError(t, svc.ApplyDefaults(ctx, 1, 5, 10, RoleCashier))
	calls := repo.replaceCalls
	auditCount := len(repo.audits)

	require.NoError(t, svc.ApplyDefaults(ctx, 1, 5, 10, RoleCashier))
	assert.Equal(t, calls, repo.replaceCalls)
	assert.Len(t, repo.audits, auditCount)
}

func TestApplyDefaultsNoRole(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	svc := newTestService(repo)

	err := svc.ApplyDefaults(context.Background(), 1, 5, 10, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRole))

	err = svc.ApplyDefaults(context.Background(), 1, 5, 10, "superuser")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRole))
}

func TestApplyDefaultsBulk(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	repo.roles[5] = []Role{RoleCashier}
	svc := newTestService(repo)
	ctx := context.Background()

	branches := []int64{10, 11, 12}
	require.NoError(t, svc.ApplyDefaultsBulk(ctx, 1, 5, branches, RoleCashier))

	for _, branchID := range branches {
		stored, err := svc.Load(ctx, 5, branchID)
		require.NoError(t, err)
		assert.True(t, stored.Equal(NewSet(PermOrdersView, PermOrdersCreate)), "branch %d", branchID)
	}
	assert.Len(t, repo.audits, len(branches))
}

func TestApplyDefaultsBulkScopeCheckedUpfront(t *testing.T) {
	repo := newMockRepository()
	repo.roles[3] = []Role{RoleBranchManager}
	repo.access[3] = []int64{10}
	repo.setPerms(3, 10, PermStaffPermissions)
	repo.roles[5] = []Role{RoleCashier}
	svc := newTestService(repo)

	err := svc.ApplyDefaultsBulk(context.Background(), 3, 5, []int64{10, 11}, RoleCashier)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	// One branch out of scope blocks the whole batch.
	assert.Zero(t, repo.replaceCalls)
}

// ============================================================================
// OVERRIDES, SCOPE, IMPERSONATION CAPABILITY
// ============================================================================

func TestCountOverrides(t *testing.T) {
	template, _ := DefaultSet(RoleCashier)
	assert.Equal(t, 0, CountOverrides(RoleCashier, template))

	deviated := NewSet(PermOrdersView, PermOrdersCancel)
	assert.Equal(t, 2, CountOverrides(RoleCashier, deviated))

	// No template: every stored key counts.
	stored := NewSet(PermOrdersView, PermMenuView, PermKDSView)
	assert.Equal(t, 3, CountOverrides("superuser", stored))
}

func TestScopeAllows(t *testing.T) {
	assert.True(t, Scope{BrandWide: true}.Allows(999))
	scoped := Scope{Branches: []int64{10, 11}}
	assert.True(t, scoped.Allows(11))
	assert.False(t, scoped.Allows(12))
	assert.False(t, Scope{}.Allows(10))
}

func TestAllowedBranches(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	repo.roles[2] = []Role{RoleCoordinator, RoleCashier}
	repo.roles[3] = []Role{RoleCashier}
	repo.access[3] = []int64{10, 11}
	svc := newTestService(repo)
	ctx := context.Background()

	scope, err := svc.AllowedBranches(ctx, 1)
	require.NoError(t, err)
	assert.True(t, scope.BrandWide)

	scope, err = svc.AllowedBranches(ctx, 2)
	require.NoError(t, err)
	assert.True(t, scope.BrandWide)

	scope, err = svc.AllowedBranches(ctx, 3)
	require.NoError(t, err)
	assert.False(t, scope.BrandWide)
	assert.Equal(t, []int64{10, 11}, scope.Branches)

	// No roles and no access rows: empty scope, not an error.
	scope, err = svc.AllowedBranches(ctx, 4)
	require.NoError(t, err)
	assert.False(t, scope.BrandWide)
	assert.Empty(t, scope.Branches)
}

func TestCanImpersonate(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	repo.roles[2] = []Role{RoleCoordinator}
	repo.roles[3] = []Role{"manager"}
	svc := newTestService(repo)
	ctx := context.Background()

	ok, err := svc.CanImpersonate(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, userID := range []int64{2, 3, 4} {
		ok, err = svc.CanImpersonate(ctx, userID)
		require.NoError(t, err)
		assert.False(t, ok, "user %d", userID)
	}
}

func TestHighestRoleOf(t *testing.T) {
	repo := newMockRepository()
	repo.roles[7] = []Role{"employee", "manager"}
	svc := newTestService(repo)

	role, ok, err := svc.HighestRoleOf(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RoleBranchManager, role)

	_, ok, err = svc.HighestRoleOf(context.Background(), 8)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveRepositoryErrorPropagates(t *testing.T) {
	repo := newMockRepository()
	repo.roles[1] = []Role{RoleAdmin}
	repo.txError = errors.New("connection reset")
	svc := newTestService(repo)

	err := svc.Save(context.Background(), SaveInput{
		ActorID:  1,
		UserID:   2,
		BranchID: 10,
		NewSet:   NewSet(PermOrdersView),
		Snapshot: NewSet(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.txError)
}
