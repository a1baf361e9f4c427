package authz

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/branchline/branchline/internal/audit"
)

// Service is the authorization core: it owns the effective permission store,
// the role-defaults seeder, the override classifier and the branch scope
// resolver. Access decisions read the stored set only; role defaults are a
// template for seeding and reporting.
type Service struct {
	repo    Repository
	catalog *Catalog
	auditor *audit.Logger
	clock   func() time.Time
}

// NewService constructs the Service.
func NewService(repo Repository, catalog *Catalog, auditor *audit.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		auditor: auditor,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock, used by tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Catalog exposes the permission catalogue.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Load returns the authoritative permission set for (user, branch). An empty
// set means no grants, not an error.
func (s *Service) Load(ctx context.Context, userID, branchID int64) (Set, error) {
	keys, err := s.repo.ListPermissionKeys(ctx, userID, branchID)
	if err != nil {
		return nil, err
	}
	return NewSet(keys...), nil
}

// HighestRoleOf resolves the user's highest canonical role. ok is false when
// the user has no known role assignment.
func (s *Service) HighestRoleOf(ctx context.Context, userID int64) (Role, bool, error) {
	roles, err := s.repo.ListRoles(ctx, userID)
	if err != nil {
		return "", false, err
	}
	role, ok := HighestRole(roles)
	return role, ok, nil
}

// SaveInput carries one permission edit. Snapshot must be the set returned by
// the most recent Load for the same pair in the editing session, never the
// role defaults.
type SaveInput struct {
	ActorID  int64
	UserID   int64
	BranchID int64
	NewSet   Set
	Snapshot Set
}

// Save replaces the stored set for (user, branch) with NewSet and records the
// diff against Snapshot. A save with an empty diff writes nothing at all.
func (s *Service) Save(ctx context.Context, input SaveInput) error {
	for key := range input.NewSet {
		if !s.catalog.Has(key) {
			return fmt.Errorf("%w: %s", ErrInvalidKey, key)
		}
	}
	if err := s.authorizeActor(ctx, input.ActorID, input.BranchID); err != nil {
		return err
	}

	granted, revoked := Diff(input.Snapshot, input.NewSet)
	if len(granted) == 0 && len(revoked) == 0 {
		return nil
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockPermissionKeys(ctx, input.UserID, input.BranchID)
		if err != nil {
			return err
		}
		if !NewSet(current...).Equal(input.Snapshot) {
			return ErrConcurrentModification
		}
		return s.replaceLocked(ctx, tx, input.ActorID, input.UserID, input.BranchID, input.NewSet, granted, revoked)
	})
}

// ApplyDefaults replaces the stored set for (user, branch) with the template
// of the given role. An empty role resolves to the user's highest role; if
// there is none the seeder fails with ErrNoRole rather than silently granting
// nothing.
func (s *Service) ApplyDefaults(ctx context.Context, actorID, userID, branchID int64, role Role) error {
	defaults, err := s.resolveDefaults(ctx, userID, role)
	if err != nil {
		return err
	}
	if err := s.authorizeActor(ctx, actorID, branchID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return s.applyDefaultsTx(ctx, tx, actorID, userID, branchID, defaults)
	})
}

// ApplyDefaultsBulk seeds the same role template across several branches,
// one transaction per branch so a failure in one branch does not roll back
// the others.
func (s *Service) ApplyDefaultsBulk(ctx context.Context, actorID, userID int64, branchIDs []int64, role Role) error {
	defaults, err := s.resolveDefaults(ctx, userID, role)
	if err != nil {
		return err
	}
	for _, branchID := range branchIDs {
		if err := s.authorizeActor(ctx, actorID, branchID); err != nil {
			return err
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, branchID := range branchIDs {
		branchID := branchID
		g.Go(func() error {
			return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				return s.applyDefaultsTx(ctx, tx, actorID, userID, branchID, defaults)
			})
		})
	}
	return g.Wait()
}

// CountOverrides counts how far a stored set deviates from the role template.
// Advisory only; access checks never call this.
func (s *Service) CountOverrides(role Role, stored Set) int {
	return CountOverrides(role, stored)
}

// CountOverrides is the pure classifier: the size of the symmetric difference
// between the stored set and the role template. With no template every stored
// key counts as an override.
func CountOverrides(role Role, stored Set) int {
	defaults, ok := DefaultSet(role)
	if !ok {
		return len(stored)
	}
	return SymmetricDifferenceSize(stored, defaults)
}

// Scope describes which branches a user may address.
type Scope struct {
	BrandWide bool
	Branches  []int64
}

// Allows reports whether the scope covers the branch.
func (s Scope) Allows(branchID int64) bool {
	if s.BrandWide {
		return true
	}
	for _, id := range s.Branches {
		if id == branchID {
			return true
		}
	}
	return false
}

// AllowedBranches resolves the user's branch scope. Admins and coordinators
// are brand-wide; everyone else is limited to their access rows.
func (s *Service) AllowedBranches(ctx context.Context, userID int64) (Scope, error) {
	role, ok, err := s.HighestRoleOf(ctx, userID)
	if err != nil {
		return Scope{}, err
	}
	if ok && (role == RoleAdmin || role == RoleCoordinator) {
		return Scope{BrandWide: true}, nil
	}
	branches, err := s.repo.ListBranchAccess(ctx, userID)
	if err != nil {
		return Scope{}, err
	}
	return Scope{Branches: branches}, nil
}

// CanImpersonate reports whether the user holds the impersonation capability.
// It is deliberately not a catalogue permission: only the top of the
// hierarchy qualifies.
func (s *Service) CanImpersonate(ctx context.Context, userID int64) (bool, error) {
	role, ok, err := s.HighestRoleOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return ok && role == RoleAdmin, nil
}

func (s *Service) resolveDefaults(ctx context.Context, userID int64, role Role) (Set, error) {
	if role == "" {
		resolved, ok, err := s.HighestRoleOf(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNoRole
		}
		role = resolved
	}
	defaults, ok := DefaultSet(role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrNoRole, role)
	}
	return defaults, nil
}

// authorizeActor verifies the actor may edit permissions at the branch: the
// branch must be inside the actor's scope, and the actor must hold the
// staff.permissions capability there. Brand-wide scope subsumes the
// per-branch capability check.
func (s *Service) authorizeActor(ctx context.Context, actorID, branchID int64) error {
	scope, err := s.AllowedBranches(ctx, actorID)
	if err != nil {
		return err
	}
	if !scope.Allows(branchID) {
		return fmt.Errorf("%w: branch %d outside actor scope", ErrUnauthorized, branchID)
	}
	if scope.BrandWide {
		return nil
	}
	held, err := s.Load(ctx, actorID, branchID)
	if err != nil {
		return err
	}
	if !held.Has(PermStaffPermissions) {
		return fmt.Errorf("%w: missing %s", ErrUnauthorized, PermStaffPermissions)
	}
	return nil
}

func (s *Service) applyDefaultsTx(ctx context.Context, tx TxRepository, actorID, userID, branchID int64, defaults Set) error {
	current, err := tx.LockPermissionKeys(ctx, userID, branchID)
	if err != nil {
		return err
	}
	snapshot := NewSet(current...)
	granted, revoked := Diff(snapshot, defaults)
	if len(granted) == 0 && len(revoked) == 0 {
		return nil
	}
	return s.replaceLocked(ctx, tx, actorID, userID, branchID, defaults, granted, revoked)
}

// replaceLocked performs the delete+insert+audit sequence. Callers hold the
// row locks for (user, branch).
func (s *Service) replaceLocked(ctx context.Context, tx TxRepository, actorID, userID, branchID int64, newSet Set, granted, revoked []string) error {
	now := s.clock()
	if err := tx.ReplacePermissions(ctx, userID, branchID, newSet.Keys(), actorID, now); err != nil {
		return err
	}
	if err := s.auditor.Record(ctx, tx, actorID, userID, branchID, granted, revoked); err != nil {
		return fmt.Errorf("%w: %w", ErrAuditFailed, err)
	}
	return nil
}
