package branches

import (
	"context"
	"errors"

	"github.com/branchline/branchline/internal/authz"
)

// ScopeResolver narrows the branch list down to what a user may address.
type ScopeResolver interface {
	AllowedBranches(ctx context.Context, userID int64) (authz.Scope, error)
}

// Service handles branch directory logic.
type Service struct {
	repo  Repository
	scope ScopeResolver
}

// NewService builds Service instance.
func NewService(repo Repository, scope ScopeResolver) *Service {
	return &Service{repo: repo, scope: scope}
}

// List returns every branch.
func (s *Service) List(ctx context.Context) ([]Branch, error) {
	return s.repo.List(ctx)
}

// Get fetches a branch by ID.
func (s *Service) Get(ctx context.Context, id int64) (Branch, error) {
	if id <= 0 {
		return Branch{}, errors.New("invalid branch ID")
	}
	return s.repo.Get(ctx, id)
}

// ListForUser returns the branches inside the user's scope. Brand-wide users
// see every branch.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Branch, error) {
	scope, err := s.scope.AllowedBranches(ctx, userID)
	if err != nil {
		return nil, err
	}
	if scope.BrandWide {
		return s.repo.List(ctx)
	}
	return s.repo.ListByIDs(ctx, scope.Branches)
}
