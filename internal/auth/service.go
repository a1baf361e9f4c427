package auth

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/branchline/branchline/internal/shared"
)

// Credentials carry one login attempt.
type Credentials struct {
	Email    string
	Password string
}

// LoginRecord is the session metadata persisted alongside a login so the
// trail survives the redis session TTL.
type LoginRecord struct {
	SessionID string
	UserID    int64
	ExpiresAt time.Time
	IP        string
	UserAgent string
}

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates credentials against the stored bcrypt hash. Lookup
// misses, disabled accounts and hash mismatches all collapse into
// shared.ErrInvalidCredentials so responses never leak which check failed.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RecordLogin persists the session row for an authenticated user.
func (s *Service) RecordLogin(ctx context.Context, rec LoginRecord) error {
	return s.repo.CreateSession(ctx, rec.SessionID, rec.UserID, rec.ExpiresAt, rec.IP, rec.UserAgent)
}

// Logout removes the session row.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.repo.DeleteSession(ctx, sessionID)
}
