package authz

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/branchline/branchline/internal/audit"
	"github.com/branchline/branchline/internal/platform/db"
)

// Repository defines persistence for the effective permission store and the
// branch scope resolver.
type Repository interface {
	// WithTx runs fn inside one transaction; the replace and the audit
	// writes share it so concurrent readers never see a half-replaced set.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPermissionKeys(ctx context.Context, userID, branchID int64) ([]string, error)
	ListRoles(ctx context.Context, userID int64) ([]Role, error)
	ListBranchAccess(ctx context.Context, userID int64) ([]int64, error)
}

// TxRepository is the transactional slice of the repository used by the
// replace+audit sequence.
type TxRepository interface {
	audit.EntryWriter
	// LockPermissionKeys reads the current rows for update, serializing
	// concurrent saves for the same (user, branch).
	LockPermissionKeys(ctx context.Context, userID, branchID int64) ([]string, error)
	ReplacePermissions(ctx context.Context, userID, branchID int64, keys []string, grantedBy int64, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// WithTx executes fn within a RepeatableRead transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

// ListPermissionKeys returns the stored effective set for (user, branch).
// No rows is an empty set, not an error.
func (r *PGRepository) ListPermissionKeys(ctx context.Context, userID, branchID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_key FROM user_branch_permissions WHERE user_id = $1 AND branch_id = $2 ORDER BY permission_key`, userID, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ListRoles returns the raw role assignments for a user. Legacy aliases are
// normalized by the caller.
func (r *PGRepository) ListRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, Role(role))
	}
	return roles, rows.Err()
}

// ListBranchAccess returns the branches a user may address.
func (r *PGRepository) ListBranchAccess(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT branch_id FROM user_branch_access WHERE user_id = $1 ORDER BY branch_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var branches []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		branches = append(branches, id)
	}
	return branches, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) LockPermissionKeys(ctx context.Context, userID, branchID int64) ([]string, error) {
	rows, err := r.tx.Query(ctx, `SELECT permission_key FROM user_branch_permissions WHERE user_id = $1 AND branch_id = $2 ORDER BY permission_key FOR UPDATE`, userID, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *pgTxRepository) ReplacePermissions(ctx context.Context, userID, branchID int64, keys []string, grantedBy int64, at time.Time) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM user_branch_permissions WHERE user_id = $1 AND branch_id = $2`, userID, branchID); err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := r.tx.Exec(ctx, `INSERT INTO user_branch_permissions (user_id, branch_id, permission_key, granted_by, granted_at) VALUES ($1, $2, $3, $4, $5)`, userID, branchID, key, grantedBy, at); err != nil {
			return err
		}
	}
	return nil
}

func (r *pgTxRepository) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO permission_audit_logs (actor_id, target_user_id, branch_id, action, permission_keys, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ActorID, entry.TargetUserID, entry.BranchID, string(entry.Action), entry.Keys, entry.At)
	return err
}

var _ Repository = (*PGRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)
