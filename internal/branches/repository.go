package branches

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/branchline/branchline/internal/shared"
)

// Repository provides branch directory access.
type Repository interface {
	List(ctx context.Context) ([]Branch, error)
	ListByIDs(ctx context.Context, ids []int64) ([]Branch, error)
	Get(ctx context.Context, id int64) (Branch, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Branch, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, address, is_active, created_at, updated_at FROM branches ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBranches(rows)
}

func (r *repository) ListByIDs(ctx context.Context, ids []int64) ([]Branch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, code, name, address, is_active, created_at, updated_at FROM branches WHERE id = ANY($1) ORDER BY code`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBranches(rows)
}

func (r *repository) Get(ctx context.Context, id int64) (Branch, error) {
	var b Branch
	err := r.db.QueryRow(ctx, `SELECT id, code, name, address, is_active, created_at, updated_at FROM branches WHERE id = $1`, id).
		Scan(&b.ID, &b.Code, &b.Name, &b.Address, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Branch{}, shared.ErrNotFound
		}
		return Branch{}, err
	}
	return b, nil
}

func scanBranches(rows pgx.Rows) ([]Branch, error) {
	var branches []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.Address, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}
