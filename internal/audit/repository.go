package audit

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// TimelineWindow returns audit entries newest first, filtered and paged.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	query := `SELECT id, actor_id, target_user_id, branch_id, action, permission_keys, occurred_at FROM permission_audit_logs WHERE 1=1`
	args := []any{}
	argCount := 0

	if !filters.From.IsZero() {
		argCount++
		query += ` AND occurred_at >= $` + strconv.Itoa(argCount)
		args = append(args, filters.From)
	}
	if !filters.To.IsZero() {
		argCount++
		query += ` AND occurred_at <= $` + strconv.Itoa(argCount)
		args = append(args, filters.To)
	}
	if filters.ActorID != 0 {
		argCount++
		query += ` AND actor_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.ActorID)
	}
	if filters.TargetID != 0 {
		argCount++
		query += ` AND target_user_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.TargetID)
	}
	if filters.BranchID != 0 {
		argCount++
		query += ` AND branch_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.BranchID)
	}
	if filters.Action != "" {
		argCount++
		query += ` AND action = $` + strconv.Itoa(argCount)
		args = append(args, filters.Action)
	}

	query += ` ORDER BY occurred_at DESC, id DESC`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var action string
		if err := rows.Scan(&e.ID, &e.ActorID, &e.TargetUserID, &e.BranchID, &action, &e.Keys, &e.At); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
