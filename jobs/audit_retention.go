package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRetentionJob reports how much of the permission audit log sits past
// the retention window. The log is append-only; nothing is deleted here, the
// numbers feed the operator's archival decision.
type AuditRetentionJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewAuditRetentionJob initialises the retention report handler.
func NewAuditRetentionJob(pool *pgxpool.Pool, logger *slog.Logger) *AuditRetentionJob {
	return &AuditRetentionJob{
		Pool:   pool,
		Logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the retention report.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = 365
	}

	cutoff := j.clock().AddDate(0, 0, -payload.RetentionDays)
	var total, aged int64
	if err := j.Pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE occurred_at < $1) FROM permission_audit_logs`, cutoff).Scan(&total, &aged); err != nil {
		return err
	}

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("audit retention report",
		slog.Int64("total_entries", total),
		slog.Int64("past_retention", aged),
		slog.Time("cutoff", cutoff),
	)
	return nil
}
