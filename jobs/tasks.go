package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskImpersonationSweep removes orphaned impersonation state.
	TaskImpersonationSweep = "authz:impersonation_sweep"
	// TaskAuditRetention reports on audit rows past the retention window.
	TaskAuditRetention = "authz:audit_retention"
)

// ImpersonationSweepPayload configures one sweep run.
type ImpersonationSweepPayload struct {
	BatchSize int64 `json:"batch_size"`
}

// NewImpersonationSweepTask constructs an Asynq task.
func NewImpersonationSweepTask(payload ImpersonationSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImpersonationSweep, data), nil
}

// AuditRetentionPayload configures one retention report run.
type AuditRetentionPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAuditRetentionTask constructs an Asynq task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}
