package audit

import "time"

// Action describes what a permission audit entry records.
type Action string

const (
	ActionGrant      Action = "grant"
	ActionRevoke     Action = "revoke"
	ActionBulkGrant  Action = "bulk_grant"
	ActionBulkRevoke Action = "bulk_revoke"
)

// Entry represents one immutable row in permission_audit_logs.
type Entry struct {
	ID           int64
	ActorID      int64
	TargetUserID int64
	BranchID     int64
	Action       Action
	Keys         []string
	At           time.Time
}
