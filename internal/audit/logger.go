package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// EntryWriter persists audit entries. Implementations are expected to run
// inside the caller's transaction so a failed write aborts the whole change.
type EntryWriter interface {
	InsertAuditEntry(ctx context.Context, entry Entry) error
}

// Logger menulis entri audit untuk setiap perubahan set permission.
type Logger struct {
	clock func() time.Time
}

// NewLogger membuat Logger baru dengan clock default UTC.
func NewLogger() *Logger {
	return &Logger{clock: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the clock, used by tests.
func (l *Logger) WithClock(clock func() time.Time) *Logger {
	l.clock = clock
	return l
}

// Record menulis maksimal dua entri: satu batch grant dan satu batch revoke.
// Set kosong tidak menghasilkan entri. Kegagalan menulis dikembalikan apa
// adanya agar transaksi pemanggil dibatalkan (fail-closed).
func (l *Logger) Record(ctx context.Context, w EntryWriter, actorID, targetUserID, branchID int64, granted, revoked []string) error {
	if l == nil {
		return errors.New("audit: logger not initialised")
	}
	if w == nil {
		return errors.New("audit: entry writer required")
	}
	now := l.clock()
	if len(granted) > 0 {
		entry := Entry{
			ActorID:      actorID,
			TargetUserID: targetUserID,
			BranchID:     branchID,
			Action:       actionFor(ActionGrant, ActionBulkGrant, len(granted)),
			Keys:         sortedCopy(granted),
			At:           now,
		}
		if err := w.InsertAuditEntry(ctx, entry); err != nil {
			return fmt.Errorf("audit: record grant: %w", err)
		}
	}
	if len(revoked) > 0 {
		entry := Entry{
			ActorID:      actorID,
			TargetUserID: targetUserID,
			BranchID:     branchID,
			Action:       actionFor(ActionRevoke, ActionBulkRevoke, len(revoked)),
			Keys:         sortedCopy(revoked),
			At:           now,
		}
		if err := w.InsertAuditEntry(ctx, entry); err != nil {
			return fmt.Errorf("audit: record revoke: %w", err)
		}
	}
	return nil
}

func actionFor(single, bulk Action, n int) Action {
	if n > 1 {
		return bulk
	}
	return single
}

func sortedCopy(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	return out
}
