package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/branchline/branchline/internal/impersonate"
)

// ImpersonationSweepJob deletes impersonation state whose owner no longer
// has a live login session. Redis TTL already expires idle sessions; the
// sweep catches actors whose login ended before the TTL ran out.
type ImpersonationSweepJob struct {
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Logger *slog.Logger
	clock  func() time.Time
}

// NewImpersonationSweepJob initialises the sweep handler.
func NewImpersonationSweepJob(pool *pgxpool.Pool, client *redis.Client, logger *slog.Logger) *ImpersonationSweepJob {
	return &ImpersonationSweepJob{
		Pool:   pool,
		Redis:  client,
		Logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the sweep.
func (j *ImpersonationSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil || j.Redis == nil {
		return errors.New("impersonation sweep: handler not configured")
	}
	var payload ImpersonationSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 100
	}

	logger := j.logger()
	start := j.clock()
	scanned, removed := 0, 0

	iter := j.Redis.Scan(ctx, 0, impersonate.KeyPrefix+"*", payload.BatchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		scanned++
		actorID, err := strconv.ParseInt(strings.TrimPrefix(key, impersonate.KeyPrefix), 10, 64)
		if err != nil {
			logger.Warn("skip malformed impersonation key", slog.String("key", key))
			continue
		}
		var live bool
		if err := j.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE user_id = $1 AND expires_at > $2)`, actorID, start).Scan(&live); err != nil {
			return err
		}
		if live {
			continue
		}
		if err := j.Redis.Del(ctx, key).Err(); err != nil {
			return err
		}
		removed++
		logger.Info("removed orphaned impersonation state", slog.Int64("actor_id", actorID))
	}
	if err := iter.Err(); err != nil {
		return err
	}

	logger.Info("completed impersonation sweep",
		slog.Int("scanned", scanned),
		slog.Int("removed", removed),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ImpersonationSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
