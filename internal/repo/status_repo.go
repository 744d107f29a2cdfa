package repo

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/notedex/notedex/internal/model"
)

const (
	statusKeyPrefix = "rag:status:"
	buildLockPrefix = "rag:build:"
)

// StatusRepo keeps the per-user index status record in redis. The record is
// write-mostly from the pipeline's side and polled by the UI.
type StatusRepo struct {
	client  *redis.Client
	lockTTL time.Duration
}

func NewStatusRepo(client *redis.Client, lockTTL time.Duration) *StatusRepo {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &StatusRepo{client: client, lockTTL: lockTTL}
}

// Get returns the stored status, or a zero not_built status when the user has
// never built an index.
func (r *StatusRepo) Get(ctx context.Context, userID string) (model.IndexStatus, error) {
	val, err := r.client.Get(ctx, statusKeyPrefix+userID).Result()
	if err == redis.Nil {
		return model.IndexStatus{State: model.IndexStateNotBuilt}, nil
	}
	if err != nil {
		return model.IndexStatus{}, err
	}
	var status model.IndexStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return model.IndexStatus{}, err
	}
	return status, nil
}

func (r *StatusRepo) Set(ctx context.Context, userID string, status model.IndexStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, statusKeyPrefix+userID, data, 0).Err()
}

// SetStep updates only the progress marker on the current status record.
func (r *StatusRepo) SetStep(ctx context.Context, userID, step string, details map[string]string) error {
	status, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now()
	status.CurrentStep = &model.StepInfo{
		Step:      step,
		Details:   details,
		Timestamp: now,
	}
	status.LastUpdated = now
	return r.Set(ctx, userID, status)
}

// AcquireBuildLock takes the per-user build token. A second build attempt
// while the token is held observes false. The TTL bounds how long a crashed
// build can block its user.
func (r *StatusRepo) AcquireBuildLock(ctx context.Context, userID string) (bool, error) {
	return r.client.SetNX(ctx, buildLockPrefix+userID, time.Now().Format(time.RFC3339), r.lockTTL).Result()
}

func (r *StatusRepo) ReleaseBuildLock(ctx context.Context, userID string) error {
	return r.client.Del(ctx, buildLockPrefix+userID).Err()
}

// ListBuilding scans for users whose status is still building, for the
// stuck-build reaper.
func (r *StatusRepo) ListBuilding(ctx context.Context) ([]string, error) {
	var users []string
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, statusKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			userID := strings.TrimPrefix(key, statusKeyPrefix)
			status, err := r.Get(ctx, userID)
			if err != nil {
				continue
			}
			if status.State == model.IndexStateBuilding {
				users = append(users, userID)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return users, nil
}
