package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notedex/notedex/internal/model"
)

type statusStore interface {
	Get(ctx context.Context, userID string) (model.IndexStatus, error)
	Set(ctx context.Context, userID string, status model.IndexStatus) error
	ReleaseBuildLock(ctx context.Context, userID string) error
	ListBuilding(ctx context.Context) ([]string, error)
}

// StuckBuildJob marks builds that have been in the building state for too
// long as failed. A build gets stuck when its process dies between acquiring
// the lock and writing a terminal status.
type StuckBuildJob struct {
	status   statusStore
	maxAge   time.Duration
	nowFunc  func() time.Time
}

func NewStuckBuildJob(status statusStore, maxAge time.Duration) *StuckBuildJob {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &StuckBuildJob{status: status, maxAge: maxAge, nowFunc: time.Now}
}

func (j *StuckBuildJob) Name() string {
	return "stuck_build_reaper"
}

func (j *StuckBuildJob) Run(ctx context.Context) error {
	users, err := j.status.ListBuilding(ctx)
	if err != nil {
		return err
	}
	now := j.nowFunc()
	logger := logutil.GetLogger(ctx)
	for _, userID := range users {
		status, err := j.status.Get(ctx, userID)
		if err != nil {
			logger.Error("read build status failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if status.State != model.IndexStateBuilding || status.StartedAt == nil {
			continue
		}
		age := now.Sub(*status.StartedAt)
		if age < j.maxAge {
			continue
		}
		next := status.MarkError(now, "build abandoned: no progress for "+age.Truncate(time.Minute).String())
		if err := j.status.Set(ctx, userID, next); err != nil {
			logger.Error("mark stuck build failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if err := j.status.ReleaseBuildLock(ctx, userID); err != nil {
			logger.Error("release stuck build lock failed", zap.String("user_id", userID), zap.Error(err))
		}
		logger.Warn("reaped stuck build",
			zap.String("user_id", userID),
			zap.Duration("age", age))
	}
	return nil
}
