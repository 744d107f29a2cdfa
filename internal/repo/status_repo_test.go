package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/model"
	"github.com/notedex/notedex/internal/repo"
)

func newStatusRepo(t *testing.T) *repo.StatusRepo {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repo.NewStatusRepo(client, time.Minute)
}

func TestStatusRepoGetUnknownUser(t *testing.T) {
	statuses := newStatusRepo(t)
	got, err := statuses.Get(context.Background(), "nobody")
	require.NoError(t, err)
	require.Equal(t, model.IndexStateNotBuilt, got.State)
	require.Zero(t, got.TotalChunks)
}

func TestStatusRepoSetGetRoundtrip(t *testing.T) {
	statuses := newStatusRepo(t)
	now := time.Now().UTC().Truncate(time.Second)
	status := model.NewBuildingStatus(now).MarkReady(now, 42, 7, 1)

	require.NoError(t, statuses.Set(context.Background(), "u1", status))
	got, err := statuses.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, model.IndexStateReady, got.State)
	require.Equal(t, 42, got.TotalChunks)
	require.Equal(t, 7, got.TotalPages)
	require.Equal(t, 1, got.FailedEmbeddings)
	require.NotNil(t, got.CompletedAt)
}

func TestStatusRepoSetStep(t *testing.T) {
	statuses := newStatusRepo(t)
	now := time.Now()
	require.NoError(t, statuses.Set(context.Background(), "u1", model.NewBuildingStatus(now)))
	require.NoError(t, statuses.SetStep(context.Background(), "u1", "embedding_progress", map[string]string{"completed": "10"}))

	got, err := statuses.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, got.CurrentStep)
	require.Equal(t, "embedding_progress", got.CurrentStep.Step)
	require.Equal(t, "10", got.CurrentStep.Details["completed"])
	require.Equal(t, model.IndexStateBuilding, got.State)
}

func TestStatusRepoBuildLock(t *testing.T) {
	statuses := newStatusRepo(t)
	ctx := context.Background()

	acquired, err := statuses.AcquireBuildLock(ctx, "u1")
	require.NoError(t, err)
	require.True(t, acquired)

	again, err := statuses.AcquireBuildLock(ctx, "u1")
	require.NoError(t, err)
	require.False(t, again)

	// another user is unaffected
	other, err := statuses.AcquireBuildLock(ctx, "u2")
	require.NoError(t, err)
	require.True(t, other)

	require.NoError(t, statuses.ReleaseBuildLock(ctx, "u1"))
	retry, err := statuses.AcquireBuildLock(ctx, "u1")
	require.NoError(t, err)
	require.True(t, retry)
}

func TestStatusRepoListBuilding(t *testing.T) {
	statuses := newStatusRepo(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, statuses.Set(ctx, "builder", model.NewBuildingStatus(now)))
	require.NoError(t, statuses.Set(ctx, "done", model.NewBuildingStatus(now).MarkReady(now, 1, 1, 0)))
	require.NoError(t, statuses.Set(ctx, "broken", model.NewBuildingStatus(now).MarkError(now, "boom")))

	users, err := statuses.ListBuilding(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"builder"}, users)
}
