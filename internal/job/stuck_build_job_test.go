package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/model"
)

type memStatusStore struct {
	statuses map[string]model.IndexStatus
	released []string
}

func newMemStatusStore() *memStatusStore {
	return &memStatusStore{statuses: make(map[string]model.IndexStatus)}
}

func (m *memStatusStore) Get(ctx context.Context, userID string) (model.IndexStatus, error) {
	return m.statuses[userID], nil
}

func (m *memStatusStore) Set(ctx context.Context, userID string, status model.IndexStatus) error {
	m.statuses[userID] = status
	return nil
}

func (m *memStatusStore) ReleaseBuildLock(ctx context.Context, userID string) error {
	m.released = append(m.released, userID)
	return nil
}

func (m *memStatusStore) ListBuilding(ctx context.Context) ([]string, error) {
	var users []string
	for userID, status := range m.statuses {
		if status.State == model.IndexStateBuilding {
			users = append(users, userID)
		}
	}
	return users, nil
}

func TestStuckBuildJobReapsOldBuilds(t *testing.T) {
	now := time.Now()
	store := newMemStatusStore()
	store.statuses["stale"] = model.NewBuildingStatus(now.Add(-2 * time.Hour))
	store.statuses["fresh"] = model.NewBuildingStatus(now.Add(-5 * time.Minute))

	reaper := NewStuckBuildJob(store, time.Hour)
	reaper.nowFunc = func() time.Time { return now }

	require.NoError(t, reaper.Run(context.Background()))

	require.Equal(t, model.IndexStateError, store.statuses["stale"].State)
	require.NotEmpty(t, store.statuses["stale"].LastError)
	require.Equal(t, []string{"stale"}, store.released)
	require.Equal(t, model.IndexStateBuilding, store.statuses["fresh"].State)
}

func TestStuckBuildJobIgnoresTerminalStates(t *testing.T) {
	now := time.Now()
	store := newMemStatusStore()
	old := now.Add(-3 * time.Hour)
	store.statuses["done"] = model.NewBuildingStatus(old).MarkReady(old, 1, 1, 0)

	reaper := NewStuckBuildJob(store, time.Hour)
	reaper.nowFunc = func() time.Time { return now }

	require.NoError(t, reaper.Run(context.Background()))
	require.Equal(t, model.IndexStateReady, store.statuses["done"].State)
	require.Empty(t, store.released)
}
