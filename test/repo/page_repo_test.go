package repo_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/repo"
	"github.com/notedex/notedex/test/testutil"
)

func seedPage(t *testing.T, db *sql.DB, userID, pageID, name, content string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO pages (id, owner, name, content) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, content = EXCLUDED.content`,
		pageID, userID, name, content)
	require.NoError(t, err)
}

func seedIndexEntry(t *testing.T, db *sql.DB, userID, pageID, name, topicID string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO page_index (user_id, page_id, name, notebook_id, section_id, topic_id)
		VALUES ($1, $2, $3, '', '', $4)
		ON CONFLICT (user_id, page_id) DO UPDATE SET name = EXCLUDED.name, topic_id = EXCLUDED.topic_id`,
		userID, pageID, name, topicID)
	require.NoError(t, err)
}

func cleanupUser(db *sql.DB, userID string) {
	_, _ = db.Exec(`DELETE FROM page_index WHERE user_id = $1`, userID)
	_, _ = db.Exec(`DELETE FROM pages WHERE owner = $1`, userID)
}

func TestPageRepoIndexAndFetch(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	pages := repo.NewPageRepo(db, 50)
	userID := testUser("pages")
	defer cleanupUser(db, userID)

	seedPage(t, db, userID, userID+"-p1", "France", "Paris is the capital of France.")
	seedPage(t, db, userID, userID+"-p2", "Italy", "Rome is the capital of Italy.")
	seedIndexEntry(t, db, userID, userID+"-p1", "France", "geo")
	seedIndexEntry(t, db, userID, userID+"-p2", "Italy", "geo")
	// index entry whose page row is gone
	seedIndexEntry(t, db, userID, userID+"-p3", "Deleted", "geo")

	index, err := pages.PageIndex(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, index, 3)
	require.Equal(t, "geo", index[userID+"-p1"].TopicID)

	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	fetched, err := pages.GetPagesByIDs(context.Background(), userID, ids)
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	byID := map[string]string{}
	for _, page := range fetched {
		byID[page.ID] = page.Content
	}
	require.Contains(t, byID[userID+"-p1"], "Paris")
	require.Contains(t, byID[userID+"-p2"], "Rome")
}

func TestPageRepoScopedToOwner(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	pages := repo.NewPageRepo(db, 50)
	alice := testUser("alice")
	bob := testUser("bob")
	defer cleanupUser(db, alice)
	defer cleanupUser(db, bob)

	seedPage(t, db, alice, alice+"-p1", "Private", "alice's note")
	seedIndexEntry(t, db, alice, alice+"-p1", "Private", "")

	index, err := pages.PageIndex(context.Background(), bob)
	require.NoError(t, err)
	require.Empty(t, index)

	fetched, err := pages.GetPagesByIDs(context.Background(), bob, []string{alice + "-p1"})
	require.NoError(t, err)
	require.Empty(t, fetched)
}
