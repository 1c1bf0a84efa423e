package db_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumsystem/nft-bbs-sub001/db"
	"github.com/rumsystem/nft-bbs-sub001/models"
)

func newStore(t *testing.T) (*db.Store, *db.Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, db.Migrate(path))

	store, err := db.NewStore(path)
	require.NoError(t, err)
	reader := db.NewReader(path)
	t.Cleanup(func() {
		reader.Close()
		store.Close()
	})
	return store, reader
}

func TestUpsertGroupKeepsLoaded(t *testing.T) {
	store, reader := newStore(t)

	require.NoError(t, store.UpsertGroup(models.Group{ID: "g1", Name: "First"}))
	require.NoError(t, store.SetGroupLoaded("g1", true))

	// Re-registering from configuration must not reset the loaded flag
	require.NoError(t, store.UpsertGroup(models.Group{ID: "g1", Name: "Renamed"}))

	loaded, err := store.GetGroupLoaded("g1")
	require.NoError(t, err)
	assert.True(t, loaded)

	groups, err := reader.ListGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Renamed", groups[0].Name)
}

func TestGetGroupLoadedUnknownGroup(t *testing.T) {
	store, _ := newStore(t)

	loaded, err := store.GetGroupLoaded("nope")
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestCursorRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.UpsertGroup(models.Group{ID: "g1"}))

	_, ok, err := store.GetCursor("g1", "main")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.AdvanceCursor("g1", "main", "trx-001"))
	position, ok, err := store.GetCursor("g1", "main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "trx-001", position)

	require.NoError(t, store.AdvanceCursor("g1", "main", "trx-002"))
	position, _, err = store.GetCursor("g1", "main")
	require.NoError(t, err)
	assert.Equal(t, "trx-002", position)

	// Cursors are keyed per merged feed-role group
	_, ok, err = store.GetCursor("g1", "comment")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store, reader := newStore(t)
	require.NoError(t, store.UpsertGroup(models.Group{ID: "g1"}))

	failure := errors.New("handler failure")
	err := store.WithTx(context.Background(), func(tx *db.Tx) error {
		require.NoError(t, tx.InsertPost(models.Post{
			ID: "p1", GroupID: "g1", TrxID: "trx-001",
			Title: "t", Content: "c", Author: "alice", Timestamp: time.Now(),
		}))
		return failure
	})
	assert.ErrorIs(t, err, failure)

	post, err := reader.GetPost("g1", "p1")
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestMarkNotificationsReadScopedToRecipient(t *testing.T) {
	store, reader := newStore(t)
	require.NoError(t, store.UpsertGroup(models.Group{ID: "g1"}))

	insert := func(recipient string) {
		err := store.WithTx(context.Background(), func(tx *db.Tx) error {
			_, err := tx.InsertNotification(models.Notification{
				GroupID: "g1", Recipient: recipient, Sender: "bob",
				Type: models.NotificationTypeComment, ObjectID: "p1",
				ObjectType: models.ObjectTypePost, ActionID: "c1",
				Status: models.NotificationStatusUnread, Timestamp: time.Now(),
			})
			return err
		})
		require.NoError(t, err)
	}
	insert("alice")
	insert("carol")

	require.NoError(t, store.MarkNotificationsRead("g1", "alice"))

	forAlice, err := reader.ListNotifications("g1", "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, forAlice, 1)
	assert.Equal(t, models.NotificationStatusRead, forAlice[0].Status)

	forCarol, err := reader.ListNotifications("g1", "carol", 10, 0)
	require.NoError(t, err)
	require.Len(t, forCarol, 1)
	assert.Equal(t, models.NotificationStatusUnread, forCarol[0].Status)
}

func TestListPostsOrdering(t *testing.T) {
	store, reader := newStore(t)
	require.NoError(t, store.UpsertGroup(models.Group{ID: "g1"}))

	base := time.Unix(1700000000, 0)
	err := store.WithTx(context.Background(), func(tx *db.Tx) error {
		for i, id := range []string{"p1", "p2", "p3"} {
			if err := tx.InsertPost(models.Post{
				ID: id, GroupID: "g1", TrxID: "trx-" + id,
				Title: id, Content: "c", Author: "alice",
				Timestamp: base.Add(time.Duration(i) * time.Minute),
			}); err != nil {
				return err
			}
		}
		// Give the oldest post the highest hot score
		if err := tx.SetPostReactionCounts("g1", "p1", 5, 0); err != nil {
			return err
		}
		return tx.RecomputePostHot("g1", "p1")
	})
	require.NoError(t, err)

	byTime, err := reader.ListPosts("g1", "time", 10, 0)
	require.NoError(t, err)
	require.Len(t, byTime, 3)
	assert.Equal(t, "p3", byTime[0].ID)

	byHot, err := reader.ListPosts("g1", "hot", 10, 0)
	require.NoError(t, err)
	require.Len(t, byHot, 3)
	assert.Equal(t, "p1", byHot[0].ID)
	assert.EqualValues(t, 10, byHot[0].Hot)

	// Pagination
	page, err := reader.ListPosts("g1", "time", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p1", page[0].ID)
}
