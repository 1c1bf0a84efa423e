package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"

	"github.com/rumsystem/nft-bbs-sub001/models"
)

// Store owns the writer connection to the projection database. All record
// mutations go through WithTx so one chain record maps to exactly one
// transaction.
type Store struct {
	db *sql.DB
}

func NewStore(database string) (*Store, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is the transactional handle passed into content handlers. Handlers only
// observe and mutate projection state through it.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a single database transaction. The transaction is
// rolled back if fn returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Tx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("Error rolling back transaction", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Groups

// UpsertGroup registers a group from configuration. The persisted loaded
// flag of an existing group is kept so a restarted process stays live.
func (s *Store) UpsertGroup(group models.Group) error {
	_, err := s.db.Exec(`
		INSERT INTO groups (id, name, loaded)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		group.ID, group.Name, group.Loaded,
	)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

func (s *Store) GetGroupLoaded(groupID string) (bool, error) {
	var loaded bool
	err := s.db.QueryRow("SELECT loaded FROM groups WHERE id = ?", groupID).Scan(&loaded)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query group: %w", err)
	}
	return loaded, nil
}

func (s *Store) SetGroupLoaded(groupID string, loaded bool) error {
	_, err := s.db.Exec("UPDATE groups SET loaded = ? WHERE id = ?", loaded, groupID)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// Cursors

// GetCursor returns the persisted position for a merged feed-role group, or
// ok=false when the feed has never been polled.
func (s *Store) GetCursor(groupID string, roleKey string) (string, bool, error) {
	var position string
	err := s.db.QueryRow(
		"SELECT position FROM cursors WHERE group_id = ? AND role_key = ?",
		groupID, roleKey,
	).Scan(&position)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query cursor: %w", err)
	}
	return position, true, nil
}

// AdvanceCursor records the position of the last successfully committed
// record. Only the scheduler calls this, strictly after the record's
// transaction has committed.
func (s *Store) AdvanceCursor(groupID string, roleKey string, position string) error {
	_, err := s.db.Exec(`
		INSERT INTO cursors (group_id, role_key, position)
		VALUES (?, ?, ?)
		ON CONFLICT (group_id, role_key) DO UPDATE SET position = excluded.position`,
		groupID, roleKey, position,
	)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}

// MarkNotificationsRead marks all of a recipient's notifications read.
func (s *Store) MarkNotificationsRead(groupID string, recipient string) error {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("notifications").
		Set(ub.Assign("status", models.NotificationStatusRead)).
		Where(
			ub.Equal("group_id", groupID),
			ub.Equal("recipient", recipient),
			ub.Equal("status", models.NotificationStatusUnread),
		)
	query, args := ub.Build()
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// Posts

func (t *Tx) GetPost(groupID string, id string) (*models.Post, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(
		"id", "group_id", "trx_id", "title", "content", "author", "timestamp",
		"comment_count", "non_author_comment_count", "like_count", "dislike_count", "hot",
	).From("posts").Where(sb.Equal("group_id", groupID), sb.Equal("id", id))
	query, args := sb.Build()

	var post models.Post
	var ts int64
	err := t.tx.QueryRow(query, args...).Scan(
		&post.ID, &post.GroupID, &post.TrxID, &post.Title, &post.Content,
		&post.Author, &ts, &post.CommentCount, &post.NonAuthorCommentCount,
		&post.LikeCount, &post.DislikeCount, &post.Hot,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}
	post.Timestamp = time.Unix(ts, 0)
	return &post, nil
}

func (t *Tx) InsertPost(post models.Post) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("posts").
		Cols("id", "group_id", "trx_id", "title", "content", "author", "timestamp").
		Values(post.ID, post.GroupID, post.TrxID, post.Title, post.Content, post.Author, post.Timestamp.Unix())
	query, args := ib.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (t *Tx) UpdatePostContent(groupID string, id string, title string, content string) error {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("posts").
		Set(ub.Assign("title", title), ub.Assign("content", content)).
		Where(ub.Equal("group_id", groupID), ub.Equal("id", id))
	query, args := ub.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

func (t *Tx) DeletePost(groupID string, id string) error {
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom("posts").Where(del.Equal("group_id", groupID), del.Equal("id", id))
	query, args := del.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// BumpPostCommentCounts increments comment_count and, when the commenter is
// not the post author, non_author_comment_count.
func (t *Tx) BumpPostCommentCounts(groupID string, id string, nonAuthor bool) error {
	query := "UPDATE posts SET comment_count = comment_count + 1 WHERE group_id = ? AND id = ?"
	if nonAuthor {
		query = `UPDATE posts SET comment_count = comment_count + 1,
			non_author_comment_count = non_author_comment_count + 1
			WHERE group_id = ? AND id = ?`
	}
	if _, err := t.tx.Exec(query, groupID, id); err != nil {
		return fmt.Errorf("bump post comment counts: %w", err)
	}
	return nil
}

// SetPostReactionCounts stores the ledger-derived like/dislike counts.
func (t *Tx) SetPostReactionCounts(groupID string, id string, likeCount, dislikeCount int64) error {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("posts").
		Set(ub.Assign("like_count", likeCount), ub.Assign("dislike_count", dislikeCount)).
		Where(ub.Equal("group_id", groupID), ub.Equal("id", id))
	query, args := ub.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("set post reaction counts: %w", err)
	}
	return nil
}

// RecomputePostHot refreshes the hot score from the stored counters.
func (t *Tx) RecomputePostHot(groupID string, id string) error {
	_, err := t.tx.Exec(`
		UPDATE posts
		SET hot = like_count * 2 + non_author_comment_count - dislike_count * 2
		WHERE group_id = ? AND id = ?`,
		groupID, id,
	)
	if err != nil {
		return fmt.Errorf("recompute hot score: %w", err)
	}
	return nil
}

func (t *Tx) InsertPostHistory(history models.PostHistory) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("post_histories").
		Cols("group_id", "post_id", "trx_id", "title", "content", "author", "timestamp", "deleted_by", "deleted_at").
		Values(
			history.GroupID, history.PostID, history.TrxID, history.Title, history.Content,
			history.Author, history.Timestamp.Unix(), history.DeletedBy, history.DeletedAt.Unix(),
		)
	query, args := ib.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("insert post history: %w", err)
	}
	return nil
}

// Comments

func (t *Tx) GetComment(groupID string, id string) (*models.Comment, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(
		"id", "group_id", "trx_id", "content", "post_id", "thread_id", "reply_id",
		"author", "timestamp", "comment_count", "like_count", "dislike_count",
	).From("comments").Where(sb.Equal("group_id", groupID), sb.Equal("id", id))
	query, args := sb.Build()

	var comment models.Comment
	var ts int64
	err := t.tx.QueryRow(query, args...).Scan(
		&comment.ID, &comment.GroupID, &comment.TrxID, &comment.Content,
		&comment.PostID, &comment.ThreadID, &comment.ReplyID, &comment.Author,
		&ts, &comment.CommentCount, &comment.LikeCount, &comment.DislikeCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query comment: %w", err)
	}
	comment.Timestamp = time.Unix(ts, 0)
	return &comment, nil
}

func (t *Tx) InsertComment(comment models.Comment) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("comments").
		Cols("id", "group_id", "trx_id", "content", "post_id", "thread_id", "reply_id", "author", "timestamp").
		Values(
			comment.ID, comment.GroupID, comment.TrxID, comment.Content, comment.PostID,
			comment.ThreadID, comment.ReplyID, comment.Author, comment.Timestamp.Unix(),
		)
	query, args := ib.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// BumpCommentCount increments a thread root's reply counter.
func (t *Tx) BumpCommentCount(groupID string, id string) error {
	_, err := t.tx.Exec(
		"UPDATE comments SET comment_count = comment_count + 1 WHERE group_id = ? AND id = ?",
		groupID, id,
	)
	if err != nil {
		return fmt.Errorf("bump comment count: %w", err)
	}
	return nil
}

func (t *Tx) SetCommentReactionCounts(groupID string, id string, likeCount, dislikeCount int64) error {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("comments").
		Set(ub.Assign("like_count", likeCount), ub.Assign("dislike_count", dislikeCount)).
		Where(ub.Equal("group_id", groupID), ub.Equal("id", id))
	query, args := ub.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("set comment reaction counts: %w", err)
	}
	return nil
}

// Stacked counters (reaction ledger)

func (t *Tx) HasCounter(counter models.StackedCounter) (bool, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("1").From("stacked_counters").Where(
		sb.Equal("group_id", counter.GroupID),
		sb.Equal("object_id", counter.ObjectID),
		sb.Equal("object_type", counter.ObjectType),
		sb.Equal("name", counter.Name),
		sb.Equal("author", counter.Author),
	)
	query, args := sb.Build()

	var one int
	err := t.tx.QueryRow(query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query counter: %w", err)
	}
	return true, nil
}

func (t *Tx) InsertCounter(counter models.StackedCounter) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("stacked_counters").
		Cols("group_id", "object_id", "object_type", "name", "author").
		Values(counter.GroupID, counter.ObjectID, counter.ObjectType, counter.Name, counter.Author)
	query, args := ib.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("insert counter: %w", err)
	}
	return nil
}

func (t *Tx) DeleteCounter(counter models.StackedCounter) error {
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom("stacked_counters").Where(
		del.Equal("group_id", counter.GroupID),
		del.Equal("object_id", counter.ObjectID),
		del.Equal("object_type", counter.ObjectType),
		del.Equal("name", counter.Name),
		del.Equal("author", counter.Author),
	)
	query, args := del.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("delete counter: %w", err)
	}
	return nil
}

// CountCounters derives an object's reaction count from the ledger.
func (t *Tx) CountCounters(groupID, objectID, objectType, name string) (int64, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("count(*)").From("stacked_counters").Where(
		sb.Equal("group_id", groupID),
		sb.Equal("object_id", objectID),
		sb.Equal("object_type", objectType),
		sb.Equal("name", name),
	)
	query, args := sb.Build()

	var count int64
	if err := t.tx.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count counters: %w", err)
	}
	return count, nil
}

// DeleteCountersForObject removes all ledger rows referencing an object.
func (t *Tx) DeleteCountersForObject(groupID string, objectID string) error {
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom("stacked_counters").Where(
		del.Equal("group_id", groupID),
		del.Equal("object_id", objectID),
	)
	query, args := del.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("delete counters: %w", err)
	}
	return nil
}

// Profiles

func (t *Tx) InsertProfile(profile models.Profile) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("profiles").
		Cols("group_id", "trx_id", "author", "name", "avatar", "intro", "timestamp").
		Values(
			profile.GroupID, profile.TrxID, profile.Author, profile.Name,
			profile.Avatar, profile.Intro, profile.Timestamp.Unix(),
		)
	query, args := ib.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// Images

func (t *Tx) HasImage(groupID string, id string) (bool, error) {
	var one int
	err := t.tx.QueryRow("SELECT 1 FROM image_files WHERE group_id = ? AND id = ?", groupID, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query image: %w", err)
	}
	return true, nil
}

func (t *Tx) InsertImage(image models.ImageFile) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("image_files").
		Cols("id", "group_id", "trx_id", "mime_type", "content", "author", "timestamp").
		Values(
			image.ID, image.GroupID, image.TrxID, image.MimeType,
			image.Content, image.Author, image.Timestamp.Unix(),
		)
	query, args := ib.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// Post appends

func (t *Tx) HasPostAppend(groupID string, id string) (bool, error) {
	var one int
	err := t.tx.QueryRow("SELECT 1 FROM post_appends WHERE group_id = ? AND id = ?", groupID, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query post append: %w", err)
	}
	return true, nil
}

func (t *Tx) InsertPostAppend(a models.PostAppend) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("post_appends").
		Cols("id", "group_id", "trx_id", "post_id", "content", "author", "timestamp").
		Values(a.ID, a.GroupID, a.TrxID, a.PostID, a.Content, a.Author, a.Timestamp.Unix())
	query, args := ib.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("insert post append: %w", err)
	}
	return nil
}

// Notifications

func (t *Tx) InsertNotification(n models.Notification) (int64, error) {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("notifications").
		Cols("group_id", "recipient", "sender", "type", "object_id", "object_type", "action_id", "status", "timestamp").
		Values(
			n.GroupID, n.Recipient, n.Sender, n.Type, n.ObjectID,
			n.ObjectType, n.ActionID, n.Status, n.Timestamp.Unix(),
		)
	query, args := ib.Build()
	res, err := t.tx.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("notification id: %w", err)
	}
	return id, nil
}

// DeleteNotificationsForObject removes notifications targeting an object.
func (t *Tx) DeleteNotificationsForObject(groupID string, objectID string) error {
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom("notifications").Where(
		del.Equal("group_id", groupID),
		del.Equal("object_id", objectID),
	)
	query, args := del.Build()
	if _, err := t.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}
