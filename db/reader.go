package db

import (
	"database/sql"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"

	"github.com/rumsystem/nft-bbs-sub001/models"
)

// Reader serves the HTTP read API from its own read-only connection pool, so
// queries never contend with the single ingestion writer.
type Reader struct {
	db *sql.DB
}

func NewReader(database string) *Reader {
	// Open in read-only mode with optimized settings
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?mode=ro&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", database))
	if err != nil {
		panic("failed to connect database")
	}

	// Set connection pool settings for reader
	db.SetMaxOpenConns(4)            // Allow multiple concurrent readers
	db.SetMaxIdleConns(2)            // Keep some connections ready
	db.SetConnMaxLifetime(time.Hour) // Recreate connections after an hour
	db.SetConnMaxIdleTime(time.Hour) // Close idle connections after an hour

	// Configure additional pragmas for better read performance
	if _, err := db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA synchronous = NORMAL;
		PRAGMA cache_size = -32000; -- 32MB cache
		PRAGMA temp_store = MEMORY;
		PRAGMA mmap_size = 268435456; -- 256MB memory mapped I/O
	`); err != nil {
		panic(fmt.Sprintf("failed to set pragmas: %v", err))
	}

	return &Reader{
		db: db,
	}
}

func (reader *Reader) Close() error {
	return reader.db.Close()
}

func (reader *Reader) ListGroups() ([]models.Group, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "name", "loaded").From("groups").OrderBy("id").Asc()
	query, args := sb.Build()

	rows, err := reader.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var group models.Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Loaded); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

const postColumns = "id, group_id, trx_id, title, content, author, timestamp, " +
	"comment_count, non_author_comment_count, like_count, dislike_count, hot"

func scanPost(row interface{ Scan(...any) error }) (models.Post, error) {
	var post models.Post
	var ts int64
	err := row.Scan(
		&post.ID, &post.GroupID, &post.TrxID, &post.Title, &post.Content,
		&post.Author, &ts, &post.CommentCount, &post.NonAuthorCommentCount,
		&post.LikeCount, &post.DislikeCount, &post.Hot,
	)
	if err != nil {
		return post, err
	}
	post.Timestamp = time.Unix(ts, 0)
	return post, nil
}

// ListPosts returns a page of posts ordered by hot score or by time.
func (reader *Reader) ListPosts(groupID string, order string, limit int, offset int) ([]models.Post, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(postColumns).From("posts").Where(sb.Equal("group_id", groupID))

	if order == "hot" {
		sb.OrderBy("hot DESC", "timestamp DESC")
	} else {
		sb.OrderBy("timestamp DESC")
	}
	sb.Limit(limit).Offset(offset)

	query, args := sb.Build()
	rows, err := reader.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (reader *Reader) GetPost(groupID string, id string) (*models.Post, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(postColumns).From("posts").Where(sb.Equal("group_id", groupID), sb.Equal("id", id))
	query, args := sb.Build()

	post, err := scanPost(reader.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	return &post, nil
}

// ListComments returns a post's comments in log order.
func (reader *Reader) ListComments(groupID string, postID string) ([]models.Comment, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(
		"id", "group_id", "trx_id", "content", "post_id", "thread_id", "reply_id",
		"author", "timestamp", "comment_count", "like_count", "dislike_count",
	).From("comments").
		Where(sb.Equal("group_id", groupID), sb.Equal("post_id", postID)).
		OrderBy("timestamp").Asc()
	query, args := sb.Build()

	rows, err := reader.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var comment models.Comment
		var ts int64
		if err := rows.Scan(
			&comment.ID, &comment.GroupID, &comment.TrxID, &comment.Content,
			&comment.PostID, &comment.ThreadID, &comment.ReplyID, &comment.Author,
			&ts, &comment.CommentCount, &comment.LikeCount, &comment.DislikeCount,
		); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		comment.Timestamp = time.Unix(ts, 0)
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// GetLatestProfile returns the newest profile snapshot for a user.
func (reader *Reader) GetLatestProfile(groupID string, address string) (*models.Profile, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "group_id", "trx_id", "author", "name", "avatar", "intro", "timestamp").
		From("profiles").
		Where(sb.Equal("group_id", groupID), sb.Equal("author", address)).
		OrderBy("id").Desc().
		Limit(1)
	query, args := sb.Build()

	var profile models.Profile
	var ts int64
	err := reader.db.QueryRow(query, args...).Scan(
		&profile.ID, &profile.GroupID, &profile.TrxID, &profile.Author,
		&profile.Name, &profile.Avatar, &profile.Intro, &ts,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	profile.Timestamp = time.Unix(ts, 0)
	return &profile, nil
}

// ListNotifications returns a recipient's notifications, newest first.
func (reader *Reader) ListNotifications(groupID string, recipient string, limit int, offset int) ([]models.Notification, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "group_id", "recipient", "sender", "type", "object_id", "object_type", "action_id", "status", "timestamp").
		From("notifications").
		Where(sb.Equal("group_id", groupID), sb.Equal("recipient", recipient)).
		OrderBy("id").Desc().
		Limit(limit).Offset(offset)
	query, args := sb.Build()

	rows, err := reader.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var ts int64
		if err := rows.Scan(
			&n.ID, &n.GroupID, &n.Recipient, &n.Sender, &n.Type,
			&n.ObjectID, &n.ObjectType, &n.ActionID, &n.Status, &ts,
		); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		n.Timestamp = time.Unix(ts, 0)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// ListPostHistories returns the retained content of deleted posts.
func (reader *Reader) ListPostHistories(groupID string, postID string) ([]models.PostHistory, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "group_id", "post_id", "trx_id", "title", "content", "author", "timestamp", "deleted_by", "deleted_at").
		From("post_histories").
		Where(sb.Equal("group_id", groupID), sb.Equal("post_id", postID)).
		OrderBy("id").Asc()
	query, args := sb.Build()

	rows, err := reader.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var histories []models.PostHistory
	for rows.Next() {
		var h models.PostHistory
		var ts, deletedAt int64
		if err := rows.Scan(
			&h.ID, &h.GroupID, &h.PostID, &h.TrxID, &h.Title, &h.Content,
			&h.Author, &ts, &h.DeletedBy, &deletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		h.Timestamp = time.Unix(ts, 0)
		h.DeletedAt = time.Unix(deletedAt, 0)
		histories = append(histories, h)
	}
	return histories, rows.Err()
}

func (reader *Reader) GetImage(groupID string, id string) (*models.ImageFile, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "group_id", "trx_id", "mime_type", "content", "author", "timestamp").
		From("image_files").
		Where(sb.Equal("group_id", groupID), sb.Equal("id", id))
	query, args := sb.Build()

	var image models.ImageFile
	var ts int64
	err := reader.db.QueryRow(query, args...).Scan(
		&image.ID, &image.GroupID, &image.TrxID, &image.MimeType,
		&image.Content, &image.Author, &ts,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	image.Timestamp = time.Unix(ts, 0)
	return &image, nil
}

// ListPostAppends returns a post's appendices in record order.
func (reader *Reader) ListPostAppends(groupID string, postID string) ([]models.PostAppend, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "group_id", "trx_id", "post_id", "content", "author", "timestamp").
		From("post_appends").
		Where(sb.Equal("group_id", groupID), sb.Equal("post_id", postID)).
		OrderBy("timestamp").Asc()
	query, args := sb.Build()

	rows, err := reader.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var appends []models.PostAppend
	for rows.Next() {
		var a models.PostAppend
		var ts int64
		if err := rows.Scan(&a.ID, &a.GroupID, &a.TrxID, &a.PostID, &a.Content, &a.Author, &ts); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		a.Timestamp = time.Unix(ts, 0)
		appends = append(appends, a)
	}
	return appends, rows.Err()
}
