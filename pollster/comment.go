package pollster

import (
	"github.com/rumsystem/nft-bbs-sub001/db"
	"github.com/rumsystem/nft-bbs-sub001/models"
)

// applyComment creates a comment and maintains the parent post's counters.
//
// The record's objectId references either an existing comment (nested reply)
// or the parent post directly (top-level comment). Nesting is capped at two
// logical levels: replies point at the thread root for counting and at the
// direct parent for notification only.
func applyComment(tx *db.Tx, group *models.Group, record models.ChainRecord, content models.CommentContent) (bool, []models.Event, error) {
	existing, err := tx.GetComment(group.ID, content.ID)
	if err != nil {
		return false, nil, err
	}
	if existing != nil {
		// Redelivered record, already processed
		return true, nil, nil
	}

	var postID, threadID, replyID string

	parent, err := tx.GetComment(group.ID, content.ObjectID)
	if err != nil {
		return false, nil, err
	}
	if parent != nil {
		postID = parent.PostID
		if parent.ThreadID != "" {
			threadID = parent.ThreadID
			replyID = parent.ID
		} else {
			threadID = parent.ID
		}
	} else {
		postID = content.ObjectID
	}

	post, err := tx.GetPost(group.ID, postID)
	if err != nil {
		return false, nil, err
	}
	if post == nil {
		// The post may travel on another feed and not be ingested yet; the
		// record is dropped without retry.
		return false, nil, nil
	}

	comment := models.Comment{
		ID:        content.ID,
		GroupID:   group.ID,
		TrxID:     record.ID,
		Content:   content.Content,
		PostID:    post.ID,
		ThreadID:  threadID,
		ReplyID:   replyID,
		Author:    record.Sender,
		Timestamp: record.Timestamp,
	}
	if err := tx.InsertComment(comment); err != nil {
		return false, nil, err
	}
	if err := insertAttachedImages(tx, group, record, content.Images); err != nil {
		return false, nil, err
	}

	if err := tx.BumpPostCommentCounts(group.ID, post.ID, record.Sender != post.Author); err != nil {
		return false, nil, err
	}
	if threadID != "" {
		if err := tx.BumpCommentCount(group.ID, threadID); err != nil {
			return false, nil, err
		}
	}
	if err := tx.RecomputePostHot(group.ID, post.ID); err != nil {
		return false, nil, err
	}

	events := []models.Event{models.CommentCreatedEvent{Comment: comment}}
	candidates, err := commentNotifications(tx, group, record, comment, post, parent)
	if err != nil {
		return false, nil, err
	}
	events = append(events, candidates...)
	return true, events, nil
}

// commentNotifications computes the notification candidates for a new
// comment. A recipient already covered by an earlier candidate is skipped so
// one action never notifies the same user twice.
func commentNotifications(tx *db.Tx, group *models.Group, record models.ChainRecord, comment models.Comment, post *models.Post, parent *models.Comment) ([]models.Event, error) {
	var events []models.Event
	covered := map[string]bool{comment.Author: true}

	notify := func(recipient string, objectID string, objectType string) {
		if recipient == "" || covered[recipient] {
			return
		}
		covered[recipient] = true
		events = append(events, models.NotificationEvent{Notification: models.Notification{
			GroupID:    group.ID,
			Recipient:  recipient,
			Sender:     comment.Author,
			Type:       models.NotificationTypeComment,
			ObjectID:   objectID,
			ObjectType: objectType,
			ActionID:   comment.ID,
			Timestamp:  record.Timestamp,
		}})
	}

	// Direct top-level comment notifies the post author
	if comment.ThreadID == "" {
		notify(post.Author, post.ID, models.ObjectTypePost)
		return events, nil
	}

	// Nested comment notifies the thread root's author, then the direct
	// reply-to author when different.
	root, err := tx.GetComment(group.ID, comment.ThreadID)
	if err != nil {
		return nil, err
	}
	if root != nil {
		notify(root.Author, root.ID, models.ObjectTypeComment)
	}
	if comment.ReplyID != "" && parent != nil {
		notify(parent.Author, parent.ID, models.ObjectTypeComment)
	}

	return events, nil
}
