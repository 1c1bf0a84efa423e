package pollster

import (
	log "github.com/sirupsen/logrus"

	"github.com/rumsystem/nft-bbs-sub001/db"
	"github.com/rumsystem/nft-bbs-sub001/models"
)

// applyPost creates a post, or edits one in place when the record references
// an existing logical id.
func applyPost(tx *db.Tx, group *models.Group, record models.ChainRecord, content models.PostContent) (bool, []models.Event, error) {
	if content.UpdatedID != "" {
		return applyPostUpdate(tx, group, record, content)
	}

	existing, err := tx.GetPost(group.ID, content.ID)
	if err != nil {
		return false, nil, err
	}
	if existing != nil {
		// Redelivered record, already processed
		return true, nil, nil
	}

	post := models.Post{
		ID:        content.ID,
		GroupID:   group.ID,
		TrxID:     record.ID,
		Title:     content.Title,
		Content:   content.Content,
		Author:    record.Sender,
		Timestamp: record.Timestamp,
	}
	if err := tx.InsertPost(post); err != nil {
		return false, nil, err
	}

	if err := insertAttachedImages(tx, group, record, content.Images); err != nil {
		return false, nil, err
	}

	return true, []models.Event{models.PostCreatedEvent{Post: post}}, nil
}

// applyPostUpdate mutates title and body only; counters and timestamps are
// untouched. Only the original author may edit.
func applyPostUpdate(tx *db.Tx, group *models.Group, record models.ChainRecord, content models.PostContent) (bool, []models.Event, error) {
	post, err := tx.GetPost(group.ID, content.UpdatedID)
	if err != nil {
		return false, nil, err
	}
	if post == nil {
		log.WithFields(log.Fields{
			"group":  group.ID,
			"record": record.ID,
			"post":   content.UpdatedID,
		}).Warn("Update for missing post, skipping")
		return true, nil, nil
	}
	if post.Author != record.Sender {
		log.WithFields(log.Fields{
			"group":  group.ID,
			"record": record.ID,
			"post":   post.ID,
			"sender": record.Sender,
		}).Warn("Post update by non-author, skipping")
		return true, nil, nil
	}

	if err := tx.UpdatePostContent(group.ID, post.ID, content.Title, content.Content); err != nil {
		return false, nil, err
	}
	if err := insertAttachedImages(tx, group, record, content.Images); err != nil {
		return false, nil, err
	}

	post.Title = content.Title
	post.Content = content.Content
	return true, []models.Event{models.PostEditedEvent{Post: *post}}, nil
}

// applyPostDelete removes a post, retaining its content in the history table
// and cascading to notifications and ledger rows that reference it.
func applyPostDelete(tx *db.Tx, group *models.Group, record models.ChainRecord, content models.PostDeleteContent) (bool, []models.Event, error) {
	post, err := tx.GetPost(group.ID, content.DeletedID)
	if err != nil {
		return false, nil, err
	}
	if post == nil {
		return true, nil, nil
	}
	if post.Author != record.Sender {
		log.WithFields(log.Fields{
			"group":  group.ID,
			"record": record.ID,
			"post":   post.ID,
			"sender": record.Sender,
		}).Warn("Post delete by non-author, skipping")
		return true, nil, nil
	}

	if err := tx.InsertPostHistory(models.PostHistory{
		GroupID:   group.ID,
		PostID:    post.ID,
		TrxID:     post.TrxID,
		Title:     post.Title,
		Content:   post.Content,
		Author:    post.Author,
		Timestamp: post.Timestamp,
		DeletedBy: record.Sender,
		DeletedAt: record.Timestamp,
	}); err != nil {
		return false, nil, err
	}
	if err := tx.DeletePost(group.ID, post.ID); err != nil {
		return false, nil, err
	}
	if err := tx.DeleteNotificationsForObject(group.ID, post.ID); err != nil {
		return false, nil, err
	}
	if err := tx.DeleteCountersForObject(group.ID, post.ID); err != nil {
		return false, nil, err
	}

	return true, []models.Event{models.PostDeletedEvent{GroupID: group.ID, PostID: post.ID}}, nil
}

// applyPostAppend attaches an addendum to an existing post. Appends are
// immutable and only the post author may add them.
func applyPostAppend(tx *db.Tx, group *models.Group, record models.ChainRecord, content models.PostAppendContent) (bool, []models.Event, error) {
	exists, err := tx.HasPostAppend(group.ID, content.ID)
	if err != nil {
		return false, nil, err
	}
	if exists {
		return true, nil, nil
	}

	post, err := tx.GetPost(group.ID, content.PostID)
	if err != nil {
		return false, nil, err
	}
	if post == nil {
		// The post may travel on another feed and not be ingested yet
		return false, nil, nil
	}
	if post.Author != record.Sender {
		log.WithFields(log.Fields{
			"group":  group.ID,
			"record": record.ID,
			"post":   post.ID,
			"sender": record.Sender,
		}).Warn("Post append by non-author, skipping")
		return true, nil, nil
	}

	appendRow := models.PostAppend{
		ID:        content.ID,
		GroupID:   group.ID,
		TrxID:     record.ID,
		PostID:    post.ID,
		Content:   content.Content,
		Author:    record.Sender,
		Timestamp: record.Timestamp,
	}
	if err := tx.InsertPostAppend(appendRow); err != nil {
		return false, nil, err
	}

	return true, []models.Event{models.PostAppendEvent{Append: appendRow}}, nil
}
