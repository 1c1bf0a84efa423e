package pollster

import (
	log "github.com/sirupsen/logrus"

	"github.com/rumsystem/nft-bbs-sub001/db"
	"github.com/rumsystem/nft-bbs-sub001/models"
)

// applyContent routes a record to the handler for its declared content type.
// Handlers run inside the record's transaction and must be idempotent:
// redelivery is expected after a crash between commit and cursor advance.
//
// applied=false marks a record dropped over a referential gap (its target
// has not been ingested, possibly because it travels on another feed). Such
// records are not retried.
func applyContent(tx *db.Tx, group *models.Group, record models.ChainRecord) (bool, []models.Event, error) {
	switch content := record.Content.(type) {
	case models.PostContent:
		return applyPost(tx, group, record, content)
	case models.CommentContent:
		return applyComment(tx, group, record, content)
	case models.CounterContent:
		return applyCounter(tx, group, record, content)
	case models.ProfileContent:
		return applyProfile(tx, group, record, content)
	case models.ImageContent:
		return applyImage(tx, group, record, content)
	case models.PostAppendContent:
		return applyPostAppend(tx, group, record, content)
	case models.PostDeleteContent:
		return applyPostDelete(tx, group, record, content)
	case models.MalformedContent:
		// Retrying a malformed record can never succeed, so it is
		// acknowledged and skipped.
		log.WithFields(log.Fields{
			"group":  group.ID,
			"record": record.ID,
			"type":   content.Type,
			"reason": content.Reason,
		}).Warn("Skipping malformed record")
		return true, nil, nil
	default:
		log.WithFields(log.Fields{
			"group":  group.ID,
			"record": record.ID,
		}).Warn("Skipping record with unhandled content")
		return true, nil, nil
	}
}

// insertAttachedImages stores images embedded in a post or comment payload,
// skipping ids that already exist.
func insertAttachedImages(tx *db.Tx, group *models.Group, record models.ChainRecord, images []models.ImageContent) error {
	for _, image := range images {
		if image.ID == "" {
			continue
		}
		exists, err := tx.HasImage(group.ID, image.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := tx.InsertImage(models.ImageFile{
			ID:        image.ID,
			GroupID:   group.ID,
			TrxID:     record.ID,
			MimeType:  image.MimeType,
			Content:   image.Content,
			Author:    record.Sender,
			Timestamp: record.Timestamp,
		}); err != nil {
			return err
		}
	}
	return nil
}
