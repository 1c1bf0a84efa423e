package pollster

import (
	log "github.com/sirupsen/logrus"

	"github.com/rumsystem/nft-bbs-sub001/db"
	"github.com/rumsystem/nft-bbs-sub001/models"
)

// applyProfile appends a new identity snapshot. Profiles are append-only and
// the latest record wins, so no idempotency key is needed: re-inserting the
// same snapshot leaves the resolved profile unchanged.
func applyProfile(tx *db.Tx, group *models.Group, record models.ChainRecord, content models.ProfileContent) (bool, []models.Event, error) {
	if content.UserAddress != record.Sender {
		log.WithFields(log.Fields{
			"group":   group.ID,
			"record":  record.ID,
			"sender":  record.Sender,
			"subject": content.UserAddress,
		}).Warn("Profile claimed for another address, skipping")
		return true, nil, nil
	}

	if err := tx.InsertProfile(models.Profile{
		GroupID:   group.ID,
		TrxID:     record.ID,
		Author:    record.Sender,
		Name:      content.Name,
		Avatar:    content.Avatar,
		Intro:     content.Intro,
		Timestamp: record.Timestamp,
	}); err != nil {
		return false, nil, err
	}

	return true, nil, nil
}

// applyImage stores an uploaded image blob once; redeliveries are ignored.
func applyImage(tx *db.Tx, group *models.Group, record models.ChainRecord, content models.ImageContent) (bool, []models.Event, error) {
	exists, err := tx.HasImage(group.ID, content.ID)
	if err != nil {
		return false, nil, err
	}
	if exists {
		return true, nil, nil
	}

	if err := tx.InsertImage(models.ImageFile{
		ID:        content.ID,
		GroupID:   group.ID,
		TrxID:     record.ID,
		MimeType:  content.MimeType,
		Content:   content.Content,
		Author:    record.Sender,
		Timestamp: record.Timestamp,
	}); err != nil {
		return false, nil, err
	}

	return true, nil, nil
}
