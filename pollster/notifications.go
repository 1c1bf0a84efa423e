package pollster

import (
	"github.com/rumsystem/nft-bbs-sub001/db"
	"github.com/rumsystem/nft-bbs-sub001/models"
)

// projectNotifications materializes notification candidates inside the
// record's transaction.
//
// Self-notifications are dropped unconditionally. Notifications for groups
// still backfilling are created already read, so recipients are not flooded
// with history the first time the system observes a feed. Duplicate-cause
// suppression is the emitting handler's responsibility, not ours.
func projectNotifications(tx *db.Tx, events []models.Event, loaded bool) ([]models.Event, error) {
	projected := make([]models.Event, 0, len(events))

	for _, event := range events {
		candidate, ok := event.(models.NotificationEvent)
		if !ok {
			projected = append(projected, event)
			continue
		}

		notification := candidate.Notification
		if notification.Sender == notification.Recipient {
			continue
		}

		if loaded {
			notification.Status = models.NotificationStatusUnread
		} else {
			notification.Status = models.NotificationStatusRead
		}

		id, err := tx.InsertNotification(notification)
		if err != nil {
			return nil, err
		}
		notification.ID = id

		projected = append(projected, models.NotificationEvent{Notification: notification})
	}

	return projected, nil
}
