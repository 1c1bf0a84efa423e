package pollster

import (
	log "github.com/sirupsen/logrus"

	"github.com/rumsystem/nft-bbs-sub001/db"
	"github.com/rumsystem/nft-bbs-sub001/models"
)

// applyCounter activates or retracts a reaction on a post or comment. The
// ledger row's existence is the source of truth: activation of an existing
// row and retraction of a missing one are no-ops, which makes replay safe.
// Counts are always re-derived from the ledger afterwards.
func applyCounter(tx *db.Tx, group *models.Group, record models.ChainRecord, content models.CounterContent) (bool, []models.Event, error) {
	objectType := models.ObjectTypeForReaction(content.Name)

	var targetAuthor string
	switch objectType {
	case models.ObjectTypeComment:
		comment, err := tx.GetComment(group.ID, content.ObjectID)
		if err != nil {
			return false, nil, err
		}
		if comment == nil {
			return false, nil, nil
		}
		targetAuthor = comment.Author
	default:
		post, err := tx.GetPost(group.ID, content.ObjectID)
		if err != nil {
			return false, nil, err
		}
		if post == nil {
			return false, nil, nil
		}
		targetAuthor = post.Author
	}

	counter := models.StackedCounter{
		GroupID:    group.ID,
		ObjectID:   content.ObjectID,
		ObjectType: objectType,
		Name:       content.Name,
		Author:     record.Sender,
	}
	active, err := tx.HasCounter(counter)
	if err != nil {
		return false, nil, err
	}

	var events []models.Event
	switch {
	case content.Value > 0 && !active:
		if err := tx.InsertCounter(counter); err != nil {
			return false, nil, err
		}
		// Dislikes never generate notifications
		if models.IsLikeReaction(content.Name) && targetAuthor != record.Sender {
			events = append(events, models.NotificationEvent{Notification: models.Notification{
				GroupID:    group.ID,
				Recipient:  targetAuthor,
				Sender:     record.Sender,
				Type:       models.NotificationTypeLike,
				ObjectID:   content.ObjectID,
				ObjectType: objectType,
				ActionID:   record.ID,
				Timestamp:  record.Timestamp,
			}})
		}
	case content.Value < 0 && active:
		if err := tx.DeleteCounter(counter); err != nil {
			return false, nil, err
		}
	default:
		// Duplicate activation or retraction of an inactive reaction
		log.WithFields(log.Fields{
			"group":  group.ID,
			"record": record.ID,
			"object": content.ObjectID,
			"name":   content.Name,
			"value":  content.Value,
		}).Debug("Reaction already in requested state")
		return true, nil, nil
	}

	reaction, err := refreshReactionCounts(tx, group, content.ObjectID, objectType)
	if err != nil {
		return false, nil, err
	}
	events = append(events, reaction)

	return true, events, nil
}

// refreshReactionCounts recounts the ledger rows for an object and stores
// the derived like/dislike counts, recomputing the hot score for posts.
func refreshReactionCounts(tx *db.Tx, group *models.Group, objectID string, objectType string) (models.Event, error) {
	likeName, dislikeName := models.ReactionPostLike, models.ReactionPostDislike
	if objectType == models.ObjectTypeComment {
		likeName, dislikeName = models.ReactionCommentLike, models.ReactionCommentDislike
	}

	likeCount, err := tx.CountCounters(group.ID, objectID, objectType, likeName)
	if err != nil {
		return nil, err
	}
	dislikeCount, err := tx.CountCounters(group.ID, objectID, objectType, dislikeName)
	if err != nil {
		return nil, err
	}

	if objectType == models.ObjectTypeComment {
		if err := tx.SetCommentReactionCounts(group.ID, objectID, likeCount, dislikeCount); err != nil {
			return nil, err
		}
	} else {
		if err := tx.SetPostReactionCounts(group.ID, objectID, likeCount, dislikeCount); err != nil {
			return nil, err
		}
		if err := tx.RecomputePostHot(group.ID, objectID); err != nil {
			return nil, err
		}
	}

	return models.ReactionEvent{
		GroupID:      group.ID,
		ObjectID:     objectID,
		ObjectType:   objectType,
		LikeCount:    likeCount,
		DislikeCount: dislikeCount,
	}, nil
}
