package models

// Event is a side effect produced by a content handler. Events are delivered
// to connected clients only after the enclosing transaction commits.
type Event interface {
	EventName() string
}

// NotificationEvent carries a notification candidate. The status field of the
// notification is assigned by the projector based on the group's loaded flag.
type NotificationEvent struct {
	Notification Notification
}

// PostCreatedEvent is broadcast to the whole group.
type PostCreatedEvent struct {
	Post Post
}

// PostEditedEvent is broadcast when a post's title or body changed.
type PostEditedEvent struct {
	Post Post
}

// PostDeletedEvent is broadcast when a post was removed.
type PostDeletedEvent struct {
	GroupID string `json:"groupId"`
	PostID  string `json:"postId"`
}

// PostAppendEvent is broadcast when an addendum was attached to a post.
type PostAppendEvent struct {
	Append PostAppend
}

// CommentCreatedEvent is broadcast when a comment was created.
type CommentCreatedEvent struct {
	Comment Comment
}

// ReactionEvent is broadcast when an object's derived counts changed.
type ReactionEvent struct {
	GroupID      string `json:"groupId"`
	ObjectID     string `json:"objectId"`
	ObjectType   string `json:"objectType"`
	LikeCount    int64  `json:"likeCount"`
	DislikeCount int64  `json:"dislikeCount"`
}

func (NotificationEvent) EventName() string   { return "notification" }
func (PostCreatedEvent) EventName() string    { return "post-created" }
func (PostEditedEvent) EventName() string     { return "post-edited" }
func (PostDeletedEvent) EventName() string    { return "post-deleted" }
func (PostAppendEvent) EventName() string     { return "post-append" }
func (CommentCreatedEvent) EventName() string { return "comment-created" }
func (ReactionEvent) EventName() string       { return "reaction" }
