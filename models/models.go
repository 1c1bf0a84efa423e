package models

import "time"

// Feed roles a group can expose. Roles may share a physical feed endpoint,
// in which case they are polled and cursor-advanced together.
const (
	RoleMain    = "main"
	RoleComment = "comment"
	RoleCounter = "counter"
	RoleProfile = "profile"
)

// Reaction names carried by counter records.
const (
	ReactionPostLike       = "postLike"
	ReactionPostDislike    = "postDislike"
	ReactionCommentLike    = "commentLike"
	ReactionCommentDislike = "commentDislike"
)

// Object types referenced by counters and notifications.
const (
	ObjectTypePost    = "post"
	ObjectTypeComment = "comment"
)

// Notification types.
const (
	NotificationTypeLike    = "like"
	NotificationTypeComment = "comment"
)

// Notification statuses. Notifications projected during backfill are created
// already read so recipients are not flooded with historical events.
const (
	NotificationStatusRead   = "read"
	NotificationStatusUnread = "unread"
)

// Group is a tracked content feed with up to four role endpoints.
type Group struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	MainEndpoint    string `json:"-"`
	CommentEndpoint string `json:"-"`
	CounterEndpoint string `json:"-"`
	ProfileEndpoint string `json:"-"`
	Loaded          bool   `json:"loaded"`
}

// Endpoint returns the physical feed endpoint serving the given role.
func (g *Group) Endpoint(role string) string {
	switch role {
	case RoleComment:
		return g.CommentEndpoint
	case RoleCounter:
		return g.CounterEndpoint
	case RoleProfile:
		return g.ProfileEndpoint
	default:
		return g.MainEndpoint
	}
}

// Post is keyed by its logical id, which is stable across edits. TrxID is the
// record id of the creating transaction.
type Post struct {
	ID                    string    `json:"id"`
	GroupID               string    `json:"groupId"`
	TrxID                 string    `json:"trxId"`
	Title                 string    `json:"title"`
	Content               string    `json:"content"`
	Author                string    `json:"author"`
	Timestamp             time.Time `json:"timestamp"`
	CommentCount          int64     `json:"commentCount"`
	NonAuthorCommentCount int64     `json:"nonAuthorCommentCount"`
	LikeCount             int64     `json:"likeCount"`
	DislikeCount          int64     `json:"dislikeCount"`
	Hot                   int64     `json:"hot"`
}

// HotScore is the ranking heuristic applied to posts after every mutation
// that touches their counters.
func HotScore(likeCount, dislikeCount, nonAuthorCommentCount int64) int64 {
	return likeCount*2 + nonAuthorCommentCount - dislikeCount*2
}

// PostHistory retains the content of deleted posts.
type PostHistory struct {
	ID        int64     `json:"id"`
	GroupID   string    `json:"groupId"`
	PostID    string    `json:"postId"`
	TrxID     string    `json:"trxId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	DeletedBy string    `json:"deletedBy"`
	DeletedAt time.Time `json:"deletedAt"`
}

// Comment belongs to a post. ThreadID is the top-level ancestor comment and
// is empty for top-level comments; ReplyID is the direct parent comment and
// is only set when the comment is nested under a thread.
type Comment struct {
	ID           string    `json:"id"`
	GroupID      string    `json:"groupId"`
	TrxID        string    `json:"trxId"`
	Content      string    `json:"content"`
	PostID       string    `json:"postId"`
	ThreadID     string    `json:"threadId"`
	ReplyID      string    `json:"replyId"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	CommentCount int64     `json:"commentCount"`
	LikeCount    int64     `json:"likeCount"`
	DislikeCount int64     `json:"dislikeCount"`
}

// Profile is the latest identity snapshot for (group, user address).
// Profiles are append-only; the newest record wins.
type Profile struct {
	ID        int64     `json:"id"`
	GroupID   string    `json:"groupId"`
	TrxID     string    `json:"trxId"`
	Author    string    `json:"author"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Intro     string    `json:"intro"`
	Timestamp time.Time `json:"timestamp"`
}

// StackedCounter is the reaction dedup ledger. The existence of a row means
// "this user currently has this reaction active on this object". Like and
// dislike counts are always derived by counting these rows, never by
// arithmetic, so they stay correct under replay.
type StackedCounter struct {
	GroupID    string `json:"groupId"`
	ObjectID   string `json:"objectId"`
	ObjectType string `json:"objectType"`
	Name       string `json:"name"`
	Author     string `json:"author"`
}

// Notification is created as a side effect of comment and counter handlers.
type Notification struct {
	ID         int64     `json:"id"`
	GroupID    string    `json:"groupId"`
	Recipient  string    `json:"recipient"`
	Sender     string    `json:"sender"`
	Type       string    `json:"type"`
	ObjectID   string    `json:"objectId"`
	ObjectType string    `json:"objectType"`
	ActionID   string    `json:"actionId"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// ImageFile is a content-addressed binary blob referenced from post and
// comment bodies. Immutable once created.
type ImageFile struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	TrxID     string    `json:"trxId"`
	MimeType  string    `json:"mimeType"`
	Content   []byte    `json:"-"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// PostAppend is an addendum attached to an existing post by its author.
type PostAppend struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	TrxID     string    `json:"trxId"`
	PostID    string    `json:"postId"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}
