package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record type tags as they appear on the wire.
const (
	TypePost       = "post"
	TypeComment    = "comment"
	TypeCounter    = "counter"
	TypeProfile    = "profile"
	TypeImage      = "image"
	TypePostAppend = "postAppend"
	TypePostDelete = "postDelete"
)

// Content is the closed set of decoded record payloads. Decoding happens
// once at the source adapter boundary so handlers receive typed values.
type Content interface {
	contentType() string
}

// PostContent creates a post, or edits one in place when UpdatedID
// references the logical id of an existing post.
type PostContent struct {
	ID        string         `json:"id"`
	Title     string         `json:"name"`
	Content   string         `json:"content"`
	UpdatedID string         `json:"updatedId,omitempty"`
	Images    []ImageContent `json:"images,omitempty"`
}

// CommentContent creates a comment. ObjectID references either the parent
// post or, for nested replies, the comment being replied to.
type CommentContent struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	ObjectID string         `json:"objectId"`
	Images   []ImageContent `json:"images,omitempty"`
}

// CounterContent activates (+1) or retracts (-1) a reaction on an object.
type CounterContent struct {
	ObjectID string `json:"objectId"`
	Name     string `json:"name"`
	Value    int    `json:"value"`
}

// ProfileContent replaces the sender's identity snapshot. UserAddress must
// match the record's cryptographic sender; mismatches are dropped.
type ProfileContent struct {
	UserAddress string `json:"userAddress"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Intro       string `json:"intro"`
}

// ImageContent uploads a content-addressed binary blob.
type ImageContent struct {
	ID       string `json:"id"`
	MimeType string `json:"mineType"`
	Content  []byte `json:"content"`
}

// PostAppendContent attaches an addendum to an existing post.
type PostAppendContent struct {
	ID      string `json:"id"`
	PostID  string `json:"postId"`
	Content string `json:"content"`
}

// PostDeleteContent removes the referenced post.
type PostDeleteContent struct {
	ID        string `json:"id"`
	DeletedID string `json:"deletedId"`
}

// MalformedContent stands in for a payload that failed schema validation.
// The router logs it and counts the record as applied, since retrying a
// malformed record can never succeed.
type MalformedContent struct {
	Type   string
	Reason string
}

func (PostContent) contentType() string       { return TypePost }
func (CommentContent) contentType() string    { return TypeComment }
func (CounterContent) contentType() string    { return TypeCounter }
func (ProfileContent) contentType() string    { return TypeProfile }
func (ImageContent) contentType() string      { return TypeImage }
func (PostAppendContent) contentType() string { return TypePostAppend }
func (PostDeleteContent) contentType() string { return TypePostDelete }
func (MalformedContent) contentType() string  { return "malformed" }

// ChainRecord is one decrypted entry of a group feed, cryptographically
// attributed to its sender.
type ChainRecord struct {
	ID        string
	Sender    string
	Timestamp time.Time
	Content   Content
}

// DecodeContent parses a raw payload into its typed variant. Unknown types
// and schema violations yield MalformedContent rather than an error so the
// caller can acknowledge the record and move on.
func DecodeContent(typeTag string, raw json.RawMessage) Content {
	malformed := func(err error) Content {
		return MalformedContent{Type: typeTag, Reason: err.Error()}
	}

	switch typeTag {
	case TypePost:
		var c PostContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return malformed(err)
		}
		if c.ID == "" {
			return malformed(fmt.Errorf("post record without id"))
		}
		return c
	case TypeComment:
		var c CommentContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return malformed(err)
		}
		if c.ID == "" || c.ObjectID == "" {
			return malformed(fmt.Errorf("comment record missing id or objectId"))
		}
		return c
	case TypeCounter:
		var c CounterContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return malformed(err)
		}
		if c.ObjectID == "" {
			return malformed(fmt.Errorf("counter record without objectId"))
		}
		switch c.Name {
		case ReactionPostLike, ReactionPostDislike, ReactionCommentLike, ReactionCommentDislike:
		default:
			return malformed(fmt.Errorf("unknown reaction name %q", c.Name))
		}
		if c.Value != 1 && c.Value != -1 {
			return malformed(fmt.Errorf("counter value must be +1 or -1, got %d", c.Value))
		}
		return c
	case TypeProfile:
		var c ProfileContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return malformed(err)
		}
		if c.UserAddress == "" {
			return malformed(fmt.Errorf("profile record without userAddress"))
		}
		return c
	case TypeImage:
		var c ImageContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return malformed(err)
		}
		if c.ID == "" {
			return malformed(fmt.Errorf("image record without id"))
		}
		return c
	case TypePostAppend:
		var c PostAppendContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return malformed(err)
		}
		if c.ID == "" || c.PostID == "" {
			return malformed(fmt.Errorf("postAppend record missing id or postId"))
		}
		return c
	case TypePostDelete:
		var c PostDeleteContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return malformed(err)
		}
		if c.DeletedID == "" {
			return malformed(fmt.Errorf("postDelete record without deletedId"))
		}
		return c
	default:
		return malformed(fmt.Errorf("unknown record type %q", typeTag))
	}
}

// ObjectTypeForReaction maps a reaction name to the object type it targets.
func ObjectTypeForReaction(name string) string {
	switch name {
	case ReactionCommentLike, ReactionCommentDislike:
		return ObjectTypeComment
	default:
		return ObjectTypePost
	}
}

// IsLikeReaction reports whether the reaction is a like. Only likes generate
// notifications; dislikes never do.
func IsLikeReaction(name string) bool {
	return name == ReactionPostLike || name == ReactionCommentLike
}
