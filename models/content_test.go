package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rumsystem/nft-bbs-sub001/models"
)

func TestDecodeContent(t *testing.T) {
	tests := []struct {
		name     string
		typeTag  string
		raw      string
		expected models.Content
	}{
		{
			name:    "post",
			typeTag: models.TypePost,
			raw:     `{"id": "p1", "name": "Hello", "content": "First post"}`,
			expected: models.PostContent{
				ID:      "p1",
				Title:   "Hello",
				Content: "First post",
			},
		},
		{
			name:    "post edit",
			typeTag: models.TypePost,
			raw:     `{"id": "p2", "name": "Hello", "content": "Edited", "updatedId": "p1"}`,
			expected: models.PostContent{
				ID:        "p2",
				Title:     "Hello",
				Content:   "Edited",
				UpdatedID: "p1",
			},
		},
		{
			name:    "comment",
			typeTag: models.TypeComment,
			raw:     `{"id": "c1", "content": "Nice", "objectId": "p1"}`,
			expected: models.CommentContent{
				ID:       "c1",
				Content:  "Nice",
				ObjectID: "p1",
			},
		},
		{
			name:    "counter",
			typeTag: models.TypeCounter,
			raw:     `{"objectId": "p1", "name": "postLike", "value": 1}`,
			expected: models.CounterContent{
				ObjectID: "p1",
				Name:     models.ReactionPostLike,
				Value:    1,
			},
		},
		{
			name:    "profile",
			typeTag: models.TypeProfile,
			raw:     `{"userAddress": "addr1", "name": "Alice"}`,
			expected: models.ProfileContent{
				UserAddress: "addr1",
				Name:        "Alice",
			},
		},
		{
			name:    "post delete",
			typeTag: models.TypePostDelete,
			raw:     `{"id": "d1", "deletedId": "p1"}`,
			expected: models.PostDeleteContent{
				ID:        "d1",
				DeletedID: "p1",
			},
		},
		{
			name:    "post append",
			typeTag: models.TypePostAppend,
			raw:     `{"id": "a1", "postId": "p1", "content": "PS"}`,
			expected: models.PostAppendContent{
				ID:      "a1",
				PostID:  "p1",
				Content: "PS",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := models.DecodeContent(tt.typeTag, json.RawMessage(tt.raw))
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDecodeContentMalformed(t *testing.T) {
	tests := []struct {
		name    string
		typeTag string
		raw     string
	}{
		{
			name:    "unknown type",
			typeTag: "poll",
			raw:     `{"id": "x"}`,
		},
		{
			name:    "invalid json",
			typeTag: models.TypePost,
			raw:     `{"id": `,
		},
		{
			name:    "post without id",
			typeTag: models.TypePost,
			raw:     `{"content": "no id"}`,
		},
		{
			name:    "comment without object",
			typeTag: models.TypeComment,
			raw:     `{"id": "c1", "content": "orphan"}`,
		},
		{
			name:    "counter with unknown reaction",
			typeTag: models.TypeCounter,
			raw:     `{"objectId": "p1", "name": "postLove", "value": 1}`,
		},
		{
			name:    "counter with bad magnitude",
			typeTag: models.TypeCounter,
			raw:     `{"objectId": "p1", "name": "postLike", "value": 2}`,
		},
		{
			name:    "profile without address",
			typeTag: models.TypeProfile,
			raw:     `{"name": "Alice"}`,
		},
		{
			name:    "delete without target",
			typeTag: models.TypePostDelete,
			raw:     `{"id": "d1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := models.DecodeContent(tt.typeTag, json.RawMessage(tt.raw))
			malformed, ok := result.(models.MalformedContent)
			assert.True(t, ok, "expected MalformedContent, got %T", result)
			assert.NotEmpty(t, malformed.Reason)
		})
	}
}

func TestHotScore(t *testing.T) {
	tests := []struct {
		name      string
		likes     int64
		dislikes  int64
		nonAuthor int64
		expected  int64
	}{
		{name: "all zero", expected: 0},
		{name: "likes only", likes: 3, expected: 6},
		{name: "comments only", nonAuthor: 5, expected: 5},
		{name: "dislikes subtract", likes: 2, dislikes: 3, nonAuthor: 1, expected: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, models.HotScore(tt.likes, tt.dislikes, tt.nonAuthor))
		})
	}
}

func TestObjectTypeForReaction(t *testing.T) {
	assert.Equal(t, models.ObjectTypePost, models.ObjectTypeForReaction(models.ReactionPostLike))
	assert.Equal(t, models.ObjectTypePost, models.ObjectTypeForReaction(models.ReactionPostDislike))
	assert.Equal(t, models.ObjectTypeComment, models.ObjectTypeForReaction(models.ReactionCommentLike))
	assert.Equal(t, models.ObjectTypeComment, models.ObjectTypeForReaction(models.ReactionCommentDislike))
}
