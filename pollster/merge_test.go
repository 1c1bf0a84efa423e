package pollster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumsystem/nft-bbs-sub001/models"
)

func TestMergeRoles(t *testing.T) {
	tests := []struct {
		name     string
		group    models.Group
		expected []RoleGroup
	}{
		{
			name: "all roles share one feed",
			group: models.Group{
				ID:              "g1",
				MainEndpoint:    "feed-a",
				CommentEndpoint: "feed-a",
				CounterEndpoint: "feed-a",
				ProfileEndpoint: "feed-a",
			},
			expected: []RoleGroup{
				{Endpoint: "feed-a", Roles: []string{"comment", "counter", "main", "profile"}, Key: "comment+counter+main+profile"},
			},
		},
		{
			name: "dedicated comment feed",
			group: models.Group{
				ID:              "g1",
				MainEndpoint:    "feed-a",
				CommentEndpoint: "feed-b",
				CounterEndpoint: "feed-a",
				ProfileEndpoint: "feed-a",
			},
			expected: []RoleGroup{
				{Endpoint: "feed-b", Roles: []string{"comment"}, Key: "comment"},
				{Endpoint: "feed-a", Roles: []string{"counter", "main", "profile"}, Key: "counter+main+profile"},
			},
		},
		{
			name: "four distinct feeds",
			group: models.Group{
				ID:              "g1",
				MainEndpoint:    "feed-a",
				CommentEndpoint: "feed-b",
				CounterEndpoint: "feed-c",
				ProfileEndpoint: "feed-d",
			},
			expected: []RoleGroup{
				{Endpoint: "feed-b", Roles: []string{"comment"}, Key: "comment"},
				{Endpoint: "feed-c", Roles: []string{"counter"}, Key: "counter"},
				{Endpoint: "feed-a", Roles: []string{"main"}, Key: "main"},
				{Endpoint: "feed-d", Roles: []string{"profile"}, Key: "profile"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MergeRoles(&tt.group)
			require.Len(t, result, len(tt.expected))
			assert.Equal(t, tt.expected, result)
		})
	}
}
