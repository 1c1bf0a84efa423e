package pollster

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/rumsystem/nft-bbs-sub001/models"
)

// RoleGroup is a set of feed roles sharing one physical endpoint. Roles that
// point at the same feed must be polled and cursor-advanced as one unit, or
// records would be applied once per role.
type RoleGroup struct {
	Endpoint string
	Roles    []string
	// Key identifies the group's cursor row: the sorted role names joined
	// with "+", e.g. "comment+main".
	Key string
}

var allRoles = []string{models.RoleMain, models.RoleComment, models.RoleCounter, models.RoleProfile}

// MergeRoles groups a group's feed roles by endpoint identity. The merge
// only affects polling I/O; a fetched record is still dispatched by its own
// declared type.
func MergeRoles(group *models.Group) []RoleGroup {
	byEndpoint := lo.GroupBy(allRoles, func(role string) string {
		return group.Endpoint(role)
	})

	groups := make([]RoleGroup, 0, len(byEndpoint))
	for endpoint, roles := range byEndpoint {
		sort.Strings(roles)
		groups = append(groups, RoleGroup{
			Endpoint: endpoint,
			Roles:    roles,
			Key:      strings.Join(roles, "+"),
		})
	}

	// Stable iteration order across runs
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Key < groups[j].Key
	})

	return groups
}
