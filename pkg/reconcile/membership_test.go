package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/membersync/pkg/directory"
	"github.com/agentstation/membersync/pkg/errors"
)

func membership(id, group string) directory.Membership {
	return directory.Membership{ID: id, GroupID: group, PeriodID: groups.Period}
}

func tagged(u directory.User, contributor bool) *Account {
	acc := NewAccount(u)
	acc.SetContributor(contributor)
	return acc
}

func TestDiffMemberships(t *testing.T) {
	tests := []struct {
		name        string
		memberships []directory.Membership
		contributor bool
		want        []Kind
		roles       []string
	}{
		{
			name:        "in both groups, stays contributor",
			memberships: []directory.Membership{membership("c", groups.Contributor), membership("n", groups.NonContributor)},
			contributor: true,
		},
		{
			name:        "in both groups, lapses",
			memberships: []directory.Membership{membership("c", groups.Contributor), membership("n", groups.NonContributor)},
			contributor: false,
			want:        []Kind{KindRemoveMembership},
		},
		{
			name:        "non-contributor becomes contributor",
			memberships: []directory.Membership{membership("n", groups.NonContributor)},
			contributor: true,
			want:        []Kind{KindAddMembership},
			roles:       []string{RoleContributor},
		},
		{
			name:        "no memberships, contributor",
			contributor: true,
			want:        []Kind{KindAddMembership, KindAddMembership},
			roles:       []string{RoleContributor, RoleNonContributor},
		},
		{
			name:        "no memberships, non-contributor",
			contributor: false,
			want:        []Kind{KindAddMembership},
			roles:       []string{RoleNonContributor},
		},
		{
			name: "other period does not count",
			memberships: []directory.Membership{
				{ID: "old", GroupID: groups.Contributor, PeriodID: "p-2025"},
				membership("n", groups.NonContributor),
			},
			contributor: false,
		},
		{
			name: "duplicate contributor rows are all removed",
			memberships: []directory.Membership{
				membership("c1", groups.Contributor),
				membership("c2", groups.Contributor),
				membership("n", groups.NonContributor),
			},
			contributor: false,
			want:        []Kind{KindRemoveMembership, KindRemoveMembership},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := tagged(directory.User{ID: "u1", Memberships: tt.memberships}, tt.contributor)

			actions, err := DiffMemberships([]*Account{acc}, groups)
			require.NoError(t, err)
			assert.Equal(t, tt.want, nilIfEmpty(kinds(actions)))

			var roles []string
			for _, a := range actions {
				if add, ok := a.(*AddMembership); ok {
					roles = append(roles, add.Role)
					assert.Equal(t, groups.Period, add.PeriodID)
				}
			}
			assert.Equal(t, tt.roles, roles)
		})
	}
}

func nilIfEmpty(k []Kind) []Kind {
	if len(k) == 0 {
		return nil
	}
	return k
}

func TestDiffMembershipsNeverRemovesNonContributor(t *testing.T) {
	for _, contributor := range []bool{true, false} {
		present := tagged(directory.User{ID: "in", Memberships: []directory.Membership{membership("n", groups.NonContributor)}}, contributor)
		absent := tagged(directory.User{ID: "out"}, contributor)

		actions, err := DiffMemberships([]*Account{present, absent}, groups)
		require.NoError(t, err)

		adds := 0
		for _, a := range actions {
			if rm, ok := a.(*RemoveMembership); ok {
				assert.NotEqual(t, groups.NonContributor, rm.GroupID)
			}
			if add, ok := a.(*AddMembership); ok && add.GroupID == groups.NonContributor {
				assert.Equal(t, "out", add.Target())
				adds++
			}
		}
		assert.Equal(t, 1, adds)
	}
}

func TestDiffMembershipsRejectsUntaggedAccount(t *testing.T) {
	_, err := DiffMemberships([]*Account{NewAccount(directory.User{ID: "u1"})}, groups)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUntagged)
	assert.Contains(t, err.Error(), "u1")
}

func TestCurrentMembership(t *testing.T) {
	acc := NewAccount(directory.User{Memberships: []directory.Membership{
		membership("c1", groups.Contributor),
		membership("n1", groups.NonContributor),
		{ID: "x", GroupID: "other", PeriodID: groups.Period},
	}})

	state := CurrentMembership(acc, groups)
	assert.True(t, state.Contributor)
	assert.True(t, state.NonContributor)
	assert.Equal(t, []string{"c1"}, state.ContributorRows)
}
