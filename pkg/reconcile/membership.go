package reconcile

import (
	"fmt"

	"github.com/agentstation/membersync/pkg/errors"
)

// Membership roles, as shown in plans.
const (
	RoleContributor    = "contributor"
	RoleNonContributor = "non-contributor"
)

// MembershipState is where an account currently stands in the two groups.
type MembershipState struct {
	Contributor    bool
	NonContributor bool
	// ContributorRows are the membership ids placing the user in the
	// contributor group for the period. Removing a contributor removes
	// every one of them.
	ContributorRows []string
}

// CurrentMembership reads an account's membership state for groups.
func CurrentMembership(acc *Account, groups Groups) MembershipState {
	u := acc.User()
	var state MembershipState
	for _, m := range u.MembershipsIn(groups.Contributor, groups.Period) {
		state.Contributor = true
		state.ContributorRows = append(state.ContributorRows, m.ID)
	}
	state.NonContributor = len(u.MembershipsIn(groups.NonContributor, groups.Period)) > 0
	return state
}

// DiffMemberships computes the membership actions that bring every account
// to its desired state. The contributor group supports add and remove; the
// non-contributor group is only ever added to. An account with no desired
// state fails the diff with errors.ErrUntagged.
func DiffMemberships(accounts []*Account, groups Groups) ([]Action, error) {
	var actions []Action
	for _, acc := range accounts {
		desired := acc.Desired()
		if desired == DesiredUnknown {
			return nil, fmt.Errorf("account %s: %w", acc.Ref(), errors.ErrUntagged)
		}

		state := CurrentMembership(acc, groups)
		wantContributor := desired == DesiredContributor

		switch {
		case state.Contributor && !wantContributor:
			for _, row := range state.ContributorRows {
				actions = append(actions, &RemoveMembership{
					Account:      acc,
					MembershipID: row,
					GroupID:      groups.Contributor,
					PeriodID:     groups.Period,
				})
			}
		case !state.Contributor && wantContributor:
			actions = append(actions, &AddMembership{
				Account:  acc,
				GroupID:  groups.Contributor,
				PeriodID: groups.Period,
				Role:     RoleContributor,
			})
		}

		if !state.NonContributor {
			actions = append(actions, &AddMembership{
				Account:  acc,
				GroupID:  groups.NonContributor,
				PeriodID: groups.Period,
				Role:     RoleNonContributor,
			})
		}
	}
	return actions, nil
}
