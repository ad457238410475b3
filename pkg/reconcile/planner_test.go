package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/membersync/pkg/constants"
	"github.com/agentstation/membersync/pkg/directory"
	"github.com/agentstation/membersync/pkg/enrollment"
	"github.com/agentstation/membersync/pkg/errors"
)

func TestPlanCreatesUnmatchedRecord(t *testing.T) {
	rec := enrollment.Record{ExternalID: "22000000123", FirstName: "Ada", LastName: "L", Login: "adal", Email: "a@x.edu", Contributor: true}

	plan, err := NewPlanner().Plan(context.Background(), []enrollment.Record{rec}, nil)
	require.NoError(t, err)

	require.Len(t, plan.Outcomes, 1)
	assert.Equal(t, DecisionCreate, plan.Outcomes[0].Decision)
	require.Len(t, plan.Users, 1)

	create, ok := plan.Users[0].(*CreateUser)
	require.True(t, ok)
	assert.Equal(t, "a@x.edu", create.User.Email)
	assert.Equal(t, constants.PlaceholderPIN, create.User.PIN)
	assert.Equal(t, constants.PlaceholderPassword, create.User.Password)
	assert.Equal(t, "22000000123", create.LogicalID)
	assert.Equal(t, []directory.Credential{
		{Type: constants.CredentialEmail, Data: "a@x.edu"},
		{Type: constants.CredentialNumericID, Data: "22000000123"},
		{Type: constants.CredentialLogin, Data: "adal"},
	}, create.Credentials)

	require.Len(t, plan.Accounts, 1)
	assert.True(t, plan.Accounts[0].Planned())
	assert.Equal(t, DesiredContributor, plan.Accounts[0].Desired())
}

func TestEndToEndScenarioMembershipAfterCreation(t *testing.T) {
	rec := enrollment.Record{ExternalID: "22000000123", Email: "a@x.edu", Contributor: true}
	plan, err := NewPlanner().Plan(context.Background(), []enrollment.Record{rec}, nil)
	require.NoError(t, err)

	w := newFakeWriter()
	for _, a := range plan.Users {
		require.NoError(t, a.Apply(context.Background(), w))
	}
	u := plan.Accounts[0].User()
	require.NotEmpty(t, u.ID)
	require.Len(t, u.Wallets, 1)
	assert.Equal(t, "22000000123", u.Wallets[0].LogicalID)

	memberships, err := DiffMemberships(plan.Accounts, groups)
	require.NoError(t, err)
	require.Len(t, memberships, 2)

	roles := []string{memberships[0].(*AddMembership).Role, memberships[1].(*AddMembership).Role}
	assert.ElementsMatch(t, []string{RoleContributor, RoleNonContributor}, roles)
}

func TestPlanPartitionsEveryRecord(t *testing.T) {
	synced := enrollment.Record{ExternalID: "1", FirstName: "S", Email: "s@x.edu", Contributor: true}
	stale := enrollment.Record{ExternalID: "2", FirstName: "T", Email: "new@x.edu"}
	fresh := enrollment.Record{ExternalID: "3", FirstName: "F", Email: "f@x.edu"}

	staleUser := syncedUser("u2", stale)
	staleUser.Email = "old@x.edu"

	accounts := Accounts([]directory.User{syncedUser("u1", synced), staleUser})
	plan, err := NewPlanner().Plan(context.Background(), []enrollment.Record{synced, stale, fresh}, accounts)
	require.NoError(t, err)

	require.Len(t, plan.Outcomes, 3)
	assert.Equal(t, DecisionNoop, plan.Outcomes[0].Decision)
	assert.Equal(t, DecisionUpdate, plan.Outcomes[1].Decision)
	assert.Equal(t, DecisionCreate, plan.Outcomes[2].Decision)

	for _, o := range plan.Outcomes {
		for _, a := range o.Actions {
			if o.Decision == DecisionCreate {
				assert.Equal(t, KindCreateUser, a.Kind())
			} else {
				assert.NotEqual(t, KindCreateUser, a.Kind(), "record %s", o.Record.Key())
			}
		}
		if o.Decision == DecisionNoop {
			assert.Empty(t, o.Actions)
		}
	}
	assert.Equal(t, map[Decision]int{DecisionNoop: 1, DecisionUpdate: 1, DecisionCreate: 1}, plan.Decisions())
}

func TestPlanBindsPrimaryWalletOnce(t *testing.T) {
	rec := enrollment.Record{ExternalID: "42", Email: "b@x.edu"}
	user := directory.User{ID: "u1", Email: "b@x.edu", Wallets: []directory.Wallet{{ID: "w1"}}}
	accounts := Accounts([]directory.User{user})

	plan, err := NewPlanner().Plan(context.Background(), []enrollment.Record{rec}, accounts)
	require.NoError(t, err)

	var binds []*BindWallet
	for _, a := range plan.Users {
		if b, ok := a.(*BindWallet); ok {
			binds = append(binds, b)
		}
	}
	require.Len(t, binds, 1)
	assert.Equal(t, "w1", binds[0].WalletID)
	assert.Equal(t, "42", binds[0].LogicalID)

	w := newFakeWriter()
	for _, a := range plan.Users {
		require.NoError(t, a.Apply(context.Background(), w))
	}

	again, err := NewPlanner().Plan(context.Background(), []enrollment.Record{rec}, Accounts([]directory.User{accounts[0].User()}))
	require.NoError(t, err)
	assert.Empty(t, again.Users)
	assert.Equal(t, MatchExternalID, again.Outcomes[0].MatchBy)
}

func TestPlanDoesNotRebindBoundPrimaryWallet(t *testing.T) {
	rec := enrollment.Record{ExternalID: "42", Email: "b@x.edu"}
	user := syncedUser("u1", enrollment.Record{ExternalID: "41", Email: "b@x.edu"})

	plan, err := NewPlanner().Plan(context.Background(), []enrollment.Record{rec}, Accounts([]directory.User{user}))
	require.NoError(t, err)

	assert.NotContains(t, kinds(plan.Users), KindBindWallet)
	assert.Contains(t, kinds(plan.Users), KindUpdateCredential, "the numeric id credential follows the record")
}

func TestPlanCreatesWalletForWalletlessUser(t *testing.T) {
	rec := enrollment.Record{ExternalID: "42", Email: "b@x.edu"}
	user := syncedUser("u1", rec)
	user.Wallets = nil

	plan, err := NewPlanner().Plan(context.Background(), []enrollment.Record{rec}, Accounts([]directory.User{user}))
	require.NoError(t, err)

	require.Equal(t, []Kind{KindCreateWallet}, kinds(plan.Users))
	assert.Equal(t, "42", plan.Users[0].(*CreateWallet).LogicalID)
}

func TestPlanCredentialCorrections(t *testing.T) {
	rec := enrollment.Record{ExternalID: "42", Login: "newlogin", Email: "b@x.edu"}
	user := directory.User{
		ID:      "u1",
		Email:   "b@x.edu",
		Wallets: []directory.Wallet{{ID: "w1", LogicalID: "42"}},
		Credentials: []directory.Credential{
			{ID: "c1", Type: constants.CredentialEmail, Data: "b@x.edu"},
			{ID: "c2", Type: constants.CredentialLogin, Data: "oldlogin"},
		},
	}

	plan, err := NewPlanner().Plan(context.Background(), []enrollment.Record{rec}, Accounts([]directory.User{user}))
	require.NoError(t, err)

	require.Equal(t, []Kind{KindAddCredential, KindUpdateCredential}, kinds(plan.Users))
	add := plan.Users[0].(*AddCredential)
	assert.Equal(t, constants.CredentialNumericID, add.Credential.Type)
	update := plan.Users[1].(*UpdateCredential)
	assert.Equal(t, "c2", update.Credential.ID)
	assert.Equal(t, "newlogin", update.Credential.Data)
}

func TestPlanUpdatesEmailCaseOnce(t *testing.T) {
	rec := enrollment.Record{Email: "Ada@x.edu"}
	user := syncedUser("u1", enrollment.Record{Email: "ada@x.edu"})
	user.Credentials[0].Data = "Ada@x.edu"

	plan, err := NewPlanner().Plan(context.Background(), []enrollment.Record{rec}, Accounts([]directory.User{user}))
	require.NoError(t, err)
	require.Equal(t, []Kind{KindUpdateEmail}, kinds(plan.Users))
	assert.Equal(t, MatchEmail, plan.Outcomes[0].MatchBy)
}

func TestPlanTagsUnenrolledUsersNonContributor(t *testing.T) {
	accounts := Accounts([]directory.User{{ID: "gone", Email: "gone@x.edu"}})

	plan, err := NewPlanner().Plan(context.Background(), nil, accounts)
	require.NoError(t, err)

	assert.Empty(t, plan.Outcomes)
	assert.Equal(t, DesiredNonContributor, accounts[0].Desired())
	assert.Nil(t, accounts[0].Record())
}

func TestPlanEveryAccountEndsTagged(t *testing.T) {
	records := []enrollment.Record{
		{ExternalID: "1", Email: "one@x.edu", Contributor: true},
		{Email: "two@x.edu"},
	}
	accounts := Accounts([]directory.User{
		{ID: "u1", Email: "one@x.edu"},
		{ID: "u9", Email: "nine@x.edu"},
	})

	plan, err := NewPlanner().Plan(context.Background(), records, accounts)
	require.NoError(t, err)

	for _, acc := range plan.Accounts {
		assert.NotEqual(t, DesiredUnknown, acc.Desired(), acc.Ref())
	}
}

func TestPlanClaimedUserIsNotClaimedTwice(t *testing.T) {
	records := []enrollment.Record{
		{ExternalID: "1", Email: "a@x.edu", Contributor: true},
		{ExternalID: "2", Email: "a@x.edu"},
	}
	accounts := Accounts([]directory.User{syncedUser("u1", records[0])})

	plan, err := NewPlanner().Plan(context.Background(), records, accounts)
	require.NoError(t, err)

	assert.Equal(t, DecisionNoop, plan.Outcomes[1].Decision)
	assert.NotEmpty(t, plan.Outcomes[1].Reason)
	require.Len(t, plan.Conflicts, 1)
	assert.Equal(t, DesiredContributor, accounts[0].Desired(), "the first record decides")
}

func TestPlanCollapsesDuplicateCreates(t *testing.T) {
	records := []enrollment.Record{
		{ExternalID: "5", Email: "n@x.edu"},
		{ExternalID: "5", Email: "other@x.edu"},
		{Email: "N@x.edu"},
	}

	plan, err := NewPlanner().Plan(context.Background(), records, nil)
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindCreateUser}, kinds(plan.Users))
	assert.Len(t, plan.Accounts, 1)
	assert.Len(t, plan.Conflicts, 2)
	assert.Equal(t, DecisionNoop, plan.Outcomes[1].Decision)
	assert.Equal(t, DecisionNoop, plan.Outcomes[2].Decision)
}

func TestPlanDuplicatePolicyError(t *testing.T) {
	accounts := Accounts([]directory.User{
		{ID: "u1", Email: "dup@x.edu"},
		{ID: "u2", Email: "dup@x.edu"},
	})

	_, err := NewPlanner(WithDuplicatePolicy(DuplicatesError)).
		Plan(context.Background(), []enrollment.Record{{Email: "dup@x.edu"}}, accounts)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAmbiguousMatch)
}

func TestPlanSkipsRecordWithoutEmail(t *testing.T) {
	plan, err := NewPlanner().Plan(context.Background(), []enrollment.Record{{ExternalID: "8"}}, nil)
	require.NoError(t, err)

	assert.Empty(t, plan.Users)
	assert.Equal(t, DecisionNoop, plan.Outcomes[0].Decision)
	assert.NotEmpty(t, plan.Outcomes[0].Reason)
}

func TestPlanHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPlanner().Plan(ctx, []enrollment.Record{{Email: "a@x.edu"}}, nil)
	assert.ErrorIs(t, err, errors.ErrCanceled)
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DuplicatesFirst, p)

	p, err = ParseDuplicatePolicy("error")
	require.NoError(t, err)
	assert.Equal(t, DuplicatesError, p)

	_, err = ParseDuplicatePolicy("last")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestIdempotentSecondPlan(t *testing.T) {
	records := []enrollment.Record{
		{ExternalID: "1", FirstName: "A", Email: "a@x.edu", Login: "a", Contributor: true},
		{ExternalID: "2", FirstName: "B", Email: "b@x.edu"},
		{FirstName: "C", Email: "c@x.edu", Contributor: true},
	}
	existing := []directory.User{
		{ID: "u2", Email: "b@x.edu", Wallets: []directory.Wallet{{ID: "w2"}}},
		{ID: "u9", Email: "lapsed@x.edu", Memberships: []directory.Membership{
			{ID: "m9", GroupID: groups.Contributor, PeriodID: groups.Period},
		}},
	}

	w := newFakeWriter()
	first, err := NewPlanner().Plan(context.Background(), records, Accounts(existing))
	require.NoError(t, err)
	for _, a := range first.Users {
		require.NoError(t, a.Apply(context.Background(), w))
	}
	memberships, err := DiffMemberships(first.Accounts, groups)
	require.NoError(t, err)
	require.NotEmpty(t, memberships)
	for _, a := range memberships {
		require.NoError(t, a.Apply(context.Background(), w))
	}

	var after []directory.User
	for _, acc := range first.Accounts {
		after = append(after, acc.User())
	}

	second, err := NewPlanner().Plan(context.Background(), records, Accounts(after))
	require.NoError(t, err)
	assert.Empty(t, second.Users)
	again, err := DiffMemberships(second.Accounts, groups)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.False(t, second.HasChanges())
}
