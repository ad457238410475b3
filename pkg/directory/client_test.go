package directory_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/membersync/pkg/directory"
	"github.com/agentstation/membersync/pkg/directory/directorytest"
	"github.com/agentstation/membersync/pkg/errors"
)

var admin = directory.Credentials{Login: "admin@x.edu", Password: "pw", MeanOfLogin: "etuMail"}

func newClient(t *testing.T) (*directory.Client, *directorytest.Server) {
	t.Helper()
	server := directorytest.NewServer(admin.Login, admin.Password)
	t.Cleanup(server.Close)

	client, err := directory.NewClient(server.URL)
	require.NoError(t, err)
	return client, server
}

func TestLogin(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		client, server := newClient(t)
		token, err := client.Login(context.Background(), admin)
		require.NoError(t, err)
		assert.Equal(t, server.Token, token)
	})

	t.Run("rejected", func(t *testing.T) {
		client, _ := newClient(t)
		bad := admin
		bad.Password = "wrong"
		_, err := client.Login(context.Background(), bad)
		require.Error(t, err)

		var authErr *errors.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
		assert.True(t, errors.IsUnauthorized(err))
	})

	t.Run("calls before login are rejected", func(t *testing.T) {
		client, _ := newClient(t)
		_, err := client.ListUsers(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrFetch)
	})
}

func TestListUsers(t *testing.T) {
	client, server := newClient(t)
	server.AddUser(directorytest.User{
		FirstName: "Alice",
		LastName:  "Martin",
		Mail:      " a@x.edu ",
		Wallets:   []directorytest.Wallet{{LogicalID: directorytest.StringPtr("22000000123")}, {}},
		Memberships: []directorytest.Membership{
			{GroupID: "contrib", PeriodID: "p1"},
		},
		MeansOfLogin: []directorytest.MeanOfLogin{{Type: "etuMail", Data: "a@x.edu"}},
	})
	server.AddUser(directorytest.User{Mail: "gone@x.edu", IsRemoved: true})

	_, err := client.Login(context.Background(), admin)
	require.NoError(t, err)

	users, err := client.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)

	u := users[0]
	assert.Equal(t, "a@x.edu", u.Email)
	require.Len(t, u.Wallets, 2)
	assert.Equal(t, "22000000123", u.Wallets[0].LogicalID)
	assert.False(t, u.Wallets[1].Bound())
	require.Len(t, u.Memberships, 1)
	assert.Equal(t, "contrib", u.Memberships[0].GroupID)
	require.NotNil(t, u.Credential("etuMail"))
}

func TestListUsersFailure(t *testing.T) {
	client, server := newClient(t)
	_, err := client.Login(context.Background(), admin)
	require.NoError(t, err)

	server.FailWith("GET /crud/users", http.StatusInternalServerError)
	_, err = client.ListUsers(context.Background())

	var fetchErr *errors.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 500, fetchErr.StatusCode)
	assert.Equal(t, -1, fetchErr.Page)
}

func TestWrites(t *testing.T) {
	ctx := context.Background()
	client, server := newClient(t)
	_, err := client.Login(ctx, admin)
	require.NoError(t, err)

	id, err := client.CreateUser(ctx, directory.NewUser{FirstName: "Bob", LastName: "Roy", Email: "b@x.edu", PIN: "p", Password: "p"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	wallet, err := client.CreateWallet(ctx, id, "")
	require.NoError(t, err)
	assert.False(t, wallet.Bound())
	require.NoError(t, client.UpdateWallet(ctx, wallet.ID, "22000000456"))

	credID, err := client.AddCredential(ctx, id, directory.Credential{Type: "etuLogin", Data: "bob"})
	require.NoError(t, err)
	require.NoError(t, client.UpdateCredential(ctx, credID, directory.Credential{Type: "etuLogin", Data: "broy"}))
	require.NoError(t, client.UpdateUserEmail(ctx, id, "bob@x.edu"))

	membershipID, err := client.AddMembership(ctx, id, "contrib", "p1")
	require.NoError(t, err)
	_, err = client.AddMembership(ctx, id, "noncontrib", "p1")
	require.NoError(t, err)
	require.NoError(t, client.RemoveMembership(ctx, membershipID))

	stored, ok := server.UserByMail("bob@x.edu")
	require.True(t, ok)
	require.Len(t, stored.Wallets, 1)
	assert.Equal(t, "22000000456", *stored.Wallets[0].LogicalID)
	require.Len(t, stored.MeansOfLogin, 1)
	assert.Equal(t, "broy", stored.MeansOfLogin[0].Data)
	require.Len(t, stored.Memberships, 1)
	assert.Equal(t, "noncontrib", stored.Memberships[0].GroupID)
}

func TestWriteErrors(t *testing.T) {
	ctx := context.Background()
	client, server := newClient(t)
	_, err := client.Login(ctx, admin)
	require.NoError(t, err)

	server.FailWith("POST /crud/memberships", http.StatusTooManyRequests)
	_, err = client.AddMembership(ctx, "u1", "contrib", "p1")

	var writeErr *errors.WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, directory.OpAddMembership, writeErr.Operation)
	assert.Equal(t, "u1/contrib", writeErr.Target)
	assert.Equal(t, 429, writeErr.StatusCode)
	assert.True(t, errors.IsRetryable(err))

	err = client.RemoveMembership(ctx, "missing")
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, 404, writeErr.StatusCode)
	assert.False(t, errors.IsRetryable(err))
}
