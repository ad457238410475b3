package directory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimaryWallet(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no wallets", func(t *testing.T) {
		u := &User{}
		assert.Nil(t, u.PrimaryWallet())
	})

	t.Run("earliest created wins", func(t *testing.T) {
		u := &User{Wallets: []Wallet{
			{ID: "w2", CreatedAt: t0.Add(time.Hour)},
			{ID: "w1", CreatedAt: t0},
			{ID: "w3", CreatedAt: t0.Add(2 * time.Hour)},
		}}
		require.NotNil(t, u.PrimaryWallet())
		assert.Equal(t, "w1", u.PrimaryWallet().ID)
	})

	t.Run("listing order without timestamps", func(t *testing.T) {
		u := &User{Wallets: []Wallet{{ID: "a"}, {ID: "b"}}}
		assert.Equal(t, "a", u.PrimaryWallet().ID)
	})

	t.Run("pointer aliases the slice element", func(t *testing.T) {
		u := &User{Wallets: []Wallet{{ID: "a"}}}
		u.PrimaryWallet().LogicalID = "22000000123"
		assert.True(t, u.Wallets[0].Bound())
	})
}

func TestUserLookups(t *testing.T) {
	u := &User{
		Wallets: []Wallet{{ID: "w1"}, {ID: "w2", LogicalID: "22000000123"}},
		Credentials: []Credential{
			{ID: "c1", Type: "etuMail", Data: "a@x.edu"},
			{ID: "c2", Type: "etuLogin", Data: "alice"},
		},
		Memberships: []Membership{
			{ID: "m1", GroupID: "contrib", PeriodID: "p1"},
			{ID: "m2", GroupID: "contrib", PeriodID: "p0"},
			{ID: "m3", GroupID: "noncontrib", PeriodID: "p1"},
		},
	}

	assert.True(t, u.HasWalletBoundTo("22000000123"))
	assert.False(t, u.HasWalletBoundTo(""))
	assert.False(t, u.HasWalletBoundTo("22000000999"))

	require.NotNil(t, u.Credential("etuLogin"))
	assert.Equal(t, "alice", u.Credential("etuLogin").Data)
	assert.Nil(t, u.Credential("etuId"))

	rows := u.MembershipsIn("contrib", "p1")
	require.Len(t, rows, 1)
	assert.Equal(t, "m1", rows[0].ID)
	assert.Empty(t, u.MembershipsIn("contrib", "p9"))
}
