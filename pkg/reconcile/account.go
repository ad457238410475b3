// Package reconcile turns enrollment records and directory users into a
// plan of directory writes: it pairs records with users, decides which
// users to create or correct, and derives the group membership changes
// that follow from each user's desired contributor state.
package reconcile

import (
	"sync"

	"github.com/agentstation/membersync/pkg/directory"
	"github.com/agentstation/membersync/pkg/enrollment"
)

// Desired is the contributor state a run wants a user to end in.
type Desired int

const (
	// DesiredUnknown means no decision was made; the membership phase
	// refuses to run with such a user.
	DesiredUnknown Desired = iota
	// DesiredContributor puts the user in the contributor group.
	DesiredContributor
	// DesiredNonContributor keeps the user out of the contributor group.
	DesiredNonContributor
)

// String implements fmt.Stringer.
func (d Desired) String() string {
	switch d {
	case DesiredContributor:
		return "contributor"
	case DesiredNonContributor:
		return "non-contributor"
	default:
		return "unknown"
	}
}

// Groups names the membership groups and the active period a run works on.
type Groups struct {
	Contributor    string
	NonContributor string
	Period         string
}

// Account is a directory user as the run sees it: the user itself, the
// record it was matched with, and the desired contributor state.
//
// Actions update the embedded user when their write succeeds, so after
// the users phase the collection reflects what the directory now holds.
type Account struct {
	mu sync.Mutex

	user    *directory.User
	record  *enrollment.Record
	planned bool
	desired Desired
}

// NewAccount wraps an existing directory user.
func NewAccount(u directory.User) *Account {
	return &Account{user: &u}
}

func newPlannedAccount(rec enrollment.Record) *Account {
	return &Account{
		user: &directory.User{
			FirstName: rec.FirstName,
			LastName:  rec.LastName,
			Email:     rec.Email,
		},
		record:  &rec,
		planned: true,
	}
}

// User returns a copy of the account's current user state.
func (a *Account) User() directory.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := *a.user
	u.Wallets = append([]directory.Wallet(nil), a.user.Wallets...)
	u.Credentials = append([]directory.Credential(nil), a.user.Credentials...)
	u.Memberships = append([]directory.Membership(nil), a.user.Memberships...)
	return u
}

// ID returns the directory id, empty for a user not created yet.
func (a *Account) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.ID
}

// Ref names the account in logs and plans: its id once known, its email
// before that.
func (a *Account) Ref() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user.ID != "" {
		return a.user.ID
	}
	return a.user.Email
}

// Record returns the enrollment record the account was matched with, or
// nil for a directory user no record claimed.
func (a *Account) Record() *enrollment.Record {
	return a.record
}

// Planned reports whether the account is created by this run.
func (a *Account) Planned() bool {
	return a.planned
}

// Desired returns the desired contributor state.
func (a *Account) Desired() Desired {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.desired
}

// SetContributor records the desired contributor state.
func (a *Account) SetContributor(contributor bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if contributor {
		a.desired = DesiredContributor
	} else {
		a.desired = DesiredNonContributor
	}
}

func (a *Account) claim(rec enrollment.Record) {
	a.record = &rec
}

func (a *Account) update(fn func(u *directory.User)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a.user)
}

// Accounts wraps every directory user, in listing order.
func Accounts(users []directory.User) []*Account {
	out := make([]*Account, 0, len(users))
	for _, u := range users {
		out = append(out, NewAccount(u))
	}
	return out
}
