// Package directory holds the canonical view of the membership API (the
// consuming system) and a client for it. Users, their wallets, credential
// records and group memberships are parsed from the wire DTOs once, at
// the boundary, and the rest of the job only sees these types.
package directory

import (
	"slices"
	"time"
)

// Credential is a typed identity proof attached to a user, such as the
// institutional email or the student number.
type Credential struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Type string `json:"type" yaml:"type"`
	Data string `json:"data" yaml:"data"`
}

// Wallet is optionally bound to an external logical identity. An empty
// LogicalID means the wallet is unbound.
type Wallet struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	LogicalID string    `json:"logicalId,omitempty" yaml:"logicalId,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`
}

// Bound reports whether the wallet carries an external identity.
func (w Wallet) Bound() bool {
	return w.LogicalID != ""
}

// Membership is one row linking a user to a group for a period.
type Membership struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	GroupID  string `json:"groupId" yaml:"groupId"`
	PeriodID string `json:"periodId" yaml:"periodId"`
}

// User is a directory account with its embedded collections.
type User struct {
	ID          string       `json:"id,omitempty" yaml:"id,omitempty"`
	FirstName   string       `json:"firstName" yaml:"firstName"`
	LastName    string       `json:"lastName" yaml:"lastName"`
	Email       string       `json:"email" yaml:"email"`
	Credentials []Credential `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Wallets     []Wallet     `json:"wallets,omitempty" yaml:"wallets,omitempty"`
	Memberships []Membership `json:"memberships,omitempty" yaml:"memberships,omitempty"`
}

// PrimaryWallet returns the first-created wallet, or nil when the user has
// none. Wallets without a creation time keep their listing order.
func (u *User) PrimaryWallet() *Wallet {
	if len(u.Wallets) == 0 {
		return nil
	}
	primary := 0
	for i := 1; i < len(u.Wallets); i++ {
		w, p := u.Wallets[i].CreatedAt, u.Wallets[primary].CreatedAt
		if !w.IsZero() && (p.IsZero() || w.Before(p)) {
			primary = i
		}
	}
	return &u.Wallets[primary]
}

// HasWalletBoundTo reports whether any of the user's wallets is bound to logicalID.
func (u *User) HasWalletBoundTo(logicalID string) bool {
	if logicalID == "" {
		return false
	}
	return slices.ContainsFunc(u.Wallets, func(w Wallet) bool {
		return w.LogicalID == logicalID
	})
}

// Credential returns the first credential of the given type, or nil.
func (u *User) Credential(kind string) *Credential {
	for i := range u.Credentials {
		if u.Credentials[i].Type == kind {
			return &u.Credentials[i]
		}
	}
	return nil
}

// MembershipsIn returns the rows placing the user in group for period.
func (u *User) MembershipsIn(groupID, periodID string) []Membership {
	var rows []Membership
	for _, m := range u.Memberships {
		if m.GroupID == groupID && m.PeriodID == periodID {
			rows = append(rows, m)
		}
	}
	return rows
}

// NewUser holds the fields sent when creating a user.
type NewUser struct {
	FirstName string
	LastName  string
	Email     string
	PIN       string
	Password  string
}

// Credentials identify the admin account the job logs in with.
type Credentials struct {
	Login       string
	Password    string
	MeanOfLogin string
}
