package directory

import (
	"strings"
	"time"
)

// Wire shapes of the membership API. Field names follow the API; they
// are converted to the canonical types right after decoding.

type loginRequest struct {
	Data        string `json:"data"`
	Password    string `json:"password"`
	MeanOfLogin string `json:"meanOfLogin"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type userDTO struct {
	ID           string          `json:"id"`
	FirstName    string          `json:"firstname"`
	LastName     string          `json:"lastname"`
	Mail         string          `json:"mail"`
	IsRemoved    bool            `json:"isRemoved"`
	Wallets      []walletDTO     `json:"wallets"`
	Memberships  []membershipDTO `json:"memberships"`
	MeansOfLogin []molDTO        `json:"meansOfLogin"`
}

type walletDTO struct {
	ID        string     `json:"id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	LogicalID *string    `json:"logical_id"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	IsRemoved bool       `json:"isRemoved,omitempty"`
}

type membershipDTO struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	GroupID   string `json:"group_id"`
	PeriodID  string `json:"period_id"`
	IsRemoved bool   `json:"isRemoved,omitempty"`
}

type molDTO struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Type      string `json:"type"`
	Data      string `json:"data"`
	IsRemoved bool   `json:"isRemoved,omitempty"`
}

type createUserDTO struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Mail      string `json:"mail"`
	Pin       string `json:"pin"`
	Password  string `json:"password"`
}

type updateUserDTO struct {
	Mail string `json:"mail"`
}

type idDTO struct {
	ID string `json:"id"`
}

func (d userDTO) toUser() User {
	u := User{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     strings.TrimSpace(d.Mail),
	}
	for _, w := range d.Wallets {
		if w.IsRemoved {
			continue
		}
		u.Wallets = append(u.Wallets, w.toWallet())
	}
	for _, m := range d.Memberships {
		if m.IsRemoved {
			continue
		}
		u.Memberships = append(u.Memberships, Membership{ID: m.ID, GroupID: m.GroupID, PeriodID: m.PeriodID})
	}
	for _, c := range d.MeansOfLogin {
		if c.IsRemoved {
			continue
		}
		u.Credentials = append(u.Credentials, Credential{ID: c.ID, Type: c.Type, Data: c.Data})
	}
	return u
}

func (d walletDTO) toWallet() Wallet {
	w := Wallet{ID: d.ID}
	if d.LogicalID != nil {
		w.LogicalID = strings.TrimSpace(*d.LogicalID)
	}
	if d.CreatedAt != nil {
		w.CreatedAt = *d.CreatedAt
	}
	return w
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
