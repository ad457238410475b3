package reconcile

import (
	"context"
	"fmt"
	"slices"

	"github.com/agentstation/membersync/pkg/constants"
	"github.com/agentstation/membersync/pkg/directory"
	"github.com/agentstation/membersync/pkg/errors"
)

// Kind tags an action variant. Kinds double as the operation names of the
// directory writes they issue.
type Kind string

// Action kinds.
const (
	KindCreateUser       Kind = directory.OpCreateUser
	KindCreateWallet     Kind = directory.OpCreateWallet
	KindBindWallet       Kind = directory.OpUpdateWallet
	KindUpdateEmail      Kind = directory.OpUpdateUserEmail
	KindAddCredential    Kind = directory.OpAddCredential
	KindUpdateCredential Kind = directory.OpUpdateCredential
	KindAddMembership    Kind = directory.OpAddMembership
	KindRemoveMembership Kind = directory.OpRemoveMembership
)

// UserKinds are the kinds the users phase emits.
var UserKinds = []Kind{
	KindCreateUser, KindCreateWallet, KindBindWallet, KindUpdateEmail,
	KindAddCredential, KindUpdateCredential,
}

// MembershipKinds are the kinds the membership phase emits.
var MembershipKinds = []Kind{KindAddMembership, KindRemoveMembership}

// Action is one pending directory write. Apply issues it and, on success,
// records its effect on the account it targets.
type Action interface {
	Kind() Kind
	// Target names the account (id, or email before creation).
	Target() string
	// Describe is a one-line human summary for plans and logs.
	Describe() string
	Apply(ctx context.Context, w directory.Writer) error
}

func requireID(acc *Account, kind Kind) (string, error) {
	id := acc.ID()
	if id == "" {
		return "", errors.NewWriteError(string(kind), acc.Ref(),
			errors.NewValidationError("user_id", nil, "user has no directory id yet"))
	}
	return id, nil
}

// CreateUser creates a user, then its primary wallet and its credentials.
// The steps run in order because each needs the id the first returns.
type CreateUser struct {
	Account     *Account
	User        directory.NewUser
	LogicalID   string
	Credentials []directory.Credential
}

// Kind implements Action.
func (a *CreateUser) Kind() Kind { return KindCreateUser }

// Target implements Action.
func (a *CreateUser) Target() string { return a.Account.Ref() }

// Describe implements Action.
func (a *CreateUser) Describe() string {
	s := fmt.Sprintf("create user %s %s <%s>", a.User.FirstName, a.User.LastName, a.User.Email)
	if a.LogicalID != "" {
		s += " with wallet " + a.LogicalID
	}
	return s
}

// Apply implements Action. A user whose creation already succeeded is
// not created again, so a retried action resumes at the failed step.
func (a *CreateUser) Apply(ctx context.Context, w directory.Writer) error {
	id := a.Account.ID()
	if id == "" {
		created, err := w.CreateUser(ctx, a.User)
		if err != nil {
			return err
		}
		id = created
		a.Account.update(func(u *directory.User) { u.ID = id })
	}

	if len(a.Account.User().Wallets) == 0 {
		wallet, err := w.CreateWallet(ctx, id, a.LogicalID)
		if err != nil {
			return err
		}
		a.Account.update(func(u *directory.User) { u.Wallets = append(u.Wallets, wallet) })
	}

	for _, cred := range a.Credentials {
		if u := a.Account.User(); u.Credential(cred.Type) != nil {
			continue
		}
		credID, err := w.AddCredential(ctx, id, cred)
		if err != nil {
			return err
		}
		cred.ID = credID
		a.Account.update(func(u *directory.User) { u.Credentials = append(u.Credentials, cred) })
	}
	return nil
}

// CreateWallet gives an existing user its first wallet.
type CreateWallet struct {
	Account   *Account
	LogicalID string
}

// Kind implements Action.
func (a *CreateWallet) Kind() Kind { return KindCreateWallet }

// Target implements Action.
func (a *CreateWallet) Target() string { return a.Account.Ref() }

// Describe implements Action.
func (a *CreateWallet) Describe() string {
	if a.LogicalID == "" {
		return "create unbound wallet"
	}
	return "create wallet bound to " + a.LogicalID
}

// Apply implements Action.
func (a *CreateWallet) Apply(ctx context.Context, w directory.Writer) error {
	id, err := requireID(a.Account, a.Kind())
	if err != nil {
		return err
	}
	wallet, err := w.CreateWallet(ctx, id, a.LogicalID)
	if err != nil {
		return err
	}
	a.Account.update(func(u *directory.User) { u.Wallets = append(u.Wallets, wallet) })
	return nil
}

// BindWallet binds the primary wallet to an external identity.
type BindWallet struct {
	Account   *Account
	WalletID  string
	LogicalID string
}

// Kind implements Action.
func (a *BindWallet) Kind() Kind { return KindBindWallet }

// Target implements Action.
func (a *BindWallet) Target() string { return a.Account.Ref() }

// Describe implements Action.
func (a *BindWallet) Describe() string {
	return fmt.Sprintf("bind wallet %s to %s", a.WalletID, a.LogicalID)
}

// Apply implements Action.
func (a *BindWallet) Apply(ctx context.Context, w directory.Writer) error {
	if err := w.UpdateWallet(ctx, a.WalletID, a.LogicalID); err != nil {
		return err
	}
	a.Account.update(func(u *directory.User) {
		for i := range u.Wallets {
			if u.Wallets[i].ID == a.WalletID {
				u.Wallets[i].LogicalID = a.LogicalID
			}
		}
	})
	return nil
}

// UpdateEmail replaces a user's stored email.
type UpdateEmail struct {
	Account *Account
	From    string
	Email   string
}

// Kind implements Action.
func (a *UpdateEmail) Kind() Kind { return KindUpdateEmail }

// Target implements Action.
func (a *UpdateEmail) Target() string { return a.Account.Ref() }

// Describe implements Action.
func (a *UpdateEmail) Describe() string {
	return fmt.Sprintf("update email %s -> %s", a.From, a.Email)
}

// Apply implements Action.
func (a *UpdateEmail) Apply(ctx context.Context, w directory.Writer) error {
	id, err := requireID(a.Account, a.Kind())
	if err != nil {
		return err
	}
	if err := w.UpdateUserEmail(ctx, id, a.Email); err != nil {
		return err
	}
	a.Account.update(func(u *directory.User) { u.Email = a.Email })
	return nil
}

// AddCredential attaches a missing credential record.
type AddCredential struct {
	Account    *Account
	Credential directory.Credential
}

// Kind implements Action.
func (a *AddCredential) Kind() Kind { return KindAddCredential }

// Target implements Action.
func (a *AddCredential) Target() string { return a.Account.Ref() }

// Describe implements Action.
func (a *AddCredential) Describe() string {
	return fmt.Sprintf("add credential %s=%s", a.Credential.Type, a.Credential.Data)
}

// Apply implements Action.
func (a *AddCredential) Apply(ctx context.Context, w directory.Writer) error {
	id, err := requireID(a.Account, a.Kind())
	if err != nil {
		return err
	}
	credID, err := w.AddCredential(ctx, id, a.Credential)
	if err != nil {
		return err
	}
	cred := a.Credential
	cred.ID = credID
	a.Account.update(func(u *directory.User) { u.Credentials = append(u.Credentials, cred) })
	return nil
}

// UpdateCredential corrects the payload of an existing credential record.
type UpdateCredential struct {
	Account    *Account
	Credential directory.Credential // ID names the record to update
	From       string
}

// Kind implements Action.
func (a *UpdateCredential) Kind() Kind { return KindUpdateCredential }

// Target implements Action.
func (a *UpdateCredential) Target() string { return a.Account.Ref() }

// Describe implements Action.
func (a *UpdateCredential) Describe() string {
	return fmt.Sprintf("update credential %s %s -> %s", a.Credential.Type, a.From, a.Credential.Data)
}

// Apply implements Action.
func (a *UpdateCredential) Apply(ctx context.Context, w directory.Writer) error {
	if err := w.UpdateCredential(ctx, a.Credential.ID, a.Credential); err != nil {
		return err
	}
	a.Account.update(func(u *directory.User) {
		for i := range u.Credentials {
			if u.Credentials[i].ID == a.Credential.ID {
				u.Credentials[i].Data = a.Credential.Data
			}
		}
	})
	return nil
}

// AddMembership places a user in a group for a period.
type AddMembership struct {
	Account  *Account
	GroupID  string
	PeriodID string
	Role     string // "contributor" or "non-contributor"
}

// Kind implements Action.
func (a *AddMembership) Kind() Kind { return KindAddMembership }

// Target implements Action.
func (a *AddMembership) Target() string { return a.Account.Ref() }

// Describe implements Action.
func (a *AddMembership) Describe() string {
	return fmt.Sprintf("add to %s group %s (period %s)", a.Role, a.GroupID, a.PeriodID)
}

// Apply implements Action.
func (a *AddMembership) Apply(ctx context.Context, w directory.Writer) error {
	id, err := requireID(a.Account, a.Kind())
	if err != nil {
		return err
	}
	rowID, err := w.AddMembership(ctx, id, a.GroupID, a.PeriodID)
	if err != nil {
		return err
	}
	a.Account.update(func(u *directory.User) {
		u.Memberships = append(u.Memberships, directory.Membership{ID: rowID, GroupID: a.GroupID, PeriodID: a.PeriodID})
	})
	return nil
}

// RemoveMembership deletes one membership row.
type RemoveMembership struct {
	Account      *Account
	MembershipID string
	GroupID      string
	PeriodID     string
}

// Kind implements Action.
func (a *RemoveMembership) Kind() Kind { return KindRemoveMembership }

// Target implements Action.
func (a *RemoveMembership) Target() string { return a.Account.Ref() }

// Describe implements Action.
func (a *RemoveMembership) Describe() string {
	return fmt.Sprintf("remove from contributor group %s (period %s, row %s)", a.GroupID, a.PeriodID, a.MembershipID)
}

// Apply implements Action.
func (a *RemoveMembership) Apply(ctx context.Context, w directory.Writer) error {
	if err := w.RemoveMembership(ctx, a.MembershipID); err != nil {
		return err
	}
	a.Account.update(func(u *directory.User) {
		u.Memberships = slices.DeleteFunc(u.Memberships, func(m directory.Membership) bool {
			return m.ID == a.MembershipID
		})
	})
	return nil
}

// recordCredentials lists the credentials an enrollment record implies,
// in a fixed order.
func recordCredentials(email, externalID, login string) []directory.Credential {
	var creds []directory.Credential
	if email != "" {
		creds = append(creds, directory.Credential{Type: constants.CredentialEmail, Data: email})
	}
	if externalID != "" {
		creds = append(creds, directory.Credential{Type: constants.CredentialNumericID, Data: externalID})
	}
	if login != "" {
		creds = append(creds, directory.Credential{Type: constants.CredentialLogin, Data: login})
	}
	return creds
}
