package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentstation/membersync/pkg/directory"
	"github.com/agentstation/membersync/pkg/enrollment"
	"github.com/agentstation/membersync/pkg/errors"
)

var groups = Groups{Contributor: "g-contrib", NonContributor: "g-noncontrib", Period: "p-2026"}

// fakeWriter records writes and hands out sequential ids.
type fakeWriter struct {
	mu     sync.Mutex
	next   int
	calls  []string
	failOn map[string]error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{failOn: map[string]error{}}
}

func (w *fakeWriter) record(op string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, op)
	if err, ok := w.failOn[op]; ok {
		return "", errors.NewWriteError(op, "test", err)
	}
	w.next++
	return fmt.Sprintf("id-%d", w.next), nil
}

func (w *fakeWriter) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func (w *fakeWriter) CreateUser(context.Context, directory.NewUser) (string, error) {
	return w.record(directory.OpCreateUser)
}

func (w *fakeWriter) UpdateUserEmail(context.Context, string, string) error {
	_, err := w.record(directory.OpUpdateUserEmail)
	return err
}

func (w *fakeWriter) CreateWallet(_ context.Context, _ string, logicalID string) (directory.Wallet, error) {
	id, err := w.record(directory.OpCreateWallet)
	return directory.Wallet{ID: id, LogicalID: logicalID}, err
}

func (w *fakeWriter) UpdateWallet(context.Context, string, string) error {
	_, err := w.record(directory.OpUpdateWallet)
	return err
}

func (w *fakeWriter) AddCredential(context.Context, string, directory.Credential) (string, error) {
	return w.record(directory.OpAddCredential)
}

func (w *fakeWriter) UpdateCredential(context.Context, string, directory.Credential) error {
	_, err := w.record(directory.OpUpdateCredential)
	return err
}

func (w *fakeWriter) AddMembership(context.Context, string, string, string) (string, error) {
	return w.record(directory.OpAddMembership)
}

func (w *fakeWriter) RemoveMembership(context.Context, string) error {
	_, err := w.record(directory.OpRemoveMembership)
	return err
}

var _ directory.Writer = (*fakeWriter)(nil)

// syncedUser is a directory user fully in line with rec.
func syncedUser(id string, rec enrollment.Record) directory.User {
	u := directory.User{
		ID:        id,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		Email:     rec.Email,
		Wallets:   []directory.Wallet{{ID: "w-" + id, LogicalID: rec.ExternalID}},
		Memberships: []directory.Membership{
			{ID: "m-n-" + id, GroupID: groups.NonContributor, PeriodID: groups.Period},
		},
	}
	if rec.Contributor {
		u.Memberships = append(u.Memberships, directory.Membership{ID: "m-c-" + id, GroupID: groups.Contributor, PeriodID: groups.Period})
	}
	for i, c := range recordCredentials(rec.Email, rec.ExternalID, rec.Login) {
		c.ID = fmt.Sprintf("c-%s-%d", id, i)
		u.Credentials = append(u.Credentials, c)
	}
	return u
}

func kinds(actions []Action) []Kind {
	out := make([]Kind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind())
	}
	return out
}
