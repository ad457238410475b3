package reconcile

import (
	"github.com/agentstation/membersync/pkg/errors"
)

// Plan is the users-phase plan, plus the membership actions once they are
// derived.
type Plan struct {
	// Accounts are the existing accounts in listing order followed by the
	// accounts the plan creates.
	Accounts []*Account
	// Outcomes has one entry per enrollment record, in record order.
	Outcomes []Outcome
	// Users are the create and update actions, in record order.
	Users []Action
	// Memberships are the membership actions; empty until DiffMemberships
	// has run for this plan.
	Memberships []Action
	Conflicts   []*errors.ConflictError
}

// Decisions counts outcomes per decision.
func (p *Plan) Decisions() map[Decision]int {
	counts := make(map[Decision]int, 3)
	for _, o := range p.Outcomes {
		counts[o.Decision]++
	}
	return counts
}

// CountByKind counts actions per kind.
func CountByKind(actions []Action) map[Kind]int {
	counts := make(map[Kind]int)
	for _, a := range actions {
		counts[a.Kind()]++
	}
	return counts
}

// HasChanges reports whether the plan issues any write.
func (p *Plan) HasChanges() bool {
	return len(p.Users) > 0 || len(p.Memberships) > 0
}

// ActionView is the printable form of an action.
type ActionView struct {
	Kind   string `json:"kind" yaml:"kind"`
	Target string `json:"target" yaml:"target"`
	Detail string `json:"detail" yaml:"detail"`
}

// ConflictView is the printable form of a conflict.
type ConflictView struct {
	Key        string   `json:"key" yaml:"key"`
	Candidates []string `json:"candidates" yaml:"candidates"`
}

// View is the printable form of a plan.
type View struct {
	Records     int            `json:"records" yaml:"records"`
	Accounts    int            `json:"accounts" yaml:"accounts"`
	Created     int            `json:"created" yaml:"created"`
	Updated     int            `json:"updated" yaml:"updated"`
	Unchanged   int            `json:"unchanged" yaml:"unchanged"`
	Users       []ActionView   `json:"users" yaml:"users"`
	Memberships []ActionView   `json:"memberships" yaml:"memberships"`
	Conflicts   []ConflictView `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
}

// View renders the plan for output.
func (p *Plan) View() View {
	decisions := p.Decisions()
	v := View{
		Records:     len(p.Outcomes),
		Accounts:    len(p.Accounts),
		Created:     decisions[DecisionCreate],
		Updated:     decisions[DecisionUpdate],
		Unchanged:   decisions[DecisionNoop],
		Users:       Views(p.Users),
		Memberships: Views(p.Memberships),
	}
	for _, c := range p.Conflicts {
		v.Conflicts = append(v.Conflicts, ConflictView{Key: c.Key, Candidates: c.Candidates})
	}
	return v
}

// Views renders actions for output.
func Views(actions []Action) []ActionView {
	out := make([]ActionView, 0, len(actions))
	for _, a := range actions {
		out = append(out, ActionView{Kind: string(a.Kind()), Target: a.Target(), Detail: a.Describe()})
	}
	return out
}
