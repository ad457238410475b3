package reconcile

import (
	"context"

	"github.com/agentstation/membersync/pkg/constants"
	"github.com/agentstation/membersync/pkg/directory"
	"github.com/agentstation/membersync/pkg/enrollment"
	"github.com/agentstation/membersync/pkg/errors"
	"github.com/agentstation/membersync/pkg/logging"
)

// DuplicatePolicy decides what an ambiguous match does to the plan.
type DuplicatePolicy string

const (
	// DuplicatesFirst keeps the first match in collection order and
	// reports the others as conflicts.
	DuplicatesFirst DuplicatePolicy = "first"
	// DuplicatesError fails the plan on the first ambiguous match.
	DuplicatesError DuplicatePolicy = "error"
)

// ParseDuplicatePolicy validates a policy name. Empty means DuplicatesFirst.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DuplicatesFirst:
		return DuplicatesFirst, nil
	case DuplicatesError:
		return DuplicatesError, nil
	}
	return "", errors.NewValidationError("matching.duplicates", s, `must be "first" or "error"`)
}

// Decision is what the plan does for one enrollment record.
type Decision string

// Exactly one decision is made per record.
const (
	DecisionCreate Decision = "create"
	DecisionUpdate Decision = "update"
	DecisionNoop   Decision = "noop"
)

// Outcome is the plan for one enrollment record.
type Outcome struct {
	Record   enrollment.Record
	Decision Decision
	MatchBy  MatchBy
	Account  *Account
	Actions  []Action
	// Reason explains a no-op that is not an up-to-date user.
	Reason string
}

// Option configures a Planner.
type Option func(*Planner)

// WithDuplicatePolicy sets how ambiguous matches are handled.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(pl *Planner) {
		if p != "" {
			pl.duplicates = p
		}
	}
}

// Planner builds the users-phase plan.
type Planner struct {
	duplicates DuplicatePolicy
}

// NewPlanner creates a planner.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{duplicates: DuplicatesFirst}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan walks the records in order against accounts. It returns the
// per-record outcomes and tags every account, including the ones it plans
// to create, with a desired contributor state. Planned accounts are
// appended to the plan's account list after the existing ones.
func (p *Planner) Plan(ctx context.Context, records []enrollment.Record, accounts []*Account) (*Plan, error) {
	log := logging.FromContext(ctx)
	plan := &Plan{Accounts: append([]*Account(nil), accounts...)}
	matcher := NewMatcher(accounts)

	pendingByID := map[string]*Account{}
	pendingByEmail := map[string]*Account{}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, errors.Join(errors.ErrCanceled, err)
		}

		match := matcher.Match(rec)
		if match.Conflict != nil {
			if err := p.conflict(ctx, plan, match.Conflict); err != nil {
				return nil, err
			}
		}

		var out Outcome
		switch {
		case match.Account != nil && match.Account.Record() != nil:
			acc := match.Account
			conflict := &errors.ConflictError{Key: "user:" + acc.Ref(), Candidates: []string{acc.Record().Key(), rec.Key()}}
			if err := p.conflict(ctx, plan, conflict); err != nil {
				return nil, err
			}
			out = Outcome{Record: rec, Decision: DecisionNoop, MatchBy: match.By, Account: acc, Reason: "user already matched by an earlier record"}
		case match.Account != nil:
			out = planMatched(rec, match)
		default:
			if dup := pendingDuplicate(rec, pendingByID, pendingByEmail); dup != nil {
				conflict := &errors.ConflictError{Key: "record:" + rec.Key(), Candidates: []string{dup.Ref(), rec.Key()}}
				if err := p.conflict(ctx, plan, conflict); err != nil {
					return nil, err
				}
				out = Outcome{Record: rec, Decision: DecisionNoop, Account: dup, Reason: "duplicate of a record planned for creation"}
				break
			}
			if rec.Email == "" {
				log.Warn().Str("record", rec.Key()).Msg("Enrollment record has no email, not creating a user")
				out = Outcome{Record: rec, Decision: DecisionNoop, Reason: "no email to create a user with"}
				break
			}
			out = planCreate(rec)
			plan.Accounts = append(plan.Accounts, out.Account)
			if rec.HasExternalID() {
				pendingByID[rec.ExternalID] = out.Account
			}
			pendingByEmail[EmailKey(rec.Email)] = out.Account
		}

		plan.Outcomes = append(plan.Outcomes, out)
		plan.Users = append(plan.Users, out.Actions...)
	}

	for _, acc := range accounts {
		if acc.Record() == nil {
			acc.SetContributor(false)
		}
	}

	log.Debug().
		Int("records", len(records)).
		Int("accounts", len(plan.Accounts)).
		Int("actions", len(plan.Users)).
		Int("conflicts", len(plan.Conflicts)).
		Msg("Users plan built")
	return plan, nil
}

func (p *Planner) conflict(ctx context.Context, plan *Plan, c *errors.ConflictError) error {
	if p.duplicates == DuplicatesError {
		return c
	}
	logging.FromContext(ctx).Warn().Str("key", c.Key).Strs("candidates", c.Candidates).Msg("Ambiguous match, keeping the first")
	plan.Conflicts = append(plan.Conflicts, c)
	return nil
}

func pendingDuplicate(rec enrollment.Record, byID, byEmail map[string]*Account) *Account {
	if rec.HasExternalID() {
		if acc, ok := byID[rec.ExternalID]; ok {
			return acc
		}
	}
	if key := EmailKey(rec.Email); key != "" {
		return byEmail[key]
	}
	return nil
}

func planCreate(rec enrollment.Record) Outcome {
	acc := newPlannedAccount(rec)
	acc.SetContributor(rec.Contributor)
	action := &CreateUser{
		Account: acc,
		User: directory.NewUser{
			FirstName: rec.FirstName,
			LastName:  rec.LastName,
			Email:     rec.Email,
			PIN:       constants.PlaceholderPIN,
			Password:  constants.PlaceholderPassword,
		},
		LogicalID:   rec.ExternalID,
		Credentials: recordCredentials(rec.Email, rec.ExternalID, rec.Login),
	}
	return Outcome{Record: rec, Decision: DecisionCreate, Account: acc, Actions: []Action{action}}
}

func planMatched(rec enrollment.Record, match Match) Outcome {
	acc := match.Account
	out := Outcome{Record: rec, MatchBy: match.By, Account: acc}

	acc.claim(rec)
	acc.SetContributor(rec.Contributor)

	u := acc.User()
	switch primary := u.PrimaryWallet(); {
	case primary == nil:
		out.Actions = append(out.Actions, &CreateWallet{Account: acc, LogicalID: rec.ExternalID})
	case rec.HasExternalID() && !primary.Bound() && !u.HasWalletBoundTo(rec.ExternalID):
		out.Actions = append(out.Actions, &BindWallet{Account: acc, WalletID: primary.ID, LogicalID: rec.ExternalID})
	}

	if rec.Email != "" && u.Email != rec.Email {
		out.Actions = append(out.Actions, &UpdateEmail{Account: acc, From: u.Email, Email: rec.Email})
	}

	for _, want := range recordCredentials(rec.Email, rec.ExternalID, rec.Login) {
		have := u.Credential(want.Type)
		switch {
		case have == nil:
			out.Actions = append(out.Actions, &AddCredential{Account: acc, Credential: want})
		case have.Data != want.Data:
			want.ID = have.ID
			out.Actions = append(out.Actions, &UpdateCredential{Account: acc, Credential: want, From: have.Data})
		}
	}

	if len(out.Actions) > 0 {
		out.Decision = DecisionUpdate
	} else {
		out.Decision = DecisionNoop
	}
	return out
}
