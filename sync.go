package membersync

import (
	"context"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/agentstation/membersync/pkg/directory"
	"github.com/agentstation/membersync/pkg/enrollment"
	"github.com/agentstation/membersync/pkg/errors"
	"github.com/agentstation/membersync/pkg/logging"
	"github.com/agentstation/membersync/pkg/reconcile"
)

// RunContext is the state of one run. The orchestrator owns it and hands
// it from phase to phase; nothing else holds on to it.
type RunContext struct {
	ID      string
	Now     time.Time
	DryRun  bool
	Token   string
	Records []enrollment.Record
	// Accounts are the directory users as fetched, then, once planned,
	// the accounts the plan creates.
	Accounts []*reconcile.Account
	Plan     *reconcile.Plan
	Result   *Result
}

// Sync runs a full reconciliation. Any phase failure stops the run and is
// returned as an *errors.PhaseError; the Result reports what happened up
// to that point.
func (s *Syncer) Sync(ctx context.Context, opts ...SyncOption) (*Result, error) {
	// Step 0: Set context
	if ctx == nil {
		ctx = context.Background()
	}

	// Step 1: Parse options
	options := NewSyncOptions(opts...)

	// Step 2: Setup context with timeout
	var cancel context.CancelFunc
	if options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
	} else {
		cancel = func() {}
	}
	defer cancel()

	// Step 3: Start the run with a single "now"
	run := &RunContext{
		ID:     ksuid.New().String(),
		Now:    s.now(),
		DryRun: options.DryRun,
	}
	run.Result = newResult(run)
	ctx = logging.WithRunID(ctx, run.ID)
	defer run.Result.finish()

	// Step 4: Walk the phases in order, stopping at the first failure
	phases := []struct {
		phase errors.Phase
		fn    func(context.Context, *RunContext) error
	}{
		{errors.PhaseLogin, s.login},
		{errors.PhaseDirectory, s.fetchDirectory},
		{errors.PhaseEnrollment, s.fetchEnrollment},
		{errors.PhasePlan, s.plan},
		{errors.PhaseUsers, s.applyUsers},
		{errors.PhaseMembership, s.applyMemberships},
	}
	for _, p := range phases {
		if err := s.runPhase(ctx, run, p.phase, p.fn); err != nil {
			run.Result.Err = err
			return run.Result, err
		}
	}

	// Step 5: Done
	logging.FromContext(ctx).Info().
		Bool("dry_run", run.DryRun).
		Int("user_writes", run.Result.UserWrites()).
		Int("membership_writes", run.Result.MembershipWrites()).
		Dur("took", time.Since(run.Result.StartedAt)).
		Msg("Sync done.")
	return run.Result, nil
}

// Plan runs the read and plan phases only, including the membership diff
// against the planned state, and writes nothing.
func (s *Syncer) Plan(ctx context.Context, opts ...SyncOption) (*Result, error) {
	return s.Sync(ctx, append(opts, WithDryRun(true))...)
}

func (s *Syncer) runPhase(ctx context.Context, run *RunContext, phase errors.Phase, fn func(context.Context, *RunContext) error) error {
	ctx = logging.WithPhase(ctx, string(phase))
	start := time.Now()
	err := fn(ctx, run)
	run.Result.Phases = append(run.Result.Phases, PhaseTiming{Phase: phase, Duration: time.Since(start)})
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).Msg("Phase failed, stopping run")
		return errors.InPhase(phase, err)
	}
	return nil
}

func (s *Syncer) login(ctx context.Context, run *RunContext) error {
	token, err := s.directory.Login(ctx, s.credentials)
	if err != nil {
		return err
	}
	run.Token = token
	logging.FromContext(ctx).Info().Str("login", s.credentials.Login).Msg("Logged to API")
	return nil
}

func (s *Syncer) fetchDirectory(ctx context.Context, run *RunContext) error {
	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		return err
	}
	run.Accounts = reconcile.Accounts(users)
	run.Result.DirectoryUsers = len(users)
	logging.FromContext(ctx).Info().Int("users", len(users)).Msg("Users fetched")
	return nil
}

func (s *Syncer) fetchEnrollment(ctx context.Context, run *RunContext) error {
	records, err := enrollment.Collect(ctx, s.enrollment, run.Now)
	if err != nil {
		return err
	}
	run.Records = records
	run.Result.Records = len(records)
	logging.FromContext(ctx).Info().Int("records", len(records)).Msg("Enrollment records fetched")
	return nil
}

func (s *Syncer) plan(ctx context.Context, run *RunContext) error {
	plan, err := s.planner().Plan(ctx, run.Records, run.Accounts)
	if err != nil {
		return err
	}
	run.Plan = plan
	run.Accounts = plan.Accounts
	run.Result.Plan = plan
	run.Result.Conflicts = plan.Conflicts

	decisions := plan.Decisions()
	logging.FromContext(ctx).Info().
		Int("create", decisions[reconcile.DecisionCreate]).
		Int("update", decisions[reconcile.DecisionUpdate]).
		Int("unchanged", decisions[reconcile.DecisionNoop]).
		Int("conflicts", len(plan.Conflicts)).
		Msg("Users planned")
	return nil
}

func (s *Syncer) applyUsers(ctx context.Context, run *RunContext) error {
	if run.DryRun {
		return nil
	}
	report, err := s.executor().Execute(ctx, run.Plan.Users)
	run.Result.UsersReport = report
	return err
}

func (s *Syncer) applyMemberships(ctx context.Context, run *RunContext) error {
	actions, err := reconcile.DiffMemberships(run.Accounts, s.groups)
	if err != nil {
		return err
	}
	run.Plan.Memberships = actions
	logging.FromContext(ctx).Info().Int("actions", len(actions)).Msg("Memberships planned")

	if run.DryRun {
		return nil
	}
	report, err := s.executor().Execute(ctx, actions)
	run.Result.MembershipReport = report
	return err
}

var _ Directory = (*directory.Client)(nil)
