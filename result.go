package membersync

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/agentstation/membersync/pkg/errors"
	"github.com/agentstation/membersync/pkg/executor"
	"github.com/agentstation/membersync/pkg/reconcile"
)

// PhaseTiming is how long one phase took.
type PhaseTiming struct {
	Phase    errors.Phase
	Duration time.Duration
}

// Result is the outcome of a run.
type Result struct {
	RunID     string
	DryRun    bool
	Now       time.Time
	StartedAt time.Time
	Duration  time.Duration

	DirectoryUsers int
	Records        int

	// Plan is nil when the run stopped before planning.
	Plan      *reconcile.Plan
	Conflicts []*errors.ConflictError

	// Reports are nil for phases that did not execute.
	UsersReport      *executor.Report
	MembershipReport *executor.Report

	Phases []PhaseTiming
	Err    error
}

func newResult(run *RunContext) *Result {
	return &Result{
		RunID:     run.ID,
		DryRun:    run.DryRun,
		Now:       run.Now,
		StartedAt: time.Now(),
	}
}

func (r *Result) finish() {
	r.Duration = time.Since(r.StartedAt)
}

// Success reports whether every phase completed.
func (r *Result) Success() bool {
	return r.Err == nil
}

// UserWrites counts the applied users-phase actions.
func (r *Result) UserWrites() int {
	if r.UsersReport == nil {
		return 0
	}
	return len(r.UsersReport.Applied)
}

// MembershipWrites counts the applied membership actions.
func (r *Result) MembershipWrites() int {
	if r.MembershipReport == nil {
		return 0
	}
	return len(r.MembershipReport.Applied)
}

// Failures lists every failed action of the run.
func (r *Result) Failures() []string {
	var out []string
	for _, report := range []*executor.Report{r.UsersReport, r.MembershipReport} {
		if report != nil {
			out = append(out, report.FailedTargets()...)
		}
	}
	return out
}

// Summary returns a one-line human-readable summary.
func (r *Result) Summary() string {
	if r.Err != nil {
		return fmt.Sprintf("Sync failed: %v", r.Err)
	}
	if r.DryRun {
		if r.Plan == nil || !r.Plan.HasChanges() {
			return "Dry run completed. No changes needed."
		}
		return fmt.Sprintf("Dry run completed. %d user actions and %d membership actions planned.",
			len(r.Plan.Users), len(r.Plan.Memberships))
	}
	if r.UserWrites()+r.MembershipWrites() == 0 {
		return "Sync completed. Directory already up to date."
	}
	return fmt.Sprintf("Sync completed. %d user writes and %d membership writes applied.",
		r.UserWrites(), r.MembershipWrites())
}

// KindCount is the number of actions of one kind.
type KindCount struct {
	Kind    string `json:"kind" yaml:"kind"`
	Planned int    `json:"planned" yaml:"planned"`
	Applied int    `json:"applied" yaml:"applied"`
	Failed  int    `json:"failed" yaml:"failed"`
}

// ReportView is the printable form of a Result.
type ReportView struct {
	RunID          string            `json:"runId" yaml:"runId"`
	DryRun         bool              `json:"dryRun" yaml:"dryRun"`
	Now            time.Time         `json:"now" yaml:"now"`
	Duration       string            `json:"duration" yaml:"duration"`
	DirectoryUsers int               `json:"directoryUsers" yaml:"directoryUsers"`
	Records        int               `json:"records" yaml:"records"`
	Summary        string            `json:"summary" yaml:"summary"`
	Kinds          []KindCount       `json:"kinds" yaml:"kinds"`
	Failures       []string          `json:"failures,omitempty" yaml:"failures,omitempty"`
	Phases         map[string]string `json:"phases" yaml:"phases"`
	Plan           *reconcile.View   `json:"plan,omitempty" yaml:"plan,omitempty"`
}

// View renders the result for output.
func (r *Result) View() ReportView {
	v := ReportView{
		RunID:          r.RunID,
		DryRun:         r.DryRun,
		Now:            r.Now,
		Duration:       r.Duration.Round(time.Millisecond).String(),
		DirectoryUsers: r.DirectoryUsers,
		Records:        r.Records,
		Summary:        r.Summary(),
		Failures:       r.Failures(),
		Phases:         make(map[string]string, len(r.Phases)),
	}
	for _, p := range r.Phases {
		v.Phases[string(p.Phase)] = p.Duration.Round(time.Millisecond).String()
	}

	counts := map[reconcile.Kind]*KindCount{}
	count := func(k reconcile.Kind) *KindCount {
		if c, ok := counts[k]; ok {
			return c
		}
		c := &KindCount{Kind: string(k)}
		counts[k] = c
		return c
	}
	if r.Plan != nil {
		view := r.Plan.View()
		v.Plan = &view
		for k, n := range reconcile.CountByKind(r.Plan.Users) {
			count(k).Planned += n
		}
		for k, n := range reconcile.CountByKind(r.Plan.Memberships) {
			count(k).Planned += n
		}
	}
	for _, report := range []*executor.Report{r.UsersReport, r.MembershipReport} {
		if report == nil {
			continue
		}
		for k, n := range report.AppliedByKind() {
			count(k).Applied += n
		}
		for _, f := range report.Failed {
			count(f.Action.Kind()).Failed++
		}
	}
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		v.Kinds = append(v.Kinds, *counts[k])
	}
	return v
}
