package executor

import (
	"sync"
	"time"

	"github.com/agentstation/membersync/pkg/reconcile"
)

// Failure is an action that did not apply.
type Failure struct {
	Action reconcile.Action
	Err    error
}

// Report records what an execution did.
type Report struct {
	mu sync.Mutex

	Total    int
	Applied  []reconcile.Action
	Failed   []Failure
	Skipped  int // never started because an earlier chunk failed
	Chunks   int
	Duration time.Duration
}

func newReport(total int) *Report {
	return &Report{Total: total}
}

func (r *Report) succeeded(a reconcile.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Applied = append(r.Applied, a)
}

func (r *Report) failed(a reconcile.Action, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, Failure{Action: a, Err: err})
}

// Attempted is the number of actions that ran, successfully or not.
func (r *Report) Attempted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Applied) + len(r.Failed)
}

// AppliedByKind counts applied actions per kind.
func (r *Report) AppliedByKind() map[reconcile.Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return reconcile.CountByKind(r.Applied)
}

// FailedTargets lists "kind target: error" for each failure.
func (r *Report) FailedTargets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, string(f.Action.Kind())+" "+f.Action.Target()+": "+f.Err.Error())
	}
	return out
}
