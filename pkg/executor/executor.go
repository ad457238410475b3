// Package executor applies reconcile actions against the directory in
// sequential chunks. Actions inside a chunk run concurrently; the next
// chunk starts only once every action of the current one has returned.
package executor

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/agentstation/membersync/pkg/constants"
	"github.com/agentstation/membersync/pkg/directory"
	"github.com/agentstation/membersync/pkg/errors"
	"github.com/agentstation/membersync/pkg/logging"
	"github.com/agentstation/membersync/pkg/reconcile"
)

// Executor runs actions with bounded concurrency.
type Executor struct {
	writer     directory.Writer
	chunkSize  int
	retries    int
	retryKinds []reconcile.Kind
	backoff    time.Duration
	maxBackoff time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithChunkSize sets how many actions run at once.
func WithChunkSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.chunkSize = min(n, constants.MaxChunkSize)
		}
	}
}

// WithRetries sets how many extra attempts a rate-limited or unavailable
// write gets. Zero disables retries.
func WithRetries(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.retries = n
		}
	}
}

// WithRetryKinds restricts retries to the given action kinds. By default
// every kind is retried.
func WithRetryKinds(kinds ...reconcile.Kind) Option {
	return func(e *Executor) {
		e.retryKinds = kinds
	}
}

// WithBackoff sets the first retry delay; it doubles up to max.
func WithBackoff(initial, max time.Duration) Option {
	return func(e *Executor) {
		if initial > 0 {
			e.backoff = initial
		}
		if max > 0 {
			e.maxBackoff = max
		}
	}
}

// New creates an executor writing through w.
func New(w directory.Writer, opts ...Option) *Executor {
	e := &Executor{
		writer:     w,
		chunkSize:  constants.DefaultChunkSize,
		backoff:    constants.RetryBackoff,
		maxBackoff: constants.MaxRetryBackoff,
		sleep:      sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ChunkSize returns the configured concurrency width.
func (e *Executor) ChunkSize() int {
	return e.chunkSize
}

// Execute applies actions chunk by chunk. When an action of a chunk fails,
// its siblings still run to completion and are not undone, but no later
// chunk is started. The report covers everything that ran; the error
// joins the failures of the failed chunk.
func (e *Executor) Execute(ctx context.Context, actions []reconcile.Action) (*Report, error) {
	report := newReport(len(actions))
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	log := logging.FromContext(ctx)
	for i, chunk := range chunks(actions, e.chunkSize) {
		if err := ctx.Err(); err != nil {
			report.Skipped = len(actions) - report.Attempted()
			return report, fmt.Errorf("before chunk %d: %w: %w", i, errors.ErrCanceled, err)
		}

		p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(len(chunk))
		for _, action := range chunk {
			p.Go(func(ctx context.Context) error {
				return e.apply(ctx, action, report)
			})
		}
		report.Chunks++

		if err := p.Wait(); err != nil {
			report.Skipped = len(actions) - report.Attempted()
			log.Error().Err(err).
				Int("chunk", i).
				Int("failed", len(report.Failed)).
				Int("skipped", report.Skipped).
				Msg("Chunk failed, stopping")
			return report, fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return report, nil
}

func (e *Executor) apply(ctx context.Context, action reconcile.Action, report *Report) error {
	ctx = logging.WithAction(ctx, string(action.Kind()), action.Target())
	log := logging.FromContext(ctx)

	var err error
	for attempt := 0; ; attempt++ {
		begin := time.Now()
		err = action.Apply(ctx, e.writer)
		if err == nil {
			log.Debug().Dur("took", time.Since(begin)).Int("attempt", attempt+1).Msg(action.Describe())
			report.succeeded(action)
			return nil
		}
		if attempt >= e.retries || !e.retryable(action.Kind(), err) {
			break
		}
		delay := e.delay(attempt)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", delay).Msg("Retrying action")
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			err = errors.Join(err, sleepErr)
			break
		}
	}

	log.Error().Err(err).Msg(action.Describe())
	report.failed(action, err)
	return err
}

func (e *Executor) retryable(kind reconcile.Kind, err error) bool {
	if !errors.IsRetryable(err) {
		return false
	}
	return len(e.retryKinds) == 0 || slices.Contains(e.retryKinds, kind)
}

func (e *Executor) delay(attempt int) time.Duration {
	d := e.backoff << attempt
	if d <= 0 || d > e.maxBackoff {
		return e.maxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// chunks splits actions into consecutive groups of at most size.
func chunks(actions []reconcile.Action, size int) [][]reconcile.Action {
	if size <= 0 {
		size = constants.DefaultChunkSize
	}
	var out [][]reconcile.Action
	for chunk := range slices.Chunk(actions, size) {
		out = append(out, chunk)
	}
	return out
}
