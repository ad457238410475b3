package membersync

import (
	"time"

	"github.com/agentstation/membersync/pkg/constants"
	"github.com/agentstation/membersync/pkg/errors"
	"github.com/agentstation/membersync/pkg/reconcile"
)

// Option is a function that configures a Syncer.
type Option func(*config) error

type config struct {
	chunkSize  int
	retries    int
	retryKinds []reconcile.Kind
	backoff    time.Duration
	maxBackoff time.Duration
	duplicates reconcile.DuplicatePolicy
	clock      func() time.Time
}

func defaultConfig() *config {
	return &config{
		chunkSize:  constants.DefaultChunkSize,
		backoff:    constants.RetryBackoff,
		maxBackoff: constants.MaxRetryBackoff,
		duplicates: reconcile.DuplicatesFirst,
		clock:      time.Now,
	}
}

// WithChunkSize sets how many writes run concurrently.
func WithChunkSize(n int) Option {
	return func(c *config) error {
		if n <= 0 || n > constants.MaxChunkSize {
			return errors.NewConfigError("sync.chunkSize", "must be between 1 and 50", nil)
		}
		c.chunkSize = n
		return nil
	}
}

// WithRetries sets how many extra attempts a rate-limited or unavailable
// write gets.
func WithRetries(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return errors.NewConfigError("sync.retries", "must not be negative", nil)
		}
		c.retries = n
		return nil
	}
}

// WithRetryKinds limits retries to the given action kinds.
func WithRetryKinds(kinds ...reconcile.Kind) Option {
	return func(c *config) error {
		c.retryKinds = kinds
		return nil
	}
}

// WithRetryBackoff sets the first retry delay and its cap.
func WithRetryBackoff(initial, max time.Duration) Option {
	return func(c *config) error {
		c.backoff = initial
		c.maxBackoff = max
		return nil
	}
}

// WithDuplicatePolicy sets how ambiguous identity matches are handled.
func WithDuplicatePolicy(p reconcile.DuplicatePolicy) Option {
	return func(c *config) error {
		policy, err := reconcile.ParseDuplicatePolicy(string(p))
		if err != nil {
			return errors.NewConfigError("matching.duplicates", err.Error(), err)
		}
		c.duplicates = policy
		return nil
	}
}

// WithClock replaces the clock the run reads "now" from, once per run.
func WithClock(clock func() time.Time) Option {
	return func(c *config) error {
		if clock != nil {
			c.clock = clock
		}
		return nil
	}
}

// SyncOption configures one run.
type SyncOption func(*SyncOptions)

// SyncOptions are the per-run settings.
type SyncOptions struct {
	// DryRun plans everything and writes nothing.
	DryRun bool
	// Timeout bounds the whole run; zero means no bound.
	Timeout time.Duration
}

// NewSyncOptions applies opts over the defaults.
func NewSyncOptions(opts ...SyncOption) *SyncOptions {
	o := &SyncOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDryRun makes the run plan without writing.
func WithDryRun(enabled bool) SyncOption {
	return func(o *SyncOptions) {
		o.DryRun = enabled
	}
}

// WithTimeout bounds the whole run.
func WithTimeout(d time.Duration) SyncOption {
	return func(o *SyncOptions) {
		o.Timeout = d
	}
}
