// Package membersync reconciles the enrollment list of an ERP (the source
// of truth) into a membership directory: users, their wallets and
// credential records, and their contributor or non-contributor group
// memberships for the active period.
//
// A run logs in to the directory, fetches every directory user and every
// enrollment record, plans the user creations and corrections, applies
// them, then derives and applies the membership changes over the
// resulting user set. Runs keep no state of their own and are meant to be
// repeated; a run against unchanged sources issues no writes.
//
// Example usage:
//
//	dir, _ := directory.NewClient("https://api.example.org/")
//	erp, _ := enrollment.NewClient("http://erp.example.org/api/index.php/", "DOLAPIKEY", key, nil)
//
//	syncer, err := membersync.New(dir, erp, creds, groups,
//	    membersync.WithChunkSize(5),
//	    membersync.WithRetries(2),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := syncer.Sync(ctx)
//	if err != nil {
//	    os.Exit(errors.ExitCode(err))
//	}
//	fmt.Println(result.Summary())
package membersync

import (
	"time"

	"github.com/agentstation/membersync/pkg/directory"
	"github.com/agentstation/membersync/pkg/enrollment"
	"github.com/agentstation/membersync/pkg/errors"
	"github.com/agentstation/membersync/pkg/executor"
	"github.com/agentstation/membersync/pkg/reconcile"
)

// Directory is the membership API as a run uses it.
type Directory interface {
	directory.Reader
	directory.Writer
}

// Syncer runs reconciliations between one ERP and one directory.
type Syncer struct {
	directory   Directory
	enrollment  enrollment.Source
	credentials directory.Credentials
	groups      reconcile.Groups
	config      *config
}

// New creates a Syncer. groups must name both groups and the period.
func New(dir Directory, src enrollment.Source, creds directory.Credentials, groups reconcile.Groups, opts ...Option) (*Syncer, error) {
	if dir == nil {
		return nil, errors.NewValidationError("directory", nil, "a directory client is required")
	}
	if src == nil {
		return nil, errors.NewValidationError("enrollment", nil, "an enrollment source is required")
	}
	switch {
	case groups.Contributor == "":
		return nil, errors.NewConfigError("buckutt.contributorGroup", "is required", nil)
	case groups.NonContributor == "":
		return nil, errors.NewConfigError("buckutt.nonContributorGroup", "is required", nil)
	case groups.Period == "":
		return nil, errors.NewConfigError("buckutt.defaultPeriod", "is required", nil)
	case groups.Contributor == groups.NonContributor:
		return nil, errors.NewConfigError("buckutt.nonContributorGroup", "must differ from the contributor group", nil)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return &Syncer{
		directory:   dir,
		enrollment:  src,
		credentials: creds,
		groups:      groups,
		config:      cfg,
	}, nil
}

func (s *Syncer) planner() *reconcile.Planner {
	return reconcile.NewPlanner(reconcile.WithDuplicatePolicy(s.config.duplicates))
}

func (s *Syncer) executor() *executor.Executor {
	return executor.New(s.directory,
		executor.WithChunkSize(s.config.chunkSize),
		executor.WithRetries(s.config.retries),
		executor.WithRetryKinds(s.config.retryKinds...),
		executor.WithBackoff(s.config.backoff, s.config.maxBackoff),
	)
}

func (s *Syncer) now() time.Time {
	return s.config.clock().UTC()
}
