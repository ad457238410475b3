// Package app wires configuration, logging and the sync engine into the
// membersync command line.
package app

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/membersync"
	"github.com/agentstation/membersync/internal/transport"
	"github.com/agentstation/membersync/pkg/directory"
	"github.com/agentstation/membersync/pkg/enrollment"
	"github.com/agentstation/membersync/pkg/errors"
	"github.com/agentstation/membersync/pkg/reconcile"
)

// App holds the CLI's configuration, logger and lazily built Syncer.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
	out    io.Writer

	// Syncer instance (lazy-initialized, singleton)
	mu     sync.Mutex
	syncer *membersync.Syncer
}

// New creates a new App instance with the given version information.
// Configuration is loaded from the environment and default config
// locations; --config reloads it before a command runs.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		out:     os.Stdout,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, err
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Syncer returns the sync engine, building its API clients from the
// configuration on first use.
func (a *App) Syncer() (*membersync.Syncer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.syncer != nil {
		return a.syncer, nil
	}

	if err := a.config.Validate(); err != nil {
		return nil, errors.InPhase(errors.PhaseConfig, err)
	}
	s, err := a.buildSyncer()
	if err != nil {
		return nil, errors.InPhase(errors.PhaseConfig, err)
	}
	a.syncer = s
	return s, nil
}

func (a *App) buildSyncer() (*membersync.Syncer, error) {
	cfg := a.config

	tlsConfig, err := transport.ClientTLSConfig(cfg.CertificateFile, cfg.CertificatePassword)
	if err != nil {
		return nil, err
	}
	dirOpts := []transport.Option{transport.WithTimeout(cfg.HTTPTimeout)}
	if tlsConfig != nil {
		dirOpts = append(dirOpts, transport.WithTLSConfig(tlsConfig))
	}
	dir, err := directory.NewClient(cfg.DirectoryBaseURL(), dirOpts...)
	if err != nil {
		return nil, errors.NewConfigError("buckutt.api", "invalid directory URL", err)
	}

	erp, err := enrollment.NewClient(cfg.EnrollmentURL(), cfg.ERPKeyParam, cfg.ERPKey,
		[]transport.Option{transport.WithTimeout(cfg.HTTPTimeout)},
		enrollment.WithPageSize(cfg.ERPPageSize),
	)
	if err != nil {
		return nil, errors.NewConfigError("erp.host", "invalid ERP URL", err)
	}

	duplicates, err := reconcile.ParseDuplicatePolicy(cfg.Duplicates)
	if err != nil {
		return nil, errors.NewConfigError("matching.duplicates", err.Error(), err)
	}

	creds := directory.Credentials{
		Login:       cfg.AdminLogin,
		Password:    cfg.AdminPassword,
		MeanOfLogin: cfg.MeanOfLogin,
	}
	groups := reconcile.Groups{
		Contributor:    cfg.ContributorGroup,
		NonContributor: cfg.NonContributorGroup,
		Period:         cfg.DefaultPeriod,
	}
	return membersync.New(dir, erp, creds, groups,
		membersync.WithChunkSize(cfg.ChunkSize),
		membersync.WithRetries(cfg.Retries),
		membersync.WithDuplicatePolicy(duplicates),
	)
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithOutput sets where command output is written.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.out = w
		return nil
	}
}
