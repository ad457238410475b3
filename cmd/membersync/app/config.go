package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/membersync/pkg/constants"
	"github.com/agentstation/membersync/pkg/errors"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Client certificate presented to the directory
	CertificateFile     string
	CertificatePassword string

	// Directory (membership API)
	DirectoryURL        string
	AdminLogin          string
	AdminPassword       string
	MeanOfLogin         string
	ContributorGroup    string
	NonContributorGroup string
	DefaultPeriod       string

	// ERP
	ERPScheme   string
	ERPHost     string
	ERPKey      string
	ERPKeyParam string
	ERPPageSize int

	// Run tuning
	ChunkSize   int
	Retries     int
	SyncTimeout time.Duration
	HTTPTimeout time.Duration
	Duplicates  string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (--config, ./membersync.yaml or ~/.membersync.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "cannot read "+configFile, err)
		}
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName("membersync")
		if err := v.ReadInConfig(); err != nil {
			// Fall back to the dotfile in home
			v.SetConfigName(".membersync")
			_ = v.ReadInConfig()
		}
	}

	config := &Config{
		ConfigFile: v.ConfigFileUsed(),

		CertificateFile:     v.GetString("certificate.file"),
		CertificatePassword: v.GetString("certificate.password"),

		DirectoryURL:        v.GetString("buckutt.api"),
		AdminLogin:          v.GetString("buckutt.admin.mol"),
		AdminPassword:       v.GetString("buckutt.admin.password"),
		MeanOfLogin:         v.GetString("buckutt.admin.meanOfLogin"),
		ContributorGroup:    v.GetString("buckutt.contributorGroup"),
		NonContributorGroup: v.GetString("buckutt.nonContributorGroup"),
		DefaultPeriod:       v.GetString("buckutt.defaultPeriod"),

		ERPScheme:   v.GetString("erp.scheme"),
		ERPHost:     v.GetString("erp.host"),
		ERPKey:      v.GetString("erp.key"),
		ERPKeyParam: v.GetString("erp.keyParam"),
		ERPPageSize: v.GetInt("erp.pageSize"),

		ChunkSize:   v.GetInt("sync.chunkSize"),
		Retries:     v.GetInt("sync.retries"),
		SyncTimeout: v.GetDuration("sync.timeout"),
		HTTPTimeout: v.GetDuration("http.timeout"),
		Duplicates:  v.GetString("matching.duplicates"),

		// Logging configuration
		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("buckutt.admin.meanOfLogin", constants.CredentialEmail)
	v.SetDefault("erp.scheme", "http")
	v.SetDefault("erp.keyParam", constants.DefaultERPKeyParam)
	v.SetDefault("erp.pageSize", constants.DefaultPageSize)
	v.SetDefault("sync.chunkSize", constants.DefaultChunkSize)
	v.SetDefault("sync.retries", 0)
	v.SetDefault("sync.timeout", time.Duration(0))
	v.SetDefault("http.timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("matching.duplicates", "first")
}

// Validate reports the first missing required key as a ConfigError.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"buckutt.api", c.DirectoryURL},
		{"buckutt.admin.mol", c.AdminLogin},
		{"buckutt.admin.password", c.AdminPassword},
		{"buckutt.contributorGroup", c.ContributorGroup},
		{"buckutt.nonContributorGroup", c.NonContributorGroup},
		{"buckutt.defaultPeriod", c.DefaultPeriod},
		{"erp.host", c.ERPHost},
		{"erp.key", c.ERPKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.NewConfigError(r.key, "is required", nil)
		}
	}
	if c.CertificateFile == "" && c.CertificatePassword != "" {
		return errors.NewConfigError("certificate.file", "is required when certificate.password is set", nil)
	}
	if c.ERPPageSize <= 0 {
		return errors.NewConfigError("erp.pageSize", fmt.Sprintf("must be positive, got %d", c.ERPPageSize), nil)
	}
	if c.HTTPTimeout < 0 || c.SyncTimeout < 0 {
		return errors.NewConfigError("http.timeout", "timeouts cannot be negative", nil)
	}
	return nil
}

// DirectoryBaseURL is the membership API base URL. buckutt.api may be a
// bare host, which is served over https.
func (c *Config) DirectoryBaseURL() string {
	api := strings.TrimSpace(c.DirectoryURL)
	if !strings.Contains(api, "://") {
		api = "https://" + api
	}
	if !strings.HasSuffix(api, "/") {
		api += "/"
	}
	return api
}

// EnrollmentURL is the ERP REST base URL built from erp.scheme and erp.host.
func (c *Config) EnrollmentURL() string {
	return fmt.Sprintf("%s://%s/api/index.php/", c.ERPScheme, strings.TrimSuffix(c.ERPHost, "/"))
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
func loadEnvFiles() {
	// .env.local overrides .env, so it loads first; godotenv never
	// overwrites a variable already set.
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
