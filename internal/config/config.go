package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paularlott/cli"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeout           = 60 * time.Second
	DefaultRequestsPerMinute = 120
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
)

// Config is passed explicitly to every component that needs it
type Config struct {
	Endpoint          string        `yaml:"endpoint"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	VerifyTLS         bool          `yaml:"verify_tls"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	BackupDir         string        `yaml:"backup_dir"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
	LogFile           string        `yaml:"log_file"`
	JournalPath       string        `yaml:"journal"`
	MetricsFile       string        `yaml:"metrics_file"`
}

// values holds the raw flag values. Unset flags keep their defaults, which
// lets a config file fill them in.
type values struct {
	configFile        string
	endpoint          string
	username          string
	password          string
	verifyTLS         bool
	timeout           string
	backupDir         string
	requestsPerMinute int
	logLevel          string
	logFormat         string
	logFile           string
	journalPath       string
	metricsFile       string
}

var flags = defaultValues()

func defaultValues() values {
	return values{
		timeout:           DefaultTimeout.String(),
		backupDir:         ".",
		requestsPerMinute: DefaultRequestsPerMinute,
		logLevel:          DefaultLogLevel,
		logFormat:         DefaultLogFormat,
	}
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		RequestTimeout:    DefaultTimeout,
		BackupDir:         ".",
		RequestsPerMinute: DefaultRequestsPerMinute,
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
	}
}

func GetFlags() []cli.Flag {
	d := defaultValues()
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Usage:    "YAML configuration file",
			EnvVars:  []string{"FMCSWEEP_CONFIG"},
			AssignTo: &flags.configFile,
		},
		&cli.StringFlag{
			Name:     "endpoint",
			Usage:    "Management controller base URL, e.g. https://192.168.100.22",
			EnvVars:  []string{"FMC_ENDPOINT"},
			AssignTo: &flags.endpoint,
		},
		&cli.StringFlag{
			Name:     "username",
			Usage:    "API username (prompted when empty)",
			EnvVars:  []string{"FMC_USERNAME"},
			AssignTo: &flags.username,
		},
		&cli.StringFlag{
			Name:     "password",
			Usage:    "API password (prompted when empty)",
			EnvVars:  []string{"FMC_PASSWORD"},
			AssignTo: &flags.password,
		},
		&cli.BoolFlag{
			Name:     "verify-tls",
			Usage:    "Verify the controller certificate",
			EnvVars:  []string{"FMC_VERIFY_TLS"},
			AssignTo: &flags.verifyTLS,
		},
		&cli.StringFlag{
			Name:         "timeout",
			Usage:        "Per request timeout",
			EnvVars:      []string{"FMC_TIMEOUT"},
			DefaultValue: d.timeout,
			AssignTo:     &flags.timeout,
		},
		&cli.StringFlag{
			Name:         "backup-dir",
			Usage:        "Directory for backup files",
			EnvVars:      []string{"FMCSWEEP_BACKUP_DIR"},
			DefaultValue: d.backupDir,
			AssignTo:     &flags.backupDir,
		},
		&cli.IntFlag{
			Name:         "requests-per-minute",
			Usage:        "Client side request pacing, 0 disables",
			EnvVars:      []string{"FMC_REQUESTS_PER_MINUTE"},
			DefaultValue: d.requestsPerMinute,
			AssignTo:     &flags.requestsPerMinute,
		},
		&cli.StringFlag{
			Name:         "log-level",
			Usage:        "Log level (debug, info, warn, error)",
			EnvVars:      []string{"FMCSWEEP_LOG_LEVEL"},
			DefaultValue: d.logLevel,
			AssignTo:     &flags.logLevel,
		},
		&cli.StringFlag{
			Name:         "log-format",
			Usage:        "Log format (console, json)",
			EnvVars:      []string{"FMCSWEEP_LOG_FORMAT"},
			DefaultValue: d.logFormat,
			AssignTo:     &flags.logFormat,
		},
		&cli.StringFlag{
			Name:     "log-file",
			Usage:    "Run log file, truncated at the start of each run",
			EnvVars:  []string{"FMCSWEEP_LOG_FILE"},
			AssignTo: &flags.logFile,
		},
		&cli.StringFlag{
			Name:     "journal",
			Usage:    "SQLite journal recording every delete and create",
			EnvVars:  []string{"FMCSWEEP_JOURNAL"},
			AssignTo: &flags.journalPath,
		},
		&cli.StringFlag{
			Name:     "metrics-file",
			Usage:    "Write Prometheus metrics to this textfile when the run ends",
			EnvVars:  []string{"FMCSWEEP_METRICS_FILE"},
			AssignTo: &flags.metricsFile,
		},
	}
}

// Load builds the configuration from the config file and flags. Flags that
// were left at their default do not override the file.
func Load() (*Config, error) {
	return resolve(flags)
}

func resolve(v values) (*Config, error) {
	cfg := Defaults()
	if v.configFile != "" {
		if err := LoadFile(v.configFile, cfg); err != nil {
			return nil, err
		}
	}

	d := defaultValues()
	overrideString(&cfg.Endpoint, v.endpoint, d.endpoint)
	overrideString(&cfg.Username, v.username, d.username)
	overrideString(&cfg.Password, v.password, d.password)
	overrideString(&cfg.BackupDir, v.backupDir, d.backupDir)
	overrideString(&cfg.LogLevel, v.logLevel, d.logLevel)
	overrideString(&cfg.LogFormat, v.logFormat, d.logFormat)
	overrideString(&cfg.LogFile, v.logFile, d.logFile)
	overrideString(&cfg.JournalPath, v.journalPath, d.journalPath)
	overrideString(&cfg.MetricsFile, v.metricsFile, d.metricsFile)
	if v.verifyTLS {
		cfg.VerifyTLS = true
	}
	if v.requestsPerMinute != d.requestsPerMinute {
		cfg.RequestsPerMinute = v.requestsPerMinute
	}
	if v.timeout != d.timeout && v.timeout != "" {
		timeout, err := time.ParseDuration(v.timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", v.timeout, err)
		}
		cfg.RequestTimeout = timeout
	}

	return cfg, cfg.Validate()
}

func overrideString(dst *string, value, def string) {
	if value != def {
		*dst = value
	}
}

// LoadFile reads a YAML configuration file over cfg
func LoadFile(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if cfg.BackupDir != "" && !filepath.IsAbs(cfg.BackupDir) {
		cfg.BackupDir = filepath.Join(filepath.Dir(path), cfg.BackupDir)
	}
	return nil
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	var errs []error
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
			errs = append(errs, fmt.Errorf("endpoint %q must be an http(s) URL", c.Endpoint))
		}
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.BackupDir == "" {
		errs = append(errs, errors.New("backup directory is required"))
	}
	return errors.Join(errs...)
}

// RequireEndpoint is checked by commands that talk to the controller
func (c *Config) RequireEndpoint() error {
	if c.Endpoint == "" {
		return errors.New("no controller endpoint configured, use --endpoint or FMC_ENDPOINT")
	}
	return nil
}

// BaseURL is the endpoint without a trailing slash
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.Endpoint, "/")
}

// IsJournalEnabled checks if a journal path is configured
func (c *Config) IsJournalEnabled() bool {
	return c.JournalPath != ""
}

// IsMetricsEnabled checks if a metrics textfile is configured
func (c *Config) IsMetricsEnabled() bool {
	return c.MetricsFile != ""
}
