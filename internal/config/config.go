// Package config provides configuration management for the capture service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/courtcapture/internal/logger"
)

// Default configuration values.
const (
	defaultServerPort        = 8070
	defaultReadTimeoutSec    = 30
	defaultWriteTimeoutSec   = 30
	defaultIdleTimeoutSec    = 60
	defaultDBHost            = "localhost"
	defaultDBPort            = 5432
	defaultDBUser            = "postgres"
	defaultDBName            = "courtcapture"
	defaultDBSSLMode         = "disable"
	defaultRequestDelayMs    = 300
	defaultRequestTimeoutSec = 30
	defaultRunTimeoutMin     = 30
	defaultPageSize          = 100
	defaultPollIntervalSec   = 60
	defaultUserAgent         = "CourtCapture/1.0"
	defaultLogLevel          = "info"
)

// Config is the root configuration for the service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Comms     CommsConfig     `mapstructure:"comms"`
	Logging   logger.Config   `mapstructure:"logging"`

	// CredentialKey is the hex-encoded key used to unseal stored
	// credential secrets. Supplied via environment, never via file.
	CredentialKey string `mapstructure:"credential_key"`

	// CourtsFile points to the jurisdiction configuration file.
	CourtsFile string `mapstructure:"courts_file"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Debug        bool          `mapstructure:"debug"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// CaptureConfig holds capture executor configuration.
type CaptureConfig struct {
	// RequestDelay is the minimum delay between requests to the same
	// jurisdiction endpoint. Deliberate backpressure, not incidental.
	RequestDelay   time.Duration `mapstructure:"request_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// RunTimeout bounds one capture run end to end.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	PageSize   int           `mapstructure:"page_size"`
	UserAgent  string        `mapstructure:"user_agent"`
	// DocumentsDir is where downloaded case documents land.
	DocumentsDir string `mapstructure:"documents_dir"`
}

// CommsConfig holds national communication feed configuration.
type CommsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestDelay   time.Duration `mapstructure:"request_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// PollInterval is how often the dispatcher checks for due schedules.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// RecoverySweepSpec is the cron expression for the nightly gap
	// analysis sweep.
	RecoverySweepSpec string `mapstructure:"recovery_sweep_spec"`
}

// Load reads configuration from the optional file at path and from
// COURTCAPTURE_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultReadTimeoutSec*time.Second)
	v.SetDefault("server.write_timeout", defaultWriteTimeoutSec*time.Second)
	v.SetDefault("server.idle_timeout", defaultIdleTimeoutSec*time.Second)
	v.SetDefault("database.host", defaultDBHost)
	v.SetDefault("database.port", defaultDBPort)
	v.SetDefault("database.user", defaultDBUser)
	v.SetDefault("database.dbname", defaultDBName)
	v.SetDefault("database.sslmode", defaultDBSSLMode)
	v.SetDefault("capture.request_delay", defaultRequestDelayMs*time.Millisecond)
	v.SetDefault("capture.request_timeout", defaultRequestTimeoutSec*time.Second)
	v.SetDefault("capture.run_timeout", defaultRunTimeoutMin*time.Minute)
	v.SetDefault("capture.page_size", defaultPageSize)
	v.SetDefault("capture.user_agent", defaultUserAgent)
	v.SetDefault("capture.documents_dir", "documents")
	v.SetDefault("comms.base_url", "https://comunicaapi.pje.jus.br")
	v.SetDefault("comms.request_delay", time.Second)
	v.SetDefault("comms.request_timeout", defaultRequestTimeoutSec*time.Second)
	v.SetDefault("scheduler.poll_interval", defaultPollIntervalSec*time.Second)
	v.SetDefault("scheduler.recovery_sweep_spec", "0 3 * * *")
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("courts_file", "courts.yaml")

	v.SetEnvPrefix("COURTCAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Capture.PageSize <= 0 {
		return fmt.Errorf("invalid capture page size: %d", c.Capture.PageSize)
	}
	if c.Capture.RequestDelay < 0 {
		return fmt.Errorf("invalid capture request delay: %s", c.Capture.RequestDelay)
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("invalid scheduler poll interval: %s", c.Scheduler.PollInterval)
	}
	return nil
}
