package courts

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// Config describes one jurisdiction endpoint at one procedural instance.
type Config struct {
	// Code identifies the jurisdiction (e.g. "trt3").
	Code string `mapstructure:"code"`
	// Instance is the procedural level this endpoint serves.
	Instance domain.Instance `mapstructure:"instance"`
	// BaseURL is the root of the jurisdiction's API.
	BaseURL string `mapstructure:"base_url"`
	// PageSize is the page size the jurisdiction's pagination contract
	// expects. Zero means the service default.
	PageSize int `mapstructure:"page_size"`
	// RequestDelay overrides the global inter-request delay for this
	// jurisdiction. Zero means the service default.
	RequestDelay time.Duration `mapstructure:"request_delay"`

	// LoginPath is the authentication endpoint, relative to BaseURL.
	LoginPath string `mapstructure:"login_path"`
	// TotalsPath is the totalizer endpoint, relative to BaseURL.
	TotalsPath string `mapstructure:"totals_path"`
	// ListPaths maps each capture kind to its collection endpoint.
	ListPaths map[string]string `mapstructure:"list_paths"`
	// DocumentPath is the binary document endpoint; the document id is
	// appended to it.
	DocumentPath string `mapstructure:"document_path"`
}

// ListPath returns the collection endpoint for a capture kind.
func (c *Config) ListPath(kind domain.CaptureKind) (string, error) {
	p, ok := c.ListPaths[string(kind)]
	if !ok {
		return "", fmt.Errorf("list path for kind %s: %w", kind, domain.ErrNotFound)
	}
	return p, nil
}

// fileConfig is the shape of the courts configuration file.
type fileConfig struct {
	Jurisdictions []Config `mapstructure:"jurisdictions"`
}

// LoadRegistry reads the jurisdiction configuration file at path and
// builds the registry, registering the default PJE parsers for every
// configured jurisdiction.
func LoadRegistry(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read courts file: %w", err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal courts file: %w", err)
	}

	reg := NewRegistry()
	for i := range fc.Jurisdictions {
		cfg := &fc.Jurisdictions[i]
		if validateErr := validateConfig(cfg); validateErr != nil {
			return nil, validateErr
		}
		reg.Add(cfg)
		RegisterPJEParsers(reg, cfg.Code)
	}

	return reg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Code == "" {
		return fmt.Errorf("jurisdiction with empty code")
	}
	if !cfg.Instance.Valid() {
		return fmt.Errorf("jurisdiction %s: invalid instance %q", cfg.Code, cfg.Instance)
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("jurisdiction %s: empty base_url", cfg.Code)
	}
	return nil
}
