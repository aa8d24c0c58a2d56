// Package courts provides the jurisdiction configuration registry and the
// per-jurisdiction response parsers.
package courts

import (
	"encoding/json"
	"fmt"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// ParseFunc converts one raw portal item into a normalized record.
// Parsers are registered per (jurisdiction, kind) so adding a jurisdiction
// is a data-plus-function addition, not a branch in shared code.
type ParseFunc func(raw json.RawMessage) (domain.NormalizedRecord, error)

// Registry is the in-memory jurisdiction configuration registry. It is
// loaded once at process start and read-only afterwards, so no locking is
// needed for concurrent readers.
type Registry struct {
	configs map[string]*Config
	parsers map[string]ParseFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		configs: make(map[string]*Config),
		parsers: make(map[string]ParseFunc),
	}
}

func configKey(code string, instance domain.Instance) string {
	return code + "/" + string(instance)
}

func parserKey(code string, kind domain.CaptureKind) string {
	return code + "/" + string(kind)
}

// Add registers a jurisdiction configuration. Only called during loading.
func (r *Registry) Add(cfg *Config) {
	r.configs[configKey(cfg.Code, cfg.Instance)] = cfg
}

// Get returns the configuration for a jurisdiction code and instance.
func (r *Registry) Get(code string, instance domain.Instance) (*Config, error) {
	cfg, ok := r.configs[configKey(code, instance)]
	if !ok {
		return nil, fmt.Errorf("jurisdiction %s/%s: %w", code, instance, domain.ErrNotFound)
	}
	return cfg, nil
}

// RegisterParser registers the parser for a (jurisdiction, kind) pair.
// Only called during loading.
func (r *Registry) RegisterParser(code string, kind domain.CaptureKind, fn ParseFunc) {
	r.parsers[parserKey(code, kind)] = fn
}

// Parser returns the parser registered for a (jurisdiction, kind) pair.
func (r *Registry) Parser(code string, kind domain.CaptureKind) (ParseFunc, error) {
	fn, ok := r.parsers[parserKey(code, kind)]
	if !ok {
		return nil, fmt.Errorf("parser for %s/%s: %w", code, kind, domain.ErrNotFound)
	}
	return fn, nil
}

// Jurisdictions returns the codes of all configured jurisdictions.
func (r *Registry) Jurisdictions() []string {
	seen := make(map[string]struct{}, len(r.configs))
	codes := make([]string, 0, len(r.configs))
	for _, cfg := range r.configs {
		if _, ok := seen[cfg.Code]; ok {
			continue
		}
		seen[cfg.Code] = struct{}{}
		codes = append(codes, cfg.Code)
	}
	return codes
}
