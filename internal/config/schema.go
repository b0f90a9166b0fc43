package config

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	// TypeString is a plain string value (the default for all config values).
	TypeString OptionType = "string"
	// TypeBool is a boolean value (true/false/yes/no/1/0/on/off).
	TypeBool OptionType = "bool"
	// TypeFloat is a floating point value.
	TypeFloat OptionType = "float"
	// TypeDuration is a Go time.Duration value (e.g. "30s", "5m", "1h").
	TypeDuration OptionType = "duration"
)

// ConfigOption declares a single configuration option with its type, default,
// documentation, and environment variable override.
type ConfigOption struct {
	// Key is the option name as it appears in the config file (kebab-case).
	Key string
	// Type is the expected value type for validation.
	Type OptionType
	// Default is the default value as a string, or "" for no default.
	Default string
	// Description is a human-readable description of the option.
	Description string
	// Choices, when non-empty, lists the accepted values.
	Choices []string
	// Scoped marks options that may be overridden in a [scheduler] section.
	Scoped bool
	// EnvVar is the environment variable that overrides this option, or "".
	EnvVar string
}

// ConfigSchema declares the expected configuration options for the application.
// It is used for validation, documentation, typed getters, and env var mapping.
type ConfigSchema struct {
	options []*ConfigOption
	byKey   map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey: make(map[string]*ConfigOption),
	}
}

// Register adds a ConfigOption to the schema. Duplicate keys are silently
// overwritten (last registration wins).
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	if old, ok := s.byKey[opt.Key]; ok {
		for i, o := range s.options {
			if o == old {
				s.options[i] = ref
			}
		}
	} else {
		s.options = append(s.options, ref)
	}
	s.byKey[opt.Key] = ref
}

// RegisterAll adds multiple ConfigOptions to the schema.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the ConfigOption for key, or nil if it is not registered.
func (s *ConfigSchema) Lookup(key string) *ConfigOption {
	return s.byKey[key]
}

// IsKnown returns true if the key may appear in the given section ("" for
// global). Scheduler sections accept only scoped options.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	opt := s.byKey[key]
	if opt == nil {
		return false
	}
	return section == "" || opt.Scoped
}

// Options returns all registered options in registration order.
func (s *ConfigSchema) Options() []ConfigOption {
	out := make([]ConfigOption, 0, len(s.options))
	for _, o := range s.options {
		out = append(out, *o)
	}
	return out
}

// Resolve returns the effective value for a global config key by checking,
// in order: (1) the environment variable declared in the schema for this key,
// (2) the config value, (3) the schema default. Returns "" if the key is not
// found anywhere.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	return s.ResolveIn(c, "", key)
}

// ResolveIn is Resolve for the named scheduler section. A value in the
// section wins over the global value; the environment still wins over both.
func (s *ConfigSchema) ResolveIn(c *Config, section, key string) string {
	opt := s.Lookup(key)
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		var (
			v  string
			ok bool
		)
		if section == "" {
			v, ok = c.GetGlobalOption(key)
		} else {
			v, ok = c.GetSectionOption(section, key)
		}
		if ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig checks a loaded Config against the schema and returns a list
// of human-readable issues (empty if the config is valid). Validation includes:
//   - Unknown global options (not in schema)
//   - Options in a scheduler section that are not scoped
//   - Type and choice mismatches for options with declared types
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	for key, value := range c.Global {
		opt := s.Lookup(key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateOption(opt, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	for section, opts := range c.Sections {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option for scheduler %q: %q (value: %q)", section, key, value))
				continue
			}
			if err := validateOption(s.Lookup(key), value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}

	sort.Strings(issues)
	return issues
}

func validateOption(opt *ConfigOption, value string) error {
	if err := validateType(opt.Type, value); err != nil {
		return err
	}
	if len(opt.Choices) > 0 && !slices.Contains(opt.Choices, strings.ToLower(value)) {
		return fmt.Errorf("expected one of %s, got %q", strings.Join(opt.Choices, ", "), value)
	}
	return nil
}

// validateType checks that a string value matches the expected OptionType.
func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("expected float, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// --- Typed getter methods on Config ---

// GetString returns the global option value for key, or "" if not set.
func (c *Config) GetString(key string) string {
	v, _ := c.GetGlobalOption(key)
	return v
}

// GetStringDefault returns the global option value for key, or defaultValue if
// not set.
func (c *Config) GetStringDefault(key, defaultValue string) string {
	v, ok := c.GetGlobalOption(key)
	if !ok {
		return defaultValue
	}
	return v
}

// GetBool returns the global option value for key parsed as a boolean. Returns
// false if the key is not set or the value cannot be parsed.
func (c *Config) GetBool(key string) bool {
	v, ok := c.GetGlobalOption(key)
	if !ok {
		return false
	}
	b, err := parseBool(v)
	if err != nil {
		return false
	}
	return b
}

// GetFloat returns the global option value for key parsed as a float64.
// Returns 0 if the key is not set or the value cannot be parsed.
func (c *Config) GetFloat(key string) float64 {
	v, ok := c.GetGlobalOption(key)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// GetDuration returns the global option value for key parsed as a
// time.Duration. Returns 0 if the key is not set or the value cannot be parsed.
func (c *Config) GetDuration(key string) time.Duration {
	v, ok := c.GetGlobalOption(key)
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

// --- Help text generation ---

// FormatHelp returns a formatted, human-readable reference of all registered
// options in the schema.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if len(s.options) == 0 {
		return ""
	}
	b.WriteString("Options:\n")
	for _, o := range s.options {
		writeOptionHelp(&b, *o)
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	b.WriteString(fmt.Sprintf("  %-20s %s", o.Key, o.Description))
	parts := make([]string, 0, 4)
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, fmt.Sprintf("type: %s", o.Type))
	}
	if o.Default != "" {
		parts = append(parts, fmt.Sprintf("default: %s", o.Default))
	}
	if o.EnvVar != "" {
		parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
	}
	if o.Scoped {
		parts = append(parts, "per-scheduler")
	}
	if len(parts) > 0 {
		b.WriteString(fmt.Sprintf(" (%s)", strings.Join(parts, ", ")))
	}
	b.WriteString("\n")
}

// --- Default schema for reactree ---

// DefaultSchema returns the canonical schema declaring all known reactree
// configuration options. This is the single source of truth for option names,
// types, defaults, descriptions, and environment variable overrides.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll(defaultOptions())
	return s
}

func defaultOptions() []ConfigOption {
	return []ConfigOption{
		// Scheduler options
		{Key: "tick-rate", Type: TypeFloat, Default: "1", Description: "Ticks per second", Scoped: true, EnvVar: "REACTREE_TICK_RATE"},
		{Key: "tree.file", Type: TypeString, Default: "", Description: "YAML tree definition to load", EnvVar: "REACTREE_TREE_FILE"},
		{Key: "script.timeout", Type: TypeDuration, Default: "", Description: "Maximum run time of a single script callback", Scoped: true, EnvVar: "REACTREE_SCRIPT_TIMEOUT"},

		// Logging options
		{Key: "log.level", Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", Choices: []string{"debug", "info", "warn", "error"}, EnvVar: "REACTREE_LOG_LEVEL"},
		{Key: "log.file", Type: TypeString, Default: "", Description: "Append logs to this file instead of stderr", EnvVar: "REACTREE_LOG_FILE"},
		{Key: "log.format", Type: TypeString, Default: "text", Description: "Log format: text, json", Choices: []string{"text", "json"}, EnvVar: "REACTREE_LOG_FORMAT"},

		// Metrics options
		{Key: "metrics.addr", Type: TypeString, Default: "", Description: "Listen address for the Prometheus endpoint", EnvVar: "REACTREE_METRICS_ADDR"},
	}
}
