package config

import (
	"fmt"
	"os"
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
	// TypeInt is an integer value.
	TypeInt OptionType = "int"
	// TypeDuration is a Go time.Duration value (e.g. "30s", "5m", "1h").
	TypeDuration OptionType = "duration"
	// TypePath is a filesystem path or URL.
	TypePath OptionType = "path"
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
	// Section is "" for global options, or a section name.
	Section string
	// EnvVar is the environment variable that overrides this option, or "".
	EnvVar string
}

// ConfigSchema declares the expected configuration options for the application.
// It is used for validation, documentation, typed getters, and env var mapping.
type ConfigSchema struct {
	options []*ConfigOption
	// byKey indexes global options by key for fast lookup.
	byKey map[string]*ConfigOption
	// bySection indexes section options by section then key.
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds a ConfigOption to the schema. Duplicate keys within the same
// section are silently overwritten (last registration wins).
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
	} else {
		if s.bySection[opt.Section] == nil {
			s.bySection[opt.Section] = make(map[string]*ConfigOption)
		}
		s.bySection[opt.Section][opt.Key] = ref
	}
}

// RegisterAll adds multiple ConfigOptions to the schema.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the ConfigOption for a key in a given section ("" for global).
// Returns nil if the key is not registered.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	if sec, ok := s.bySection[section]; ok {
		return sec[key]
	}
	return nil
}

// IsKnown returns true if the key is registered in the given section.
// Global keys are also considered known in every section (they fall back to
// the global value).
func (s *ConfigSchema) IsKnown(section, key string) bool {
	if section == "" {
		return s.byKey[key] != nil
	}
	if sec, ok := s.bySection[section]; ok {
		if sec[key] != nil {
			return true
		}
	}
	return s.byKey[key] != nil
}

// GlobalOptions returns all registered global options (Section == "").
func (s *ConfigSchema) GlobalOptions() []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == "" {
			out = append(out, *o)
		}
	}
	return out
}

// SectionOptions returns all registered options for a specific section.
func (s *ConfigSchema) SectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns a sorted list of all registered non-empty section names.
func (s *ConfigSchema) Sections() []string {
	seen := make(map[string]bool)
	for sec := range s.bySection {
		seen[sec] = true
	}
	out := make([]string, 0, len(seen))
	for sec := range seen {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value for a key by checking, in order: the
// environment variable declared in the schema, the config value (section
// first, then global), the schema default. Returns "" if the key is not
// found anywhere.
func (s *ConfigSchema) Resolve(c *Config, section, key string) string {
	opt := s.lookupWithGlobal(section, key)
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if v, ok := c.GetSectionOption(section, key); ok {
		return v
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

func (s *ConfigSchema) lookupWithGlobal(section, key string) *ConfigOption {
	if opt := s.Lookup(section, key); opt != nil {
		return opt
	}
	return s.Lookup("", key)
}

// ValidateConfig checks a loaded Config against the schema and returns a list
// of human-readable issues (empty if the config is valid). Validation includes:
//   - Unknown global options (not in schema)
//   - Unknown section options (not in schema for that section, and not global)
//   - Type mismatches for options with declared types
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	for section, opts := range c.Sections {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option in [%s]: %q (value: %q)", section, key, value))
				continue
			}
			if opt := s.lookupWithGlobal(section, key); opt != nil {
				if err := validateType(opt.Type, value); err != nil {
					issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}

// validateType checks that a string value matches the expected OptionType.
func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, TypePath, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
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

// --- Typed getters ---

// String returns the resolved value for key in section.
func (c *Config) String(section, key string) string {
	return defaultSchema.Resolve(c, section, key)
}

// Bool returns the resolved value for key parsed as a boolean. Malformed
// values fall back to the schema default and record a warning.
func (c *Config) Bool(section, key string) bool {
	return typed(c, section, key, parseBool)
}

// Int returns the resolved value for key parsed as an integer. Malformed
// values fall back to the schema default and record a warning.
func (c *Config) Int(section, key string) int {
	return typed(c, section, key, strconv.Atoi)
}

// Duration returns the resolved value for key parsed as a time.Duration.
// Malformed values fall back to the schema default and record a warning.
func (c *Config) Duration(section, key string) time.Duration {
	return typed(c, section, key, time.ParseDuration)
}

func typed[T any](c *Config, section, key string, parse func(string) (T, error)) T {
	raw := c.String(section, key)
	v, err := parse(raw)
	if err == nil {
		return v
	}
	var def string
	if opt := defaultSchema.lookupWithGlobal(section, key); opt != nil {
		def = opt.Default
	}
	if raw != "" {
		c.addWarning("option %q: %v; using default %q", qualify(section, key), err, def)
	}
	v, err = parse(def)
	if err != nil {
		var zero T
		return zero
	}
	return v
}

func qualify(section, key string) string {
	if section == "" {
		return key
	}
	return section + "." + key
}

// --- Help text generation ---

// FormatHelp returns a formatted, human-readable reference of all registered
// options in the schema, grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder

	globals := s.GlobalOptions()
	if len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}

	for _, sec := range s.Sections() {
		opts := s.SectionOptions(sec)
		if len(opts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range opts {
			writeOptionHelp(&b, o)
		}
	}

	fmt.Fprintf(&b, "\n[%s]\n  %-28s %s\n", ConditionsSection, "<Name> <expression>", "Register an expression condition leaf")

	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-28s %s", o.Key, o.Description)
	parts := make([]string, 0, 3)
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, fmt.Sprintf("type: %s", o.Type))
	}
	if o.Default != "" {
		parts = append(parts, fmt.Sprintf("default: %s", o.Default))
	}
	if o.EnvVar != "" {
		parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// --- Default schema ---

// Section names.
const (
	SectionRun   = "run"
	SectionSinks = "sinks"
)

var defaultSchema = DefaultSchema()

// DefaultSchema returns the schema declaring every known bte option.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "log-level", Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "BTE_LOG_LEVEL"},
		{Key: "log-format", Type: TypeString, Default: "text", Description: "Log format: text, json"},

		{Key: "interval", Section: SectionRun, Type: TypeDuration, Default: "100ms", Description: "Delay between root ticks"},
		{Key: "max-ticks", Section: SectionRun, Type: TypeInt, Default: "0", Description: "Stop after this many ticks (0 = unlimited)"},
		{Key: "stop-on", Section: SectionRun, Type: TypeString, Default: "terminal", Description: "Stop policy: terminal, success, failure, never"},

		{Key: "console", Section: SectionSinks, Type: TypeBool, Default: "false", Description: "Print transitions to stderr"},
		{Key: "jsonl", Section: SectionSinks, Type: TypePath, Default: "", Description: "JSON lines transition log file"},
		{Key: "jsonl-max-size-mb", Section: SectionSinks, Type: TypeInt, Default: "10", Description: "Max transition log size in MB before rotation"},
		{Key: "jsonl-max-files", Section: SectionSinks, Type: TypeInt, Default: "5", Description: "Max number of rotated transition log backups"},
		{Key: "sqlite", Section: SectionSinks, Type: TypePath, Default: "", Description: "SQLite database recording transitions"},
		{Key: "mqtt-broker", Section: SectionSinks, Type: TypePath, Default: "", Description: "MQTT broker URL, e.g. tcp://localhost:1883"},
		{Key: "mqtt-topic", Section: SectionSinks, Type: TypeString, Default: "bte/transitions", Description: "MQTT topic for transition batches"},
		{Key: "mqtt-client-id", Section: SectionSinks, Type: TypeString, Default: "", Description: "MQTT client ID (random when empty)"},
		{Key: "buffer-size", Section: SectionSinks, Type: TypeInt, Default: "10", Description: "Transitions per sink batch"},
		{Key: "flush-interval", Section: SectionSinks, Type: TypeDuration, Default: "1s", Description: "Max delay before a partial batch is written"},
	})
	return s
}
