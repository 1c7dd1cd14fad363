// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/tidyrun/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete tidyrun configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Completion backend used for planning and code synthesis
	Completion CompletionConfig `toml:"completion" json:"completion"`

	// Local Ollama backend
	Ollama OllamaConfig `toml:"ollama" json:"ollama"`

	// Retry loop and interpreter limits
	Execution ExecutionConfig `toml:"execution" json:"execution"`

	// Run history database
	Ledger LedgerConfig `toml:"ledger" json:"ledger"`

	// Object storage export of cleaned files
	Export ExportConfig `toml:"export" json:"export"`

	// Watched directory mode
	Inbox InboxConfig `toml:"inbox" json:"inbox"`
}

// CompletionConfig configures the OpenAI-compatible backend.
type CompletionConfig struct {
	// Provider is "groq", "openai" or "ollama"
	Provider string `toml:"provider" json:"provider"`
	BaseURL  string `toml:"base_url" json:"base_url"`
	APIKey   string `toml:"api_key" json:"api_key"`
	Model    string `toml:"model" json:"model"`

	// TimeoutSecs bounds one completion request
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// RequestsPerMinute throttles calls to the backend (0 = unlimited)
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`
}

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	URL   string `toml:"url" json:"url"`
	Model string `toml:"model" json:"model"`
}

// ExecutionConfig configures the retry loop and the interpreter.
type ExecutionConfig struct {
	// MaxRetries is the number of attempts each step gets
	MaxRetries int `toml:"max_retries" json:"max_retries"`

	// AttemptTimeoutMs bounds the run time of one piece of generated code
	AttemptTimeoutMs int `toml:"attempt_timeout_ms" json:"attempt_timeout_ms"`

	// MaxCallStack bounds JavaScript call depth
	MaxCallStack int `toml:"max_call_stack" json:"max_call_stack"`
}

// LedgerConfig configures the run history database.
type LedgerConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`

	// Path defaults to history.db in the config directory
	Path string `toml:"path" json:"path"`
}

// ExportConfig configures upload of cleaned files to S3-compatible storage.
type ExportConfig struct {
	Enabled   bool   `toml:"enabled" json:"enabled"`
	Endpoint  string `toml:"endpoint" json:"endpoint"`
	Bucket    string `toml:"bucket" json:"bucket"`
	Region    string `toml:"region" json:"region"`
	AccessKey string `toml:"access_key" json:"access_key"`
	SecretKey string `toml:"secret_key" json:"secret_key"`
	UseSSL    bool   `toml:"use_ssl" json:"use_ssl"`
}

// InboxConfig configures watch mode.
type InboxConfig struct {
	Dir        string `toml:"dir" json:"dir"`
	OutDir     string `toml:"out_dir" json:"out_dir"`
	DebounceMs int    `toml:"debounce_ms" json:"debounce_ms"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Completion: CompletionConfig{
			Provider:          "groq",
			BaseURL:           "https://api.groq.com/openai/v1",
			Model:             "llama-3.3-70b-versatile",
			TimeoutSecs:       60,
			RequestsPerMinute: 0, // unlimited
		},

		Ollama: OllamaConfig{
			URL:   "http://127.0.0.1:11434",
			Model: "qwen2.5-coder:14b",
		},

		Execution: ExecutionConfig{
			MaxRetries:       3,
			AttemptTimeoutMs: 10000,
			MaxCallStack:     512,
		},

		Ledger: LedgerConfig{
			Enabled: true,
		},

		Export: ExportConfig{
			Bucket: "tidyrun",
			UseSSL: true,
		},

		Inbox: InboxConfig{
			Dir:        "inbox",
			OutDir:     "cleaned",
			DebounceMs: 500,
		},
	}
}

// Timeout returns the completion request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Completion.TimeoutSecs) * time.Second
}

// AttemptTimeout returns the per-attempt execution limit.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.Execution.AttemptTimeoutMs) * time.Millisecond
}

// Debounce returns the inbox settle interval.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Inbox.DebounceMs) * time.Millisecond
}

// LedgerPath returns the configured ledger path or the default location.
func (c *Config) LedgerPath() (string, error) {
	if c.Ledger.Path != "" {
		return c.Ledger.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the tidyrun configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".tidyrun"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions tightens config files to 0600 since they may hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config directory. TOML is tried first,
// then JSON, then built-in defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file. Values missing from
// the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero values that have no meaningful zero setting.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Completion.Provider == "" {
		c.Completion.Provider = d.Completion.Provider
	}
	if c.Completion.TimeoutSecs == 0 {
		c.Completion.TimeoutSecs = d.Completion.TimeoutSecs
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = d.Ollama.Model
	}
	if c.Execution.MaxRetries == 0 {
		c.Execution.MaxRetries = d.Execution.MaxRetries
	}
	if c.Execution.AttemptTimeoutMs == 0 {
		c.Execution.AttemptTimeoutMs = d.Execution.AttemptTimeoutMs
	}
	if c.Execution.MaxCallStack == 0 {
		c.Execution.MaxCallStack = d.Execution.MaxCallStack
	}
	if c.Inbox.Dir == "" {
		c.Inbox.Dir = d.Inbox.Dir
	}
	if c.Inbox.OutDir == "" {
		c.Inbox.OutDir = d.Inbox.OutDir
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# tidyrun configuration file\n")
	buf.WriteString("# Generated by tidyrun - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var validProviders = map[string]bool{"groq": true, "openai": true, "ollama": true}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !validProviders[strings.ToLower(c.Completion.Provider)] {
		add("completion.provider", "invalid provider '%s', must be one of: groq, openai, ollama", c.Completion.Provider)
	}
	if c.Completion.BaseURL != "" {
		if err := validateHTTPURL(c.Completion.BaseURL); err != nil {
			add("completion.base_url", "%v", err)
		}
	}
	if c.Completion.TimeoutSecs < 1 || c.Completion.TimeoutSecs > 600 {
		add("completion.timeout_secs", "must be between 1 and 600, got %d", c.Completion.TimeoutSecs)
	}
	if c.Completion.RequestsPerMinute < 0 {
		add("completion.requests_per_minute", "must not be negative, got %d", c.Completion.RequestsPerMinute)
	}

	if err := validateHTTPURL(c.Ollama.URL); err != nil {
		add("ollama.url", "%v", err)
	}

	if c.Execution.MaxRetries < 1 || c.Execution.MaxRetries > 20 {
		add("execution.max_retries", "must be between 1 and 20, got %d", c.Execution.MaxRetries)
	}
	if c.Execution.AttemptTimeoutMs < 100 {
		add("execution.attempt_timeout_ms", "must be at least 100, got %d", c.Execution.AttemptTimeoutMs)
	}
	if c.Execution.MaxCallStack < 64 {
		add("execution.max_call_stack", "must be at least 64, got %d", c.Execution.MaxCallStack)
	}

	if c.Export.Enabled {
		if c.Export.Endpoint == "" {
			add("export.endpoint", "required when export is enabled")
		}
		if c.Export.Bucket == "" {
			add("export.bucket", "required when export is enabled")
		}
	}

	if c.Inbox.DebounceMs < 0 {
		add("inbox.debounce_ms", "must not be negative, got %d", c.Inbox.DebounceMs)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL '%s': %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL '%s': scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL '%s': missing host", raw)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - TIDYRUN_PROVIDER: overrides completion.provider
//   - TIDYRUN_MODEL: overrides completion.model and ollama.model
//   - TIDYRUN_API_KEY, then GROQ_API_KEY when no key is set: completion.api_key
//   - TIDYRUN_BASE_URL: overrides completion.base_url
//   - TIDYRUN_OLLAMA_URL: overrides ollama.url
//   - TIDYRUN_MAX_RETRIES: overrides execution.max_retries
//   - TIDYRUN_LEDGER_PATH: overrides ledger.path
//   - TIDYRUN_MINIO_ACCESS_KEY, TIDYRUN_MINIO_SECRET_KEY: export credentials
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TIDYRUN_PROVIDER"); v != "" {
		c.Completion.Provider = v
	}
	if v := os.Getenv("TIDYRUN_MODEL"); v != "" {
		c.Completion.Model = v
		c.Ollama.Model = v
	}
	if v := os.Getenv("TIDYRUN_API_KEY"); v != "" {
		c.Completion.APIKey = v
	} else if v := os.Getenv("GROQ_API_KEY"); v != "" && c.Completion.APIKey == "" {
		c.Completion.APIKey = v
	}
	if v := os.Getenv("TIDYRUN_BASE_URL"); v != "" {
		c.Completion.BaseURL = v
	}
	if v := os.Getenv("TIDYRUN_OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("TIDYRUN_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Execution.MaxRetries = n
		}
	}
	if v := os.Getenv("TIDYRUN_LEDGER_PATH"); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv("TIDYRUN_MINIO_ACCESS_KEY"); v != "" {
		c.Export.AccessKey = v
	}
	if v := os.Getenv("TIDYRUN_MINIO_SECRET_KEY"); v != "" {
		c.Export.SecretKey = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "execution.max_retries").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from a value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(strings.ToLower(s))
			if err != nil {
				return fmt.Errorf("invalid boolean value: %q", s)
			}
			field.SetBool(b)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"completion.provider",
		"completion.base_url",
		"completion.api_key",
		"completion.model",
		"completion.timeout_secs",
		"completion.requests_per_minute",
		"ollama.url",
		"ollama.model",
		"execution.max_retries",
		"execution.attempt_timeout_ms",
		"execution.max_call_stack",
		"ledger.enabled",
		"ledger.path",
		"export.enabled",
		"export.endpoint",
		"export.bucket",
		"export.region",
		"export.access_key",
		"export.secret_key",
		"export.use_ssl",
		"inbox.dir",
		"inbox.out_dir",
		"inbox.debounce_ms",
	}
}

// IsSecret reports whether key holds a credential that should not be printed.
func IsSecret(key string) bool {
	switch key {
	case "completion.api_key", "export.access_key", "export.secret_key":
		return true
	}
	return false
}

// Redacted returns a copy of c with credentials masked.
func (c *Config) Redacted() *Config {
	safe := *c
	for _, s := range []*string{&safe.Completion.APIKey, &safe.Export.AccessKey, &safe.Export.SecretKey} {
		if *s != "" {
			*s = "[REDACTED]"
		}
	}
	return &safe
}

// String returns the configuration as JSON with credentials redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
