package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/autotag/internal/models"
	"github.com/starford/autotag/internal/ollama"
	"github.com/starford/autotag/internal/scheduler"
	"github.com/starford/autotag/internal/tagging"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// State drivers.
const (
	StateDriverJSON   = "json"
	StateDriverSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	Ollama  OllamaConfig      `yaml:"ollama"`
	Tagging TaggingConfig     `yaml:"tagging"`
	State   StateConfig       `yaml:"state"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Ollama.Validate(); err != nil {
		return err
	}
	if err := c.Tagging.Validate(); err != nil {
		return err
	}
	if err := c.State.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig describes the document directory.
type VaultConfig struct {
	Path string `yaml:"path"`
	// Extensions lists the processable document types (default ".md").
	Extensions []string `yaml:"extensions"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extensions, validation.Each(validation.Required, validation.By(func(v any) error {
			if s, _ := v.(string); !strings.HasPrefix(s, ".") {
				return fmt.Errorf("extension %q must start with a dot", s)
			}
			return nil
		}))),
	)
}

// OllamaConfig holds the language model service connection.
type OllamaConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the Ollama configuration.
func (c *OllamaConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// TaggingConfig seeds the persisted settings and tunes the scheduler.
type TaggingConfig struct {
	Model           string        `yaml:"model"`
	DefaultTags     []string      `yaml:"default_tags"`
	AutoAddTags     bool          `yaml:"auto_add_tags"`
	ExcludePatterns []string      `yaml:"exclude_patterns"`
	Debounce        time.Duration `yaml:"debounce"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	Concurrency     int           `yaml:"concurrency"`
}

// Validate validates the tagging configuration.
func (c *TaggingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultTags, validation.Each(validation.By(func(v any) error {
			tag, _ := v.(string)
			return tagging.ValidateTag(tag)
		}))),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.SettleDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.Concurrency, validation.Min(0), validation.Max(64)),
	)
}

// DefaultState returns the settings defaults the persisted state is merged over.
func (c *TaggingConfig) DefaultState() *models.State {
	st := &models.State{
		DefaultTags:     append([]string{}, c.DefaultTags...),
		AutoAddTags:     c.AutoAddTags,
		ExcludePatterns: append([]string{}, c.ExcludePatterns...),
		TaggedFiles:     models.TaggingRecord{},
	}
	if m := strings.TrimSpace(c.Model); m != "" {
		st.SelectedModel = &m
	}
	return st
}

// StateConfig selects where settings and the tagging record are persisted.
type StateConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Validate validates the state configuration.
func (c *StateConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = StateDriverJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StateDriverJSON, StateDriverSQLite)),
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:       "./vault",
			Extensions: []string{".md"},
		},
		Ollama: OllamaConfig{
			URL:     ollama.DefaultBaseURL,
			Timeout: 2 * time.Minute,
		},
		Tagging: TaggingConfig{
			Debounce:    scheduler.DefaultWindow,
			SettleDelay: scheduler.DefaultSettleDelay,
			Concurrency: 2,
		},
		State: StateConfig{
			Driver: StateDriverJSON,
			Path:   "./autotag-state.json",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
