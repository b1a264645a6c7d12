package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowservice"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Line type names accepted by the editor section.
var lineTypes = []any{"bezier", "straight", "orthogonal"}

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	Library   LibraryConfig     `yaml:"library"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Editor    EditorConfig      `yaml:"editor"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Editor.Validate()
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
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins"`
	// EventThrottle bounds how often workspace.updated is sent over SSE.
	EventThrottle time.Duration `yaml:"event_throttle"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.CORSOrigins, validation.Each(validation.Required, is.URL)),
		validation.Field(&c.EventThrottle, validation.Min(time.Duration(0))),
	)
}

// WorkspaceConfig holds the path to the flow directory.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LibraryConfig points at the node template file. An empty path keeps the
// built-in templates in memory only.
type LibraryConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
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

// EditorConfig tunes editing sessions.
type EditorConfig struct {
	// PasteOffset shifts a paste without an explicit position away from the
	// copied nodes.
	PasteOffset float64 `yaml:"paste_offset"`
	// UndoLimit caps the history per session; 0 keeps everything.
	UndoLimit int    `yaml:"undo_limit"`
	LineType  string `yaml:"line_type"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	if c.LineType == "" {
		c.LineType = "bezier"
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.PasteOffset, validation.Min(0.0)),
		validation.Field(&c.UndoLimit, validation.Min(0)),
		validation.Field(&c.LineType, validation.In(lineTypes...)),
	)
}

// Service converts the section into flow service settings.
func (c *EditorConfig) Service() (flowservice.EditorConfig, error) {
	lt, err := flowservice.ParseLineType(c.LineType)
	if err != nil {
		return flowservice.EditorConfig{}, err
	}
	return flowservice.EditorConfig{
		PasteOffset: c.PasteOffset,
		UndoLimit:   c.UndoLimit,
		LineType:    lt,
	}, nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:          8080,
				EventThrottle: 2 * time.Second,
			},
		},
		Workspace: WorkspaceConfig{
			Path: "./flows",
		},
		Library: LibraryConfig{
			Path:  "./templates.yaml",
			Watch: true,
		},
		SQLite: SQLiteConfig{
			Path: "./dagflow.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Editor: EditorConfig{
			PasteOffset: 20,
			LineType:    "bezier",
		},
	}
}
