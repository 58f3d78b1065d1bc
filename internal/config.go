package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Dedup    DedupConfig       `yaml:"dedup"`
	Keywords KeywordsConfig    `yaml:"keywords"`
	Pipeline PipelineConfig    `yaml:"pipeline"`
	Capture  CaptureConfig     `yaml:"capture"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Dedup.Validate(); err != nil {
		return err
	}
	if err := c.Keywords.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
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

// VaultConfig holds the destination vault layout: the root directory plus
// the vault-relative directories that receive note and task logs.
type VaultConfig struct {
	Path     string `yaml:"path"`
	NotesDir string `yaml:"notes_dir"`
	TasksDir string `yaml:"tasks_dir"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.NotesDir, validation.Required),
		validation.Field(&c.TasksDir, validation.Required),
	)
}

// SQLiteConfig holds the durable dedup store location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// DedupConfig controls both suppression tiers.
//
// HorizonHours is the durable sliding window; a signature older than the
// horizon is treated as new again. FailOpen decides what a mid-run store
// failure means: true admits the command, false drops it.
type DedupConfig struct {
	HorizonHours        int  `yaml:"horizon_hours"`
	RecentCapacity      int  `yaml:"recent_capacity"`
	SweepIntervalMinute int  `yaml:"sweep_interval_minutes"`
	FailOpen            bool `yaml:"fail_open"`
}

// Validate validates the dedup configuration.
func (c *DedupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.HorizonHours, validation.Required, validation.Min(1), validation.Max(168)),
		validation.Field(&c.RecentCapacity, validation.Min(1)),
		validation.Field(&c.SweepIntervalMinute, validation.Min(1)),
	)
}

// KeywordsConfig declares the canonical triggers and their recognized
// surface variants. Changing a keyword rebuilds every compiled pattern at
// startup.
type KeywordsConfig struct {
	Note         string   `yaml:"note"`
	Task         string   `yaml:"task"`
	NoteVariants []string `yaml:"note_variants"`
	TaskVariants []string `yaml:"task_variants"`
	WakePhrase   string   `yaml:"wake_phrase"`
}

// Validate validates the keywords configuration.
func (c *KeywordsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Note, validation.Required),
		validation.Field(&c.Task, validation.Required),
	); err != nil {
		return err
	}
	if c.Note == c.Task {
		return fmt.Errorf("keywords: note and task keywords must differ")
	}
	return nil
}

// PipelineConfig holds pipeline tuning knobs.
type PipelineConfig struct {
	PendingExpirySeconds int `yaml:"pending_expiry_seconds"`
	SinkConcurrency      int `yaml:"sink_concurrency"`
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PendingExpirySeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.SinkConcurrency, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// CaptureConfig configures the in-process capture channels. SpoolDir, when
// set, is watched for payload files; OtherPartySenders lists sender
// identifiers whose JSON subtrees are never treated as user messages.
type CaptureConfig struct {
	SpoolDir          string   `yaml:"spool_dir"`
	OtherPartySenders []string `yaml:"other_party_senders"`
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
			Path:     "./vault",
			NotesDir: "Inbox/Voice Notes",
			TasksDir: "Tasks",
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Dedup: DedupConfig{
			HorizonHours:        36,
			RecentCapacity:      1000,
			SweepIntervalMinute: 60,
			FailOpen:            false,
		},
		Keywords: KeywordsConfig{
			Note:         "记笔记",
			Task:         "记任务",
			NoteVariants: []string{"记个笔记", "记一下笔记", "记比记", "几笔记"},
			TaskVariants: []string{"记个任务", "记一下任务", "记人物", "记任物"},
			WakePhrase:   "豆包豆包",
		},
		Pipeline: PipelineConfig{
			PendingExpirySeconds: 30,
			SinkConcurrency:      5,
		},
		Capture: CaptureConfig{
			OtherPartySenders: []string{"assistant", "bot", "豆包"},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
