package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config is the root configuration for Meetly.
type Config struct {
	General   GeneralConfig             `json:"general"`
	Providers map[string]ProviderConfig `json:"providers"`
	Channels  ChannelsConfig            `json:"channels"`
	Memory    MemoryConfig              `json:"memory"`
	Contacts  ContactsConfig            `json:"contacts"`
	Calendar  CalendarConfig            `json:"calendar"`
	Scheduler SchedulerConfig           `json:"scheduler"`
	Reminders RemindersConfig           `json:"reminders"`
	Email     EmailConfig               `json:"email"`
}

type GeneralConfig struct {
	LogLevel        string   `json:"logLevel"`
	LogFile         string   `json:"logFile,omitempty"`
	DefaultProvider string   `json:"defaultProvider"`
	FailoverChain   []string `json:"failoverChain,omitempty"` // provider failover order
	Timezone        string   `json:"timezone"`                // IANA name, "Local" allowed
}

type ProviderConfig struct {
	Enabled      bool   `json:"enabled"`
	APIBase      string `json:"apiBase,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty"`
}

type ChannelsConfig struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Web       WebConfig       `json:"web"`
	Websocket WebsocketConfig `json:"websocket"`
	CLI       CLIConfig       `json:"cli"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	ParseMode string   `json:"parseMode"`
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type WebsocketConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

type MemoryConfig struct {
	Enabled                   bool   `json:"enabled"`
	DBPath                    string `json:"dbPath"`
	MaxHistoryPerConversation int    `json:"maxHistoryPerConversation"`
}

type ContactsConfig struct {
	APIBase string `json:"apiBase"`
	APIKey  string `json:"apiKey,omitempty"`
	// Warmup issues one empty search before the first real query. Some
	// directory backends return stale empty results until primed.
	Warmup bool `json:"warmup"`
}

type CalendarConfig struct {
	APIBase        string `json:"apiBase"`
	APIKey         string `json:"apiKey,omitempty"`
	CalendarID     string `json:"calendarId"`
	WorkdayStart   int    `json:"workdayStartHour"`
	WorkdayEnd     int    `json:"workdayEndHour"`
	SlotStepMin    int    `json:"slotStepMinutes"`
	MaxSuggestions int    `json:"maxSuggestions"`
}

type SchedulerConfig struct {
	DefaultDurationMin int `json:"defaultDurationMinutes"`
}

type RemindersConfig struct {
	Enabled  bool   `json:"enabled"`
	CronExpr string `json:"cronExpr"`
}

type EmailConfig struct {
	Enabled     bool   `json:"enabled"`
	SendGridKey string `json:"sendgridKey,omitempty"`
	FromName    string `json:"fromName"`
	FromAddress string `json:"fromAddress"`
}

// DefaultConfigDir returns the default config directory (~/.meetly).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".meetly"
	}
	return filepath.Join(home, ".meetly")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Memory.DBPath = ExpandPath(cfg.Memory.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Channels.Web.Port < 0 || cfg.Channels.Web.Port > 65535 {
		errs = append(errs, "channels.web.port must be between 0 and 65535")
	}
	if cfg.Channels.Websocket.Port < 0 || cfg.Channels.Websocket.Port > 65535 {
		errs = append(errs, "channels.websocket.port must be between 0 and 65535")
	}
	if cfg.Memory.MaxHistoryPerConversation < 1 {
		errs = append(errs, "memory.maxHistoryPerConversation must be >= 1")
	}
	if cfg.Calendar.WorkdayStart < 0 || cfg.Calendar.WorkdayStart > 23 {
		errs = append(errs, "calendar.workdayStartHour must be between 0 and 23")
	}
	if cfg.Calendar.WorkdayEnd <= cfg.Calendar.WorkdayStart || cfg.Calendar.WorkdayEnd > 24 {
		errs = append(errs, "calendar.workdayEndHour must be after workdayStartHour and at most 24")
	}
	if cfg.Calendar.SlotStepMin < 1 {
		errs = append(errs, "calendar.slotStepMinutes must be >= 1")
	}
	if cfg.Calendar.MaxSuggestions < 1 {
		errs = append(errs, "calendar.maxSuggestions must be >= 1")
	}
	if cfg.Scheduler.DefaultDurationMin < 1 {
		errs = append(errs, "scheduler.defaultDurationMinutes must be >= 1")
	}
	if cfg.General.Timezone != "" && cfg.General.Timezone != "Local" {
		if _, err := time.LoadLocation(cfg.General.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("general.timezone is not a valid IANA name: %s", cfg.General.Timezone))
		}
	}
	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		errs = append(errs, "email.fromAddress is required when email is enabled")
	}

	// Validate failover chain references exist in providers.
	for _, provName := range cfg.General.FailoverChain {
		if _, ok := cfg.Providers[provName]; !ok {
			errs = append(errs, fmt.Sprintf("general.failoverChain references unknown provider: %s", provName))
		}
	}

	for name, pc := range cfg.Providers {
		if pc.Enabled && pc.APIBase == "" && name != "ollama" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
