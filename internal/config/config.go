package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for replique.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Transports TransportsConfig `json:"transports"`
	Completion CompletionConfig `json:"completion"`
	Engine     EngineConfig     `json:"engine"`
	Store      StoreConfig      `json:"store"`
	Metrics    MetricsConfig    `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel    string `json:"logLevel"`
	LogFile     string `json:"logFile,omitempty"`
	Prefix      string `json:"prefix"`                // command prefix, e.g. "!"
	PersonaFile string `json:"personaFile,omitempty"` // optional persona YAML override
}

type TransportsConfig struct {
	Discord  DiscordConfig  `json:"discord"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	Premium bool   `json:"premium,omitempty"` // Nitro account, raises the inline limit
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	OwnerID string `json:"ownerId,omitempty"` // user whose messages count as commands
}

type CompletionConfig struct {
	APIKey          string  `json:"apiKey"`
	Model           string  `json:"model"`
	MaxOutputTokens int32   `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
}

type EngineConfig struct {
	MaxTurns   int `json:"maxTurns"`   // context window cap, in turns
	CooldownMs int `json:"cooldownMs"` // per-author debounce after a reply
}

type StoreConfig struct {
	DBPath string `json:"dbPath"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// DefaultConfigDir returns the default config directory (~/.replique).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".replique"
	}
	return filepath.Join(home, ".replique")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

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

	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.General.PersonaFile = ExpandPath(cfg.General.PersonaFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
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
			return match
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

// Validate checks that the config has usable values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.Prefix == "" {
		errs = append(errs, "general.prefix must not be empty")
	}
	if cfg.Engine.MaxTurns < 2 || cfg.Engine.MaxTurns%2 != 0 {
		errs = append(errs, "engine.maxTurns must be an even number >= 2")
	}
	if cfg.Engine.CooldownMs < 0 {
		errs = append(errs, "engine.cooldownMs must be >= 0")
	}
	if cfg.Completion.MaxOutputTokens < 1 {
		errs = append(errs, "completion.maxOutputTokens must be >= 1")
	}
	if cfg.Completion.TopP <= 0 || cfg.Completion.TopP > 1 {
		errs = append(errs, "completion.topP must be in (0, 1]")
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be between 1 and 65535")
	}
	if cfg.Transports.Discord.Enabled && cfg.Transports.Discord.Token == "" {
		errs = append(errs, "transports.discord.token is required when discord is enabled")
	}
	if cfg.Transports.Telegram.Enabled && cfg.Transports.Telegram.Token == "" {
		errs = append(errs, "transports.telegram.token is required when telegram is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves a leading ~/ to the user's home directory.
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
