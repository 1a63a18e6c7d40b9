package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"markestedt/spark/platform"
)

// AppName names the config directory
const AppName = "spark"

type Config struct {
	Expander ExpanderConfig `toml:"expander"`
	Hotkey   HotkeyConfig   `toml:"hotkey"`
	Render   RenderConfig   `toml:"render"`
	Storage  StorageConfig  `toml:"storage"`
	Web      WebConfig      `toml:"web"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ExpanderConfig struct {
	Enabled        bool `toml:"enabled"`
	BufferSize     int  `toml:"buffer_size"`
	RestoreDelayMs int  `toml:"restore_delay_ms"`
	PasteSettleMs  int  `toml:"paste_settle_ms"`
	QueueSize      int  `toml:"queue_size"`
	// ExcludedApps lists executables in which nothing expands, matched
	// by file name without case or ".exe"
	ExcludedApps []string `toml:"excluded_apps"`
}

type HotkeyConfig struct {
	// Toggle pauses and resumes expansion; empty disables the hotkey
	Toggle string `toml:"toggle"`
}

type RenderConfig struct {
	// Interactive is "passthrough" or "defaults"
	Interactive string `toml:"interactive"`
}

type StorageConfig struct {
	// Path of the snippet database; empty means spark.db next to the config
	Path string `toml:"path"`
}

type WebConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default configuration
func Default() *Config {
	return &Config{
		Expander: ExpanderConfig{
			Enabled:        true,
			BufferSize:     100,
			RestoreDelayMs: 100,
			PasteSettleMs:  30,
			QueueSize:      16,
			ExcludedApps:   []string{},
		},
		Hotkey: HotkeyConfig{
			Toggle: "ctrl+alt+space",
		},
		Render: RenderConfig{
			Interactive: "passthrough",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    7341,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Dir returns the configuration directory, creating it if needed.
// SPARK_CONFIG_DIR overrides the per-user default.
func Dir() (string, error) {
	dir := os.Getenv("SPARK_CONFIG_DIR")
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate config directory: %w", err)
		}
		dir = filepath.Join(base, AppName)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the default location
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from path.
// If the file doesn't exist, it creates it with default values
func LoadFrom(configPath string) (*Config, error) {
	// If config doesn't exist, create it with defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	// Load existing config
	cfg := Default()
	md, err := toml.DecodeFile(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("Unknown config key", "key", key.String())
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// Save writes the configuration to the TOML file
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// DatabasePath resolves the snippet database location
func (c *Config) DatabasePath(configDir string) string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(configDir, "spark.db")
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	var errs []error

	if c.Expander.BufferSize < 2 {
		errs = append(errs, fmt.Errorf("expander.buffer_size must be at least 2, got %d", c.Expander.BufferSize))
	}
	if c.Expander.RestoreDelayMs < 0 {
		errs = append(errs, fmt.Errorf("expander.restore_delay_ms must not be negative"))
	}
	if c.Expander.PasteSettleMs < 0 {
		errs = append(errs, fmt.Errorf("expander.paste_settle_ms must not be negative"))
	}
	if c.Expander.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("expander.queue_size must be at least 1"))
	}
	for _, app := range c.Expander.ExcludedApps {
		if strings.TrimSpace(app) == "" {
			errs = append(errs, fmt.Errorf("expander.excluded_apps must not contain empty names"))
			break
		}
	}

	if c.Hotkey.Toggle != "" {
		if _, err := ParseHotkey(c.Hotkey.Toggle); err != nil {
			errs = append(errs, fmt.Errorf("hotkey.toggle: %w", err))
		}
	}

	switch strings.ToLower(c.Render.Interactive) {
	case "", "passthrough", "defaults":
	default:
		errs = append(errs, fmt.Errorf("render.interactive must be passthrough or defaults, got %q", c.Render.Interactive))
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web.port out of range: %d", c.Web.Port))
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a logging level name to slog
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("logging.level: %w", err)
	}
	return l, nil
}

// ParseHotkey parses a hotkey combo string like "ctrl+alt+space"
func ParseHotkey(combo string) (platform.KeyCombo, error) {
	var kc platform.KeyCombo
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")

	if len(parts) == 0 || parts[0] == "" {
		return kc, fmt.Errorf("empty hotkey combo")
	}

	for i, part := range parts {
		part = strings.TrimSpace(part)

		// Check if this part is a modifier
		isModifier := false
		switch part {
		case "ctrl", "control":
			kc.Ctrl = true
			isModifier = true
		case "shift":
			kc.Shift = true
			isModifier = true
		case "alt", "option":
			kc.Alt = true
			isModifier = true
		case "win", "windows", "super", "cmd":
			kc.Win = true
			isModifier = true
		}

		// If it's not a modifier and it's the last part, it's the key
		if !isModifier {
			if i == len(parts)-1 && part != "" {
				kc.Key = part
			} else {
				return kc, fmt.Errorf("unknown modifier: %s", part)
			}
		}
	}

	if kc.Key == "" {
		return kc, fmt.Errorf("hotkey %q has no key", combo)
	}
	if !kc.Ctrl && !kc.Shift && !kc.Alt && !kc.Win {
		return kc, fmt.Errorf("hotkey %q needs at least one modifier", combo)
	}

	return kc, nil
}
