// Package config loads and saves settings for the m68k line-E JIT core.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the JIT translator configuration.
type Config struct {
	// Backend settings: which host ISA the translator targets.
	Backend struct {
		Target         string `toml:"target"` // "aarch64" (preferred) or "arm32" (fallback)
		EnablePeephole bool   `toml:"enable_peephole"`
	} `toml:"backend"`

	// RegAlloc settings
	RegAlloc struct {
		MaxTemps int `toml:"max_temps"` // host temporaries reserved per emitter; spec requires >= 6
	} `toml:"regalloc"`

	// Trace settings: consumed only by the developer-facing blockview/traceserver tools.
	Trace struct {
		Enabled      bool   `toml:"enabled"`
		ListenAddr   string `toml:"listen_addr"`
		IncludeFlags bool   `toml:"include_flags"`
		MaxEntries   int    `toml:"max_entries"`
	} `toml:"trace"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Backend.Target = "aarch64"
	cfg.Backend.EnablePeephole = true

	cfg.RegAlloc.MaxTemps = 6

	cfg.Trace.Enabled = false
	cfg.Trace.ListenAddr = "127.0.0.1:7068"
	cfg.Trace.IncludeFlags = true
	cfg.Trace.MaxEntries = 10000

	return cfg
}

// GetConfigPath returns the platform-specific config file path
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %APPDATA%\m68k-arm-jit\config.toml
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "m68k-arm-jit")

	case "darwin", "linux":
		// macOS/Linux: ~/.config/m68k-arm-jit/config.toml
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Fallback to current directory
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "m68k-arm-jit")

	default:
		// Unknown platform: use current directory
		return "config.toml"
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0750); err != nil {
		// If we can't create the directory, fall back to current directory
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read and parse config file
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file
	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	// Encode to TOML
	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
