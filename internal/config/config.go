// Package config loads ~/.sagg/config.toml. There is no global instance:
// callers load once and pass the result down.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// SourceNames lists every known source in registry order.
var SourceNames = []string{"opencode", "claude", "codex", "cursor", "gemini", "ampcode", "pi"}

// SourceConfig controls one adapter. An empty Path means the adapter's
// default location.
type SourceConfig struct {
	Enabled bool
	Path    string
}

// Config is the loaded configuration.
type Config struct {
	Sources map[string]SourceConfig
}

// Default returns the configuration used when no file exists: every
// source enabled at its default location.
func Default() *Config {
	sources := make(map[string]SourceConfig, len(SourceNames))
	for _, name := range SourceNames {
		sources[name] = SourceConfig{Enabled: true}
	}
	return &Config{Sources: sources}
}

// DefaultPath returns ~/.sagg/config.toml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sagg", "config.toml")
}

// rawConfig is the TOML-decoding intermediary. Pointer fields distinguish
// absent keys from explicit values so partial files merge over defaults.
type rawConfig struct {
	Sources map[string]rawSource `toml:"sources"`
}

type rawSource struct {
	Enabled *bool   `toml:"enabled"`
	Path    *string `toml:"path"`
}

// Load reads configuration from path, or the default location when path
// is empty. A missing or unreadable file yields the defaults.
func Load(path string) *Config {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg
	}

	for name, rs := range raw.Sources {
		sc := cfg.Sources[name]
		if rs.Enabled != nil {
			sc.Enabled = *rs.Enabled
		}
		if rs.Path != nil {
			sc.Path = expandHome(*rs.Path)
		}
		cfg.Sources[name] = sc
	}
	return cfg
}

// Source returns the configuration for a named source. Unknown names are
// disabled.
func (c *Config) Source(name string) SourceConfig {
	return c.Sources[name]
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
