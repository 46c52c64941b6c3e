package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Dir is the per-project directory holding configuration and state.
const Dir = ".envcheck"

// DefaultPath is where LoadConfig looks when no path is given.
var DefaultPath = filepath.Join(Dir, "config.yaml")

// Config represents the runtime configuration from .envcheck/config.yaml.
type Config struct {
	LogLevel     string             `yaml:"log_level"`
	Requirements RequirementsConfig `yaml:"requirements"`
	PHP          PHPConfig          `yaml:"php"`
	History      HistoryConfig      `yaml:"history"`
	API          APIConfig          `yaml:"api"`
	Release      ReleaseConfig      `yaml:"release"`
}

// RequirementsConfig points at the checklist. An empty path selects the
// built-in list.
type RequirementsConfig struct {
	Path string `yaml:"path"`
}

// PHPConfig defines how the interpreter is probed.
type PHPConfig struct {
	Binary   string        `yaml:"binary"`
	Timeout  time.Duration `yaml:"timeout"`
	DiskPath string        `yaml:"disk_path"`
}

// HistoryConfig defines check run history settings.
type HistoryConfig struct {
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
	Persist    bool   `yaml:"persist"`
}

// APIConfig defines the HTTP surface.
type APIConfig struct {
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
	// Debug exposes raw messages of unexpected errors in responses.
	Debug bool `yaml:"debug"`
}

// ReleaseConfig names the repository whose releases announce updates.
type ReleaseConfig struct {
	Repo  string `yaml:"repo"` // owner/name
	Token string `yaml:"token"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		PHP: PHPConfig{
			Binary:  "php",
			Timeout: 30 * time.Second,
		},
		History: HistoryConfig{
			Path:       filepath.Join(Dir, "history.db"),
			MaxEntries: 100,
			Persist:    true,
		},
		API: APIConfig{
			Port: 8080,
		},
		Release: ReleaseConfig{
			Repo: "cgast/envcheck",
		},
	}
}

// LoadConfig reads and parses a runtime config YAML file, interpolating
// ${VAR} references first. Returns default config if the file doesn't exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	interpolated := interpolateEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	if c.PHP.Timeout < 0 {
		return fmt.Errorf("php.timeout must not be negative")
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must not be negative")
	}
	if c.Release.Repo != "" {
		if _, _, err := c.Release.OwnerRepo(); err != nil {
			return err
		}
	}
	return nil
}

// OwnerRepo splits Repo into its owner and name.
func (r ReleaseConfig) OwnerRepo() (string, string, error) {
	owner, name, ok := strings.Cut(r.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("release.repo %q: want owner/name", r.Repo)
	}
	return owner, name, nil
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match // Leave unresolved if not set.
	})
}
