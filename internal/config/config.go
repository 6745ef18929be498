// Package config provides configuration management for viaduct using Viper
// for flexible loading from files, environment variables, and command-line
// flags.
//
// The configuration system supports YAML files, environment variable
// overrides with a VIADUCT_ prefix, and validation. It manages server
// settings, resolution options (alias table, extension probe order, module
// directories), the external compiler command, cache bounds, watcher
// behavior, and logging. All values are fixed for the process lifetime.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration, loaded once per process.
type Config struct {
	Server    ServerConfig   `yaml:"server" mapstructure:"server"`
	Root      string         `yaml:"root" mapstructure:"root"`
	PublicDir string         `yaml:"public_dir" mapstructure:"public_dir"`
	Resolve   ResolveConfig  `yaml:"resolve" mapstructure:"resolve"`
	Compiler  CompilerConfig `yaml:"compiler" mapstructure:"compiler"`
	Cache     CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Watch     WatchConfig    `yaml:"watch" mapstructure:"watch"`
	Log       LogConfig      `yaml:"log" mapstructure:"log"`
	HMR       HMRConfig      `yaml:"hmr" mapstructure:"hmr"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	Host           string   `yaml:"host" mapstructure:"host"`
	Open           bool     `yaml:"open" mapstructure:"open"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Environment    string   `yaml:"environment" mapstructure:"environment"`
}

// ResolveConfig controls how public request paths map onto files.
type ResolveConfig struct {
	// Alias maps exact import identifiers to their replacements,
	// checked before any other resolution strategy.
	Alias map[string]string `yaml:"alias" mapstructure:"alias"`
	// Extensions is the ordered probe list for extensionless requests.
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
	// ModuleDir is the directory name walked upward for package manifests.
	ModuleDir string `yaml:"module_dir" mapstructure:"module_dir"`
	// OptimizedDir holds pre-bundled dependency artifacts, relative to root.
	OptimizedDir string `yaml:"optimized_dir" mapstructure:"optimized_dir"`
}

// CompilerConfig identifies the external compiler service and its options.
type CompilerConfig struct {
	// Command is the compiler binary invoked per compile call.
	Command string `yaml:"command" mapstructure:"command"`
	// Args are fixed arguments placed before the per-call mode flag.
	Args []string `yaml:"args" mapstructure:"args"`
	// Options carries free-form per-kind compiler options; use
	// TemplateOptions/StyleOptions for the typed views.
	Options map[string]interface{} `yaml:"options" mapstructure:"options"`
}

// CacheConfig bounds the compilation cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// WatchConfig controls the file watcher.
type WatchConfig struct {
	DebounceMS int      `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	Ignore     []string `yaml:"ignore" mapstructure:"ignore"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// HMRConfig controls hot-module-reload behavior.
type HMRConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Overlay bool `yaml:"overlay" mapstructure:"overlay"`
}

// Debounce returns the watcher debounce window as a duration.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// DefaultExtensions is the probe order for extensionless requests. Order is
// significant: the first on-disk hit wins.
var DefaultExtensions = []string{".mjs", ".js", ".ts", ".jsx", ".tsx", ".vue", ".json"}

// Load reads the configuration from viper's current state and applies
// defaults and validation.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	// An explicitly configured port 0 survives, asking the kernel for a
	// free port; only an absent setting gets the default.
	if config.Server.Port == 0 && !viper.IsSet("server.port") {
		config.Server.Port = 3000
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Environment == "" {
		config.Server.Environment = "development"
	}
	if config.Root == "" {
		config.Root = "."
	}
	if config.PublicDir == "" {
		config.PublicDir = "public"
	}
	if len(config.Resolve.Extensions) == 0 {
		config.Resolve.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if config.Resolve.ModuleDir == "" {
		config.Resolve.ModuleDir = "node_modules"
	}
	if config.Resolve.OptimizedDir == "" {
		config.Resolve.OptimizedDir = "node_modules/.viaduct"
	}
	if config.Compiler.Command == "" {
		config.Compiler.Command = "vuec"
	}
	if config.Cache.MaxEntries == 0 {
		config.Cache.MaxEntries = 500
	}
	if config.Watch.DebounceMS == 0 {
		config.Watch.DebounceMS = 100
	}
	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = []string{"node_modules", ".git"}
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	// HMR defaults to enabled unless explicitly switched off.
	if !viper.IsSet("hmr.enabled") {
		config.HMR.Enabled = true
	}
	if !viper.IsSet("hmr.overlay") {
		config.HMR.Overlay = true
	}
}
