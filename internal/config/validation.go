package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// validateConfig validates configuration values for security and correctness.
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateResolveConfig(&config.Resolve); err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}
	if err := validateRelativeDir("public_dir", config.PublicDir); err != nil {
		return err
	}
	if config.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch config: debounce_ms must not be negative")
	}
	if config.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache config: max_entries must not be negative")
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// Port 0 is allowed for system-assigned ports in tests.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

func validateResolveConfig(config *ResolveConfig) error {
	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if err := validateRelativeDir("module_dir", config.ModuleDir); err != nil {
		return err
	}
	if err := validateRelativeDir("optimized_dir", config.OptimizedDir); err != nil {
		return err
	}
	return nil
}

// validateRelativeDir rejects traversal and absolute paths for directories
// that are joined against the project root.
func validateRelativeDir(name, dir string) error {
	if dir == "" {
		return nil
	}

	cleanPath := filepath.Clean(dir)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("%s contains path traversal: %s", name, dir)
	}
	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("%s should be a relative path: %s", name, dir)
	}
	return nil
}
