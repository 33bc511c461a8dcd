package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveAuthToken returns an auth token by checking sources in priority
// order, for CLI flags that want to avoid passing secrets on the command
// line or re-editing the INI config for a one-off override.
//
// Priority (highest to lowest):
//  1. The explicitly provided token (e.g. from a --token flag)
//  2. A token file alongside the INI config directory
//  3. The UPLOADCORE_AUTH_TOKEN environment variable
//
// Returns empty string if no token is found in any source.
func ResolveAuthToken(token string) string {
	if token != "" {
		return token
	}

	if tokenPath, err := DefaultTokenPath(); err == nil {
		if t, err := readTokenFile(tokenPath); err == nil && t != "" {
			return t
		}
	}

	return os.Getenv("UPLOADCORE_AUTH_TOKEN")
}

// DefaultTokenPath returns the path to the token file alongside the default
// INI config, for out-of-band token storage separate from the config file
// itself (so the config file can be safely shared/inspected).
func DefaultTokenPath() (string, error) {
	configPath, err := DefaultUploadConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(configPath), "token"), nil
}

// readTokenFile reads and trims a token file's contents.
func readTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
