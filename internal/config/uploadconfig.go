package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/ini.v1"
)

// Config is the upload orchestrator's own configuration: it carries only
// what the scheduler and worker need
// to talk to the catalog service and to stage temp files on disk.
//
// INI format:
//
//	[uploadcore]
//	endpoint = https://api.ente.io
//	auth_token = <token>
//	temp_dir = /tmp/uploadcore
//	user_id = 12345
//	allow_mobile_data_backup = false
//	last_bg_heartbeat_micros = 0
type Config struct {
	Endpoint              string `ini:"endpoint"`
	AuthToken             string `ini:"auth_token"`
	TempDir               string `ini:"temp_dir"`
	UserID                int64  `ini:"user_id"`
	AllowMobileDataBackup bool   `ini:"allow_mobile_data_backup"`
	LastBGHeartbeatMicros int64  `ini:"last_bg_heartbeat_micros"`
}

// DefaultUploadConfigPath returns a path under .config/uploadcore in the
// user's home directory (USERPROFILE on Windows).
func DefaultUploadConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("USERPROFILE environment variable not set")
		}
		configDir = filepath.Join(userProfile, ".config", "uploadcore")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "uploadcore")
	}

	return filepath.Join(configDir, "uploadconfig"), nil
}

// NewConfig returns a Config with sane defaults (no endpoint/token — those
// must be supplied).
func NewConfig() *Config {
	return &Config{
		TempDir:               os.TempDir(),
		AllowMobileDataBackup: false,
	}
}

// LoadConfig loads from an INI file. A missing file yields defaults, not an
// error; a malformed one does.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultUploadConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load uploadconfig: %w", err)
	}

	section := iniFile.Section("uploadcore")
	cfg.Endpoint = section.Key("endpoint").MustString(cfg.Endpoint)
	cfg.AuthToken = section.Key("auth_token").String()
	cfg.TempDir = section.Key("temp_dir").MustString(cfg.TempDir)
	cfg.UserID, _ = strconv.ParseInt(section.Key("user_id").MustString("0"), 10, 64)
	cfg.AllowMobileDataBackup = section.Key("allow_mobile_data_backup").MustBool(false)
	cfg.LastBGHeartbeatMicros = section.Key("last_bg_heartbeat_micros").MustInt64(0)

	return cfg, nil
}

// Save persists cfg atomically: write to a .tmp file then rename, the same
// crash-safe pattern used throughout this codebase's persisted state.
func (cfg *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = DefaultUploadConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()
	section, err := iniFile.NewSection("uploadcore")
	if err != nil {
		return fmt.Errorf("failed to create uploadcore section: %w", err)
	}
	section.Key("endpoint").SetValue(cfg.Endpoint)
	section.Key("auth_token").SetValue(cfg.AuthToken)
	section.Key("temp_dir").SetValue(cfg.TempDir)
	section.Key("user_id").SetValue(strconv.FormatInt(cfg.UserID, 10))
	section.Key("allow_mobile_data_backup").SetValue(strconv.FormatBool(cfg.AllowMobileDataBackup))
	section.Key("last_bg_heartbeat_micros").SetValue(strconv.FormatInt(cfg.LastBGHeartbeatMicros, 10))

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Validate checks the fields required to talk to the catalog service.
func (cfg *Config) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if cfg.AuthToken == "" {
		return fmt.Errorf("auth_token is required")
	}
	if cfg.TempDir == "" {
		return fmt.Errorf("temp_dir is required")
	}
	return nil
}
