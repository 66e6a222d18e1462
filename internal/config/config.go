// Package config handles selfup configuration parsing and location resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adamancini/selfup/internal/backup"
)

// SourceType selects where releases are discovered.
type SourceType string

const (
	SourceGitHub   SourceType = "github"
	SourceManifest SourceType = "manifest"
)

// GitHubConfig points at a repository's releases.
type GitHubConfig struct {
	Owner string `yaml:"owner" toml:"owner" json:"owner"`
	Repo  string `yaml:"repo" toml:"repo" json:"repo"`
	Token string `yaml:"token,omitempty" toml:"token,omitempty" json:"token,omitempty"`
}

// ManifestConfig points at a latest.json release manifest.
type ManifestConfig struct {
	URL string `yaml:"url" toml:"url" json:"url"`
}

// BackupsConfig controls binary backups taken before an install.
type BackupsConfig struct {
	Dir  string `yaml:"dir,omitempty" toml:"dir,omitempty" json:"dir,omitempty"`
	Keep int    `yaml:"keep" toml:"keep" json:"keep"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" toml:"level" json:"level"`
	File  string `yaml:"file,omitempty" toml:"file,omitempty" json:"file,omitempty"`
}

// Config is the parsed configuration file.
type Config struct {
	Source      SourceType     `yaml:"source" toml:"source" json:"source"`
	GitHub      GitHubConfig   `yaml:"github" toml:"github" json:"github"`
	Manifest    ManifestConfig `yaml:"manifest" toml:"manifest" json:"manifest"`
	InstallPath string         `yaml:"install_path,omitempty" toml:"install_path,omitempty" json:"install_path,omitempty"` // defaults to the running executable
	Backups     BackupsConfig  `yaml:"backups" toml:"backups" json:"backups"`
	StateDir    string         `yaml:"state_dir,omitempty" toml:"state_dir,omitempty" json:"state_dir,omitempty"`
	Log         LogConfig      `yaml:"log" toml:"log" json:"log"`
	AssumeYes   bool           `yaml:"assume_yes" toml:"assume_yes" json:"assume_yes"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Source: SourceGitHub,
		GitHub: GitHubConfig{
			Owner: "adamancini",
			Repo:  "selfup",
		},
		Backups: BackupsConfig{Keep: backup.DefaultKeepCount},
		Log:     LogConfig{Level: "info"},
	}
}

// FindConfig searches for a config file in the standard locations.
// It returns an empty path and no error when none exists.
func FindConfig(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Check SELFUP_CONFIG environment variable
	if envPath := os.Getenv("SELFUP_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	var candidates []string
	for _, ext := range []string{".yaml", ".yml", ".toml", ".json"} {
		candidates = append(candidates, filepath.Join(xdgConfig, "selfup", "config"+ext))
	}
	for _, ext := range []string{".yaml", ".yml", ".toml", ".json"} {
		candidates = append(candidates, filepath.Join(home, ".selfup"+ext))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", nil
}

// Load reads and parses a config file from the given path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg, err := parse(content, format)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Resolve finds and loads the config, falling back to defaults. It returns
// the path that was loaded, empty when defaults are used.
func Resolve(explicitPath string) (*Config, string, error) {
	path, err := FindConfig(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return Default(), "", nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
