// Package config loads and validates the backupwatch YAML configuration.
//
// Unknown keys are rejected so typos in check definitions fail loudly at
// startup instead of silently disabling a check.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/backupwatch/backupwatch/internal/fsutil"
	"github.com/backupwatch/backupwatch/internal/sizeconv"
)

// ErrValidation is wrapped by every configuration validation failure.
var ErrValidation = errors.New("invalid configuration")

var (
	namePattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

var logLevels = map[string]bool{
	"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true,
}

// CheckConfig describes a single backup directory check.
type CheckConfig struct {
	// Name is a short identifier for the backup, used in reports and alerts.
	Name string `yaml:"name"`
	// BackupDir is the directory holding the backup files.
	BackupDir string `yaml:"backup_dir"`
	// Days is the maximum age for backup files to count as current.
	Days int `yaml:"days"`
	// MinSize is the minimum expected total size of current backups.
	MinSize string `yaml:"min_size"`
	// IncludeSubdirs scans the directory tree instead of only the top level.
	IncludeSubdirs bool `yaml:"include_subdirs"`
	// Exclude lists glob patterns for filenames to ignore.
	Exclude []string `yaml:"exclude"`
}

// MinSizeBytes returns the check's minimum size in bytes.
// Call only after Validate has accepted the config.
func (c *CheckConfig) MinSizeBytes() (int64, error) {
	return sizeconv.ParseSize(c.MinSize)
}

// Config is the top-level application configuration.
type Config struct {
	ToEmail          []string      `yaml:"to_email"`
	PushoverPriority int           `yaml:"pushover_priority"`
	LogLevel         string        `yaml:"log_level"`
	LogFile          string        `yaml:"log_file"`
	MinFreeSpace     string        `yaml:"min_free_space"`
	UptimeKumaURL    string        `yaml:"uptime_kuma_url"`
	Checks           []CheckConfig `yaml:"backup_check_list"`
}

// MinFreeSpaceBytes returns the global free-space requirement in bytes.
func (c *Config) MinFreeSpaceBytes() (int64, error) {
	return sizeconv.ParseSize(c.MinFreeSpace)
}

// defaults returns a Config with the documented default values filled in.
func defaults() Config {
	return Config{
		PushoverPriority: -1,
		LogLevel:         "INFO",
		LogFile:          "log/backupwatch.log",
		MinFreeSpace:     "100 GB",
	}
}

// Load reads, decodes, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	full, err := fsutil.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %q: %w", path, err)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates raw YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field against its documented constraints.
func (c *Config) Validate() error {
	for _, email := range c.ToEmail {
		if !emailPattern.MatchString(email) {
			return fmt.Errorf("%w: invalid email address: %q", ErrValidation, email)
		}
	}

	if c.PushoverPriority < -2 || c.PushoverPriority > 2 {
		return fmt.Errorf("%w: pushover_priority must be between -2 and 2, got %d", ErrValidation, c.PushoverPriority)
	}

	if !logLevels[c.LogLevel] {
		return fmt.Errorf("%w: invalid log_level %q (expected DEBUG, INFO, WARNING or ERROR)", ErrValidation, c.LogLevel)
	}

	if !sizeconv.ValidateSize(c.MinFreeSpace) {
		return fmt.Errorf("%w: invalid min_free_space %q (expected format like '100 GB')", ErrValidation, c.MinFreeSpace)
	}

	if len(c.Checks) == 0 {
		return fmt.Errorf("%w: at least one backup check must be configured", ErrValidation)
	}

	seen := make(map[string]bool)
	for i := range c.Checks {
		check := &c.Checks[i]
		if err := check.validate(); err != nil {
			return err
		}
		if seen[check.Name] {
			return fmt.Errorf("%w: duplicate backup name %q", ErrValidation, check.Name)
		}
		seen[check.Name] = true
	}

	return nil
}

func (c *CheckConfig) validate() error {
	if c.Name == "" || !namePattern.MatchString(c.Name) {
		return fmt.Errorf("%w: backup name %q must contain only alphanumerics, hyphens and underscores", ErrValidation, c.Name)
	}

	if c.BackupDir == "" {
		return fmt.Errorf("%w: backup %q: backup_dir cannot be empty", ErrValidation, c.Name)
	}

	if c.Days <= 0 || c.Days > 365 {
		return fmt.Errorf("%w: backup %q: days must be between 1 and 365, got %d", ErrValidation, c.Name, c.Days)
	}

	if c.MinSize == "" {
		c.MinSize = "1 KB"
	}
	if !sizeconv.ValidateSize(c.MinSize) {
		return fmt.Errorf("%w: backup %q: invalid min_size %q (expected format like '10 GB')", ErrValidation, c.Name, c.MinSize)
	}

	for _, pattern := range c.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("%w: backup %q: exclude pattern %q: %v", ErrValidation, c.Name, pattern, err)
		}
	}

	return nil
}

// Example returns a documented sample configuration.
func Example() Config {
	return Config{
		ToEmail:          []string{"admin@example.com"},
		PushoverPriority: -1,
		LogLevel:         "INFO",
		LogFile:          "log/backupwatch.log",
		MinFreeSpace:     "100 GB",
		Checks: []CheckConfig{
			{
				Name:      "proxmox",
				BackupDir: "/mnt/backup_usb1/vm-containers/dump",
				Days:      8,
				MinSize:   "10 GB",
			},
			{
				Name:      "homeassistant",
				BackupDir: "/mnt/backup_usb1/homeassistant",
				Days:      1,
				MinSize:   "30 GB",
			},
			{
				Name:           "proxmox-config",
				BackupDir:      "/mnt/backup_usb1/proxmox-config/daily",
				Days:           1,
				MinSize:        "10 KB",
				IncludeSubdirs: true,
				Exclude:        []string{"*.tmp"},
			},
		},
	}
}

// SaveExample writes the sample configuration to path in YAML form,
// creating parent directories as needed.
func SaveExample(path string) error {
	full, err := fsutil.ExpandPath(path)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", path, err)
	}
	if dir := filepath.Dir(full); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	example := Example()
	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("encode example config: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write example config: %w", err)
	}
	return nil
}
