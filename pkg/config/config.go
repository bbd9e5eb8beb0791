/*
Package config manages the TOML config for mentionserve.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bastiangx/mentionserve/internal/utils"
	"github.com/bastiangx/mentionserve/pkg/trigger"
	"github.com/charmbracelet/log"
)

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the entire config structure
type Config struct {
	Trigger TriggerConfig `toml:"trigger"`
	Suggest SuggestConfig `toml:"suggest"`
	Lookup  LookupConfig  `toml:"lookup"`
	Server  ServerConfig  `toml:"server"`
	CLI     CliConfig     `toml:"cli"`
}

// TriggerConfig mirrors trigger.Config in TOML form.
type TriggerConfig struct {
	Chars              string `toml:"chars"`
	Punctuation        string `toml:"punctuation"`
	MaxLength          int    `toml:"max_length"`
	AliasMaxLength     int    `toml:"alias_max_length"`
	MinLength          int    `toml:"min_length"`
	CapitalizedNames   bool   `toml:"capitalized_names"`
	NameMinLength      int    `toml:"name_min_length"`
	Competing          string `toml:"competing"`
	CompetingMinLength int    `toml:"competing_min_length"`
}

// SuggestConfig holds menu and cache options.
type SuggestConfig struct {
	Limit           int `toml:"limit"`
	CacheSize       int `toml:"cache_size"`
	LookupTimeoutMs int `toml:"lookup_timeout_ms"`
}

// LookupConfig selects and shapes the entity directory.
// With no Directory and no SQLite path the built-in sample is used.
type LookupConfig struct {
	LatencyMs int     `toml:"latency_ms"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
	Directory string  `toml:"directory"`
	SQLite    string  `toml:"sqlite"`
	Watch     bool    `toml:"watch"`
}

// ServerConfig has IPC options.
type ServerConfig struct {
	MaxText int `toml:"max_text"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	ShowPending bool `toml:"show_pending"`
	MenuWidth   int  `toml:"menu_width"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	tc := trigger.DefaultConfig()
	return &Config{
		Trigger: TriggerConfig{
			Chars:              tc.TriggerChars,
			Punctuation:        tc.Punctuation,
			MaxLength:          tc.MaxLength,
			AliasMaxLength:     tc.AliasMaxLength,
			MinLength:          tc.MinLength,
			CapitalizedNames:   tc.CapitalizedNames,
			NameMinLength:      tc.NameMinLength,
			Competing:          tc.Competing,
			CompetingMinLength: tc.CompetingMinLength,
		},
		Suggest: SuggestConfig{
			Limit:           5,
			CacheSize:       256,
			LookupTimeoutMs: 3000,
		},
		Lookup: LookupConfig{
			LatencyMs: 0,
			RateLimit: 0,
			Burst:     1,
			Watch:     true,
		},
		Server: ServerConfig{
			MaxText: 1000,
		},
		CLI: CliConfig{
			ShowPending: true,
			MenuWidth:   40,
		},
	}
}

// TriggerConfig converts the [trigger] section for trigger.NewMatcher.
func (c *Config) TriggerConfig() trigger.Config {
	t := c.Trigger
	return trigger.Config{
		TriggerChars:       t.Chars,
		Punctuation:        t.Punctuation,
		MaxLength:          t.MaxLength,
		AliasMaxLength:     t.AliasMaxLength,
		MinLength:          t.MinLength,
		NameMinLength:      t.NameMinLength,
		CapitalizedNames:   t.CapitalizedNames,
		Competing:          t.Competing,
		CompetingMinLength: t.CompetingMinLength,
	}
}

// LookupTimeout returns suggest.lookup_timeout_ms as a duration.
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.Suggest.LookupTimeoutMs) * time.Millisecond
}

// Latency returns lookup.latency_ms as a duration.
func (c *Config) Latency() time.Duration {
	return time.Duration(c.Lookup.LatencyMs) * time.Millisecond
}

// Validate checks values that would break the pipeline at startup.
func (c *Config) Validate() error {
	if err := c.TriggerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: trigger: %w", ErrInvalidConfig, err)
	}
	if c.Suggest.Limit < 1 {
		return fmt.Errorf("%w: suggest.limit=%d", ErrInvalidConfig, c.Suggest.Limit)
	}
	if c.Suggest.CacheSize < 0 {
		return fmt.Errorf("%w: suggest.cache_size=%d", ErrInvalidConfig, c.Suggest.CacheSize)
	}
	if c.Suggest.LookupTimeoutMs < 0 {
		return fmt.Errorf("%w: suggest.lookup_timeout_ms=%d", ErrInvalidConfig, c.Suggest.LookupTimeoutMs)
	}
	if c.Lookup.LatencyMs < 0 {
		return fmt.Errorf("%w: lookup.latency_ms=%d", ErrInvalidConfig, c.Lookup.LatencyMs)
	}
	if c.Lookup.RateLimit < 0 || (c.Lookup.RateLimit > 0 && c.Lookup.Burst < 1) {
		return fmt.Errorf("%w: lookup.rate_limit=%g burst=%d", ErrInvalidConfig, c.Lookup.RateLimit, c.Lookup.Burst)
	}
	if c.Lookup.Directory != "" && c.Lookup.SQLite != "" {
		return fmt.Errorf("%w: lookup.directory and lookup.sqlite are exclusive", ErrInvalidConfig)
	}
	if c.Server.MaxText < 1 {
		return fmt.Errorf("%w: server.max_text=%d", ErrInvalidConfig, c.Server.MaxText)
	}
	return nil
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		return utils.GetExecutableDir()
	}
	primaryPath := filepath.Join(homeDir, ".config", "mentionserve")
	if utils.WritableDir(primaryPath) {
		return primaryPath, nil
	}
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "mentionserve")
	if utils.WritableDir(macOSPath) {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/mentionserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}

	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}
	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at %s: %v. Using built-in defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}
	return LoadConfig(configPath)
}

// LoadConfig loads from a TOML file. Missing keys keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse keeps every key that has the right type and drops the rest.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	raw, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(raw, "trigger"); ok {
		extractTriggerConfig(section, &config.Trigger)
	}
	if section, ok := utils.ExtractSection(raw, "suggest"); ok {
		extractSuggestConfig(section, &config.Suggest)
	}
	if section, ok := utils.ExtractSection(raw, "lookup"); ok {
		extractLookupConfig(section, &config.Lookup)
	}
	if section, ok := utils.ExtractSection(raw, "server"); ok {
		if val, ok := utils.ExtractInt64(section, "max_text"); ok {
			config.Server.MaxText = val
		}
	}
	if section, ok := utils.ExtractSection(raw, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	return config, nil
}

func extractTriggerConfig(data map[string]any, t *TriggerConfig) {
	if val, ok := utils.ExtractString(data, "chars"); ok {
		t.Chars = val
	}
	if val, ok := utils.ExtractString(data, "punctuation"); ok {
		t.Punctuation = val
	}
	if val, ok := utils.ExtractInt64(data, "max_length"); ok {
		t.MaxLength = val
	}
	if val, ok := utils.ExtractInt64(data, "alias_max_length"); ok {
		t.AliasMaxLength = val
	}
	if val, ok := utils.ExtractInt64(data, "min_length"); ok {
		t.MinLength = val
	}
	if val, ok := utils.ExtractBool(data, "capitalized_names"); ok {
		t.CapitalizedNames = val
	}
	if val, ok := utils.ExtractInt64(data, "name_min_length"); ok {
		t.NameMinLength = val
	}
	if val, ok := utils.ExtractString(data, "competing"); ok {
		t.Competing = val
	}
	if val, ok := utils.ExtractInt64(data, "competing_min_length"); ok {
		t.CompetingMinLength = val
	}
}

func extractSuggestConfig(data map[string]any, s *SuggestConfig) {
	if val, ok := utils.ExtractInt64(data, "limit"); ok {
		s.Limit = val
	}
	if val, ok := utils.ExtractInt64(data, "cache_size"); ok {
		s.CacheSize = val
	}
	if val, ok := utils.ExtractInt64(data, "lookup_timeout_ms"); ok {
		s.LookupTimeoutMs = val
	}
}

func extractLookupConfig(data map[string]any, l *LookupConfig) {
	if val, ok := utils.ExtractInt64(data, "latency_ms"); ok {
		l.LatencyMs = val
	}
	if val, ok := utils.ExtractFloat(data, "rate_limit"); ok {
		l.RateLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "burst"); ok {
		l.Burst = val
	}
	if val, ok := utils.ExtractString(data, "directory"); ok {
		l.Directory = val
	}
	if val, ok := utils.ExtractString(data, "sqlite"); ok {
		l.SQLite = val
	}
	if val, ok := utils.ExtractBool(data, "watch"); ok {
		l.Watch = val
	}
}

func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractBool(data, "show_pending"); ok {
		cli.ShowPending = val
	}
	if val, ok := utils.ExtractInt64(data, "menu_width"); ok {
		cli.MenuWidth = val
	}
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	if abs, err := filepath.Abs(configPath); err == nil {
		return abs
	}
	return configPath
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.WriteTOMLFile(config, configPath)
}
