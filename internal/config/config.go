package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/menta2k/geotag/internal/utils"
)

// Config holds the application configuration
type Config struct {
	Extractor ExtractorConfig `json:"extractor"`
	Memory    MemoryConfig    `json:"memory"`
	Logging   LoggingConfig   `json:"logging"`
	Scan      ScanConfig      `json:"scan"`
}

// ExtractorConfig holds configuration for location extraction
type ExtractorConfig struct {
	TempDir          string `json:"temp_dir"`
	MaxBufferedBytes int64  `json:"max_buffered_bytes"`
}

// MemoryConfig holds configuration for memory map grouping
type MemoryConfig struct {
	H3Resolution int `json:"h3_resolution"`
}

// LoggingConfig holds configuration for log output
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// ScanConfig holds configuration for directory scans
type ScanConfig struct {
	Workers    int      `json:"workers"`
	Extensions []string `json:"extensions"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Extractor: ExtractorConfig{
			TempDir:          "",
			MaxBufferedBytes: 64 << 20,
		},
		Memory: MemoryConfig{
			H3Resolution: 9,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Scan: ScanConfig{
			Workers:    4,
			Extensions: append([]string(nil), utils.DefaultImageExtensions...),
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from GEOTAG_* environment variables
func (c *Config) ApplyEnv() {
	c.Extractor.TempDir = getEnv("GEOTAG_TEMP_DIR", c.Extractor.TempDir)
	c.Logging.Level = getEnv("GEOTAG_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("GEOTAG_LOG_FORMAT", c.Logging.Format)
	c.Scan.Workers = getEnvAsInt("GEOTAG_SCAN_WORKERS", c.Scan.Workers)
	c.Memory.H3Resolution = getEnvAsInt("GEOTAG_H3_RESOLUTION", c.Memory.H3Resolution)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Extractor.MaxBufferedBytes < 1 {
		return fmt.Errorf("extractor.max_buffered_bytes must be positive")
	}

	if c.Extractor.TempDir != "" {
		info, err := os.Stat(c.Extractor.TempDir)
		if err != nil {
			return fmt.Errorf("extractor.temp_dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("extractor.temp_dir %s is not a directory", c.Extractor.TempDir)
		}
	}

	if c.Memory.H3Resolution < 0 || c.Memory.H3Resolution > 15 {
		return fmt.Errorf("memory.h3_resolution must be between 0 and 15")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text")
	}

	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be positive")
	}

	if len(c.Scan.Extensions) == 0 {
		return fmt.Errorf("scan.extensions cannot be empty")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "geotag", "config.json")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
