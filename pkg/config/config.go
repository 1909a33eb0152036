package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the image scanner
type Config struct {
	// Extraction backend settings
	Backend BackendConfig `yaml:"backend" json:"backend"`

	// Scan behavior
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Export / download settings
	Export ExportConfig `yaml:"export" json:"export"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BackendConfig holds extraction backend connection settings
type BackendConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	ListenAddr     string        `yaml:"listen_addr" json:"listen_addr"`
}

// ScanConfig holds scan workflow settings
type ScanConfig struct {
	// ConcurrentRequests bounds simultaneous batch extraction requests
	ConcurrentRequests int  `yaml:"concurrent_requests" json:"concurrent_requests"`
	DeepScrape         bool `yaml:"deep_scrape" json:"deep_scrape"`
	MaxRetries         int  `yaml:"max_retries" json:"max_retries"`
}

// ExportConfig holds image download and archive settings
type ExportConfig struct {
	OutputDirectory   string        `yaml:"output_directory" json:"output_directory"`
	ArchiveName       string        `yaml:"archive_name" json:"archive_name"`
	ConcurrentFetches int           `yaml:"concurrent_fetches" json:"concurrent_fetches"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8750",
			RequestTimeout: 60 * time.Second,
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			ListenAddr:     ":8750",
		},
		Scan: ScanConfig{
			ConcurrentRequests: 3,
			DeepScrape:         false,
			MaxRetries:         2,
		},
		Export: ExportConfig{
			OutputDirectory:   "./images",
			ArchiveName:       "images.zip",
			ConcurrentFetches: 4,
			FetchTimeout:      30 * time.Second,
			RequestsPerMinute: 120,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if baseURL := os.Getenv("IMGSCAN_BACKEND_URL"); baseURL != "" {
		c.Backend.BaseURL = baseURL
	}
	if addr := os.Getenv("IMGSCAN_LISTEN_ADDR"); addr != "" {
		c.Backend.ListenAddr = addr
	}
	if ua := os.Getenv("IMGSCAN_USER_AGENT"); ua != "" {
		c.Backend.UserAgent = ua
	}
	if concurrent := os.Getenv("IMGSCAN_CONCURRENT_REQUESTS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Scan.ConcurrentRequests = val
		}
	}
	if outputDir := os.Getenv("IMGSCAN_OUTPUT_DIR"); outputDir != "" {
		c.Export.OutputDirectory = outputDir
	}
	if logLevel := os.Getenv("IMGSCAN_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	locations := []string{
		".imgscan.yaml",
		".imgscan.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "imgscan", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".imgscan.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend base URL is required"))
	}
	if c.Backend.RequestTimeout <= 0 {
		errs = append(errs, errors.New("backend request timeout must be positive"))
	}
	if c.Scan.ConcurrentRequests <= 0 {
		errs = append(errs, errors.New("concurrent requests must be positive"))
	}
	if c.Scan.ConcurrentRequests > 10 {
		errs = append(errs, errors.New("concurrent requests should not exceed 10"))
	}
	if c.Scan.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Export.OutputDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Export.ConcurrentFetches <= 0 {
		errs = append(errs, errors.New("concurrent fetches must be positive"))
	}
	if c.Export.ArchiveName == "" {
		errs = append(errs, errors.New("archive name is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeFlags merges command line flag values into the configuration
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if baseURL, ok := flags["backend"].(string); ok && baseURL != "" {
		c.Backend.BaseURL = baseURL
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Export.OutputDirectory = outputDir
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Scan.ConcurrentRequests = concurrent
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment variables > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".imgscan.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config.LoadFromEnv()
	config.MergeFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}
