// Package config provides XML-based configuration management.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"KnowledgeBaseConsole"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Remote knowledge-base service
	KnowledgeBase KnowledgeBaseConfig `xml:"KnowledgeBase"`

	// Upload view behaviour
	Upload UploadConfig `xml:"Upload"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains staging storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	StagingDirectory string `xml:"StagingDirectory"`
}

// KnowledgeBaseConfig points at the remote service and fixes query parameters
type KnowledgeBaseConfig struct {
	APIBaseURL           string  `xml:"APIBaseURL"`
	UploadTimeoutSeconds int     `xml:"UploadTimeoutSeconds"`
	HealthTimeoutSeconds int     `xml:"HealthTimeoutSeconds"`
	QueryTopK            int     `xml:"QueryTopK"`
	QueryScoreThreshold  float64 `xml:"QueryScoreThreshold"`
}

// UploadConfig contains upload orchestration settings
type UploadConfig struct {
	ResetDelayMilliseconds int    `xml:"ResetDelayMilliseconds"`
	MetadataFile           string `xml:"MetadataFile"`
	SniffContentType       bool   `xml:"SniffContentType"`
	MaxSessions            int    `xml:"MaxSessions"`
	SessionTimeoutMinutes  int    `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         3000,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			IdleTimeout:  120,
			BodyLimit:    "512M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			StagingDirectory: "./data/staging",
		},
		KnowledgeBase: KnowledgeBaseConfig{
			APIBaseURL:           "http://localhost:8080",
			UploadTimeoutSeconds: 300,
			HealthTimeoutSeconds: 5,
			QueryTopK:            5,
			QueryScoreThreshold:  0.3,
		},
		Upload: UploadConfig{
			ResetDelayMilliseconds: 2000,
			MetadataFile:           "",
			SniffContentType:       false,
			MaxSessions:            10,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Knowledge Base Console Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if apiURL := os.Getenv("KB_API_URL"); apiURL != "" {
		c.KnowledgeBase.APIBaseURL = apiURL
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.StagingDirectory) {
		c.Storage.StagingDirectory = filepath.Join(configDir, c.Storage.StagingDirectory)
	}
	if c.Upload.MetadataFile != "" && !filepath.IsAbs(c.Upload.MetadataFile) {
		c.Upload.MetadataFile = filepath.Join(configDir, c.Upload.MetadataFile)
	}
}

// GetStagingDir returns the absolute staging directory path
func (c *AppConfig) GetStagingDir() string {
	return c.Storage.StagingDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// UploadTimeout returns the per-file upload timeout
func (c *AppConfig) UploadTimeout() time.Duration {
	return time.Duration(c.KnowledgeBase.UploadTimeoutSeconds) * time.Second
}

// HealthTimeout returns the timeout for upstream health checks
func (c *AppConfig) HealthTimeout() time.Duration {
	return time.Duration(c.KnowledgeBase.HealthTimeoutSeconds) * time.Second
}

// ResetDelay returns how long a fully successful batch stays visible
func (c *AppConfig) ResetDelay() time.Duration {
	return time.Duration(c.Upload.ResetDelayMilliseconds) * time.Millisecond
}

// SessionTimeout returns the idle time after which a session is dropped
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Upload.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often idle sessions are swept
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Upload.CleanupIntervalMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.StagingDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
