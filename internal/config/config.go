// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for all databases (always absolute)
	Port           int
	LogLevel       string
	DevMode        bool
	ScoringWorkers int // Worker pool size for universe scoring (0 = NumCPU)

	// Cron expressions for scheduled jobs. Empty disables the job.
	RescoreCron    string
	ValuationCron  string
	CheckpointCron string
	BackupCron     string

	BackupDir string // Local backup destination (defaults to <DataDir>/backups)
	S3        *S3Config
}

// S3Config holds settings for off-site database backups. Credentials
// fall back to the standard AWS chain when not set explicitly.
type S3Config struct {
	Enabled         bool
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // Non-AWS S3-compatible endpoint, optional
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Resolve data directory to an absolute path and ensure it exists.
	dataDir := getEnv("LODESTAR_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("LODESTAR_PORT", 8710),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		ScoringWorkers: getEnvAsInt("SCORING_WORKERS", 0),
		RescoreCron:    getEnv("RESCORE_CRON", "0 30 6 * * *"),
		ValuationCron:  getEnv("VALUATION_CRON", "0 5 22 * * *"),
		CheckpointCron: getEnv("CHECKPOINT_CRON", "0 0 * * * *"),
		BackupCron:     getEnv("BACKUP_CRON", "0 15 1 * * *"),
		BackupDir:      getEnv("BACKUP_DIR", filepath.Join(absDataDir, "backups")),
		S3:             loadS3Config(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be in range 1-65535", c.Port)
	}
	if c.ScoringWorkers < 0 {
		return fmt.Errorf("invalid scoring workers %d: must be >= 0", c.ScoringWorkers)
	}
	if c.S3 != nil && c.S3.Enabled && c.S3.Bucket == "" {
		return fmt.Errorf("S3 backups enabled but S3_BACKUP_BUCKET is not set")
	}
	return nil
}

// EffectiveScoringWorkers resolves the worker pool size, substituting
// the CPU count when the configured value is zero.
func (c *Config) EffectiveScoringWorkers() int {
	if c.ScoringWorkers > 0 {
		return c.ScoringWorkers
	}
	return runtime.NumCPU()
}

func loadS3Config() *S3Config {
	return &S3Config{
		Enabled:         getEnvAsBool("S3_BACKUP_ENABLED", false),
		Bucket:          getEnv("S3_BACKUP_BUCKET", ""),
		Prefix:          getEnv("S3_BACKUP_PREFIX", "lodestar"),
		Region:          getEnv("S3_REGION", "us-east-1"),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
