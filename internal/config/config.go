// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for all databases (defaults to "./data", always absolute)
	AssetsDir string // Root of the ticker YAML tree, one subdirectory per category
	ImportDir string // Drop directory for CSV price files
	LogLevel  string
	LogFile   string // Optional rotating log file, empty = console only
	Port      int
	DevMode   bool

	DefaultFrequency formulas.Frequency
	RiskFreeRate     float64 // Annual rate used by the Aggressive profile
	CacheTTL         time.Duration
	Solver           optimization.SolverSettings

	OptimizeRateLimit float64 // Optimize requests per second, 0 = unlimited
	OptimizeRateBurst int

	PriceSyncSchedule   string // Cron spec for CSV imports, empty disables
	CacheCleanSchedule  string
	MaintenanceSchedule string

	Backup *BackupConfig
}

// BackupConfig holds S3-compatible backup settings
type BackupConfig struct {
	Bucket          string // Empty disables backups
	Region          string
	Endpoint        string // Custom endpoint for R2/MinIO, empty = AWS
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	Schedule        string
	RetentionDays   int
}

// Enabled reports whether a bucket is configured.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ALLOCATOR_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	solver := optimization.DefaultSolverSettings()
	solver.MaxIterations = getEnvAsInt("SOLVER_MAX_ITERATIONS", solver.MaxIterations)
	solver.MaxFuncEvaluations = getEnvAsInt("SOLVER_MAX_FUNC_EVALUATIONS", solver.MaxFuncEvaluations)
	solver.IterationsPerAsset = getEnvAsInt("SOLVER_ITERATIONS_PER_ASSET", solver.IterationsPerAsset)
	solver.StrictConvergence = getEnvAsBool("SOLVER_STRICT_CONVERGENCE", false)

	cfg := &Config{
		DataDir:             absDataDir,
		AssetsDir:           getEnv("ASSETS_DIR", filepath.Join(absDataDir, "assets")),
		ImportDir:           getEnv("PRICE_IMPORT_DIR", filepath.Join(absDataDir, "import")),
		Port:                getEnvAsInt("GO_PORT", 8001),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFile:             getEnv("LOG_FILE", ""),
		DefaultFrequency:    formulas.Frequency(getEnv("DEFAULT_FREQUENCY", string(formulas.Daily))),
		RiskFreeRate:        getEnvAsFloat("AGGRESSIVE_RISK_FREE_RATE", optimization.DefaultRiskFreeRate),
		CacheTTL:            time.Duration(getEnvAsInt("CACHE_TTL_HOURS", 24)) * time.Hour,
		Solver:              solver,
		OptimizeRateLimit:   getEnvAsFloat("OPTIMIZE_RATE_LIMIT", 5),
		OptimizeRateBurst:   getEnvAsInt("OPTIMIZE_RATE_BURST", 10),
		PriceSyncSchedule:   getEnv("PRICE_SYNC_SCHEDULE", "0 */15 * * * *"),
		CacheCleanSchedule:  getEnv("CACHE_CLEAN_SCHEDULE", "0 0 * * * *"),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 4 * * 0"),
		Backup:              loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configured values are usable
func (c *Config) Validate() error {
	if _, err := formulas.AnnualizationFactor(c.DefaultFrequency); err != nil {
		return fmt.Errorf("DEFAULT_FREQUENCY: %w", err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL_HOURS must not be negative")
	}
	if c.Solver.MaxIterations <= 0 {
		return fmt.Errorf("SOLVER_MAX_ITERATIONS must be positive, got %d", c.Solver.MaxIterations)
	}
	if c.OptimizeRateLimit < 0 {
		return fmt.Errorf("OPTIMIZE_RATE_LIMIT must not be negative")
	}
	if c.Backup.Enabled() && c.Backup.RetentionDays < 0 {
		return fmt.Errorf("BACKUP_RETENTION_DAYS must not be negative")
	}
	return nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		Prefix:          getEnv("BACKUP_PREFIX", "allocator-backup-"),
		Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}
}
