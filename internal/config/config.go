// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/xfw5/Market-Research/internal/domain"
	"github.com/xfw5/Market-Research/internal/market_regime"
	"github.com/xfw5/Market-Research/internal/modules/allocation"
	"github.com/xfw5/Market-Research/internal/modules/paper"
	"github.com/xfw5/Market-Research/internal/modules/risk"
	"github.com/xfw5/Market-Research/internal/modules/selection"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for all databases (always absolute)
	LogLevel     string
	LogPretty    bool
	Port         int
	DevMode      bool
	SeedFile     string // Optional market data seed imported at startup
	StrategyFile string // Optional YAML overlay for the strategy parameters

	Schedule  ScheduleConfig
	Strategy  StrategyConfig
	Paper     PaperConfig
	Breaker   BreakerConfig
	RateLimit RateLimitConfig
	Backup    BackupConfig
}

// ScheduleConfig holds cron specs (with seconds field)
type ScheduleConfig struct {
	Cycle       string
	MaRefresh   string
	Maintenance string
	Backup      string
	Holidays    []string // Exchange holidays, YYYY-MM-DD
}

// PaperConfig configures the simulated broker
type PaperConfig struct {
	StartingCash float64
}

// BreakerConfig configures the order gateway circuit breaker
type BreakerConfig struct {
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

// RateLimitConfig limits manual cycle triggers over HTTP
type RateLimitConfig struct {
	CycleRunPerMinute float64
	Burst             int
}

// BackupConfig configures the S3-compatible database backup
type BackupConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // Non-empty for S3-compatible stores (R2, MinIO)
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	RetentionDays   int
}

// Enabled reports whether a bucket is configured
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ENGINE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getEnvAsBool("LOG_PRETTY", false),
		Port:         getEnvAsInt("ENGINE_PORT", 8001),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		SeedFile:     getEnv("ENGINE_SEED_FILE", ""),
		StrategyFile: getEnv("ENGINE_STRATEGY_FILE", ""),
		Schedule: ScheduleConfig{
			Cycle:       getEnv("SCHEDULE_CYCLE", "0 */5 9-14 * * 1-5"),
			MaRefresh:   getEnv("SCHEDULE_MA_REFRESH", "0 20 9 * * 1-5"),
			Maintenance: getEnv("SCHEDULE_MAINTENANCE", "0 0 3 * * *"),
			Backup:      getEnv("SCHEDULE_BACKUP", "0 30 3 * * *"),
			Holidays:    getEnvAsList("TRADING_HOLIDAYS"),
		},
		Strategy: DefaultStrategy(),
		Paper: PaperConfig{
			StartingCash: getEnvAsFloat("PAPER_STARTING_CASH", 1000000),
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: uint32(getEnvAsInt("BREAKER_CONSECUTIVE_FAILURES", 3)),
			Cooldown:            getEnvAsDuration("BREAKER_COOLDOWN", 60*time.Second),
		},
		RateLimit: RateLimitConfig{
			CycleRunPerMinute: getEnvAsFloat("CYCLE_RUN_PER_MINUTE", 6),
			Burst:             getEnvAsInt("CYCLE_RUN_BURST", 2),
		},
		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("BACKUP_S3_PREFIX", "engine"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if cfg.StrategyFile != "" {
		if err := cfg.Strategy.LoadFile(cfg.StrategyFile); err != nil {
			return nil, err
		}
	}
	cfg.Strategy.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the whole configuration, reporting every problem at once
func (c *Config) Validate() error {
	var errs []error

	for name, spec := range map[string]string{
		"cycle":       c.Schedule.Cycle,
		"ma refresh":  c.Schedule.MaRefresh,
		"maintenance": c.Schedule.Maintenance,
		"backup":      c.Schedule.Backup,
	} {
		if spec == "" {
			continue
		}
		if _, err := cronParser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s schedule %q: %v", domain.ErrInvalidConfig, name, spec, err))
		}
	}

	for _, day := range c.Schedule.Holidays {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			errs = append(errs, fmt.Errorf("%w: holiday %q is not YYYY-MM-DD", domain.ErrInvalidConfig, day))
		}
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: port %d out of range", domain.ErrInvalidConfig, c.Port))
	}
	if c.Paper.StartingCash < 0 {
		errs = append(errs, fmt.Errorf("%w: starting cash must be >= 0", domain.ErrInvalidConfig))
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		errs = append(errs, fmt.Errorf("%w: breaker needs at least one failure to trip", domain.ErrInvalidConfig))
	}
	if c.RateLimit.CycleRunPerMinute <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, fmt.Errorf("%w: cycle run rate limit must be positive", domain.ErrInvalidConfig))
	}
	if c.Backup.Enabled() && (c.Backup.AccessKeyID == "") != (c.Backup.SecretAccessKey == "") {
		errs = append(errs, fmt.Errorf("%w: backup access key and secret must be set together", domain.ErrInvalidConfig))
	}

	if err := c.Strategy.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// RegimeOptions returns the classifier options
func (c *Config) RegimeOptions() market_regime.Options {
	return c.Strategy.Regime
}

// FilterOptions returns the selection phase options
func (c *Config) FilterOptions() selection.FilterOptions {
	return c.Strategy.Filter
}

// OrderInOptions returns the buy phase options
func (c *Config) OrderInOptions() selection.OrderInOptions {
	return c.Strategy.OrderIn
}

// AllocationOptions returns the allocator options
func (c *Config) AllocationOptions() allocation.Options {
	return c.Strategy.Allocation
}

// MonitorConfig returns the profit monitor lines
func (c *Config) MonitorConfig() risk.MonitorConfig {
	return c.Strategy.Profit
}

// PaperOptions returns the paper broker options
func (c *Config) PaperOptions() paper.Options {
	return paper.Options{
		LotSize:      c.Strategy.Allocation.LotSize,
		StartingCash: c.Paper.StartingCash,
	}
}

// DatabasePath returns the file path of a named database inside DataDir
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

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
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
