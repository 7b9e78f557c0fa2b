package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	BotName        = "PDF Tools Bot"
	BotVersion     = "1.0.0"
	BotDescription = "Free PDF manipulation tools in Telegram"
)

// AppConfig holds every runtime option of the bot
type AppConfig struct {
	BotToken           string `validate:"required_without=HTTPAddr"`
	HTTPAddr           string `validate:"required_without=BotToken"`
	GatewayToken       string
	CORSAllowedOrigins []string

	TempDir            string        `validate:"required"`
	MaxFileSize        int64         `validate:"gt=0"`
	MaxMergeFiles      int           `validate:"gte=2"`
	MaxImageFiles      int           `validate:"gt=0"`
	RasterDPI          float64       `validate:"gt=0,lte=600"`
	ArchiveThreshold   int           `validate:"gte=0"`
	OperationTimeout   time.Duration `validate:"gt=0"`
	CleanupInterval    time.Duration `validate:"gt=0"`
	CleanupMaxAge      time.Duration `validate:"gt=0"`
	RateLimitPerMinute int           `validate:"gte=0"`
	EnableRateLimiting bool
	WorkerConcurrency  int    `validate:"gt=0"`
	GhostscriptPath    string `validate:"required"`
	AdminIDs           []int64

	LogLevel    string `validate:"oneof=debug info warn error"`
	LogFilePath string
	Environment string `validate:"oneof=development production test"`

	DatabaseURL string
	SupabaseURL string `validate:"required_with=SupabaseKey"`
	SupabaseKey string `validate:"required_with=SupabaseURL"`
}

// NewConfig creates a new configuration instance from the environment with
// default values
func NewConfig() (*AppConfig, error) {
	adminIDs, err := getEnvInt64ListOrDefault("ADMIN_IDS")
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		BotToken:           getEnvOrDefault("BOT_TOKEN", ""),
		HTTPAddr:           getEnvOrDefault("HTTP_ADDR", ""),
		GatewayToken:       getEnvOrDefault("GATEWAY_TOKEN", ""),
		CORSAllowedOrigins: getEnvListOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		TempDir:            getEnvOrDefault("TEMP_DIR", "/tmp/pdf_bot_temp"),
		MaxFileSize:        getEnvInt64OrDefault("MAX_FILE_SIZE", 50*1024*1024), // 50MB default
		MaxMergeFiles:      getEnvIntOrDefault("MAX_MERGE_FILES", 20),
		MaxImageFiles:      getEnvIntOrDefault("MAX_IMAGE_FILES", 50),
		RasterDPI:          float64(getEnvIntOrDefault("RASTER_DPI", 200)),
		ArchiveThreshold:   getEnvIntOrDefault("ARCHIVE_THRESHOLD", 10),
		OperationTimeout:   getEnvSecondsOrDefault("OPERATION_TIMEOUT", 300*time.Second),
		CleanupInterval:    getEnvSecondsOrDefault("CLEANUP_INTERVAL", time.Hour),
		CleanupMaxAge:      getEnvSecondsOrDefault("CLEANUP_MAX_AGE", time.Hour),
		RateLimitPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 10),
		EnableRateLimiting: getEnvBoolOrDefault("ENABLE_RATE_LIMITING", true),
		WorkerConcurrency:  getEnvIntOrDefault("WORKER_CONCURRENCY", runtime.NumCPU()),
		GhostscriptPath:    getEnvOrDefault("GHOSTSCRIPT_PATH", "gs"),
		AdminIDs:           adminIDs,

		LogLevel:    strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		LogFilePath: getEnvOrDefault("LOG_FILE_PATH", ""),
		Environment: getEnvOrDefault("GO_ENV", "development"),

		DatabaseURL: getEnvOrDefault("DATABASE_URL", ""),
		SupabaseURL: getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey: getEnvOrDefault("SUPABASE_ANON_KEY", ""),
	}, nil
}

// Load reads and validates the configuration.
func Load() (*AppConfig, error) {
	cfg, err := NewConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsProduction reports whether GO_ENV is production
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// EffectiveRateLimit is the per-minute operation limit, zero when disabled.
func (c *AppConfig) EffectiveRateLimit() int {
	if !c.EnableRateLimiting {
		return 0
	}
	return c.RateLimitPerMinute
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	return int(getEnvInt64OrDefault(key, int64(defaultValue)))
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSecondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	seconds := getEnvInt64OrDefault(key, int64(defaultValue/time.Second))
	return time.Duration(seconds) * time.Second
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvInt64ListOrDefault(key string) ([]int64, error) {
	var ids []int64
	for _, item := range getEnvListOrDefault(key, nil) {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", key, item, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
