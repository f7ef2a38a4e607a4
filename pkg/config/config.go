package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port      string
	Env       string
	BodyLimit string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// StorageConfig describes where store assets and generated sources live on disk
type StorageConfig struct {
	AssetsRoot   string
	PublicPrefix string
	SourceRoot   string
	TempDir      string
}

// ProvisioningConfig holds the knobs of the store provisioning pipeline
type ProvisioningConfig struct {
	MaxFileSize       int64
	MaxUploadFiles    int
	BorrowImages      bool
	DedupMaxFiles     int
	DedupMaxFileBytes int64
	Generator         string
	HookCommand       string
	HookTimeout       time.Duration
	DefaultsFile      string
}

// EventsConfig holds the optional NATS notification settings
type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

// Config holds all configuration
type Config struct {
	ServiceName  string
	DB           DBConfig
	Server       ServerConfig
	JWT          JWTConfig
	Log          LogConfig
	Metrics      MetricsConfig
	Storage      StorageConfig
	Provisioning ProvisioningConfig
	Events       EventsConfig
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		ServiceName: serviceName,
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", serviceName),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port:      getEnv("SERVER_PORT", "8080"),
			Env:       getEnv("APP_ENV", "development"),
			BodyLimit: getEnv("SERVER_BODY_LIMIT", "512M"),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "defaultsecretkey"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", serviceName),
		},
		Storage: StorageConfig{
			AssetsRoot:   getEnv("ASSETS_ROOT", "./public/assets"),
			PublicPrefix: getEnv("ASSETS_PUBLIC_PREFIX", "/assets"),
			SourceRoot:   getEnv("SOURCE_ROOT", "."),
			TempDir:      getEnv("TEMP_UPLOAD_DIR", "./.tmp-uploads"),
		},
		Provisioning: ProvisioningConfig{
			MaxFileSize:       getEnvAsInt64("UPLOAD_MAX_FILE_BYTES", 10<<20),
			MaxUploadFiles:    getEnvAsInt("UPLOAD_MAX_FILES", 600),
			BorrowImages:      getEnvAsBool("ASSIGN_BORROW_IMAGES", false),
			DedupMaxFiles:     getEnvAsInt("DEDUP_MAX_FILES", 5000),
			DedupMaxFileBytes: getEnvAsInt64("DEDUP_MAX_FILE_BYTES", 50<<20),
			Generator:         strings.ToLower(getEnv("ARTIFACT_GENERATOR", "file")),
			HookCommand:       getEnv("ARTIFACT_HOOK_COMMAND", ""),
			HookTimeout:       getEnvAsDuration("ARTIFACT_HOOK_TIMEOUT", 2*time.Minute),
			DefaultsFile:      getEnv("STOREFRONT_DEFAULTS_FILE", ""),
		},
		Events: EventsConfig{
			NATSURL:       getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "storefront"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects combinations the service cannot start with
func (c *Config) Validate() error {
	switch c.Provisioning.Generator {
	case "file":
	case "command":
		if strings.TrimSpace(c.Provisioning.HookCommand) == "" {
			return fmt.Errorf("ARTIFACT_HOOK_COMMAND is required when ARTIFACT_GENERATOR=command")
		}
	default:
		return fmt.Errorf("unknown ARTIFACT_GENERATOR %q", c.Provisioning.Generator)
	}
	if c.Provisioning.MaxFileSize <= 0 {
		return fmt.Errorf("UPLOAD_MAX_FILE_BYTES must be positive")
	}
	if c.Storage.AssetsRoot == "" || c.Storage.TempDir == "" {
		return fmt.Errorf("ASSETS_ROOT and TEMP_UPLOAD_DIR must be set")
	}
	return nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_user", c.DB.User),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.String("assets_root", c.Storage.AssetsRoot),
		zap.String("artifact_generator", c.Provisioning.Generator),
		zap.Bool("borrow_images", c.Provisioning.BorrowImages),
		zap.Bool("events_enabled", c.Events.NATSURL != ""),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
