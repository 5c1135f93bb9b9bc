// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Supabase    SupabaseConfig
	Storage     StorageConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Workflow    WorkflowConfig
	Log         LogConfig
	I18n        I18nConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int

	// AllowedOrigins is "*" unless CORS_ALLOWED_ORIGINS lists origins.
	AllowedOrigins []string
}

// SupabaseConfig points at the data store and carries the credential used for
// both the GraphQL endpoint and token verification.
type SupabaseConfig struct {
	URL            string
	GraphQLURL     string
	ServiceRoleKey string
	JWTSecret      string
}

type StorageConfig struct {
	S3Endpoint      string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	PostBucket      string
	ProfileBucket   string
	CacheControl    string
	MaxUploadBytes  int64
	LocalDir        string
}

type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// MaxPostImages is the most images a single post may carry.
const MaxPostImages = 10

type WorkflowConfig struct {
	CallTimeout         time.Duration
	UploadTimeout       time.Duration
	LockTTL             time.Duration
	UploadConcurrency   int
	FailOnPartialUpload bool
}

// MaxRunDuration bounds one post creation: resolve, create, the latest-post
// fallback and finalize, plus MaxPostImages uploads in batches of
// UploadConcurrency.
func (w WorkflowConfig) MaxRunDuration() time.Duration {
	concurrency := w.UploadConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	batches := (MaxPostImages + concurrency - 1) / concurrency
	return 4*w.CallTimeout + time.Duration(batches)*w.UploadTimeout
}

type LogConfig struct {
	Level  string
	Format string
}

type I18nConfig struct {
	DefaultLocale string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	supabaseURL := strings.TrimRight(getEnv("SUPABASE_URL", "http://localhost:54321"), "/")

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 0),
			IdleTimeout:    getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Supabase: SupabaseConfig{
			URL:            supabaseURL,
			GraphQLURL:     getEnv("SUPABASE_GRAPHQL_URL", supabaseURL+"/graphql/v1"),
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		},
		Storage: StorageConfig{
			S3Endpoint:      getEnv("STORAGE_S3_ENDPOINT", supabaseURL+"/storage/v1/s3"),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			PublicURL:       strings.TrimRight(getEnv("STORAGE_PUBLIC_URL", supabaseURL), "/"),
			PostBucket:      getEnv("STORAGE_POST_BUCKET", "post-images"),
			ProfileBucket:   getEnv("STORAGE_PROFILE_BUCKET", "profile-pictures"),
			CacheControl:    getEnv("STORAGE_CACHE_CONTROL", "max-age=3600"),
			MaxUploadBytes:  int64(getEnvAsInt("STORAGE_MAX_UPLOAD_MB", 10)) * 1024 * 1024,
			LocalDir:        getEnv("STORAGE_LOCAL_DIR", "./uploads"),
		},
		Database: DatabaseConfig{
			Enabled:      getEnvAsBool("RUN_LEDGER_ENABLED", true),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "furnigo"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Workflow: WorkflowConfig{
			CallTimeout:         getEnvAsDuration("WORKFLOW_CALL_TIMEOUT", 10*time.Second),
			UploadTimeout:       getEnvAsDuration("WORKFLOW_UPLOAD_TIMEOUT", 30*time.Second),
			LockTTL:             getEnvAsDuration("WORKFLOW_LOCK_TTL", 2*time.Minute),
			UploadConcurrency:   getEnvAsInt("WORKFLOW_UPLOAD_CONCURRENCY", 1),
			FailOnPartialUpload: getEnvAsBool("WORKFLOW_FAIL_ON_PARTIAL_UPLOAD", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
	}

	// The response of a post creation must still reach the client after the
	// slowest run.
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = int((config.Workflow.MaxRunDuration() + 30*time.Second) / time.Second)
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Supabase.GraphQLURL == "" {
		return fmt.Errorf("SUPABASE_GRAPHQL_URL is required")
	}

	if c.Workflow.CallTimeout <= 0 || c.Workflow.UploadTimeout <= 0 {
		return fmt.Errorf("workflow timeouts must be positive")
	}

	if c.Workflow.UploadConcurrency < 1 {
		return fmt.Errorf("WORKFLOW_UPLOAD_CONCURRENCY must be at least 1, got %d", c.Workflow.UploadConcurrency)
	}

	if c.Workflow.LockTTL < 3*c.Workflow.CallTimeout {
		return fmt.Errorf("WORKFLOW_LOCK_TTL %s must be at least three call timeouts", c.Workflow.LockTTL)
	}

	if run := c.Workflow.MaxRunDuration(); time.Duration(c.Server.WriteTimeout)*time.Second < run {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT %ds is shorter than the longest post creation (%s)", c.Server.WriteTimeout, run)
	}

	if c.Environment == "production" {
		if c.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("service role key is required in production")
		}
		if c.Supabase.JWTSecret == "" {
			return fmt.Errorf("JWT secret is required in production")
		}
		if c.Storage.AccessKeyID == "" {
			return fmt.Errorf("storage credentials are required in production")
		}
	}

	return nil
}

// RedisEnabled is false when no Redis host is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return defaultValue
	}
	return list
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
