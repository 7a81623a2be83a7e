package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported DB_DRIVER values.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config stores the application configuration.
type Config struct {
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string
	DBLogLevel string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// PlaylistSaveRetries bounds the load, mutate, save cycle when a
	// concurrent writer bumped the playlist version first.
	PlaylistSaveRetries int

	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("30s", "10m") or a bare number
// of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// Load loads configuration from environment variables, after merging the
// given .env files (or ./.env when none are given). Existing environment
// variables win over file values.
func Load(files ...string) *Config {
	if err := godotenv.Load(files...); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return fromEnv()
}

func fromEnv() *Config {
	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		ServerReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", DriverMySQL)),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "tracklist"),
		SQLitePath: getEnv("SQLITE_PATH", "tracklist.db"),
		DBLogLevel: getEnv("DB_LOG_LEVEL", "warn"),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 10*time.Minute),

		PlaylistSaveRetries: getEnvInt("PLAYLIST_SAVE_RETRIES", 3),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 28),
		LogCompress:   getEnvBool("LOG_COMPRESS", false),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "tracklist"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", ""),
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.ServerPort); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid SERVER_PORT %q", c.ServerPort))
	}

	switch c.DBDriver {
	case DriverMySQL:
		if c.DBHost == "" || c.DBName == "" {
			errs = append(errs, errors.New("DB_HOST and DB_NAME are required for the mysql driver"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}

	if c.PlaylistSaveRetries < 1 {
		errs = append(errs, fmt.Errorf("PLAYLIST_SAVE_RETRIES must be at least 1, got %d", c.PlaylistSaveRetries))
	}
	if c.RedisEnabled && c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive when redis is enabled, got %s", c.CacheTTL))
	}

	return errors.Join(errs...)
}

// RedisAddr returns host:port for the redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
