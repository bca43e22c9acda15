package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/eventworker/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Geocoding configuration
	LocationIQAPIKey   string
	LocationIQURL      string
	NominatimURL       string
	NominatimUserAgent string
	GeocodeTimeout     time.Duration

	// Database configuration
	DBDriver   string
	DBDSN      string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	WPPostType string

	// Feed and backup folders
	DataDir             string
	BackupDir           string
	BackupRetentionDays int

	// Spider configuration
	ErrorLogFile           string
	CheckDBBeforeGeocoding bool
	DownloadDelay          time.Duration

	// Memcache configuration, empty means in-process cache
	MemcacheAddr string

	// Redis configuration, empty RedisAddr disables publishing
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	geocodeTimeout, _ := strconv.Atoi(getEnv("GEOCODE_TIMEOUT_SECONDS", "10"))
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "3306"))
	retention, _ := strconv.Atoi(getEnv("BACKUP_RETENTION_DAYS", "7"))
	downloadDelay, _ := strconv.ParseFloat(getEnv("DOWNLOAD_DELAY_SECONDS", "1"), 64)
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))

	dataDir := getEnv("DATA_DIR", "scraped_data")

	return Config{
		LocationIQAPIKey:       os.Getenv("LOCATIONIQ_API_KEY"),
		LocationIQURL:          getEnv("LOCATIONIQ_URL", "https://us1.locationiq.com"),
		NominatimURL:           getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent:     getEnv("NOMINATIM_USER_AGENT", "eventworker/1.0"),
		GeocodeTimeout:         time.Duration(geocodeTimeout) * time.Second,
		DBDriver:               getEnv("DB_DRIVER", "mysql"),
		DBDSN:                  os.Getenv("DB_DSN"),
		DBHost:                 getEnv("DB_HOST", "localhost"),
		DBPort:                 dbPort,
		DBName:                 getEnv("DB_NAME", "wordpress"),
		DBUser:                 getEnv("DB_USER", "root"),
		DBPassword:             os.Getenv("DB_PASSWORD"),
		WPPostType:             getEnv("WP_POST_TYPE", "oum-location"),
		DataDir:                dataDir,
		BackupDir:              getEnv("BACKUP_DIR", dataDir+"/backup"),
		BackupRetentionDays:    retention,
		ErrorLogFile:           getEnv("ERROR_LOG_FILE", "error.log"),
		CheckDBBeforeGeocoding: getBool("CHECK_DB_BEFORE_GEOCODING", true),
		DownloadDelay:          time.Duration(downloadDelay * float64(time.Second)),
		MemcacheAddr:           os.Getenv("MEMCACHE_ADDR"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisDB:                redisDB,
		RedisStream:            getEnv("REDIS_STREAM", "events"),
		RedisStreamMaxLength:   streamMaxLength,
		Environment:            getEnv("EVENTWORKER_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return errors.NewConfiguration(fmt.Sprintf("unsupported DB_DRIVER %q", c.DBDriver), nil)
	}

	for name, raw := range map[string]string{
		"LOCATIONIQ_URL": c.LocationIQURL,
		"NOMINATIM_URL":  c.NominatimURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.NewConfiguration(fmt.Sprintf("%s is not an absolute URL: %q", name, raw), err)
		}
	}

	if strings.TrimSpace(c.NominatimUserAgent) == "" {
		return errors.NewConfiguration("NOMINATIM_USER_AGENT must not be empty", nil)
	}
	if c.BackupRetentionDays < 0 {
		return errors.NewConfiguration("BACKUP_RETENTION_DAYS must not be negative", nil)
	}
	if c.DataDir == "" {
		return errors.NewConfiguration("DATA_DIR must not be empty", nil)
	}
	if c.GeocodeTimeout <= 0 {
		return errors.NewConfiguration("GEOCODE_TIMEOUT_SECONDS must be positive", nil)
	}
	return nil
}

// DSN returns the database connection string for the configured driver
func (c Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	if c.DBDriver == "sqlite" {
		return c.DBName + ".db"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
