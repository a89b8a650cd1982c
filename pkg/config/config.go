package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	OpenLibraryURL     string
	OpenLibraryTimeout time.Duration
	OpenLibraryRPS     float64
	RedisAddr          string

	SweepSchedule       string
	EnrichRetrySchedule string

	LogLevel  string
	LogFormat string
}

// Load reads the optional .env file and then the process environment.
func Load(envFiles ...string) Config {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env file")
	}

	return Config{
		Port:                getEnv("PORT", "8060"),
		DBDriver:            getEnv("DB_DRIVER", "postgres"),
		DBHost:              getEnv("DB_HOST", "postgres"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "program"),
		DBPassword:          getEnv("DB_PASSWORD", "test"),
		DBName:              getEnv("DB_NAME", "library"),
		SQLitePath:          getEnv("SQLITE_PATH", "library.db"),
		OpenLibraryURL:      getEnv("OPENLIBRARY_URL", "https://openlibrary.org"),
		OpenLibraryTimeout:  getDuration("OPENLIBRARY_TIMEOUT", 5*time.Second),
		OpenLibraryRPS:      getFloat("OPENLIBRARY_RPS", 5),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		SweepSchedule:       getEnv("SWEEP_SCHEDULE", "@every 1h"),
		EnrichRetrySchedule: getEnv("ENRICH_RETRY_SCHEDULE", "@every 1m"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
	}
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func (c Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if c.LogFormat == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func getFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || f <= 0 {
		return defaultValue
	}
	return f
}
