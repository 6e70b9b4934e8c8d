package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Service holds the settings of the HTTP service.
type Service struct {
	Port               string
	DatabaseURL        string
	RedisURL           string
	RateRPS            float64
	RateBurst          int
	WebhookMaxAttempts int
	MaxConcurrentRuns  int
	Migrate            bool
	MigrationsDir      string
	LogLevel           string
}

// LoadEnv reads a .env file when present, then the environment.
func LoadEnv(files ...string) Service {
	if err := godotenv.Load(files...); err != nil {
		log.Debug("no .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv reads the service settings from the environment.
func FromEnv() Service {
	return Service{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		RateRPS:            getFloat("RATE_RPS", 5),
		RateBurst:          getInt("RATE_BURST", 10),
		WebhookMaxAttempts: getInt("WEBHOOK_MAX_ATTEMPTS", 5),
		MaxConcurrentRuns:  getInt("MAX_CONCURRENT_RUNS", 0),
		Migrate:            os.Getenv("DB_MIGRATE") != "false",
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "db/migrations"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return fallback
}
