package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Event pipeline
	PipelineAPIKey     string
	DrainBatchSize     int
	DrainInterval      time.Duration
	EventRetention     time.Duration
	RefreshSoftTimeout time.Duration
	RefreshHardTimeout time.Duration

	// Goal solver
	SolverMaxIterations int
}

var appConfig *Config

// Load reads configuration from the environment, consulting .env when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "horizon"),
		DBPassword: getEnv("DB_PASSWORD", "horizon"),
		DBName:     getEnv("DB_NAME", "horizon"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		PipelineAPIKey:      getEnv("PIPELINE_API_KEY", ""),
		DrainBatchSize:      getEnvInt("DRAIN_BATCH_SIZE", 100),
		DrainInterval:       getEnvDuration("DRAIN_INTERVAL", 30*time.Second),
		EventRetention:      getEnvDuration("EVENT_RETENTION", 30*24*time.Hour),
		RefreshSoftTimeout:  getEnvDuration("REFRESH_SOFT_TIMEOUT", 15*time.Second),
		RefreshHardTimeout:  getEnvDuration("REFRESH_HARD_TIMEOUT", 60*time.Second),
		SolverMaxIterations: getEnvInt("SOLVER_MAX_ITERATIONS", 24),
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration, loading it on first use.
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %d\n", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %s\n", key, value, defaultValue)
		return defaultValue
	}
	return d
}
