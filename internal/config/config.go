package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Queue    QueueConfig
	API      APIConfig
	Gateway  GatewayConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// QueueConfig holds queue configuration (Redis)
type QueueConfig struct {
	RedisURL  string
	QueueName string
}

// APIConfig holds API server configuration
type APIConfig struct {
	Port int
}

// GatewayConfig holds Evolution API configuration
type GatewayConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
	// SendsPerSecond caps the gateway-wide outbound message rate across all
	// campaigns, independent of per-campaign pacing.
	SendsPerSecond float64
}

// WorkerConfig holds campaign worker configuration
type WorkerConfig struct {
	// Concurrency is the number of campaigns driven in parallel.
	Concurrency int
	// MaxAttempts is the per-recipient retry ceiling, global for the worker.
	MaxAttempts int
	// TransientBackoffSeconds is the fixed wait after an unexpected iteration
	// failure. Kept smaller than typical pacing intervals.
	TransientBackoffSeconds int
	SchedulerIntervalSeconds int
	// DefaultCountryCode is prepended to phone numbers stored without one.
	DefaultCountryCode string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	apiPort, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_PORT: %w", err)
	}

	gatewayTimeout, err := strconv.Atoi(getEnv("EVOLUTION_TIMEOUT_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVOLUTION_TIMEOUT_SECONDS: %w", err)
	}

	sendsPerSecond, err := strconv.ParseFloat(getEnv("EVOLUTION_SENDS_PER_SECOND", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid EVOLUTION_SENDS_PER_SECOND: %w", err)
	}

	workerConcurrency, err := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	maxAttempts, err := strconv.Atoi(getEnv("MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_ATTEMPTS: %w", err)
	}

	transientBackoff, err := strconv.Atoi(getEnv("TRANSIENT_BACKOFF_SECONDS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSIENT_BACKOFF_SECONDS: %w", err)
	}

	schedulerInterval, err := strconv.Atoi(getEnv("SCHEDULER_INTERVAL_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL_SECONDS: %w", err)
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "campaign_backend"),
			Password: getEnv("DB_PASSWORD", "campaign_backend"),
			DBName:   getEnv("DB_NAME", "campaign_backend"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Queue: QueueConfig{
			RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379/0"),
			QueueName: getEnv("QUEUE_NAME", "campaign_starts"),
		},
		API: APIConfig{
			Port: apiPort,
		},
		Gateway: GatewayConfig{
			BaseURL:        getEnv("EVOLUTION_BASE_URL", "http://localhost:8081"),
			APIKey:         getEnv("EVOLUTION_API_KEY", ""),
			TimeoutSeconds: gatewayTimeout,
			SendsPerSecond: sendsPerSecond,
		},
		Worker: WorkerConfig{
			Concurrency:              workerConcurrency,
			MaxAttempts:              maxAttempts,
			TransientBackoffSeconds:  transientBackoff,
			SchedulerIntervalSeconds: schedulerInterval,
			DefaultCountryCode:       getEnv("DEFAULT_COUNTRY_CODE", "55"),
		},
	}, nil
}

// DSN returns the database connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
