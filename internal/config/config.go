package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	LogLevel    string
	RentalAPI   RentalAPIConfig
	Meter       MeterConfig
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Anomaly     AnomalyConfig
}

// RentalAPIConfig holds the collaborating REST API settings
type RentalAPIConfig struct {
	URL        string
	Token      string
	Timeout    time.Duration
	RetryCount int
}

// MeterConfig holds row loading settings
type MeterConfig struct {
	FetchConcurrency    int
	ElectricityServices []string
	WaterServices       []string
}

// DatabaseConfig holds the optional sync journal connection
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether a journal database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL               string
	CommandExchange   string
	CommandQueue      string
	CommandRoutingKey string
	DLQQueue          string
	EventExchange     string
	PrefetchCount     int
}

// AnomalyConfig holds usage spike detection settings
type AnomalyConfig struct {
	SpikeThreshold            float64
	MinDataPointsForDetection int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "rental-meter-worker"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		RentalAPI: RentalAPIConfig{
			URL:        getEnv("RENTAL_API_URL", ""),
			Token:      getEnv("RENTAL_API_TOKEN", ""),
			Timeout:    time.Duration(getEnvAsInt("RENTAL_API_TIMEOUT_SECONDS", 15)) * time.Second,
			RetryCount: getEnvAsInt("RENTAL_API_RETRY_COUNT", 2),
		},
		Meter: MeterConfig{
			FetchConcurrency:    getEnvAsInt("FETCH_CONCURRENCY", 5),
			ElectricityServices: getEnvAsList("ELECTRICITY_SERVICE_NAMES", []string{"điện", "electricity"}),
			WaterServices:       getEnvAsList("WATER_SERVICE_NAMES", []string{"nước", "water"}),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:               getEnv("RABBITMQ_URL", ""),
			CommandExchange:   getEnv("RABBITMQ_COMMAND_EXCHANGE", "rental-meter.commands.exchange"),
			CommandQueue:      getEnv("RABBITMQ_COMMAND_QUEUE", "rental-meter.commands.queue"),
			CommandRoutingKey: getEnv("RABBITMQ_COMMAND_ROUTING_KEY", "meter.command.#"),
			DLQQueue:          getEnv("RABBITMQ_COMMAND_DLQ", "rental-meter.commands.dlq"),
			EventExchange:     getEnv("RABBITMQ_EVENT_EXCHANGE", "rental-meter.events.exchange"),
			PrefetchCount:     getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Anomaly: AnomalyConfig{
			SpikeThreshold:            getEnvAsFloat("ANOMALY_SPIKE_THRESHOLD", 3.0),
			MinDataPointsForDetection: getEnvAsInt("ANOMALY_MIN_DATA_POINTS", 3),
		},
	}

	// Validate required fields
	if cfg.RentalAPI.URL == "" {
		return nil, fmt.Errorf("RENTAL_API_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}
	if cfg.Meter.FetchConcurrency < 1 {
		return nil, fmt.Errorf("FETCH_CONCURRENCY must be at least 1, got %d", cfg.Meter.FetchConcurrency)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
