// Package config loads spine configuration from environment variables.
package config

import "os"

// Config holds spine process configuration.
type Config struct {
	LogLevel     string
	StoreDriver  string // memory | sqlite | postgres
	DatabaseURL  string
	RegistryPath string
	RedisAddr    string
	OTLPEndpoint string
}

// Load loads configuration from environment variables with local-development
// defaults.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	driver := os.Getenv("STORE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		switch driver {
		case "postgres":
			dbURL = "postgres://spine@localhost:5432/spine?sslmode=disable"
		default:
			dbURL = "spine.db"
		}
	}

	registryPath := os.Getenv("TRUST_REGISTRY_PATH")
	if registryPath == "" {
		registryPath = "trust_registry.yaml"
	}

	return &Config{
		LogLevel:     logLevel,
		StoreDriver:  driver,
		DatabaseURL:  dbURL,
		RegistryPath: registryPath,
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	}
}
