// Package config loads the process configuration from environment variables.
package config

import (
	"os"
	"strconv"
)

// Config is the full configuration for the bankd and bridge binaries.
// Unset sections select safe fallbacks: no DB_HOST means the in-memory
// store, no REDIS_ADDR means the no-op event sink.
type Config struct {
	// ListenAddr is the TCP wire-protocol listen address.
	ListenAddr string

	// MetricsAddr serves Prometheus metrics and health over HTTP.
	// Empty disables the endpoint.
	MetricsAddr string

	// BridgeAddr is the HTTP/WebSocket façade listen address.
	BridgeAddr string

	// ServerAddr is the wire-protocol address the bridge dials.
	ServerAddr string

	DB    DBConfig
	Redis RedisConfig
}

// DBConfig holds the PostgreSQL settings. An empty Host disables postgres.
type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// RedisConfig holds the event-sink broker settings. An empty Addr disables
// the sink.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// FromEnv reads the configuration from the environment, applying defaults.
func FromEnv() Config {
	return Config{
		ListenAddr:  getenv("LISTEN_ADDR", ":5000"),
		MetricsAddr: getenv("METRICS_ADDR", ":9100"),
		BridgeAddr:  getenv("BRIDGE_ADDR", ":8080"),
		ServerAddr:  getenv("SERVER_ADDR", "localhost:5000"),
		DB: DBConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     getenvInt("DB_PORT", 5432),
			Name:     getenv("DB_NAME", "bankwire"),
			User:     getenv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Username: os.Getenv("REDIS_USERNAME"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getenvInt("REDIS_DB", 0),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
