// Package config loads application configuration from environment variables.
package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Config holds the runtime configuration of the HTTP server and its database.
// Each field corresponds to an environment variable.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	LogLevel  string // logrus level name
	DB        DBConfig
	JWTSecret string // secret used to verify bearer tokens
}

// DBConfig describes how to reach the relational store. Driver selects the
// SQL dialect used across the engine ("postgres" or "mysql").
type DBConfig struct {
	Driver  string
	User    string
	Pass    string
	Host    string
	Port    string
	Name    string
	SSLMode string
}

// Load reads configuration values from environment variables and returns a
// Config. Missing required variables terminate the process.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		DB:        LoadDB(),
		JWTSecret: must("JWT_SECRET"),
	}
}

// LoadDB reads only the database settings; the migration tool needs nothing
// else.
func LoadDB() DBConfig {
	return DBConfig{
		Driver:  envStr("DB_DRIVER", "postgres"),
		User:    must("DB_USER"),
		Pass:    os.Getenv("DB_PASS"), // empty allowed
		Host:    must("DB_HOST"),
		Port:    must("DB_PORT"),
		Name:    must("DB_NAME"),
		SSLMode: envStr("DB_SSLMODE", "disable"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}
