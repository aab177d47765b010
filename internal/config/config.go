// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
)

// Config holds the full application configuration.
type Config struct {
	DB         DBConfig
	Server     ServerConfig
	Classifier ClassifierConfig
	Search     SearchConfig
	Redis      RedisConfig
	S3         S3Config
}

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host    string
	Port    int
	User    string
	Pass    string
	DBName  string
	SSLMode string
}

// DSN returns a PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Pass +
		"@" + c.Host + ":" + strconv.Itoa(c.Port) +
		"/" + c.DBName + "?sslmode=" + c.SSLMode
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port string
	Host string
}

// Addr returns the full listen address (host:port).
func (c ServerConfig) Addr() string {
	return c.Host + c.Port
}

// ClassifierConfig holds parameters for the external text-classification
// service (an OpenAI-compatible chat-completions endpoint).
type ClassifierConfig struct {
	Endpoint string
	APIKey   string
	Model    string
}

// Configured reports whether the classifier credentials are present.
func (c ClassifierConfig) Configured() bool {
	return c.Endpoint != "" && c.APIKey != "" && c.Model != ""
}

// SearchConfig holds parameters for the social search path.
type SearchConfig struct {
	Endpoint  string // search engine HTML endpoint
	UserAgent string
}

// RedisConfig holds parameters for the change-notification publisher. An
// empty Addr disables notifications.
type RedisConfig struct {
	Addr    string
	Channel string
}

// S3Config holds parameters for the optional raw-payload snapshot archive.
// An empty Endpoint disables snapshots.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DB: DBConfig{
			Host:    envOr("DB_HOST", "localhost"),
			Port:    envOrInt("DB_PORT", 5432),
			User:    envOr("DB_USER", "jetmonitor"),
			Pass:    envOr("DB_PASS", "jetmonitor"),
			DBName:  envOr("DB_NAME", "jetmonitor"),
			SSLMode: envOr("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port: envOr("SERVER_PORT", ":8080"),
			Host: envOr("SERVER_HOST", ""),
		},
		Classifier: ClassifierConfig{
			Endpoint: envOr("CLASSIFIER_ENDPOINT", ""),
			APIKey:   envOr("CLASSIFIER_API_KEY", ""),
			Model:    envOr("CLASSIFIER_MODEL", "gpt-4o-mini"),
		},
		Search: SearchConfig{
			Endpoint:  envOr("SEARCH_ENDPOINT", "https://lite.duckduckgo.com/lite/"),
			UserAgent: envOr("SEARCH_USER_AGENT", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko)"),
		},
		Redis: RedisConfig{
			Addr:    envOr("REDIS_ADDR", ""),
			Channel: envOr("REDIS_CHANNEL", "jetmonitor.items"),
		},
		S3: S3Config{
			Endpoint:  envOr("S3_ENDPOINT", ""),
			Bucket:    envOr("S3_BUCKET", "jetmonitor-snapshots"),
			AccessKey: envOr("S3_ACCESS_KEY", ""),
			SecretKey: envOr("S3_SECRET_KEY", ""),
			Region:    envOr("S3_REGION", "us-east-1"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
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
