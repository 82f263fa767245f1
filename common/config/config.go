package config

import (
	"fmt"
	"strings"

	"github.com/buscafornecedor/vllm-gateway/common/env"
)

// Config carries every environment-derived setting the gateway needs. It is
// built exactly once at startup by Load and passed by reference to each
// component; no component reads ambient environment variables on its own.
type Config struct {
	// VLLMURL is the base URL of the OpenAI-compatible inference backend.
	VLLMURL string
	// VLLMAPIKey authenticates requests to the inference backend.
	VLLMAPIKey string
	// VLLMUseV1Path appends /v1 to VLLMURL when building the client base URL.
	// Set VLLM_USE_V1_PATH=false when VLLM_URL already includes the /v1 segment.
	VLLMUseV1Path bool
	// DefaultModel is used when an incoming request carries no model field.
	DefaultModel string

	// PhoenixCollectorEndpoint is the base URL of the Phoenix trace collector.
	// Empty disables trace export.
	PhoenixCollectorEndpoint string
	// PhoenixProjectName tags exported spans so Phoenix groups them per project.
	PhoenixProjectName string

	// SQLDSN selects the outcome store: postgres:// DSNs use PostgreSQL, any
	// other non-empty DSN is treated as MySQL, empty falls back to SQLite.
	SQLDSN string
	// SQLitePath is the SQLite database file used when SQLDSN is empty.
	SQLitePath string
	// TableSchema qualifies the outcome table on PostgreSQL deployments.
	// Empty leaves the table unqualified.
	TableSchema string
	// TableName is the outcome table name.
	TableName string

	// Host and Port define the listen address of the HTTP server.
	Host string
	Port int

	// MaxInFlightTasks caps concurrently processing background tasks. Requests
	// arriving past the cap are rejected with 503 rather than queued without
	// bound.
	MaxInFlightTasks int
	// ShutdownTimeoutSec bounds the graceful drain of in-flight tasks (seconds).
	ShutdownTimeoutSec int

	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled bool
}

// Load reads the environment once and returns the process configuration.
func Load() *Config {
	return &Config{
		VLLMURL:       strings.TrimRight(env.String("VLLM_URL", "http://localhost:8000"), "/"),
		VLLMAPIKey:    env.String("VLLM_API_KEY", ""),
		VLLMUseV1Path: env.Bool("VLLM_USE_V1_PATH", true),
		DefaultModel:  env.String("DEFAULT_MODEL", "mistralai/Ministral-3-3B-Instruct-2512"),

		PhoenixCollectorEndpoint: strings.TrimRight(env.String("PHOENIX_COLLECTOR_ENDPOINT", ""), "/"),
		PhoenixProjectName:       env.String("PHOENIX_PROJECT_NAME", "vllm-gateway"),

		SQLDSN:      env.String("POSTGRES_CONNECTION_STRING", env.String("SQL_DSN", "")),
		SQLitePath:  env.String("SQLITE_PATH", "vllm-gateway.db"),
		TableSchema: env.String("POSTGRES_TABLE_SCHEMA", ""),
		TableName:   env.String("POSTGRES_TABLE_NAME", "vllm_outcomes"),

		Host: env.String("API_HOST", "0.0.0.0"),
		Port: env.Int("PORT", env.Int("API_PORT", 8080)),

		MaxInFlightTasks:   env.Int("MAX_IN_FLIGHT_TASKS", 256),
		ShutdownTimeoutSec: env.Int("SHUTDOWN_TIMEOUT", 30),

		DebugEnabled: env.Bool("DEBUG", false),
	}
}

// BackendBaseURL returns the base URL handed to the backend client. The /v1
// segment is appended unless the configured URL already carries it.
func (c *Config) BackendBaseURL() string {
	if c.VLLMUseV1Path {
		return c.VLLMURL + "/v1"
	}
	return c.VLLMURL
}

// ListenAddr returns the host:port address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
