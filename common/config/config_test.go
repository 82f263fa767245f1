package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "http://localhost:8000", cfg.VLLMURL)
	assert.True(t, cfg.VLLMUseV1Path)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "vllm_outcomes", cfg.TableName)
	assert.Positive(t, cfg.MaxInFlightTasks)
	assert.False(t, cfg.DebugEnabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("VLLM_URL", "https://inference.example.com/")
	t.Setenv("VLLM_USE_V1_PATH", "false")
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_IN_FLIGHT_TASKS", "8")
	t.Setenv("DEBUG", "true")

	cfg := Load()

	assert.Equal(t, "https://inference.example.com", cfg.VLLMURL, "trailing slash is stripped")
	assert.False(t, cfg.VLLMUseV1Path)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 8, cfg.MaxInFlightTasks)
	assert.True(t, cfg.DebugEnabled)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr())
}

func TestBackendBaseURL(t *testing.T) {
	withV1 := &Config{VLLMURL: "https://host", VLLMUseV1Path: true}
	assert.Equal(t, "https://host/v1", withV1.BackendBaseURL())

	alreadyV1 := &Config{VLLMURL: "https://host/v1", VLLMUseV1Path: false}
	assert.Equal(t, "https://host/v1", alreadyV1.BackendBaseURL())
}

func TestPortFallsBackToAPIPort(t *testing.T) {
	t.Setenv("API_PORT", "8123")

	cfg := Load()
	assert.Equal(t, 8123, cfg.Port)
}
