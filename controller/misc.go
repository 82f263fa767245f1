package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buscafornecedor/vllm-gateway/common"
)

const healthProbeTimeout = 2 * time.Second

// Health reports service status and store reachability. A failing store
// probe is reported as postgres_connected:false, never as a request failure.
func (ctrl *Controller) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	postgresConnected := ctrl.store.Ping(ctx) == nil

	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"service":            "vllm-gateway",
		"vllm_url":           ctrl.cfg.VLLMURL,
		"phoenix_project":    ctrl.cfg.PhoenixProjectName,
		"postgres_connected": postgresConnected,
	})
}

// Root serves the static service descriptor.
func (ctrl *Controller) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":    "vLLM Phoenix Gateway (Async)",
		"version":    common.Version,
		"mode":       "asynchronous",
		"start_time": common.StartTime,
		"endpoints": gin.H{
			"health":           "/health",
			"chat_completions": "/v1/chat/completions (async)",
			"metrics":          "/metrics",
		},
		"phoenix": gin.H{
			"endpoint": ctrl.cfg.PhoenixCollectorEndpoint,
			"project":  ctrl.cfg.PhoenixProjectName,
		},
		"vllm": gin.H{
			"url":         ctrl.cfg.VLLMURL,
			"base_url":    ctrl.cfg.BackendBaseURL(),
			"use_v1_path": ctrl.cfg.VLLMUseV1Path,
		},
		"postgres": gin.H{
			"table": ctrl.cfg.TableName,
		},
	})
}
