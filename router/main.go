package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/buscafornecedor/vllm-gateway/controller"
)

// SetRouter wires the gateway's HTTP surface.
func SetRouter(server *gin.Engine, ctrl *controller.Controller) {
	server.GET("/", ctrl.Root)
	server.GET("/health", ctrl.Health)
	server.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := server.Group("/v1")
	v1.POST("/chat/completions", ctrl.ChatCompletions)
}
