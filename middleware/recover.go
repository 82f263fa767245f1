package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/buscafornecedor/vllm-gateway/common/logger"
)

// RelayPanicRecover converts handler panics into a structured 500 response.
// Diagnostics stay in the server log; the caller never sees a stack trace.
func RelayPanicRecover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Logger.Error("panic detected",
					zap.Any("panic", err),
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path))
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{
						"message": fmt.Sprintf("internal error: %v", err),
						"type":    "internal_error",
						"code":    "request_reception_error",
					},
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
