package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/buscafornecedor/vllm-gateway/common/config"
	"github.com/buscafornecedor/vllm-gateway/common/logger"
	"github.com/buscafornecedor/vllm-gateway/model"
	"github.com/buscafornecedor/vllm-gateway/monitor"
	"github.com/buscafornecedor/vllm-gateway/relay/dispatcher"
)

// Controller holds the gateway's collaborators. Everything it references is
// immutable or internally synchronized, so handlers are safe to run
// concurrently.
type Controller struct {
	cfg        *config.Config
	dispatcher *dispatcher.Dispatcher
	store      *model.Store
}

func New(cfg *config.Config, d *dispatcher.Dispatcher, store *model.Store) *Controller {
	return &Controller{cfg: cfg, dispatcher: d, store: store}
}

// ChatCompletions accepts a chat-completion request, hands it to the
// dispatcher and acknowledges with 202 before any backend I/O happens. The
// caller never receives generated content; results land in the outcome
// store only.
func (ctrl *Controller) ChatCompletions(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		receptionError(c, errors.Wrap(err, "read request body"))
		return
	}
	if len(body) == 0 {
		monitor.RejectedRequests.WithLabelValues("missing_request_body").Inc()
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", "missing_request_body",
			"Request body is required")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		monitor.RejectedRequests.WithLabelValues("missing_request_body").Inc()
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", "missing_request_body",
			"Request body must be a JSON object")
		return
	}
	if _, ok := payload["messages"]; !ok {
		monitor.RejectedRequests.WithLabelValues("missing_messages").Inc()
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", "missing_messages",
			"Missing required field: messages")
		return
	}

	acceptedAt := time.Now().Format(time.RFC3339Nano)

	if err := ctrl.dispatcher.Dispatch(payload); err != nil {
		if errors.Is(err, dispatcher.ErrTooManyInFlight) {
			monitor.RejectedRequests.WithLabelValues("too_many_in_flight").Inc()
			abortWithError(c, http.StatusServiceUnavailable, "server_busy", "too_many_in_flight",
				"Too many requests are being processed, try again later")
			return
		}
		receptionError(c, err)
		return
	}

	monitor.AcceptedRequests.Inc()
	logger.Logger.Info("request accepted for background processing",
		zap.String("accepted_at", acceptedAt))

	// The acknowledgment is sent now; the task's backend call has not begun
	// and its failure can no longer affect this response.
	c.JSON(http.StatusAccepted, gin.H{
		"status":      "accepted",
		"message":     "Request received and is being processed asynchronously",
		"object":      "chat.completion.accepted",
		"accepted_at": acceptedAt,
	})
}

// receptionError reports a gateway-internal failure during validation or
// dispatch. Full diagnostics go to the server log only; the caller gets a
// structured error without stack traces.
func receptionError(c *gin.Context, err error) {
	logger.Logger.Error("failed to receive request",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path))
	abortWithError(c, http.StatusInternalServerError, "internal_error", "request_reception_error",
		err.Error())
}

func abortWithError(c *gin.Context, status int, errType, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"message": message,
			"type":    errType,
			"code":    code,
		},
	})
}
