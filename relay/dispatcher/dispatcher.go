package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"golang.org/x/sync/semaphore"

	"github.com/buscafornecedor/vllm-gateway/common/graceful"
	"github.com/buscafornecedor/vllm-gateway/common/helper"
	"github.com/buscafornecedor/vllm-gateway/common/logger"
	"github.com/buscafornecedor/vllm-gateway/common/random"
	"github.com/buscafornecedor/vllm-gateway/model"
	"github.com/buscafornecedor/vllm-gateway/monitor"
	"github.com/buscafornecedor/vllm-gateway/relay/adaptor/openai"
	relaymodel "github.com/buscafornecedor/vllm-gateway/relay/model"
)

// ErrTooManyInFlight is returned by Dispatch when the in-flight task cap is
// reached. The gateway reports it as 503; no outcome row is produced, same
// as a validation rejection.
var ErrTooManyInFlight = errors.New("too many in-flight tasks")

// BackendInvoker is the backend client contract the dispatcher relies on.
type BackendInvoker interface {
	Invoke(ctx context.Context, request *relaymodel.ChatRequest) (*relaymodel.TextResponse, error)
}

// OutcomeRecorder is the subset of the outcome store the dispatcher needs.
type OutcomeRecorder interface {
	RecordOutcome(outcome *model.Outcome) int64
}

// Dispatcher schedules exactly one detached unit of work per accepted
// request. The unit of work invokes the backend and appends exactly one
// outcome row; the caller never waits on it. A weighted semaphore bounds
// concurrently processing tasks instead of spawning without limit.
type Dispatcher struct {
	client       BackendInvoker
	store        OutcomeRecorder
	defaultModel string
	sem          *semaphore.Weighted
}

func New(client BackendInvoker, store OutcomeRecorder, defaultModel string, maxInFlight int) *Dispatcher {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Dispatcher{
		client:       client,
		store:        store,
		defaultModel: defaultModel,
		sem:          semaphore.NewWeighted(int64(maxInFlight)),
	}
}

// Dispatch deep-copies the raw request and launches its processing as a
// detached task. It returns once the task is scheduled, before any backend
// I/O happens. The task keeps running even if the originating HTTP
// connection goes away; its context is detached from the request's.
func (d *Dispatcher) Dispatch(raw map[string]any) error {
	if !d.sem.TryAcquire(1) {
		return ErrTooManyInFlight
	}

	requestCopy, err := deepCopyRequest(raw)
	if err != nil {
		d.sem.Release(1)
		return errors.Wrap(err, "copy request")
	}

	taskName := "vllm-process-" + random.GetUUID()[:12]
	monitor.InFlightTasks.Inc()
	graceful.GoTask(context.Background(), taskName, func(ctx context.Context) {
		defer d.sem.Release(1)
		defer monitor.InFlightTasks.Dec()
		d.process(ctx, taskName, requestCopy)
	})
	return nil
}

// deepCopyRequest makes the task's private copy through a JSON round-trip so
// later mutation of the handler's map cannot race with the task.
func deepCopyRequest(raw map[string]any) (map[string]any, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var copied map[string]any
	if err := json.Unmarshal(encoded, &copied); err != nil {
		return nil, err
	}
	return copied, nil
}

// process is the detached unit of work. It writes exactly one outcome row:
// a success row or a failure row, never both. A pre-call failure still
// produces a failure row with the raw input; if that write fails too the
// loss is logged by the store and nothing else can be done.
func (d *Dispatcher) process(ctx context.Context, taskName string, raw map[string]any) {
	lg := logger.Logger.With(zap.String("task", taskName))
	lg.Info("background processing started")

	inputJSON, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		// Unmarshalable input should be impossible after the JSON round-trip
		// in Dispatch, but the failure row must still carry something.
		inputJSON = fmt.Appendf(nil, "%v", raw)
	}

	request, err := openai.ConvertRequest(raw, d.defaultModel)
	if err != nil {
		lg.Error("failed to prepare backend request", zap.Error(err))
		d.recordFailure(string(inputJSON), err)
		return
	}

	lg.Info("calling backend",
		zap.String("model", request.Model),
		zap.Int("messages", len(request.Messages)))

	start := time.Now()
	response, err := d.client.Invoke(ctx, request)
	monitor.ObserveBackendLatency(start, err != nil)
	if err != nil {
		lg.Error("backend call failed", zap.Error(err))
		d.recordFailure(string(inputJSON), err)
		return
	}

	outputJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		lg.Error("failed to serialize backend response", zap.Error(err))
		d.recordFailure(string(inputJSON), err)
		return
	}

	id := d.store.RecordOutcome(&model.Outcome{
		VllmInput:  string(inputJSON),
		VllmOutput: string(outputJSON),
		Error:      false,
	})
	monitor.Outcomes.WithLabelValues("success").Inc()
	lg.Info("background processing finished",
		zap.Int64("outcome_id", id),
		zap.String("model", response.Model),
		zap.Int("total_tokens", response.Usage.TotalTokens),
		zap.Int64("backend_elapsed_ms", helper.CalcElapsedTime(start)))
}

func (d *Dispatcher) recordFailure(input string, cause error) {
	d.store.RecordOutcome(&model.Outcome{
		VllmInput:    input,
		Error:        true,
		ErrorMessage: formatError(cause),
	})
	monitor.Outcomes.WithLabelValues("backend_error").Inc()
}

// formatError renders the failure as "type: message", keeping the concrete
// cause type visible the way the stored rows always carried it.
func formatError(err error) string {
	cause := errors.Cause(err)
	return fmt.Sprintf("%T: %s", cause, err.Error())
}
