package dispatcher

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buscafornecedor/vllm-gateway/common/config"
	"github.com/buscafornecedor/vllm-gateway/model"
	relaymodel "github.com/buscafornecedor/vllm-gateway/relay/model"
)

type fakeInvoker struct {
	response *relaymodel.TextResponse
	err      error
	block    chan struct{}
	calls    atomic.Int32
}

func (f *fakeInvoker) Invoke(ctx context.Context, request *relaymodel.ChatRequest) (*relaymodel.TextResponse, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func successResponse() *relaymodel.TextResponse {
	return &relaymodel.TextResponse{
		Id:     "chatcmpl-1",
		Object: "chat.completion",
		Model:  "test-model",
		Choices: []relaymodel.TextResponseChoice{
			{Index: 0, Message: relaymodel.Message{Role: "assistant", Content: json.RawMessage(`"hello"`)}, FinishReason: "stop"},
		},
		Usage: relaymodel.Usage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
	}
}

func newTestStore(t *testing.T) *model.Store {
	t.Helper()
	store, err := model.InitStore(&config.Config{
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
		TableName:  "vllm_outcomes",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func validRequest() map[string]any {
	return map[string]any{
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
	}
}

func waitForOutcomes(t *testing.T, store *model.Store, want int64) []*model.Outcome {
	t.Helper()
	require.Eventually(t, func() bool {
		count, err := store.CountOutcomes()
		return err == nil && count == want
	}, 5*time.Second, 10*time.Millisecond)
	outcomes, err := store.ListOutcomes(int(want))
	require.NoError(t, err)
	return outcomes
}

func TestDispatchSuccessWritesExactlyOneRecord(t *testing.T) {
	store := newTestStore(t)
	invoker := &fakeInvoker{response: successResponse()}
	d := New(invoker, store, "default-model", 4)

	require.NoError(t, d.Dispatch(validRequest()))

	outcomes := waitForOutcomes(t, store, 1)
	outcome := outcomes[0]
	assert.False(t, outcome.Error)
	assert.Empty(t, outcome.ErrorMessage)

	var stored relaymodel.TextResponse
	require.NoError(t, json.Unmarshal([]byte(outcome.VllmOutput), &stored))
	assert.Equal(t, "chatcmpl-1", stored.Id)
	assert.JSONEq(t, `"hello"`, string(stored.Choices[0].Message.Content))
	assert.Equal(t, stored.Usage.PromptTokens+stored.Usage.CompletionTokens, stored.Usage.TotalTokens)

	// no second record ever shows up
	time.Sleep(50 * time.Millisecond)
	count, err := store.CountOutcomes()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestDispatchBackendFailureWritesFailureRecord(t *testing.T) {
	store := newTestStore(t)
	invoker := &fakeInvoker{err: errors.New("connection refused")}
	d := New(invoker, store, "default-model", 4)

	require.NoError(t, d.Dispatch(validRequest()))

	outcomes := waitForOutcomes(t, store, 1)
	outcome := outcomes[0]
	assert.True(t, outcome.Error)
	assert.Empty(t, outcome.VllmOutput)
	assert.Contains(t, outcome.ErrorMessage, "connection refused")
	assert.NotEmpty(t, outcome.VllmInput)
}

func TestDispatchPreCallFailureStillWritesFailureRecord(t *testing.T) {
	store := newTestStore(t)
	invoker := &fakeInvoker{response: successResponse()}
	d := New(invoker, store, "default-model", 4)

	// messages present but malformed: conversion fails before the backend call
	require.NoError(t, d.Dispatch(map[string]any{"messages": "not a list"}))

	outcomes := waitForOutcomes(t, store, 1)
	assert.True(t, outcomes[0].Error)
	assert.Zero(t, invoker.calls.Load(), "backend must not be called on pre-call failure")
}

func TestDispatchIsIdempotenceFree(t *testing.T) {
	store := newTestStore(t)
	invoker := &fakeInvoker{response: successResponse()}
	d := New(invoker, store, "default-model", 4)

	body := validRequest()
	require.NoError(t, d.Dispatch(body))
	require.NoError(t, d.Dispatch(body))

	// identical submissions yield two independent records, no deduplication
	waitForOutcomes(t, store, 2)
	assert.EqualValues(t, 2, invoker.calls.Load())
}

func TestDispatchRejectsPastCapacity(t *testing.T) {
	store := newTestStore(t)
	invoker := &fakeInvoker{response: successResponse(), block: make(chan struct{})}
	d := New(invoker, store, "default-model", 1)

	require.NoError(t, d.Dispatch(validRequest()))

	// wait until the first task actually holds the slot
	require.Eventually(t, func() bool {
		return invoker.calls.Load() == 1
	}, 5*time.Second, 5*time.Millisecond)

	err := d.Dispatch(validRequest())
	require.ErrorIs(t, err, ErrTooManyInFlight)

	close(invoker.block)
	waitForOutcomes(t, store, 1)

	// capacity frees up once the task finishes
	require.Eventually(t, func() bool {
		return d.sem.TryAcquire(1)
	}, 5*time.Second, 5*time.Millisecond)
	d.sem.Release(1)
}

func TestDispatchTakesPrivateCopy(t *testing.T) {
	store := newTestStore(t)
	invoker := &fakeInvoker{response: successResponse(), block: make(chan struct{})}
	d := New(invoker, store, "default-model", 4)

	body := validRequest()
	require.NoError(t, d.Dispatch(body))

	// mutate the caller's map while the task is still in flight
	body["messages"] = []any{map[string]any{"role": "user", "content": "MUTATED"}}
	close(invoker.block)

	outcomes := waitForOutcomes(t, store, 1)
	assert.Contains(t, outcomes[0].VllmInput, `"hi"`)
	assert.NotContains(t, outcomes[0].VllmInput, "MUTATED")
}

func TestDispatchReturnsBeforeBackendCall(t *testing.T) {
	store := newTestStore(t)
	invoker := &fakeInvoker{response: successResponse(), block: make(chan struct{})}
	d := New(invoker, store, "default-model", 4)

	start := time.Now()
	require.NoError(t, d.Dispatch(validRequest()))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 200*time.Millisecond,
		"Dispatch must not block on the backend call")
	close(invoker.block)
	waitForOutcomes(t, store, 1)
}
