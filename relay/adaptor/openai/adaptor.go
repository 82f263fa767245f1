package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/buscafornecedor/vllm-gateway/common/config"
	"github.com/buscafornecedor/vllm-gateway/common/tracing"
	relaymodel "github.com/buscafornecedor/vllm-gateway/relay/model"
)

// Client invokes an OpenAI-compatible chat-completion backend. The
// configuration is immutable after construction, so a single Client is safe
// for concurrent use by any number of tasks.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.BackendBaseURL(),
		apiKey:     cfg.VLLMAPIKey,
		httpClient: &http.Client{},
	}
}

// upstreamChoice keeps Index as a pointer so a missing index can be told
// apart from index 0 and synthesized from the ordinal position.
type upstreamChoice struct {
	Index        *int               `json:"index"`
	Message      relaymodel.Message `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

type upstreamResponse struct {
	Id      string            `json:"id"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []upstreamChoice  `json:"choices"`
	Usage   relaymodel.Usage  `json:"usage"`
	Error   *relaymodel.Error `json:"error"`
}

// Invoke sends the chat request to the backend and returns the normalized
// response. The call is wrapped in a client span carrying model, latency and
// token usage; the adapter never interprets trace data beyond recording it.
func (c *Client) Invoke(ctx context.Context, request *relaymodel.ChatRequest) (*relaymodel.TextResponse, error) {
	ctx, span := tracing.Tracer().Start(ctx, "chat.completions",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.model", request.Model),
			attribute.String("server.address", c.baseURL),
		))
	defer span.End()

	response, err := c.doInvoke(ctx, request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("llm.usage.prompt_tokens", response.Usage.PromptTokens),
		attribute.Int("llm.usage.completion_tokens", response.Usage.CompletionTokens),
		attribute.Int("llm.usage.total_tokens", response.Usage.TotalTokens),
	)
	return response, nil
}

func (c *Client) doInvoke(ctx context.Context, request *relaymodel.ChatRequest) (*relaymodel.TextResponse, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, "marshal backend request")
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build backend request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "call backend %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read backend response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Errorf("backend returned status %d after %s: %s",
			resp.StatusCode, time.Since(start), truncate(string(body), 512))
	}

	var upstream upstreamResponse
	if err := json.Unmarshal(body, &upstream); err != nil {
		return nil, errors.Wrapf(err, "decode backend response: %s", truncate(string(body), 512))
	}
	if upstream.Error != nil && upstream.Error.Message != "" {
		return nil, errors.Errorf("backend error: %s (type=%s)", upstream.Error.Message, upstream.Error.Type)
	}
	if len(upstream.Choices) == 0 {
		return nil, errors.New("backend response contains no choices")
	}

	return normalizeResponse(&upstream), nil
}

// normalizeResponse converts the upstream payload to the persisted shape.
// A missing created timestamp is tolerated and a missing per-choice index is
// synthesized from the ordinal position.
func normalizeResponse(upstream *upstreamResponse) *relaymodel.TextResponse {
	choices := make([]relaymodel.TextResponseChoice, 0, len(upstream.Choices))
	for ordinal, choice := range upstream.Choices {
		index := ordinal
		if choice.Index != nil {
			index = *choice.Index
		}
		choices = append(choices, relaymodel.TextResponseChoice{
			Index:        index,
			Message:      choice.Message,
			FinishReason: choice.FinishReason,
		})
	}
	return &relaymodel.TextResponse{
		Id:      upstream.Id,
		Object:  "chat.completion",
		Created: upstream.Created,
		Model:   upstream.Model,
		Choices: choices,
		Usage:   upstream.Usage,
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes total)", s[:limit], len(s))
}
