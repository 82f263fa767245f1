package openai

import (
	"encoding/json"
	"math"

	"github.com/Laisky/errors/v2"

	relaymodel "github.com/buscafornecedor/vllm-gateway/relay/model"
)

const defaultTemperature = 0.7

// optionalParams is the fixed allow-list of sampling parameters forwarded to
// the backend. Only keys present on the incoming request are forwarded;
// absent keys are never defaulted.
var optionalParams = []string{
	"top_p", "n", "stream", "stop", "presence_penalty",
	"frequency_penalty", "logit_bias", "user", "logprobs",
	"top_logprobs", "seed",
}

// ConvertRequest translates the raw request mapping into backend parameters.
// The model falls back to defaultModel and temperature to 0.7 when absent.
func ConvertRequest(raw map[string]any, defaultModel string) (*relaymodel.ChatRequest, error) {
	rawMessages, ok := raw["messages"]
	if !ok {
		return nil, errors.New("missing required field: messages")
	}
	encoded, err := json.Marshal(rawMessages)
	if err != nil {
		return nil, errors.Wrap(err, "encode messages")
	}
	var messages []relaymodel.Message
	if err := json.Unmarshal(encoded, &messages); err != nil {
		return nil, errors.Wrap(err, "messages is not a list of {role, content} objects")
	}

	request := &relaymodel.ChatRequest{
		Messages:    messages,
		Temperature: defaultTemperature,
	}

	request.Model = defaultModel
	if model, ok := raw["model"].(string); ok && model != "" {
		request.Model = model
	}
	if temperature, ok := toFloat(raw["temperature"]); ok {
		request.Temperature = temperature
	}
	if maxTokens, ok := toInt(raw["max_tokens"]); ok {
		request.MaxTokens = &maxTokens
	}

	for _, param := range optionalParams {
		if value, ok := raw[param]; ok {
			if request.Extra == nil {
				request.Extra = make(map[string]any, len(optionalParams))
			}
			request.Extra[param] = value
		}
	}

	return request, nil
}

// toFloat accepts the numeric types encoding/json may produce for a JSON
// number depending on decoder settings.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case int:
		return float64(v), true
	}
	return 0, false
}

func toInt(value any) (int, bool) {
	parsed, ok := toFloat(value)
	if !ok || math.Trunc(parsed) != parsed {
		return 0, false
	}
	return int(parsed), true
}
