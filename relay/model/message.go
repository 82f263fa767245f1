package model

import "encoding/json"

// Message is a single chat message. Content stays raw JSON so multimodal
// payloads pass through to the backend untouched.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Name    string          `json:"name,omitempty"`
}

// ChatRequest is the payload forwarded to the OpenAI-compatible backend.
// Extra carries the allow-listed optional sampling parameters that were
// present on the incoming request; it is flattened into the outgoing JSON
// object by MarshalJSON so absent keys are never defaulted.
type ChatRequest struct {
	Model       string         `json:"model"`
	Messages    []Message      `json:"messages"`
	Temperature float64        `json:"temperature"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
	Extra       map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the top-level object. Fixed fields win on
// key collision.
func (r ChatRequest) MarshalJSON() ([]byte, error) {
	type fixed ChatRequest
	base, err := json.Marshal(fixed(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if _, ok := merged[key]; ok {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		merged[key] = raw
	}
	return json.Marshal(merged)
}
