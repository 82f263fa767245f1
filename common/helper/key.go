package helper

import "github.com/buscafornecedor/vllm-gateway/common/random"

const RequestIdKey = "X-Request-Id"

// GenRequestID returns a sortable request id: timestamp followed by a random
// suffix.
func GenRequestID() string {
	return GetTimeString() + random.GetUUID()[:8]
}
