package gateway

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Fallback messages used when the backend gives no usable detail.
const (
	fallbackSubmit      = "Failed to submit design"
	fallbackFeedback    = "Failed to fetch feedback"
	fallbackSuggestions = "Failed to load improvement suggestions"
	fallbackRegenerate  = "Failed to regenerate suggestions"
)

// APIError is a non-success response from the evaluation backend.
type APIError struct {
	Op     string
	Status int
	Detail string

	fallback string
}

func (e *APIError) Error() string {
	return e.Message()
}

// Message is the user-facing text: the backend's detail when it sent one.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.fallback != "" {
		return e.fallback
	}
	return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
}

// ServerSide reports whether the failure originated on the backend rather
// than in the request.
func (e *APIError) ServerSide() bool {
	return e.Status >= 500
}

// parseDetail extracts the "detail" field of an error body. FastAPI sends a
// list of validation errors there for 422s; only string details are surfaced.
func parseDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
		Error  any `json:"error"`
	}
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if s, ok := payload.Detail.(string); ok {
		return strings.TrimSpace(s)
	}
	if s, ok := payload.Error.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
