// Package triage turns free-text symptom descriptions into an urgency level
// and a specialist recommendation, and ranks appointment slots by urgency.
// Model failures never surface to the caller: every path degrades to a safe
// fixed recommendation.
package triage

import "context"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of model input.
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// LLMRequest is a provider-neutral completion request.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// TokenUsage reports model token consumption.
type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMResponse is a provider-neutral completion result.
type LLMResponse struct {
	Text       string
	StopReason string
	Usage      TokenUsage
}

// LLMClient abstracts the model provider so the service can run on Bedrock,
// Gemini or a test stub.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
