// Package capability defines the abstract external collaborators the core
// consumes: the LLM, the secondary store, attachment storage, and outbound
// notification. Per §6 of the spec, no concrete client for any of these is
// part of the core — production bindings are wired in cmd/creditor-inbox.
package capability

import (
	"context"
	"time"
)

// Usage reports token consumption for a single LLM capability call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Result is the common return shape for both Classify and Vision.
type Result struct {
	Text  string
	Usage Usage
}

// RateLimitError signals a retryable rate-limit response from the LLM
// provider. The job worker's retry classifier (§4.9, §7) treats this as
// TransientExternal.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "llm capability: rate limited"
}

// LLMClient is the abstract LLM capability consumed by the agent pipeline.
// Production implementations wrap github.com/anthropics/anthropic-sdk-go;
// see cmd/creditor-inbox/main.go for the wiring.
type LLMClient interface {
	// Classify performs a single text completion call, used by Agent 1's
	// intent classification and the supplementary reply check.
	Classify(ctx context.Context, prompt, model string, maxTokens int, temperature float64) (Result, error)

	// Vision performs a single multimodal call over document or image bytes,
	// used for scanned PDFs and image attachments.
	Vision(ctx context.Context, mediaBytes []byte, mediaType, prompt string) (Result, error)
}
