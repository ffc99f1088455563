package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string // system | user | assistant
	Content string
}

// PromptPayload is the bounded payload the context assembler produces. When
// AllowRetrieval is false the provider must not expose the retrieval tool, so
// the model is forced to finalize its answer.
type PromptPayload struct {
	System         string
	Messages       []Message
	AllowRetrieval bool
}

// RetrievalCall is the model asking for book content before finalizing.
type RetrievalCall struct {
	Query     string `json:"query"`
	Scope     string `json:"scope"` // lesson | chapter | book
	ChapterID string `json:"chapter_id"`
	LessonID  string `json:"lesson_id"`
}

// Completion is the model's response: final text, or retrieval requests when
// the model wants grounding first.
type Completion struct {
	Text      string
	ToolCalls []RetrievalCall
}

// Provider is the language model boundary.
type Provider interface {
	Complete(ctx context.Context, payload PromptPayload) (Completion, error)
}

// ProviderError distinguishes transient failures (network, rate limit), which
// are worth one retry, from permanent ones.
type ProviderError struct {
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Transient {
		return fmt.Sprintf("llm: transient provider error: %v", e.Err)
	}
	return fmt.Sprintf("llm: provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
