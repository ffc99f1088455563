package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-book-tutor/config"
	"ai-book-tutor/pkg/logger"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Tools       []chatTool    `json:"tools,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role      string         `json:"role"`
		Content   string         `json:"content"`
		ToolCalls []chatToolCall `json:"tool_calls"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// searchBookTool lets the model request grounding before finalizing. The
// assembler bounds how many times it is honoured per turn.
var searchBookTool = chatTool{
	Type: "function",
	Function: chatToolFunction{
		Name:        "search_book",
		Description: "Search the curriculum book for passages relevant to a query. Use when you need exact book content to answer or teach.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query":      map[string]interface{}{"type": "string", "description": "content terms to search for"},
				"scope":      map[string]interface{}{"type": "string", "enum": []string{"lesson", "chapter", "book"}},
				"chapter_id": map[string]interface{}{"type": "string"},
				"lesson_id":  map[string]interface{}{"type": "string"},
			},
			"required": []string{"query"},
		},
	},
}

// OpenAIProvider calls the chat completions API. A configured base URL points
// it at any OpenAI-compatible endpoint.
type OpenAIProvider struct {
	MaxRetries int
	Backoff    time.Duration
}

// NewOpenAIProvider builds a provider with one transient retry.
func NewOpenAIProvider() *OpenAIProvider {
	return &OpenAIProvider{MaxRetries: 1, Backoff: 300 * time.Millisecond}
}

// Complete sends the payload and returns the model's text or tool calls.
// Transient failures are retried up to MaxRetries with backoff.
func (p *OpenAIProvider) Complete(ctx context.Context, payload PromptPayload) (Completion, error) {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Completion{}, &ProviderError{Transient: true, Err: ctx.Err()}
			case <-time.After(p.Backoff):
			}
			logger.Warn("%v: retrying completion, attempt %d", config.ModuleOpenAI, attempt+1)
		}
		comp, err := p.complete(ctx, payload)
		if err == nil {
			return comp, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return Completion{}, err
		}
	}
	return Completion{}, lastErr
}

func (p *OpenAIProvider) complete(ctx context.Context, payload PromptPayload) (Completion, error) {
	opts := []option.RequestOption{option.WithAPIKey(config.Cfg.OpenAI.Key)}
	if config.Cfg.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.Cfg.OpenAI.BaseURL))
	}
	client := openai.NewClient(opts...)

	messages := make([]chatMessage, 0, len(payload.Messages)+1)
	if payload.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: payload.System})
	}
	for _, m := range payload.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	req := chatRequest{
		Model:       config.Cfg.OpenAI.Model,
		Temperature: 0.2,
		MaxTokens:   1024,
		Messages:    messages,
	}
	if payload.AllowRetrieval {
		req.Tools = []chatTool{searchBookTool}
	}

	var out chatResponse
	if err := client.Post(ctx, "/chat/completions", req, &out); err != nil {
		// Transport-level failures are worth a retry.
		return Completion{}, &ProviderError{Transient: true, Err: err}
	}
	if out.Error != nil {
		transient := out.Error.Type == "rate_limit_error" || out.Error.Type == "server_error"
		return Completion{}, &ProviderError{Transient: transient, Err: fmt.Errorf("%s: %s", out.Error.Type, out.Error.Message)}
	}
	if len(out.Choices) == 0 {
		return Completion{}, &ProviderError{Err: fmt.Errorf("no choices returned")}
	}

	choice := out.Choices[0]
	comp := Completion{Text: strings.TrimSpace(choice.Message.Content)}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name != searchBookTool.Function.Name {
			continue
		}
		var call RetrievalCall
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &call); err != nil {
			logger.Error(err, "%v: bad tool call arguments", config.ModuleOpenAI)
			continue
		}
		if call.Query != "" {
			comp.ToolCalls = append(comp.ToolCalls, call)
		}
	}
	return comp, nil
}
