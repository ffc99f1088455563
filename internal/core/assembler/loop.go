package assembler

import (
	"context"
	"time"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/core/llm"
	"ai-book-tutor/internal/core/retriever"
	"ai-book-tutor/pkg/logger"
)

// SearchFunc issues one retrieval call on the model's behalf.
type SearchFunc func(ctx context.Context, query string, scope retriever.Scope, topK int) (retriever.Result, error)

// TryAgainResponse is the user-visible reply when the model provider fails
// permanently. The student always gets a coherent message, never a raw error
// and never fabricated content.
const TryAgainResponse = "I'm having trouble putting together a reply right now. Please send that again in a moment."

// Complete runs the model with the tool-loop protocol: if the model asks to
// search the book before finalizing, the retrieval is issued, the payload is
// re-assembled with the new result appended, and the model is re-invoked.
// Retrieval round-trips are capped at MaxToolRoundTrips; on the final
// invocation the tool is withheld so the model must answer.
//
// Retrieval failure mid-loop degrades the turn (no further tool calls) rather
// than aborting it. Only context cancellation returns an error.
func (a *Assembler) Complete(ctx context.Context, provider llm.Provider, search SearchFunc, in Input) (string, error) {
	results := in.Results
	for trip := 0; ; trip++ {
		allow := search != nil && trip < a.MaxToolRoundTrips
		in.Results = results
		payload := a.Assemble(in, allow)

		callCtx, cancel := context.WithTimeout(ctx, time.Duration(config.Cfg.Assembler.LLMTimeoutMs)*time.Millisecond)
		comp, err := provider.Complete(callCtx, payload)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Error(err, "%v: completion failed", config.ModuleAssembler)
			return TryAgainResponse, nil
		}
		if !allow || len(comp.ToolCalls) == 0 {
			if comp.Text == "" {
				return TryAgainResponse, nil
			}
			return comp.Text, nil
		}

		call := comp.ToolCalls[0]
		res, err := search(ctx, call.Query, scopeFromCall(call, in), a.TopKDefault)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Error(err, "%v: tool retrieval failed, finishing without it", config.ModuleAssembler)
			search = nil
			continue
		}
		results = append(results, res)
	}
}

// scopeFromCall maps a model tool call to a retrieval scope, defaulting to the
// student's current position when the call leaves fields blank.
func scopeFromCall(call llm.RetrievalCall, in Input) retriever.Scope {
	chapter := call.ChapterID
	lesson := call.LessonID
	if chapter == "" && in.State != nil {
		chapter = in.State.CurrentChapter
		if lesson == "" {
			lesson = in.State.CurrentLesson
		}
	}
	switch call.Scope {
	case "lesson":
		if chapter != "" && lesson != "" {
			return retriever.Scope{Level: retriever.ScopeLesson, ChapterID: chapter, LessonID: lesson}
		}
		fallthrough
	case "chapter":
		if chapter != "" {
			return retriever.Scope{Level: retriever.ScopeChapter, ChapterID: chapter}
		}
		fallthrough
	default:
		return retriever.BookScope()
	}
}
