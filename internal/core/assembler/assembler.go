package assembler

import (
	"fmt"
	"sort"
	"strings"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/core/content"
	"ai-book-tutor/internal/core/llm"
	"ai-book-tutor/internal/core/retriever"
	"ai-book-tutor/internal/core/student"
	"ai-book-tutor/internal/core/teaching"

	"github.com/samber/lo"
)

// Turn is one entry of the conversation window, oldest first. The last entry
// is always the current student message.
type Turn struct {
	Role    string // student | tutor
	Content string
}

// Input is everything a turn contributes to prompt assembly.
type Input struct {
	Phase   teaching.Phase
	Actions []teaching.Action
	State   *student.State
	Results []retriever.Result
	Window  []Turn
}

// Assembler builds bounded prompt payloads. Over budget it truncates in
// priority order: oldest conversation turns first, then lowest-scored chunks.
// Phase instructions and the most recent student message are never dropped.
type Assembler struct {
	BudgetTokens      int
	WindowTurns       int
	MaxToolRoundTrips int
	TopKDefault       int
}

// New wires an assembler from the loaded configuration.
func New() *Assembler {
	return &Assembler{
		BudgetTokens:      config.Cfg.Assembler.BudgetTokens,
		WindowTurns:       config.Cfg.Assembler.WindowTurns,
		MaxToolRoundTrips: config.Cfg.Assembler.MaxToolRoundTrips,
		TopKDefault:       config.Cfg.Retriever.TopKDefault,
	}
}

// Assemble builds the payload for one model invocation.
func (a *Assembler) Assemble(in Input, allowRetrieval bool) llm.PromptPayload {
	chunks := mergeHits(in.Results)
	turns := in.Window
	if a.WindowTurns > 0 && len(turns) > a.WindowTurns {
		turns = turns[len(turns)-a.WindowTurns:]
	}

	for {
		payload := a.render(in, chunks, turns, allowRetrieval)
		if a.BudgetTokens <= 0 || a.payloadTokens(payload) <= a.BudgetTokens {
			return payload
		}
		// Drop oldest turns first, keeping the most recent student message.
		if len(turns) > 1 {
			turns = turns[1:]
			continue
		}
		// Then lowest-scored chunks.
		if len(chunks) > 0 {
			chunks = chunks[:len(chunks)-1]
			continue
		}
		// Instructions and the last message are never dropped.
		return payload
	}
}

func (a *Assembler) render(in Input, chunks []retriever.Hit, turns []Turn, allowRetrieval bool) llm.PromptPayload {
	var sys strings.Builder
	sys.WriteString("You are a patient one-on-one tutor teaching a student through a book, section by section.\n")
	sys.WriteString(profileLines(in.State))
	sys.WriteString(strategyLine(in.State, lastStudentMessage(turns)))

	sys.WriteString("\nThis turn you must:\n")
	for _, act := range in.Actions {
		sys.WriteString("- " + instructionFor(act) + "\n")
	}
	if needsMeta(in.Actions) {
		sys.WriteString(metaFormatInstruction)
	}
	if hedged(in.Results) {
		sys.WriteString("\nThe book passages below matched the query only weakly. Present them as possibly related rather than authoritative, and say so if they do not answer the question.\n")
	}

	if len(chunks) > 0 {
		sys.WriteString("\nBook passages:\n")
		for i, h := range chunks {
			sys.WriteString(fmt.Sprintf("[%d] %s\n%s\n\n", i+1, citation(h), strings.TrimSpace(h.Content)))
		}
	}

	messages := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == "tutor" {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}

	return llm.PromptPayload{
		System:         sys.String(),
		Messages:       messages,
		AllowRetrieval: allowRetrieval,
	}
}

func (a *Assembler) payloadTokens(p llm.PromptPayload) int {
	total := content.ApproxTokens(p.System)
	for _, m := range p.Messages {
		total += content.ApproxTokens(m.Content)
	}
	return total
}

// mergeHits flattens every retrieval round-trip into one list, deduplicated by
// chunk id, best score first.
func mergeHits(results []retriever.Result) []retriever.Hit {
	var all []retriever.Hit
	for _, res := range results {
		all = append(all, res.Hits...)
	}
	all = lo.UniqBy(all, func(h retriever.Hit) string { return h.ChunkID })
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	return all
}

func hedged(results []retriever.Result) bool {
	return lo.SomeBy(results, func(r retriever.Result) bool {
		return r.LowConfidence || r.Fallback
	})
}

func citation(h retriever.Hit) string {
	parts := []string{}
	if h.ChapterID != "" {
		parts = append(parts, "Chapter "+h.ChapterID)
	}
	if h.LessonID != "" {
		parts = append(parts, "Lesson "+h.LessonID)
	}
	if len(h.HeadingPath) > 0 {
		parts = append(parts, strings.Join(h.HeadingPath, " › "))
	}
	if len(parts) == 0 {
		return "Book"
	}
	return strings.Join(parts, " › ")
}

func lastStudentMessage(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "student" {
			return turns[i].Content
		}
	}
	return ""
}
