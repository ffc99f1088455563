package assembler

import (
	"encoding/json"
	"regexp"
	"strings"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/core/student"
	"ai-book-tutor/pkg/logger"
)

// TurnMeta is the machine-readable block the model appends when it poses a
// question or generates a quiz. It feeds the answer keys deterministic grading
// runs against on the next turn.
type TurnMeta struct {
	PendingQuestion *student.PendingQuestion `json:"pending_question,omitempty"`
	Quiz            []student.QuizQuestion   `json:"quiz,omitempty"`
}

var metaBlockRe = regexp.MustCompile("(?s)```meta\\s*\\n(.*?)\\n?```")

// ParseTurnMeta extracts and strips the meta block from the model's reply.
// A malformed block is logged and dropped; the student-visible text is
// returned either way.
func ParseTurnMeta(text string) (TurnMeta, string) {
	m := metaBlockRe.FindStringSubmatchIndex(text)
	if m == nil {
		return TurnMeta{}, strings.TrimSpace(text)
	}
	raw := text[m[2]:m[3]]
	clean := strings.TrimSpace(text[:m[0]] + text[m[1]:])

	var meta TurnMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		logger.Error(err, "%v: malformed meta block", config.ModuleAssembler)
		return TurnMeta{}, clean
	}
	return meta, clean
}
