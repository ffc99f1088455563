package teaching

import (
	"regexp"
	"strconv"
	"strings"

	"ai-book-tutor/internal/core/student"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
)

// MessageKind tags the shape of a student message within the current phase.
type MessageKind string

const (
	KindFreeText       MessageKind = "free_text"
	KindLanguageChoice MessageKind = "language_choice"
	KindChapterChoice  MessageKind = "chapter_choice"
	KindAffirm         MessageKind = "affirm"
	KindDecline        MessageKind = "decline"
	KindReview         MessageKind = "review"
	KindAnswer         MessageKind = "answer"
	KindQuizSheet      MessageKind = "quiz_sheet"
	KindUnknown        MessageKind = "unknown"
)

// MessageClass is the deterministic classification of a student message.
// Grading results are explicit fields so the state machine never depends on
// hidden randomness: identical (phase, state, class) always transitions the
// same way.
type MessageClass struct {
	Kind          MessageKind
	Text          string
	Topic         string
	Chapter       string
	Language      string
	Confused      bool
	AnswerCorrect *bool
	QuizScore     *int
}

// Classifier turns raw student text into a MessageClass. Chapters is the
// ordered list of chapter ids so "chapter 4" resolves to a real id.
type Classifier struct {
	Chapters []string
}

var (
	chapterRe = regexp.MustCompile(`(?i)\bchapter\s*(\d+)\b`)
	numberRe  = regexp.MustCompile(`^\s*(\d+)\s*$`)
	answerRe  = regexp.MustCompile(`(?m)^\s*(\d+)\s*[.):-]\s*(.+)$`)
)

// Confusion markers observed in tutoring transcripts.
var confusionWords = []string{
	"don't understand", "dont understand", "confused", "lost", "stuck",
	"no idea", "what?", "??",
}

var affirmWords = []string{"yes", "yeah", "ok", "okay", "sure", "ready", "start", "let's go", "lets go", "continue", "next"}
var declineWords = []string{"no", "not now", "later", "skip", "stop"}
var reviewWords = []string{"review", "repeat", "again", "mistake"}

// questionWords are stripped when extracting a search topic from a question.
var questionWords = []string{"what", "how", "why", "when", "where", "is", "are", "the", "a", "an", "does", "do", "can", "i"}

// Classify analyses the message in the context of the current phase and state.
func (c *Classifier) Classify(text string, phase Phase, st *student.State) MessageClass {
	cls := MessageClass{Kind: KindFreeText, Text: text}
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		cls.Kind = KindUnknown
		return cls
	}

	// Confusion comes from explicit markers or from the same topic recurring
	// across the last few graded interactions. Only the explicit form blocks
	// grading: a student circling a topic still gets their answers scored.
	keywordConfused := lo.SomeBy(confusionWords, func(w string) bool {
		return strings.Contains(lower, w)
	})
	cls.Confused = keywordConfused || repeatedTopic(st.RecentOutcomes, repeatedTopicWindow)

	switch phase {
	case PhaseGreeting:
		if lang := detectLanguage(lower); lang != "" {
			cls.Kind = KindLanguageChoice
			cls.Language = lang
			return cls
		}
	case PhaseChapterSelect, PhaseNextStepChoice:
		if ch := c.resolveChapter(lower); ch != "" {
			cls.Kind = KindChapterChoice
			cls.Chapter = ch
			return cls
		}
	case PhaseQuizActive:
		if len(st.ActiveQuiz) > 0 {
			if score, ok := gradeQuizSheet(text, st.ActiveQuiz); ok {
				cls.Kind = KindQuizSheet
				cls.QuizScore = &score
				return cls
			}
		}
	case PhaseReflectionQuestion, PhasePracticeTask, PhaseRemedialBranch, PhaseAdvancedBranch:
		if st.PendingQuestion != nil && !keywordConfused {
			correct := gradeAnswer(lower, st.PendingQuestion.KeyPoints)
			cls.Kind = KindAnswer
			cls.AnswerCorrect = &correct
			cls.Topic = st.PendingQuestion.Topic
			return cls
		}
	}

	if containsAny(lower, reviewWords) && (phase == PhaseNextStepChoice || phase == PhaseProgressUpdate) {
		cls.Kind = KindReview
		return cls
	}
	if containsAny(lower, affirmWords) {
		cls.Kind = KindAffirm
		return cls
	}
	if containsAny(lower, declineWords) {
		cls.Kind = KindDecline
		return cls
	}

	cls.Topic = ExtractQuery(text)
	return cls
}

// repeatedTopicWindow is how many identical consecutive topics count as
// circling one idea without getting it.
const repeatedTopicWindow = 3

// repeatedTopic reports whether the last n graded outcomes were all about the
// same non-empty topic.
func repeatedTopic(outcomes []student.Outcome, n int) bool {
	if len(outcomes) < n {
		return false
	}
	last := outcomes[len(outcomes)-n:]
	topic := last[0].Topic
	if topic == "" {
		return false
	}
	return lo.EveryBy(last[1:], func(o student.Outcome) bool {
		return o.Topic == topic
	})
}

func detectLanguage(lower string) string {
	switch {
	case strings.Contains(lower, "english"):
		return "en"
	case strings.Contains(lower, "urdu") || strings.Contains(lower, "roman"):
		return "roman_ur"
	case strings.Contains(lower, "spanish") || strings.Contains(lower, "español"):
		return "es"
	}
	return ""
}

func (c *Classifier) resolveChapter(lower string) string {
	// exact id match first
	for _, id := range c.Chapters {
		if strings.Contains(lower, strings.ToLower(id)) {
			return id
		}
	}
	var ord int
	if m := chapterRe.FindStringSubmatch(lower); m != nil {
		ord, _ = strconv.Atoi(m[1])
	} else if m := numberRe.FindStringSubmatch(lower); m != nil {
		ord, _ = strconv.Atoi(m[1])
	}
	if ord >= 1 && ord <= len(c.Chapters) {
		return c.Chapters[ord-1]
	}
	return ""
}

// gradeAnswer accepts the answer when at least half of the expected key points
// appear in it (case-folded fuzzy containment, as in fuzzy note search).
func gradeAnswer(lowerAnswer string, keyPoints []string) bool {
	if len(keyPoints) == 0 {
		return false
	}
	hits := lo.CountBy(keyPoints, func(kp string) bool {
		return fuzzy.MatchFold(strings.ToLower(kp), lowerAnswer)
	})
	return hits*2 >= len(keyPoints)
}

// gradeQuizSheet parses a numbered answer sheet and scores it against the
// active quiz key. Returns ok=false when the sheet shape is unrecognizable,
// which keeps the machine in QuizActive with a clarification request.
func gradeQuizSheet(text string, quiz []student.QuizQuestion) (int, bool) {
	matches := answerRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	answers := make(map[int]string, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		answers[n] = strings.ToLower(strings.TrimSpace(m[2]))
	}
	if len(answers) == 0 {
		return 0, false
	}
	correct := 0
	for i, q := range quiz {
		given, ok := answers[i+1]
		if !ok {
			continue
		}
		want := strings.ToLower(q.Answer)
		if given == want || fuzzy.MatchFold(want, given) {
			correct++
		}
	}
	return correct * 100 / len(quiz), true
}

// ExtractQuery strips question words so retrieval sees content terms only.
func ExtractQuery(text string) string {
	words := strings.Fields(strings.ToLower(text))
	filtered := lo.Filter(words, func(w string, _ int) bool {
		w = strings.Trim(w, "?.,!")
		return w != "" && !lo.Contains(questionWords, w)
	})
	if len(filtered) == 0 {
		return strings.TrimSpace(text)
	}
	for i, w := range filtered {
		filtered[i] = strings.Trim(w, "?.,!")
	}
	return strings.Join(filtered, " ")
}

// containsAny matches multi-word entries by substring and single words as
// whole tokens, so "no" never fires inside "know".
func containsAny(lower string, words []string) bool {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?' || r == '\n'
	})
	for _, w := range words {
		if strings.Contains(w, " ") {
			if strings.Contains(lower, w) {
				return true
			}
			continue
		}
		if lo.Contains(fields, w) {
			return true
		}
	}
	return false
}
