package student

import (
	"sort"

	"github.com/samber/lo"
)

// PerformanceLevel classifies how the student is doing right now.
type PerformanceLevel string

const (
	LevelNew         PerformanceLevel = "new"
	LevelProgressing PerformanceLevel = "progressing"
	LevelStruggling  PerformanceLevel = "struggling"
	LevelExcelling   PerformanceLevel = "excelling"
)

// Outcome is one graded interaction.
type Outcome struct {
	Correct   bool   `json:"correct"`
	LatencyMs int    `json:"latency_ms"`
	Topic     string `json:"topic"`
}

// TopicRecord tracks how a single topic is going. A topic enters the
// difficulty set after repeated wrong answers and only leaves it after the
// configured number of consecutive correct answers; a single lucky answer
// cannot erase a tracked weakness.
type TopicRecord struct {
	WrongCount int `json:"wrong_count"`
	CorrectRun int `json:"correct_run"`
}

// QuizQuestion is one generated quiz item together with its answer key.
type QuizQuestion struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
	Topic  string `json:"topic"`
}

// PendingQuestion is an open reflection question awaiting the student's answer.
type PendingQuestion struct {
	Topic     string   `json:"topic"`
	KeyPoints []string `json:"key_points"`
}

// State is the per-session mutable record of a student. It is owned
// exclusively by its session; all adaptivity flows through these fields so
// that identical inputs always reproduce identical phase transitions.
type State struct {
	StudentID         string           `json:"student_id"`
	Phase             string           `json:"phase"`
	LastGraded        string           `json:"last_graded"` // reflection | practice | quiz
	Name              string           `json:"name"`
	Language          string           `json:"language"`
	Level             string           `json:"level"`
	LearningStyle     string           `json:"learning_style"`
	CurrentChapter    string           `json:"current_chapter"`
	CurrentLesson     string           `json:"current_lesson"`
	CurrentSection    int              `json:"current_section"`
	CompletedChapters []string         `json:"completed_chapters"`
	CompletedLessons  []string         `json:"completed_lessons"`
	WrongStreak       int              `json:"wrong_streak"`
	RecentOutcomes    []Outcome        `json:"recent_outcomes"`
	OutcomeCount      int              `json:"outcome_count"`
	Topics            map[string]TopicRecord `json:"topics"`
	Performance       PerformanceLevel `json:"performance"`
	PendingQuestion   *PendingQuestion `json:"pending_question,omitempty"`
	ActiveQuiz        []QuizQuestion   `json:"active_quiz,omitempty"`
	LastQuizScore     int              `json:"last_quiz_score"`
	LastTurnUnixMs    int64            `json:"last_turn_unix_ms"`
}

// NewState returns the default state for a fresh session.
func NewState(studentID string) *State {
	return &State{
		StudentID:   studentID,
		Phase:       "greeting",
		Language:    "en",
		Level:       "beginner",
		Topics:      map[string]TopicRecord{},
		Performance: LevelNew,
	}
}

// Clone deep-copies the state. Turn processing mutates a clone and commits it
// only after the full turn succeeds, so a cancelled turn never leaves a
// partially mutated state behind.
func (s *State) Clone() *State {
	out := *s
	out.CompletedChapters = append([]string(nil), s.CompletedChapters...)
	out.CompletedLessons = append([]string(nil), s.CompletedLessons...)
	out.RecentOutcomes = append([]Outcome(nil), s.RecentOutcomes...)
	out.Topics = make(map[string]TopicRecord, len(s.Topics))
	for k, v := range s.Topics {
		out.Topics[k] = v
	}
	if s.PendingQuestion != nil {
		pq := *s.PendingQuestion
		pq.KeyPoints = append([]string(nil), s.PendingQuestion.KeyPoints...)
		out.PendingQuestion = &pq
	}
	out.ActiveQuiz = append([]QuizQuestion(nil), s.ActiveQuiz...)
	return &out
}

// DifficultyTopics lists topics currently in the difficulty set, given the
// wrong-count threshold at which a topic is considered difficult.
func (s *State) DifficultyTopics(wrongThreshold int) []string {
	keys := lo.Keys(s.Topics)
	difficult := lo.Filter(keys, func(topic string, _ int) bool {
		return s.Topics[topic].WrongCount >= wrongThreshold
	})
	// map iteration order is random; keep output deterministic
	sort.Strings(difficult)
	return difficult
}

// ChapterCompleted reports whether the chapter is in the completed set.
func (s *State) ChapterCompleted(chapterID string) bool {
	return lo.Contains(s.CompletedChapters, chapterID)
}

// MarkChapterCompleted records the chapter once.
func (s *State) MarkChapterCompleted(chapterID string) {
	if !s.ChapterCompleted(chapterID) {
		s.CompletedChapters = append(s.CompletedChapters, chapterID)
	}
}
