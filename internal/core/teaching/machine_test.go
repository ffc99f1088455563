package teaching

import (
	"errors"
	"testing"

	"ai-book-tutor/internal/core/student"
)

func testMachine() *Machine {
	return &Machine{
		Chapters:             []string{"01-basics", "02-types", "03-functions"},
		WrongStreakThreshold: 3,
		SectionsPerChapter:   4,
		QuizQuestions:        10,
		QuizAdvancedPct:      90,
		QuizPassPct:          50,
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestGreeting_LanguageChoiceMovesToChapterSelect(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")

	next, actions, err := m.Next(PhaseGreeting, st, MessageClass{Kind: KindLanguageChoice, Language: "es"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if next != PhaseChapterSelect {
		t.Fatalf("next = %s, want chapter_select", next)
	}
	if st.Language != "es" {
		t.Fatalf("language = %s, want es", st.Language)
	}
	if !HasAction(actions, ActionListChapters) {
		t.Fatalf("expected list_chapters action, got %v", actions)
	}
}

func TestGreeting_UnrecognizedStays(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")

	next, actions, _ := m.Next(PhaseGreeting, st, MessageClass{Kind: KindFreeText, Text: "hi"}, true)
	if next != PhaseGreeting {
		t.Fatalf("next = %s, want greeting", next)
	}
	if !HasAction(actions, ActionAskLanguage) {
		t.Fatalf("expected ask_language, got %v", actions)
	}
}

func TestSectionTeach_AlwaysFollowedByReflection(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")

	next, actions, _ := m.Next(PhaseSectionTeach, st, MessageClass{Kind: KindFreeText, Text: "got it"}, true)
	if next != PhaseReflectionQuestion {
		t.Fatalf("next = %s, want reflection_question", next)
	}
	if !HasAction(actions, ActionAskReflection) {
		t.Fatalf("expected ask_reflection, got %v", actions)
	}
}

func TestWrongStreak_ForcesSimplifiedReteach(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")
	st.WrongStreak = 3
	st.RecentOutcomes = []student.Outcome{{Correct: false, Topic: "closures"}}

	next, actions, _ := m.Next(PhaseAnswerEvaluation, st, MessageClass{Kind: KindFreeText}, true)
	if next != PhaseSectionTeach {
		t.Fatalf("next = %s, want section_teach", next)
	}
	if !HasAction(actions, ActionSimplify) {
		t.Fatalf("forced re-teach must carry simplify, got %v", actions)
	}
}

func TestAnswerEvaluation_CorrectGoesToPractice(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")
	st.LastGraded = "reflection"
	st.RecentOutcomes = []student.Outcome{{Correct: true}}

	next, actions, _ := m.Next(PhaseAnswerEvaluation, st, MessageClass{}, true)
	if next != PhasePracticeTask {
		t.Fatalf("next = %s, want practice_task", next)
	}
	if !HasAction(actions, ActionGivePractice) {
		t.Fatalf("expected give_practice, got %v", actions)
	}
}

func TestAnswerEvaluation_CorrectPracticeGoesToRecap(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")
	st.LastGraded = "practice"
	st.RecentOutcomes = []student.Outcome{{Correct: true}}

	next, _, _ := m.Next(PhaseAnswerEvaluation, st, MessageClass{}, true)
	if next != PhaseKeyPointRecap {
		t.Fatalf("next = %s, want key_point_recap", next)
	}
}

func TestQuizGrading_RemedialBelowFifty(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")
	st.CurrentChapter = "01-basics"
	st.LastQuizScore = 45

	next, _, _ := m.Next(PhaseQuizGrading, st, MessageClass{}, true)
	if next != PhaseRemedialBranch {
		t.Fatalf("next = %s, want remedial_branch", next)
	}
	if st.ChapterCompleted("01-basics") {
		t.Fatalf("failed quiz must not complete the chapter")
	}
}

func TestQuizGrading_AdvancedAtNinety(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")
	st.CurrentChapter = "01-basics"
	st.LastQuizScore = 92

	next, _, _ := m.Next(PhaseQuizGrading, st, MessageClass{}, true)
	if next != PhaseAdvancedBranch {
		t.Fatalf("next = %s, want advanced_branch", next)
	}
	if !st.ChapterCompleted("01-basics") {
		t.Fatalf("passing quiz must complete the chapter")
	}
}

func TestQuizGrading_StandardPath(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")
	st.CurrentChapter = "02-types"
	st.LastQuizScore = 70

	next, actions, _ := m.Next(PhaseQuizGrading, st, MessageClass{}, true)
	if next != PhaseProgressUpdate {
		t.Fatalf("next = %s, want progress_update", next)
	}
	if !st.ChapterCompleted("02-types") {
		t.Fatalf("chapter should be completed at 70%%")
	}
	if !HasAction(actions, ActionUpdateProgress) {
		t.Fatalf("expected update_progress, got %v", actions)
	}
}

func TestQuizActive_UnrecognizedSheetAsksClarification(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")

	next, actions, _ := m.Next(PhaseQuizActive, st, MessageClass{Kind: KindFreeText, Text: "hmm"}, true)
	if next != PhaseQuizActive {
		t.Fatalf("next = %s, want quiz_active (stay)", next)
	}
	if !HasAction(actions, ActionClarify) {
		t.Fatalf("expected clarify, got %v", actions)
	}
}

func TestDeterminism_SameInputsSameTransition(t *testing.T) {
	m := testMachine()
	for i := 0; i < 3; i++ {
		st := student.NewState("s1")
		st.LastQuizScore = 88
		st.CurrentChapter = "03-functions"
		next, _, _ := m.Next(PhaseQuizGrading, st, MessageClass{}, true)
		if next != PhaseProgressUpdate {
			t.Fatalf("run %d: next = %s, want progress_update", i, next)
		}
	}
}

func TestNextStepChoice_AllChaptersDoneCompletesBook(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")
	st.CompletedChapters = []string{"01-basics", "02-types", "03-functions"}

	next, actions, _ := m.Next(PhaseNextStepChoice, st, MessageClass{Kind: KindAffirm}, true)
	if next != PhaseBookComplete {
		t.Fatalf("next = %s, want book_complete", next)
	}
	if !HasAction(actions, ActionSummarizeBook) {
		t.Fatalf("expected summarize_book, got %v", actions)
	}
}

func TestNextStepChoice_AffirmAdvancesToNextIncompleteChapter(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")
	st.CompletedChapters = []string{"01-basics"}

	next, _, _ := m.Next(PhaseNextStepChoice, st, MessageClass{Kind: KindAffirm}, true)
	if next != PhaseLessonPlan {
		t.Fatalf("next = %s, want lesson_plan", next)
	}
	if st.CurrentChapter != "02-types" {
		t.Fatalf("chapter = %s, want 02-types", st.CurrentChapter)
	}
}

func TestRetrievalUnavailable_ReplacesGrounding(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")

	_, actions, _ := m.Next(PhaseLessonPlan, st, MessageClass{Kind: KindAffirm}, false)
	if HasAction(actions, ActionCiteContent) {
		t.Fatalf("cite_content must be stripped when retrieval is unavailable: %v", actions)
	}
	if !HasAction(actions, ActionNoGrounding) {
		t.Fatalf("expected no_grounding marker, got %v", actions)
	}
}

func TestReflectionQuestion_ConfusionSimplifiesInsteadOfClarifying(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")

	cls := MessageClass{Kind: KindFreeText, Text: "i'm lost", Confused: true, Topic: "recursion"}
	next, actions, _ := m.Next(PhaseReflectionQuestion, st, cls, true)
	if next != PhaseReflectionQuestion {
		t.Fatalf("next = %s, want reflection_question (stay)", next)
	}
	if !HasAction(actions, ActionSimplify) {
		t.Fatalf("expected simplify, got %v", actions)
	}
	if HasAction(actions, ActionClarify) {
		t.Fatalf("confusion should re-teach simply, not ask for clarification")
	}
}

func TestInvalidPhase_KeepsMachineAlive(t *testing.T) {
	m := testMachine()
	st := student.NewState("s1")

	next, actions, err := m.Next(Phase("time_travel"), st, MessageClass{}, true)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if next != Phase("time_travel") {
		t.Fatalf("machine must stay in current phase, got %s", next)
	}
	if !HasAction(actions, ActionClarify) {
		t.Fatalf("expected clarify, got %v", actions)
	}
}
