package teaching

import (
	"testing"

	"ai-book-tutor/internal/core/student"
)

func testClassifier() *Classifier {
	return &Classifier{Chapters: []string{"01-basics", "02-types", "03-functions"}}
}

func TestClassify_LanguageChoice(t *testing.T) {
	c := testClassifier()
	st := student.NewState("s1")

	cls := c.Classify("English please", PhaseGreeting, st)
	if cls.Kind != KindLanguageChoice || cls.Language != "en" {
		t.Fatalf("got %+v, want language_choice/en", cls)
	}

	cls = c.Classify("roman urdu", PhaseGreeting, st)
	if cls.Language != "roman_ur" {
		t.Fatalf("language = %s, want roman_ur", cls.Language)
	}
}

func TestClassify_ChapterByOrdinal(t *testing.T) {
	c := testClassifier()
	st := student.NewState("s1")

	cls := c.Classify("let's do chapter 2", PhaseChapterSelect, st)
	if cls.Kind != KindChapterChoice || cls.Chapter != "02-types" {
		t.Fatalf("got %+v, want chapter 02-types", cls)
	}
}

func TestClassify_ChapterByID(t *testing.T) {
	c := testClassifier()
	st := student.NewState("s1")

	cls := c.Classify("03-functions", PhaseChapterSelect, st)
	if cls.Chapter != "03-functions" {
		t.Fatalf("chapter = %s, want 03-functions", cls.Chapter)
	}
}

func TestClassify_ConfusionDetection(t *testing.T) {
	c := testClassifier()
	st := student.NewState("s1")

	cls := c.Classify("I still don't understand this at all", PhaseSectionTeach, st)
	if !cls.Confused {
		t.Fatalf("expected confusion flag")
	}
}

func TestClassify_RepeatedTopicFlagsConfusion(t *testing.T) {
	c := testClassifier()
	st := student.NewState("s1")
	st.RecentOutcomes = []student.Outcome{
		{Topic: "recursion", Correct: false},
		{Topic: "recursion", Correct: false},
		{Topic: "recursion", Correct: true},
	}

	cls := c.Classify("tell me about it once more", PhaseSectionTeach, st)
	if !cls.Confused {
		t.Fatalf("three graded turns on one topic should flag confusion")
	}

	// Two occurrences are not enough.
	st.RecentOutcomes = st.RecentOutcomes[:2]
	cls = c.Classify("tell me about it once more", PhaseSectionTeach, st)
	if cls.Confused {
		t.Fatalf("two occurrences must not flag confusion")
	}

	// Mixed topics are progress, not circling.
	st.RecentOutcomes = []student.Outcome{
		{Topic: "recursion"}, {Topic: "slices"}, {Topic: "recursion"},
	}
	cls = c.Classify("tell me about it once more", PhaseSectionTeach, st)
	if cls.Confused {
		t.Fatalf("mixed topics must not flag confusion")
	}
}

func TestClassify_RepeatedTopicDoesNotBlockGrading(t *testing.T) {
	c := testClassifier()
	st := student.NewState("s1")
	st.RecentOutcomes = []student.Outcome{
		{Topic: "recursion"}, {Topic: "recursion"}, {Topic: "recursion"},
	}
	st.PendingQuestion = &student.PendingQuestion{
		Topic:     "recursion",
		KeyPoints: []string{"base case", "self call"},
	}

	cls := c.Classify("a base case stops the self call", PhaseReflectionQuestion, st)
	if cls.Kind != KindAnswer || cls.AnswerCorrect == nil {
		t.Fatalf("answers must still be graded while circling a topic: %+v", cls)
	}
	if !cls.Confused {
		t.Fatalf("the confusion signal itself should persist")
	}
}

func TestClassify_AnswerGradedAgainstKeyPoints(t *testing.T) {
	c := testClassifier()
	st := student.NewState("s1")
	st.PendingQuestion = &student.PendingQuestion{
		Topic:     "goroutines",
		KeyPoints: []string{"lightweight", "scheduler"},
	}

	cls := c.Classify("they are lightweight threads managed by the Go scheduler", PhaseReflectionQuestion, st)
	if cls.Kind != KindAnswer || cls.AnswerCorrect == nil || !*cls.AnswerCorrect {
		t.Fatalf("got %+v, want correct answer", cls)
	}
	if cls.Topic != "goroutines" {
		t.Fatalf("topic = %s, want goroutines", cls.Topic)
	}

	cls = c.Classify("something about threads maybe", PhaseReflectionQuestion, st)
	if cls.AnswerCorrect == nil || *cls.AnswerCorrect {
		t.Fatalf("got %+v, want incorrect answer", cls)
	}
}

func TestClassify_QuizSheetScoring(t *testing.T) {
	c := testClassifier()
	st := student.NewState("s1")
	st.ActiveQuiz = []student.QuizQuestion{
		{Prompt: "q1", Answer: "true", Topic: "slices"},
		{Prompt: "q2", Answer: "append", Topic: "slices"},
		{Prompt: "q3", Answer: "false", Topic: "maps"},
		{Prompt: "q4", Answer: "nil", Topic: "maps"},
	}

	cls := c.Classify("1. true\n2. append\n3. true\n4. nil", PhaseQuizActive, st)
	if cls.Kind != KindQuizSheet || cls.QuizScore == nil {
		t.Fatalf("got %+v, want quiz sheet", cls)
	}
	if *cls.QuizScore != 75 {
		t.Fatalf("score = %d, want 75", *cls.QuizScore)
	}
}

func TestClassify_QuizSheetUnparsable(t *testing.T) {
	c := testClassifier()
	st := student.NewState("s1")
	st.ActiveQuiz = []student.QuizQuestion{{Prompt: "q1", Answer: "true"}}

	cls := c.Classify("I think they are all fine?", PhaseQuizActive, st)
	if cls.Kind == KindQuizSheet {
		t.Fatalf("free text must not be treated as an answer sheet")
	}
}

func TestClassify_AffirmIsNotMatchedInsideWords(t *testing.T) {
	c := testClassifier()
	st := student.NewState("s1")

	cls := c.Classify("I know this part already", PhaseQuizIntro, st)
	if cls.Kind == KindDecline {
		t.Fatalf("'know' must not classify as decline")
	}
}

func TestExtractQuery_StripsQuestionWords(t *testing.T) {
	got := ExtractQuery("What is a goroutine scheduler?")
	if got != "goroutine scheduler" {
		t.Fatalf("query = %q, want %q", got, "goroutine scheduler")
	}
}
