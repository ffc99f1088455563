package teaching

import (
	"errors"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/core/student"

	"github.com/samber/lo"
)

// ErrInvalidTransition reports an input that would push the machine into an
// undefined transition. Callers log it and keep the current phase.
var ErrInvalidTransition = errors.New("teaching: invalid phase transition")

// Machine is the teaching state machine. Given the current phase, the student
// state and a classified message it deterministically produces the next phase
// and the declarative actions the context assembler must satisfy.
//
// The outcome of a graded answer is recorded into the state by the tracker
// before Next runs, so all routing reads explicit state fields.
type Machine struct {
	Chapters             []string // ordered chapter ids of the curriculum
	WrongStreakThreshold int
	SectionsPerChapter   int
	QuizQuestions        int
	QuizAdvancedPct      int
	QuizPassPct          int
}

// NewMachine builds a machine from the loaded configuration and the ordered
// chapter list of the chunk store.
func NewMachine(chapters []string) *Machine {
	return &Machine{
		Chapters:             chapters,
		WrongStreakThreshold: config.Cfg.Tutor.WrongStreakThreshold,
		SectionsPerChapter:   config.Cfg.Tutor.SectionsPerChapter,
		QuizQuestions:        config.Cfg.Tutor.QuizQuestions,
		QuizAdvancedPct:      config.Cfg.Tutor.QuizAdvancedPct,
		QuizPassPct:          config.Cfg.Tutor.QuizPassPct,
	}
}

// Next advances the machine one step. It mutates st (the turn's working copy)
// for pointer moves, quiz bookkeeping and chapter completion. When
// retrievalAvailable is false, grounding actions are replaced by a
// no-grounding marker so the turn proceeds without citation instead of
// aborting.
func (m *Machine) Next(phase Phase, st *student.State, cls MessageClass, retrievalAvailable bool) (Phase, []Action, error) {
	if !phase.Valid() {
		return phase, []Action{{Kind: ActionClarify}}, ErrInvalidTransition
	}

	next, actions := m.route(phase, st, cls)

	if !retrievalAvailable {
		actions = lo.Filter(actions, func(a Action, _ int) bool {
			return a.Kind != ActionCiteContent
		})
		actions = append(actions, Action{Kind: ActionNoGrounding})
	}
	st.Phase = string(next)
	return next, actions, nil
}

func (m *Machine) route(phase Phase, st *student.State, cls MessageClass) (Phase, []Action) {
	switch phase {

	case PhaseGreeting:
		if cls.Kind == KindLanguageChoice {
			st.Language = cls.Language
			return PhaseChapterSelect, []Action{{Kind: ActionListChapters}}
		}
		return PhaseGreeting, []Action{{Kind: ActionGreet}, {Kind: ActionAskLanguage}}

	case PhaseChapterSelect:
		switch cls.Kind {
		case KindChapterChoice:
			m.enterChapter(st, cls.Chapter)
			return PhaseLessonPlan, []Action{{Kind: ActionPlanLesson}, {Kind: ActionCiteContent}}
		case KindAffirm:
			if ch := m.nextChapter(st); ch != "" {
				m.enterChapter(st, ch)
				return PhaseLessonPlan, []Action{{Kind: ActionPlanLesson}, {Kind: ActionCiteContent}}
			}
			return PhaseBookComplete, []Action{{Kind: ActionCelebrate}, {Kind: ActionSummarizeBook}}
		}
		return PhaseChapterSelect, []Action{{Kind: ActionClarify}, {Kind: ActionListChapters}}

	case PhaseLessonPlan:
		return PhaseSectionTeach, m.teachActions(st)

	case PhaseSectionTeach:
		// Content delivered; always follow with a reflection question.
		return PhaseReflectionQuestion, []Action{{Kind: ActionAskReflection, Topic: cls.Topic}, {Kind: ActionCiteContent}}

	case PhaseReflectionQuestion:
		if cls.Kind == KindAnswer {
			st.LastGraded = "reflection"
			return PhaseAnswerEvaluation, []Action{{Kind: ActionEvaluateAnswer, Topic: cls.Topic}}
		}
		if cls.Confused {
			return PhaseReflectionQuestion, []Action{{Kind: ActionSimplify, Topic: cls.Topic}, {Kind: ActionCiteContent}}
		}
		// Unrecognized input in a phase expecting a structured answer:
		// stay put and ask for clarification.
		return PhaseReflectionQuestion, []Action{{Kind: ActionClarify}, {Kind: ActionCiteContent}}

	case PhaseAnswerEvaluation:
		correct := lastOutcomeCorrect(st)
		if !correct && st.WrongStreak >= m.WrongStreakThreshold {
			// Forced adaptive simplification, regardless of the natural
			// next phase.
			return PhaseSectionTeach, []Action{
				{Kind: ActionTeachSection},
				{Kind: ActionCiteContent},
				{Kind: ActionSimplify, Topic: cls.Topic},
			}
		}
		if correct {
			if st.LastGraded == "practice" {
				return PhaseKeyPointRecap, []Action{{Kind: ActionRecapKeyPoints}}
			}
			return PhasePracticeTask, []Action{{Kind: ActionGivePractice, Topic: cls.Topic}}
		}
		return PhaseSectionTeach, m.teachActions(st)

	case PhasePracticeTask:
		if cls.Kind == KindAnswer {
			st.LastGraded = "practice"
			return PhaseAnswerEvaluation, []Action{{Kind: ActionEvaluateAnswer, Topic: cls.Topic}}
		}
		if cls.Confused {
			return PhasePracticeTask, []Action{{Kind: ActionSimplify, Topic: cls.Topic}, {Kind: ActionCiteContent}}
		}
		return PhasePracticeTask, []Action{{Kind: ActionClarify}}

	case PhaseKeyPointRecap:
		if st.CurrentSection+1 >= m.SectionsPerChapter {
			return PhaseChapterSummary, []Action{{Kind: ActionSummarizeChapter}, {Kind: ActionCiteContent}}
		}
		st.CurrentSection++
		return PhaseSectionTeach, m.teachActions(st)

	case PhaseChapterSummary:
		return PhaseQuizIntro, []Action{{Kind: ActionOfferQuiz, N: m.QuizQuestions}}

	case PhaseQuizIntro:
		switch cls.Kind {
		case KindAffirm:
			return PhaseQuizActive, []Action{{Kind: ActionGenerateQuiz, N: m.QuizQuestions}, {Kind: ActionCiteContent}}
		case KindDecline:
			return PhaseNextStepChoice, []Action{{Kind: ActionOfferNextStep}}
		}
		return PhaseQuizIntro, []Action{{Kind: ActionClarify}}

	case PhaseQuizActive:
		if cls.Kind == KindQuizSheet && cls.QuizScore != nil {
			st.LastQuizScore = *cls.QuizScore
			st.LastGraded = "quiz"
			st.ActiveQuiz = nil
			return PhaseQuizGrading, []Action{{Kind: ActionGradeQuiz}}
		}
		return PhaseQuizActive, []Action{{Kind: ActionClarify}}

	case PhaseQuizGrading:
		score := st.LastQuizScore
		switch {
		case score >= m.QuizAdvancedPct:
			st.MarkChapterCompleted(st.CurrentChapter)
			return PhaseAdvancedBranch, []Action{{Kind: ActionAdvancedChallenge}, {Kind: ActionCiteContent}}
		case score >= m.QuizPassPct:
			st.MarkChapterCompleted(st.CurrentChapter)
			return PhaseProgressUpdate, []Action{{Kind: ActionUpdateProgress}, {Kind: ActionCelebrate}}
		default:
			return PhaseRemedialBranch, []Action{{Kind: ActionRemedialReview}, {Kind: ActionSimplify}, {Kind: ActionCiteContent}}
		}

	case PhaseRemedialBranch:
		if cls.Kind == KindAnswer {
			if lastOutcomeCorrect(st) {
				return PhaseChapterSummary, []Action{{Kind: ActionSummarizeChapter}, {Kind: ActionCiteContent}}
			}
			return PhaseSectionTeach, []Action{
				{Kind: ActionTeachSection},
				{Kind: ActionCiteContent},
				{Kind: ActionSimplify, Topic: cls.Topic},
			}
		}
		return PhaseRemedialBranch, []Action{{Kind: ActionClarify}}

	case PhaseAdvancedBranch:
		if cls.Kind == KindAnswer {
			if lastOutcomeCorrect(st) {
				return PhaseChapterSummary, []Action{{Kind: ActionSummarizeChapter}, {Kind: ActionCelebrate}}
			}
			return PhaseSectionTeach, m.teachActions(st)
		}
		return PhaseAdvancedBranch, []Action{{Kind: ActionClarify}}

	case PhaseProgressUpdate:
		return PhaseNextStepChoice, []Action{{Kind: ActionOfferNextStep}}

	case PhaseNextStepChoice:
		if len(st.CompletedChapters) >= len(m.Chapters) && len(m.Chapters) > 0 {
			return PhaseBookComplete, []Action{{Kind: ActionCelebrate}, {Kind: ActionSummarizeBook}}
		}
		switch cls.Kind {
		case KindChapterChoice:
			m.enterChapter(st, cls.Chapter)
			return PhaseLessonPlan, []Action{{Kind: ActionPlanLesson}, {Kind: ActionCiteContent}}
		case KindAffirm:
			if ch := m.nextChapter(st); ch != "" {
				m.enterChapter(st, ch)
				return PhaseLessonPlan, []Action{{Kind: ActionPlanLesson}, {Kind: ActionCiteContent}}
			}
			return PhaseBookComplete, []Action{{Kind: ActionCelebrate}, {Kind: ActionSummarizeBook}}
		case KindReview:
			return PhaseRemedialBranch, []Action{{Kind: ActionRemedialReview}, {Kind: ActionCiteContent}}
		}
		return PhaseNextStepChoice, []Action{{Kind: ActionClarify}, {Kind: ActionOfferNextStep}}

	case PhaseBookComplete:
		return PhaseBookComplete, []Action{{Kind: ActionCelebrate}, {Kind: ActionOfferNextStep}}
	}

	return phase, []Action{{Kind: ActionClarify}}
}

// teachActions emits the standard section-teaching bundle, lowering complexity
// when the student is already struggling.
func (m *Machine) teachActions(st *student.State) []Action {
	actions := []Action{{Kind: ActionTeachSection}, {Kind: ActionCiteContent}}
	if st.Performance == student.LevelStruggling {
		actions = append(actions, Action{Kind: ActionSimplify})
	}
	return actions
}

func (m *Machine) enterChapter(st *student.State, chapterID string) {
	st.CurrentChapter = chapterID
	st.CurrentSection = 0
	st.CurrentLesson = ""
}

// nextChapter returns the first chapter not yet completed, in book order.
func (m *Machine) nextChapter(st *student.State) string {
	for _, ch := range m.Chapters {
		if !st.ChapterCompleted(ch) {
			return ch
		}
	}
	return ""
}

func lastOutcomeCorrect(st *student.State) bool {
	if len(st.RecentOutcomes) == 0 {
		return false
	}
	return st.RecentOutcomes[len(st.RecentOutcomes)-1].Correct
}
