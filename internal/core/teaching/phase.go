package teaching

// Phase names the kind of turn the tutor is expected to produce next.
// Transitions form a directed graph, not a linear sequence.
type Phase string

const (
	PhaseGreeting           Phase = "greeting"
	PhaseChapterSelect      Phase = "chapter_select"
	PhaseLessonPlan         Phase = "lesson_plan"
	PhaseSectionTeach       Phase = "section_teach"
	PhaseReflectionQuestion Phase = "reflection_question"
	PhaseAnswerEvaluation   Phase = "answer_evaluation"
	PhasePracticeTask       Phase = "practice_task"
	PhaseKeyPointRecap      Phase = "key_point_recap"
	PhaseChapterSummary     Phase = "chapter_summary"
	PhaseQuizIntro          Phase = "quiz_intro"
	PhaseQuizActive         Phase = "quiz_active"
	PhaseQuizGrading        Phase = "quiz_grading"
	PhaseRemedialBranch     Phase = "remedial_branch"
	PhaseAdvancedBranch     Phase = "advanced_branch"
	PhaseProgressUpdate     Phase = "progress_update"
	PhaseNextStepChoice     Phase = "next_step_choice"
	PhaseBookComplete       Phase = "book_complete"
)

// AutoAdvances reports whether the phase resolves within the same turn.
// Evaluation and grading phases route onward immediately once the outcome is
// known instead of waiting for another student message.
func (p Phase) AutoAdvances() bool {
	return p == PhaseAnswerEvaluation || p == PhaseQuizGrading
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseGreeting, PhaseChapterSelect, PhaseLessonPlan, PhaseSectionTeach,
		PhaseReflectionQuestion, PhaseAnswerEvaluation, PhasePracticeTask,
		PhaseKeyPointRecap, PhaseChapterSummary, PhaseQuizIntro, PhaseQuizActive,
		PhaseQuizGrading, PhaseRemedialBranch, PhaseAdvancedBranch,
		PhaseProgressUpdate, PhaseNextStepChoice, PhaseBookComplete:
		return true
	}
	return false
}
