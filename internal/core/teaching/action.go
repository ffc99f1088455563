package teaching

// ActionKind names one requirement the context assembler must satisfy when
// building the prompt for this turn. The machine declares what the turn needs;
// the assembler decides how to phrase it.
type ActionKind string

const (
	ActionGreet             ActionKind = "greet"
	ActionAskLanguage       ActionKind = "ask_language"
	ActionListChapters      ActionKind = "list_chapters"
	ActionPlanLesson        ActionKind = "plan_lesson"
	ActionTeachSection      ActionKind = "teach_section"
	ActionCiteContent       ActionKind = "cite_content"
	ActionSimplify          ActionKind = "simplify"
	ActionAskReflection     ActionKind = "ask_reflection"
	ActionEvaluateAnswer    ActionKind = "evaluate_answer"
	ActionGivePractice      ActionKind = "give_practice"
	ActionRecapKeyPoints    ActionKind = "recap_key_points"
	ActionSummarizeChapter  ActionKind = "summarize_chapter"
	ActionOfferQuiz         ActionKind = "offer_quiz"
	ActionGenerateQuiz      ActionKind = "generate_quiz"
	ActionGradeQuiz         ActionKind = "grade_quiz"
	ActionRemedialReview    ActionKind = "remedial_review"
	ActionAdvancedChallenge ActionKind = "advanced_challenge"
	ActionUpdateProgress    ActionKind = "update_progress"
	ActionOfferNextStep     ActionKind = "offer_next_step"
	ActionCelebrate         ActionKind = "celebrate"
	ActionClarify           ActionKind = "clarify"
	ActionSummarizeBook     ActionKind = "summarize_book"
	ActionNoGrounding       ActionKind = "no_grounding"
)

// Action is one declarative prompt requirement. N carries a count where the
// kind needs one (quiz question count), Topic carries the subject where known.
type Action struct {
	Kind  ActionKind
	N     int
	Topic string
}

// HasAction reports whether kind is present in actions.
func HasAction(actions []Action, kind ActionKind) bool {
	for _, a := range actions {
		if a.Kind == kind {
			return true
		}
	}
	return false
}
