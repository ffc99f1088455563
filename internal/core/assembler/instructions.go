package assembler

import (
	"fmt"
	"strings"

	"ai-book-tutor/internal/core/student"
	"ai-book-tutor/internal/core/teaching"

	"github.com/samber/lo"
)

// profileLines renders the student profile into system instruction lines.
func profileLines(st *student.State) string {
	var b strings.Builder
	if st.Name != "" {
		b.WriteString(fmt.Sprintf("The student's name is %s.\n", st.Name))
	}
	b.WriteString(languageLine(st.Language))
	b.WriteString(toneLine(st.Level))
	if st.LearningStyle != "" {
		b.WriteString(fmt.Sprintf("The student learns best %s; shape explanations accordingly.\n", st.LearningStyle))
	}
	if st.CurrentChapter != "" {
		b.WriteString(fmt.Sprintf("Current position: chapter %s", st.CurrentChapter))
		if st.CurrentLesson != "" {
			b.WriteString(", lesson " + st.CurrentLesson)
		}
		b.WriteString(fmt.Sprintf(", section %d.\n", st.CurrentSection+1))
	}
	if topics := st.DifficultyTopics(2); len(topics) > 0 {
		b.WriteString("The student has struggled with: " + strings.Join(topics, ", ") + ". Give these extra care and repetition.\n")
	}
	if st.Performance == student.LevelExcelling {
		b.WriteString("The student is doing very well; keep the pace brisk.\n")
	}
	return b.String()
}

func languageLine(lang string) string {
	switch lang {
	case "roman_ur":
		return "Respond in Roman Urdu (Urdu written in Latin script).\n"
	case "es":
		return "Respond in Spanish.\n"
	default:
		return "Respond in English.\n"
	}
}

// toneLine maps the student's level to tone guidance.
func toneLine(level string) string {
	switch level {
	case "advanced":
		return "Be concise and direct; the student can handle being challenged.\n"
	case "intermediate":
		return "Be encouraging and use proper terminology, defining terms on first use.\n"
	default:
		return "Use a warm, patient tone with simple vocabulary and short sentences.\n"
	}
}

// strategyLine picks a teaching strategy from the shape of the student's last
// message and their level.
func strategyLine(st *student.State, lastMsg string) string {
	lower := strings.ToLower(lastMsg)
	confused := lo.SomeBy([]string{"don't understand", "dont understand", "confused", "lost", "stuck"}, func(w string) bool {
		return strings.Contains(lower, w)
	})
	switch {
	case confused:
		return "Strategy: explain through a concrete analogy from everyday life before returning to the book's framing.\n"
	case st.Level == "advanced":
		return "Strategy: teach socratically; lead with questions that let the student derive the idea.\n"
	case strings.Contains(lower, "example") || st.LearningStyle == "by examples":
		return "Strategy: lead with a worked example, then generalize.\n"
	default:
		return "Strategy: answer directly first, then expand.\n"
	}
}

const metaFormatInstruction = `
When an instruction asks for a meta block, end your reply with exactly one fenced block:
` + "```meta" + `
{"pending_question": {"topic": "...", "key_points": ["...", "..."]}}
` + "```" + `
or, for a quiz:
` + "```meta" + `
{"quiz": [{"prompt": "...", "answer": "...", "topic": "..."}]}
` + "```" + `
The block is machine-read and hidden from the student; never mention it.
`

func needsMeta(actions []teaching.Action) bool {
	return lo.SomeBy(actions, func(a teaching.Action) bool {
		switch a.Kind {
		case teaching.ActionAskReflection, teaching.ActionGivePractice, teaching.ActionGenerateQuiz, teaching.ActionAdvancedChallenge, teaching.ActionRemedialReview:
			return true
		}
		return false
	})
}

// instructionFor renders one declarative action as a prompt instruction.
func instructionFor(a teaching.Action) string {
	switch a.Kind {
	case teaching.ActionGreet:
		return "Warmly greet the student and introduce yourself as their tutor for this book."
	case teaching.ActionAskLanguage:
		return "Ask which language they prefer to learn in: English, Roman Urdu, or Spanish."
	case teaching.ActionListChapters:
		return "List the book's chapters briefly and ask which one to study."
	case teaching.ActionPlanLesson:
		return "Lay out a short plan for this chapter: what will be covered and in what order."
	case teaching.ActionTeachSection:
		return "Teach the current section using the book passages as the source of truth."
	case teaching.ActionCiteContent:
		return "When you state something from the book, name the chapter and lesson it comes from."
	case teaching.ActionSimplify:
		if a.Topic != "" {
			return fmt.Sprintf("Re-explain %q with simpler words, shorter sentences and one concrete example.", a.Topic)
		}
		return "Re-explain the last idea with simpler words, shorter sentences and one concrete example."
	case teaching.ActionAskReflection:
		return "End with one reflection question about what was just taught, and append a meta block with its topic and key points."
	case teaching.ActionEvaluateAnswer:
		return "Tell the student whether their answer was right, and explain why against the expected key points."
	case teaching.ActionGivePractice:
		return "Give one short practice task on the same topic, and append a meta block with its topic and key points."
	case teaching.ActionRecapKeyPoints:
		return "Recap the key points of this section as a short list."
	case teaching.ActionSummarizeChapter:
		return "Summarize the chapter's main ideas in a few sentences."
	case teaching.ActionOfferQuiz:
		return fmt.Sprintf("Offer a %d-question quiz on this chapter and ask if they are ready.", a.N)
	case teaching.ActionGenerateQuiz:
		return fmt.Sprintf("Write a quiz of %d short questions covering this chapter, numbered, and append a meta block listing each question with its expected answer and topic.", a.N)
	case teaching.ActionGradeQuiz:
		return "Report the quiz score and go over the questions that were missed."
	case teaching.ActionRemedialReview:
		return "Review the student's weakest topics slowly, one at a time, then ask one check question and append a meta block with its topic and key points."
	case teaching.ActionAdvancedChallenge:
		return "Pose one harder, applied question that stretches beyond the section, and append a meta block with its topic and key points."
	case teaching.ActionUpdateProgress:
		return "Acknowledge the chapter is complete and summarize overall progress."
	case teaching.ActionOfferNextStep:
		return "Offer the next step: the next chapter, a review, or stopping here."
	case teaching.ActionCelebrate:
		return "Celebrate what the student just achieved, specifically."
	case teaching.ActionClarify:
		return "The last message did not fit this step; ask one short clarifying question instead of guessing."
	case teaching.ActionSummarizeBook:
		return "Summarize the whole book's journey and what the student has mastered."
	case teaching.ActionNoGrounding:
		return "You could not check the book for this turn. Say so briefly (e.g. \"I couldn't check the book right now\") and teach from general knowledge without quoting the book."
	}
	return string(a.Kind)
}
