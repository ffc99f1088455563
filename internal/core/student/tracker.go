package student

import (
	"ai-book-tutor/config"
	"ai-book-tutor/pkg/logger"

	"github.com/samber/lo"
)

// Tracker maintains the rolling adaptive signals of a student. All thresholds
// come from configuration so test fixtures can pin them.
type Tracker struct {
	WrongStreakThreshold int
	TopicWrongThreshold  int
	TopicClearStreak     int
	FastLatencyMs        int
	ExcellingWindow      int
}

// NewTracker builds a tracker from the loaded configuration.
func NewTracker() *Tracker {
	return &Tracker{
		WrongStreakThreshold: config.Cfg.Tutor.WrongStreakThreshold,
		TopicWrongThreshold:  config.Cfg.Tutor.TopicWrongThreshold,
		TopicClearStreak:     config.Cfg.Tutor.TopicClearStreak,
		FastLatencyMs:        config.Cfg.Tutor.FastLatencyMs,
		ExcellingWindow:      config.Cfg.Tutor.ExcellingWindow,
	}
}

// RecordOutcome applies one graded interaction to the state and recomputes the
// performance classification. The classification is never cached stale.
func (t *Tracker) RecordOutcome(st *State, correct bool, latencyMs int, topic string) *State {
	if correct {
		st.WrongStreak = 0
	} else {
		st.WrongStreak++
	}

	if topic != "" {
		rec := st.Topics[topic]
		if correct {
			rec.CorrectRun++
			if rec.WrongCount >= t.TopicWrongThreshold && rec.CorrectRun >= t.TopicClearStreak {
				// Cleared: two-in-a-row rule is the only way out of the set.
				delete(st.Topics, topic)
				logger.WithFields(map[string]interface{}{
					"student": st.StudentID,
					"topic":   topic,
				}).Info("tracker: difficulty topic cleared")
			} else {
				st.Topics[topic] = rec
			}
		} else {
			rec.WrongCount++
			rec.CorrectRun = 0
			st.Topics[topic] = rec
			if rec.WrongCount == t.TopicWrongThreshold {
				logger.WithFields(map[string]interface{}{
					"student": st.StudentID,
					"topic":   topic,
					"wrong":   rec.WrongCount,
				}).Info("tracker: difficulty topic added")
			}
		}
	}

	st.RecentOutcomes = append(st.RecentOutcomes, Outcome{Correct: correct, LatencyMs: latencyMs, Topic: topic})
	if len(st.RecentOutcomes) > t.ExcellingWindow {
		st.RecentOutcomes = st.RecentOutcomes[len(st.RecentOutcomes)-t.ExcellingWindow:]
	}
	st.OutcomeCount++

	st.Performance = t.Classify(st)
	return st
}

// Classify derives the performance level from the current state. Calling it
// twice without an intervening RecordOutcome returns the identical level.
func (t *Tracker) Classify(st *State) PerformanceLevel {
	if st.OutcomeCount < 3 {
		return LevelNew
	}
	if st.WrongStreak >= t.WrongStreakThreshold || len(st.DifficultyTopics(t.TopicWrongThreshold)) >= 3 {
		return LevelStruggling
	}
	if len(st.RecentOutcomes) >= t.ExcellingWindow {
		allFastAndCorrect := lo.EveryBy(st.RecentOutcomes, func(o Outcome) bool {
			return o.Correct && o.LatencyMs < t.FastLatencyMs
		})
		if allFastAndCorrect {
			return LevelExcelling
		}
	}
	return LevelProgressing
}
