package student

import "testing"

func testTracker() *Tracker {
	return &Tracker{
		WrongStreakThreshold: 3,
		TopicWrongThreshold:  2,
		TopicClearStreak:     2,
		FastLatencyMs:        8000,
		ExcellingWindow:      5,
	}
}

func TestWrongStreak_IncrementAndReset(t *testing.T) {
	tr := testTracker()
	st := NewState("s1")

	tr.RecordOutcome(st, false, 5000, "loops")
	tr.RecordOutcome(st, false, 5000, "loops")
	if st.WrongStreak != 2 {
		t.Fatalf("streak = %d, want 2", st.WrongStreak)
	}
	tr.RecordOutcome(st, true, 5000, "loops")
	if st.WrongStreak != 0 {
		t.Fatalf("streak = %d, want 0 after correct answer", st.WrongStreak)
	}
}

func TestDifficultyTopic_AddedAfterTwoWrong(t *testing.T) {
	tr := testTracker()
	st := NewState("s1")

	tr.RecordOutcome(st, false, 5000, "closures")
	if got := st.DifficultyTopics(tr.TopicWrongThreshold); len(got) != 0 {
		t.Fatalf("one wrong answer should not add a difficulty topic, got %v", got)
	}
	tr.RecordOutcome(st, false, 5000, "closures")
	got := st.DifficultyTopics(tr.TopicWrongThreshold)
	if len(got) != 1 || got[0] != "closures" {
		t.Fatalf("difficulty topics = %v, want [closures]", got)
	}
}

func TestDifficultyTopic_SingleCorrectDoesNotClear(t *testing.T) {
	tr := testTracker()
	st := NewState("s1")

	tr.RecordOutcome(st, false, 5000, "pointers")
	tr.RecordOutcome(st, false, 5000, "pointers")
	tr.RecordOutcome(st, true, 5000, "pointers")
	if got := st.DifficultyTopics(tr.TopicWrongThreshold); len(got) != 1 {
		t.Fatalf("one lucky answer must not erase the weakness, got %v", got)
	}
	tr.RecordOutcome(st, true, 5000, "pointers")
	if got := st.DifficultyTopics(tr.TopicWrongThreshold); len(got) != 0 {
		t.Fatalf("two corrects in a row should clear the topic, got %v", got)
	}
}

func TestClassify_NewUnderThreeOutcomes(t *testing.T) {
	tr := testTracker()
	st := NewState("s1")

	tr.RecordOutcome(st, true, 3000, "intro")
	tr.RecordOutcome(st, true, 3000, "intro")
	if st.Performance != LevelNew {
		t.Fatalf("performance = %s, want new", st.Performance)
	}
}

func TestClassify_StrugglingOnStreak(t *testing.T) {
	tr := testTracker()
	st := NewState("s1")

	for i := 0; i < 3; i++ {
		tr.RecordOutcome(st, false, 5000, "recursion")
	}
	if st.Performance != LevelStruggling {
		t.Fatalf("performance = %s, want struggling", st.Performance)
	}
}

func TestClassify_ExcellingNeedsFastCorrectWindow(t *testing.T) {
	tr := testTracker()
	st := NewState("s1")

	for i := 0; i < 5; i++ {
		tr.RecordOutcome(st, true, 2000, "slices")
	}
	if st.Performance != LevelExcelling {
		t.Fatalf("performance = %s, want excelling", st.Performance)
	}

	// One slow answer breaks the window even if correct.
	tr.RecordOutcome(st, true, 20000, "slices")
	if st.Performance != LevelProgressing {
		t.Fatalf("performance = %s, want progressing", st.Performance)
	}
}

func TestClassify_IdempotentBetweenRecords(t *testing.T) {
	tr := testTracker()
	st := NewState("s1")
	for i := 0; i < 4; i++ {
		tr.RecordOutcome(st, true, 2000, "maps")
	}
	a := tr.Classify(st)
	b := tr.Classify(st)
	if a != b {
		t.Fatalf("classify not idempotent: %s vs %s", a, b)
	}
}

func TestClone_IsolatesMutation(t *testing.T) {
	tr := testTracker()
	st := NewState("s1")
	tr.RecordOutcome(st, false, 5000, "channels")
	tr.RecordOutcome(st, false, 5000, "channels")

	cp := st.Clone()
	tr.RecordOutcome(cp, true, 2000, "channels")
	tr.RecordOutcome(cp, true, 2000, "channels")

	if got := st.DifficultyTopics(tr.TopicWrongThreshold); len(got) != 1 {
		t.Fatalf("original state mutated through clone: %v", got)
	}
	if got := cp.DifficultyTopics(tr.TopicWrongThreshold); len(got) != 0 {
		t.Fatalf("clone should have cleared the topic: %v", got)
	}
}
