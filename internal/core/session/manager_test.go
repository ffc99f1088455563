package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-book-tutor/internal/core/assembler"
	"ai-book-tutor/internal/core/content"
	"ai-book-tutor/internal/core/llm"
	"ai-book-tutor/internal/core/retriever"
	"ai-book-tutor/internal/core/student"
	"ai-book-tutor/internal/core/teaching"
)

// memStore is a hermetic in-memory Store.
type memStore struct {
	states map[string]*student.State
	turns  map[string][]assembler.Turn
	saves  int
}

func newMemStore() *memStore {
	return &memStore{states: map[string]*student.State{}, turns: map[string][]assembler.Turn{}}
}

func (s *memStore) Load(ctx context.Context, id string) (*student.State, error) {
	st, ok := s.states[id]
	if !ok {
		return nil, nil
	}
	return st.Clone(), nil
}

func (s *memStore) Save(ctx context.Context, id string, st *student.State) error {
	s.saves++
	s.states[id] = st.Clone()
	return nil
}

func (s *memStore) AppendTurns(ctx context.Context, id string, turns []assembler.Turn, phase teaching.Phase) error {
	s.turns[id] = append(s.turns[id], turns...)
	return nil
}

func (s *memStore) Window(ctx context.Context, id string, n int) ([]assembler.Turn, error) {
	w := s.turns[id]
	if len(w) > n {
		w = w[len(w)-n:]
	}
	return append([]assembler.Turn(nil), w...), nil
}

// fakeEmbedder mirrors the retriever test fake; failures>0 makes it fail.
type fakeEmbedder struct {
	vec      []float32
	failures int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.failures > 0 || f.failures < 0 {
		if f.failures > 0 {
			f.failures--
		}
		return nil, errors.New("embedding backend down")
	}
	return f.vec, nil
}

// echoProvider answers with fixed text plus an optional meta block, and
// records the payloads it was given.
type echoProvider struct {
	meta string
	seen []llm.PromptPayload
}

func (p *echoProvider) Complete(ctx context.Context, payload llm.PromptPayload) (llm.Completion, error) {
	p.seen = append(p.seen, payload)
	text := "tutor reply"
	if p.meta != "" {
		text += "\n```meta\n" + p.meta + "\n```"
	}
	return llm.Completion{Text: text}, nil
}

type failProvider struct{ err error }

func (p *failProvider) Complete(ctx context.Context, payload llm.PromptPayload) (llm.Completion, error) {
	return llm.Completion{}, p.err
}

func testEngine(emb retriever.Embedder) *retriever.Engine {
	store := content.NewStore([]content.Chunk{
		{ID: "c1", ChapterID: "01", LessonID: "01", Text: "recursion calls itself with a base case", Embedding: []float32{1, 0, 0}},
		{ID: "c2", ChapterID: "02", LessonID: "01", Text: "iteration repeats with loops", Embedding: []float32{0, 1, 0}},
	})
	return &retriever.Engine{
		Embedder:     emb,
		Index:        retriever.NewMemoryIndex(store),
		Store:        store,
		TopKMax:      10,
		MinRelevance: 0.25,
		RetryBackoff: time.Millisecond,
	}
}

func newTestManager(store Store, provider llm.Provider, emb retriever.Embedder) *Manager {
	return NewManager(store, testEngine(emb), provider, []string{"01", "02"})
}

const reflectionMeta = `{"pending_question": {"topic": "recursion", "key_points": ["base case", "self call"]}}`

func seedReflectionState(store *memStore, id string) {
	st := student.NewState(id)
	st.Phase = string(teaching.PhaseReflectionQuestion)
	st.CurrentChapter = "01"
	st.PendingQuestion = &student.PendingQuestion{Topic: "recursion", KeyPoints: []string{"base case", "self call"}}
	store.states[id] = st
}

func TestHandleTurn_ScenarioA_ThreeWrongForcesSimplifiedReteach(t *testing.T) {
	store := newMemStore()
	seedReflectionState(store, "kid")
	p := &echoProvider{meta: reflectionMeta}
	m := newTestManager(store, p, &fakeEmbedder{vec: []float32{1, 0, 0}})
	ctx := context.Background()

	wrong := "it just repeats stuff forever"
	// wrong answer -> re-teach -> acknowledge -> reflection -> wrong ... x3
	turns := []string{wrong, "ok", wrong, "ok", wrong}
	var last TurnResult
	var err error
	for _, msg := range turns {
		last, err = m.HandleTurn(ctx, "sess-a", "kid", msg)
		if err != nil {
			t.Fatal(err)
		}
	}

	st := store.states["kid"]
	if st.WrongStreak != 3 {
		t.Fatalf("wrong streak = %d, want 3", st.WrongStreak)
	}
	if topics := st.DifficultyTopics(2); len(topics) != 1 || topics[0] != "recursion" {
		t.Fatalf("difficulty topics = %v, want [recursion]", topics)
	}
	if last.Phase != teaching.PhaseSectionTeach {
		t.Fatalf("phase = %s, want section_teach", last.Phase)
	}
	finalPayload := p.seen[len(p.seen)-1]
	if !strings.Contains(finalPayload.System, "simpler words") {
		t.Fatalf("forced re-teach must carry the simplify instruction:\n%s", finalPayload.System)
	}
}

func seedQuizState(store *memStore, id string) {
	st := student.NewState(id)
	st.Phase = string(teaching.PhaseQuizActive)
	st.CurrentChapter = "01"
	for i := 1; i <= 10; i++ {
		st.ActiveQuiz = append(st.ActiveQuiz, student.QuizQuestion{
			Prompt: fmt.Sprintf("q%d", i),
			Answer: fmt.Sprintf("alpha%d", i),
			Topic:  "recursion",
		})
	}
	store.states[id] = st
}

func quizSheet(correct int) string {
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		if i <= correct {
			fmt.Fprintf(&b, "%d. alpha%d\n", i, i)
		} else {
			fmt.Fprintf(&b, "%d. zzz\n", i)
		}
	}
	return b.String()
}

func TestHandleTurn_ScenarioB_FailingQuizGoesRemedialWithoutCompletion(t *testing.T) {
	store := newMemStore()
	seedQuizState(store, "kid")
	p := &echoProvider{meta: reflectionMeta}
	m := newTestManager(store, p, &fakeEmbedder{vec: []float32{1, 0, 0}})

	res, err := m.HandleTurn(context.Background(), "sess-b", "kid", quizSheet(4))
	if err != nil {
		t.Fatal(err)
	}
	if res.Phase != teaching.PhaseRemedialBranch {
		t.Fatalf("phase = %s, want remedial_branch", res.Phase)
	}
	st := store.states["kid"]
	if st.ChapterCompleted("01") {
		t.Fatalf("failed quiz must not complete the chapter")
	}
	if st.LastQuizScore != 40 {
		t.Fatalf("score = %d, want 40", st.LastQuizScore)
	}
}

func TestHandleTurn_ScenarioC_StrongQuizGoesAdvancedAndCompletes(t *testing.T) {
	store := newMemStore()
	seedQuizState(store, "kid")
	p := &echoProvider{meta: reflectionMeta}
	m := newTestManager(store, p, &fakeEmbedder{vec: []float32{1, 0, 0}})

	res, err := m.HandleTurn(context.Background(), "sess-c", "kid", quizSheet(9))
	if err != nil {
		t.Fatal(err)
	}
	if res.Phase != teaching.PhaseAdvancedBranch {
		t.Fatalf("phase = %s, want advanced_branch", res.Phase)
	}
	if !store.states["kid"].ChapterCompleted("01") {
		t.Fatalf("strong quiz must complete the chapter")
	}
}

func TestHandleTurn_ScenarioD_RetrievalDownStillUpdatesState(t *testing.T) {
	store := newMemStore()
	seedReflectionState(store, "kid")
	p := &echoProvider{meta: reflectionMeta}
	// Embedder permanently down.
	m := newTestManager(store, p, &fakeEmbedder{failures: -1})

	res, err := m.HandleTurn(context.Background(), "sess-d", "kid", "it just repeats stuff forever")
	if err != nil {
		t.Fatalf("turn must complete in degraded mode: %v", err)
	}
	if res.Response == "" {
		t.Fatalf("degraded turn must still answer the student")
	}
	st := store.states["kid"]
	if st.WrongStreak != 1 {
		t.Fatalf("outcome not recorded in degraded mode: streak = %d", st.WrongStreak)
	}
	payload := p.seen[len(p.seen)-1]
	if !strings.Contains(payload.System, "couldn't check the book") {
		t.Fatalf("degraded turn must instruct a non-cited response:\n%s", payload.System)
	}
	if strings.Contains(payload.System, "Book passages:") {
		t.Fatalf("degraded turn must not carry citations")
	}
}

func TestHandleTurn_CancelledTurnLeavesStateUntouched(t *testing.T) {
	store := newMemStore()
	seedReflectionState(store, "kid")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &failProvider{err: &llm.ProviderError{Transient: true, Err: context.Canceled}}
	m := newTestManager(store, p, &fakeEmbedder{vec: []float32{1, 0, 0}})

	_, err := m.HandleTurn(ctx, "sess-x", "kid", "it just repeats stuff forever")
	if err == nil {
		t.Fatalf("cancelled turn must report an error")
	}
	if store.saves != 0 {
		t.Fatalf("cancelled turn must not commit state (saves = %d)", store.saves)
	}
	if store.states["kid"].WrongStreak != 0 {
		t.Fatalf("stored state mutated by a cancelled turn")
	}
}

func TestHandleTurn_GreetingFlowSetsLanguage(t *testing.T) {
	store := newMemStore()
	p := &echoProvider{}
	m := newTestManager(store, p, &fakeEmbedder{vec: []float32{1, 0, 0}})

	res, err := m.HandleTurn(context.Background(), "", "newkid", "urdu please")
	if err != nil {
		t.Fatal(err)
	}
	if res.SessionID == "" {
		t.Fatalf("missing generated session id")
	}
	if res.Phase != teaching.PhaseChapterSelect {
		t.Fatalf("phase = %s, want chapter_select", res.Phase)
	}
	if store.states["newkid"].Language != "roman_ur" {
		t.Fatalf("language = %q, want roman_ur", store.states["newkid"].Language)
	}
}

func TestStudentLock_SharedAcrossSessions(t *testing.T) {
	m := newTestManager(newMemStore(), &echoProvider{}, &fakeEmbedder{vec: []float32{1, 0, 0}})

	if m.studentLock("kid") != m.studentLock("kid") {
		t.Fatalf("one student must map to one lock")
	}
	if m.studentLock("kid") == m.studentLock("other") {
		t.Fatalf("distinct students must not share a lock")
	}
}

func TestHandleTurn_ConcurrentSessionsSameStudentSerialize(t *testing.T) {
	store := newMemStore()
	seedReflectionState(store, "kid")
	p := &echoProvider{meta: reflectionMeta}
	m := newTestManager(store, p, &fakeEmbedder{vec: []float32{1, 0, 0}})

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := m.HandleTurn(context.Background(), fmt.Sprintf("sess-%d", i), "kid", "ok"); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if store.saves != n {
		t.Fatalf("saves = %d, want %d: concurrent turns on one student must serialize", store.saves, n)
	}
}

func TestHandleTurn_QuizMetaArmsActiveQuiz(t *testing.T) {
	store := newMemStore()
	st := student.NewState("kid")
	st.Phase = string(teaching.PhaseQuizIntro)
	st.CurrentChapter = "01"
	store.states["kid"] = st

	p := &echoProvider{meta: `{"quiz": [{"prompt": "q1", "answer": "a1", "topic": "recursion"}]}`}
	m := newTestManager(store, p, &fakeEmbedder{vec: []float32{1, 0, 0}})

	res, err := m.HandleTurn(context.Background(), "sess-q", "kid", "yes, ready")
	if err != nil {
		t.Fatal(err)
	}
	if res.Phase != teaching.PhaseQuizActive {
		t.Fatalf("phase = %s, want quiz_active", res.Phase)
	}
	if len(store.states["kid"].ActiveQuiz) != 1 {
		t.Fatalf("quiz meta not committed to state")
	}
}
