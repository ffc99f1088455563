package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/core/assembler"
	"ai-book-tutor/internal/core/llm"
	"ai-book-tutor/internal/core/retriever"
	"ai-book-tutor/internal/core/student"
	"ai-book-tutor/internal/core/teaching"
	"ai-book-tutor/pkg/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Store persists student state and conversation turns between sessions.
// Load returns (nil, nil) for an unknown student.
type Store interface {
	Load(ctx context.Context, studentID string) (*student.State, error)
	Save(ctx context.Context, studentID string, st *student.State) error
	AppendTurns(ctx context.Context, studentID string, turns []assembler.Turn, phase teaching.Phase) error
	Window(ctx context.Context, studentID string, n int) ([]assembler.Turn, error)
}

// TurnResult is what the transport layer sends back to the student.
type TurnResult struct {
	SessionID string
	Response  string
	Phase     teaching.Phase
	Summary   StateSummary
}

// StateSummary is the read-only slice of state exposed per turn.
type StateSummary struct {
	Performance       student.PerformanceLevel `json:"performance"`
	Language          string                   `json:"language"`
	WrongStreak       int                      `json:"wrong_streak"`
	CurrentChapter    string                   `json:"current_chapter"`
	CompletedChapters []string                 `json:"completed_chapters"`
	DifficultyTopics  []string                 `json:"difficulty_topics"`
	LastQuizScore     int                      `json:"last_quiz_score"`
}

// Manager runs the turn pipeline. A turn within one session executes fully
// before the next is accepted; turns across sessions run in parallel. The only
// shared state between sessions is the read-only chunk store inside the
// retrieval engine.
type Manager struct {
	store      Store
	engine     *retriever.Engine
	provider   llm.Provider
	machine    *teaching.Machine
	classifier *teaching.Classifier
	tracker    *student.Tracker
	asm        *assembler.Assembler

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager wires the pipeline. Chapters is the ordered chapter list of the
// loaded curriculum.
func NewManager(store Store, engine *retriever.Engine, provider llm.Provider, chapters []string) *Manager {
	return &Manager{
		store:      store,
		engine:     engine,
		provider:   provider,
		machine:    teaching.NewMachine(chapters),
		classifier: &teaching.Classifier{Chapters: chapters},
		tracker:    student.NewTracker(),
		asm:        assembler.New(),
		locks:      map[string]*sync.Mutex{},
	}
}

// HandleTurn processes one student message end to end. State mutations are
// applied to a clone and committed atomically only after the full turn
// succeeds; a cancelled or failed turn leaves the stored state untouched.
func (m *Manager) HandleTurn(ctx context.Context, sessionID, studentID, message string) (TurnResult, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if studentID == "" {
		studentID = sessionID
	}
	// State is keyed by student, so serialization must be too: two sessions
	// naming the same student take the same lock and cannot race the
	// clone-and-commit.
	lock := m.studentLock(studentID)
	lock.Lock()
	defer lock.Unlock()

	prev, err := m.store.Load(ctx, studentID)
	if err != nil {
		return TurnResult{}, err
	}
	if prev == nil {
		prev = student.NewState(studentID)
	}
	work := prev.Clone()

	now := time.Now().UnixMilli()
	latencyMs := 0
	if work.LastTurnUnixMs > 0 {
		latencyMs = int(now - work.LastTurnUnixMs)
	}

	phase := teaching.Phase(work.Phase)
	cls := m.classifier.Classify(message, phase, work)

	// Graded outcomes are recorded before routing so every transition reads
	// explicit state fields, never hidden grading context.
	if cls.AnswerCorrect != nil {
		m.tracker.RecordOutcome(work, *cls.AnswerCorrect, latencyMs, cls.Topic)
		work.PendingQuestion = nil
	}

	next, actions, terr := m.machine.Next(phase, work, cls, true)
	if terr != nil {
		logger.Error(terr, "%v: invalid transition from %q, staying put", config.ModuleSession, phase)
	}
	// Evaluation and grading phases route onward in the same turn so the
	// student never receives a dead intermediate response.
	for next.AutoAdvances() {
		var more []teaching.Action
		next, more, _ = m.machine.Next(next, work, cls, true)
		actions = append(actions, more...)
	}

	results, actions := m.retrieveIfNeeded(ctx, work, cls, message, actions)

	window, werr := m.store.Window(ctx, studentID, m.asm.WindowTurns-1)
	if werr != nil {
		logger.Error(werr, "%v: loading conversation window failed, proceeding without", config.ModuleSession)
		window = nil
	}
	window = append(window, assembler.Turn{Role: "student", Content: message})

	in := assembler.Input{Phase: next, Actions: actions, State: work, Results: results, Window: window}
	text, err := m.asm.Complete(ctx, m.provider, m.searchFunc(), in)
	if err != nil {
		// Cancelled mid-flight: abandon without committing.
		return TurnResult{}, err
	}

	meta, visible := assembler.ParseTurnMeta(text)
	if meta.PendingQuestion != nil {
		work.PendingQuestion = meta.PendingQuestion
	}
	if len(meta.Quiz) > 0 {
		work.ActiveQuiz = meta.Quiz
	}
	work.LastTurnUnixMs = now

	// Atomic commit: persist the clone, then mirror the conversation.
	if err := m.store.Save(ctx, studentID, work); err != nil {
		return TurnResult{}, err
	}
	if err := m.store.AppendTurns(ctx, studentID, []assembler.Turn{
		{Role: "student", Content: message},
		{Role: "tutor", Content: visible},
	}, next); err != nil {
		logger.Error(err, "%v: persisting conversation failed", config.ModuleSession)
	}

	return TurnResult{
		SessionID: sessionID,
		Response:  visible,
		Phase:     next,
		Summary:   summarize(work),
	}, nil
}

// retrieveIfNeeded runs the pre-assembly retrieval when the turn's actions
// require grounding. Retrieval failure degrades the turn instead of failing
// it: the citation requirement is replaced by a no-grounding marker.
func (m *Manager) retrieveIfNeeded(ctx context.Context, work *student.State, cls teaching.MessageClass, message string, actions []teaching.Action) ([]retriever.Result, []teaching.Action) {
	if !teaching.HasAction(actions, teaching.ActionCiteContent) {
		return nil, actions
	}
	query := cls.Topic
	if query == "" {
		query = teaching.ExtractQuery(message)
	}
	res, err := m.engine.Search(ctx, query, scopeForState(work), m.asm.TopKDefault)
	if err == nil {
		return []retriever.Result{res}, actions
	}
	if errors.Is(err, retriever.ErrEmptyQuery) {
		// Nothing to search for; teach without passages but without alarming
		// the student either.
		return nil, lo.Filter(actions, func(a teaching.Action, _ int) bool {
			return a.Kind != teaching.ActionCiteContent
		})
	}
	logger.Error(err, "%v: retrieval unavailable, degrading turn", config.ModuleSession)
	actions = lo.Filter(actions, func(a teaching.Action, _ int) bool {
		return a.Kind != teaching.ActionCiteContent
	})
	return nil, append(actions, teaching.Action{Kind: teaching.ActionNoGrounding})
}

// searchFunc exposes the engine to the assembler's tool loop.
func (m *Manager) searchFunc() assembler.SearchFunc {
	return func(ctx context.Context, query string, scope retriever.Scope, topK int) (retriever.Result, error) {
		return m.engine.Search(ctx, query, scope, topK)
	}
}

func scopeForState(st *student.State) retriever.Scope {
	switch {
	case st.CurrentChapter != "" && st.CurrentLesson != "":
		return retriever.Scope{Level: retriever.ScopeLesson, ChapterID: st.CurrentChapter, LessonID: st.CurrentLesson}
	case st.CurrentChapter != "":
		return retriever.Scope{Level: retriever.ScopeChapter, ChapterID: st.CurrentChapter}
	default:
		return retriever.BookScope()
	}
}

func summarize(st *student.State) StateSummary {
	return StateSummary{
		Performance:       st.Performance,
		Language:          st.Language,
		WrongStreak:       st.WrongStreak,
		CurrentChapter:    st.CurrentChapter,
		CompletedChapters: append([]string(nil), st.CompletedChapters...),
		DifficultyTopics:  st.DifficultyTopics(config.Cfg.Tutor.TopicWrongThreshold),
		LastQuizScore:     st.LastQuizScore,
	}
}

// studentLock returns the per-student mutex, creating it on first use. The map
// grows with the number of distinct students seen by this process; a mutex is
// small enough that eviction is not worth the complexity yet.
func (m *Manager) studentLock(studentID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[studentID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[studentID] = l
	}
	return l
}
