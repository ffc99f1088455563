package retriever

import (
	"context"
	"sort"
	"strings"
	"time"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/core/content"
	"ai-book-tutor/pkg/logger"
)

// Embedder converts text into the vector space the index was built with.
// Implementations must return a consistent dimensionality across ingestion
// and query time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index performs nearest-neighbour search over embedded chunks.
type Index interface {
	Search(ctx context.Context, vector []float32, topK int, filters Filters) ([]Hit, error)
}

// Engine is the retrieval engine: scope resolution, embedding, similarity
// search and low-confidence flagging. It is a pure read over an immutable
// store and keeps no per-call state.
type Engine struct {
	Embedder     Embedder
	Index        Index
	Store        *content.Store
	TopKMax      int
	MinRelevance float32
	EmbedTimeout time.Duration
	RetryBackoff time.Duration
}

// NewEngine wires an engine from the loaded configuration.
func NewEngine(embedder Embedder, index Index, store *content.Store) *Engine {
	return &Engine{
		Embedder:     embedder,
		Index:        index,
		Store:        store,
		TopKMax:      config.Cfg.Retriever.TopKMax,
		MinRelevance: config.Cfg.Retriever.MinRelevance,
		EmbedTimeout: time.Duration(config.Cfg.Retriever.EmbedTimeoutMs) * time.Millisecond,
		RetryBackoff: 150 * time.Millisecond,
	}
}

// Search embeds the query and returns the topK most similar chunks inside the
// scope. An empty lesson or chapter scope falls back to book scope with the
// fallback flag set. Transient embedding failures are retried once, then
// surfaced as ErrRetrievalUnavailable.
func (e *Engine) Search(ctx context.Context, query string, scope Scope, topK int) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = 1
	}
	if topK > e.TopKMax {
		topK = e.TopKMax
	}

	scopeUsed, fallback := e.resolveScope(scope)
	if fallback {
		logger.WithFields(map[string]interface{}{
			"requested_level": scope.Level,
			"chapter":         scope.ChapterID,
			"lesson":          scope.LessonID,
		}).Warnf("%v: empty scope, falling back to book", config.ModuleRetriever)
	}

	start := time.Now()
	vec, err := e.embedWithRetry(ctx, query)
	if err != nil {
		return Result{}, err
	}

	hits, err := e.searchWithRetry(ctx, vec, topK, scopeFilters(scopeUsed))
	if err != nil {
		return Result{}, err
	}

	// Descending score; stable sort keeps insertion order on ties.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}

	res := Result{
		Hits:      hits,
		ScopeUsed: scopeUsed,
		Fallback:  fallback,
		Latency:   time.Since(start),
	}
	if len(hits) == 0 || hits[0].Score < e.MinRelevance {
		res.LowConfidence = true
	}
	return res, nil
}

// resolveScope validates the scope against the store and widens it when the
// requested subset has no chunks.
func (e *Engine) resolveScope(scope Scope) (Scope, bool) {
	switch scope.Level {
	case ScopeLesson:
		if e.Store.HasLesson(scope.ChapterID, scope.LessonID) {
			return scope, false
		}
		if e.Store.HasChapter(scope.ChapterID) {
			return Scope{Level: ScopeChapter, ChapterID: scope.ChapterID}, true
		}
		return BookScope(), true
	case ScopeChapter:
		if e.Store.HasChapter(scope.ChapterID) {
			return scope, false
		}
		return BookScope(), true
	default:
		return BookScope(), scope.Level != ScopeBook
	}
}

func scopeFilters(scope Scope) Filters {
	switch scope.Level {
	case ScopeLesson:
		return Filters{ChapterID: scope.ChapterID, LessonID: scope.LessonID}
	case ScopeChapter:
		return Filters{ChapterID: scope.ChapterID}
	default:
		return Filters{}
	}
}

func (e *Engine) embedWithRetry(ctx context.Context, query string) ([]float32, error) {
	vec, err := e.embedOnce(ctx, query)
	if err == nil {
		return vec, nil
	}
	logger.Error(err, "%v: embed failed, retrying once", config.ModuleRetriever)

	select {
	case <-ctx.Done():
		return nil, ErrRetrievalUnavailable
	case <-time.After(e.RetryBackoff):
	}
	vec, err = e.embedOnce(ctx, query)
	if err != nil {
		logger.Error(err, "%v: embed retry failed", config.ModuleRetriever)
		return nil, ErrRetrievalUnavailable
	}
	return vec, nil
}

// embedOnce bounds a single embedding call; a hung backend costs at most the
// configured timeout per attempt.
func (e *Engine) embedOnce(ctx context.Context, query string) ([]float32, error) {
	if e.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.EmbedTimeout)
		defer cancel()
	}
	return e.Embedder.Embed(ctx, query)
}

func (e *Engine) searchWithRetry(ctx context.Context, vec []float32, topK int, f Filters) ([]Hit, error) {
	hits, err := e.Index.Search(ctx, vec, topK, f)
	if err == nil {
		return hits, nil
	}
	logger.Error(err, "%v: index search failed, retrying once", config.ModuleRetriever)

	select {
	case <-ctx.Done():
		return nil, ErrRetrievalUnavailable
	case <-time.After(e.RetryBackoff):
	}
	hits, err = e.Index.Search(ctx, vec, topK, f)
	if err != nil {
		logger.Error(err, "%v: index retry failed", config.ModuleRetriever)
		return nil, ErrRetrievalUnavailable
	}
	return hits, nil
}
