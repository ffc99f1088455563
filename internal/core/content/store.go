package content

import "sort"

// Store is a read-only snapshot of all curriculum chunks. It is built once at
// startup (or after an offline ingestion pass) and only read at serving time,
// so no locking is needed. Iteration order is insertion order, which gives the
// retrieval engine a stable tie-break.
type Store struct {
	chunks    []Chunk
	byChapter map[string][]int
	byLesson  map[string][]int
}

func lessonKey(chapterID, lessonID string) string {
	return chapterID + "/" + lessonID
}

// NewStore builds a snapshot from chunks in insertion order.
func NewStore(chunks []Chunk) *Store {
	s := &Store{
		chunks:    make([]Chunk, len(chunks)),
		byChapter: make(map[string][]int),
		byLesson:  make(map[string][]int),
	}
	copy(s.chunks, chunks)
	for i, ch := range s.chunks {
		s.byChapter[ch.ChapterID] = append(s.byChapter[ch.ChapterID], i)
		s.byLesson[lessonKey(ch.ChapterID, ch.LessonID)] = append(s.byLesson[lessonKey(ch.ChapterID, ch.LessonID)], i)
	}
	return s
}

// Len returns the total number of chunks.
func (s *Store) Len() int { return len(s.chunks) }

// All returns every chunk in insertion order.
func (s *Store) All() []Chunk { return s.chunks }

// Chapter returns the chunks of one chapter in insertion order.
func (s *Store) Chapter(chapterID string) []Chunk {
	return s.pick(s.byChapter[chapterID])
}

// Lesson returns the chunks of one lesson in insertion order.
func (s *Store) Lesson(chapterID, lessonID string) []Chunk {
	return s.pick(s.byLesson[lessonKey(chapterID, lessonID)])
}

// HasChapter reports whether the chapter has at least one chunk.
func (s *Store) HasChapter(chapterID string) bool {
	return len(s.byChapter[chapterID]) > 0
}

// Chapters returns the chapter ids in sorted order, which matches the book
// order under the zero-padded naming convention.
func (s *Store) Chapters() []string {
	ids := make([]string, 0, len(s.byChapter))
	for id := range s.byChapter {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasLesson reports whether the lesson has at least one chunk.
func (s *Store) HasLesson(chapterID, lessonID string) bool {
	return len(s.byLesson[lessonKey(chapterID, lessonID)]) > 0
}

func (s *Store) pick(idx []int) []Chunk {
	out := make([]Chunk, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.chunks[i])
	}
	return out
}
