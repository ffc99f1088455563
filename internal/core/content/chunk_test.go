package content

import "testing"

func TestChunkID_StableAcrossReingestion(t *testing.T) {
	a := ChunkID("book/04-python/01-intro.md", 3, "Generators produce values lazily.")
	b := ChunkID("book/04-python/01-intro.md", 3, "Generators produce values lazily.")
	if a != b {
		t.Fatalf("expected stable id, got %s vs %s", a, b)
	}
}

func TestChunkID_ChangesWithContent(t *testing.T) {
	a := ChunkID("book/04-python/01-intro.md", 3, "Generators produce values lazily.")
	b := ChunkID("book/04-python/01-intro.md", 3, "Generators produce values eagerly.")
	if a == b {
		t.Fatalf("expected different ids for different content")
	}
}

func TestChunkID_ChangesWithOrdinal(t *testing.T) {
	a := ChunkID("book/04-python/01-intro.md", 3, "same text")
	b := ChunkID("book/04-python/01-intro.md", 4, "same text")
	if a == b {
		t.Fatalf("expected different ids for different ordinals")
	}
}

func TestCitation(t *testing.T) {
	c := Chunk{ChapterID: "04-python", LessonID: "02-async", HeadingPath: []string{"Coroutines", "Awaitables"}}
	got := c.Citation()
	want := "Chapter 04-python › Lesson 02-async › Coroutines › Awaitables"
	if got != want {
		t.Fatalf("citation mismatch: %q", got)
	}
}

func TestStore_ScopedLookups(t *testing.T) {
	chunks := []Chunk{
		{ID: "a", ChapterID: "01", LessonID: "01"},
		{ID: "b", ChapterID: "01", LessonID: "02"},
		{ID: "c", ChapterID: "02", LessonID: "01"},
	}
	s := NewStore(chunks)

	if got := len(s.Chapter("01")); got != 2 {
		t.Fatalf("chapter 01 chunks = %d, want 2", got)
	}
	if got := len(s.Lesson("01", "02")); got != 1 {
		t.Fatalf("lesson 01/02 chunks = %d, want 1", got)
	}
	if s.HasChapter("03") {
		t.Fatalf("chapter 03 should be empty")
	}
	if !s.HasLesson("02", "01") {
		t.Fatalf("lesson 02/01 should exist")
	}
	// insertion order is preserved
	ch := s.Chapter("01")
	if ch[0].ID != "a" || ch[1].ID != "b" {
		t.Fatalf("chapter chunks out of order: %v", ch)
	}
}
