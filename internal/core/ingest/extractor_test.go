package ingest

import (
	"strings"
	"testing"
)

func TestParseSourcePath(t *testing.T) {
	cases := []struct {
		path    string
		chapter string
		lesson  string
	}{
		{"book/chapter_02/lesson_03_loops.md", "02", "03"},
		{"Chapter 4 - Lesson 1.pdf", "04", "01"},
		{"chapter-12.md", "12", ""},
		{"notes/appendix.md", "", ""},
	}
	for _, tc := range cases {
		ch, ls := ParseSourcePath(tc.path)
		if ch != tc.chapter || ls != tc.lesson {
			t.Errorf("ParseSourcePath(%q) = (%q, %q), want (%q, %q)", tc.path, ch, ls, tc.chapter, tc.lesson)
		}
	}
}

func TestExtractMarkdownSections_HeadingPaths(t *testing.T) {
	text := "# Recursion\n\nIntro text.\n\n## Base Cases\n\nEvery recursion needs one.\n\n## The Call Stack\n\nFrames pile up.\n"
	sections := ExtractMarkdownSections(text)
	if len(sections) != 3 {
		t.Fatalf("got %d sections, want 3", len(sections))
	}
	if got := strings.Join(sections[0].HeadingPath, "/"); got != "Recursion" {
		t.Errorf("first path = %q", got)
	}
	if got := strings.Join(sections[1].HeadingPath, "/"); got != "Recursion/Base Cases" {
		t.Errorf("second path = %q", got)
	}
	if got := strings.Join(sections[2].HeadingPath, "/"); got != "Recursion/The Call Stack" {
		t.Errorf("third path = %q", got)
	}
	if sections[1].Body != "Every recursion needs one." {
		t.Errorf("second body = %q", sections[1].Body)
	}
}

func TestExtractMarkdownSections_SkipLevel(t *testing.T) {
	text := "# Top\n\n### Deep\n\nbody\n"
	sections := ExtractMarkdownSections(text)
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	path := sections[0].HeadingPath
	if len(path) != 3 || path[0] != "Top" || path[1] != "" || path[2] != "Deep" {
		t.Errorf("path = %v", path)
	}
}

func TestExtractMarkdownSections_FencedCodeIsOpaque(t *testing.T) {
	text := "# Shell\n\nRun it:\n\n```bash\n# not a heading\necho hi\n```\n\nDone.\n"
	sections := ExtractMarkdownSections(text)
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1: fence comment treated as heading", len(sections))
	}
	if !strings.Contains(sections[0].Body, "# not a heading") {
		t.Errorf("fenced content lost: %q", sections[0].Body)
	}
}

func TestSanitizeUTF8Printable(t *testing.T) {
	in := "\uFEFFhello\uFFFD world\n"
	if got := sanitizeUTF8Printable(in); got != "hello world" {
		t.Errorf("got %q", got)
	}
}
