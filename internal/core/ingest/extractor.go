package ingest

import (
	s3client "ai-book-tutor/pkg/s3"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ledongthuc/pdf"
)

// Section is a structurally delimited span of source text. The heading path
// records every heading above the span, outermost first.
type Section struct {
	HeadingPath []string
	Body        string
}

// FetchToLocalTemp downloads a local or S3 source file to a temporary path and
// returns a cleanup function.
func FetchToLocalTemp(filePath string) (string, func(), error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		ext = ".md"
	}
	if strings.HasPrefix(filePath, "s3://") {
		u, err := url.Parse(filePath)
		if err != nil {
			return "", func() {}, err
		}
		bucket := u.Host
		key := strings.TrimPrefix(u.Path, "/")
		cli, err := s3client.GetClient()
		if err != nil {
			return "", func() {}, err
		}
		tmp, err := os.CreateTemp("", "ingest-*"+ext)
		if err != nil {
			return "", func() {}, err
		}
		out, err := cli.GetObject(context.Background(), &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", func() {}, err
		}
		defer out.Body.Close()
		if _, err := io.Copy(tmp, out.Body); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", func() {}, err
		}
		tmp.Close()
		return tmp.Name(), func() { _ = os.Remove(tmp.Name()) }, nil
	}

	abs := filePath
	if !filepath.IsAbs(abs) {
		// allow relative stored paths
		cwd, _ := os.Getwd()
		abs = filepath.Join(cwd, filePath)
	}
	// Copy to temp so re-ingestion never races a file being replaced in place
	src, err := os.Open(abs)
	if err != nil {
		return "", func() {}, err
	}
	defer src.Close()
	tmp, err := os.CreateTemp("", "ingest-*"+ext)
	if err != nil {
		return "", func() {}, err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", func() {}, err
	}
	tmp.Close()
	return tmp.Name(), func() { _ = os.Remove(tmp.Name()) }, nil
}

var (
	chapterRe = regexp.MustCompile(`(?i)chapter[_\- ]?0*(\d+)`)
	lessonRe  = regexp.MustCompile(`(?i)lesson[_\- ]?0*(\d+)`)
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
)

// ParseSourcePath derives chapter and lesson identifiers from the source file
// path, e.g. "book/chapter_02/lesson_03_loops.md" yields ("02", "03"). A path
// that names no chapter yields empty identifiers and the content is indexed at
// book scope only.
func ParseSourcePath(path string) (chapterID, lessonID string) {
	if m := chapterRe.FindStringSubmatch(path); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			chapterID = fmt.Sprintf("%02d", n)
		}
	}
	if m := lessonRe.FindStringSubmatch(path); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			lessonID = fmt.Sprintf("%02d", n)
		}
	}
	return chapterID, lessonID
}

// ExtractSections reads a fetched source file and splits it into sections.
// Markdown sources split on headings; PDF sources split per page.
func ExtractSections(localPath string) ([]Section, error) {
	if strings.EqualFold(filepath.Ext(localPath), ".pdf") {
		pages, err := ExtractPDFTextPages(localPath)
		if err != nil {
			return nil, err
		}
		sections := make([]Section, 0, len(pages))
		for i, page := range pages {
			page = sanitizeUTF8Printable(page)
			if page == "" {
				continue
			}
			sections = append(sections, Section{
				HeadingPath: []string{fmt.Sprintf("Page %d", i+1)},
				Body:        page,
			})
		}
		if len(sections) == 0 {
			return nil, fmt.Errorf("empty content")
		}
		return sections, nil
	}

	raw, err := os.ReadFile(localPath)
	if err != nil {
		return nil, err
	}
	sections := ExtractMarkdownSections(sanitizeUTF8Printable(string(raw)))
	if len(sections) == 0 {
		return nil, fmt.Errorf("empty content")
	}
	return sections, nil
}

// ExtractMarkdownSections splits markdown text on headings, tracking the
// heading stack so each section carries its full path. Fenced code blocks are
// opaque; a "# comment" inside one is not a heading.
func ExtractMarkdownSections(text string) []Section {
	var (
		sections []Section
		stack    []string // heading text per level, index = level-1
		body     strings.Builder
		inFence  bool
	)

	flush := func() {
		b := strings.TrimSpace(body.String())
		body.Reset()
		if b == "" {
			return
		}
		path := make([]string, len(stack))
		copy(path, stack)
		sections = append(sections, Section{HeadingPath: path, Body: b})
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			body.WriteString(line)
			body.WriteByte('\n')
			continue
		}
		if !inFence {
			if m := headingRe.FindStringSubmatch(line); m != nil {
				flush()
				level := len(m[1])
				if level <= len(stack) {
					stack = stack[:level-1]
				}
				for len(stack) < level-1 {
					stack = append(stack, "")
				}
				stack = append(stack, m[2])
				continue
			}
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()
	return sections
}

// ExtractPDFTextPages extracts plain text per page.
func ExtractPDFTextPages(localPath string) ([]string, error) {
	f, reader, err := pdf.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// sanitizeUTF8Printable removes BOM and non-printable runes, keeping common whitespace.
func sanitizeUTF8Printable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\uFEFF' { // BOM
			continue
		}
		if r == unicode.ReplacementChar { // U+FFFD
			continue
		}
		if r == '\n' || r == '\t' || r == '\r' {
			// keep
		} else if !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
