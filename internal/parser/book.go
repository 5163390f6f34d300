package parser

import (
	"regexp"
	"strings"

	"github.com/dotcommander/storyteller/internal/core"
	"github.com/dotcommander/storyteller/internal/domain"
)

const (
	bookParser     = "book"
	questionPrefix = "pregunta"
	imagePrefix    = "!["
	imageSplit     = "]:("
)

var imageLine = regexp.MustCompile(`^!\[.*\]:\([^)]+\)$`)

// ParseBook converts markdown produced by a model (or a story file) into a Book.
//
// Grammar, one element per line:
//
//	book   := header? page+
//	header := ("#" title)? image?
//	page   := "---" (image | text)*
//
// Text lines starting with "Pregunta:" (any case, optionally emphasised)
// become question contents. Malformed image lines become a placeholder image.
func ParseBook(text string) (*domain.Book, error) {
	book := domain.NewBook("")
	var page *domain.Page
	seenTitle := false

	for i, raw := range splitLines(text) {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if isSeparator(line) {
			if page != nil {
				book.Pages = append(book.Pages, *page)
			}
			page = &domain.Page{}
			continue
		}

		if page == nil {
			if err := parseHeaderLine(book, line, lineNo, &seenTitle); err != nil {
				return nil, err
			}
			continue
		}

		if strings.HasPrefix(line, imagePrefix) {
			page.Images = append(page.Images, parseImage(line))
			continue
		}
		page.Contents = append(page.Contents, parseContent(line))
	}

	if page == nil {
		return nil, core.NewParseError(bookParser, 0, "no page separator %q found", "---")
	}
	book.Pages = append(book.Pages, *page)

	return book, nil
}

func parseHeaderLine(book *domain.Book, line string, lineNo int, seenTitle *bool) error {
	switch {
	case strings.HasPrefix(line, "#") && !*seenTitle && book.Cover == nil:
		title := strings.TrimSpace(strings.TrimLeft(line, "#"))
		if title == "" {
			return core.NewParseError(bookParser, lineNo, "empty title header")
		}
		book.Title = title
		*seenTitle = true
	case strings.HasPrefix(line, imagePrefix) && book.Cover == nil:
		cover := parseImage(line)
		book.Cover = &cover
	default:
		return core.NewParseError(bookParser, lineNo, "unexpected text before first page separator: %q", truncate(line, 40))
	}
	return nil
}

func parseImage(line string) domain.Image {
	if !imageLine.MatchString(line) {
		return domain.InvalidImage()
	}

	parts := strings.Split(line, imageSplit)
	if len(parts) != 2 {
		return domain.InvalidImage()
	}

	caption := strings.TrimSpace(strings.TrimPrefix(parts[0], imagePrefix))
	url := strings.TrimSpace(strings.TrimSuffix(parts[1], ")"))
	return domain.Image{Data: url, Caption: caption}
}

func parseContent(line string) domain.Content {
	if text, ok := stripQuestionPrefix(line); ok {
		return domain.Content{Type: domain.ContentQuestion, Text: text}
	}
	return domain.Content{Type: domain.ContentNarrative, Text: line}
}

// stripQuestionPrefix accepts "Pregunta:", "**Pregunta:**" and "**Pregunta**:".
func stripQuestionPrefix(line string) (string, bool) {
	s := strings.TrimPrefix(line, "**")
	if len(s) < len(questionPrefix) || !strings.EqualFold(s[:len(questionPrefix)], questionPrefix) {
		return "", false
	}

	s = strings.TrimPrefix(s[len(questionPrefix):], "**")
	if !strings.HasPrefix(s, ":") {
		return "", false
	}
	s = strings.TrimPrefix(s[1:], "**")
	return strings.TrimSpace(s), true
}

func isSeparator(line string) bool {
	return len(line) >= 3 && strings.Trim(line, "-") == ""
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
