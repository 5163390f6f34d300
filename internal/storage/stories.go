package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/parser"
	"github.com/dotcommander/storyteller/internal/render"
)

// LoadBook reads and parses a markdown story.
func LoadBook(ctx context.Context, s Storage, path string) (*domain.Book, error) {
	data, err := s.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	book, err := parser.ParseBook(string(data))
	if err != nil {
		return nil, fmt.Errorf("story %s: %w", path, err)
	}
	return book, nil
}

// LoadPreferences reads and parses a markdown preference list.
func LoadPreferences(ctx context.Context, s Storage, path string) ([]domain.Preference, error) {
	data, err := s.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	prefs, err := parser.ParsePreferences(string(data))
	if err != nil {
		return nil, fmt.Errorf("preferences %s: %w", path, err)
	}
	return prefs, nil
}

// SaveBook writes b in the same markdown dialect LoadBook reads.
func SaveBook(ctx context.Context, s Storage, path string, b *domain.Book) error {
	return s.Save(ctx, path, []byte(render.Book(b)))
}

// SaveReport writes the evaluations of a run next to its output.
func SaveReport(ctx context.Context, s Storage, path string, evals []domain.Evaluation) error {
	var sb strings.Builder
	sb.WriteString("# Evaluaciones\n")
	for _, e := range evals {
		sb.WriteString("\n---\n")
		sb.WriteString(render.Evaluation(e))
	}
	return s.Save(ctx, path, []byte(sb.String()))
}

// ReportPath derives the evaluations file name from the output path:
// "out/story.md" gives "out/story.evaluations.md".
func ReportPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".evaluations" + ext
}

// RunPath names a directory for one run: "runs/2025-07-16_1530_<title>_<id>".
func RunPath(title, runID string, now time.Time) string {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return filepath.Join("runs", fmt.Sprintf("%s_%s_%s", now.Format("2006-01-02_1504"), sanitizeForFilename(title, 30), runID))
}

var unsafeChars = strings.NewReplacer(
	" ", "-", "/", "-", "\\", "-", ":", "-", ".", "-",
	"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	",", "", "'", "", "!", "", "¡", "", "¿", "", "#", "",
	"(", "", ")", "", "[", "", "]", "", "{", "", "}", "",
	";", "", "=", "", "+", "", "&", "", "%", "", "$", "", "@", "",
)

// sanitizeForFilename turns s into a safe, lower-case file name component.
func sanitizeForFilename(s string, maxLen int) string {
	s = unsafeChars.Replace(strings.ToLower(s))
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if r := []rune(s); len(r) > maxLen {
		s = strings.TrimRight(string(r[:maxLen]), "-")
	}
	if s == "" {
		s = "story"
	}
	return s
}
