package parser

import (
	"regexp"
	"strings"

	"github.com/dotcommander/storyteller/internal/core"
	"github.com/dotcommander/storyteller/internal/domain"
)

const evaluationParser = "evaluation"

type section int

const (
	sectionNone section = iota
	sectionLabel
	sectionReasoning
	sectionChanges
)

// sectionHeaders maps header keywords (lower case) to the section they open.
var sectionHeaders = map[string]section{
	"calidad":              sectionLabel,
	"etiqueta":             sectionLabel,
	"etiqueta asignada":    sectionLabel,
	"razonamiento":         sectionReasoning,
	"cambios sugeridos":    sectionChanges,
	"cambios recomendados": sectionChanges,
}

// headerLine matches "Etiqueta:", "**Etiqueta**:", "**Etiqueta:**" and a
// leading list dash, capturing the keyword and the rest of the line.
var headerLine = regexp.MustCompile(`(?i)^(?:-\s*)?(?:\*\*)?\s*(calidad|etiqueta asignada|etiqueta|razonamiento|cambios sugeridos|cambios recomendados)\s*(?:\*\*)?\s*:\s*(?:\*\*)?\s*(.*)$`)

// ParseEvaluation extracts a label, reasoning and recommended changes from a
// critic's answer. Each header opens a section that collects every following
// line until the next header. The label is required.
func ParseEvaluation(text string) (domain.Evaluation, error) {
	sections := map[section][]string{}
	current := sectionNone
	labelLine := 0

	for i, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := headerLine.FindStringSubmatch(line); m != nil {
			current = sectionHeaders[strings.ToLower(m[1])]
			if current == sectionLabel && labelLine == 0 {
				labelLine = i + 1
			}
			if rest := strings.TrimSpace(m[2]); rest != "" {
				sections[current] = append(sections[current], rest)
			}
			continue
		}

		if current != sectionNone {
			sections[current] = append(sections[current], line)
		}
	}

	if labelLine == 0 {
		return domain.Evaluation{}, core.NewParseError(evaluationParser, 0, "missing label section (Calidad, Etiqueta or Etiqueta asignada)")
	}

	label := joinSection(sections[sectionLabel])
	if label == "" {
		return domain.Evaluation{}, core.NewParseError(evaluationParser, labelLine, "label section is empty")
	}

	return domain.Evaluation{
		Label:     label,
		Reasoning: joinSection(sections[sectionReasoning]),
		Changes:   joinSection(sections[sectionChanges]),
	}, nil
}

func joinSection(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
