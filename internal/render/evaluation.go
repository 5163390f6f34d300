package render

import (
	"fmt"
	"strings"

	"github.com/dotcommander/storyteller/internal/domain"
)

// Evaluation renders a critic's verdict for inclusion in reports.
func Evaluation(e domain.Evaluation) string {
	var sb strings.Builder

	criteria := domain.Criteria{}
	if e.Criteria != nil {
		criteria = *e.Criteria
	}

	fmt.Fprintf(&sb, "**Criterio**: %s\n\n", criteria.Type)
	fmt.Fprintf(&sb, "- Descripción de criterio: %s\n", criteria.Description)
	fmt.Fprintf(&sb, "- Etiqueta: %s\n", e.Label)
	if e.Changes != "" {
		fmt.Fprintf(&sb, "- Cambios recomendados: %s\n", e.Changes)
	}
	if e.Reasoning != "" {
		fmt.Fprintf(&sb, "- Razonamiento: %s\n", e.Reasoning)
	}

	return sb.String()
}

// Criteria renders a criterion on one line, optionally followed by its indicators.
func Criteria(c domain.Criteria, indicators bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "**Criteria**: %s -> %s (importance: %s)\n", c.Type, c.Description, importance(c.Importance))
	if indicators {
		for _, ind := range c.Indicators {
			fmt.Fprintf(&sb, "   - %s\n", ind)
		}
	}

	return sb.String()
}

// CriteriaList concatenates Criteria for every entry.
func CriteriaList(list []domain.Criteria, indicators bool) string {
	var sb strings.Builder
	for _, c := range list {
		sb.WriteString(Criteria(c, indicators))
	}
	return sb.String()
}

// Indicators renders indicators as a markdown list, one per line.
func Indicators(c domain.Criteria) string {
	var sb strings.Builder
	for _, ind := range c.Indicators {
		fmt.Fprintf(&sb, "- %s\n", ind)
	}
	return sb.String()
}

func importance(i domain.Importance) string {
	if i == domain.ImportanceUnset {
		return "unset"
	}
	return string(i)
}
