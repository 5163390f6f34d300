package parser

import (
	"regexp"
	"strings"

	"github.com/dotcommander/storyteller/internal/core"
	"github.com/dotcommander/storyteller/internal/domain"
)

const preferenceParser = "preference"

var preferenceLine = regexp.MustCompile(`^-\s*\*\*([^*]+)\*\*\s*:\s*(.*)$`)

// ParsePreferences reads bullet lines of the form
//
//	- **Animal**: Gato, Conejo
//
// producing one Preference per comma-separated value. Lines with an empty
// value list contribute nothing; input without any preference line is an error.
func ParsePreferences(text string) ([]domain.Preference, error) {
	var prefs []domain.Preference
	matched := false

	for _, raw := range splitLines(text) {
		m := preferenceLine.FindStringSubmatch(strings.TrimSpace(raw))
		if m == nil {
			continue
		}
		matched = true

		prefType := strings.TrimSpace(m[1])
		for _, v := range strings.Split(m[2], ",") {
			if v = strings.TrimSpace(v); v != "" {
				prefs = append(prefs, domain.Preference{Type: prefType, Value: v})
			}
		}
	}

	if !matched {
		return nil, core.NewParseError(preferenceParser, 0, "no preference lines of the form \"- **Type**: values\"")
	}
	return prefs, nil
}
