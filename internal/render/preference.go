package render

import (
	"fmt"
	"strings"

	"github.com/dotcommander/storyteller/internal/domain"
)

// Preferences renders one bullet per preference type, values comma separated.
// The output parses back with parser.ParsePreferences.
func Preferences(prefs []domain.Preference) string {
	lines := []string{""}
	for _, g := range domain.GroupPreferences(prefs) {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", g.Type, strings.Join(g.Values, ", ")))
	}
	lines = append(lines, "\n")
	return strings.Join(lines, "\n")
}
