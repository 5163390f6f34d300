package domain

import "strings"

// NoChangesToken is the sentinel a critic writes when nothing needs editing.
const NoChangesToken = "ninguno"

// Importance ranks how much a criterion weighs in a review.
type Importance string

const (
	ImportanceUnset         Importance = ""
	ImportanceLow           Importance = "low"
	ImportanceMedium        Importance = "medium"
	ImportanceHigh          Importance = "high"
	ImportanceVeryHigh      Importance = "very high"
	ImportanceExtremelyHigh Importance = "extremely high"
)

// Criteria is a named evaluation dimension.
type Criteria struct {
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Indicators  []string   `json:"indicators"`
	Importance  Importance `json:"importance,omitempty"`
}

// Evaluation is the structured verdict of a critic. Label is either a
// quality sentinel or, for pairwise comparisons, the UID of the winning book.
type Evaluation struct {
	Label     string    `json:"label"`
	Changes   string    `json:"changes,omitempty"`
	Reasoning string    `json:"reasoning,omitempty"`
	Criteria  *Criteria `json:"criteria,omitempty"`
}

// NoChangesRequested reports whether Changes carries the no-change sentinel.
func (e Evaluation) NoChangesRequested() bool {
	return strings.Contains(strings.ToLower(e.Changes), NoChangesToken)
}

// Clone returns a copy that does not share the criteria indicators.
func (e Evaluation) Clone() Evaluation {
	if e.Criteria != nil {
		c := *e.Criteria
		c.Indicators = append([]string(nil), e.Criteria.Indicators...)
		e.Criteria = &c
	}
	return e
}
