package domain

// Preference is one reader preference value within a category.
type Preference struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// PreferenceGroup holds every value of one preference type.
type PreferenceGroup struct {
	Type   string
	Values []string
}

// GroupPreferences groups values by type, keeping first-seen type order.
func GroupPreferences(prefs []Preference) []PreferenceGroup {
	index := make(map[string]int, len(prefs))
	var groups []PreferenceGroup

	for _, p := range prefs {
		i, ok := index[p.Type]
		if !ok {
			i = len(groups)
			index[p.Type] = i
			groups = append(groups, PreferenceGroup{Type: p.Type})
		}
		groups[i].Values = append(groups[i].Values, p.Value)
	}
	return groups
}
