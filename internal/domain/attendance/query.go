package attendance

import (
	"sort"
	"strings"
)

// Query filters and orders joined attendances for the visits screen.
type Query struct {
	// Search matches patient name, description and status case-insensitively.
	Search string
	Status Status
	// SortKey is one of dateTime, patient.name, description, status.
	// Defaults to dateTime.
	SortKey string
	// Order is "asc" or "desc". Empty means descending for dateTime and
	// ascending for everything else.
	Order string
}

var sortKeys = map[string]func(a *WithPatient) string{
	// the layout sorts lexically in chronological order
	"dateTime": func(a *WithPatient) string { return a.DateTime },
	"patient.name": func(a *WithPatient) string {
		if a.Patient == nil {
			return ""
		}
		return strings.ToLower(a.Patient.Name)
	},
	"description": func(a *WithPatient) string { return strings.ToLower(a.Description) },
	"status":      func(a *WithPatient) string { return strings.ToLower(string(a.Status)) },
}

func ValidSortKey(key string) bool {
	_, ok := sortKeys[key]
	return ok
}

func (q Query) matches(a *WithPatient) bool {
	if q.Status != "" && a.Status != q.Status {
		return false
	}
	if q.Search == "" {
		return true
	}
	needle := strings.ToLower(q.Search)
	if a.Patient != nil && strings.Contains(strings.ToLower(a.Patient.Name), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(a.Description), needle) ||
		strings.Contains(strings.ToLower(string(a.Status)), needle)
}

func (q Query) desc(key string) bool {
	switch q.Order {
	case "desc":
		return true
	case "asc":
		return false
	}
	return key == "dateTime"
}

// Apply returns the matching attendances in the requested order without
// modifying items.
func (q Query) Apply(items []WithPatient) []WithPatient {
	out := make([]WithPatient, 0, len(items))
	for i := range items {
		if q.matches(&items[i]) {
			out = append(out, items[i])
		}
	}

	name := q.SortKey
	if !ValidSortKey(name) {
		name = "dateTime"
	}
	key, desc := sortKeys[name], q.desc(name)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := key(&out[i]), key(&out[j])
		if a == b {
			return out[i].ID < out[j].ID
		}
		if desc {
			return a > b
		}
		return a < b
	})
	return out
}
