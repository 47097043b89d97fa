package patient

import (
	"sort"
	"strings"
)

// Query filters and orders a patient list the way the roster screen does.
type Query struct {
	// Search matches name and status case-insensitively and CPF verbatim.
	Search string
	Status Status
	// SortKey is one of name, cpf, dateOfBirth, gender, status. Defaults to name.
	SortKey string
	Desc    bool
}

var sortKeys = map[string]func(p *Patient) string{
	"name":        func(p *Patient) string { return strings.ToLower(p.Name) },
	"cpf":         func(p *Patient) string { return p.CPF },
	"dateOfBirth": func(p *Patient) string { return p.DateOfBirth },
	"gender":      func(p *Patient) string { return strings.ToLower(p.Gender) },
	"status":      func(p *Patient) string { return string(p.Status) },
}

// ValidSortKey reports whether key can be used in Query.SortKey.
func ValidSortKey(key string) bool {
	_, ok := sortKeys[key]
	return ok
}

func (q Query) matches(p *Patient) bool {
	if q.Status != "" && p.Status != q.Status {
		return false
	}
	if q.Search == "" {
		return true
	}
	needle := strings.ToLower(q.Search)
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(p.CPF, q.Search) ||
		strings.Contains(string(p.Status), needle)
}

// Apply returns the matching patients in the requested order. The input is
// not modified.
func (q Query) Apply(items []Patient) []Patient {
	out := make([]Patient, 0, len(items))
	for i := range items {
		if q.matches(&items[i]) {
			out = append(out, items[i])
		}
	}

	key, ok := sortKeys[q.SortKey]
	if !ok {
		key = sortKeys["name"]
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := key(&out[i]), key(&out[j])
		if a == b {
			return out[i].ID < out[j].ID
		}
		if q.Desc {
			return a > b
		}
		return a < b
	})
	return out
}
