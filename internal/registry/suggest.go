package registry

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Suggest returns up to three registered identifiers close to id, best first.
func (r *Registry) Suggest(id string) []string {
	type candidate struct {
		id   string
		dist int
	}
	limit := len(id)/3 + 1
	if limit < 2 {
		limit = 2
	}

	var found []candidate
	for _, known := range r.ids {
		d := levenshtein.Distance(id, known, nil)
		if d <= limit || (strings.Contains(id, ".") && strings.HasSuffix(known, id[strings.LastIndex(id, "."):])) {
			found = append(found, candidate{id: known, dist: d})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].dist != found[j].dist {
			return found[i].dist < found[j].dist
		}
		return found[i].id < found[j].id
	})

	out := make([]string, 0, 3)
	for i := 0; i < len(found) && i < 3; i++ {
		out = append(out, found[i].id)
	}
	return out
}
