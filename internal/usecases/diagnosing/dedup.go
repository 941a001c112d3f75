package diagnosing

import (
	"sort"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

// deduplicate colapsa findings de mesma categoria, entidade e severidade cujas
// janelas se sobrepõem (ou se tocam) em um único finding com a janela mais
// ampla. Citações são unidas; magnitude e direção vêm do membro mais forte.
func deduplicate(findings []domain.Finding) []domain.Finding {
	type groupKey struct {
		category domain.Category
		entityID string
		severity domain.Severity
	}

	groups := make(map[groupKey][]domain.Finding)
	var order []groupKey
	for _, f := range findings {
		k := groupKey{f.Category, f.EntityID, f.Severity}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], f)
	}

	var out []domain.Finding
	for _, k := range order {
		group := groups[k]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].WindowStart.Before(group[j].WindowStart)
		})

		current := group[0]
		strongest := group[0]
		for _, f := range group[1:] {
			if current.Overlaps(f) {
				current = merge(current, f)
				if f.Magnitude > strongest.Magnitude {
					strongest = f
				}
				continue
			}
			out = append(out, withStrongest(current, strongest))
			current, strongest = f, f
		}
		out = append(out, withStrongest(current, strongest))
	}
	return out
}

func merge(a, b domain.Finding) domain.Finding {
	merged := a
	if b.WindowStart.Before(merged.WindowStart) {
		merged.WindowStart = b.WindowStart
	}
	if b.WindowEnd.After(merged.WindowEnd) {
		merged.WindowEnd = b.WindowEnd
	}
	merged.TriggerValues = unionCitations(a.TriggerValues, b.TriggerValues)
	return merged
}

func withStrongest(f, strongest domain.Finding) domain.Finding {
	f.Magnitude = strongest.Magnitude
	f.Direction = strongest.Direction
	return f
}

func unionCitations(a, b []domain.Citation) []domain.Citation {
	type citationKey struct {
		entityID string
		date     int64
		field    domain.Field
	}
	seen := make(map[citationKey]bool, len(a)+len(b))
	out := make([]domain.Citation, 0, len(a)+len(b))
	for _, list := range [][]domain.Citation{a, b} {
		for _, c := range list {
			k := citationKey{c.EntityID, c.Date.Unix(), c.Field}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, c)
		}
	}
	return out
}

// sortEvidence ordena por severidade desc, fim da janela desc e depois por
// categoria, entidade e início da janela para manter o resultado estável.
func sortEvidence(evidence []Evidence) {
	sort.SliceStable(evidence, func(i, j int) bool {
		a, b := evidence[i].finding, evidence[j].finding
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if !a.WindowEnd.Equal(b.WindowEnd) {
			return a.WindowEnd.After(b.WindowEnd)
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.WindowStart.Before(b.WindowStart)
	})
}
