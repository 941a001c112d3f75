package diagnosing

import (
	"sort"
	"time"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

// Evidence é o Finding junto das linhas de snapshot que o sustentam.
// Só pode ser construída por Assemble e não expõe seu estado interno.
type Evidence struct {
	finding   domain.Finding
	snapshots []domain.Snapshot
}

// Assemble valida cada citação do Finding contra as séries fornecidas e
// empacota as linhas citadas. Qualquer citação sem correspondência exata
// resulta em UngroundedFindingError.
func Assemble(finding domain.Finding, series ...*Series) (Evidence, error) {
	ungrounded := func(c *domain.Citation, details string) (Evidence, error) {
		return Evidence{}, &UngroundedFindingError{
			Category: finding.Category,
			EntityID: finding.EntityID,
			Citation: c,
			Details:  details,
		}
	}

	if finding.Severity.Rank() == 0 {
		return ungrounded(nil, "severidade sem diagnóstico")
	}
	if len(finding.TriggerValues) == 0 {
		return ungrounded(nil, "nenhuma citação")
	}
	if finding.WindowEnd.Before(finding.WindowStart) {
		return ungrounded(nil, "janela invertida")
	}

	byEntity := make(map[string]*Series, len(series))
	for _, s := range series {
		if s != nil {
			byEntity[s.EntityID] = s
		}
	}

	citations := make([]domain.Citation, len(finding.TriggerValues))
	copy(citations, finding.TriggerValues)
	sortCitations(citations)

	cited := make(map[string]domain.Snapshot)
	for i := range citations {
		c := citations[i]
		date := domain.NormalizeDate(c.Date)
		if date.Before(finding.WindowStart) || date.After(finding.WindowEnd) {
			return ungrounded(&c, "data fora da janela")
		}

		s, ok := byEntity[c.EntityID]
		if !ok {
			return ungrounded(&c, "entidade não fornecida")
		}
		snap := lookupDay(s, date)
		if snap == nil {
			return ungrounded(&c, "dia ausente na série")
		}
		value, ok := snap.Value(c.Field)
		if !ok {
			return ungrounded(&c, "campo indefinido no snapshot")
		}
		if value != c.Value {
			return ungrounded(&c, "valor divergente do snapshot")
		}
		cited[snap.Key()] = cloneSnapshot(*snap)
	}

	snapshots := make([]domain.Snapshot, 0, len(cited))
	for _, snap := range cited {
		snapshots = append(snapshots, snap)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].Date.Equal(snapshots[j].Date) {
			return snapshots[i].Date.Before(snapshots[j].Date)
		}
		return snapshots[i].EntityID < snapshots[j].EntityID
	})

	f := finding
	f.TriggerValues = citations
	return Evidence{finding: f, snapshots: snapshots}, nil
}

func lookupDay(s *Series, date time.Time) *domain.Snapshot {
	if len(s.Days) == 0 {
		return nil
	}
	idx := int(date.Sub(s.Days[0].Date).Hours() / 24)
	if idx < 0 || idx >= len(s.Days) {
		return nil
	}
	return s.Days[idx].Snapshot
}

func (e Evidence) Finding() domain.Finding {
	f := e.finding
	f.TriggerValues = make([]domain.Citation, len(e.finding.TriggerValues))
	copy(f.TriggerValues, e.finding.TriggerValues)
	return f
}

func (e Evidence) Snapshots() []domain.Snapshot {
	out := make([]domain.Snapshot, len(e.snapshots))
	for i, s := range e.snapshots {
		out[i] = cloneSnapshot(s)
	}
	return out
}

func (e Evidence) Category() domain.Category { return e.finding.Category }
func (e Evidence) EntityID() string          { return e.finding.EntityID }
func (e Evidence) Severity() domain.Severity { return e.finding.Severity }
func (e Evidence) WindowStart() time.Time    { return e.finding.WindowStart }
func (e Evidence) WindowEnd() time.Time      { return e.finding.WindowEnd }

// Record converte a evidência no contrato serializável
func (e Evidence) Record() domain.EvidenceRecord {
	f := e.Finding()
	return domain.EvidenceRecord{
		Category:    f.Category,
		EntityID:    f.EntityID,
		WindowStart: f.WindowStart,
		WindowEnd:   f.WindowEnd,
		Severity:    f.Severity,
		Direction:   f.Direction,
		Magnitude:   f.Magnitude,
		Citations:   f.TriggerValues,
		Snapshots:   e.Snapshots(),
	}
}

func sortCitations(citations []domain.Citation) {
	sort.SliceStable(citations, func(i, j int) bool {
		a, b := citations[i], citations[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.Field < b.Field
	})
}

func cloneSnapshot(s domain.Snapshot) domain.Snapshot {
	out := s
	out.CPM = clonePtr(s.CPM)
	out.AttributedConversionsStandard = clonePtr(s.AttributedConversionsStandard)
	out.AttributedConversionsIncremental = clonePtr(s.AttributedConversionsIncremental)
	out.PixelMatchRate = clonePtr(s.PixelMatchRate)
	return out
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
