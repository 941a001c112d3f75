package diagnosing

import (
	"errors"
	"iter"
	"sort"
	"time"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

// Day é um dia da série; Snapshot nil indica dia ausente
type Day struct {
	Date     time.Time
	Snapshot *domain.Snapshot
}

func (d Day) Present() bool {
	return d.Snapshot != nil
}

// Series é a visão ordenada e somente leitura dos snapshots de uma entidade
type Series struct {
	EntityID  string
	AccountID string
	Days      []Day
}

// Aggregate monta uma série por entidade cobrindo todo o intervalo, com dias
// ausentes explícitos. Entidades com snapshot duplicado ficam de fora e são
// reportadas no erro retornado, sem impedir as demais.
func Aggregate(snapshots []domain.Snapshot, dateRange domain.DateRange) (map[string]*Series, error) {
	days := dateRange.Days()
	series := make(map[string]*Series)
	var duplicates []error
	dropped := make(map[string]bool)

	for i := range snapshots {
		snap := snapshots[i]
		snap.Date = domain.NormalizeDate(snap.Date)
		if !dateRange.Contains(snap.Date) || dropped[snap.EntityID] {
			continue
		}

		s, ok := series[snap.EntityID]
		if !ok {
			s = newSeries(snap.EntityID, snap.AccountID, dateRange.Start, days)
			series[snap.EntityID] = s
		}

		idx := int(snap.Date.Sub(dateRange.Start).Hours() / 24)
		if s.Days[idx].Present() {
			duplicates = append(duplicates, &DuplicateSnapshotError{EntityID: snap.EntityID, Date: snap.Date})
			dropped[snap.EntityID] = true
			delete(series, snap.EntityID)
			continue
		}
		s.Days[idx].Snapshot = &snap
		if s.AccountID == "" {
			s.AccountID = snap.AccountID
		}
	}

	return series, errors.Join(duplicates...)
}

func newSeries(entityID, accountID string, start time.Time, days int) *Series {
	s := &Series{
		EntityID:  entityID,
		AccountID: accountID,
		Days:      make([]Day, days),
	}
	for i := range s.Days {
		s.Days[i].Date = start.AddDate(0, 0, i)
	}
	return s
}

// duplicateErrors extrai os DuplicateSnapshotError de um erro agregado
func duplicateErrors(err error) []*DuplicateSnapshotError {
	if err == nil {
		return nil
	}
	var out []*DuplicateSnapshotError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, duplicateErrors(e)...)
		}
		return out
	}
	var dup *DuplicateSnapshotError
	if errors.As(err, &dup) {
		out = append(out, dup)
	}
	return out
}

// Window é uma fatia contígua de dias de uma série
type Window struct {
	EntityID     string
	Days         []Day
	Insufficient bool
}

func (w Window) Start() time.Time {
	return w.Days[0].Date
}

func (w Window) End() time.Time {
	return w.Days[len(w.Days)-1].Date
}

// Halves divide a janela em metade inicial e final de mesmo tamanho;
// em janelas ímpares o dia central não entra em nenhuma das duas.
func (w Window) Halves() (leading, trailing []Day) {
	half := len(w.Days) / 2
	return w.Days[:half], w.Days[len(w.Days)-half:]
}

// Windows produz, sob demanda, as janelas de tamanho size que terminam em
// cada dia presente. Janelas com fração de dias ausentes acima de
// maxAbsentFraction são marcadas como insuficientes.
func (s *Series) Windows(size int, maxAbsentFraction float64) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		if size <= 0 {
			return
		}
		for end := size - 1; end < len(s.Days); end++ {
			if !s.Days[end].Present() {
				continue
			}
			days := s.Days[end-size+1 : end+1 : end+1]
			absent := 0
			for _, d := range days {
				if !d.Present() {
					absent++
				}
			}
			w := Window{
				EntityID:     s.EntityID,
				Days:         days,
				Insufficient: float64(absent)/float64(size) > maxAbsentFraction,
			}
			if !yield(w) {
				return
			}
		}
	}
}

// sortedSeries retorna as séries ordenadas por entity_id
func sortedSeries(series map[string]*Series) []*Series {
	out := make([]*Series, 0, len(series))
	for _, s := range series {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EntityID < out[j].EntityID
	})
	return out
}
