package diagnosing

import (
	"time"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

// Dia 1 da série de teste: 1º de março de 2024
var baseDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return baseDate.AddDate(0, 0, n-1)
}

func ptr(v float64) *float64 {
	return &v
}

func dateRange(first, last int) domain.DateRange {
	return domain.DateRange{Start: day(first), End: day(last)}
}

type snapOpt func(*domain.Snapshot)

func withSpend(v float64) snapOpt {
	return func(s *domain.Snapshot) { s.Spend = v }
}

func withReach(v int64) snapOpt {
	return func(s *domain.Snapshot) { s.Reach = v }
}

func withImpressions(v int64) snapOpt {
	return func(s *domain.Snapshot) { s.Impressions = v }
}

func withCTR(v float64) snapOpt {
	return func(s *domain.Snapshot) { s.CTR = v }
}

func withConversions(v float64) snapOpt {
	return func(s *domain.Snapshot) { s.Conversions = v }
}

func withCPM(v float64) snapOpt {
	return func(s *domain.Snapshot) { s.CPM = ptr(v) }
}

func withMatchRate(v float64) snapOpt {
	return func(s *domain.Snapshot) { s.PixelMatchRate = ptr(v) }
}

func withAttribution(standard, incremental float64) snapOpt {
	return func(s *domain.Snapshot) {
		s.AttributedConversionsStandard = ptr(standard)
		s.AttributedConversionsIncremental = ptr(incremental)
	}
}

func withAccount(id string) snapOpt {
	return func(s *domain.Snapshot) { s.AccountID = id }
}

// newSnapshot cria um snapshot estável: frequência 2, CTR 1 e investimento 100
func newSnapshot(entityID string, n int, opts ...snapOpt) domain.Snapshot {
	s := domain.Snapshot{
		EntityID:    entityID,
		AccountID:   "ACC001",
		Date:        day(n),
		Spend:       100,
		Impressions: 10000,
		Reach:       5000,
		CTR:         1,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// splitSeries gera os dias first..last aplicando lead até split e trail depois
func splitSeries(entityID string, first, split, last int, lead, trail []snapOpt) []domain.Snapshot {
	var out []domain.Snapshot
	for n := first; n <= last; n++ {
		opts := lead
		if n > split {
			opts = trail
		}
		out = append(out, newSnapshot(entityID, n, opts...))
	}
	return out
}

// windowOf monta a janela única cobrindo todos os dias informados
func windowOf(snapshots []domain.Snapshot, r domain.DateRange) Window {
	series, _ := Aggregate(snapshots, r)
	s := series[snapshots[0].EntityID]
	return Window{EntityID: s.EntityID, Days: s.Days}
}

// fatigueSnapshots reproduz o cenário clássico: frequência 2.0 -> 3.0 e CTR 1.5 -> 1.2
func fatigueSnapshots(entityID string) []domain.Snapshot {
	return splitSeries(entityID, 1, 7, 14,
		[]snapOpt{withImpressions(10000), withReach(5000), withCTR(1.5), withCPM(10)},
		[]snapOpt{withImpressions(15000), withReach(5000), withCTR(1.2), withCPM(10)},
	)
}

// accountDay gera um dia da conta com C1 recebendo top e C2..C5 recebendo other
func accountDay(n int, top, other float64) []domain.Snapshot {
	out := []domain.Snapshot{newSnapshot("C1", n, withSpend(top))}
	for _, id := range []string{"C2", "C3", "C4", "C5"} {
		out = append(out, newSnapshot(id, n, withSpend(other)))
	}
	return out
}
