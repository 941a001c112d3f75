package diagnosing

import (
	"math"
	"sort"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

type concentrationDay struct {
	index int
	share float64
}

// detectConcentration procura sequências de dias em que as top-k entidades
// da conta concentram mais investimento que o permitido. Todas as séries
// irmãs cobrem o mesmo intervalo, então o índice do dia é compartilhado.
func detectConcentration(accountID string, siblings []*Series, t Thresholds) []domain.Finding {
	if len(siblings) < 2 {
		return nil
	}
	days := len(siblings[0].Days)

	var findings []domain.Finding
	var run []concentrationDay
	flush := func() {
		if len(run) >= t.concentrationMinDays() {
			findings = append(findings, concentrationFinding(accountID, siblings, run, t))
		}
		run = nil
	}

	for i := 0; i < days; i++ {
		share, ok := topKShare(siblings, i, t.ConcentrationTopEntityFraction)
		if !ok || share <= t.ConcentrationTopKShare {
			flush()
			continue
		}
		run = append(run, concentrationDay{index: i, share: share})
	}
	flush()

	return findings
}

// topKShare calcula a fatia do investimento do dia detida pelas k maiores
// entidades presentes. Exige ao menos duas entidades e investimento positivo.
func topKShare(siblings []*Series, index int, topFraction float64) (float64, bool) {
	var spends []float64
	total := 0.0
	for _, s := range siblings {
		if index >= len(s.Days) || !s.Days[index].Present() {
			continue
		}
		spend := s.Days[index].Snapshot.Spend
		spends = append(spends, spend)
		total += spend
	}
	if len(spends) < 2 || total <= 0 {
		return 0, false
	}

	k := int(math.Ceil(topFraction*float64(len(spends)) - 1e-9))
	if k < 1 {
		k = 1
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(spends)))

	top := 0.0
	for _, v := range spends[:k] {
		top += v
	}
	return top / total, true
}

func concentrationFinding(accountID string, siblings []*Series, run []concentrationDay, t Thresholds) domain.Finding {
	minShare := run[0].share
	for _, d := range run {
		minShare = math.Min(minShare, d.share)
	}

	severity := domain.SeverityModerate
	if minShare >= t.ConcentrationTopKShare+(1-t.ConcentrationTopKShare)/2 {
		severity = domain.SeveritySevere
	}

	var citations []domain.Citation
	for _, d := range run {
		for _, s := range siblings {
			citations = append(citations, cite(s.Days[d.index:d.index+1], domain.FieldSpend)...)
		}
	}

	first, last := run[0].index, run[len(run)-1].index
	return domain.Finding{
		Category:      domain.CategoryDeliveryConcentration,
		EntityID:      accountID,
		WindowStart:   siblings[0].Days[first].Date,
		WindowEnd:     siblings[0].Days[last].Date,
		Severity:      severity,
		Direction:     domain.DirectionDegrading,
		Magnitude:     minShare,
		TriggerValues: citations,
	}
}
