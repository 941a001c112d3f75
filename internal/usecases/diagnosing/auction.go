package diagnosing

import (
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

// detectAuctionShift sinaliza volatilidade de CPM que não é explicada por
// mudanças de orçamento.
func detectAuctionShift(w Window, t Thresholds) (domain.Finding, bool) {
	leading, trailing, ok := halves(w, t)
	if !ok {
		return domain.Finding{}, false
	}

	var cpms, spends []float64
	var used []Day
	for _, d := range w.Days {
		if !d.Present() || d.Snapshot.Spend <= 0 {
			continue
		}
		cpm, ok := d.Snapshot.Value(domain.FieldCPM)
		if !ok {
			continue
		}
		cpms = append(cpms, cpm)
		spends = append(spends, d.Snapshot.Spend)
		used = append(used, d)
	}

	spendCV, ok := coefficientOfVariation(spends)
	if !ok || spendCV > t.AuctionSpendStableCV {
		return domain.Finding{}, false
	}
	cpmCV, ok := coefficientOfVariation(cpms)
	if !ok {
		return domain.Finding{}, false
	}

	severity := tier(cpmCV, t.AuctionCPMCVThreshold, t.AuctionCPMCVThreshold*t.SevereMultiplier)
	if severity == domain.SeverityNone {
		return domain.Finding{}, false
	}

	cpmLead, nLead := meanOf(leading, domain.FieldCPM, true)
	cpmTrail, nTrail := meanOf(trailing, domain.FieldCPM, true)
	if nLead == 0 || nTrail == 0 {
		return domain.Finding{}, false
	}
	direction := domain.DirectionNeutral
	switch {
	case cpmTrail > cpmLead:
		direction = domain.DirectionDegrading
	case cpmTrail < cpmLead:
		direction = domain.DirectionImproving
	}

	return newFinding(domain.CategoryAuctionShift, w, severity, direction, cpmCV, cite(used, domain.FieldCPM, domain.FieldSpend)), true
}
