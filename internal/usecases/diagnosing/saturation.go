package diagnosing

import (
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/utils"
)

// detectSaturation sinaliza queda de alcance por unidade de investimento
// enquanto o investimento se mantém ou cresce.
func detectSaturation(w Window, t Thresholds) (domain.Finding, bool) {
	leading, trailing, ok := halves(w, t)
	if !ok {
		return domain.Finding{}, false
	}

	effLead := dailyRatio(leading, domain.FieldReach, domain.FieldSpend)
	effTrail := dailyRatio(trailing, domain.FieldReach, domain.FieldSpend)
	if len(effLead) < t.minHalfDays() || len(effTrail) < t.minHalfDays() {
		return domain.Finding{}, false
	}

	lead, trail := mean(effLead), mean(effTrail)
	if lead <= 0 {
		return domain.Finding{}, false
	}

	spendLead, _ := meanOf(leading, domain.FieldSpend, false)
	spendTrail, _ := meanOf(trailing, domain.FieldSpend, false)
	if spendLead <= 0 || spendTrail < spendLead*(1-t.SaturationSpendTolerancePct/100) {
		return domain.Finding{}, false
	}

	drop := -utils.PercentChange(lead, trail)
	severity := tier(drop, t.SaturationReachEfficiencyDropPct, t.SaturationReachEfficiencyDropPct*t.SevereMultiplier)
	if severity == domain.SeverityNone {
		return domain.Finding{}, false
	}

	return newFinding(domain.CategorySaturation, w, severity, domain.DirectionDegrading, drop, cite(w.Days, domain.FieldReach, domain.FieldSpend)), true
}
