package diagnosing

import (
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/utils"
)

// detectFatigue compara a frequência média das metades da janela e exige que o
// engajamento não tenha melhorado no mesmo período.
func detectFatigue(w Window, t Thresholds) (domain.Finding, bool) {
	leading, trailing, ok := halves(w, t)
	if !ok {
		return domain.Finding{}, false
	}

	freqLead, nLead := meanOf(leading, domain.FieldFrequency, false)
	freqTrail, nTrail := meanOf(trailing, domain.FieldFrequency, false)
	if nLead < t.minHalfDays() || nTrail < t.minHalfDays() || freqLead <= 0 {
		return domain.Finding{}, false
	}

	increase := utils.PercentChange(freqLead, freqTrail)
	severity := tier(increase, t.FatigueFreqIncreasePct, t.FatigueFreqIncreasePctSevere)
	if severity == domain.SeverityNone {
		return domain.Finding{}, false
	}

	engagementFields, flat := engagementFlatOrDeclining(leading, trailing, t)
	if !flat {
		return domain.Finding{}, false
	}

	fields := append([]domain.Field{domain.FieldFrequency}, engagementFields...)
	return newFinding(domain.CategoryFatigue, w, severity, domain.DirectionDegrading, increase, cite(w.Days, fields...)), true
}

// engagementFlatOrDeclining usa conversões por investimento quando há
// conversões registradas e recorre ao CTR caso contrário.
func engagementFlatOrDeclining(leading, trailing []Day, t Thresholds) ([]domain.Field, bool) {
	tolerance := 1 + t.FatigueEfficiencyFlatTolerancePct/100

	effLead, _, okLead := sumRatio(leading, domain.FieldConversions, domain.FieldSpend)
	effTrail, _, okTrail := sumRatio(trailing, domain.FieldConversions, domain.FieldSpend)
	if okLead && okTrail && (effLead > 0 || effTrail > 0) {
		return []domain.Field{domain.FieldConversions, domain.FieldSpend}, effTrail <= effLead*tolerance
	}

	ctrLead, nLead := meanOf(leading, domain.FieldCTR, false)
	ctrTrail, nTrail := meanOf(trailing, domain.FieldCTR, false)
	if nLead < t.minHalfDays() || nTrail < t.minHalfDays() {
		return nil, false
	}
	return []domain.Field{domain.FieldCTR}, ctrTrail <= ctrLead*tolerance
}
