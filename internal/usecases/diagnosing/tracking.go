package diagnosing

import (
	"math"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

type trackingSignal struct {
	severity  domain.Severity
	direction domain.Direction
	magnitude float64
	fields    []domain.Field
}

// detectTrackingDegradation combina duas verificações: queda do
// pixel_match_rate abaixo do piso e desvio da razão entre conversões
// atribuídas incrementais e padrão em relação à metade inicial.
func detectTrackingDegradation(w Window, t Thresholds) (domain.Finding, bool) {
	leading, trailing, ok := halves(w, t)
	if !ok {
		return domain.Finding{}, false
	}

	var signals []trackingSignal
	if s, ok := matchRateSignal(leading, trailing, t); ok {
		signals = append(signals, s)
	}
	if s, ok := attributionGapSignal(leading, trailing, t); ok {
		signals = append(signals, s)
	}
	if len(signals) == 0 {
		return domain.Finding{}, false
	}

	best := signals[0]
	var fields []domain.Field
	for _, s := range signals {
		if s.severity.Rank() > best.severity.Rank() {
			best = s
		}
		fields = append(fields, s.fields...)
	}
	// queda de match rate sempre degrada, mesmo quando a razão de atribuição sobe
	direction := best.direction
	for _, s := range signals {
		if s.direction == domain.DirectionDegrading {
			direction = domain.DirectionDegrading
		}
	}

	return newFinding(domain.CategoryTrackingDegradation, w, best.severity, direction, best.magnitude, cite(w.Days, fields...)), true
}

// matchRateSignal usa a queda relativa abaixo do piso como magnitude
func matchRateSignal(leading, trailing []Day, t Thresholds) (trackingSignal, bool) {
	rateLead, nLead := meanOf(leading, domain.FieldPixelMatchRate, false)
	rateTrail, nTrail := meanOf(trailing, domain.FieldPixelMatchRate, false)
	if nLead < t.minHalfDays() || nTrail < t.minHalfDays() {
		return trackingSignal{}, false
	}

	floor := t.TrackingMinMatchRate
	if rateLead < floor || rateTrail >= floor {
		return trackingSignal{}, false
	}

	severity := domain.SeverityModerate
	if rateTrail < floor/t.SevereMultiplier {
		severity = domain.SeveritySevere
	}

	return trackingSignal{
		severity:  severity,
		direction: domain.DirectionDegrading,
		magnitude: (floor - rateTrail) / floor,
		fields:    []domain.Field{domain.FieldPixelMatchRate},
	}, true
}

func attributionGapSignal(leading, trailing []Day, t Thresholds) (trackingSignal, bool) {
	ratioLead, nLead, okLead := sumRatio(leading, domain.FieldAttributedConversionsIncremental, domain.FieldAttributedConversionsStandard)
	ratioTrail, nTrail, okTrail := sumRatio(trailing, domain.FieldAttributedConversionsIncremental, domain.FieldAttributedConversionsStandard)
	if !okLead || !okTrail || nLead < t.minHalfDays() || nTrail < t.minHalfDays() || ratioLead <= 0 {
		return trackingSignal{}, false
	}

	departure := math.Abs(ratioTrail-ratioLead) / ratioLead
	severity := tier(departure, t.TrackingAttributionGapTolerance, t.TrackingAttributionGapTolerance*t.SevereMultiplier)
	if severity == domain.SeverityNone {
		return trackingSignal{}, false
	}

	direction := domain.DirectionDegrading
	if ratioTrail > ratioLead {
		direction = domain.DirectionImproving
	}

	return trackingSignal{
		severity:  severity,
		direction: direction,
		magnitude: departure,
		fields: []domain.Field{
			domain.FieldAttributedConversionsStandard,
			domain.FieldAttributedConversionsIncremental,
		},
	}, true
}
