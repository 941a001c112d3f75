package diagnosing

import (
	"math"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

// detector é a variante fechada de regra de diagnóstico. Categorias por
// entidade avaliam janelas; concentração avalia o conjunto de entidades irmãs.
type detector struct {
	category domain.Category
	window   func(Window, Thresholds) (domain.Finding, bool)
	siblings func(accountID string, siblings []*Series, t Thresholds) []domain.Finding
}

func detectorFor(category domain.Category) (detector, bool) {
	switch category {
	case domain.CategoryFatigue:
		return detector{category: category, window: detectFatigue}, true
	case domain.CategorySaturation:
		return detector{category: category, window: detectSaturation}, true
	case domain.CategoryAuctionShift:
		return detector{category: category, window: detectAuctionShift}, true
	case domain.CategoryTrackingDegradation:
		return detector{category: category, window: detectTrackingDegradation}, true
	case domain.CategoryDeliveryConcentration:
		return detector{category: category, siblings: detectConcentration}, true
	}
	return detector{}, false
}

// halves devolve as metades da janela quando ambas têm dias presentes suficientes
func halves(w Window, t Thresholds) (leading, trailing []Day, ok bool) {
	if w.Insufficient || len(w.Days) < 2 {
		return nil, nil, false
	}
	leading, trailing = w.Halves()
	if presentCount(leading) < t.minHalfDays() || presentCount(trailing) < t.minHalfDays() {
		return nil, nil, false
	}
	return leading, trailing, true
}

func presentCount(days []Day) int {
	n := 0
	for _, d := range days {
		if d.Present() {
			n++
		}
	}
	return n
}

// meanOf calcula a média do campo nos dias presentes em que ele está definido.
// Com withSpend, dias sem investimento são ignorados.
func meanOf(days []Day, field domain.Field, withSpend bool) (float64, int) {
	sum, n := 0.0, 0
	for _, d := range days {
		if !d.Present() || (withSpend && d.Snapshot.Spend <= 0) {
			continue
		}
		v, ok := d.Snapshot.Value(field)
		if !ok {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// sumRatio retorna Σnum/Σden considerando apenas dias com ambos definidos
// e denominador positivo.
func sumRatio(days []Day, num, den domain.Field) (float64, int, bool) {
	sumNum, sumDen, n := 0.0, 0.0, 0
	for _, d := range days {
		if !d.Present() {
			continue
		}
		a, okA := d.Snapshot.Value(num)
		b, okB := d.Snapshot.Value(den)
		if !okA || !okB || b <= 0 {
			continue
		}
		sumNum += a
		sumDen += b
		n++
	}
	if sumDen <= 0 {
		return 0, n, false
	}
	return sumNum / sumDen, n, true
}

// dailyRatio retorna os valores num/den de cada dia com denominador positivo
func dailyRatio(days []Day, num, den domain.Field) []float64 {
	var out []float64
	for _, d := range days {
		if !d.Present() {
			continue
		}
		a, okA := d.Snapshot.Value(num)
		b, okB := d.Snapshot.Value(den)
		if !okA || !okB || b <= 0 {
			continue
		}
		out = append(out, a/b)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// coefficientOfVariation usa o desvio padrão populacional
func coefficientOfVariation(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	m := mean(values)
	if m <= 0 {
		return 0, false
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance) / m, true
}

// cite gera citações com o valor literal de cada campo definido em cada dia presente
func cite(days []Day, fields ...domain.Field) []domain.Citation {
	var out []domain.Citation
	for _, d := range days {
		if !d.Present() {
			continue
		}
		for _, f := range fields {
			v, ok := d.Snapshot.Value(f)
			if !ok {
				continue
			}
			out = append(out, domain.Citation{
				EntityID: d.Snapshot.EntityID,
				Date:     d.Date,
				Field:    f,
				Value:    v,
			})
		}
	}
	return out
}

func newFinding(category domain.Category, w Window, severity domain.Severity, direction domain.Direction, magnitude float64, citations []domain.Citation) domain.Finding {
	return domain.Finding{
		Category:      category,
		EntityID:      w.EntityID,
		WindowStart:   w.Start(),
		WindowEnd:     w.End(),
		Severity:      severity,
		Direction:     direction,
		Magnitude:     magnitude,
		TriggerValues: citations,
	}
}

// tier aplica o esquema de duas faixas usado por todas as categorias
func tier(value, moderate, severe float64) domain.Severity {
	switch {
	case value > severe:
		return domain.SeveritySevere
	case value > moderate:
		return domain.SeverityModerate
	}
	return domain.SeverityNone
}
