package domain

import (
	"errors"
	"time"
)

var ErrInvalidDateRange = errors.New("intervalo de datas inválido")

// DateRange é um intervalo fechado de dias do calendário
type DateRange struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: NormalizeDate(start), End: NormalizeDate(end)}
	if start.IsZero() || end.IsZero() || r.End.Before(r.Start) {
		return DateRange{}, ErrInvalidDateRange
	}
	return r, nil
}

// Days retorna a quantidade de dias do intervalo, incluindo as extremidades
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) Contains(t time.Time) bool {
	d := NormalizeDate(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// ExtendBack antecipa o início do intervalo em n dias
func (r DateRange) ExtendBack(n int) DateRange {
	return DateRange{Start: r.Start.AddDate(0, 0, -n), End: r.End}
}

// DiagnosticRun registra uma execução persistida do motor de diagnóstico
type DiagnosticRun struct {
	ID            string             `json:"id"`
	AccountID     string             `json:"account_id,omitempty"`
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	Categories    []Category         `json:"categories"`
	Thresholds    map[string]float64 `json:"thresholds"`
	EvidenceCount int                `json:"evidence_count"`
	Warnings      []Warning          `json:"warnings"`
	CreatedAt     time.Time          `json:"created_at"`
}

// EvidenceFilter filtra evidências persistidas
type EvidenceFilter struct {
	EntityID  string
	AccountID string
	Category  *Category
	StartDate *time.Time
	EndDate   *time.Time
	Limit     uint64
}
