package domain

import (
	"fmt"
	"time"
)

// Category identifica o tipo de diagnóstico
type Category string

const (
	CategoryFatigue               Category = "fatigue"
	CategorySaturation            Category = "saturation"
	CategoryDeliveryConcentration Category = "delivery_concentration"
	CategoryAuctionShift          Category = "auction_shift"
	CategoryTrackingDegradation   Category = "tracking_degradation"
)

// AllCategories na ordem usada quando nenhuma categoria é informada
var AllCategories = []Category{
	CategoryFatigue,
	CategorySaturation,
	CategoryDeliveryConcentration,
	CategoryAuctionShift,
	CategoryTrackingDegradation,
}

func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("categoria desconhecida: %q", s)
}

// Severity segue a escala none < mild < moderate < severe
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

func (s Severity) Rank() int {
	switch s {
	case SeverityMild:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	}
	return 0
}

type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionDegrading Direction = "degrading"
	DirectionNeutral   Direction = "neutral"
)

// Citation é um valor literal de um snapshot usado como evidência
type Citation struct {
	EntityID string    `json:"entity_id"`
	Date     time.Time `json:"date"`
	Field    Field     `json:"field"`
	Value    float64   `json:"value"`
}

// Finding é o resultado de um detector sobre uma janela
type Finding struct {
	Category      Category   `json:"category"`
	EntityID      string     `json:"entity_id"`
	WindowStart   time.Time  `json:"window_start"`
	WindowEnd     time.Time  `json:"window_end"`
	Severity      Severity   `json:"severity"`
	Direction     Direction  `json:"direction"`
	Magnitude     float64    `json:"magnitude"`
	TriggerValues []Citation `json:"trigger_values"`
}

// Overlaps considera janelas adjacentes como sobrepostas
func (f Finding) Overlaps(other Finding) bool {
	return !f.WindowStart.After(other.WindowEnd.AddDate(0, 0, 1)) &&
		!other.WindowStart.After(f.WindowEnd.AddDate(0, 0, 1))
}

// EvidenceRecord é o formato serializável entregue à camada de linguagem natural
type EvidenceRecord struct {
	RunID       string     `json:"run_id,omitempty"`
	Category    Category   `json:"category"`
	EntityID    string     `json:"entity_id"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
	Severity    Severity   `json:"severity"`
	Direction   Direction  `json:"direction"`
	Magnitude   float64    `json:"magnitude"`
	Citations   []Citation `json:"citations"`
	Snapshots   []Snapshot `json:"snapshots"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
}

// Motivos publicados no canal de avisos
const (
	WarningNoSeries          = "no_series"
	WarningDuplicateSnapshot = "duplicate_snapshot"
	WarningInvalidSnapshot   = "invalid_snapshot"
	WarningUngroundedFinding = "ungrounded_finding"
)

type Warning struct {
	EntityID string `json:"entity_id"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}
