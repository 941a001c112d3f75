package domain

import (
	"errors"
	"fmt"
	"time"
)

// Field identifica uma métrica citável de um snapshot
type Field string

const (
	FieldSpend                            Field = "spend"
	FieldImpressions                      Field = "impressions"
	FieldReach                            Field = "reach"
	FieldFrequency                        Field = "frequency"
	FieldCPM                              Field = "cpm"
	FieldCTR                              Field = "ctr"
	FieldConversions                      Field = "conversions"
	FieldCostPerConversion                Field = "cost_per_conversion"
	FieldAttributedConversionsStandard    Field = "attributed_conversions_standard"
	FieldAttributedConversionsIncremental Field = "attributed_conversions_incremental"
	FieldPixelMatchRate                   Field = "pixel_match_rate"
)

var (
	ErrNegativeMetric       = errors.New("métrica negativa")
	ErrReachAboveImpression = errors.New("alcance maior que impressões")
	ErrMatchRateOutOfRange  = errors.New("pixel_match_rate fora do intervalo [0,1]")
	ErrMissingEntityID      = errors.New("entity_id obrigatório")
)

// Snapshot representa as métricas de uma entidade em um dia
type Snapshot struct {
	EntityID                         string    `json:"entity_id"`
	AccountID                        string    `json:"account_id"`
	Date                             time.Time `json:"date"`
	Spend                            float64   `json:"spend"`
	Impressions                      int64     `json:"impressions"`
	Reach                            int64     `json:"reach"`
	CPM                              *float64  `json:"cpm,omitempty"`
	CTR                              float64   `json:"ctr"`
	Conversions                      float64   `json:"conversions"`
	AttributedConversionsStandard    *float64  `json:"attributed_conversions_standard,omitempty"`
	AttributedConversionsIncremental *float64  `json:"attributed_conversions_incremental,omitempty"`
	PixelMatchRate                   *float64  `json:"pixel_match_rate,omitempty"`
}

// NormalizeDate trunca a data para a meia-noite UTC do mesmo dia do calendário
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Key identifica o snapshot por entidade e dia
func (s *Snapshot) Key() string {
	return s.EntityID + "|" + NormalizeDate(s.Date).Format(time.DateOnly)
}

func (s *Snapshot) Validate() error {
	if s.EntityID == "" {
		return ErrMissingEntityID
	}
	if s.Spend < 0 || s.Impressions < 0 || s.Reach < 0 || s.CTR < 0 || s.Conversions < 0 {
		return fmt.Errorf("%w: entidade %s em %s", ErrNegativeMetric, s.EntityID, s.Date.Format(time.DateOnly))
	}
	if s.Reach > s.Impressions {
		return fmt.Errorf("%w: entidade %s em %s", ErrReachAboveImpression, s.EntityID, s.Date.Format(time.DateOnly))
	}
	if s.PixelMatchRate != nil && (*s.PixelMatchRate < 0 || *s.PixelMatchRate > 1) {
		return fmt.Errorf("%w: entidade %s em %s", ErrMatchRateOutOfRange, s.EntityID, s.Date.Format(time.DateOnly))
	}
	return nil
}

// Value retorna o valor do campo e se ele está definido para este snapshot.
// Campos derivados ficam indefinidos quando o denominador é zero.
func (s *Snapshot) Value(field Field) (float64, bool) {
	switch field {
	case FieldSpend:
		return s.Spend, true
	case FieldImpressions:
		return float64(s.Impressions), true
	case FieldReach:
		return float64(s.Reach), true
	case FieldFrequency:
		if s.Reach == 0 {
			return 0, false
		}
		return float64(s.Impressions) / float64(s.Reach), true
	case FieldCPM:
		if s.CPM != nil {
			return *s.CPM, true
		}
		if s.Impressions == 0 {
			return 0, false
		}
		return s.Spend / float64(s.Impressions) * 1000, true
	case FieldCTR:
		return s.CTR, true
	case FieldConversions:
		return s.Conversions, true
	case FieldCostPerConversion:
		if s.Conversions == 0 {
			return 0, false
		}
		return s.Spend / s.Conversions, true
	case FieldAttributedConversionsStandard:
		return optional(s.AttributedConversionsStandard)
	case FieldAttributedConversionsIncremental:
		return optional(s.AttributedConversionsIncremental)
	case FieldPixelMatchRate:
		return optional(s.PixelMatchRate)
	}
	return 0, false
}

func optional(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

// SnapshotFilter seleciona snapshots por conta e/ou entidades em um intervalo
type SnapshotFilter struct {
	AccountID string
	EntityIDs []string
	StartDate time.Time
	EndDate   time.Time
}
