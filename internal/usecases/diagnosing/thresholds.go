package diagnosing

import (
	"math"
	"sort"
)

// Thresholds é o conjunto imutável de limites usado em uma execução.
// É passado por valor para que execuções paralelas não interfiram entre si.
type Thresholds struct {
	WindowDays                        float64 `json:"window_days"`
	WindowMaxAbsentFraction           float64 `json:"window_max_absent_fraction"`
	WindowMinHalfDays                 float64 `json:"window_min_half_days"`
	SevereMultiplier                  float64 `json:"severe_multiplier"`
	FatigueFreqIncreasePct            float64 `json:"fatigue_freq_increase_pct"`
	FatigueFreqIncreasePctSevere      float64 `json:"fatigue_freq_increase_pct_severe"`
	FatigueEfficiencyFlatTolerancePct float64 `json:"fatigue_efficiency_flat_tolerance_pct"`
	SaturationReachEfficiencyDropPct  float64 `json:"saturation_reach_efficiency_drop_pct"`
	SaturationSpendTolerancePct       float64 `json:"saturation_spend_tolerance_pct"`
	ConcentrationTopEntityFraction    float64 `json:"concentration_top_entity_fraction"`
	ConcentrationTopKShare            float64 `json:"concentration_top_k_share"`
	ConcentrationMinDays              float64 `json:"concentration_min_days"`
	AuctionCPMCVThreshold             float64 `json:"auction_cpm_cv_threshold"`
	AuctionSpendStableCV              float64 `json:"auction_spend_stable_cv"`
	TrackingMinMatchRate              float64 `json:"tracking_min_match_rate"`
	TrackingAttributionGapTolerance   float64 `json:"tracking_attribution_gap_tolerance"`
}

type thresholdDef struct {
	name  string
	value float64
	ref   func(*Thresholds) *float64
	check func(float64) bool
	rule  string
}

var thresholdDefs = []thresholdDef{
	{"window_days", 14, func(t *Thresholds) *float64 { return &t.WindowDays }, integerAtLeast(2), "inteiro >= 2"},
	{"window_max_absent_fraction", 0.25, func(t *Thresholds) *float64 { return &t.WindowMaxAbsentFraction }, closedOpen(0, 1), "[0,1)"},
	{"window_min_half_days", 2, func(t *Thresholds) *float64 { return &t.WindowMinHalfDays }, integerAtLeast(1), "inteiro >= 1"},
	{"severe_multiplier", 2, func(t *Thresholds) *float64 { return &t.SevereMultiplier }, greaterThan(1), "> 1"},
	{"fatigue_freq_increase_pct", 20, func(t *Thresholds) *float64 { return &t.FatigueFreqIncreasePct }, greaterThan(0), "> 0"},
	{"fatigue_freq_increase_pct_severe", 60, func(t *Thresholds) *float64 { return &t.FatigueFreqIncreasePctSevere }, greaterThan(0), "> 0"},
	{"fatigue_efficiency_flat_tolerance_pct", 5, func(t *Thresholds) *float64 { return &t.FatigueEfficiencyFlatTolerancePct }, atLeast(0), ">= 0"},
	{"saturation_reach_efficiency_drop_pct", 20, func(t *Thresholds) *float64 { return &t.SaturationReachEfficiencyDropPct }, open(0, 100), "(0,100)"},
	{"saturation_spend_tolerance_pct", 10, func(t *Thresholds) *float64 { return &t.SaturationSpendTolerancePct }, closedOpen(0, 100), "[0,100)"},
	{"concentration_top_entity_fraction", 0.2, func(t *Thresholds) *float64 { return &t.ConcentrationTopEntityFraction }, openClosed(0, 1), "(0,1]"},
	{"concentration_top_k_share", 0.8, func(t *Thresholds) *float64 { return &t.ConcentrationTopKShare }, open(0, 1), "(0,1)"},
	{"concentration_min_days", 3, func(t *Thresholds) *float64 { return &t.ConcentrationMinDays }, integerAtLeast(1), "inteiro >= 1"},
	{"auction_cpm_cv_threshold", 0.2, func(t *Thresholds) *float64 { return &t.AuctionCPMCVThreshold }, greaterThan(0), "> 0"},
	{"auction_spend_stable_cv", 0.2, func(t *Thresholds) *float64 { return &t.AuctionSpendStableCV }, atLeast(0), ">= 0"},
	{"tracking_min_match_rate", 0.7, func(t *Thresholds) *float64 { return &t.TrackingMinMatchRate }, openClosed(0, 1), "(0,1]"},
	{"tracking_attribution_gap_tolerance", 0.25, func(t *Thresholds) *float64 { return &t.TrackingAttributionGapTolerance }, greaterThan(0), "> 0"},
}

func DefaultThresholds() Thresholds {
	var t Thresholds
	for _, def := range thresholdDefs {
		*def.ref(&t) = def.value
	}
	return t
}

// ThresholdNames lista os nomes configuráveis em ordem alfabética
func ThresholdNames() []string {
	names := make([]string, 0, len(thresholdDefs))
	for _, def := range thresholdDefs {
		names = append(names, def.name)
	}
	sort.Strings(names)
	return names
}

func (t Thresholds) Map() map[string]float64 {
	m := make(map[string]float64, len(thresholdDefs))
	for _, def := range thresholdDefs {
		m[def.name] = *def.ref(&t)
	}
	return m
}

// WithOverrides retorna uma cópia com os valores sobrescritos.
// Nomes desconhecidos são rejeitados; o domínio é checado por Validate.
func (t Thresholds) WithOverrides(overrides map[string]float64) (Thresholds, error) {
	out := t
	for name, value := range overrides {
		def, ok := lookupThreshold(name)
		if !ok {
			return Thresholds{}, &InvalidConfigurationError{Name: name, Value: value, Details: "threshold desconhecido"}
		}
		*def.ref(&out) = value
	}
	return out, nil
}

func (t Thresholds) Validate() error {
	for _, def := range thresholdDefs {
		v := *def.ref(&t)
		if math.IsNaN(v) || math.IsInf(v, 0) || !def.check(v) {
			return &InvalidConfigurationError{Name: def.name, Value: v, Details: def.rule}
		}
	}
	if t.FatigueFreqIncreasePctSevere <= t.FatigueFreqIncreasePct {
		return &InvalidConfigurationError{
			Name:    "fatigue_freq_increase_pct_severe",
			Value:   t.FatigueFreqIncreasePctSevere,
			Details: "deve ser maior que fatigue_freq_increase_pct",
		}
	}
	if t.WindowMinHalfDays > math.Floor(t.WindowDays/2) {
		return &InvalidConfigurationError{
			Name:    "window_min_half_days",
			Value:   t.WindowMinHalfDays,
			Details: "não cabe em metade da janela",
		}
	}
	return nil
}

func (t Thresholds) windowDays() int {
	return int(t.WindowDays)
}

func (t Thresholds) minHalfDays() int {
	return int(t.WindowMinHalfDays)
}

func (t Thresholds) concentrationMinDays() int {
	return int(t.ConcentrationMinDays)
}

func lookupThreshold(name string) (thresholdDef, bool) {
	for _, def := range thresholdDefs {
		if def.name == name {
			return def, true
		}
	}
	return thresholdDef{}, false
}

func integerAtLeast(min float64) func(float64) bool {
	return func(v float64) bool { return v >= min && v == math.Trunc(v) }
}

func atLeast(min float64) func(float64) bool {
	return func(v float64) bool { return v >= min }
}

func greaterThan(min float64) func(float64) bool {
	return func(v float64) bool { return v > min }
}

func open(lo, hi float64) func(float64) bool {
	return func(v float64) bool { return v > lo && v < hi }
}

func closedOpen(lo, hi float64) func(float64) bool {
	return func(v float64) bool { return v >= lo && v < hi }
}

func openClosed(lo, hi float64) func(float64) bool {
	return func(v float64) bool { return v > lo && v <= hi }
}
