package diagnosing

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/utils"
)

// RunInput é o lote somente leitura avaliado por uma execução
type RunInput struct {
	Snapshots  []domain.Snapshot
	EntityIDs  []string
	Range      domain.DateRange
	Categories []domain.Category
}

// Report reúne as evidências ordenadas e os avisos de uma execução
type Report struct {
	RunID      string
	Range      domain.DateRange
	Categories []domain.Category
	Thresholds Thresholds
	Evidence   []Evidence
	Warnings   []domain.Warning
}

func (r *Report) Records() []domain.EvidenceRecord {
	records := make([]domain.EvidenceRecord, 0, len(r.Evidence))
	for _, e := range r.Evidence {
		rec := e.Record()
		rec.RunID = r.RunID
		records = append(records, rec)
	}
	return records
}

// unit é a menor parcela de trabalho: uma categoria para uma entidade ou,
// em concentração, para todas as entidades de uma conta.
type unit struct {
	detector detector
	entityID string
	series   []*Series
}

type unitResult struct {
	evidence []Evidence
	warnings []domain.Warning
}

type Engine struct {
	workers int
}

func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{workers: workers}
}

// Run executa os detectores solicitados sobre todas as entidades. Configuração
// inválida aborta antes de qualquer detecção; problemas de uma entidade viram
// avisos. Em caso de cancelamento nenhuma evidência parcial é retornada.
func (e *Engine) Run(ctx context.Context, in RunInput, t Thresholds) (*Report, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	dateRange, err := domain.NewDateRange(in.Range.Start, in.Range.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	in.Range = dateRange
	categories, err := normalizeCategories(in.Categories)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	runID, err := utils.GenerateID()
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar id da execução: %w", err)
	}

	logger := logrus.WithFields(logrus.Fields{
		"run_id":     runID,
		"start_date": in.Range.Start.Format(time.DateOnly),
		"end_date":   in.Range.End.Format(time.DateOnly),
		"snapshots":  len(in.Snapshots),
	})
	logger.Debug("Iniciando execução do motor de diagnóstico")

	valid, warnings := validSnapshots(in.Snapshots)
	series, aggErr := Aggregate(valid, in.Range)
	for _, dup := range duplicateErrors(aggErr) {
		warnings = append(warnings, domain.Warning{
			EntityID: dup.EntityID,
			Reason:   domain.WarningDuplicateSnapshot,
			Detail:   dup.Error(),
		})
	}

	entityIDs := requestedEntities(in.EntityIDs, series)
	warned := make(map[string]bool, len(warnings))
	for _, w := range warnings {
		warned[w.EntityID] = true
	}
	for _, id := range entityIDs {
		if _, ok := series[id]; !ok && !warned[id] {
			warnings = append(warnings, domain.Warning{
				EntityID: id,
				Reason:   domain.WarningNoSeries,
				Detail:   "nenhum snapshot no intervalo",
			})
		}
	}

	units := buildUnits(entityIDs, series, categories)
	results := make([]unitResult, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range units {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.runUnit(units[i], t, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:      runID,
		Range:      in.Range,
		Categories: categories,
		Thresholds: t,
		Warnings:   warnings,
	}
	for _, r := range results {
		report.Evidence = append(report.Evidence, r.evidence...)
		report.Warnings = append(report.Warnings, r.warnings...)
	}
	sortEvidence(report.Evidence)

	logger.WithFields(logrus.Fields{
		"units":    len(units),
		"evidence": len(report.Evidence),
		"warnings": len(report.Warnings),
		"duration": time.Since(startedAt).String(),
	}).Info("Execução do motor de diagnóstico concluída")

	return report, nil
}

func (e *Engine) runUnit(u unit, t Thresholds, logger *logrus.Entry) unitResult {
	var findings []domain.Finding
	if u.detector.siblings != nil {
		findings = u.detector.siblings(u.entityID, u.series, t)
	} else {
		for w := range u.series[0].Windows(t.windowDays(), t.WindowMaxAbsentFraction) {
			if w.Insufficient {
				continue
			}
			if f, ok := u.detector.window(w, t); ok {
				findings = append(findings, f)
			}
		}
	}

	var result unitResult
	for _, f := range deduplicate(findings) {
		ev, err := Assemble(f, u.series...)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"category":  f.Category,
				"entity_id": f.EntityID,
			}).Error("Finding rejeitado por falta de evidência")
			result.warnings = append(result.warnings, domain.Warning{
				EntityID: f.EntityID,
				Reason:   domain.WarningUngroundedFinding,
				Detail:   err.Error(),
			})
			continue
		}
		result.evidence = append(result.evidence, ev)
	}
	return result
}

func normalizeCategories(categories []domain.Category) ([]domain.Category, error) {
	if len(categories) == 0 {
		return append([]domain.Category(nil), domain.AllCategories...), nil
	}
	seen := make(map[domain.Category]bool, len(categories))
	var out []domain.Category
	for _, c := range categories {
		if _, ok := detectorFor(c); !ok {
			return nil, fmt.Errorf("%w: categoria desconhecida %q", ErrInvalidRequest, c)
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// validSnapshots descarta todas as linhas de entidades com snapshot inválido
func validSnapshots(snapshots []domain.Snapshot) ([]domain.Snapshot, []domain.Warning) {
	invalid := make(map[string]error)
	for i := range snapshots {
		if err := snapshots[i].Validate(); err != nil {
			if _, ok := invalid[snapshots[i].EntityID]; !ok {
				invalid[snapshots[i].EntityID] = err
			}
		}
	}
	if len(invalid) == 0 {
		return snapshots, nil
	}

	valid := make([]domain.Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if _, bad := invalid[s.EntityID]; !bad {
			valid = append(valid, s)
		}
	}

	ids := make([]string, 0, len(invalid))
	for id := range invalid {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	warnings := make([]domain.Warning, 0, len(ids))
	for _, id := range ids {
		warnings = append(warnings, domain.Warning{
			EntityID: id,
			Reason:   domain.WarningInvalidSnapshot,
			Detail:   invalid[id].Error(),
		})
	}
	return valid, warnings
}

func requestedEntities(requested []string, series map[string]*Series) []string {
	if len(requested) == 0 {
		ids := make([]string, 0, len(series))
		for id := range series {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids
	}
	seen := make(map[string]bool, len(requested))
	ids := make([]string, 0, len(requested))
	for _, id := range requested {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func buildUnits(entityIDs []string, series map[string]*Series, categories []domain.Category) []unit {
	var units []unit
	for _, c := range categories {
		det, _ := detectorFor(c)
		if det.siblings != nil {
			units = append(units, accountUnits(det, entityIDs, series)...)
			continue
		}
		for _, id := range entityIDs {
			if s, ok := series[id]; ok {
				units = append(units, unit{detector: det, entityID: id, series: []*Series{s}})
			}
		}
	}
	return units
}

// accountUnits agrupa as séries irmãs de cada conta com ao menos uma entidade solicitada
func accountUnits(det detector, entityIDs []string, series map[string]*Series) []unit {
	accounts := make(map[string]bool)
	for _, id := range entityIDs {
		if s, ok := series[id]; ok && s.AccountID != "" {
			accounts[s.AccountID] = true
		}
	}

	siblings := make(map[string][]*Series)
	for _, s := range sortedSeries(series) {
		if accounts[s.AccountID] {
			siblings[s.AccountID] = append(siblings[s.AccountID], s)
		}
	}

	ids := make([]string, 0, len(siblings))
	for id := range siblings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	units := make([]unit, 0, len(ids))
	for _, id := range ids {
		units = append(units, unit{detector: det, entityID: id, series: siblings[id]})
	}
	return units
}
