package diagnosing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/repository"
	"github.com/vfg2006/traffic-diagnostics-api/internal/config"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
	"github.com/vfg2006/traffic-diagnostics-api/internal/metrics"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/utils"
)

type Service struct {
	engine       *Engine
	thresholds   Thresholds
	snapshotRepo repository.SnapshotRepository
	evidenceRepo repository.EvidenceRepository
	now          func() time.Time
}

// NewService valida os thresholds configurados antes de aceitar qualquer execução
func NewService(
	cfg *config.Config,
	snapshotRepo repository.SnapshotRepository,
	evidenceRepo repository.EvidenceRepository,
) (Diagnoser, error) {
	thresholds, err := DefaultThresholds().WithOverrides(cfg.Diagnostic.Thresholds)
	if err != nil {
		return nil, err
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		engine:       NewEngine(cfg.Diagnostic.Workers),
		thresholds:   thresholds,
		snapshotRepo: snapshotRepo,
		evidenceRepo: evidenceRepo,
		now:          time.Now,
	}, nil
}

func (s *Service) Thresholds() Thresholds {
	return s.thresholds
}

// Diagnose carrega os snapshots do intervalo (estendido para trás para que a
// primeira janela fique completa), executa o motor e persiste a execução.
// Só são devolvidas evidências cuja janela termina dentro do intervalo pedido.
func (s *Service) Diagnose(ctx context.Context, req *DiagnoseRequest) (*DiagnoseResult, error) {
	startedAt := time.Now()
	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerAPI
	}

	result, err := s.diagnose(ctx, req)
	if err != nil {
		metrics.ObserveRun(time.Since(startedAt), metrics.OutcomeError, trigger)
		return nil, err
	}
	metrics.ObserveRun(time.Since(startedAt), metrics.OutcomeSuccess, trigger)

	for _, rec := range result.Evidence {
		metrics.ObserveEvidence(string(rec.Category), string(rec.Severity))
	}
	for _, w := range result.Warnings {
		metrics.ObserveWarning(string(w.Reason))
	}

	logrus.WithFields(logrus.Fields{
		"run_id":           result.RunID,
		"account_id":       req.AccountID,
		"trigger":          trigger,
		"evidence":         len(result.Evidence),
		"warnings":         len(result.Warnings),
		"persisted":        result.Persisted,
		"duration_seconds": utils.RoundWithTwoDecimalPlace(time.Since(startedAt).Seconds()),
	}).Info("Diagnóstico concluído")

	return result, nil
}

// loadSnapshots carrega sempre a conta inteira, pois a concentração compara
// cada entidade com todas as irmãs da conta. Sem account_id, as contas são
// resolvidas a partir das entidades pedidas; snapshots sem conta seguem como estão.
func (s *Service) loadSnapshots(ctx context.Context, req *DiagnoseRequest, loadRange domain.DateRange) ([]domain.Snapshot, error) {
	var (
		accountIDs []string
		snapshots  []domain.Snapshot
	)

	if req.AccountID != "" {
		accountIDs = []string{req.AccountID}
	} else {
		requested, err := s.snapshotRepo.GetByDateRange(ctx, domain.SnapshotFilter{
			EntityIDs: req.EntityIDs,
			StartDate: loadRange.Start,
			EndDate:   loadRange.End,
		})
		if err != nil {
			return nil, err
		}

		seen := make(map[string]bool)
		for _, snap := range requested {
			if snap.AccountID == "" {
				snapshots = append(snapshots, snap)
				continue
			}
			if !seen[snap.AccountID] {
				seen[snap.AccountID] = true
				accountIDs = append(accountIDs, snap.AccountID)
			}
		}
		sort.Strings(accountIDs)
	}

	for _, accountID := range accountIDs {
		rows, err := s.snapshotRepo.GetByDateRange(ctx, domain.SnapshotFilter{
			AccountID: accountID,
			StartDate: loadRange.Start,
			EndDate:   loadRange.End,
		})
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, rows...)
	}

	return snapshots, nil
}

func (s *Service) diagnose(ctx context.Context, req *DiagnoseRequest) (*DiagnoseResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: requisição vazia", ErrInvalidRequest)
	}
	if req.AccountID == "" && len(req.EntityIDs) == 0 {
		return nil, fmt.Errorf("%w: informe account_id ou entity_ids", ErrInvalidRequest)
	}

	dateRange, err := domain.NewDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	thresholds, err := s.thresholds.WithOverrides(req.Thresholds)
	if err != nil {
		return nil, err
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	loadRange := dateRange.ExtendBack(thresholds.windowDays() - 1)
	snapshots, err := s.loadSnapshots(ctx, req, loadRange)
	if err != nil {
		logrus.WithError(err).WithField("account_id", req.AccountID).Error("Erro ao buscar snapshots no repositório")
		return nil, fmt.Errorf("erro ao buscar snapshots: %w", err)
	}

	report, err := s.engine.Run(ctx, RunInput{
		Snapshots:  snapshots,
		EntityIDs:  req.EntityIDs,
		Range:      loadRange,
		Categories: req.Categories,
	}, thresholds)
	if err != nil {
		return nil, err
	}

	records := make([]domain.EvidenceRecord, 0, len(report.Evidence))
	for _, rec := range report.Records() {
		if dateRange.Contains(rec.WindowEnd) {
			records = append(records, rec)
		}
	}

	result := &DiagnoseResult{
		RunID:      report.RunID,
		Range:      dateRange,
		Categories: report.Categories,
		Thresholds: thresholds.Map(),
		Evidence:   records,
		Warnings:   report.Warnings,
	}
	if result.Warnings == nil {
		result.Warnings = []domain.Warning{}
	}

	if req.DryRun {
		return result, nil
	}

	createdAt := s.now().UTC()
	for i := range result.Evidence {
		result.Evidence[i].CreatedAt = createdAt
	}

	run := &domain.DiagnosticRun{
		ID:            result.RunID,
		AccountID:     req.AccountID,
		StartDate:     dateRange.Start,
		EndDate:       dateRange.End,
		Categories:    result.Categories,
		Thresholds:    result.Thresholds,
		EvidenceCount: len(result.Evidence),
		Warnings:      result.Warnings,
		CreatedAt:     createdAt,
	}
	if err := s.evidenceRepo.SaveRun(ctx, run, result.Evidence); err != nil {
		logrus.WithError(err).WithField("run_id", run.ID).Error("Erro ao persistir execução de diagnóstico")
		return nil, fmt.Errorf("%w: %w", ErrDiagnosticPersistence, err)
	}
	result.Persisted = true

	return result, nil
}

func (s *Service) ListEvidence(ctx context.Context, filter domain.EvidenceFilter) ([]domain.EvidenceRecord, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, domain.ErrInvalidDateRange)
	}

	records, err := s.evidenceRepo.List(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Erro ao listar evidências no repositório")
		return nil, err
	}
	return records, nil
}

func (s *Service) GetRun(ctx context.Context, id string) (*domain.DiagnosticRun, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id da execução obrigatório", ErrInvalidRequest)
	}
	return s.evidenceRepo.GetRun(ctx, id)
}

// maxSnapshotListDays limita o intervalo de uma consulta de snapshots
const maxSnapshotListDays = 366

// ListSnapshots devolve os snapshots gravados da conta ou das entidades no intervalo
func (s *Service) ListSnapshots(ctx context.Context, filter domain.SnapshotFilter) ([]domain.Snapshot, error) {
	if filter.AccountID == "" && len(filter.EntityIDs) == 0 {
		return nil, fmt.Errorf("%w: informe account_id ou entity_id", ErrInvalidRequest)
	}

	dateRange, err := domain.NewDateRange(filter.StartDate, filter.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if dateRange.Days() > maxSnapshotListDays {
		return nil, fmt.Errorf("%w: intervalo acima de %d dias", ErrInvalidRequest, maxSnapshotListDays)
	}
	filter.StartDate, filter.EndDate = dateRange.Start, dateRange.End

	snapshots, err := s.snapshotRepo.GetByDateRange(ctx, filter)
	if err != nil {
		logrus.WithError(err).WithField("account_id", filter.AccountID).Error("Erro ao listar snapshots no repositório")
		return nil, err
	}
	if snapshots == nil {
		snapshots = []domain.Snapshot{}
	}
	return snapshots, nil
}

// ImportSnapshots grava snapshots corrigidos ou novos. Repetições de
// (entity_id, date) no mesmo lote ficam com a última ocorrência.
func (s *Service) ImportSnapshots(ctx context.Context, snapshots []domain.Snapshot) (*ImportResult, error) {
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("%w: nenhum snapshot informado", ErrInvalidRequest)
	}

	var errs []error
	index := make(map[string]int, len(snapshots))
	batch := make([]domain.Snapshot, 0, len(snapshots))
	for i, snapshot := range snapshots {
		if snapshot.Date.IsZero() {
			errs = append(errs, fmt.Errorf("snapshot %d: data obrigatória", i))
			continue
		}
		if err := snapshot.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("snapshot %d: %w", i, err))
			continue
		}
		snapshot.Date = domain.NormalizeDate(snapshot.Date)

		if pos, ok := index[snapshot.Key()]; ok {
			batch[pos] = snapshot
			continue
		}
		index[snapshot.Key()] = len(batch)
		batch = append(batch, snapshot)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}

	saved, err := s.snapshotRepo.SaveOrUpdate(ctx, batch)
	if err != nil {
		logrus.WithError(err).WithField("snapshots", len(batch)).Error("Erro ao gravar snapshots")
		return nil, err
	}
	metrics.ObserveSnapshotsImported(len(batch))

	logrus.WithFields(logrus.Fields{
		"received": len(snapshots),
		"saved":    saved,
	}).Info("Snapshots importados")

	return &ImportResult{
		Received: len(snapshots),
		Saved:    saved,
	}, nil
}
