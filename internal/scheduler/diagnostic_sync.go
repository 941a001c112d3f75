package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/repository"
	"github.com/vfg2006/traffic-diagnostics-api/internal/config"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/diagnosing"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/utils"
)

// DiagnosticSyncConfig representa a configuração do agendador de diagnósticos
type DiagnosticSyncConfig struct {
	CronSchedule      string
	LookbackDays      int
	MaxConcurrentJobs int
	SyncEnabled       bool
}

// syncSummary resume uma rodada do agendador
type syncSummary struct {
	Accounts  int
	Succeeded int
	Failed    int
	Evidence  int
}

// DiagnosticSyncService diagnostica periodicamente todas as contas com snapshots recentes
type DiagnosticSyncService struct {
	scheduler           *gocron.Scheduler
	config              DiagnosticSyncConfig
	snapshotRepo        repository.SnapshotRepository
	diagnoser           diagnosing.Diagnoser
	now                 func() time.Time
	syncRunning         bool
	syncMutex           sync.Mutex
	lastSyncStartedAt   time.Time
	lastSyncCompletedAt time.Time
	lastSummary         syncSummary
}

func NewDiagnosticSyncService(
	snapshotRepo repository.SnapshotRepository,
	diagnoser diagnosing.Diagnoser,
	appConfig *config.Config,
) *DiagnosticSyncService {
	syncConfig := DiagnosticSyncConfig{
		CronSchedule:      appConfig.DiagnosticSync.CronSchedule,
		LookbackDays:      max(appConfig.DiagnosticSync.LookbackDays, 1),
		MaxConcurrentJobs: max(appConfig.DiagnosticSync.MaxConcurrentJobs, 1),
		SyncEnabled:       appConfig.DiagnosticSync.Enabled,
	}

	logrus.WithFields(logrus.Fields{
		"cron_schedule":       syncConfig.CronSchedule,
		"lookback_days":       syncConfig.LookbackDays,
		"max_concurrent_jobs": syncConfig.MaxConcurrentJobs,
		"sync_enabled":        syncConfig.SyncEnabled,
	}).Info("Configuração do agendador de diagnósticos carregada")

	return &DiagnosticSyncService{
		scheduler:    gocron.NewScheduler(time.UTC),
		config:       syncConfig,
		snapshotRepo: snapshotRepo,
		diagnoser:    diagnoser,
		now:          time.Now,
	}
}

// Start inicia o agendador
func (s *DiagnosticSyncService) Start(ctx context.Context) error {
	if !s.config.SyncEnabled {
		logrus.Info("Diagnóstico agendado desabilitado por configuração")
		return nil
	}

	logrus.WithField("cron", s.config.CronSchedule).Info("Iniciando agendador de diagnósticos")

	_, err := s.scheduler.Cron(s.config.CronSchedule).Do(func() {
		s.syncAllAccounts(ctx)
	})
	if err != nil {
		return fmt.Errorf("erro ao agendar diagnósticos: %w", err)
	}

	s.scheduler.StartAsync()

	go func() {
		<-ctx.Done()
		logrus.Info("Parando agendador de diagnósticos")
		s.scheduler.Stop()
	}()

	return nil
}

// syncAllAccounts diagnostica os últimos LookbackDays dias (até ontem) de cada conta
func (s *DiagnosticSyncService) syncAllAccounts(ctx context.Context) {
	s.syncMutex.Lock()
	if s.syncRunning {
		s.syncMutex.Unlock()
		logrus.Info("Diagnóstico agendado já em andamento, ignorando")
		return
	}
	s.syncRunning = true
	s.lastSyncStartedAt = s.now()
	s.syncMutex.Unlock()

	defer func() {
		s.syncMutex.Lock()
		s.syncRunning = false
		s.syncMutex.Unlock()
	}()

	startTime := time.Now()
	summary, err := s.runSync(ctx)
	if err != nil {
		logrus.WithError(err).Error("Erro ao buscar contas para diagnóstico agendado")
		return
	}

	logrus.WithFields(logrus.Fields{
		"duration":  time.Since(startTime).String(),
		"accounts":  summary.Accounts,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"evidence":  summary.Evidence,
	}).Info("Diagnóstico agendado concluído")

	s.syncMutex.Lock()
	s.lastSummary = summary
	s.lastSyncCompletedAt = s.now()
	s.syncMutex.Unlock()
}

func (s *DiagnosticSyncService) runSync(ctx context.Context) (syncSummary, error) {
	endDate := utils.Yesterday(s.now())
	startDate := endDate.AddDate(0, 0, -(s.config.LookbackDays - 1))

	accountIDs, err := s.snapshotRepo.ListAccountIDs(ctx, startDate, endDate)
	if err != nil {
		return syncSummary{}, err
	}

	summary := syncSummary{Accounts: len(accountIDs)}
	if len(accountIDs) == 0 {
		logrus.Info("Nenhuma conta com snapshots no período do diagnóstico agendado")
		return summary, nil
	}

	logrus.WithFields(logrus.Fields{
		"accounts":   len(accountIDs),
		"start_date": startDate.Format(time.DateOnly),
		"end_date":   endDate.Format(time.DateOnly),
	}).Info("Período para diagnóstico agendado")

	semaphore := make(chan struct{}, s.config.MaxConcurrentJobs)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, accountID := range accountIDs {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(accountID string) {
			defer func() {
				<-semaphore
				wg.Done()
			}()

			evidence, err := s.diagnoseAccount(ctx, accountID, startDate, endDate)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				return
			}
			summary.Succeeded++
			summary.Evidence += evidence
		}(accountID)
	}

	wg.Wait()
	return summary, nil
}

func (s *DiagnosticSyncService) diagnoseAccount(ctx context.Context, accountID string, startDate, endDate time.Time) (int, error) {
	result, err := s.diagnoser.Diagnose(ctx, &diagnosing.DiagnoseRequest{
		AccountID: accountID,
		StartDate: startDate,
		EndDate:   endDate,
		Trigger:   diagnosing.TriggerScheduler,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"account_id": accountID,
			"error":      err.Error(),
		}).Error("Erro ao diagnosticar conta")
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"account_id": accountID,
		"run_id":     result.RunID,
		"evidence":   len(result.Evidence),
		"warnings":   len(result.Warnings),
	}).Info("Conta diagnosticada")

	return len(result.Evidence), nil
}

// TriggerManualSync inicia manualmente um diagnóstico de todas as contas
func (s *DiagnosticSyncService) TriggerManualSync(ctx context.Context) bool {
	s.syncMutex.Lock()
	if s.syncRunning {
		s.syncMutex.Unlock()
		logrus.Info("Diagnóstico agendado já em andamento, ignorando solicitação manual")
		return false
	}
	s.syncMutex.Unlock()

	logrus.Info("Iniciando diagnóstico manual de todas as contas")
	go s.syncAllAccounts(context.WithoutCancel(ctx))
	return true
}

// GetStatus retorna o status atual do agendador
func (s *DiagnosticSyncService) GetStatus() map[string]any {
	s.syncMutex.Lock()
	defer s.syncMutex.Unlock()

	return map[string]any{
		"sync_enabled":           s.config.SyncEnabled,
		"sync_cron":              s.config.CronSchedule,
		"sync_lookback_days":     s.config.LookbackDays,
		"sync_max_concurrent":    s.config.MaxConcurrentJobs,
		"sync_running":           s.syncRunning,
		"last_sync_started_at":   s.lastSyncStartedAt,
		"last_sync_completed_at": s.lastSyncCompletedAt,
		"last_sync_accounts":     s.lastSummary.Accounts,
		"last_sync_failed":       s.lastSummary.Failed,
		"last_sync_evidence":     s.lastSummary.Evidence,
	}
}
