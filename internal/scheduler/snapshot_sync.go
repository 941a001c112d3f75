package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/vfg2006/traffic-diagnostics-api/internal/config"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/diagnosing"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/utils"
)

// SnapshotCollector busca os snapshots diários de uma conta na plataforma de anúncios
type SnapshotCollector interface {
	CollectSnapshots(ctx context.Context, accountID string, period domain.DateRange) ([]domain.Snapshot, error)
}

// SnapshotImporter grava os snapshots coletados
type SnapshotImporter interface {
	ImportSnapshots(ctx context.Context, snapshots []domain.Snapshot) (*diagnosing.ImportResult, error)
}

// SnapshotSyncConfig representa a configuração do agendador de coleta de snapshots
type SnapshotSyncConfig struct {
	CronSchedule        string
	LookbackDays        int
	RequestDelaySeconds int
	MaxConcurrentJobs   int
	SyncEnabled         bool
}

type collectSummary struct {
	Accounts  int
	Succeeded int
	Failed    int
	Snapshots int64
}

// SnapshotSyncService coleta periodicamente os snapshots das contas configuradas.
// Recoletar dias já gravados substitui os valores anteriores.
type SnapshotSyncService struct {
	scheduler           *gocron.Scheduler
	config              SnapshotSyncConfig
	accountIDs          []string
	collector           SnapshotCollector
	importer            SnapshotImporter
	now                 func() time.Time
	sleep               func(ctx context.Context, d time.Duration)
	syncRunning         bool
	syncMutex           sync.Mutex
	lastSyncStartedAt   time.Time
	lastSyncCompletedAt time.Time
	lastSummary         collectSummary
}

func NewSnapshotSyncService(
	collector SnapshotCollector,
	importer SnapshotImporter,
	appConfig *config.Config,
) *SnapshotSyncService {
	syncConfig := SnapshotSyncConfig{
		CronSchedule:        appConfig.SnapshotSync.CronSchedule,
		LookbackDays:        max(appConfig.SnapshotSync.LookbackDays, 1),
		RequestDelaySeconds: max(appConfig.SnapshotSync.RequestDelaySeconds, 0),
		MaxConcurrentJobs:   max(appConfig.SnapshotSync.MaxConcurrentJobs, 1),
		SyncEnabled:         appConfig.SnapshotSync.Enabled,
	}

	logrus.WithFields(logrus.Fields{
		"cron_schedule":         syncConfig.CronSchedule,
		"lookback_days":         syncConfig.LookbackDays,
		"request_delay_seconds": syncConfig.RequestDelaySeconds,
		"max_concurrent_jobs":   syncConfig.MaxConcurrentJobs,
		"sync_enabled":          syncConfig.SyncEnabled,
		"accounts":              len(appConfig.Meta.AdAccountIDs),
	}).Info("Configuração do agendador de coleta de snapshots carregada")

	return &SnapshotSyncService{
		scheduler:  gocron.NewScheduler(time.UTC),
		config:     syncConfig,
		accountIDs: appConfig.Meta.AdAccountIDs,
		collector:  collector,
		importer:   importer,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Start inicia o agendador
func (s *SnapshotSyncService) Start(ctx context.Context) error {
	if !s.config.SyncEnabled {
		logrus.Info("Coleta de snapshots desabilitada por configuração")
		return nil
	}
	if len(s.accountIDs) == 0 {
		logrus.Warn("Coleta de snapshots habilitada sem contas configuradas (META_AD_ACCOUNT_IDS)")
	}

	logrus.WithField("cron", s.config.CronSchedule).Info("Iniciando agendador de coleta de snapshots")

	_, err := s.scheduler.Cron(s.config.CronSchedule).Do(func() {
		s.syncAllAccounts(ctx)
	})
	if err != nil {
		return fmt.Errorf("erro ao agendar coleta de snapshots: %w", err)
	}

	s.scheduler.StartAsync()

	go func() {
		<-ctx.Done()
		logrus.Info("Parando agendador de coleta de snapshots")
		s.scheduler.Stop()
	}()

	return nil
}

func (s *SnapshotSyncService) syncAllAccounts(ctx context.Context) {
	s.syncMutex.Lock()
	if s.syncRunning {
		s.syncMutex.Unlock()
		logrus.Info("Coleta de snapshots já em andamento, ignorando")
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
	summary := s.runSync(ctx)

	logrus.WithFields(logrus.Fields{
		"duration":  time.Since(startTime).String(),
		"accounts":  summary.Accounts,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"snapshots": summary.Snapshots,
	}).Info("Coleta de snapshots concluída")

	s.syncMutex.Lock()
	s.lastSummary = summary
	s.lastSyncCompletedAt = s.now()
	s.syncMutex.Unlock()
}

// period cobre os últimos LookbackDays dias até ontem
func (s *SnapshotSyncService) period() domain.DateRange {
	end := utils.Yesterday(s.now())
	return domain.DateRange{Start: end.AddDate(0, 0, -(s.config.LookbackDays - 1)), End: end}
}

func (s *SnapshotSyncService) runSync(ctx context.Context) collectSummary {
	summary := collectSummary{Accounts: len(s.accountIDs)}
	if len(s.accountIDs) == 0 {
		logrus.Info("Nenhuma conta configurada para coleta de snapshots")
		return summary
	}

	period := s.period()
	logrus.WithFields(logrus.Fields{
		"accounts":   len(s.accountIDs),
		"start_date": period.Start.Format(time.DateOnly),
		"end_date":   period.End.Format(time.DateOnly),
	}).Info("Período para coleta de snapshots")

	semaphore := make(chan struct{}, s.config.MaxConcurrentJobs)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, accountID := range s.accountIDs {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(accountID string) {
			defer func() {
				// Aguardar antes de liberar a vaga para evitar sobrecarga na API
				s.sleep(ctx, time.Duration(s.config.RequestDelaySeconds)*time.Second)
				<-semaphore
				wg.Done()
			}()

			saved, err := s.collectAccount(ctx, accountID, period)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				return
			}
			summary.Succeeded++
			summary.Snapshots += saved
		}(accountID)
	}

	wg.Wait()
	return summary
}

func (s *SnapshotSyncService) collectAccount(ctx context.Context, accountID string, period domain.DateRange) (int64, error) {
	snapshots, err := s.collector.CollectSnapshots(ctx, accountID, period)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"account_id": accountID,
			"error":      err.Error(),
		}).Error("Erro ao coletar snapshots da conta")
		return 0, err
	}
	if len(snapshots) == 0 {
		logrus.WithField("account_id", accountID).Info("Conta sem entrega no período")
		return 0, nil
	}

	result, err := s.importer.ImportSnapshots(ctx, snapshots)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"account_id": accountID,
			"snapshots":  len(snapshots),
			"error":      err.Error(),
		}).Error("Erro ao gravar snapshots coletados")
		return 0, err
	}

	return result.Saved, nil
}

// TriggerManualSync inicia manualmente a coleta de todas as contas
func (s *SnapshotSyncService) TriggerManualSync(ctx context.Context) bool {
	s.syncMutex.Lock()
	if s.syncRunning {
		s.syncMutex.Unlock()
		logrus.Info("Coleta de snapshots já em andamento, ignorando solicitação manual")
		return false
	}
	s.syncMutex.Unlock()

	logrus.Info("Iniciando coleta manual de snapshots")
	go s.syncAllAccounts(context.WithoutCancel(ctx))
	return true
}

// GetStatus retorna o status atual do agendador
func (s *SnapshotSyncService) GetStatus() map[string]any {
	s.syncMutex.Lock()
	defer s.syncMutex.Unlock()

	return map[string]any{
		"sync_enabled":           s.config.SyncEnabled,
		"sync_cron":              s.config.CronSchedule,
		"sync_lookback_days":     s.config.LookbackDays,
		"sync_accounts":          len(s.accountIDs),
		"sync_running":           s.syncRunning,
		"last_sync_started_at":   s.lastSyncStartedAt,
		"last_sync_completed_at": s.lastSyncCompletedAt,
		"last_sync_failed":       s.lastSummary.Failed,
		"last_sync_snapshots":    s.lastSummary.Snapshots,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
