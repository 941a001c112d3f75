package handler

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/vfg2006/traffic-diagnostics-api/pkg/apiErrors"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/log"
)

// CronJobType define o tipo de cron job que será executada
const (
	CronJobTypeDiagnostics = "diagnostics"
	CronJobTypeSnapshots   = "snapshots"
)

// SyncTrigger é implementado pelos agendadores que aceitam execução manual
type SyncTrigger interface {
	TriggerManualSync(ctx context.Context) bool
	GetStatus() map[string]any
}

// CronJobServices contém os serviços de cron necessários para executar manualmente
type CronJobServices struct {
	DiagnosticSyncService SyncTrigger
	SnapshotSyncService   SyncTrigger
}

func (s CronJobServices) byType(cronType string) (SyncTrigger, bool) {
	switch cronType {
	case CronJobTypeDiagnostics:
		return s.DiagnosticSyncService, s.DiagnosticSyncService != nil
	case CronJobTypeSnapshots:
		return s.SnapshotSyncService, s.SnapshotSyncService != nil
	}
	return nil, false
}

// RunCronJob executa manualmente uma cron job específica
func RunCronJob(services CronJobServices) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())
		logger.Info("INIT - RunCronJob")

		cronType := httprouter.ParamsFromContext(r.Context()).ByName("type")
		if cronType == "" {
			apiErrors.WriteError(w, apiErrors.ErrMissingRequiredData, "Tipo de cron job não especificado", nil)
			return
		}

		service, ok := services.byType(cronType)
		if !ok {
			apiErrors.WriteError(w, apiErrors.ErrInvalidRequest, "Tipo de cron job inválido. Valores aceitos: diagnostics, snapshots", nil)
			return
		}

		if !service.TriggerManualSync(r.Context()) {
			apiErrors.WriteError(w, apiErrors.ErrJobRunning, "Cron job já está em andamento", map[string]any{"type": cronType})
			return
		}

		writeJSON(w, logger, http.StatusAccepted, map[string]any{
			"message": "Cron job iniciada com sucesso",
			"type":    cronType,
		})
	}
}

// GetCronStatus retorna o status das cron jobs
func GetCronStatus(services CronJobServices) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())
		logger.Info("INIT - GetCronStatus")

		status := map[string]any{}
		if services.DiagnosticSyncService != nil {
			status[CronJobTypeDiagnostics] = services.DiagnosticSyncService.GetStatus()
		}
		if services.SnapshotSyncService != nil {
			status[CronJobTypeSnapshots] = services.SnapshotSyncService.GetStatus()
		}

		writeJSON(w, logger, http.StatusOK, status)
	}
}
