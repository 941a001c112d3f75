package diagnosing

import (
	"context"
	"time"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

// Origens de execução usadas em logs e métricas
const (
	TriggerAPI       = "api"
	TriggerScheduler = "scheduler"
)

type DiagnoseRequest struct {
	AccountID  string             `json:"account_id"`
	EntityIDs  []string           `json:"entity_ids"`
	StartDate  time.Time          `json:"start_date"`
	EndDate    time.Time          `json:"end_date"`
	Categories []domain.Category  `json:"categories"`
	Thresholds map[string]float64 `json:"thresholds"`
	DryRun     bool               `json:"dry_run"`
	Trigger    string             `json:"-"`
}

type DiagnoseResult struct {
	RunID      string                  `json:"run_id"`
	Range      domain.DateRange        `json:"range"`
	Categories []domain.Category       `json:"categories"`
	Thresholds map[string]float64      `json:"thresholds"`
	Evidence   []domain.EvidenceRecord `json:"evidence"`
	Warnings   []domain.Warning        `json:"warnings"`
	Persisted  bool                    `json:"persisted"`
}

type ImportResult struct {
	Received int   `json:"received"`
	Saved    int64 `json:"saved"`
}

type Diagnoser interface {
	Diagnose(ctx context.Context, req *DiagnoseRequest) (*DiagnoseResult, error)
	ListEvidence(ctx context.Context, filter domain.EvidenceFilter) ([]domain.EvidenceRecord, error)
	GetRun(ctx context.Context, id string) (*domain.DiagnosticRun, error)
	ImportSnapshots(ctx context.Context, snapshots []domain.Snapshot) (*ImportResult, error)
	ListSnapshots(ctx context.Context, filter domain.SnapshotFilter) ([]domain.Snapshot, error)
	Thresholds() Thresholds
}
