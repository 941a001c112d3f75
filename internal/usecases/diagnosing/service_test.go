package diagnosing

import (
	"context"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/repository/mocks"
	"github.com/vfg2006/traffic-diagnostics-api/internal/config"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

var fixedNow = time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, ctrl *gomock.Controller) (*Service, *mocks.MockSnapshotRepository, *mocks.MockEvidenceRepository) {
	t.Helper()
	snapshotRepo := mocks.NewMockSnapshotRepository(ctrl)
	evidenceRepo := mocks.NewMockEvidenceRepository(ctrl)

	cfg := &config.Config{Diagnostic: config.Diagnostic{Workers: 2}}
	diagnoser, err := NewService(cfg, snapshotRepo, evidenceRepo)
	require.NoError(t, err)

	service := diagnoser.(*Service)
	service.now = func() time.Time { return fixedNow }
	return service, snapshotRepo, evidenceRepo
}

func TestNewService(t *testing.T) {
	t.Run("Aplica thresholds da configuração", func(t *testing.T) {
		cfg := &config.Config{Diagnostic: config.Diagnostic{
			Thresholds: map[string]float64{"window_days": 21},
		}}

		diagnoser, err := NewService(cfg, nil, nil)

		require.NoError(t, err)
		assert.Equal(t, 21.0, diagnoser.Thresholds().WindowDays)
	})

	t.Run("Rejeita thresholds fora do domínio", func(t *testing.T) {
		cfg := &config.Config{Diagnostic: config.Diagnostic{
			Thresholds: map[string]float64{"concentration_top_k_share": 0},
		}}

		_, err := NewService(cfg, nil, nil)

		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	})
}

func TestService_Diagnose(t *testing.T) {
	loadFilter := domain.SnapshotFilter{
		AccountID: "ACC001",
		StartDate: day(1),
		EndDate:   day(14),
	}

	t.Run("Persiste a execução com as evidências do intervalo", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, evidenceRepo := newTestService(t, ctrl)

		snapshotRepo.EXPECT().
			GetByDateRange(gomock.Any(), loadFilter).
			Return(fatigueSnapshots("C1"), nil)

		evidenceRepo.EXPECT().
			SaveRun(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, run *domain.DiagnosticRun, records []domain.EvidenceRecord) error {
				assert.NotEmpty(t, run.ID)
				assert.Equal(t, "ACC001", run.AccountID)
				assert.Equal(t, day(14), run.StartDate)
				assert.Equal(t, day(14), run.EndDate)
				assert.Equal(t, 1, run.EvidenceCount)
				assert.Equal(t, fixedNow, run.CreatedAt)
				require.Len(t, records, 1)
				assert.Equal(t, run.ID, records[0].RunID)
				return nil
			})

		result, err := service.Diagnose(context.Background(), &DiagnoseRequest{
			AccountID: "ACC001",
			StartDate: day(14),
			EndDate:   day(14),
		})

		require.NoError(t, err)
		assert.True(t, result.Persisted)
		require.Len(t, result.Evidence, 1)
		rec := result.Evidence[0]
		assert.Equal(t, domain.CategoryFatigue, rec.Category)
		assert.Equal(t, domain.SeverityModerate, rec.Severity)
		assert.Equal(t, domain.DirectionDegrading, rec.Direction)
		assert.Equal(t, day(1), rec.WindowStart)
		assert.Equal(t, fixedNow, rec.CreatedAt)
		assert.NotNil(t, result.Warnings)
		assert.Equal(t, 14.0, result.Thresholds["window_days"])
	})

	t.Run("Duração medida no relógio real mesmo com relógio fixo", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, _ := newTestService(t, ctrl)
		hook := logtest.NewGlobal()
		defer hook.Reset()

		snapshotRepo.EXPECT().
			GetByDateRange(gomock.Any(), loadFilter).
			Return(fatigueSnapshots("C1"), nil)

		_, err := service.Diagnose(context.Background(), &DiagnoseRequest{
			AccountID: "ACC001",
			StartDate: day(14),
			EndDate:   day(14),
			DryRun:    true,
		})
		require.NoError(t, err)

		var duration any
		for _, entry := range hook.AllEntries() {
			if entry.Message == "Diagnóstico concluído" {
				duration = entry.Data["duration_seconds"]
			}
		}
		require.NotNil(t, duration)
		assert.Less(t, duration.(float64), 60.0)
	})

	t.Run("Simulação não grava a execução", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, evidenceRepo := newTestService(t, ctrl)

		snapshotRepo.EXPECT().
			GetByDateRange(gomock.Any(), loadFilter).
			Return(fatigueSnapshots("C1"), nil)
		evidenceRepo.EXPECT().SaveRun(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		result, err := service.Diagnose(context.Background(), &DiagnoseRequest{
			AccountID: "ACC001",
			StartDate: day(14),
			EndDate:   day(14),
			DryRun:    true,
		})

		require.NoError(t, err)
		assert.False(t, result.Persisted)
		assert.Len(t, result.Evidence, 1)
		assert.True(t, result.Evidence[0].CreatedAt.IsZero())
	})

	t.Run("Evidências que terminam antes do intervalo são descartadas", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, _ := newTestService(t, ctrl)

		snapshotRepo.EXPECT().
			GetByDateRange(gomock.Any(), domain.SnapshotFilter{
				AccountID: "ACC001",
				StartDate: day(2),
				EndDate:   day(15),
			}).
			Return(fatigueSnapshots("C1"), nil)

		result, err := service.Diagnose(context.Background(), &DiagnoseRequest{
			AccountID: "ACC001",
			StartDate: day(15),
			EndDate:   day(15),
			DryRun:    true,
		})

		require.NoError(t, err)
		assert.Empty(t, result.Evidence)
	})

	t.Run("Thresholds da requisição ampliam o carregamento", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, _ := newTestService(t, ctrl)

		snapshotRepo.EXPECT().
			GetByDateRange(gomock.Any(), domain.SnapshotFilter{
				EntityIDs: []string{"C1"},
				StartDate: day(1),
				EndDate:   day(7),
			}).
			Return(nil, nil)

		result, err := service.Diagnose(context.Background(), &DiagnoseRequest{
			EntityIDs:  []string{"C1"},
			StartDate:  day(7),
			EndDate:    day(7),
			Thresholds: map[string]float64{"window_days": 7},
			DryRun:     true,
		})

		require.NoError(t, err)
		assert.Equal(t, 7.0, result.Thresholds["window_days"])
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, domain.WarningNoSeries, result.Warnings[0].Reason)
	})

	t.Run("Concentração considera todas as entidades da conta", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, _ := newTestService(t, ctrl)

		// C1 e C2 sozinhas passariam de 80%; com as irmãs a fatia cai para 27%
		snapshotRepo.EXPECT().
			GetByDateRange(gomock.Any(), loadFilter).
			Return(accountSpend(60, 10, 100), nil)

		result, err := service.Diagnose(context.Background(), &DiagnoseRequest{
			AccountID:  "ACC001",
			EntityIDs:  []string{"C1", "C2"},
			StartDate:  day(14),
			EndDate:    day(14),
			Categories: []domain.Category{domain.CategoryDeliveryConcentration},
			DryRun:     true,
		})

		require.NoError(t, err)
		assert.Empty(t, result.Evidence)
		assert.Empty(t, result.Warnings)
	})

	t.Run("Sem account_id a conta é resolvida pelas entidades", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, _ := newTestService(t, ctrl)

		full := accountSpend(400, 10, 10)
		var requested []domain.Snapshot
		for _, snap := range full {
			if snap.EntityID == "C1" || snap.EntityID == "C2" {
				requested = append(requested, snap)
			}
		}

		gomock.InOrder(
			snapshotRepo.EXPECT().
				GetByDateRange(gomock.Any(), domain.SnapshotFilter{
					EntityIDs: []string{"C1", "C2"},
					StartDate: day(1),
					EndDate:   day(14),
				}).
				Return(requested, nil),
			snapshotRepo.EXPECT().
				GetByDateRange(gomock.Any(), loadFilter).
				Return(full, nil),
		)

		result, err := service.Diagnose(context.Background(), &DiagnoseRequest{
			EntityIDs:  []string{"C1", "C2"},
			StartDate:  day(14),
			EndDate:    day(14),
			Categories: []domain.Category{domain.CategoryDeliveryConcentration},
			DryRun:     true,
		})

		require.NoError(t, err)
		require.Len(t, result.Evidence, 1)
		rec := result.Evidence[0]
		assert.Equal(t, "ACC001", rec.EntityID)
		assert.Equal(t, day(1), rec.WindowStart)
		assert.Equal(t, day(14), rec.WindowEnd)
		assert.InDelta(t, 400.0/440.0, rec.Magnitude, 1e-9)
	})

	t.Run("Falha ao gravar é reportada como erro de persistência", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, evidenceRepo := newTestService(t, ctrl)

		snapshotRepo.EXPECT().
			GetByDateRange(gomock.Any(), loadFilter).
			Return(fatigueSnapshots("C1"), nil)
		evidenceRepo.EXPECT().
			SaveRun(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.New("deadlock detected"))

		result, err := service.Diagnose(context.Background(), &DiagnoseRequest{
			AccountID: "ACC001",
			StartDate: day(14),
			EndDate:   day(14),
		})

		assert.Nil(t, result)
		assert.True(t, errors.Is(err, ErrDiagnosticPersistence))
	})

	t.Run("Falha ao buscar snapshots", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, _ := newTestService(t, ctrl)

		snapshotRepo.EXPECT().
			GetByDateRange(gomock.Any(), loadFilter).
			Return(nil, errors.New("connection refused"))

		_, err := service.Diagnose(context.Background(), &DiagnoseRequest{
			AccountID: "ACC001",
			StartDate: day(14),
			EndDate:   day(14),
		})

		require.Error(t, err)
		assert.False(t, IsClientError(err))
	})

	invalid := []struct {
		name string
		req  *DiagnoseRequest
	}{
		{
			name: "Requisição vazia",
		},
		{
			name: "Sem conta nem entidades",
			req:  &DiagnoseRequest{StartDate: day(1), EndDate: day(14)},
		},
		{
			name: "Data final antes da inicial",
			req:  &DiagnoseRequest{AccountID: "ACC001", StartDate: day(14), EndDate: day(1)},
		},
		{
			name: "Datas ausentes",
			req:  &DiagnoseRequest{AccountID: "ACC001"},
		},
		{
			name: "Threshold desconhecido",
			req: &DiagnoseRequest{
				AccountID:  "ACC001",
				StartDate:  day(1),
				EndDate:    day(14),
				Thresholds: map[string]float64{"window_size": 7},
			},
		},
		{
			name: "Threshold fora do domínio",
			req: &DiagnoseRequest{
				AccountID:  "ACC001",
				StartDate:  day(1),
				EndDate:    day(14),
				Thresholds: map[string]float64{"window_days": 0},
			},
		},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			service, _, _ := newTestService(t, ctrl)

			result, err := service.Diagnose(context.Background(), tt.req)

			assert.Nil(t, result)
			assert.True(t, IsClientError(err))
		})
	}
}

func TestService_ListEvidence(t *testing.T) {
	t.Run("Repassa o filtro ao repositório", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, _, evidenceRepo := newTestService(t, ctrl)

		category := domain.CategoryFatigue
		filter := domain.EvidenceFilter{AccountID: "ACC001", Category: &category, Limit: 10}
		expected := []domain.EvidenceRecord{{RunID: "run-1", Category: category}}
		evidenceRepo.EXPECT().List(gomock.Any(), filter).Return(expected, nil)

		records, err := service.ListEvidence(context.Background(), filter)

		require.NoError(t, err)
		assert.Equal(t, expected, records)
	})

	t.Run("Intervalo invertido", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, _, _ := newTestService(t, ctrl)

		start, end := day(10), day(1)
		_, err := service.ListEvidence(context.Background(), domain.EvidenceFilter{StartDate: &start, EndDate: &end})

		assert.True(t, IsClientError(err))
	})
}

func TestService_GetRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	service, _, evidenceRepo := newTestService(t, ctrl)

	_, err := service.GetRun(context.Background(), "")
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	evidenceRepo.EXPECT().GetRun(gomock.Any(), "run-1").Return(&domain.DiagnosticRun{ID: "run-1"}, nil)
	run, err := service.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
}

func TestService_ImportSnapshots(t *testing.T) {
	t.Run("Repetição no lote mantém a última ocorrência", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, _ := newTestService(t, ctrl)

		late := newSnapshot("C1", 1, withSpend(50))
		late.Date = late.Date.Add(18 * time.Hour)

		snapshotRepo.EXPECT().
			SaveOrUpdate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, snapshots []domain.Snapshot) (int64, error) {
				require.Len(t, snapshots, 2)
				assert.Equal(t, 50.0, snapshots[0].Spend)
				assert.Equal(t, day(1), snapshots[0].Date)
				assert.Equal(t, "C2", snapshots[1].EntityID)
				return 2, nil
			})

		result, err := service.ImportSnapshots(context.Background(), []domain.Snapshot{
			newSnapshot("C1", 1),
			newSnapshot("C2", 1),
			late,
		})

		require.NoError(t, err)
		assert.Equal(t, &ImportResult{Received: 3, Saved: 2}, result)
	})

	t.Run("Lote com snapshot inválido não grava nada", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, _ := newTestService(t, ctrl)
		snapshotRepo.EXPECT().SaveOrUpdate(gomock.Any(), gomock.Any()).Times(0)

		noDate := newSnapshot("C3", 1)
		noDate.Date = time.Time{}

		_, err := service.ImportSnapshots(context.Background(), []domain.Snapshot{
			newSnapshot("C1", 1),
			newSnapshot("C2", 1, withReach(20000)),
			noDate,
		})

		assert.True(t, errors.Is(err, ErrInvalidRequest))
		assert.True(t, errors.Is(err, domain.ErrReachAboveImpression))
	})

	t.Run("Lote vazio", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, _, _ := newTestService(t, ctrl)

		_, err := service.ImportSnapshots(context.Background(), nil)

		assert.True(t, errors.Is(err, ErrInvalidRequest))
	})
}

// accountSpend monta 14 dias da conta ACC001 com C1, C2 e três irmãs (C3..C5)
func accountSpend(c1, c2, others float64) []domain.Snapshot {
	var out []domain.Snapshot
	for n := 1; n <= 14; n++ {
		out = append(out,
			newSnapshot("C1", n, withSpend(c1)),
			newSnapshot("C2", n, withSpend(c2)),
		)
		for _, id := range []string{"C3", "C4", "C5"} {
			out = append(out, newSnapshot(id, n, withSpend(others)))
		}
	}
	return out
}

func TestService_ListSnapshots(t *testing.T) {
	t.Run("Normaliza o intervalo e consulta o repositório", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		service, snapshotRepo, _ := newTestService(t, ctrl)

		snapshotRepo.EXPECT().
			GetByDateRange(gomock.Any(), domain.SnapshotFilter{
				AccountID: "ACC001",
				EntityIDs: []string{"C1"},
				StartDate: day(1),
				EndDate:   day(14),
			}).
			Return(nil, nil)

		snapshots, err := service.ListSnapshots(context.Background(), domain.SnapshotFilter{
			AccountID: "ACC001",
			EntityIDs: []string{"C1"},
			StartDate: day(1).Add(8 * time.Hour),
			EndDate:   day(14).Add(20 * time.Hour),
		})

		require.NoError(t, err)
		assert.NotNil(t, snapshots)
		assert.Empty(t, snapshots)
	})

	invalid := []struct {
		name   string
		filter domain.SnapshotFilter
	}{
		{"Sem conta nem entidades", domain.SnapshotFilter{StartDate: day(1), EndDate: day(14)}},
		{"Datas ausentes", domain.SnapshotFilter{AccountID: "ACC001"}},
		{"Data final antes da inicial", domain.SnapshotFilter{AccountID: "ACC001", StartDate: day(14), EndDate: day(1)}},
		{"Intervalo longo demais", domain.SnapshotFilter{AccountID: "ACC001", StartDate: day(1), EndDate: day(1).AddDate(1, 1, 0)}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			service, _, _ := newTestService(t, ctrl)

			_, err := service.ListSnapshots(context.Background(), tt.filter)

			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}
}
