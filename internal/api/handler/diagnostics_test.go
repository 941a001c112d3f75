package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/diagnosing"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/diagnosing/mocks"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/apiErrors"
)

func TestRunDiagnostic(t *testing.T) {
	const validBody = `{"account_id":"ACC001","start_date":"2024-03-01","end_date":"2024-03-14"}`

	tests := []struct {
		name           string
		claims         *domain.Claims
		body           string
		setup          func(service *mocks.MockDiagnoser)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:   "Execução persistida responde 201",
			claims: clientClaims,
			body:   validBody,
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					Diagnose(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, req *diagnosing.DiagnoseRequest) (*diagnosing.DiagnoseResult, error) {
						assert.Equal(t, "ACC001", req.AccountID)
						assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), req.StartDate)
						assert.Equal(t, diagnosing.TriggerAPI, req.Trigger)
						return &diagnosing.DiagnoseResult{RunID: "run-1", Persisted: true}, nil
					})
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:   "Simulação responde 200",
			claims: adminClaims,
			body:   `{"entity_ids":["C1"],"start_date":"2024-03-01","end_date":"2024-03-14","dry_run":true}`,
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					Diagnose(gomock.Any(), gomock.Any()).
					Return(&diagnosing.DiagnoseResult{RunID: "run-2"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Corpo malformado",
			claims:         adminClaims,
			body:           `{"account_id":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apiErrors.ErrInvalidFormat,
		},
		{
			name:           "Datas ausentes",
			claims:         adminClaims,
			body:           `{"account_id":"ACC001"}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apiErrors.ErrMissingRequiredData,
		},
		{
			name:           "Cliente sem vínculo com a conta",
			claims:         clientClaims,
			body:           `{"account_id":"ACC999","start_date":"2024-03-01","end_date":"2024-03-14"}`,
			expectedStatus: http.StatusForbidden,
			expectedCode:   apiErrors.ErrInsufficientPrivilege,
		},
		{
			name:           "Sem autenticação",
			body:           validBody,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   apiErrors.ErrInvalidToken,
		},
		{
			name:   "Threshold fora do domínio",
			claims: adminClaims,
			body:   validBody,
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					Diagnose(gomock.Any(), gomock.Any()).
					Return(nil, &diagnosing.InvalidConfigurationError{Name: "window_days", Value: 0})
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   apiErrors.ErrInvalidThresholds,
		},
		{
			name:   "Requisição inválida para o motor",
			claims: adminClaims,
			body:   validBody,
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					Diagnose(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: categoria desconhecida", diagnosing.ErrInvalidRequest))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apiErrors.ErrInvalidRequest,
		},
		{
			name:   "Falha ao persistir",
			claims: adminClaims,
			body:   validBody,
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					Diagnose(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: %w", diagnosing.ErrDiagnosticPersistence, errors.New("deadlock")))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   apiErrors.ErrDatabaseOperation,
		},
		{
			name:   "Requisição cancelada",
			claims: adminClaims,
			body:   validBody,
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					Diagnose(gomock.Any(), gomock.Any()).
					Return(nil, context.Canceled)
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   apiErrors.ErrRequestCanceled,
		},
		{
			name:   "Erro inesperado",
			claims: adminClaims,
			body:   validBody,
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					Diagnose(gomock.Any(), gomock.Any()).
					Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   apiErrors.ErrInternalServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := mocks.NewMockDiagnoser(ctrl)
			if tt.setup != nil {
				tt.setup(service)
			}

			rec := serve(Diagnostics(service), tt.claims, http.MethodPost, "/v1/diagnostics", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, rec).Code)
			}
		})
	}
}

func TestRunDiagnostic_ThresholdDetails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := mocks.NewMockDiagnoser(ctrl)
	service.EXPECT().
		Diagnose(gomock.Any(), gomock.Any()).
		Return(nil, &diagnosing.InvalidConfigurationError{Name: "concentration_top_k_share", Value: 1.5})

	rec := serve(Diagnostics(service), adminClaims, http.MethodPost, "/v1/diagnostics",
		`{"account_id":"ACC001","start_date":"2024-03-01","end_date":"2024-03-14","thresholds":{"concentration_top_k_share":1.5}}`)

	apiErr := decodeError(t, rec)
	details, ok := apiErr.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "concentration_top_k_share", details["name"])
	assert.Equal(t, 1.5, details["value"])
}

func TestListEvidence(t *testing.T) {
	tests := []struct {
		name           string
		claims         *domain.Claims
		target         string
		setup          func(service *mocks.MockDiagnoser)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:   "Cliente consulta a própria conta",
			claims: clientClaims,
			target: "/v1/diagnostics/evidence?account_id=ACC001&category=fatigue&start_date=2024-03-01&end_date=2024-03-31&limit=20",
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					ListEvidence(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, filter domain.EvidenceFilter) ([]domain.EvidenceRecord, error) {
						assert.Equal(t, "ACC001", filter.AccountID)
						require.NotNil(t, filter.Category)
						assert.Equal(t, domain.CategoryFatigue, *filter.Category)
						require.NotNil(t, filter.StartDate)
						require.NotNil(t, filter.EndDate)
						assert.Equal(t, uint64(20), filter.Limit)
						return []domain.EvidenceRecord{{RunID: "run-1"}}, nil
					})
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "Administrador consulta sem conta",
			claims: adminClaims,
			target: "/v1/diagnostics/evidence?entity_id=C1",
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					ListEvidence(gomock.Any(), domain.EvidenceFilter{EntityID: "C1"}).
					Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Cliente sem conta informada",
			claims:         clientClaims,
			target:         "/v1/diagnostics/evidence",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apiErrors.ErrMissingRequiredData,
		},
		{
			name:           "Cliente consultando outra conta",
			claims:         clientClaims,
			target:         "/v1/diagnostics/evidence?account_id=ACC002",
			expectedStatus: http.StatusForbidden,
			expectedCode:   apiErrors.ErrInsufficientPrivilege,
		},
		{
			name:           "Categoria inválida",
			claims:         adminClaims,
			target:         "/v1/diagnostics/evidence?category=creative",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apiErrors.ErrInvalidRequest,
		},
		{
			name:           "Limite acima do máximo",
			claims:         adminClaims,
			target:         "/v1/diagnostics/evidence?limit=9000",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apiErrors.ErrInvalidRequest,
		},
		{
			name:           "Data malformada",
			claims:         adminClaims,
			target:         "/v1/diagnostics/evidence?start_date=01-03-2024",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apiErrors.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := mocks.NewMockDiagnoser(ctrl)
			if tt.setup != nil {
				tt.setup(service)
			}

			rec := serve(Diagnostics(service), tt.claims, http.MethodGet, tt.target, "")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, rec).Code)
			}
		})
	}
}

func TestGetDiagnosticRun(t *testing.T) {
	tests := []struct {
		name           string
		claims         *domain.Claims
		run            *domain.DiagnosticRun
		expectedStatus int
	}{
		{
			name:           "Execução da conta do cliente",
			claims:         clientClaims,
			run:            &domain.DiagnosticRun{ID: "run-1", AccountID: "ACC001"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Execução de outra conta aparece como inexistente",
			claims:         clientClaims,
			run:            &domain.DiagnosticRun{ID: "run-1", AccountID: "ACC777"},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Execução inexistente",
			claims:         adminClaims,
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := mocks.NewMockDiagnoser(ctrl)
			service.EXPECT().GetRun(gomock.Any(), "run-1").Return(tt.run, nil)

			rec := serve(Diagnostics(service), tt.claims, http.MethodGet, "/v1/diagnostics/runs/run-1", "")

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestGetThresholds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	thresholds := diagnosing.DefaultThresholds()
	thresholds.WindowDays = 21
	service := mocks.NewMockDiagnoser(ctrl)
	service.EXPECT().Thresholds().Return(thresholds)

	rec := serve(Diagnostics(service), clientClaims, http.MethodGet, "/v1/diagnostics/thresholds", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Thresholds map[string]float64 `json:"thresholds"`
		Defaults   map[string]float64 `json:"defaults"`
		Categories []domain.Category  `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 21.0, body.Thresholds["window_days"])
	assert.Equal(t, 14.0, body.Defaults["window_days"])
	assert.Equal(t, domain.AllCategories, body.Categories)
}

func TestImportSnapshots(t *testing.T) {
	supervisor := &domain.Claims{UserID: 2, UserRoleID: 2}

	t.Run("Supervisor importa snapshots", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		service := mocks.NewMockDiagnoser(ctrl)
		service.EXPECT().
			ImportSnapshots(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, snapshots []domain.Snapshot) (*diagnosing.ImportResult, error) {
				require.Len(t, snapshots, 1)
				assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), snapshots[0].Date)
				require.NotNil(t, snapshots[0].PixelMatchRate)
				assert.Equal(t, 0.9, *snapshots[0].PixelMatchRate)
				return &diagnosing.ImportResult{Received: 1, Saved: 1}, nil
			})

		rec := serve(Snapshots(service), supervisor, http.MethodPost, "/v1/snapshots",
			`{"snapshots":[{"entity_id":"C1","account_id":"ACC001","date":"2024-03-01","spend":100,"impressions":10000,"reach":5000,"pixel_match_rate":0.9}]}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received":1,"saved":1}`, rec.Body.String())
	})

	invalid := []struct {
		name           string
		claims         *domain.Claims
		body           string
		expectedStatus int
	}{
		{"Cliente não importa", clientClaims, `{"snapshots":[]}`, http.StatusForbidden},
		{"Lote vazio", supervisor, `{"snapshots":[]}`, http.StatusBadRequest},
		{"Data malformada", supervisor, `{"snapshots":[{"entity_id":"C1","date":"03/01/2024"}]}`, http.StatusBadRequest},
		{"Data ausente", supervisor, `{"snapshots":[{"entity_id":"C1"}]}`, http.StatusBadRequest},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := mocks.NewMockDiagnoser(ctrl)

			rec := serve(Snapshots(service), tt.claims, http.MethodPost, "/v1/snapshots", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}

	t.Run("Snapshot rejeitado pelo serviço", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		service := mocks.NewMockDiagnoser(ctrl)
		service.EXPECT().
			ImportSnapshots(gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("%w: %w", diagnosing.ErrInvalidRequest, domain.ErrReachAboveImpression))

		rec := serve(Snapshots(service), supervisor, http.MethodPost, "/v1/snapshots",
			`{"snapshots":[{"entity_id":"C1","date":"2024-03-01","impressions":10,"reach":50}]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apiErrors.ErrInvalidRequest, decodeError(t, rec).Code)
	})
}

func TestListSnapshots(t *testing.T) {
	tests := []struct {
		name           string
		claims         *domain.Claims
		target         string
		setup          func(service *mocks.MockDiagnoser)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:   "Cliente consulta a própria conta",
			claims: clientClaims,
			target: "/v1/snapshots?account_id=ACC001&entity_id=C1&entity_id=C2&start_date=2024-03-01&end_date=2024-03-14",
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					ListSnapshots(gomock.Any(), domain.SnapshotFilter{
						AccountID: "ACC001",
						EntityIDs: []string{"C1", "C2"},
						StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
						EndDate:   time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
					}).
					Return([]domain.Snapshot{{EntityID: "C1", AccountID: "ACC001"}}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "Administrador consulta por entidade",
			claims: adminClaims,
			target: "/v1/snapshots?entity_id=C9&start_date=2024-03-01&end_date=2024-03-01",
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					ListSnapshots(gomock.Any(), gomock.Any()).
					Return([]domain.Snapshot{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Cliente sem conta informada",
			claims:         clientClaims,
			target:         "/v1/snapshots?entity_id=C1&start_date=2024-03-01&end_date=2024-03-14",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apiErrors.ErrMissingRequiredData,
		},
		{
			name:           "Cliente consultando outra conta",
			claims:         clientClaims,
			target:         "/v1/snapshots?account_id=ACC002&start_date=2024-03-01&end_date=2024-03-14",
			expectedStatus: http.StatusForbidden,
			expectedCode:   apiErrors.ErrInsufficientPrivilege,
		},
		{
			name:           "Intervalo ausente",
			claims:         adminClaims,
			target:         "/v1/snapshots?account_id=ACC001",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apiErrors.ErrInvalidRequest,
		},
		{
			name:   "Intervalo rejeitado pelo serviço",
			claims: adminClaims,
			target: "/v1/snapshots?account_id=ACC001&start_date=2024-03-14&end_date=2024-03-01",
			setup: func(service *mocks.MockDiagnoser) {
				service.EXPECT().
					ListSnapshots(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: %w", diagnosing.ErrInvalidRequest, domain.ErrInvalidDateRange))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apiErrors.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := mocks.NewMockDiagnoser(ctrl)
			if tt.setup != nil {
				tt.setup(service)
			}

			rec := serve(Snapshots(service), tt.claims, http.MethodGet, tt.target, "")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, rec).Code)
			}
		})
	}
}
