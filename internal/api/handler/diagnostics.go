package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/diagnosing"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/apiErrors"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/log"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/middleware"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxEvidenceLimit = 5000

type diagnoseRequest struct {
	AccountID  string             `json:"account_id"`
	EntityIDs  []string           `json:"entity_ids"`
	StartDate  string             `json:"start_date"`
	EndDate    string             `json:"end_date"`
	Categories []domain.Category  `json:"categories"`
	Thresholds map[string]float64 `json:"thresholds"`
	DryRun     bool               `json:"dry_run"`
}

func (req diagnoseRequest) toDomain() (*diagnosing.DiagnoseRequest, error) {
	if req.StartDate == "" || req.EndDate == "" {
		return nil, errors.New("start_date e end_date são obrigatórios")
	}
	startDate, err := utils.ParseDate(req.StartDate)
	if err != nil {
		return nil, errors.Wrap(err, "start_date inválido")
	}
	endDate, err := utils.ParseDate(req.EndDate)
	if err != nil {
		return nil, errors.Wrap(err, "end_date inválido")
	}

	return &diagnosing.DiagnoseRequest{
		AccountID:  req.AccountID,
		EntityIDs:  req.EntityIDs,
		StartDate:  *startDate,
		EndDate:    *endDate,
		Categories: req.Categories,
		Thresholds: req.Thresholds,
		DryRun:     req.DryRun,
		Trigger:    diagnosing.TriggerAPI,
	}, nil
}

func RunDiagnostic(service diagnosing.Diagnoser) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		var body diagnoseRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			logger.WithField("error", err.Error()).Warn("diagnostics: invalid request body")
			apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, "Corpo da requisição inválido", err.Error())
			return
		}

		req, err := body.toDomain()
		if err != nil {
			apiErrors.WriteError(w, apiErrors.ErrMissingRequiredData, err.Error(), nil)
			return
		}

		if !canAccessAccount(r.Context(), req.AccountID) {
			apiErrors.WriteError(w, apiErrors.ErrInsufficientPrivilege, "Você não tem acesso a esta conta", nil)
			return
		}

		logger.WithFields(log.Fields{
			"account_id": req.AccountID,
			"entities":   len(req.EntityIDs),
			"start_date": req.StartDate.Format(time.DateOnly),
			"end_date":   req.EndDate.Format(time.DateOnly),
			"dry_run":    req.DryRun,
		}).Info("diagnostics: running diagnostic")

		result, err := service.Diagnose(r.Context(), req)
		if err != nil {
			writeDiagnosticError(w, logger, err)
			return
		}

		logger.WithFields(log.Fields{
			"run_id":     result.RunID,
			"account_id": req.AccountID,
			"evidence":   len(result.Evidence),
			"warnings":   len(result.Warnings),
		}).Info("diagnostics: diagnostic completed")

		status := http.StatusCreated
		if !result.Persisted {
			status = http.StatusOK
		}
		writeJSON(w, logger, status, result)
	})
}

func ListEvidence(service diagnosing.Diagnoser) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		filter, err := parseEvidenceFilter(r)
		if err != nil {
			logger.WithField("error", err.Error()).Warn("diagnostics: invalid evidence filter")
			apiErrors.WriteError(w, apiErrors.ErrInvalidRequest, err.Error(), nil)
			return
		}

		claims, _ := middleware.ClaimsFromContext(r.Context())
		if !middleware.IsPrivileged(claims) {
			if filter.AccountID == "" {
				apiErrors.WriteError(w, apiErrors.ErrMissingRequiredData, "account_id é obrigatório", nil)
				return
			}
			if !canAccessAccount(r.Context(), filter.AccountID) {
				apiErrors.WriteError(w, apiErrors.ErrInsufficientPrivilege, "Você não tem acesso a esta conta", nil)
				return
			}
		}

		records, err := service.ListEvidence(r.Context(), filter)
		if err != nil {
			writeDiagnosticError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, map[string]any{
			"evidence": records,
			"total":    len(records),
		})
	})
}

func GetDiagnosticRun(service diagnosing.Diagnoser) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := httprouter.ParamsFromContext(r.Context()).ByName("id")
		ctx := log.WithRunID(r.Context(), id)
		logger := log.ForContext(ctx)

		run, err := service.GetRun(ctx, id)
		if err != nil {
			writeDiagnosticError(w, logger, err)
			return
		}
		if run == nil || !canAccessAccount(r.Context(), run.AccountID) {
			apiErrors.WriteError(w, apiErrors.ErrResourceNotFound, "Execução não encontrada", nil)
			return
		}

		writeJSON(w, logger, http.StatusOK, run)
	})
}

func GetThresholds(service diagnosing.Diagnoser) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		writeJSON(w, logger, http.StatusOK, map[string]any{
			"thresholds": service.Thresholds().Map(),
			"defaults":   diagnosing.DefaultThresholds().Map(),
			"categories": domain.AllCategories,
		})
	})
}

func parseEvidenceFilter(r *http.Request) (domain.EvidenceFilter, error) {
	query := r.URL.Query()
	filter := domain.EvidenceFilter{
		AccountID: query.Get("account_id"),
		EntityID:  query.Get("entity_id"),
	}

	if c := query.Get("category"); c != "" {
		category, err := domain.ParseCategory(c)
		if err != nil {
			return filter, err
		}
		filter.Category = &category
	}

	if s := query.Get("start_date"); s != "" {
		startDate, err := utils.ParseDate(s)
		if err != nil {
			return filter, errors.Wrap(err, "start_date inválido")
		}
		filter.StartDate = startDate
	}
	if s := query.Get("end_date"); s != "" {
		endDate, err := utils.ParseDate(s)
		if err != nil {
			return filter, errors.Wrap(err, "end_date inválido")
		}
		filter.EndDate = endDate
	}

	if s := query.Get("limit"); s != "" {
		limit, err := strconv.ParseUint(s, 10, 64)
		if err != nil || limit == 0 || limit > maxEvidenceLimit {
			return filter, errors.Errorf("limit deve estar entre 1 e %d", maxEvidenceLimit)
		}
		filter.Limit = limit
	}

	return filter, nil
}

// canAccessAccount libera perfis administrativos e clientes vinculados à conta
func canAccessAccount(ctx context.Context, accountID string) bool {
	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		return false
	}
	if middleware.IsPrivileged(claims) {
		return true
	}
	return accountID != "" && claims.CanAccessAccount(accountID)
}

func writeDiagnosticError(w http.ResponseWriter, logger log.Logger, err error) {
	var cfgErr *diagnosing.InvalidConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		logger.WithField("error", err.Error()).Warn("diagnostics: invalid thresholds")
		apiErrors.WriteError(w, apiErrors.ErrInvalidThresholds, err.Error(), map[string]any{
			"name":  cfgErr.Name,
			"value": cfgErr.Value,
		})
	case diagnosing.IsClientError(err):
		logger.WithField("error", err.Error()).Warn("diagnostics: invalid request")
		apiErrors.WriteError(w, apiErrors.ErrInvalidRequest, err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.WithField("error", err.Error()).Warn("diagnostics: request canceled")
		apiErrors.WriteError(w, apiErrors.ErrRequestCanceled, "Requisição cancelada", nil)
	case errors.Is(err, diagnosing.ErrDiagnosticPersistence):
		logger.WithField("error", err.Error()).Error("diagnostics: failed to persist run")
		apiErrors.WriteError(w, apiErrors.ErrDatabaseOperation, "Falha ao gravar o diagnóstico", nil)
	default:
		logger.WithField("error", err.Error()).Error("diagnostics: unexpected error")
		apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Erro interno do servidor", nil)
	}
}

func writeJSON(w http.ResponseWriter, logger log.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithField("error", err.Error()).Error("failed to encode response")
	}
}
