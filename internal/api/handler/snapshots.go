package handler

import (
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/diagnosing"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/apiErrors"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/log"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/middleware"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/utils"
)

const maxSnapshotsPerImport = 10000

// snapshotPayload recebe a data no formato YYYY-MM-DD
type snapshotPayload struct {
	EntityID                         string   `json:"entity_id"`
	AccountID                        string   `json:"account_id"`
	Date                             string   `json:"date"`
	Spend                            float64  `json:"spend"`
	Impressions                      int64    `json:"impressions"`
	Reach                            int64    `json:"reach"`
	CPM                              *float64 `json:"cpm"`
	CTR                              float64  `json:"ctr"`
	Conversions                      float64  `json:"conversions"`
	AttributedConversionsStandard    *float64 `json:"attributed_conversions_standard"`
	AttributedConversionsIncremental *float64 `json:"attributed_conversions_incremental"`
	PixelMatchRate                   *float64 `json:"pixel_match_rate"`
}

type importSnapshotsRequest struct {
	Snapshots []snapshotPayload `json:"snapshots"`
}

func (p snapshotPayload) toDomain() (domain.Snapshot, error) {
	if p.Date == "" {
		return domain.Snapshot{}, errors.Errorf("date obrigatório para a entidade %s", p.EntityID)
	}
	date, err := utils.ParseDate(p.Date)
	if err != nil {
		return domain.Snapshot{}, errors.Wrapf(err, "date inválido para a entidade %s", p.EntityID)
	}

	return domain.Snapshot{
		EntityID:                         p.EntityID,
		AccountID:                        p.AccountID,
		Date:                             *date,
		Spend:                            p.Spend,
		Impressions:                      p.Impressions,
		Reach:                            p.Reach,
		CPM:                              p.CPM,
		CTR:                              p.CTR,
		Conversions:                      p.Conversions,
		AttributedConversionsStandard:    p.AttributedConversionsStandard,
		AttributedConversionsIncremental: p.AttributedConversionsIncremental,
		PixelMatchRate:                   p.PixelMatchRate,
	}, nil
}

func ImportSnapshots(service diagnosing.Diagnoser) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		var body importSnapshotsRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			logger.WithField("error", err.Error()).Warn("snapshots: invalid request body")
			apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, "Corpo da requisição inválido", err.Error())
			return
		}

		if len(body.Snapshots) == 0 {
			apiErrors.WriteError(w, apiErrors.ErrMissingRequiredData, "Nenhum snapshot informado", nil)
			return
		}
		if len(body.Snapshots) > maxSnapshotsPerImport {
			apiErrors.WriteError(w, apiErrors.ErrInvalidRequest, "Quantidade de snapshots acima do limite", map[string]int{
				"max": maxSnapshotsPerImport,
			})
			return
		}

		snapshots := make([]domain.Snapshot, 0, len(body.Snapshots))
		for _, p := range body.Snapshots {
			s, err := p.toDomain()
			if err != nil {
				apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, err.Error(), nil)
				return
			}
			snapshots = append(snapshots, s)
		}

		result, err := service.ImportSnapshots(r.Context(), snapshots)
		if err != nil {
			writeDiagnosticError(w, logger, err)
			return
		}

		logger.WithFields(log.Fields{
			"received": result.Received,
			"saved":    result.Saved,
		}).Info("snapshots: import completed")

		writeJSON(w, logger, http.StatusOK, result)
	})
}

// ListSnapshots devolve os snapshots gravados. Clientes precisam informar uma
// conta vinculada ao token.
func ListSnapshots(service diagnosing.Diagnoser) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		filter, err := parseSnapshotFilter(r)
		if err != nil {
			logger.WithField("error", err.Error()).Warn("snapshots: invalid filter")
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

		snapshots, err := service.ListSnapshots(r.Context(), filter)
		if err != nil {
			writeDiagnosticError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, map[string]any{
			"snapshots": snapshots,
			"total":     len(snapshots),
		})
	})
}

// parseSnapshotFilter aceita entity_id repetido na query
func parseSnapshotFilter(r *http.Request) (domain.SnapshotFilter, error) {
	query := r.URL.Query()
	filter := domain.SnapshotFilter{AccountID: query.Get("account_id")}
	for _, id := range query["entity_id"] {
		if id != "" {
			filter.EntityIDs = append(filter.EntityIDs, id)
		}
	}

	for _, param := range []struct {
		name string
		dst  *time.Time
	}{
		{"start_date", &filter.StartDate},
		{"end_date", &filter.EndDate},
	} {
		raw := query.Get(param.name)
		if raw == "" {
			return filter, errors.Errorf("%s obrigatório", param.name)
		}
		date, err := utils.ParseDate(raw)
		if err != nil {
			return filter, errors.Wrapf(err, "%s inválido", param.name)
		}
		*param.dst = *date
	}

	return filter, nil
}
