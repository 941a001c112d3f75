package metaclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	metadomain "github.com/vfg2006/traffic-diagnostics-api/infrastructure/integrator/meta/domain"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

const (
	campaignInsightFields    = "account_id,campaign_id,campaign_name,objective,spend,impressions,reach,frequency,cpm,ctr,actions"
	attributionInsightFields = "account_id,campaign_id,objective,actions"
	// janela estendida usada como atribuição incremental
	incrementalAttributionWindows = `["28d_click","28d_view"]`
	insightsPageLimit             = "500"
	maxInsightPages               = 200
)

type timeRange struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

// GetCampaignDailyInsights busca uma linha por campanha e dia do período, seguindo a paginação
func (c *MetaClient) GetCampaignDailyInsights(ctx context.Context, accountID string, period domain.DateRange) ([]metadomain.CampaignInsight, error) {
	insights, err := c.campaignInsights(ctx, accountID, period, campaignInsightFields, nil)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"account_id": accountID,
		"start_date": period.Start.Format(time.DateOnly),
		"end_date":   period.End.Format(time.DateOnly),
		"rows":       len(insights),
	}).Debug("insights: linhas diárias de campanhas obtidas")

	return insights, nil
}

// GetCampaignAttributedActions busca as ações por campanha e dia contadas na
// janela de 28 dias após clique ou visualização
func (c *MetaClient) GetCampaignAttributedActions(ctx context.Context, accountID string, period domain.DateRange) ([]metadomain.CampaignInsight, error) {
	extra := url.Values{}
	extra.Set("action_attribution_windows", incrementalAttributionWindows)
	return c.campaignInsights(ctx, accountID, period, attributionInsightFields, extra)
}

func (c *MetaClient) campaignInsights(ctx context.Context, accountID string, period domain.DateRange, fields string, extra url.Values) ([]metadomain.CampaignInsight, error) {
	rangeParam, err := timeRangeParam(period)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/insights", c.cfg.URL, AdAccountPath(accountID))
	params := url.Values{}
	params.Set("level", "campaign")
	params.Set("time_increment", "1")
	params.Set("fields", fields)
	params.Set("time_range", rangeParam)
	params.Set("limit", insightsPageLimit)
	for k, v := range extra {
		params[k] = v
	}

	insights, err := paginate[metadomain.CampaignInsight](ctx, c, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar insights da conta %s: %w", accountID, err)
	}
	return insights, nil
}

// paginate segue o link "next" acumulando as linhas de cada página
func paginate[T any](ctx context.Context, c *MetaClient, endpoint string, params url.Values) ([]T, error) {
	rows := make([]T, 0)
	for page := 0; endpoint != ""; page++ {
		if page == maxInsightPages {
			logrus.WithField("endpoint", endpoint).Warn("Limite de páginas atingido; resultado truncado")
			break
		}

		var response metadomain.Page[T]
		if err := c.get(ctx, endpoint, params, &response); err != nil {
			return nil, err
		}
		rows = append(rows, response.Data...)

		var err error
		endpoint, params, err = nextPage(response.Paging.Next)
		if err != nil {
			return nil, fmt.Errorf("erro ao interpretar paginação: %w", err)
		}
	}
	return rows, nil
}

func timeRangeParam(period domain.DateRange) (string, error) {
	raw, err := json.Marshal(timeRange{
		Since: period.Start.Format(time.DateOnly),
		Until: period.End.Format(time.DateOnly),
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// AdAccountPath prefixa o id da conta com "act_" quando necessário
func AdAccountPath(accountID string) string {
	if strings.HasPrefix(accountID, "act_") {
		return accountID
	}
	return "act_" + accountID
}

// nextPage separa o link "next" em endpoint e parâmetros, descartando o token embutido
func nextPage(next string) (string, url.Values, error) {
	if next == "" {
		return "", nil, nil
	}

	u, err := url.Parse(next)
	if err != nil {
		return "", nil, err
	}
	params := u.Query()
	params.Del("access_token")
	u.RawQuery = ""

	return u.String(), params, nil
}
