package meta

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	metadomain "github.com/vfg2006/traffic-diagnostics-api/infrastructure/integrator/meta/domain"
	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/integrator/meta/metaclient"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

var ErrInvalidInsight = errors.New("insight inválido")

// Collector converte os insights diários de campanhas da Meta em snapshots
type Collector struct {
	client metaclient.Client
}

func New(client metaclient.Client) *Collector {
	return &Collector{client: client}
}

// CollectSnapshots devolve um snapshot por campanha e dia do período. Linhas que
// não podem ser convertidas são descartadas com log. A atribuição de 28 dias e
// as estatísticas de pixel são complementares: sem elas os campos ficam vazios.
func (c *Collector) CollectSnapshots(ctx context.Context, accountID string, period domain.DateRange) ([]domain.Snapshot, error) {
	var (
		insights    []metadomain.CampaignInsight
		incremental map[string]metadomain.CampaignInsight
		pixelDays   map[string]metadomain.PixelDay
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		insights, err = c.client.GetCampaignDailyInsights(gctx, accountID, period)
		return err
	})
	g.Go(func() error {
		incremental = c.incrementalRows(gctx, accountID, period)
		return nil
	})
	g.Go(func() error {
		pixelDays = c.pixelDays(gctx, accountID, period)
		return nil
	})
	if err := g.Wait(); err != nil {
		logrus.WithFields(logrus.Fields{
			"account_id": accountID,
			"error":      err.Error(),
		}).Error("insights: failed to get campaign insights from API")
		return nil, err
	}

	snapshots := make([]domain.Snapshot, 0, len(insights))
	skipped := 0
	for _, insight := range insights {
		extra := Enrichment{}
		if row, ok := incremental[rowKey(insight.CampaignID, insight.DateStart)]; ok {
			extra.Incremental = &row
		}
		if day, ok := pixelDays[insight.DateStart]; ok {
			extra.Pixel = &day
		}

		snapshot, err := FactorySnapshot(accountID, insight, extra)
		if err != nil {
			skipped++
			logrus.WithFields(logrus.Fields{
				"account_id":  accountID,
				"campaign_id": insight.CampaignID,
				"date":        insight.DateStart,
				"error":       err.Error(),
			}).Warn("insights: discarding campaign insight")
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	logrus.WithFields(logrus.Fields{
		"account_id":  accountID,
		"snapshots":   len(snapshots),
		"skipped":     skipped,
		"attribution": len(incremental),
		"pixel_days":  len(pixelDays),
	}).Info("insights: campaign snapshots collected")

	return snapshots, nil
}

// incrementalRows indexa por campanha e dia as linhas da janela de 28 dias
func (c *Collector) incrementalRows(ctx context.Context, accountID string, period domain.DateRange) map[string]metadomain.CampaignInsight {
	rows, err := c.client.GetCampaignAttributedActions(ctx, accountID, period)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"account_id": accountID,
			"error":      err.Error(),
		}).Warn("insights: incremental attribution not available")
		return nil
	}

	out := make(map[string]metadomain.CampaignInsight, len(rows))
	for _, row := range rows {
		out[rowKey(row.CampaignID, row.DateStart)] = row
	}
	return out
}

// pixelDays soma por dia os eventos de todos os pixels da conta. Um pixel sem
// estatísticas é ignorado e os demais seguem compondo a taxa.
func (c *Collector) pixelDays(ctx context.Context, accountID string, period domain.DateRange) map[string]metadomain.PixelDay {
	logger := logrus.WithField("account_id", accountID)

	pixels, err := c.client.GetAdsPixels(ctx, accountID)
	if err != nil {
		logger.WithError(err).Warn("pixels: could not list account pixels")
		return nil
	}

	days := make(map[string]metadomain.PixelDay)
	for _, pixel := range pixels {
		stats, err := c.client.GetPixelDailyStats(ctx, pixel.ID, period)
		if err != nil {
			logger.WithError(err).WithField("pixel_id", pixel.ID).Warn("pixels: could not fetch pixel stats")
			continue
		}

		for _, stat := range stats {
			received, err := parseInt("events_received", stat.EventsReceived)
			if err != nil {
				logger.WithError(err).WithField("pixel_id", pixel.ID).Warn("pixels: discarding pixel stat")
				continue
			}
			matched, err := parseInt("events_matched", stat.EventsMatched)
			if err != nil {
				logger.WithError(err).WithField("pixel_id", pixel.ID).Warn("pixels: discarding pixel stat")
				continue
			}

			day := days[stat.DateStart]
			day.Received += received
			day.Matched += matched
			days[stat.DateStart] = day
		}
	}
	return days
}

func rowKey(campaignID, date string) string {
	return campaignID + "|" + date
}

// Enrichment complementa a linha diária com dados de outras chamadas da Meta
type Enrichment struct {
	// Incremental é a mesma campanha e dia consultados na janela de 28 dias
	Incremental *metadomain.CampaignInsight
	// Pixel soma os eventos dos pixels da conta no dia
	Pixel *metadomain.PixelDay
}

// FactorySnapshot converte uma linha diária de campanha. A conta do snapshot é a
// informada pela Meta; sem ela, usa-se o id consultado sem o prefixo "act_".
// As conversões atribuídas só são preenchidas quando as duas janelas trazem a
// ação do objetivo, para que a razão entre elas seja comparável.
func FactorySnapshot(accountID string, insight metadomain.CampaignInsight, extra Enrichment) (domain.Snapshot, error) {
	if insight.CampaignID == "" {
		return domain.Snapshot{}, fmt.Errorf("%w: campaign_id ausente", ErrInvalidInsight)
	}

	date, err := time.Parse(time.DateOnly, insight.DateStart)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: date_start %q", ErrInvalidInsight, insight.DateStart)
	}
	if insight.DateStop != "" && insight.DateStop != insight.DateStart {
		return domain.Snapshot{}, fmt.Errorf("%w: linha não diária %s..%s", ErrInvalidInsight, insight.DateStart, insight.DateStop)
	}

	spend, err := parseFloat("spend", insight.Spend)
	if err != nil {
		return domain.Snapshot{}, err
	}
	impressions, err := parseInt("impressions", insight.Impressions)
	if err != nil {
		return domain.Snapshot{}, err
	}
	reach, err := parseInt("reach", insight.Reach)
	if err != nil {
		return domain.Snapshot{}, err
	}
	ctr, err := parseFloat("ctr", insight.CTR)
	if err != nil {
		return domain.Snapshot{}, err
	}

	snapshot := domain.Snapshot{
		EntityID:    insight.CampaignID,
		AccountID:   insight.AccountID,
		Date:        date,
		Spend:       spend,
		Impressions: impressions,
		Reach:       reach,
		CTR:         ctr,
	}
	if snapshot.AccountID == "" {
		snapshot.AccountID = strings.TrimPrefix(accountID, "act_")
	}

	if insight.CPM != "" {
		cpm, err := parseFloat("cpm", insight.CPM)
		if err != nil {
			return domain.Snapshot{}, err
		}
		snapshot.CPM = &cpm
	}

	raw, hasResult := insight.ResultAction()
	if hasResult {
		conversions, err := parseFloat("actions", raw)
		if err != nil {
			return domain.Snapshot{}, err
		}
		snapshot.Conversions = conversions
	}

	if extra.Incremental != nil && hasResult {
		if rawIncremental, ok := extra.Incremental.ResultAction(); ok {
			incremental, err := parseFloat("actions_28d", rawIncremental)
			if err != nil {
				return domain.Snapshot{}, err
			}
			standard := snapshot.Conversions
			snapshot.AttributedConversionsStandard = &standard
			snapshot.AttributedConversionsIncremental = &incremental
		}
	}

	if extra.Pixel != nil {
		if rate, ok := extra.Pixel.MatchRate(); ok {
			snapshot.PixelMatchRate = &rate
		}
	}

	if err := snapshot.Validate(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidInsight, err)
	}
	return snapshot, nil
}

// parseFloat trata campo vazio como zero; a API omite métricas sem entrega
func parseFloat(field, value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidInsight, field, value)
	}
	return v, nil
}

func parseInt(field, value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidInsight, field, value)
	}
	return v, nil
}
