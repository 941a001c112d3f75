package metaclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	metadomain "github.com/vfg2006/traffic-diagnostics-api/infrastructure/integrator/meta/domain"
	"github.com/vfg2006/traffic-diagnostics-api/internal/config"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

const defaultTimeout = 30 * time.Second

type Client interface {
	GetCampaignDailyInsights(ctx context.Context, accountID string, period domain.DateRange) ([]metadomain.CampaignInsight, error)
	GetCampaignAttributedActions(ctx context.Context, accountID string, period domain.DateRange) ([]metadomain.CampaignInsight, error)
	GetAdsPixels(ctx context.Context, accountID string) ([]metadomain.AdsPixel, error)
	GetPixelDailyStats(ctx context.Context, pixelID string, period domain.DateRange) ([]metadomain.PixelDailyStats, error)
}

type MetaClient struct {
	cfg        config.Meta
	httpClient *http.Client
	tokens     *TokenManager
}

func NewClient(cfg config.Meta, tokens *TokenManager, httpClient *http.Client) *MetaClient {
	return &MetaClient{
		cfg:        cfg,
		httpClient: httpClient,
		tokens:     tokens,
	}
}

// NewHTTPClient cria o cliente HTTP compartilhado pelo cliente e pelo gerenciador de tokens
func NewHTTPClient(cfg config.Meta) *http.Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// get executa um GET autenticado e decodifica a resposta em out. Uma renovação de
// token durante a chamada provoca uma única nova tentativa.
func (c *MetaClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		if err := c.tokens.EnsureValidToken(ctx); err != nil {
			return fmt.Errorf("erro ao verificar validade do token: %w", err)
		}

		query := url.Values{}
		for k, v := range params {
			query[k] = v
		}
		query.Set("access_token", c.tokens.AccessToken())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
		if err != nil {
			logrus.WithError(err).Error("Erro ao criar a requisição")
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			logrus.WithError(err).Error("Erro ao fazer a requisição")
			return err
		}

		body, err := c.tokens.HandleResponse(ctx, resp)
		resp.Body.Close()
		if errors.Is(err, errTokenRenewed) && attempt == 0 {
			continue
		}
		if err != nil {
			return err
		}

		if err := json.Unmarshal(body, out); err != nil {
			logrus.WithError(err).Error("Erro ao decodificar JSON")
			return err
		}
		return nil
	}
}
