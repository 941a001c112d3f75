package metaclient

import (
	"context"
	"fmt"
	"net/url"

	metadomain "github.com/vfg2006/traffic-diagnostics-api/infrastructure/integrator/meta/domain"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

// GetAdsPixels lista os pixels vinculados à conta
func (c *MetaClient) GetAdsPixels(ctx context.Context, accountID string) ([]metadomain.AdsPixel, error) {
	endpoint := fmt.Sprintf("%s/%s/adspixels", c.cfg.URL, AdAccountPath(accountID))
	params := url.Values{}
	params.Set("fields", "id,name")

	pixels, err := paginate[metadomain.AdsPixel](ctx, c, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar pixels da conta %s: %w", accountID, err)
	}
	return pixels, nil
}

// GetPixelDailyStats busca a contagem diária de eventos recebidos e pareados do pixel
func (c *MetaClient) GetPixelDailyStats(ctx context.Context, pixelID string, period domain.DateRange) ([]metadomain.PixelDailyStats, error) {
	rangeParam, err := timeRangeParam(period)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/stats", c.cfg.URL, pixelID)
	params := url.Values{}
	params.Set("time_range", rangeParam)
	params.Set("time_increment", "1")

	stats, err := paginate[metadomain.PixelDailyStats](ctx, c, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar estatísticas do pixel %s: %w", pixelID, err)
	}
	return stats, nil
}
