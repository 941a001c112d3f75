package metaclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfg2006/traffic-diagnostics-api/internal/config"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

var testPeriod = domain.DateRange{
	Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*MetaClient, *TokenManager) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Meta{
		URL:         server.URL + "/v22.0",
		AccessToken: "short",
		AppID:       "app",
		AppSecret:   "secret",
	}
	httpClient := NewHTTPClient(cfg)
	tokens := NewTokenManager(cfg, httpClient)
	return NewClient(cfg, tokens, httpClient), tokens
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestMetaClient_GetCampaignDailyInsights(t *testing.T) {
	t.Run("Troca o token e segue a paginação", func(t *testing.T) {
		var serverURL string
		client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/v22.0/oauth/access_token":
				assert.Equal(t, "fb_exchange_token", r.URL.Query().Get("grant_type"))
				assert.Equal(t, "short", r.URL.Query().Get("fb_exchange_token"))
				writeBody(w, http.StatusOK, `{"access_token":"long","token_type":"bearer","expires_in":5184000}`)
			case r.URL.Path == "/v22.0/act_123/insights" && r.URL.Query().Get("after") == "":
				query := r.URL.Query()
				assert.Equal(t, "long", query.Get("access_token"))
				assert.Equal(t, "campaign", query.Get("level"))
				assert.Equal(t, "1", query.Get("time_increment"))
				assert.JSONEq(t, `{"since":"2024-03-01","until":"2024-03-07"}`, query.Get("time_range"))
				writeBody(w, http.StatusOK, `{"data":[{"campaign_id":"C1","date_start":"2024-03-01","date_stop":"2024-03-01","spend":"10"}],
					"paging":{"next":"`+serverURL+`/v22.0/act_123/insights?after=abc&access_token=long&level=campaign"}}`)
			case r.URL.Path == "/v22.0/act_123/insights":
				assert.Equal(t, "long", r.URL.Query().Get("access_token"))
				writeBody(w, http.StatusOK, `{"data":[{"campaign_id":"C2","date_start":"2024-03-01","date_stop":"2024-03-01","spend":"20"}],"paging":{}}`)
			default:
				t.Errorf("rota inesperada %s", r.URL.Path)
			}
		})
		serverURL = client.cfg.URL[:len(client.cfg.URL)-len("/v22.0")]

		insights, err := client.GetCampaignDailyInsights(context.Background(), "123", testPeriod)

		require.NoError(t, err)
		require.Len(t, insights, 2)
		assert.Equal(t, "C1", insights[0].CampaignID)
		assert.Equal(t, "C2", insights[1].CampaignID)
		assert.Equal(t, "long", tokens.AccessToken())
		assert.False(t, tokens.ExpiresAt().IsZero())
	})

	t.Run("Renova o token expirado e repete a chamada", func(t *testing.T) {
		var insightCalls atomic.Int32
		client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v22.0/oauth/access_token":
				writeBody(w, http.StatusOK, `{"access_token":"renovado","expires_in":5184000}`)
			case "/v22.0/act_123/insights":
				if insightCalls.Add(1) == 1 {
					writeBody(w, http.StatusBadRequest, `{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`)
					return
				}
				assert.Equal(t, "renovado", r.URL.Query().Get("access_token"))
				writeBody(w, http.StatusOK, `{"data":[{"campaign_id":"C1"}]}`)
			}
		})
		tokens.expiresAt = time.Now().Add(30 * 24 * time.Hour)

		insights, err := client.GetCampaignDailyInsights(context.Background(), "act_123", testPeriod)

		require.NoError(t, err)
		assert.Len(t, insights, 1)
		assert.Equal(t, int32(2), insightCalls.Load())
	})

	t.Run("Limite de chamadas", func(t *testing.T) {
		client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, http.StatusBadRequest, `{"error":{"message":"User request limit reached","type":"OAuthException","code":17}}`)
		})
		tokens.expiresAt = time.Now().Add(30 * 24 * time.Hour)

		_, err := client.GetCampaignDailyInsights(context.Background(), "123", testPeriod)

		assert.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("Erro sem corpo JSON", func(t *testing.T) {
		client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, http.StatusBadGateway, `bad gateway`)
		})
		tokens.expiresAt = time.Now().Add(30 * 24 * time.Hour)

		_, err := client.GetCampaignDailyInsights(context.Background(), "123", testPeriod)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})
}

func TestMetaClient_GetCampaignAttributedActions(t *testing.T) {
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "/v22.0/act_123/insights", r.URL.Path)
		assert.Equal(t, "campaign", query.Get("level"))
		assert.Equal(t, "1", query.Get("time_increment"))
		assert.Equal(t, attributionInsightFields, query.Get("fields"))
		assert.JSONEq(t, `["28d_click","28d_view"]`, query.Get("action_attribution_windows"))
		writeBody(w, http.StatusOK, `{"data":[{"campaign_id":"C1","objective":"OUTCOME_LEADS","date_start":"2024-03-01",
			"actions":[{"action_type":"lead","value":"12"}]}]}`)
	})
	tokens.expiresAt = time.Now().Add(30 * 24 * time.Hour)

	rows, err := client.GetCampaignAttributedActions(context.Background(), "123", testPeriod)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	value, ok := rows[0].ResultAction()
	assert.True(t, ok)
	assert.Equal(t, "12", value)
}

func TestMetaClient_Pixels(t *testing.T) {
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v22.0/act_123/adspixels":
			assert.Equal(t, "id,name", r.URL.Query().Get("fields"))
			writeBody(w, http.StatusOK, `{"data":[{"id":"P1","name":"Loja"}]}`)
		case "/v22.0/P1/stats":
			assert.Equal(t, "1", r.URL.Query().Get("time_increment"))
			assert.JSONEq(t, `{"since":"2024-03-01","until":"2024-03-07"}`, r.URL.Query().Get("time_range"))
			writeBody(w, http.StatusOK, `{"data":[{"date_start":"2024-03-01","events_received":"1000","events_matched":"870"}]}`)
		default:
			t.Errorf("rota inesperada %s", r.URL.Path)
		}
	})
	tokens.expiresAt = time.Now().Add(30 * 24 * time.Hour)

	pixels, err := client.GetAdsPixels(context.Background(), "123")
	require.NoError(t, err)
	require.Len(t, pixels, 1)
	assert.Equal(t, "P1", pixels[0].ID)

	stats, err := client.GetPixelDailyStats(context.Background(), pixels[0].ID, testPeriod)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "2024-03-01", stats[0].DateStart)
	assert.Equal(t, "870", stats[0].EventsMatched)
}

func TestTokenManager_EnsureValidToken(t *testing.T) {
	t.Run("Sem token configurado", func(t *testing.T) {
		tokens := NewTokenManager(config.Meta{}, http.DefaultClient)

		assert.ErrorIs(t, tokens.EnsureValidToken(context.Background()), ErrMissingAccessToken)
	})

	t.Run("Falha na troca mantém o token configurado", func(t *testing.T) {
		_, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, http.StatusBadRequest, `{"error":{"message":"Invalid OAuth client","code":101}}`)
		})

		require.NoError(t, tokens.EnsureValidToken(context.Background()))
		assert.Equal(t, "short", tokens.AccessToken())
		assert.False(t, tokens.ExpiresAt().IsZero())
	})

	t.Run("Token vencido exige reautorização", func(t *testing.T) {
		_, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, http.StatusBadRequest, `{"error":{"message":"Error validating access token: Session has expired","code":190}}`)
		})
		tokens.expiresAt = time.Now().Add(time.Hour)

		err := tokens.EnsureValidToken(context.Background())

		assert.ErrorIs(t, err, ErrReauthorizationRequired)
	})

	t.Run("Token válido não é renovado", func(t *testing.T) {
		var calls atomic.Int32
		_, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		})
		tokens.expiresAt = time.Now().Add(10 * 24 * time.Hour)

		require.NoError(t, tokens.EnsureValidToken(context.Background()))
		assert.Zero(t, calls.Load())
	})
}

func TestCalculateTokenExpiration(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(59*24*time.Hour), CalculateTokenExpiration(now, 60*24*60*60))
	assert.Equal(t, now.Add(6*time.Hour), CalculateTokenExpiration(now, 12*60*60))
}

func TestAdAccountPath(t *testing.T) {
	assert.Equal(t, "act_123", AdAccountPath("123"))
	assert.Equal(t, "act_123", AdAccountPath("act_123"))
}

func TestNextPage(t *testing.T) {
	endpoint, params, err := nextPage("https://graph.facebook.com/v22.0/act_1/insights?after=xyz&access_token=secreto")

	require.NoError(t, err)
	assert.Equal(t, "https://graph.facebook.com/v22.0/act_1/insights", endpoint)
	assert.Equal(t, "xyz", params.Get("after"))
	assert.Empty(t, params.Get("access_token"))

	endpoint, _, err = nextPage("")
	require.NoError(t, err)
	assert.Empty(t, endpoint)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1 dias, 2 horas e 3 minutos", FormatDuration(26*3600+3*60))
}
