package metaclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	metadomain "github.com/vfg2006/traffic-diagnostics-api/infrastructure/integrator/meta/domain"
	"github.com/vfg2006/traffic-diagnostics-api/internal/config"
)

var (
	ErrMissingAccessToken      = errors.New("token de acesso da Meta não configurado")
	ErrReauthorizationRequired = errors.New("token expirou e requer reautorização manual")
	ErrRateLimited             = errors.New("limite de chamadas da API Meta atingido")

	errTokenRenewed = errors.New("token expirado e renovado, por favor tente novamente")
)

const (
	refreshInterval      = 23 * time.Hour
	refreshRetryInterval = time.Hour
	proactiveRenewal     = 24 * time.Hour
)

// TokenManager gerencia o token de acesso da API do Meta
type TokenManager struct {
	cfg         config.Meta
	httpClient  *http.Client
	mutex       sync.Mutex
	accessToken string
	expiresAt   time.Time
	now         func() time.Time
}

func NewTokenManager(cfg config.Meta, httpClient *http.Client) *TokenManager {
	return &TokenManager{
		cfg:         cfg,
		httpClient:  httpClient,
		accessToken: cfg.AccessToken,
		now:         time.Now,
	}
}

// AccessToken retorna o token corrente
func (tm *TokenManager) AccessToken() string {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	return tm.accessToken
}

// ExpiresAt retorna a data em que o token deve ser renovado; zero quando ainda desconhecida
func (tm *TokenManager) ExpiresAt() time.Time {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	return tm.expiresAt
}

// EnsureValidToken renova o token quando a expiração é desconhecida ou está a menos de 24 horas.
// Se a expiração é desconhecida e a troca falha, o token configurado continua em uso.
func (tm *TokenManager) EnsureValidToken(ctx context.Context) error {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if tm.accessToken == "" {
		return ErrMissingAccessToken
	}

	if tm.expiresAt.IsZero() {
		logrus.Info("Validade do token da Meta desconhecida. Trocando por token de longa duração...")
		if err := tm.refreshLocked(ctx); err != nil {
			if errors.Is(err, ErrReauthorizationRequired) {
				return err
			}
			logrus.WithError(err).Warn("Não foi possível trocar o token; usando o token configurado")
			tm.expiresAt = tm.now().Add(refreshRetryInterval + proactiveRenewal)
		}
		return nil
	}

	if tm.expiresAt.Sub(tm.now()) < proactiveRenewal {
		logrus.Info("Token expira em menos de 24 horas. Renovando proativamente...")
		return tm.refreshLocked(ctx)
	}

	return nil
}

// RefreshToken obtém um novo token de longa duração
func (tm *TokenManager) RefreshToken(ctx context.Context) error {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	return tm.refreshLocked(ctx)
}

func (tm *TokenManager) refreshLocked(ctx context.Context) error {
	if !tm.expiresAt.IsZero() && tm.expiresAt.Sub(tm.now()) < time.Hour {
		logrus.Warn("Token está muito próximo da expiração ou já expirou - pode ser necessária reautorização manual")
	}

	tokenResponse, err := exchangeToken(ctx, tm.httpClient, tm.cfg, tm.accessToken)
	if err != nil {
		if containsTokenExpirationMessage(err.Error()) {
			logrus.Error("O token de acesso expirou e não pode ser renovado automaticamente. É necessário reautorizar")
			return fmt.Errorf("%w: %w", ErrReauthorizationRequired, err)
		}
		return fmt.Errorf("erro ao obter novo token de longa duração: %w", err)
	}

	changed := tokenResponse.AccessToken != tm.accessToken
	tm.accessToken = tokenResponse.AccessToken
	tm.expiresAt = CalculateTokenExpiration(tm.now(), tokenResponse.ExpiresIn)

	if changed {
		logrus.Infof("Token de longa duração atualizado com sucesso. Renovação prevista para: %s",
			tm.expiresAt.Format(time.RFC3339))
	} else {
		logrus.Info("Token renovado, mas não mudou. Isso pode indicar um problema na API da Meta")
	}

	return nil
}

// StartAutoRefresh renova o token periodicamente até o contexto ser cancelado
func (tm *TokenManager) StartAutoRefresh(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logrus.Info("Iniciando renovação periódica do token da Meta")
			if err := tm.RefreshToken(ctx); err != nil {
				logrus.Errorf("Erro na renovação periódica do token: %v", err)
				ticker.Reset(refreshRetryInterval)
				continue
			}
			logrus.Info("Renovação periódica do token concluída com sucesso")
			ticker.Reset(refreshInterval)
		case <-ctx.Done():
			logrus.Info("Encerrando renovação periódica do token da Meta")
			return
		}
	}
}

// HandleResponse devolve o corpo das respostas 200. Em erro de token expirado
// renova o token e devolve errTokenRenewed para que a chamada seja repetida.
func (tm *TokenManager) HandleResponse(ctx context.Context, resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler resposta: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	var errorResp metadomain.ErrorResponse
	parsed := json.Unmarshal(body, &errorResp) == nil && errorResp.Error.Message != ""

	switch {
	case parsed && errorResp.IsTokenExpired(), containsTokenExpirationMessage(string(body)):
		logrus.Warnf("Token expirado detectado pela API Meta. Código: %d, Subcódigo: %d",
			errorResp.Error.Code, errorResp.Error.ErrorSubcode)
		if refreshErr := tm.RefreshToken(ctx); refreshErr != nil {
			return nil, fmt.Errorf("erro ao renovar token expirado: %w", refreshErr)
		}
		return nil, errTokenRenewed
	case parsed && errorResp.IsRateLimited():
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, errorResp.String())
	case parsed:
		return nil, fmt.Errorf("erro na resposta da API. Status: %d, %s", resp.StatusCode, errorResp.String())
	}

	return nil, fmt.Errorf("erro na resposta da API. Status: %d, Corpo: %s", resp.StatusCode, string(body))
}
