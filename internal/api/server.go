package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vfg2006/traffic-diagnostics-api/internal/api/handler"
	"github.com/vfg2006/traffic-diagnostics-api/internal/api/handler/router"
	"github.com/vfg2006/traffic-diagnostics-api/internal/config"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/authenticating"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/diagnosing"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/middleware"
)

const (
	shutdownTimeout = 15 * time.Second
	// writeTimeout cobre um diagnóstico síncrono de conta grande
	writeTimeout = 2 * time.Minute
)

type Server struct {
	httpServer *http.Server
}

func New(
	config *config.Config,
	diagnoser diagnosing.Diagnoser,
	validator authenticating.TokenValidator,
	db handler.Pinger,
	gatherer prometheus.Gatherer,
	cronServices handler.CronJobServices,
) (*Server, error) {
	if validator == nil {
		return nil, errors.New("validador de token não configurado")
	}

	rt := router.New(
		router.WithRoutes(handler.Healthcheck(db)...),
		router.WithRoutes(handler.Metrics(gatherer)...),
		router.WithRoutes(handler.Diagnostics(diagnoser)...),
		router.WithRoutes(handler.Snapshots(diagnoser)...),
		router.WithRoutes(handler.CronJobs(cronServices)...),
	)

	// A ordem importa: pânicos são capturados já com o ID de correlação e o
	// preflight de CORS responde antes da autenticação.
	chain := alice.New(
		middleware.LoggingMiddleware(),
		middleware.LogPanicMiddleware(),
		middleware.Cors(config.Server.AllowedOrigins),
		middleware.AuthMiddleware(validator),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(config.Server.Host, config.Server.Port),
			Handler:           chain.Then(rt),
			ReadHeaderTimeout: 2 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       time.Minute,
		},
	}, nil
}

// Run serve HTTP até o contexto ser cancelado e então desliga com prazo
// de shutdownTimeout
func (s Server) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logrus.WithField("address", s.httpServer.Addr).Info("Servidor iniciando")
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		logrus.WithField("timeout", shutdownTimeout.String()).Info("Iniciando desligamento gracioso do servidor")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logrus.WithError(err).Error("Erro durante a execução do servidor")
		return err
	}
	logrus.Info("Servidor desligado com sucesso")
	return nil
}

func (s Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
