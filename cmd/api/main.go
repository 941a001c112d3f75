package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/database/postgres"
	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/integrator/meta"
	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/integrator/meta/metaclient"
	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/repository"
	"github.com/vfg2006/traffic-diagnostics-api/internal/api"
	"github.com/vfg2006/traffic-diagnostics-api/internal/api/handler"
	"github.com/vfg2006/traffic-diagnostics-api/internal/config"
	"github.com/vfg2006/traffic-diagnostics-api/internal/metrics"
	"github.com/vfg2006/traffic-diagnostics-api/internal/scheduler"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/authenticating"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/diagnosing"
)

func main() {
	configureLogger()

	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatal(err)
	}
	setLogLevel(cfg.App.LogLevel)

	// Sinais de término encerram servidor, agendadores e renovação do token
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Error("Aplicação encerrada com erro")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	pgConn := pgconn(ctx, cfg.Database)
	defer pgConn.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("registrando métricas: %w", err)
	}

	snapshotRepo := repository.NewSnapshotRepository(pgConn)
	evidenceRepo := repository.NewEvidenceRepository(pgConn)

	validator, err := authenticating.NewService(cfg)
	if err != nil {
		return fmt.Errorf("configurando autenticação: %w", err)
	}

	diagnoser, err := diagnosing.NewService(cfg, snapshotRepo, evidenceRepo)
	if err != nil {
		return fmt.Errorf("thresholds de diagnóstico inválidos: %w", err)
	}
	logrus.WithField("thresholds", diagnoser.Thresholds().Map()).Info("Thresholds de diagnóstico carregados")

	diagnosticSync := scheduler.NewDiagnosticSyncService(snapshotRepo, diagnoser, cfg)
	snapshotSync := scheduler.NewSnapshotSyncService(metaCollector(ctx, cfg.Meta), diagnoser, cfg)
	startScheduler(ctx, "diagnósticos", diagnosticSync)
	startScheduler(ctx, "coleta de snapshots", snapshotSync)

	server, err := api.New(cfg, diagnoser, validator, pgConn, registry, handler.CronJobServices{
		DiagnosticSyncService: diagnosticSync,
		SnapshotSyncService:   snapshotSync,
	})
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

func setLogLevel(level string) {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Nível de log inválido: %s, usando 'info'", level)
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)
	logrus.Infof("Nível de log configurado para: %s", logLevel)
}

// startScheduler não derruba a API: sem agendador, as rotinas seguem disponíveis via /v1/cron
func startScheduler(ctx context.Context, name string, s interface{ Start(context.Context) error }) {
	if err := s.Start(ctx); err != nil {
		logrus.WithError(err).WithField("scheduler", name).Error("Erro ao iniciar o agendador")
		return
	}
	logrus.WithField("scheduler", name).Info("Agendador iniciado")
}

// configureLogger configura o formato e comportamento dos logs
func configureLogger() {
	_, file, _, _ := runtime.Caller(0)
	dir := path.Dir(file)
	os.Chdir(dir)

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
}

// metaCollector monta o cliente da Meta e mantém o token renovado enquanto a aplicação roda
func metaCollector(ctx context.Context, metaConfig config.Meta) *meta.Collector {
	httpClient := metaclient.NewHTTPClient(metaConfig)
	tokenManager := metaclient.NewTokenManager(metaConfig, httpClient)
	if metaConfig.AccessToken != "" {
		go tokenManager.StartAutoRefresh(ctx)
	} else {
		logrus.Warn("META_ACCESS_TOKEN não configurado; a coleta de snapshots vai falhar até que seja definido")
	}

	return meta.New(metaclient.NewClient(metaConfig, tokenManager, httpClient))
}

// pgconn cria uma conexão com o banco de dados
func pgconn(ctx context.Context, dbConfig config.Database) *postgres.Connection {
	conn, err := postgres.NewConnection(ctx, dbConfig)
	if err != nil {
		logrus.WithError(err).Fatal("Erro ao conectar ao PostgreSQL")
	}

	logrus.Info("Conexão com PostgreSQL estabelecida com sucesso")
	return conn
}
