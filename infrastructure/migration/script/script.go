package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/database/postgres"
	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/repository"
	"github.com/vfg2006/traffic-diagnostics-api/internal/config"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type migration struct {
	name       string
	table      string
	statements []string
}

var migrations = []migration{
	{
		name:  "cria tabela metric_snapshots",
		table: "metric_snapshots",
		statements: []string{
			`CREATE TABLE metric_snapshots (
				entity_id TEXT NOT NULL,
				account_id TEXT NOT NULL DEFAULT '',
				date DATE NOT NULL,
				spend DOUBLE PRECISION NOT NULL DEFAULT 0,
				impressions BIGINT NOT NULL DEFAULT 0,
				reach BIGINT NOT NULL DEFAULT 0,
				cpm DOUBLE PRECISION,
				ctr DOUBLE PRECISION NOT NULL DEFAULT 0,
				conversions DOUBLE PRECISION NOT NULL DEFAULT 0,
				attributed_conversions_standard DOUBLE PRECISION,
				attributed_conversions_incremental DOUBLE PRECISION,
				pixel_match_rate DOUBLE PRECISION,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (entity_id, date)
			)`,
			`CREATE INDEX metric_snapshots_account_date_idx ON metric_snapshots (account_id, date)`,
		},
	},
	{
		name:  "cria tabela diagnostic_runs",
		table: "diagnostic_runs",
		statements: []string{
			`CREATE TABLE diagnostic_runs (
				id TEXT PRIMARY KEY,
				account_id TEXT NOT NULL DEFAULT '',
				start_date DATE NOT NULL,
				end_date DATE NOT NULL,
				categories TEXT[] NOT NULL,
				thresholds JSONB NOT NULL,
				evidence_count INTEGER NOT NULL DEFAULT 0,
				warnings JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		},
	},
	{
		name:  "cria tabela diagnostic_evidence",
		table: "diagnostic_evidence",
		statements: []string{
			`CREATE TABLE diagnostic_evidence (
				id BIGSERIAL PRIMARY KEY,
				run_id TEXT NOT NULL REFERENCES diagnostic_runs (id) ON DELETE CASCADE,
				account_id TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL,
				entity_id TEXT NOT NULL,
				window_start DATE NOT NULL,
				window_end DATE NOT NULL,
				severity TEXT NOT NULL,
				direction TEXT NOT NULL,
				magnitude DOUBLE PRECISION NOT NULL,
				citations JSONB NOT NULL,
				snapshots JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX diagnostic_evidence_entity_idx ON diagnostic_evidence (entity_id, window_end)`,
			`CREATE INDEX diagnostic_evidence_account_idx ON diagnostic_evidence (account_id, category, window_end)`,
		},
	},
}

func tableExists(ctx context.Context, db postgres.Queryer, table string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, table).Scan(&exists)
	return exists, err
}

// applyMigrations cria apenas as tabelas ausentes; é seguro executar várias vezes
func applyMigrations(ctx context.Context, conn postgres.Conn) error {
	for _, m := range migrations {
		exists, err := tableExists(ctx, conn, m.table)
		if err != nil {
			return err
		}
		if exists {
			logrus.WithField("table", m.table).Info("Tabela já existe, pulando")
			continue
		}

		startTime := time.Now()
		err = conn.RunInTransaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			logrus.WithError(err).WithField("migration", m.name).Error("Erro ao aplicar migração")
			return err
		}

		logrus.WithFields(logrus.Fields{
			"migration": m.name,
			"duration":  time.Since(startTime).String(),
		}).Info("Migração aplicada")
	}
	return nil
}

// seedSnapshots carrega um arquivo JSON com uma lista de snapshots
func seedSnapshots(ctx context.Context, conn postgres.Conn, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var snapshots []domain.Snapshot
	if err := json.Unmarshal(content, &snapshots); err != nil {
		return err
	}

	for i := range snapshots {
		if err := snapshots[i].Validate(); err != nil {
			return err
		}
	}

	saved, err := repository.NewSnapshotRepository(conn).SaveOrUpdate(ctx, snapshots)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"file":      path,
		"snapshots": len(snapshots),
		"saved":     saved,
	}).Info("Snapshots de exemplo carregados")
	return nil
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logrus.Info("Iniciando script de migração...")

	cfg, err := config.NewConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Erro ao carregar configuração")
	}

	ctx := context.Background()

	logrus.Info("Conectando ao banco de dados...")
	conn, err := postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Erro ao conectar ao PostgreSQL")
	}
	defer conn.Close()

	if err := applyMigrations(ctx, conn); err != nil {
		logrus.WithError(err).Error("Migração interrompida")
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		if err := seedSnapshots(ctx, conn, os.Args[1]); err != nil {
			logrus.WithError(err).Error("Erro ao carregar snapshots de exemplo")
			os.Exit(1)
		}
	}

	logrus.Info("Script de migração concluído")
}
