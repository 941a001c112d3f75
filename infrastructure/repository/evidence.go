package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/database/postgres"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	diagnosticRunsTable     = "diagnostic_runs"
	diagnosticEvidenceTable = "diagnostic_evidence"
	evidenceColumns         = "de.run_id, de.category, de.entity_id, de.window_start, de.window_end, de.severity, " +
		"de.direction, de.magnitude, de.citations, de.snapshots, de.created_at"
	defaultEvidenceLimit = 500
)

type EvidenceRepository interface {
	SaveRun(ctx context.Context, run *domain.DiagnosticRun, records []domain.EvidenceRecord) error
	GetRun(ctx context.Context, id string) (*domain.DiagnosticRun, error)
	List(ctx context.Context, filter domain.EvidenceFilter) ([]domain.EvidenceRecord, error)
}

type evidenceRepository struct {
	conn postgres.Conn
}

func NewEvidenceRepository(conn postgres.Conn) EvidenceRepository {
	return &evidenceRepository{
		conn: conn,
	}
}

// SaveRun grava a execução e suas evidências na mesma transação
func (r *evidenceRepository) SaveRun(ctx context.Context, run *domain.DiagnosticRun, records []domain.EvidenceRecord) error {
	thresholdsJSON, err := json.Marshal(run.Thresholds)
	if err != nil {
		return fmt.Errorf("erro ao serializar thresholds para JSON: %w", err)
	}
	warningsJSON, err := json.Marshal(run.Warnings)
	if err != nil {
		return fmt.Errorf("erro ao serializar avisos para JSON: %w", err)
	}

	categories := make([]string, len(run.Categories))
	for i, c := range run.Categories {
		categories[i] = string(c)
	}

	runQuery, runArgs, err := squirrel.StatementBuilder.
		Insert(diagnosticRunsTable).
		Columns("id", "account_id", "start_date", "end_date", "categories", "thresholds", "evidence_count", "warnings").
		Values(
			run.ID,
			run.AccountID,
			run.StartDate.Format(time.DateOnly),
			run.EndDate.Format(time.DateOnly),
			pq.Array(categories),
			thresholdsJSON,
			len(records),
			warningsJSON,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("erro ao construir a query: %w", err)
	}

	evidenceQuery, evidenceArgs, err := buildEvidenceInsert(run, records)
	if err != nil {
		return err
	}

	return r.conn.RunInTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, runQuery, runArgs...); err != nil {
			return wrapDBError(err)
		}
		if len(records) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, evidenceQuery, evidenceArgs...); err != nil {
			return wrapDBError(err)
		}
		return nil
	})
}

func buildEvidenceInsert(run *domain.DiagnosticRun, records []domain.EvidenceRecord) (string, []interface{}, error) {
	query := squirrel.StatementBuilder.
		Insert(diagnosticEvidenceTable).
		Columns(
			"run_id", "account_id", "category", "entity_id", "window_start", "window_end",
			"severity", "direction", "magnitude", "citations", "snapshots",
		)

	for _, rec := range records {
		citationsJSON, err := json.Marshal(rec.Citations)
		if err != nil {
			return "", nil, fmt.Errorf("erro ao serializar citações para JSON: %w", err)
		}
		snapshotsJSON, err := json.Marshal(rec.Snapshots)
		if err != nil {
			return "", nil, fmt.Errorf("erro ao serializar snapshots para JSON: %w", err)
		}
		query = query.Values(
			run.ID,
			run.AccountID,
			string(rec.Category),
			rec.EntityID,
			rec.WindowStart.Format(time.DateOnly),
			rec.WindowEnd.Format(time.DateOnly),
			string(rec.Severity),
			string(rec.Direction),
			rec.Magnitude,
			citationsJSON,
			snapshotsJSON,
		)
	}

	sqlQuery, args, err := query.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("erro ao construir a query: %w", err)
	}
	return sqlQuery, args, nil
}

func (r *evidenceRepository) GetRun(ctx context.Context, id string) (*domain.DiagnosticRun, error) {
	query, args, err := squirrel.
		Select("dr.id, dr.account_id, dr.start_date, dr.end_date, dr.categories, dr.thresholds, dr.evidence_count, dr.warnings, dr.created_at").
		From(diagnosticRunsTable + " dr").
		Where(squirrel.Eq{"dr.id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	run := &domain.DiagnosticRun{}
	var categories pq.StringArray
	var thresholdsJSON, warningsJSON []byte

	err = r.conn.QueryRowContext(ctx, query, args...).Scan(
		&run.ID,
		&run.AccountID,
		&run.StartDate,
		&run.EndDate,
		&categories,
		&thresholdsJSON,
		&run.EvidenceCount,
		&warningsJSON,
		&run.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("erro ao escanear execução: %w", err)
	}

	for _, c := range categories {
		run.Categories = append(run.Categories, domain.Category(c))
	}
	if err := json.Unmarshal(thresholdsJSON, &run.Thresholds); err != nil {
		return nil, fmt.Errorf("erro ao deserializar thresholds: %w", err)
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &run.Warnings); err != nil {
			return nil, fmt.Errorf("erro ao deserializar avisos: %w", err)
		}
	}

	return run, nil
}

func buildEvidenceListQuery(filter domain.EvidenceFilter) (string, []interface{}, error) {
	query := squirrel.
		Select(evidenceColumns).
		From(diagnosticEvidenceTable + " de")

	if filter.EntityID != "" {
		query = query.Where(squirrel.Eq{"de.entity_id": filter.EntityID})
	}
	if filter.AccountID != "" {
		query = query.Where(squirrel.Eq{"de.account_id": filter.AccountID})
	}
	if filter.Category != nil {
		query = query.Where(squirrel.Eq{"de.category": string(*filter.Category)})
	}
	if filter.StartDate != nil {
		query = query.Where(squirrel.GtOrEq{"de.window_end": filter.StartDate.Format(time.DateOnly)})
	}
	if filter.EndDate != nil {
		query = query.Where(squirrel.LtOrEq{"de.window_start": filter.EndDate.Format(time.DateOnly)})
	}

	limit := filter.Limit
	if limit == 0 {
		limit = defaultEvidenceLimit
	}

	return query.
		OrderBy("de.created_at DESC", "de.window_end DESC").
		Limit(limit).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// List retorna evidências cuja janela intersecta o intervalo do filtro
func (r *evidenceRepository) List(ctx context.Context, filter domain.EvidenceFilter) ([]domain.EvidenceRecord, error) {
	query, args, err := buildEvidenceListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("erro ao executar a query: %w", err)
	}
	defer rows.Close()

	records := make([]domain.EvidenceRecord, 0)
	for rows.Next() {
		var rec domain.EvidenceRecord
		var citationsJSON, snapshotsJSON []byte

		err := rows.Scan(
			&rec.RunID,
			&rec.Category,
			&rec.EntityID,
			&rec.WindowStart,
			&rec.WindowEnd,
			&rec.Severity,
			&rec.Direction,
			&rec.Magnitude,
			&citationsJSON,
			&snapshotsJSON,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("erro ao escanear evidência: %w", err)
		}

		if err := json.Unmarshal(citationsJSON, &rec.Citations); err != nil {
			return nil, fmt.Errorf("erro ao deserializar citações: %w", err)
		}
		if err := json.Unmarshal(snapshotsJSON, &rec.Snapshots); err != nil {
			return nil, fmt.Errorf("erro ao deserializar snapshots: %w", err)
		}
		rec.WindowStart = domain.NormalizeDate(rec.WindowStart)
		rec.WindowEnd = domain.NormalizeDate(rec.WindowEnd)

		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro durante a iteração de linhas: %w", err)
	}

	return records, nil
}

func wrapDBError(err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		return fmt.Errorf("erro no banco de dados: %w (código: %s)", pqErr, pqErr.Code)
	}
	return fmt.Errorf("erro ao executar a query: %w", err)
}
