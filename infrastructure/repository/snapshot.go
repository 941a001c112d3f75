package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/vfg2006/traffic-diagnostics-api/infrastructure/database/postgres"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

const (
	snapshotsTable   = "metric_snapshots"
	snapshotsColumns = "ms.entity_id, ms.account_id, ms.date, ms.spend, ms.impressions, ms.reach, ms.cpm, ms.ctr, ms.conversions, " +
		"ms.attributed_conversions_standard, ms.attributed_conversions_incremental, ms.pixel_match_rate"
)

type SnapshotRepository interface {
	GetByDateRange(ctx context.Context, filter domain.SnapshotFilter) ([]domain.Snapshot, error)
	SaveOrUpdate(ctx context.Context, snapshots []domain.Snapshot) (int64, error)
	ListAccountIDs(ctx context.Context, startDate, endDate time.Time) ([]string, error)
}

type snapshotRepository struct {
	conn postgres.Conn
}

func NewSnapshotRepository(conn postgres.Conn) SnapshotRepository {
	return &snapshotRepository{
		conn: conn,
	}
}

func buildSnapshotRangeQuery(filter domain.SnapshotFilter) (string, []interface{}, error) {
	query := squirrel.
		Select(snapshotsColumns).
		From(snapshotsTable + " ms").
		Where(squirrel.GtOrEq{"ms.date": filter.StartDate.Format(time.DateOnly)}).
		Where(squirrel.LtOrEq{"ms.date": filter.EndDate.Format(time.DateOnly)})

	if filter.AccountID != "" {
		query = query.Where(squirrel.Eq{"ms.account_id": filter.AccountID})
	}
	if len(filter.EntityIDs) > 0 {
		query = query.Where(squirrel.Expr("ms.entity_id = ANY(?)", pq.Array(filter.EntityIDs)))
	}

	return query.
		OrderBy("ms.entity_id ASC", "ms.date ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

func (r *snapshotRepository) GetByDateRange(ctx context.Context, filter domain.SnapshotFilter) ([]domain.Snapshot, error) {
	query, args, err := buildSnapshotRangeQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("erro ao executar a query: %w", err)
	}
	defer rows.Close()

	snapshots := make([]domain.Snapshot, 0)
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("erro ao escanear snapshot: %w", err)
		}
		snapshots = append(snapshots, *snapshot)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro durante a iteração de linhas: %w", err)
	}

	return snapshots, nil
}

func buildSnapshotUpsert(snapshots []domain.Snapshot) (string, []interface{}, error) {
	query := squirrel.StatementBuilder.
		Insert(snapshotsTable).
		Columns(
			"entity_id", "account_id", "date", "spend", "impressions", "reach", "cpm", "ctr", "conversions",
			"attributed_conversions_standard", "attributed_conversions_incremental", "pixel_match_rate",
		)

	for _, s := range snapshots {
		query = query.Values(
			s.EntityID,
			s.AccountID,
			domain.NormalizeDate(s.Date).Format(time.DateOnly),
			s.Spend,
			s.Impressions,
			s.Reach,
			nullFloat(s.CPM),
			s.CTR,
			s.Conversions,
			nullFloat(s.AttributedConversionsStandard),
			nullFloat(s.AttributedConversionsIncremental),
			nullFloat(s.PixelMatchRate),
		)
	}

	return query.
		Suffix(`
			ON CONFLICT (entity_id, date) DO UPDATE SET
				account_id = EXCLUDED.account_id,
				spend = EXCLUDED.spend,
				impressions = EXCLUDED.impressions,
				reach = EXCLUDED.reach,
				cpm = EXCLUDED.cpm,
				ctr = EXCLUDED.ctr,
				conversions = EXCLUDED.conversions,
				attributed_conversions_standard = EXCLUDED.attributed_conversions_standard,
				attributed_conversions_incremental = EXCLUDED.attributed_conversions_incremental,
				pixel_match_rate = EXCLUDED.pixel_match_rate,
				updated_at = NOW()
		`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// SaveOrUpdate grava os snapshots em lotes dentro de uma única transação.
// Uma correção para a mesma (entity_id, date) substitui a linha existente.
func (r *snapshotRepository) SaveOrUpdate(ctx context.Context, snapshots []domain.Snapshot) (int64, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	const batchSize = 500
	var affected int64

	err := r.conn.RunInTransaction(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(snapshots); start += batchSize {
			end := min(start+batchSize, len(snapshots))

			query, args, err := buildSnapshotUpsert(snapshots[start:end])
			if err != nil {
				return fmt.Errorf("erro ao construir a query: %w", err)
			}

			result, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return wrapDBError(err)
			}

			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("erro ao obter número de linhas afetadas: %w", err)
			}
			affected += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return affected, nil
}

func (r *snapshotRepository) ListAccountIDs(ctx context.Context, startDate, endDate time.Time) ([]string, error) {
	query, args, err := squirrel.
		Select("DISTINCT ms.account_id").
		From(snapshotsTable + " ms").
		Where(squirrel.NotEq{"ms.account_id": ""}).
		Where(squirrel.GtOrEq{"ms.date": startDate.Format(time.DateOnly)}).
		Where(squirrel.LtOrEq{"ms.date": endDate.Format(time.DateOnly)}).
		OrderBy("ms.account_id ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("erro ao executar a query: %w", err)
	}
	defer rows.Close()

	var accountIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("erro ao escanear account_id: %w", err)
		}
		accountIDs = append(accountIDs, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro durante a iteração de linhas: %w", err)
	}

	return accountIDs, nil
}

func scanSnapshot(rows *sql.Rows) (*domain.Snapshot, error) {
	s := &domain.Snapshot{}
	var cpm, standard, incremental, matchRate sql.NullFloat64

	err := rows.Scan(
		&s.EntityID,
		&s.AccountID,
		&s.Date,
		&s.Spend,
		&s.Impressions,
		&s.Reach,
		&cpm,
		&s.CTR,
		&s.Conversions,
		&standard,
		&incremental,
		&matchRate,
	)
	if err != nil {
		return nil, err
	}

	s.Date = domain.NormalizeDate(s.Date)
	s.CPM = floatPtr(cpm)
	s.AttributedConversionsStandard = floatPtr(standard)
	s.AttributedConversionsIncremental = floatPtr(incremental)
	s.PixelMatchRate = floatPtr(matchRate)

	return s, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
