package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

func TestBuildSnapshotRangeQuery(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		filter       domain.SnapshotFilter
		contains     []string
		notContains  []string
		expectedArgs int
	}{
		{
			name:         "Apenas intervalo de datas",
			filter:       domain.SnapshotFilter{StartDate: start, EndDate: end},
			contains:     []string{"ms.date >= $1", "ms.date <= $2", "ORDER BY ms.entity_id ASC, ms.date ASC"},
			notContains:  []string{"ms.account_id =", "ANY"},
			expectedArgs: 2,
		},
		{
			name:         "Filtra por conta",
			filter:       domain.SnapshotFilter{AccountID: "ACC001", StartDate: start, EndDate: end},
			contains:     []string{"ms.account_id = $3"},
			expectedArgs: 3,
		},
		{
			name: "Filtra por conta e entidades",
			filter: domain.SnapshotFilter{
				AccountID: "ACC001",
				EntityIDs: []string{"C1", "C2"},
				StartDate: start,
				EndDate:   end,
			},
			contains:     []string{"ms.account_id = $3", "ms.entity_id = ANY($4)"},
			expectedArgs: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := buildSnapshotRangeQuery(tt.filter)

			require.NoError(t, err)
			for _, fragment := range tt.contains {
				assert.Contains(t, query, fragment)
			}
			for _, fragment := range tt.notContains {
				assert.NotContains(t, query, fragment)
			}
			require.Len(t, args, tt.expectedArgs)
			assert.Equal(t, "2024-03-01", args[0])
			assert.Equal(t, "2024-03-14", args[1])
		})
	}
}

func TestBuildSnapshotUpsert(t *testing.T) {
	cpm := 12.5
	snapshots := []domain.Snapshot{
		{
			EntityID:    "C1",
			AccountID:   "ACC001",
			Date:        time.Date(2024, 3, 1, 17, 45, 0, 0, time.UTC),
			Spend:       100,
			Impressions: 8000,
			Reach:       4000,
			CPM:         &cpm,
		},
		{
			EntityID:  "C2",
			AccountID: "ACC001",
			Date:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	query, args, err := buildSnapshotUpsert(snapshots)

	require.NoError(t, err)
	assert.Contains(t, query, "INSERT INTO metric_snapshots")
	assert.Contains(t, query, "ON CONFLICT (entity_id, date) DO UPDATE SET")
	assert.Contains(t, query, "$24")
	require.Len(t, args, 24)
	assert.Equal(t, "2024-03-01", args[2])
	assert.Equal(t, sql.NullFloat64{Float64: 12.5, Valid: true}, args[6])
	assert.Equal(t, sql.NullFloat64{}, args[18])
}

func TestNullableFloats(t *testing.T) {
	v := 0.42

	assert.Equal(t, sql.NullFloat64{}, nullFloat(nil))
	assert.Equal(t, sql.NullFloat64{Float64: 0.42, Valid: true}, nullFloat(&v))
	assert.Nil(t, floatPtr(sql.NullFloat64{}))
	require.NotNil(t, floatPtr(sql.NullFloat64{Float64: 0.42, Valid: true}))
	assert.Equal(t, 0.42, *floatPtr(sql.NullFloat64{Float64: 0.42, Valid: true}))
}

func TestWrapDBError(t *testing.T) {
	pqErr := &pq.Error{Code: "23505", Message: "duplicate key value"}

	err := wrapDBError(pqErr)
	assert.Contains(t, err.Error(), "23505")
	assert.True(t, errors.Is(err, pqErr))

	plain := errors.New("connection reset")
	assert.True(t, errors.Is(wrapDBError(plain), plain))
}
