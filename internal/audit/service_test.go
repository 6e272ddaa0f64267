package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	rows []TimelineRow
}

func (m *memoryRepo) filter(f TimelineFilters) []TimelineRow {
	var out []TimelineRow
	for _, row := range m.rows {
		if f.ActorID != 0 && row.ActorID != f.ActorID {
			continue
		}
		if f.Entity != "" && row.Entity != f.Entity {
			continue
		}
		if f.Action != "" && row.Action != f.Action {
			continue
		}
		out = append(out, row)
	}
	return out
}

func (m *memoryRepo) TimelineWindow(_ context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	rows := m.filter(f)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *memoryRepo) TimelineAll(_ context.Context, f TimelineFilters) ([]TimelineRow, error) {
	return m.filter(f), nil
}

func seedRows(n int) []TimelineRow {
	rows := make([]TimelineRow, 0, n)
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rows = append(rows, TimelineRow{
			At:      base.Add(time.Duration(i) * time.Minute),
			ActorID: int64(i%3 + 1),
			Action:  "STOCK_OUT",
			Entity:  "InventoryTransaction",
		})
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	svc := NewService(&memoryRepo{rows: seedRows(45)})
	ctx := context.Background()

	first, err := svc.Timeline(ctx, TimelineFilters{})
	require.NoError(t, err)
	assert.Len(t, first.Rows, 20)
	assert.True(t, first.Paging.HasNext)
	assert.Equal(t, 2, first.Paging.NextPage)
	assert.Zero(t, first.Paging.PrevPage)

	last, err := svc.Timeline(ctx, TimelineFilters{Page: 3})
	require.NoError(t, err)
	assert.Len(t, last.Rows, 5)
	assert.False(t, last.Paging.HasNext)
	assert.Equal(t, 2, last.Paging.PrevPage)
}

func TestTimelinePageSizeClamped(t *testing.T) {
	svc := NewService(&memoryRepo{rows: seedRows(80)})
	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 50)
	assert.Equal(t, 50, result.Paging.PageSize)
}

func TestTimelineActorFilter(t *testing.T) {
	svc := NewService(&memoryRepo{rows: seedRows(9)})
	result, err := svc.Timeline(context.Background(), TimelineFilters{ActorID: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
	for _, row := range result.Rows {
		assert.Equal(t, int64(2), row.ActorID)
	}
}

func TestCSVRecord(t *testing.T) {
	row := TimelineRow{
		At:       time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		ActorID:  7,
		Action:   "APPROVE_TRANSACTION",
		Entity:   "FinancialTransaction",
		EntityID: "42",
	}
	record := CSVRecord(row)
	require.Len(t, record, len(CSVHeader))
	assert.Equal(t, "2025-05-01T12:00:00Z", record[0])
	assert.Equal(t, "7", record[1])
	assert.Equal(t, "APPROVE_TRANSACTION", record[2])
}
