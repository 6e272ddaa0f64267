package labor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

type memoryRepo struct {
	records map[int64]Record
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: map[int64]Record{}}
}

func (m *memoryRepo) Create(_ context.Context, rec Record) (Record, error) {
	m.nextID++
	rec.ID = m.nextID
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memoryRepo) Update(_ context.Context, rec Record) (Record, error) {
	current, ok := m.records[rec.ID]
	if !ok {
		return Record{}, shared.ErrNotFound
	}
	rec.RecordedBy = current.RecordedBy
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return Record{}, shared.ErrNotFound
	}
	return rec, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.records[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *memoryRepo) ListByProject(_ context.Context, projectID int64) ([]Record, error) {
	var out []Record
	for _, rec := range m.records {
		if rec.ProjectID == projectID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListByDateRange(_ context.Context, from, to time.Time) ([]Record, error) {
	var out []Record
	for _, rec := range m.records {
		if !rec.WorkDate.Before(from) && !rec.WorkDate.After(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListByProjectAndDateRange(ctx context.Context, projectID int64, from, to time.Time) ([]Record, error) {
	var out []Record
	for _, rec := range m.records {
		if rec.ProjectID == projectID && !rec.WorkDate.Before(from) && !rec.WorkDate.After(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRepo) SearchByWorker(_ context.Context, name string) ([]Record, error) {
	var out []Record
	for _, rec := range m.records {
		if rec.WorkerName == name {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRepo) SumTotalPayByProject(_ context.Context, projectID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, rec := range m.records {
		if rec.ProjectID == projectID {
			total = total.Add(rec.TotalPay)
		}
	}
	return total, nil
}

func (m *memoryRepo) SumHoursByProjectAndDateRange(_ context.Context, projectID int64, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, rec := range m.records {
		if rec.ProjectID == projectID && !rec.WorkDate.Before(from) && !rec.WorkDate.After(to) {
			total = total.Add(rec.HoursWorked)
		}
	}
	return total, nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	return NewService(repo, nil, slog.Default()), repo
}

func baseRecord() Record {
	return Record{
		ProjectID:   1,
		WorkerName:  "Ivan Petrov",
		JobTitle:    "Mason",
		WorkDate:    time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC),
		HoursWorked: decimal.NewFromInt(8),
		HourlyRate:  decimal.NewFromInt(25),
	}
}

func TestRecordComputesTotalPay(t *testing.T) {
	svc, _ := newTestService(t)

	rec := baseRecord()
	rec.OvertimeHours = decimal.NewFromInt(2)
	rec.OvertimeRate = decimal.NewFromFloat(37.5)
	rec.TotalPay = decimal.NewFromInt(1) // client-supplied value must be discarded

	created, err := svc.Record(context.Background(), rec)
	require.NoError(t, err)

	// 8×25 + 2×37.50
	assert.True(t, created.TotalPay.Equal(decimal.NewFromInt(275)), created.TotalPay.String())
	assert.Equal(t, AttendancePresent, created.Attendance)
}

func TestRecordWithoutOvertimeRate(t *testing.T) {
	svc, _ := newTestService(t)

	rec := baseRecord()
	rec.OvertimeHours = decimal.NewFromInt(3)

	created, err := svc.Record(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, created.TotalPay.Equal(decimal.NewFromInt(200)), created.TotalPay.String())
}

func TestRecordValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec := baseRecord()
	rec.WorkerName = ""
	_, err := svc.Record(ctx, rec)
	assert.ErrorIs(t, err, ErrWorkerNameRequired)

	rec = baseRecord()
	rec.JobTitle = ""
	_, err = svc.Record(ctx, rec)
	assert.ErrorIs(t, err, ErrJobTitleRequired)

	rec = baseRecord()
	rec.WorkDate = time.Time{}
	_, err = svc.Record(ctx, rec)
	assert.ErrorIs(t, err, ErrWorkDateRequired)

	rec = baseRecord()
	rec.HoursWorked = decimal.NewFromInt(25)
	_, err = svc.Record(ctx, rec)
	assert.ErrorIs(t, err, ErrInvalidHours)

	rec = baseRecord()
	rec.HourlyRate = decimal.NewFromInt(-1)
	_, err = svc.Record(ctx, rec)
	assert.ErrorIs(t, err, ErrInvalidRate)

	rec = baseRecord()
	rec.Attendance = "NAPPING"
	_, err = svc.Record(ctx, rec)
	assert.ErrorIs(t, err, ErrInvalidAttendance)
}

func TestRecordCapturesActor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := shared.ContextWithActor(context.Background(), 42)

	created, err := svc.Record(ctx, baseRecord())
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.RecordedBy)
}

func TestUpdateRecomputesPayAndKeepsProject(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Record(ctx, baseRecord())
	require.NoError(t, err)

	changed := created
	changed.ProjectID = 99
	changed.HoursWorked = decimal.NewFromInt(10)

	updated, err := svc.Update(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.ProjectID)
	assert.True(t, updated.TotalPay.Equal(decimal.NewFromInt(250)), updated.TotalPay.String())
}

func TestProjectCost(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		rec := baseRecord()
		rec.WorkDate = time.Date(2026, 5, day, 0, 0, 0, 0, time.UTC)
		_, err := svc.Record(ctx, rec)
		require.NoError(t, err)
	}
	other := baseRecord()
	other.ProjectID = 2
	_, err := svc.Record(ctx, other)
	require.NoError(t, err)

	summary, err := svc.ProjectCost(ctx, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, summary.TotalPay.Equal(decimal.NewFromInt(600)), summary.TotalPay.String())
	assert.True(t, summary.TotalHours.Equal(decimal.NewFromInt(24)), summary.TotalHours.String())

	windowed, err := svc.ProjectCost(ctx, 1,
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, windowed.TotalHours.Equal(decimal.NewFromInt(16)), windowed.TotalHours.String())
}

func TestListByProjectWindow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	early := baseRecord()
	early.WorkDate = time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	_, err := svc.Record(ctx, early)
	require.NoError(t, err)
	_, err = svc.Record(ctx, baseRecord())
	require.NoError(t, err)

	all, err := svc.ListByProject(ctx, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	may, err := svc.ListByProject(ctx, 1,
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, may, 1)
}

func TestDeleteRecord(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.Record(ctx, baseRecord())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Empty(t, repo.records)

	assert.ErrorIs(t, svc.Delete(ctx, created.ID), shared.ErrNotFound)
}
