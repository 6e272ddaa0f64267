package labor

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

// Repository persists labor records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, project_id, worker_name, worker_id, job_title, work_date, hours_worked, overtime_hours,
hourly_rate, overtime_rate, total_pay, work_description, attendance_status, notes, recorded_by, created_at, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		status string
	)
	err := row.Scan(&rec.ID, &rec.ProjectID, &rec.WorkerName, &rec.WorkerID, &rec.JobTitle, &rec.WorkDate,
		&rec.HoursWorked, &rec.OvertimeHours, &rec.HourlyRate, &rec.OvertimeRate, &rec.TotalPay,
		&rec.WorkDescription, &status, &rec.Notes, &rec.RecordedBy, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, shared.ErrNotFound
		}
		return Record{}, err
	}
	rec.Attendance = AttendanceStatus(status)
	return rec, nil
}

// Create inserts a labor record row.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO labor_records
(project_id, worker_name, worker_id, job_title, work_date, hours_worked, overtime_hours, hourly_rate, overtime_rate, total_pay, work_description, attendance_status, notes, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
RETURNING `+recordColumns,
		rec.ProjectID, rec.WorkerName, rec.WorkerID, rec.JobTitle, rec.WorkDate, rec.HoursWorked,
		rec.OvertimeHours, rec.HourlyRate, rec.OvertimeRate, rec.TotalPay, rec.WorkDescription,
		string(rec.Attendance), rec.Notes, rec.RecordedBy)
	return scanRecord(row)
}

// Update rewrites a labor record. ProjectID and RecordedBy stay as inserted.
func (r *Repository) Update(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx, `UPDATE labor_records
SET worker_name=$2, worker_id=$3, job_title=$4, work_date=$5, hours_worked=$6, overtime_hours=$7,
    hourly_rate=$8, overtime_rate=$9, total_pay=$10, work_description=$11, attendance_status=$12,
    notes=$13, updated_at=NOW()
WHERE id=$1
RETURNING `+recordColumns,
		rec.ID, rec.WorkerName, rec.WorkerID, rec.JobTitle, rec.WorkDate, rec.HoursWorked,
		rec.OvertimeHours, rec.HourlyRate, rec.OvertimeRate, rec.TotalPay, rec.WorkDescription,
		string(rec.Attendance), rec.Notes)
	return scanRecord(row)
}

// Get fetches one labor record by id.
func (r *Repository) Get(ctx context.Context, id int64) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM labor_records WHERE id=$1`, id)
	return scanRecord(row)
}

// Delete removes a labor record.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM labor_records WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListByProject returns a project's records, newest work date first.
func (r *Repository) ListByProject(ctx context.Context, projectID int64) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM labor_records
WHERE project_id=$1 ORDER BY work_date DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListByDateRange returns records with a work date inside [from, to].
func (r *Repository) ListByDateRange(ctx context.Context, from, to time.Time) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM labor_records
WHERE work_date BETWEEN $1 AND $2 ORDER BY work_date DESC, id DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListByProjectAndDateRange combines the project and date filters.
func (r *Repository) ListByProjectAndDateRange(ctx context.Context, projectID int64, from, to time.Time) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM labor_records
WHERE project_id=$1 AND work_date BETWEEN $2 AND $3 ORDER BY work_date DESC, id DESC`, projectID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// SearchByWorker matches worker names case-insensitively on a fragment.
func (r *Repository) SearchByWorker(ctx context.Context, name string) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM labor_records
WHERE worker_name ILIKE '%' || $1 || '%' ORDER BY work_date DESC, id DESC`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// SumTotalPayByProject totals the pay across all of a project's records.
func (r *Repository) SumTotalPayByProject(ctx context.Context, projectID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_pay), 0) FROM labor_records WHERE project_id=$1`, projectID).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// SumHoursByProjectAndDateRange totals regular hours worked inside a window.
func (r *Repository) SumHoursByProjectAndDateRange(ctx context.Context, projectID int64, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(hours_worked), 0) FROM labor_records
WHERE project_id=$1 AND work_date BETWEEN $2 AND $3`, projectID, from, to).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
