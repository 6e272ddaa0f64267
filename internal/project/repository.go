package project

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

// Repository persists projects and milestones in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const projectColumns = `id, name, description, location, start_date, COALESCE(end_date, '0001-01-01'), COALESCE(actual_end_date, '0001-01-01'),
contract_value, budgeted_cost, actual_cost, actual_revenue, completion_percentage, status, created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	var status string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Location, &p.StartDate, &p.EndDate, &p.ActualEndDate,
		&p.ContractValue, &p.BudgetedCost, &p.ActualCost, &p.ActualRevenue, &p.CompletionPercentage,
		&status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, shared.ErrNotFound
		}
		return Project{}, err
	}
	p.Status = Status(status)
	return p, nil
}

// Create inserts a project row.
func (r *Repository) Create(ctx context.Context, p Project) (Project, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO projects
(name, description, location, start_date, end_date, contract_value, budgeted_cost, actual_cost, actual_revenue, completion_percentage, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, '0001-01-01'::date), $6, $7, 0, 0, 0, $8, NOW(), NOW())
RETURNING `+projectColumns,
		p.Name, p.Description, p.Location, p.StartDate, p.EndDate, p.ContractValue, p.BudgetedCost, string(p.Status))
	return scanProject(row)
}

// Update replaces descriptive and budget fields. Derived financials are only
// rewritten by the approval rollup.
func (r *Repository) Update(ctx context.Context, p Project) (Project, error) {
	row := r.pool.QueryRow(ctx, `UPDATE projects
SET name=$2, description=$3, location=$4, start_date=$5, end_date=NULLIF($6, '0001-01-01'::date),
    actual_end_date=NULLIF($7, '0001-01-01'::date), contract_value=$8, budgeted_cost=$9,
    completion_percentage=$10, status=$11, updated_at=NOW()
WHERE id=$1
RETURNING `+projectColumns,
		p.ID, p.Name, p.Description, p.Location, p.StartDate, p.EndDate, p.ActualEndDate,
		p.ContractValue, p.BudgetedCost, p.CompletionPercentage, string(p.Status))
	return scanProject(row)
}

// Get fetches one project by id.
func (r *Repository) Get(ctx context.Context, id int64) (Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id)
	return scanProject(row)
}

// List returns all projects ordered by start date.
func (r *Repository) List(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY start_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProjects(rows)
}

// ListByStatus filters projects on lifecycle state.
func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects WHERE status=$1 ORDER BY start_date DESC, id DESC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProjects(rows)
}

// ListOverdue returns unfinished projects past their planned end date.
func (r *Repository) ListOverdue(ctx context.Context, now time.Time) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects
WHERE end_date IS NOT NULL AND end_date < $1 AND status NOT IN ('COMPLETED', 'CANCELLED')
ORDER BY end_date ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProjects(rows)
}

// Delete hard-deletes a project. Unlike materials there is no soft flag; this
// mirrors the privileged delete path of the original system.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func collectProjects(rows pgx.Rows) ([]Project, error) {
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const milestoneColumns = `id, project_id, name, description, planned_start_date, planned_end_date,
COALESCE(actual_start_date, '0001-01-01'), COALESCE(actual_end_date, '0001-01-01'),
completion_percentage, status, notes, created_at, updated_at`

func scanMilestone(row pgx.Row) (Milestone, error) {
	var m Milestone
	var status string
	err := row.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Description, &m.PlannedStartDate, &m.PlannedEndDate,
		&m.ActualStartDate, &m.ActualEndDate, &m.CompletionPercentage, &status, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Milestone{}, shared.ErrNotFound
		}
		return Milestone{}, err
	}
	m.Status = MilestoneStatus(status)
	return m, nil
}

// CreateMilestone inserts a milestone row.
func (r *Repository) CreateMilestone(ctx context.Context, m Milestone) (Milestone, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO project_milestones
(project_id, name, description, planned_start_date, planned_end_date, completion_percentage, status, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, $6, $7, NOW(), NOW())
RETURNING `+milestoneColumns,
		m.ProjectID, m.Name, m.Description, m.PlannedStartDate, m.PlannedEndDate, string(m.Status), m.Notes)
	return scanMilestone(row)
}

// GetMilestone fetches one milestone by id.
func (r *Repository) GetMilestone(ctx context.Context, id int64) (Milestone, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM project_milestones WHERE id=$1`, id)
	return scanMilestone(row)
}

// UpdateMilestoneStatus writes a new state onto a milestone.
func (r *Repository) UpdateMilestoneStatus(ctx context.Context, id int64, status MilestoneStatus, actualEnd time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE project_milestones
SET status=$2, actual_end_date=NULLIF($3, '0001-01-01'::date), updated_at=NOW() WHERE id=$1`,
		id, string(status), actualEnd)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListMilestones returns milestones for a project.
func (r *Repository) ListMilestones(ctx context.Context, projectID int64) ([]Milestone, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+milestoneColumns+` FROM project_milestones
WHERE project_id=$1 ORDER BY planned_end_date ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMilestones(rows)
}

// ListOverdueMilestones returns incomplete milestones past their planned end.
func (r *Repository) ListOverdueMilestones(ctx context.Context, now time.Time) ([]Milestone, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+milestoneColumns+` FROM project_milestones
WHERE planned_end_date < $1 AND status NOT IN ('COMPLETED', 'DELAYED') ORDER BY planned_end_date ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMilestones(rows)
}

func collectMilestones(rows pgx.Rows) ([]Milestone, error) {
	var out []Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
