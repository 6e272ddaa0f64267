package finance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sitemaster-erp/sitemaster/internal/platform/db"
	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

// Repository persists financial transactions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProjectFinancials is the slice of a project the rollup works with. The row
// is locked while an approval is in flight so concurrent approvals on the
// same project serialise their recomputations.
type ProjectFinancials struct {
	ID            int64
	Name          string
	BudgetedCost  decimal.Decimal
	ActualCost    decimal.Decimal
	ActualRevenue decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ProfitMargin returns (revenue - cost) / revenue * 100, zero when there is
// no revenue.
func (p ProjectFinancials) ProfitMargin() decimal.Decimal {
	if p.ActualRevenue.IsZero() {
		return decimal.Zero
	}
	return p.ActualRevenue.Sub(p.ActualCost).Div(p.ActualRevenue).Mul(hundred).Round(2)
}

// BudgetVariance returns (cost - budgeted) / budgeted * 100, zero when no
// budget is set. Positive means over budget.
func (p ProjectFinancials) BudgetVariance() decimal.Decimal {
	if p.BudgetedCost.IsZero() {
		return decimal.Zero
	}
	return p.ActualCost.Sub(p.BudgetedCost).Div(p.BudgetedCost).Mul(hundred).Round(2)
}

// OverBudget reports whether actual cost exceeds the budget.
func (p ProjectFinancials) OverBudget() bool {
	return p.BudgetVariance().IsPositive()
}

// TxRepository exposes the operations that must share one transaction with an
// approval state change.
type TxRepository interface {
	GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error)
	LockProject(ctx context.Context, id int64) (ProjectFinancials, error)
	SetApproved(ctx context.Context, id, approvedBy int64, at time.Time) error
	SumApprovedByType(ctx context.Context, projectID int64) (income, expense decimal.Decimal, err error)
	ApplyProjectFinancials(ctx context.Context, projectID int64, cost, revenue decimal.Decimal) error
	UpdateTransaction(ctx context.Context, t Transaction) (Transaction, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("finance repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const transactionColumns = `id, project_id, tx_type, category, amount, description, reference_number, notes, transaction_date, created_by, approved_by, approved, approved_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t          Transaction
		approvedBy *int64
		approvedAt *time.Time
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Type, &t.Category, &t.Amount, &t.Description,
		&t.ReferenceNumber, &t.Notes, &t.TransactionDate, &t.CreatedBy, &approvedBy,
		&t.Approved, &approvedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.ErrNotFound
		}
		return Transaction{}, err
	}
	if approvedBy != nil {
		t.ApprovedBy = *approvedBy
	}
	if approvedAt != nil {
		t.ApprovedAt = *approvedAt
	}
	return t, nil
}

// GetTransactionForUpdate locks the transaction row for the remainder of the
// enclosing database transaction.
func (r *txRepository) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM financial_transactions WHERE id=$1 FOR UPDATE`, id)
	return scanTransaction(row)
}

// LockProject locks the project row and returns its financial slice.
func (r *txRepository) LockProject(ctx context.Context, id int64) (ProjectFinancials, error) {
	var p ProjectFinancials
	err := r.tx.QueryRow(ctx, `SELECT id, name, budgeted_cost, actual_cost, actual_revenue
FROM projects WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Name, &p.BudgetedCost, &p.ActualCost, &p.ActualRevenue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProjectFinancials{}, shared.ErrNotFound
		}
		return ProjectFinancials{}, err
	}
	return p, nil
}

func (r *txRepository) SetApproved(ctx context.Context, id, approvedBy int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE financial_transactions
SET approved=TRUE, approved_by=$2, approved_at=$3, updated_at=NOW() WHERE id=$1`, id, approvedBy, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SumApprovedByType re-aggregates the approved ledger for one project.
func (r *txRepository) SumApprovedByType(ctx context.Context, projectID int64) (decimal.Decimal, decimal.Decimal, error) {
	var income, expense decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE tx_type='INCOME'), 0),
COALESCE(SUM(amount) FILTER (WHERE tx_type='EXPENSE'), 0)
FROM financial_transactions WHERE project_id=$1 AND approved=TRUE`, projectID).
		Scan(&income, &expense)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return income, expense, nil
}

func (r *txRepository) ApplyProjectFinancials(ctx context.Context, projectID int64, cost, revenue decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE projects SET actual_cost=$2, actual_revenue=$3, updated_at=NOW() WHERE id=$1`,
		projectID, cost, revenue)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `UPDATE financial_transactions
SET tx_type=$2, category=$3, amount=$4, description=$5, reference_number=$6, notes=$7,
    transaction_date=$8, updated_at=NOW()
WHERE id=$1
RETURNING `+transactionColumns,
		t.ID, string(t.Type), string(t.Category), t.Amount, t.Description,
		t.ReferenceNumber, t.Notes, t.TransactionDate)
	return scanTransaction(row)
}

// Insert persists a new, unapproved transaction.
func (r *Repository) Insert(ctx context.Context, t Transaction) (Transaction, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO financial_transactions
(project_id, tx_type, category, amount, description, reference_number, notes, transaction_date, created_by, approved)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE(NULLIF($8, '0001-01-01 00:00:00'::timestamptz), NOW()), $9, FALSE)
RETURNING `+transactionColumns,
		t.ProjectID, string(t.Type), string(t.Category), t.Amount, t.Description,
		t.ReferenceNumber, t.Notes, t.TransactionDate, t.CreatedBy)
	return scanTransaction(row)
}

// Get fetches one transaction by id.
func (r *Repository) Get(ctx context.Context, id int64) (Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM financial_transactions WHERE id=$1`, id)
	return scanTransaction(row)
}

// ProjectExists reports whether a project row exists.
func (r *Repository) ProjectExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

// AppendRejectionNote appends a rejection annotation to the transaction notes.
func (r *Repository) AppendRejectionNote(ctx context.Context, id int64, note string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE financial_transactions
SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n' || $2 END, updated_at=NOW()
WHERE id=$1`, id, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns transactions matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Transaction, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	var approvedFilter, approvedValue bool
	if f.Approved != nil {
		approvedFilter = true
		approvedValue = *f.Approved
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM financial_transactions
WHERE ($1 = 0 OR project_id = $1)
  AND ($2 = '' OR tx_type = $2)
  AND ($3 = '' OR category = $3)
  AND (NOT $4::bool OR approved = $5)
  AND transaction_date >= COALESCE(NULLIF($6, '0001-01-01 00:00:00'::timestamptz), '-infinity'::timestamptz)
  AND transaction_date <= COALESCE(NULLIF($7, '0001-01-01 00:00:00'::timestamptz), 'infinity'::timestamptz)
ORDER BY transaction_date DESC, id DESC
LIMIT $8`,
		f.ProjectID, string(f.Type), string(f.Category), approvedFilter, approvedValue, f.From, f.To, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SumApprovedByCategory returns the approved total for one project/category.
func (r *Repository) SumApprovedByCategory(ctx context.Context, projectID int64, category Category) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM financial_transactions
WHERE project_id=$1 AND category=$2 AND approved=TRUE`, projectID, string(category)).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// ExpensesByCategory groups a project's approved expenses by category.
func (r *Repository) ExpensesByCategory(ctx context.Context, projectID int64) (map[Category]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT category, COALESCE(SUM(amount), 0)
FROM financial_transactions
WHERE project_id=$1 AND tx_type='EXPENSE' AND approved=TRUE
GROUP BY category`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[Category]decimal.Decimal{}
	for rows.Next() {
		var (
			category string
			total    decimal.Decimal
		)
		if err := rows.Scan(&category, &total); err != nil {
			return nil, err
		}
		out[Category(category)] = total
	}
	return out, rows.Err()
}

// GetProjectFinancials returns the financial slice of one project.
func (r *Repository) GetProjectFinancials(ctx context.Context, id int64) (ProjectFinancials, error) {
	var p ProjectFinancials
	err := r.pool.QueryRow(ctx, `SELECT id, name, budgeted_cost, actual_cost, actual_revenue
FROM projects WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.BudgetedCost, &p.ActualCost, &p.ActualRevenue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProjectFinancials{}, shared.ErrNotFound
		}
		return ProjectFinancials{}, err
	}
	return p, nil
}

// ListProjectFinancials returns the financial slice of every project.
func (r *Repository) ListProjectFinancials(ctx context.Context) ([]ProjectFinancials, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, budgeted_cost, actual_cost, actual_revenue
FROM projects ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProjectFinancials
	for rows.Next() {
		var p ProjectFinancials
		if err := rows.Scan(&p.ID, &p.Name, &p.BudgetedCost, &p.ActualCost, &p.ActualRevenue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
