package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads aggregate figures for the dashboard snapshot.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProjectStats returns counts and financial totals across all projects.
func (r *Repository) ProjectStats(ctx context.Context) (total, active, completed, overdue int64, budget, cost, revenue decimal.Decimal, err error) {
	err = r.pool.QueryRow(ctx, `SELECT
COUNT(*),
COUNT(*) FILTER (WHERE status = 'ACTIVE'),
COUNT(*) FILTER (WHERE status = 'COMPLETED'),
COUNT(*) FILTER (WHERE end_date IS NOT NULL AND end_date < NOW() AND status NOT IN ('COMPLETED', 'CANCELLED')),
COALESCE(SUM(budgeted_cost), 0),
COALESCE(SUM(actual_cost), 0),
COALESCE(SUM(actual_revenue), 0)
FROM projects`).
		Scan(&total, &active, &completed, &overdue, &budget, &cost, &revenue)
	return
}

// OverBudgetCount returns the number of budgeted projects whose actual cost
// exceeds their budget.
func (r *Repository) OverBudgetCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects
WHERE budgeted_cost > 0 AND actual_cost > budgeted_cost`).Scan(&n)
	return n, err
}

// MonthlyFinancials returns approved income and expense totals for the
// current calendar month.
func (r *Repository) MonthlyFinancials(ctx context.Context) (income, expense decimal.Decimal, err error) {
	err = r.pool.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE tx_type = 'INCOME'), 0),
COALESCE(SUM(amount) FILTER (WHERE tx_type = 'EXPENSE'), 0)
FROM financial_transactions
WHERE approved AND transaction_date >= date_trunc('month', NOW())`).
		Scan(&income, &expense)
	return
}

// LowStockCount returns the number of active materials at or below their
// minimum stock level.
func (r *Repository) LowStockCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM materials
WHERE active AND current_stock <= min_stock_level`).Scan(&n)
	return n, err
}

// PendingApprovalCount returns the number of unapproved financial transactions.
func (r *Repository) PendingApprovalCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM financial_transactions WHERE NOT approved`).Scan(&n)
	return n, err
}

// RecentProjectNames returns the most recently created project names.
func (r *Repository) RecentProjectNames(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM projects ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
