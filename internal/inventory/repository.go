package inventory

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

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations that must share one transaction with a
// stock mutation.
type TxRepository interface {
	GetMaterialForUpdate(ctx context.Context, id int64) (Material, error)
	UpdateMaterialStock(ctx context.Context, id int64, stock decimal.Decimal) error
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const materialColumns = `id, name, description, unit, unit_price, current_stock, min_stock_level, max_stock_level, active, created_at, updated_at`

func scanMaterial(row pgx.Row) (Material, error) {
	var m Material
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Unit, &m.UnitPrice, &m.CurrentStock,
		&m.MinStockLevel, &m.MaxStockLevel, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, shared.ErrNotFound
		}
		return Material{}, err
	}
	return m, nil
}

// GetMaterialForUpdate locks the material row for the remainder of the
// transaction so concurrent stock-outs serialise on it.
func (r *txRepository) GetMaterialForUpdate(ctx context.Context, id int64) (Material, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id=$1 FOR UPDATE`, id)
	return scanMaterial(row)
}

func (r *txRepository) UpdateMaterialStock(ctx context.Context, id int64, stock decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE materials SET current_stock=$2, updated_at=NOW() WHERE id=$1`, id, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, tx Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_transactions
(project_id, material_id, supplier_id, tx_type, quantity, unit_price, total_amount, po_reference, issued_to, notes, transaction_date, created_by)
VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, 0))
RETURNING id`,
		tx.ProjectID, tx.MaterialID, tx.SupplierID, string(tx.Type), tx.Quantity, tx.UnitPrice,
		tx.TotalAmount, tx.PurchaseOrderRef, tx.IssuedTo, tx.Notes, tx.TransactionDate, tx.CreatedBy).Scan(&id)
	return id, err
}

// CreateMaterial inserts a material row.
func (r *Repository) CreateMaterial(ctx context.Context, m Material) (Material, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO materials
(name, description, unit, unit_price, current_stock, min_stock_level, max_stock_level, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
RETURNING `+materialColumns,
		m.Name, m.Description, m.Unit, m.UnitPrice, m.CurrentStock, m.MinStockLevel, m.MaxStockLevel, m.Active)
	return scanMaterial(row)
}

// UpdateMaterial replaces the mutable material fields. Stock is not touched
// here; only the transaction engine writes it.
func (r *Repository) UpdateMaterial(ctx context.Context, m Material) (Material, error) {
	row := r.pool.QueryRow(ctx, `UPDATE materials
SET name=$2, description=$3, unit=$4, unit_price=$5, min_stock_level=$6, max_stock_level=$7, active=$8, updated_at=NOW()
WHERE id=$1
RETURNING `+materialColumns,
		m.ID, m.Name, m.Description, m.Unit, m.UnitPrice, m.MinStockLevel, m.MaxStockLevel, m.Active)
	return scanMaterial(row)
}

// GetMaterial fetches one material by id.
func (r *Repository) GetMaterial(ctx context.Context, id int64) (Material, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id=$1`, id)
	return scanMaterial(row)
}

// ListMaterials returns materials, optionally only active ones.
func (r *Repository) ListMaterials(ctx context.Context, activeOnly bool) ([]Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials ORDER BY name ASC`
	if activeOnly {
		query = `SELECT ` + materialColumns + ` FROM materials WHERE active ORDER BY name ASC`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMaterials(rows)
}

// ListLowStockMaterials returns active materials at or below their minimum.
func (r *Repository) ListLowStockMaterials(ctx context.Context) ([]Material, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+materialColumns+` FROM materials
WHERE active AND current_stock <= min_stock_level ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMaterials(rows)
}

// DeactivateMaterial soft-deletes a material.
func (r *Repository) DeactivateMaterial(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE materials SET active=false, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func collectMaterials(rows pgx.Rows) ([]Material, error) {
	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
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

const supplierColumns = `id, name, contact_person, email, phone, address, active, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Email, &s.Phone, &s.Address, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, shared.ErrNotFound
		}
		return Supplier{}, err
	}
	return s, nil
}

// CreateSupplier inserts a supplier row.
func (r *Repository) CreateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO suppliers
(name, contact_person, email, phone, address, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING `+supplierColumns,
		s.Name, s.ContactPerson, s.Email, s.Phone, s.Address, s.Active)
	return scanSupplier(row)
}

// UpdateSupplier replaces supplier fields.
func (r *Repository) UpdateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `UPDATE suppliers
SET name=$2, contact_person=$3, email=$4, phone=$5, address=$6, active=$7, updated_at=NOW()
WHERE id=$1
RETURNING `+supplierColumns,
		s.ID, s.Name, s.ContactPerson, s.Email, s.Phone, s.Address, s.Active)
	return scanSupplier(row)
}

// GetSupplier fetches one supplier by id.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id=$1`, id)
	return scanSupplier(row)
}

// ListSuppliers returns suppliers, optionally only active ones.
func (r *Repository) ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers ORDER BY name ASC`
	if activeOnly {
		query = `SELECT ` + supplierColumns + ` FROM suppliers WHERE active ORDER BY name ASC`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const transactionColumns = `id, project_id, material_id, COALESCE(supplier_id, 0), tx_type, quantity, unit_price, total_amount, po_reference, issued_to, notes, transaction_date, COALESCE(created_by, 0)`

// ListTransactions returns transactions matching the filter, newest first.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM inventory_transactions
WHERE ($1 = 0 OR project_id = $1)
  AND ($2 = 0 OR material_id = $2)
  AND ($3 = 0 OR supplier_id = $3)
  AND transaction_date BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')
ORDER BY transaction_date DESC, id DESC
LIMIT $6`,
		filter.ProjectID, filter.MaterialID, filter.SupplierID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		var txType string
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.MaterialID, &t.SupplierID, &txType, &t.Quantity,
			&t.UnitPrice, &t.TotalAmount, &t.PurchaseOrderRef, &t.IssuedTo, &t.Notes, &t.TransactionDate, &t.CreatedBy); err != nil {
			return nil, err
		}
		t.Type = TransactionType(txType)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ConsumptionCost sums STOCK_OUT totals for a project/material pair.
func (r *Repository) ConsumptionCost(ctx context.Context, projectID, materialID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM inventory_transactions
WHERE project_id=$1 AND material_id=$2 AND tx_type='STOCK_OUT'`, projectID, materialID).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
