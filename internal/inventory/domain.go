package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

// TransactionType enumerates supported stock movements.
type TransactionType string

const (
	// TransactionStockIn represents a goods receipt against a purchase.
	TransactionStockIn TransactionType = "STOCK_IN"
	// TransactionStockOut represents an issue of material to a site crew.
	TransactionStockOut TransactionType = "STOCK_OUT"
	// TransactionAdjustment represents a manual correction, signed either way.
	TransactionAdjustment TransactionType = "ADJUSTMENT"
)

// Material is the ledger row for a stock-tracked item. Stock is mutated only
// through the transaction engine, never written directly.
type Material struct {
	ID            int64
	Name          string
	Description   string
	Unit          string
	UnitPrice     decimal.Decimal
	CurrentStock  decimal.Decimal
	MinStockLevel decimal.Decimal
	MaxStockLevel decimal.Decimal
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LowStock reports whether current stock has fallen to or below the minimum.
func (m Material) LowStock() bool {
	return m.CurrentStock.Cmp(m.MinStockLevel) <= 0
}

// Supplier identifies a material vendor.
type Supplier struct {
	ID            int64
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Transaction records a single stock movement. Immutable once persisted.
type Transaction struct {
	ID              int64
	ProjectID       int64
	MaterialID      int64
	SupplierID      int64
	Type            TransactionType
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	TotalAmount     decimal.Decimal
	PurchaseOrderRef string
	IssuedTo        string
	Notes           string
	TransactionDate time.Time
	CreatedBy       int64
}

// ComputeTotal recomputes the line total from quantity and unit price.
// Called before every persist so the stored total never drifts.
func (t *Transaction) ComputeTotal() {
	t.TotalAmount = t.Quantity.Mul(t.UnitPrice)
}

// StockInInput describes a goods receipt request.
type StockInInput struct {
	ProjectID        int64
	MaterialID       int64
	SupplierID       int64
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	PurchaseOrderRef string
	Notes            string
	ActorID          int64
}

// StockOutInput describes a material issue request.
type StockOutInput struct {
	ProjectID  int64
	MaterialID int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	IssuedTo   string
	Notes      string
	ActorID    int64
}

// AdjustmentInput describes a manual stock correction. Quantity may be
// negative to represent shrinkage.
type AdjustmentInput struct {
	ProjectID  int64
	MaterialID int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	Reason     string
	ActorID    int64
}

// TransactionFilter narrows transaction queries.
type TransactionFilter struct {
	ProjectID  int64
	MaterialID int64
	SupplierID int64
	From       time.Time
	To         time.Time
	Limit      int
}

var (
	// ErrMaterialRequired indicates a missing material reference.
	ErrMaterialRequired = fmt.Errorf("inventory: material is required: %w", shared.ErrValidation)
	// ErrProjectRequired indicates a missing project reference.
	ErrProjectRequired = fmt.Errorf("inventory: project is required: %w", shared.ErrValidation)
	// ErrInvalidQuantity indicates a non-positive quantity on stock in/out.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must be greater than zero: %w", shared.ErrValidation)
	// ErrInvalidAdjustment indicates a zero adjustment quantity.
	ErrInvalidAdjustment = fmt.Errorf("inventory: adjustment quantity must be non-zero: %w", shared.ErrValidation)
	// ErrInvalidUnitPrice indicates a negative unit price.
	ErrInvalidUnitPrice = fmt.Errorf("inventory: unit price cannot be negative: %w", shared.ErrValidation)
	// ErrNameRequired indicates a blank material or supplier name.
	ErrNameRequired = fmt.Errorf("inventory: name is required: %w", shared.ErrValidation)
	// ErrUnitRequired indicates a blank unit of measure.
	ErrUnitRequired = fmt.Errorf("inventory: unit of measure is required: %w", shared.ErrValidation)
)
