package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a request rejected before any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyApproved indicates a second approval attempt on the same transaction.
	ErrAlreadyApproved = errors.New("transaction already approved")
)

// InsufficientStockError reports a stock-out exceeding the available quantity.
type InsufficientStockError struct {
	MaterialID int64
	Available  decimal.Decimal
	Unit       string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %s %s", e.Available, e.Unit)
}
