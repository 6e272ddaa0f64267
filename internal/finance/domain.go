package finance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "INCOME"
	TransactionExpense TransactionType = "EXPENSE"
)

// Category classifies a transaction within its type. Income and expense
// categories are disjoint sets, enforced at validation time: a category paired
// with the wrong type is rejected, never stored.
type Category string

const (
	CategoryContractPayment  Category = "CONTRACT_PAYMENT"
	CategoryMilestonePayment Category = "MILESTONE_PAYMENT"
	CategoryRetentionRelease Category = "RETENTION_RELEASE"

	CategoryMaterials       Category = "MATERIALS"
	CategoryLabor           Category = "LABOR"
	CategoryEquipment       Category = "EQUIPMENT"
	CategoryTransportation  Category = "TRANSPORTATION"
	CategoryUtilities       Category = "UTILITIES"
	CategoryOverhead        Category = "OVERHEAD"
	CategorySubcontractor   Category = "SUBCONTRACTOR"
	CategoryPermitsLicenses Category = "PERMITS_LICENSES"
	CategoryInsurance       Category = "INSURANCE"
	CategoryOther           Category = "OTHER"
)

var categoryTypes = map[Category]TransactionType{
	CategoryContractPayment:  TransactionIncome,
	CategoryMilestonePayment: TransactionIncome,
	CategoryRetentionRelease: TransactionIncome,
	CategoryMaterials:        TransactionExpense,
	CategoryLabor:            TransactionExpense,
	CategoryEquipment:        TransactionExpense,
	CategoryTransportation:   TransactionExpense,
	CategoryUtilities:        TransactionExpense,
	CategoryOverhead:         TransactionExpense,
	CategorySubcontractor:    TransactionExpense,
	CategoryPermitsLicenses:  TransactionExpense,
	CategoryInsurance:        TransactionExpense,
	CategoryOther:            TransactionExpense,
}

// Type returns the transaction type the category belongs to, or "" for an
// unknown category.
func (c Category) Type() TransactionType {
	return categoryTypes[c]
}

// Valid reports whether the category is known.
func (c Category) Valid() bool {
	_, ok := categoryTypes[c]
	return ok
}

// Transaction is one ledger entry against a project. Entries are append-only
// apart from the approval transition and rejection annotations; only approved
// entries count toward project financial totals.
type Transaction struct {
	ID              int64
	ProjectID       int64
	Type            TransactionType
	Category        Category
	Amount          decimal.Decimal
	Description     string
	ReferenceNumber string
	Notes           string
	TransactionDate time.Time
	CreatedBy       int64
	ApprovedBy      int64
	Approved        bool
	ApprovedAt      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Filter narrows transaction listings.
type Filter struct {
	ProjectID int64
	Type      TransactionType
	Category  Category
	Approved  *bool
	From      time.Time
	To        time.Time
	Limit     int
}

var (
	// ErrProjectRequired indicates a transaction without a project reference.
	ErrProjectRequired = fmt.Errorf("finance: project is required: %w", shared.ErrValidation)
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = fmt.Errorf("finance: amount must be greater than zero: %w", shared.ErrValidation)
	// ErrDescriptionRequired indicates a blank description.
	ErrDescriptionRequired = fmt.Errorf("finance: description is required: %w", shared.ErrValidation)
	// ErrInvalidType indicates an unknown transaction type.
	ErrInvalidType = fmt.Errorf("finance: type must be INCOME or EXPENSE: %w", shared.ErrValidation)
	// ErrInvalidCategory indicates an unknown category.
	ErrInvalidCategory = fmt.Errorf("finance: unknown category: %w", shared.ErrValidation)
	// ErrCategoryMismatch indicates a category paired with the wrong type.
	ErrCategoryMismatch = fmt.Errorf("finance: category does not match transaction type: %w", shared.ErrValidation)
	// ErrReasonRequired indicates a rejection without a reason.
	ErrReasonRequired = fmt.Errorf("finance: rejection reason is required: %w", shared.ErrValidation)
)
