package project

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

// Status enumerates project lifecycle states.
type Status string

const (
	StatusPlanning  Status = "PLANNING"
	StatusActive    Status = "ACTIVE"
	StatusOnHold    Status = "ON_HOLD"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusOnHold, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Project carries contract and financial state for one construction site.
// ActualCost and ActualRevenue are derived fields, rewritten by the financial
// rollup each time an approval state changes; nothing else writes them.
type Project struct {
	ID                   int64
	Name                 string
	Description          string
	Location             string
	StartDate            time.Time
	EndDate              time.Time
	ActualEndDate        time.Time
	ContractValue        decimal.Decimal
	BudgetedCost         decimal.Decimal
	ActualCost           decimal.Decimal
	ActualRevenue        decimal.Decimal
	CompletionPercentage decimal.Decimal
	Status               Status
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

var hundred = decimal.NewFromInt(100)

// ProfitMargin returns (revenue - cost) / revenue * 100, or zero when there is
// no revenue yet. Never an error, never division by zero.
func (p Project) ProfitMargin() decimal.Decimal {
	if p.ActualRevenue.IsZero() {
		return decimal.Zero
	}
	profit := p.ActualRevenue.Sub(p.ActualCost)
	return profit.Div(p.ActualRevenue).Mul(hundred).Round(2)
}

// BudgetVariance returns (actual - budgeted) / budgeted * 100, or zero when no
// budget is set. Positive means over budget.
func (p Project) BudgetVariance() decimal.Decimal {
	if p.BudgetedCost.IsZero() {
		return decimal.Zero
	}
	variance := p.ActualCost.Sub(p.BudgetedCost)
	return variance.Div(p.BudgetedCost).Mul(hundred).Round(2)
}

// OverBudget reports whether actual cost has exceeded the budget.
func (p Project) OverBudget() bool {
	return p.BudgetVariance().IsPositive()
}

// MilestoneStatus enumerates milestone states.
type MilestoneStatus string

const (
	MilestoneNotStarted MilestoneStatus = "NOT_STARTED"
	MilestoneInProgress MilestoneStatus = "IN_PROGRESS"
	MilestoneCompleted  MilestoneStatus = "COMPLETED"
	MilestoneDelayed    MilestoneStatus = "DELAYED"
)

// Milestone is a dated deliverable within a project.
type Milestone struct {
	ID                   int64
	ProjectID            int64
	Name                 string
	Description          string
	PlannedStartDate     time.Time
	PlannedEndDate       time.Time
	ActualStartDate      time.Time
	ActualEndDate        time.Time
	CompletionPercentage decimal.Decimal
	Status               MilestoneStatus
	Notes                string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Delayed reports whether the milestone missed its planned end date.
func (m Milestone) Delayed(now time.Time) bool {
	if m.Status == MilestoneCompleted {
		return !m.ActualEndDate.IsZero() && m.ActualEndDate.After(m.PlannedEndDate)
	}
	return now.After(m.PlannedEndDate)
}

var (
	// ErrNameRequired indicates a blank project or milestone name.
	ErrNameRequired = fmt.Errorf("project: name is required: %w", shared.ErrValidation)
	// ErrLocationRequired indicates a blank site location.
	ErrLocationRequired = fmt.Errorf("project: location is required: %w", shared.ErrValidation)
	// ErrStartDateRequired indicates a missing start date.
	ErrStartDateRequired = fmt.Errorf("project: start date is required: %w", shared.ErrValidation)
	// ErrInvalidStatus indicates an unknown lifecycle state.
	ErrInvalidStatus = fmt.Errorf("project: invalid status: %w", shared.ErrValidation)
	// ErrInvalidCompletion indicates a completion percentage outside 0..100.
	ErrInvalidCompletion = fmt.Errorf("project: completion percentage must be between 0 and 100: %w", shared.ErrValidation)
)
