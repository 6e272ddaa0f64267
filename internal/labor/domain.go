package labor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

// AttendanceStatus enumerates daily attendance outcomes.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceHalfDay AttendanceStatus = "HALF_DAY"
	AttendanceOnLeave AttendanceStatus = "ON_LEAVE"
)

// Valid reports whether the status is a known attendance outcome.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceHalfDay, AttendanceOnLeave:
		return true
	}
	return false
}

// Record is one worker-day on a project: hours, rates and the pay derived
// from them. TotalPay is always recomputed from the factors before a write;
// clients never supply it.
type Record struct {
	ID              int64
	ProjectID       int64
	WorkerName      string
	WorkerID        string
	JobTitle        string
	WorkDate        time.Time
	HoursWorked     decimal.Decimal
	OvertimeHours   decimal.Decimal
	HourlyRate      decimal.Decimal
	OvertimeRate    decimal.Decimal
	TotalPay        decimal.Decimal
	WorkDescription string
	Attendance      AttendanceStatus
	Notes           string
	RecordedBy      int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ComputeTotalPay returns hours×rate plus overtime hours×overtime rate.
func (r Record) ComputeTotalPay() decimal.Decimal {
	pay := r.HoursWorked.Mul(r.HourlyRate)
	if r.OvertimeHours.IsPositive() && r.OvertimeRate.IsPositive() {
		pay = pay.Add(r.OvertimeHours.Mul(r.OvertimeRate))
	}
	return pay
}

var (
	// ErrWorkerNameRequired indicates a blank worker name.
	ErrWorkerNameRequired = fmt.Errorf("labor: worker name is required: %w", shared.ErrValidation)
	// ErrJobTitleRequired indicates a blank job title.
	ErrJobTitleRequired = fmt.Errorf("labor: job title is required: %w", shared.ErrValidation)
	// ErrWorkDateRequired indicates a missing work date.
	ErrWorkDateRequired = fmt.Errorf("labor: work date is required: %w", shared.ErrValidation)
	// ErrInvalidHours indicates hours outside 0..24 or negative overtime.
	ErrInvalidHours = fmt.Errorf("labor: hours must be between 0 and 24: %w", shared.ErrValidation)
	// ErrInvalidRate indicates a negative pay rate.
	ErrInvalidRate = fmt.Errorf("labor: rates must not be negative: %w", shared.ErrValidation)
	// ErrInvalidAttendance indicates an unknown attendance status.
	ErrInvalidAttendance = fmt.Errorf("labor: invalid attendance status: %w", shared.ErrValidation)
)
