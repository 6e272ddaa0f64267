package labor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id int64) (Record, error)
	Delete(ctx context.Context, id int64) error
	ListByProject(ctx context.Context, projectID int64) ([]Record, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]Record, error)
	ListByProjectAndDateRange(ctx context.Context, projectID int64, from, to time.Time) ([]Record, error)
	SearchByWorker(ctx context.Context, name string) ([]Record, error)
	SumTotalPayByProject(ctx context.Context, projectID int64) (decimal.Decimal, error)
	SumHoursByProjectAndDateRange(ctx context.Context, projectID int64, from, to time.Time) (decimal.Decimal, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates labor record keeping and payroll-style summaries.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService wires the labor service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

var hoursInDay = decimal.NewFromInt(24)

func validateRecord(rec Record) error {
	if rec.WorkerName == "" {
		return ErrWorkerNameRequired
	}
	if rec.JobTitle == "" {
		return ErrJobTitleRequired
	}
	if rec.WorkDate.IsZero() {
		return ErrWorkDateRequired
	}
	if rec.HoursWorked.IsNegative() || rec.HoursWorked.GreaterThan(hoursInDay) || rec.OvertimeHours.IsNegative() {
		return ErrInvalidHours
	}
	if rec.HourlyRate.IsNegative() || rec.OvertimeRate.IsNegative() {
		return ErrInvalidRate
	}
	if rec.Attendance != "" && !rec.Attendance.Valid() {
		return ErrInvalidAttendance
	}
	return nil
}

// Record stores one worker-day. Total pay is derived from the hour and rate
// fields; any value the client sent is discarded.
func (s *Service) Record(ctx context.Context, rec Record) (Record, error) {
	if err := validateRecord(rec); err != nil {
		return Record{}, err
	}
	if rec.Attendance == "" {
		rec.Attendance = AttendancePresent
	}
	rec.TotalPay = rec.ComputeTotalPay()
	rec.RecordedBy = shared.ActorFromContext(ctx)
	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, "RECORD_LABOR", created.ID, "",
		fmt.Sprintf("Worker: %s, Date: %s, Pay: %s", created.WorkerName, created.WorkDate.Format("2006-01-02"), created.TotalPay))
	s.logger.Info("labor record created",
		slog.Int64("record_id", created.ID), slog.Int64("project_id", created.ProjectID))
	return created, nil
}

// Update rewrites a labor record and recomputes its total pay. The project a
// record belongs to never changes after creation.
func (s *Service) Update(ctx context.Context, rec Record) (Record, error) {
	if err := validateRecord(rec); err != nil {
		return Record{}, err
	}
	current, err := s.repo.Get(ctx, rec.ID)
	if err != nil {
		return Record{}, err
	}
	rec.ProjectID = current.ProjectID
	if rec.Attendance == "" {
		rec.Attendance = current.Attendance
	}
	rec.TotalPay = rec.ComputeTotalPay()
	updated, err := s.repo.Update(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, "UPDATE_LABOR", updated.ID,
		fmt.Sprintf("Hours: %s, Pay: %s", current.HoursWorked, current.TotalPay),
		fmt.Sprintf("Hours: %s, Pay: %s", updated.HoursWorked, updated.TotalPay))
	return updated, nil
}

// Get returns one labor record.
func (s *Service) Get(ctx context.Context, id int64) (Record, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes a labor record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "DELETE_LABOR", id,
		fmt.Sprintf("Worker: %s, Date: %s", rec.WorkerName, rec.WorkDate.Format("2006-01-02")), "")
	return nil
}

// ListByProject returns a project's labor records, newest work date first.
// When a from/to window is supplied the listing is restricted to it.
func (s *Service) ListByProject(ctx context.Context, projectID int64, from, to time.Time) ([]Record, error) {
	if !from.IsZero() && !to.IsZero() {
		return s.repo.ListByProjectAndDateRange(ctx, projectID, from, to)
	}
	return s.repo.ListByProject(ctx, projectID)
}

// ListByDateRange returns all labor records inside a date window.
func (s *Service) ListByDateRange(ctx context.Context, from, to time.Time) ([]Record, error) {
	return s.repo.ListByDateRange(ctx, from, to)
}

// SearchByWorker returns records whose worker name contains the given
// fragment, case-insensitively.
func (s *Service) SearchByWorker(ctx context.Context, name string) ([]Record, error) {
	return s.repo.SearchByWorker(ctx, name)
}

// CostSummary aggregates a project's labor spend.
type CostSummary struct {
	ProjectID  int64           `json:"projectId"`
	TotalPay   decimal.Decimal `json:"totalPay"`
	TotalHours decimal.Decimal `json:"totalHours"`
}

// ProjectCost returns the labor spend for a project: total pay across all
// records, and total regular hours inside the optional window (all time when
// no window is given).
func (s *Service) ProjectCost(ctx context.Context, projectID int64, from, to time.Time) (CostSummary, error) {
	pay, err := s.repo.SumTotalPayByProject(ctx, projectID)
	if err != nil {
		return CostSummary{}, err
	}
	if from.IsZero() {
		from = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	hours, err := s.repo.SumHoursByProjectAndDateRange(ctx, projectID, from, to)
	if err != nil {
		return CostSummary{}, err
	}
	return CostSummary{ProjectID: projectID, TotalPay: pay, TotalHours: hours}, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, recordID int64, oldValues, newValues string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:   shared.ActorFromContext(ctx),
		Action:    action,
		Entity:    "LaborRecord",
		EntityID:  fmt.Sprintf("%d", recordID),
		OldValues: oldValues,
		NewValues: newValues,
	}); err != nil {
		s.logger.Warn("audit labor", slog.String("action", action), slog.Any("error", err))
	}
}
