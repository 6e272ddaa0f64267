package project

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
	Create(ctx context.Context, p Project) (Project, error)
	Update(ctx context.Context, p Project) (Project, error)
	Get(ctx context.Context, id int64) (Project, error)
	List(ctx context.Context) ([]Project, error)
	ListByStatus(ctx context.Context, status Status) ([]Project, error)
	ListOverdue(ctx context.Context, now time.Time) ([]Project, error)
	Delete(ctx context.Context, id int64) error
	CreateMilestone(ctx context.Context, m Milestone) (Milestone, error)
	GetMilestone(ctx context.Context, id int64) (Milestone, error)
	UpdateMilestoneStatus(ctx context.Context, id int64, status MilestoneStatus, actualEnd time.Time) error
	ListMilestones(ctx context.Context, projectID int64) ([]Milestone, error)
	ListOverdueMilestones(ctx context.Context, now time.Time) ([]Milestone, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifierPort abstracts notification dispatch.
type NotifierPort interface {
	ProjectStatusUpdate(ctx context.Context, projectID int64, name, status string, completion decimal.Decimal) error
	ProgressUpdate(ctx context.Context, projectID int64, name string, completion decimal.Decimal) error
	MilestoneDelayAlert(ctx context.Context, projectID int64, projectName, milestoneName string) error
}

// Service coordinates project lifecycle, progress and milestone tracking.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier NotifierPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the project service.
func NewService(repo RepositoryPort, audit AuditPort, notifier NotifierPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger, now: time.Now}
}

func validateProject(p Project) error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if p.Location == "" {
		return ErrLocationRequired
	}
	if p.StartDate.IsZero() {
		return ErrStartDateRequired
	}
	if p.Status != "" && !p.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Create registers a new project. New projects start in PLANNING unless a
// valid status is supplied, and derived financials always start at zero.
func (s *Service) Create(ctx context.Context, p Project) (Project, error) {
	if err := validateProject(p); err != nil {
		return Project{}, err
	}
	if p.Status == "" {
		p.Status = StatusPlanning
	}
	p.ActualCost = decimal.Zero
	p.ActualRevenue = decimal.Zero
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, "CREATE_PROJECT", created.ID,
		"", fmt.Sprintf("Name: %s, Status: %s", created.Name, created.Status))
	if s.notifier != nil {
		_ = s.notifier.ProjectStatusUpdate(ctx, created.ID, created.Name, string(created.Status), created.CompletionPercentage)
	}
	s.logger.Info("project created", slog.Int64("project_id", created.ID), slog.String("name", created.Name))
	return created, nil
}

// Update rewrites the editable fields of a project. Derived financials are
// kept out of the update statement so a stale client cannot clobber the
// rollup.
func (s *Service) Update(ctx context.Context, p Project) (Project, error) {
	if err := validateProject(p); err != nil {
		return Project{}, err
	}
	current, err := s.repo.Get(ctx, p.ID)
	if err != nil {
		return Project{}, err
	}
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, "UPDATE_PROJECT", updated.ID,
		fmt.Sprintf("Name: %s, Status: %s", current.Name, current.Status),
		fmt.Sprintf("Name: %s, Status: %s", updated.Name, updated.Status))
	if s.notifier != nil && current.Status != updated.Status {
		_ = s.notifier.ProjectStatusUpdate(ctx, updated.ID, updated.Name, string(updated.Status), updated.CompletionPercentage)
	}
	return updated, nil
}

// UpdateProgress sets the completion percentage and moves the lifecycle
// state along with it: any progress puts the project in ACTIVE, reaching
// 100% completes it and stamps the actual end date.
func (s *Service) UpdateProgress(ctx context.Context, id int64, completion decimal.Decimal) (Project, error) {
	if completion.IsNegative() || completion.GreaterThan(hundred) {
		return Project{}, ErrInvalidCompletion
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Project{}, err
	}
	oldStatus := p.Status
	p.CompletionPercentage = completion
	switch {
	case completion.GreaterThanOrEqual(hundred):
		p.Status = StatusCompleted
		if p.ActualEndDate.IsZero() {
			p.ActualEndDate = s.now()
		}
	case completion.IsPositive():
		p.Status = StatusActive
	}
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, "UPDATE_PROJECT_PROGRESS", updated.ID,
		fmt.Sprintf("Status: %s", oldStatus),
		fmt.Sprintf("Status: %s, Completion: %s%%", updated.Status, completion))
	if s.notifier != nil {
		_ = s.notifier.ProgressUpdate(ctx, updated.ID, updated.Name, completion)
		if updated.Status != oldStatus {
			_ = s.notifier.ProjectStatusUpdate(ctx, updated.ID, updated.Name, string(updated.Status), completion)
		}
	}
	return updated, nil
}

// Get returns one project.
func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	return s.repo.Get(ctx, id)
}

// List returns all projects, newest first.
func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx)
}

// ListByStatus returns projects in the given lifecycle state.
func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Project, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListByStatus(ctx, status)
}

// ListOverdue returns unfinished projects past their planned end date.
func (s *Service) ListOverdue(ctx context.Context) ([]Project, error) {
	return s.repo.ListOverdue(ctx, s.now())
}

// Delete removes a project outright. Routing restricts this to admins.
func (s *Service) Delete(ctx context.Context, id int64) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "DELETE_PROJECT", id, fmt.Sprintf("Name: %s, Status: %s", p.Name, p.Status), "")
	return nil
}

// CreateMilestone adds a milestone to a project.
func (s *Service) CreateMilestone(ctx context.Context, m Milestone) (Milestone, error) {
	if m.Name == "" {
		return Milestone{}, ErrNameRequired
	}
	if _, err := s.repo.Get(ctx, m.ProjectID); err != nil {
		return Milestone{}, err
	}
	if m.Status == "" {
		m.Status = MilestoneNotStarted
	}
	created, err := s.repo.CreateMilestone(ctx, m)
	if err != nil {
		return Milestone{}, err
	}
	s.recordAudit(ctx, "CREATE_MILESTONE", created.ProjectID, "",
		fmt.Sprintf("Milestone: %s, Planned End: %s", created.Name, created.PlannedEndDate.Format("2006-01-02")))
	return created, nil
}

// Milestones lists a project's milestones ordered by planned end date.
func (s *Service) Milestones(ctx context.Context, projectID int64) ([]Milestone, error) {
	return s.repo.ListMilestones(ctx, projectID)
}

// UpdateMilestoneStatus moves a milestone through its states. Completing one
// stamps the actual end date.
func (s *Service) UpdateMilestoneStatus(ctx context.Context, id int64, status MilestoneStatus) (Milestone, error) {
	switch status {
	case MilestoneNotStarted, MilestoneInProgress, MilestoneCompleted, MilestoneDelayed:
	default:
		return Milestone{}, ErrInvalidStatus
	}
	m, err := s.repo.GetMilestone(ctx, id)
	if err != nil {
		return Milestone{}, err
	}
	actualEnd := m.ActualEndDate
	if status == MilestoneCompleted && actualEnd.IsZero() {
		actualEnd = s.now()
	}
	if err := s.repo.UpdateMilestoneStatus(ctx, id, status, actualEnd); err != nil {
		return Milestone{}, err
	}
	s.recordAudit(ctx, "UPDATE_MILESTONE_STATUS", m.ProjectID,
		fmt.Sprintf("Milestone: %s, Status: %s", m.Name, m.Status),
		fmt.Sprintf("Milestone: %s, Status: %s", m.Name, status))
	if s.notifier != nil && status == MilestoneDelayed && m.Status != MilestoneDelayed {
		if p, perr := s.repo.Get(ctx, m.ProjectID); perr == nil {
			_ = s.notifier.MilestoneDelayAlert(ctx, p.ID, p.Name, m.Name)
		}
	}
	m.Status = status
	m.ActualEndDate = actualEnd
	return m, nil
}

// ScanOverdueMilestones marks milestones past their planned end date as
// DELAYED and alerts for each. Run from the background worker.
func (s *Service) ScanOverdueMilestones(ctx context.Context) (int, error) {
	overdue, err := s.repo.ListOverdueMilestones(ctx, s.now())
	if err != nil {
		return 0, err
	}
	flagged := 0
	for _, m := range overdue {
		if _, err := s.UpdateMilestoneStatus(ctx, m.ID, MilestoneDelayed); err != nil {
			s.logger.Warn("flag overdue milestone", slog.Int64("milestone_id", m.ID), slog.Any("error", err))
			continue
		}
		flagged++
	}
	return flagged, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, projectID int64, oldValues, newValues string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:   shared.ActorFromContext(ctx),
		Action:    action,
		Entity:    "Project",
		EntityID:  fmt.Sprintf("%d", projectID),
		OldValues: oldValues,
		NewValues: newValues,
	}); err != nil {
		s.logger.Warn("audit project", slog.String("action", action), slog.Any("error", err))
	}
}
