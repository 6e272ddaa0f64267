package project

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

type memoryRepo struct {
	projects   map[int64]Project
	milestones map[int64]Milestone
	nextID     int64
	nextMSID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{projects: map[int64]Project{}, milestones: map[int64]Milestone{}}
}

func (m *memoryRepo) Create(_ context.Context, p Project) (Project, error) {
	m.nextID++
	p.ID = m.nextID
	m.projects[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Update(_ context.Context, p Project) (Project, error) {
	current, ok := m.projects[p.ID]
	if !ok {
		return Project{}, shared.ErrNotFound
	}
	p.ActualCost = current.ActualCost
	p.ActualRevenue = current.ActualRevenue
	m.projects[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return Project{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) List(context.Context) ([]Project, error) {
	out := make([]Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepo) ListByStatus(_ context.Context, status Status) ([]Project, error) {
	var out []Project
	for _, p := range m.projects {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListOverdue(_ context.Context, now time.Time) ([]Project, error) {
	var out []Project
	for _, p := range m.projects {
		if !p.EndDate.IsZero() && p.EndDate.Before(now) && p.Status != StatusCompleted && p.Status != StatusCancelled {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.projects[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *memoryRepo) CreateMilestone(_ context.Context, ms Milestone) (Milestone, error) {
	m.nextMSID++
	ms.ID = m.nextMSID
	m.milestones[ms.ID] = ms
	return ms, nil
}

func (m *memoryRepo) GetMilestone(_ context.Context, id int64) (Milestone, error) {
	ms, ok := m.milestones[id]
	if !ok {
		return Milestone{}, shared.ErrNotFound
	}
	return ms, nil
}

func (m *memoryRepo) UpdateMilestoneStatus(_ context.Context, id int64, status MilestoneStatus, actualEnd time.Time) error {
	ms, ok := m.milestones[id]
	if !ok {
		return shared.ErrNotFound
	}
	ms.Status = status
	ms.ActualEndDate = actualEnd
	m.milestones[id] = ms
	return nil
}

func (m *memoryRepo) ListMilestones(_ context.Context, projectID int64) ([]Milestone, error) {
	var out []Milestone
	for _, ms := range m.milestones {
		if ms.ProjectID == projectID {
			out = append(out, ms)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListOverdueMilestones(_ context.Context, now time.Time) ([]Milestone, error) {
	var out []Milestone
	for _, ms := range m.milestones {
		if ms.Status != MilestoneCompleted && ms.Status != MilestoneDelayed && ms.PlannedEndDate.Before(now) {
			out = append(out, ms)
		}
	}
	return out, nil
}

type recordingProjectNotifier struct {
	statusUpdates   int
	progressUpdates int
	delayAlerts     []string
}

func (n *recordingProjectNotifier) ProjectStatusUpdate(_ context.Context, _ int64, _, _ string, _ decimal.Decimal) error {
	n.statusUpdates++
	return nil
}

func (n *recordingProjectNotifier) ProgressUpdate(_ context.Context, _ int64, _ string, _ decimal.Decimal) error {
	n.progressUpdates++
	return nil
}

func (n *recordingProjectNotifier) MilestoneDelayAlert(_ context.Context, _ int64, _, milestoneName string) error {
	n.delayAlerts = append(n.delayAlerts, milestoneName)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *recordingProjectNotifier) {
	t.Helper()
	repo := newMemoryRepo()
	notifier := &recordingProjectNotifier{}
	svc := NewService(repo, nil, notifier, slog.Default())
	return svc, repo, notifier
}

func seedProject(t *testing.T, svc *Service, budget decimal.Decimal) Project {
	t.Helper()
	p, err := svc.Create(context.Background(), Project{
		Name:         "Harbor Bridge Retrofit",
		Location:     "Dockside",
		StartDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		BudgetedCost: budget,
	})
	require.NoError(t, err)
	return p
}

func TestCreateDefaultsToPlanning(t *testing.T) {
	svc, _, notifier := newTestService(t)
	p := seedProject(t, svc, decimal.NewFromInt(1000))

	assert.Equal(t, StatusPlanning, p.Status)
	assert.True(t, p.ActualCost.IsZero())
	assert.True(t, p.ActualRevenue.IsZero())
	assert.Equal(t, 1, notifier.statusUpdates)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, Project{Location: "x", StartDate: time.Now()})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Project{Name: "x", StartDate: time.Now()})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Project{Name: "x", Location: "y"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Project{Name: "x", Location: "y", StartDate: time.Now(), Status: "DEMOLISHED"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateProgressMovesStatus(t *testing.T) {
	svc, _, notifier := newTestService(t)
	p := seedProject(t, svc, decimal.Zero)
	ctx := context.Background()

	updated, err := svc.UpdateProgress(ctx, p.ID, decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.Equal(t, StatusActive, updated.Status)
	assert.True(t, updated.ActualEndDate.IsZero())

	updated, err = svc.UpdateProgress(ctx, p.ID, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.False(t, updated.ActualEndDate.IsZero())

	assert.Equal(t, 2, notifier.progressUpdates)

	_, err = svc.UpdateProgress(ctx, p.ID, decimal.NewFromInt(101))
	assert.ErrorIs(t, err, ErrInvalidCompletion)
	_, err = svc.UpdateProgress(ctx, p.ID, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidCompletion)
}

func TestDerivedFinancials(t *testing.T) {
	p := Project{
		BudgetedCost:  decimal.NewFromInt(1000),
		ActualCost:    decimal.NewFromInt(1200),
		ActualRevenue: decimal.NewFromInt(2000),
	}
	assert.True(t, p.ProfitMargin().Equal(decimal.NewFromInt(40)), "got %s", p.ProfitMargin())
	assert.True(t, p.BudgetVariance().Equal(decimal.NewFromInt(20)), "got %s", p.BudgetVariance())
	assert.True(t, p.OverBudget())

	// Zero denominators never divide.
	empty := Project{ActualCost: decimal.NewFromInt(500)}
	assert.True(t, empty.ProfitMargin().IsZero())
	assert.True(t, empty.BudgetVariance().IsZero())
	assert.False(t, empty.OverBudget())
}

func TestMilestoneLifecycle(t *testing.T) {
	svc, _, notifier := newTestService(t)
	p := seedProject(t, svc, decimal.Zero)
	ctx := context.Background()

	ms, err := svc.CreateMilestone(ctx, Milestone{
		ProjectID:      p.ID,
		Name:           "Foundation poured",
		PlannedEndDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, MilestoneNotStarted, ms.Status)

	done, err := svc.UpdateMilestoneStatus(ctx, ms.ID, MilestoneCompleted)
	require.NoError(t, err)
	assert.Equal(t, MilestoneCompleted, done.Status)
	assert.False(t, done.ActualEndDate.IsZero())

	_, err = svc.UpdateMilestoneStatus(ctx, ms.ID, "CELEBRATED")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.CreateMilestone(ctx, Milestone{ProjectID: 999, Name: "Orphan"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.Empty(t, notifier.delayAlerts)
}

func TestScanOverdueMilestones(t *testing.T) {
	svc, _, notifier := newTestService(t)
	p := seedProject(t, svc, decimal.Zero)
	ctx := context.Background()
	past := time.Now().AddDate(0, 0, -7)

	late, err := svc.CreateMilestone(ctx, Milestone{ProjectID: p.ID, Name: "Steel delivery", PlannedEndDate: past})
	require.NoError(t, err)
	_, err = svc.CreateMilestone(ctx, Milestone{ProjectID: p.ID, Name: "Roof framing", PlannedEndDate: time.Now().AddDate(0, 1, 0)})
	require.NoError(t, err)

	flagged, err := svc.ScanOverdueMilestones(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)
	assert.Equal(t, []string{"Steel delivery"}, notifier.delayAlerts)

	got, err := svc.repo.GetMilestone(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, MilestoneDelayed, got.Status)

	// Already-delayed milestones are not flagged again.
	flagged, err = svc.ScanOverdueMilestones(ctx)
	require.NoError(t, err)
	assert.Zero(t, flagged)
	assert.Len(t, notifier.delayAlerts, 1)
}

func TestMilestoneDelayed(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	planned := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, Milestone{Status: MilestoneInProgress, PlannedEndDate: planned}.Delayed(now))
	assert.False(t, Milestone{Status: MilestoneInProgress, PlannedEndDate: now.AddDate(0, 1, 0)}.Delayed(now))
	// Completed late counts as delayed, completed on time does not.
	assert.True(t, Milestone{Status: MilestoneCompleted, PlannedEndDate: planned, ActualEndDate: planned.AddDate(0, 0, 3)}.Delayed(now))
	assert.False(t, Milestone{Status: MilestoneCompleted, PlannedEndDate: planned, ActualEndDate: planned}.Delayed(now))
}
