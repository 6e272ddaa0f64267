package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const snapshotKey = "dashboard:snapshot"

// RepositoryPort abstracts the aggregate queries behind the snapshot.
type RepositoryPort interface {
	ProjectStats(ctx context.Context) (total, active, completed, overdue int64, budget, cost, revenue decimal.Decimal, err error)
	OverBudgetCount(ctx context.Context) (int64, error)
	MonthlyFinancials(ctx context.Context) (income, expense decimal.Decimal, err error)
	LowStockCount(ctx context.Context) (int64, error)
	PendingApprovalCount(ctx context.Context) (int64, error)
	RecentProjectNames(ctx context.Context, limit int) ([]string, error)
}

// Snapshot is the role-independent dashboard payload.
type Snapshot struct {
	TotalProjects      int64           `json:"totalProjects"`
	ActiveProjects     int64           `json:"activeProjects"`
	CompletedProjects  int64           `json:"completedProjects"`
	OverdueProjects    int64           `json:"overdueProjects"`
	OverBudgetProjects int64           `json:"overBudgetProjects"`
	TotalBudget        decimal.Decimal `json:"totalBudget"`
	TotalCost          decimal.Decimal `json:"totalCost"`
	TotalRevenue       decimal.Decimal `json:"totalRevenue"`
	ProfitMargin       decimal.Decimal `json:"profitMargin"`
	MonthlyIncome      decimal.Decimal `json:"monthlyIncome"`
	MonthlyExpense     decimal.Decimal `json:"monthlyExpense"`
	LowStockItems      int64           `json:"lowStockItems"`
	PendingApprovals   int64           `json:"pendingApprovals"`
	RecentProjects     []string        `json:"recentProjects"`
	GeneratedAt        time.Time       `json:"generatedAt"`
}

// Service builds cached dashboard snapshots. Concurrent misses collapse into
// a single aggregation via singleflight.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewService wires the dashboard service.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// Snapshot returns the dashboard snapshot, served from cache when fresh.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	resultChan := s.group.DoChan(snapshotKey, func() (interface{}, error) {
		var snap Snapshot
		err := s.cache.FetchJSON(ctx, snapshotKey, &snap, func(ctx context.Context) (interface{}, error) {
			return s.build(ctx)
		})
		return snap, err
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

// Invalidate drops the cached snapshot.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, snapshotKey)
}

var hundred = decimal.NewFromInt(100)

func (s *Service) build(ctx context.Context) (Snapshot, error) {
	total, active, completed, overdue, budget, cost, revenue, err := s.repo.ProjectStats(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	overBudget, err := s.repo.OverBudgetCount(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	monthlyIncome, monthlyExpense, err := s.repo.MonthlyFinancials(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	lowStock, err := s.repo.LowStockCount(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	pending, err := s.repo.PendingApprovalCount(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	recent, err := s.repo.RecentProjectNames(ctx, 5)
	if err != nil {
		return Snapshot{}, err
	}
	margin := decimal.Zero
	if !revenue.IsZero() {
		margin = revenue.Sub(cost).Div(revenue).Mul(hundred).Round(2)
	}
	s.logger.Debug("dashboard snapshot built",
		slog.Int64("projects", total),
		slog.Int64("pending_approvals", pending))
	return Snapshot{
		TotalProjects:      total,
		ActiveProjects:     active,
		CompletedProjects:  completed,
		OverdueProjects:    overdue,
		OverBudgetProjects: overBudget,
		TotalBudget:        budget,
		TotalCost:          cost,
		TotalRevenue:       revenue,
		ProfitMargin:       margin,
		MonthlyIncome:      monthlyIncome,
		MonthlyExpense:     monthlyExpense,
		LowStockItems:      lowStock,
		PendingApprovals:   pending,
		RecentProjects:     recent,
		GeneratedAt:        s.now(),
	}, nil
}
