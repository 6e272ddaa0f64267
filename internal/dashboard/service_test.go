package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	loads atomic.Int64
	delay time.Duration
}

func (r *countingRepo) ProjectStats(context.Context) (int64, int64, int64, int64, decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	r.loads.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return 12, 5, 3, 2,
		decimal.NewFromInt(100000), decimal.NewFromInt(60000), decimal.NewFromInt(90000), nil
}

func (r *countingRepo) OverBudgetCount(context.Context) (int64, error) { return 1, nil }

func (r *countingRepo) MonthlyFinancials(context.Context) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.NewFromInt(25000), decimal.NewFromInt(18000), nil
}

func (r *countingRepo) LowStockCount(context.Context) (int64, error)        { return 4, nil }
func (r *countingRepo) PendingApprovalCount(context.Context) (int64, error) { return 7, nil }
func (r *countingRepo) RecentProjectNames(context.Context, int) ([]string, error) {
	return []string{"Harbor Bridge Retrofit", "Riverside Plaza"}, nil
}

func newTestService(t *testing.T) (*Service, *countingRepo) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := &countingRepo{}
	return NewService(repo, NewCache(client, 30*time.Second), slog.Default()), repo
}

func TestSnapshotAggregates(t *testing.T) {
	svc, _ := newTestService(t)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), snap.TotalProjects)
	assert.Equal(t, int64(5), snap.ActiveProjects)
	assert.Equal(t, int64(2), snap.OverdueProjects)
	assert.Equal(t, int64(1), snap.OverBudgetProjects)
	assert.Equal(t, int64(4), snap.LowStockItems)
	assert.True(t, snap.MonthlyIncome.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, int64(7), snap.PendingApprovals)
	// (90000 - 60000) / 90000 * 100 = 33.33
	assert.True(t, snap.ProfitMargin.Equal(decimal.RequireFromString("33.33")), "got %s", snap.ProfitMargin)
	assert.Len(t, snap.RecentProjects, 2)
}

func TestSnapshotServedFromCache(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), repo.loads.Load())

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), repo.loads.Load())
}

func TestConcurrentMissesCollapse(t *testing.T) {
	svc, repo := newTestService(t)
	repo.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Snapshot(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), repo.loads.Load())
}
