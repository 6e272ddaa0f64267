package finance

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

type memoryRepo struct {
	transactions map[int64]Transaction
	projects     map[int64]ProjectFinancials
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{transactions: map[int64]Transaction{}, projects: map[int64]ProjectFinancials{}}
}

type memoryTx struct {
	repo *memoryRepo
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: m})
}

func (m *memoryTx) GetTransactionForUpdate(_ context.Context, id int64) (Transaction, error) {
	t, ok := m.repo.transactions[id]
	if !ok {
		return Transaction{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *memoryTx) LockProject(_ context.Context, id int64) (ProjectFinancials, error) {
	p, ok := m.repo.projects[id]
	if !ok {
		return ProjectFinancials{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryTx) SetApproved(_ context.Context, id, approvedBy int64, at time.Time) error {
	t, ok := m.repo.transactions[id]
	if !ok {
		return shared.ErrNotFound
	}
	t.Approved = true
	t.ApprovedBy = approvedBy
	t.ApprovedAt = at
	m.repo.transactions[id] = t
	return nil
}

func (m *memoryTx) SumApprovedByType(_ context.Context, projectID int64) (decimal.Decimal, decimal.Decimal, error) {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range m.repo.transactions {
		if t.ProjectID != projectID || !t.Approved {
			continue
		}
		if t.Type == TransactionIncome {
			income = income.Add(t.Amount)
		} else {
			expense = expense.Add(t.Amount)
		}
	}
	return income, expense, nil
}

func (m *memoryTx) ApplyProjectFinancials(_ context.Context, projectID int64, cost, revenue decimal.Decimal) error {
	p, ok := m.repo.projects[projectID]
	if !ok {
		return shared.ErrNotFound
	}
	p.ActualCost = cost
	p.ActualRevenue = revenue
	m.repo.projects[projectID] = p
	return nil
}

func (m *memoryTx) UpdateTransaction(_ context.Context, t Transaction) (Transaction, error) {
	existing, ok := m.repo.transactions[t.ID]
	if !ok {
		return Transaction{}, shared.ErrNotFound
	}
	existing.Type = t.Type
	existing.Category = t.Category
	existing.Amount = t.Amount
	existing.Description = t.Description
	existing.ReferenceNumber = t.ReferenceNumber
	existing.Notes = t.Notes
	m.repo.transactions[t.ID] = existing
	return existing, nil
}

func (m *memoryRepo) Insert(_ context.Context, t Transaction) (Transaction, error) {
	m.nextID++
	t.ID = m.nextID
	t.Approved = false
	if t.TransactionDate.IsZero() {
		t.TransactionDate = time.Now()
	}
	m.transactions[t.ID] = t
	return t, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Transaction, error) {
	t, ok := m.transactions[id]
	if !ok {
		return Transaction{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *memoryRepo) ProjectExists(_ context.Context, id int64) (bool, error) {
	_, ok := m.projects[id]
	return ok, nil
}

func (m *memoryRepo) AppendRejectionNote(_ context.Context, id int64, note string) error {
	t, ok := m.transactions[id]
	if !ok {
		return shared.ErrNotFound
	}
	if t.Notes == "" {
		t.Notes = note
	} else {
		t.Notes += "\n" + note
	}
	m.transactions[id] = t
	return nil
}

func (m *memoryRepo) List(_ context.Context, f Filter) ([]Transaction, error) {
	var out []Transaction
	for _, t := range m.transactions {
		if f.ProjectID != 0 && t.ProjectID != f.ProjectID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Approved != nil && t.Approved != *f.Approved {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memoryRepo) SumApprovedByCategory(_ context.Context, projectID int64, category Category) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, t := range m.transactions {
		if t.ProjectID == projectID && t.Category == category && t.Approved {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (m *memoryRepo) ExpensesByCategory(_ context.Context, projectID int64) (map[Category]decimal.Decimal, error) {
	out := map[Category]decimal.Decimal{}
	for _, t := range m.transactions {
		if t.ProjectID == projectID && t.Type == TransactionExpense && t.Approved {
			out[t.Category] = out[t.Category].Add(t.Amount)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetProjectFinancials(_ context.Context, id int64) (ProjectFinancials, error) {
	p, ok := m.projects[id]
	if !ok {
		return ProjectFinancials{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) ListProjectFinancials(context.Context) ([]ProjectFinancials, error) {
	var out []ProjectFinancials
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

type recordingFinanceNotifier struct {
	updates       []string
	overrunAlerts []decimal.Decimal
}

func (n *recordingFinanceNotifier) FinancialUpdate(_ context.Context, _ int64, _, description string, _ decimal.Decimal) error {
	n.updates = append(n.updates, description)
	return nil
}

func (n *recordingFinanceNotifier) BudgetOverrunAlert(_ context.Context, _ int64, _ string, variance, _, _ decimal.Decimal) error {
	n.overrunAlerts = append(n.overrunAlerts, variance)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *recordingFinanceNotifier) {
	t.Helper()
	repo := newMemoryRepo()
	repo.projects[1] = ProjectFinancials{
		ID:            1,
		Name:          "Riverside Plaza",
		BudgetedCost:  decimal.NewFromInt(1000),
		ActualCost:    decimal.Zero,
		ActualRevenue: decimal.Zero,
	}
	notifier := &recordingFinanceNotifier{}
	svc := NewService(repo, nil, notifier, nil, slog.Default())
	return svc, repo, notifier
}

func record(t *testing.T, svc *Service, txType TransactionType, category Category, amount int64) Transaction {
	t.Helper()
	txn, err := svc.RecordTransaction(context.Background(), Transaction{
		ProjectID:   1,
		Type:        txType,
		Category:    category,
		Amount:      decimal.NewFromInt(amount),
		Description: "test entry",
		CreatedBy:   7,
	})
	require.NoError(t, err)
	return txn
}

func TestRecordTransactionValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	valid := Transaction{
		ProjectID:   1,
		Type:        TransactionExpense,
		Category:    CategoryMaterials,
		Amount:      decimal.NewFromInt(100),
		Description: "cement order",
	}

	for name, mutate := range map[string]func(*Transaction){
		"missing project":    func(tx *Transaction) { tx.ProjectID = 0 },
		"zero amount":        func(tx *Transaction) { tx.Amount = decimal.Zero },
		"negative amount":    func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) },
		"blank description":  func(tx *Transaction) { tx.Description = "   " },
		"unknown type":       func(tx *Transaction) { tx.Type = "TRANSFER" },
		"unknown category":   func(tx *Transaction) { tx.Category = "BRIBES" },
		"income category":    func(tx *Transaction) { tx.Category = CategoryContractPayment },
		"expense annotation": func(tx *Transaction) { tx.Type = TransactionIncome },
	} {
		tx := valid
		mutate(&tx)
		_, err := svc.RecordTransaction(ctx, tx)
		assert.ErrorIs(t, err, shared.ErrValidation, name)
	}

	_, err := svc.RecordTransaction(ctx, valid)
	require.NoError(t, err)

	// Unknown project is NotFound, not a validation failure.
	tx := valid
	tx.ProjectID = 99
	_, err = svc.RecordTransaction(ctx, tx)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecordLeavesRollupUntouched(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	record(t, svc, TransactionIncome, CategoryContractPayment, 5000)

	p := repo.projects[1]
	assert.True(t, p.ActualRevenue.IsZero())
	assert.True(t, p.ActualCost.IsZero())
	assert.Len(t, notifier.updates, 1)
}

func TestApprovalRollsUpOnlyApproved(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	a := record(t, svc, TransactionIncome, CategoryContractPayment, 3000)
	b := record(t, svc, TransactionIncome, CategoryMilestonePayment, 1500)
	record(t, svc, TransactionIncome, CategoryRetentionRelease, 700) // never approved

	_, err := svc.ApproveTransaction(ctx, a.ID, 42)
	require.NoError(t, err)
	assert.True(t, repo.projects[1].ActualRevenue.Equal(decimal.NewFromInt(3000)))

	approved, err := svc.ApproveTransaction(ctx, b.ID, 42)
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.Equal(t, int64(42), approved.ApprovedBy)
	assert.False(t, approved.ApprovedAt.IsZero())

	p := repo.projects[1]
	assert.True(t, p.ActualRevenue.Equal(decimal.NewFromInt(4500)), "got %s", p.ActualRevenue)
	assert.True(t, p.ActualCost.IsZero())
}

func TestApproveTwiceFails(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	txn := record(t, svc, TransactionExpense, CategoryLabor, 400)
	first, err := svc.ApproveTransaction(ctx, txn.ID, 42)
	require.NoError(t, err)

	_, err = svc.ApproveTransaction(ctx, txn.ID, 99)
	assert.ErrorIs(t, err, shared.ErrAlreadyApproved)

	// Second attempt changed nothing.
	stored := repo.transactions[txn.ID]
	assert.Equal(t, first.ApprovedAt, stored.ApprovedAt)
	assert.Equal(t, int64(42), stored.ApprovedBy)
	assert.True(t, repo.projects[1].ActualCost.Equal(decimal.NewFromInt(400)))

	_, err = svc.ApproveTransaction(ctx, 999, 42)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBudgetOverrunScenario(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	ctx := context.Background()

	txn := record(t, svc, TransactionExpense, CategoryMaterials, 1200)
	_, err := svc.ApproveTransaction(ctx, txn.ID, 42)
	require.NoError(t, err)

	summary, err := svc.ProjectSummary(ctx, 1)
	require.NoError(t, err)
	assert.True(t, summary.ActualCost.Equal(decimal.NewFromInt(1200)))
	assert.True(t, summary.BudgetVariance().Equal(decimal.NewFromInt(20)), "got %s", summary.BudgetVariance())
	assert.True(t, summary.OverBudget())

	require.Len(t, notifier.overrunAlerts, 1)
	assert.True(t, notifier.overrunAlerts[0].Equal(decimal.NewFromInt(20)))

	over, err := svc.ProjectsOverBudget(ctx)
	require.NoError(t, err)
	require.Len(t, over, 1)
	assert.Equal(t, int64(1), over[0].ID)

	// Staying over budget does not re-alert.
	more := record(t, svc, TransactionExpense, CategoryEquipment, 300)
	_, err = svc.ApproveTransaction(ctx, more.ID, 42)
	require.NoError(t, err)
	assert.Len(t, notifier.overrunAlerts, 1)
	assert.True(t, repo.projects[1].ActualCost.Equal(decimal.NewFromInt(1500)))
}

func TestRejectTransaction(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	txn := record(t, svc, TransactionExpense, CategoryOther, 50)
	require.NoError(t, svc.RejectTransaction(ctx, txn.ID, "duplicate invoice", 42))

	stored := repo.transactions[txn.ID]
	assert.True(t, strings.Contains(stored.Notes, "REJECTED: duplicate invoice"))
	assert.False(t, stored.Approved)

	// A second rejection appends, it does not overwrite.
	require.NoError(t, svc.RejectTransaction(ctx, txn.ID, "wrong project", 42))
	assert.Equal(t, 2, strings.Count(repo.transactions[txn.ID].Notes, "REJECTED:"))

	err := svc.RejectTransaction(ctx, txn.ID, "   ", 42)
	assert.ErrorIs(t, err, shared.ErrValidation)

	// Approved entries cannot be rejected; their rollup contribution is
	// never reversed.
	approved := record(t, svc, TransactionExpense, CategoryLabor, 100)
	_, err = svc.ApproveTransaction(ctx, approved.ID, 42)
	require.NoError(t, err)
	err = svc.RejectTransaction(ctx, approved.ID, "too late", 42)
	assert.ErrorIs(t, err, shared.ErrAlreadyApproved)
}

func TestUpdateApprovedEntryRecomputesRollup(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	txn := record(t, svc, TransactionExpense, CategoryMaterials, 400)
	_, err := svc.ApproveTransaction(ctx, txn.ID, 42)
	require.NoError(t, err)
	require.True(t, repo.projects[1].ActualCost.Equal(decimal.NewFromInt(400)))

	txn.Amount = decimal.NewFromInt(600)
	updated, err := svc.UpdateTransaction(ctx, txn)
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(600)))
	assert.True(t, repo.projects[1].ActualCost.Equal(decimal.NewFromInt(600)))

	// Editing an unapproved entry leaves the rollup alone.
	pending := record(t, svc, TransactionExpense, CategoryLabor, 100)
	pending.Amount = decimal.NewFromInt(900)
	_, err = svc.UpdateTransaction(ctx, pending)
	require.NoError(t, err)
	assert.True(t, repo.projects[1].ActualCost.Equal(decimal.NewFromInt(600)))
}

func TestExpensesByCategory(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a := record(t, svc, TransactionExpense, CategoryMaterials, 300)
	b := record(t, svc, TransactionExpense, CategoryMaterials, 200)
	c := record(t, svc, TransactionExpense, CategoryLabor, 150)
	record(t, svc, TransactionExpense, CategoryEquipment, 999) // unapproved, excluded
	for _, id := range []int64{a.ID, b.ID, c.ID} {
		_, err := svc.ApproveTransaction(ctx, id, 42)
		require.NoError(t, err)
	}

	byCategory, err := svc.ExpensesByCategory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byCategory, 2)
	assert.True(t, byCategory[CategoryMaterials].Equal(decimal.NewFromInt(500)))
	assert.True(t, byCategory[CategoryLabor].Equal(decimal.NewFromInt(150)))

	laborCost, err := svc.CostByCategory(ctx, 1, CategoryLabor)
	require.NoError(t, err)
	assert.True(t, laborCost.Equal(decimal.NewFromInt(150)))

	_, err = svc.CostByCategory(ctx, 1, "BRIBES")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestProfitMargin(t *testing.T) {
	p := ProjectFinancials{
		ActualRevenue: decimal.NewFromInt(2000),
		ActualCost:    decimal.NewFromInt(1200),
	}
	assert.True(t, p.ProfitMargin().Equal(decimal.NewFromInt(40)), "got %s", p.ProfitMargin())

	// No revenue is zero margin, not a division error.
	assert.True(t, ProjectFinancials{ActualCost: decimal.NewFromInt(500)}.ProfitMargin().IsZero())
	// No budget is zero variance.
	assert.True(t, ProjectFinancials{ActualCost: decimal.NewFromInt(500)}.BudgetVariance().IsZero())
}

func TestCategoryTypeMapping(t *testing.T) {
	assert.Equal(t, TransactionIncome, CategoryContractPayment.Type())
	assert.Equal(t, TransactionIncome, CategoryMilestonePayment.Type())
	assert.Equal(t, TransactionIncome, CategoryRetentionRelease.Type())
	for _, c := range []Category{CategoryMaterials, CategoryLabor, CategoryEquipment, CategoryTransportation,
		CategoryUtilities, CategoryOverhead, CategorySubcontractor, CategoryPermitsLicenses, CategoryInsurance, CategoryOther} {
		assert.Equal(t, TransactionExpense, c.Type(), string(c))
	}
	assert.False(t, Category("BRIBES").Valid())
}
