package finance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, t Transaction) (Transaction, error)
	Get(ctx context.Context, id int64) (Transaction, error)
	ProjectExists(ctx context.Context, id int64) (bool, error)
	AppendRejectionNote(ctx context.Context, id int64, note string) error
	List(ctx context.Context, f Filter) ([]Transaction, error)
	SumApprovedByCategory(ctx context.Context, projectID int64, category Category) (decimal.Decimal, error)
	ExpensesByCategory(ctx context.Context, projectID int64) (map[Category]decimal.Decimal, error)
	GetProjectFinancials(ctx context.Context, id int64) (ProjectFinancials, error)
	ListProjectFinancials(ctx context.Context) ([]ProjectFinancials, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifierPort abstracts notification dispatch.
type NotifierPort interface {
	FinancialUpdate(ctx context.Context, projectID int64, txType, description string, amount decimal.Decimal) error
	BudgetOverrunAlert(ctx context.Context, projectID int64, name string, variance, actualCost, budgetedCost decimal.Decimal) error
}

// ApprovalPort records approval history entries.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Service validates, records and approves financial transactions, and keeps
// the per-project financial rollup in step with the approved ledger.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	notifier  NotifierPort
	approvals ApprovalPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the finance service.
func NewService(repo RepositoryPort, audit AuditPort, notifier NotifierPort, approvals ApprovalPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier, approvals: approvals, logger: logger, now: time.Now}
}

func validateTransaction(t Transaction) error {
	if t.ProjectID == 0 {
		return ErrProjectRequired
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrDescriptionRequired
	}
	if t.Type != TransactionIncome && t.Type != TransactionExpense {
		return ErrInvalidType
	}
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	if t.Category.Type() != t.Type {
		return ErrCategoryMismatch
	}
	return nil
}

// RecordTransaction validates and persists a new ledger entry. Entries start
// unapproved and do not touch project totals until approved.
func (s *Service) RecordTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	if err := validateTransaction(t); err != nil {
		return Transaction{}, err
	}
	exists, err := s.repo.ProjectExists(ctx, t.ProjectID)
	if err != nil {
		return Transaction{}, err
	}
	if !exists {
		return Transaction{}, fmt.Errorf("finance: project %d: %w", t.ProjectID, shared.ErrNotFound)
	}
	created, err := s.repo.Insert(ctx, t)
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, "CREATE_FINANCIAL_TRANSACTION", created.ID, "",
		fmt.Sprintf("Type: %s, Category: %s, Amount: %s", created.Type, created.Category, created.Amount))
	s.recordApproval(ctx, created.ID, created.CreatedBy, shared.ApprovalSubmit, "")
	if s.notifier != nil {
		_ = s.notifier.FinancialUpdate(ctx, created.ProjectID, string(created.Type), created.Description, created.Amount)
	}
	s.logger.Info("financial transaction recorded",
		slog.Int64("transaction_id", created.ID),
		slog.Int64("project_id", created.ProjectID),
		slog.String("type", string(created.Type)),
		slog.String("amount", created.Amount.String()))
	return created, nil
}

// ApproveTransaction flips one entry to approved and recomputes the project
// rollup inside the same database transaction. Both rows stay locked until
// commit so concurrent approvals on one project serialise, and each
// recomputation is a full re-aggregation over the approved ledger rather
// than an incremental counter.
func (s *Service) ApproveTransaction(ctx context.Context, id, approverID int64) (Transaction, error) {
	var (
		txn     Transaction
		before  ProjectFinancials
		income  decimal.Decimal
		expense decimal.Decimal
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		txn, err = tx.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if txn.Approved {
			return fmt.Errorf("finance: transaction %d: %w", id, shared.ErrAlreadyApproved)
		}
		before, err = tx.LockProject(ctx, txn.ProjectID)
		if err != nil {
			return err
		}
		at := s.now()
		if err := tx.SetApproved(ctx, id, approverID, at); err != nil {
			return err
		}
		txn.Approved = true
		txn.ApprovedBy = approverID
		txn.ApprovedAt = at
		if income, expense, err = tx.SumApprovedByType(ctx, txn.ProjectID); err != nil {
			return err
		}
		return tx.ApplyProjectFinancials(ctx, txn.ProjectID, expense, income)
	})
	if err != nil {
		return Transaction{}, err
	}

	s.recordAudit(ctx, "APPROVE_TRANSACTION", id, "approved: false", "approved: true")
	s.recordApproval(ctx, id, approverID, shared.ApprovalApprove, "")
	if s.notifier != nil {
		_ = s.notifier.FinancialUpdate(ctx, txn.ProjectID, string(txn.Type), "Transaction approved: "+txn.Description, txn.Amount)
	}
	s.alertIfCrossedBudget(ctx, before, expense, income)
	s.logger.Info("financial transaction approved",
		slog.Int64("transaction_id", id),
		slog.Int64("project_id", txn.ProjectID),
		slog.String("rolled_up_cost", expense.String()),
		slog.String("rolled_up_revenue", income.String()))
	return txn, nil
}

// RejectTransaction appends a rejection annotation to an unapproved entry.
// The entry stays in the ledger. An approved entry cannot be rejected; its
// rollup contribution would have to be reversed, which this workflow does
// not do, so the call fails instead of corrupting the totals.
func (s *Service) RejectTransaction(ctx context.Context, id int64, reason string, actorID int64) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	txn, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if txn.Approved {
		return fmt.Errorf("finance: transaction %d is approved and cannot be rejected: %w", id, shared.ErrAlreadyApproved)
	}
	if err := s.repo.AppendRejectionNote(ctx, id, "REJECTED: "+reason); err != nil {
		return err
	}
	s.recordAudit(ctx, "REJECT_TRANSACTION", id, "", "Transaction rejected: "+reason)
	s.recordApproval(ctx, id, actorID, shared.ApprovalReject, reason)
	s.logger.Info("financial transaction rejected", slog.Int64("transaction_id", id), slog.String("reason", reason))
	return nil
}

// UpdateTransaction replaces the mutable fields of an entry. The approval
// flag itself is only changed through ApproveTransaction, but editing an
// already-approved entry changes what the rollup must report, so in that
// case the project totals are recomputed in the same transaction.
func (s *Service) UpdateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	if err := validateTransaction(t); err != nil {
		return Transaction{}, err
	}
	var (
		existing ProjectFinancials
		old      Transaction
		updated  Transaction
		rolledUp bool
		income   decimal.Decimal
		expense  decimal.Decimal
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		old, err = tx.GetTransactionForUpdate(ctx, t.ID)
		if err != nil {
			return err
		}
		if old.Approved {
			if existing, err = tx.LockProject(ctx, old.ProjectID); err != nil {
				return err
			}
		}
		// The project reference is immutable once recorded.
		t.ProjectID = old.ProjectID
		if updated, err = tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		if !old.Approved {
			return nil
		}
		rolledUp = true
		if income, expense, err = tx.SumApprovedByType(ctx, old.ProjectID); err != nil {
			return err
		}
		return tx.ApplyProjectFinancials(ctx, old.ProjectID, expense, income)
	})
	if err != nil {
		return Transaction{}, err
	}

	s.recordAudit(ctx, "UPDATE_FINANCIAL_TRANSACTION", updated.ID,
		fmt.Sprintf("amount: %s, description: %s, approved: %t", old.Amount, old.Description, old.Approved),
		fmt.Sprintf("amount: %s, description: %s, approved: %t", updated.Amount, updated.Description, updated.Approved))
	if rolledUp {
		s.alertIfCrossedBudget(ctx, existing, expense, income)
	}
	return updated, nil
}

func (s *Service) alertIfCrossedBudget(ctx context.Context, before ProjectFinancials, cost, revenue decimal.Decimal) {
	if s.notifier == nil {
		return
	}
	after := before
	after.ActualCost = cost
	after.ActualRevenue = revenue
	if !before.OverBudget() && after.OverBudget() {
		_ = s.notifier.BudgetOverrunAlert(ctx, after.ID, after.Name, after.BudgetVariance(), cost, after.BudgetedCost)
	}
}

// Get returns one transaction.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.Get(ctx, id)
}

// Transactions returns entries matching the filter.
func (s *Service) Transactions(ctx context.Context, f Filter) ([]Transaction, error) {
	if f.Type != "" && f.Type != TransactionIncome && f.Type != TransactionExpense {
		return nil, ErrInvalidType
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, ErrInvalidCategory
	}
	return s.repo.List(ctx, f)
}

// PendingApprovals returns unapproved entries, newest first.
func (s *Service) PendingApprovals(ctx context.Context) ([]Transaction, error) {
	approved := false
	return s.repo.List(ctx, Filter{Approved: &approved})
}

// ProjectSummary returns the rolled-up financial position of one project.
func (s *Service) ProjectSummary(ctx context.Context, projectID int64) (ProjectFinancials, error) {
	return s.repo.GetProjectFinancials(ctx, projectID)
}

// ProjectsOverBudget returns every project whose actual cost exceeds budget.
func (s *Service) ProjectsOverBudget(ctx context.Context) ([]ProjectFinancials, error) {
	all, err := s.repo.ListProjectFinancials(ctx)
	if err != nil {
		return nil, err
	}
	var out []ProjectFinancials
	for _, p := range all {
		if p.OverBudget() {
			out = append(out, p)
		}
	}
	return out, nil
}

// ExpensesByCategory groups a project's approved expenses by category.
func (s *Service) ExpensesByCategory(ctx context.Context, projectID int64) (map[Category]decimal.Decimal, error) {
	return s.repo.ExpensesByCategory(ctx, projectID)
}

// CostByCategory returns the approved total for one project and category.
func (s *Service) CostByCategory(ctx context.Context, projectID int64, category Category) (decimal.Decimal, error) {
	if !category.Valid() {
		return decimal.Zero, ErrInvalidCategory
	}
	return s.repo.SumApprovedByCategory(ctx, projectID, category)
}

func (s *Service) recordAudit(ctx context.Context, action string, txnID int64, oldValues, newValues string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:   shared.ActorFromContext(ctx),
		Action:    action,
		Entity:    "FinancialTransaction",
		EntityID:  fmt.Sprintf("%d", txnID),
		OldValues: oldValues,
		NewValues: newValues,
	}); err != nil {
		s.logger.Warn("audit financial transaction", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) recordApproval(ctx context.Context, txnID, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	if actorID == 0 {
		actorID = shared.ActorFromContext(ctx)
	}
	if actorID == 0 {
		return
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{
		Entity:  "FinancialTransaction",
		RefID:   txnID,
		ActorID: actorID,
		Action:  action,
		Note:    note,
	}); err != nil {
		s.logger.Warn("record approval", slog.String("action", string(action)), slog.Any("error", err))
	}
}
