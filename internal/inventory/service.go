package inventory

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
	CreateMaterial(ctx context.Context, m Material) (Material, error)
	UpdateMaterial(ctx context.Context, m Material) (Material, error)
	GetMaterial(ctx context.Context, id int64) (Material, error)
	ListMaterials(ctx context.Context, activeOnly bool) ([]Material, error)
	ListLowStockMaterials(ctx context.Context) ([]Material, error)
	DeactivateMaterial(ctx context.Context, id int64) error
	CreateSupplier(ctx context.Context, s Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, s Supplier) (Supplier, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	ConsumptionCost(ctx context.Context, projectID, materialID int64) (decimal.Decimal, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifierPort abstracts notification dispatch.
type NotifierPort interface {
	LowStockAlert(ctx context.Context, materialID int64, name, unit string, currentStock, minStockLevel decimal.Decimal) error
	InventoryUpdate(ctx context.Context, action, materialName, unit string, quantity decimal.Decimal) error
}

// Service coordinates stock movements against the material ledger.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	notifier    NotifierPort
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, notifier NotifierPort, idem *shared.IdempotencyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, notifier: notifier, idempotency: idem, logger: logger}
}

// RecordStockIn posts a goods receipt and raises the material's stock.
func (s *Service) RecordStockIn(ctx context.Context, input StockInInput) (Transaction, error) {
	if err := validateMovement(input.ProjectID, input.MaterialID, input.Quantity, input.UnitPrice, false); err != nil {
		return Transaction{}, err
	}
	txn := Transaction{
		ProjectID:        input.ProjectID,
		MaterialID:       input.MaterialID,
		SupplierID:       input.SupplierID,
		Type:             TransactionStockIn,
		Quantity:         input.Quantity,
		UnitPrice:        input.UnitPrice,
		PurchaseOrderRef: input.PurchaseOrderRef,
		Notes:            input.Notes,
		CreatedBy:        input.ActorID,
	}
	// Repeat deliveries against the same PO line are a data-entry hazard, so
	// the PO reference doubles as an idempotency key when present.
	insertedKey := ""
	if s.idempotency != nil && input.PurchaseOrderRef != "" {
		key := fmt.Sprintf("STOCK_IN:%s:%d", input.PurchaseOrderRef, input.MaterialID)
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return Transaction{}, err
		}
		insertedKey = key
	}
	result, err := s.post(ctx, txn)
	if err != nil {
		if insertedKey != "" {
			_ = s.idempotency.Delete(ctx, insertedKey)
		}
		return Transaction{}, err
	}
	return result, nil
}

// RecordStockOut posts a material issue. Fails with InsufficientStockError
// before any mutation when the requested quantity exceeds available stock.
func (s *Service) RecordStockOut(ctx context.Context, input StockOutInput) (Transaction, error) {
	if err := validateMovement(input.ProjectID, input.MaterialID, input.Quantity, input.UnitPrice, false); err != nil {
		return Transaction{}, err
	}
	txn := Transaction{
		ProjectID:  input.ProjectID,
		MaterialID: input.MaterialID,
		Type:       TransactionStockOut,
		Quantity:   input.Quantity,
		UnitPrice:  input.UnitPrice,
		IssuedTo:   input.IssuedTo,
		Notes:      input.Notes,
		CreatedBy:  input.ActorID,
	}
	return s.post(ctx, txn)
}

// RecordStockAdjustment posts a signed correction with a mandatory reason.
func (s *Service) RecordStockAdjustment(ctx context.Context, input AdjustmentInput) (Transaction, error) {
	if err := validateMovement(input.ProjectID, input.MaterialID, input.Quantity, input.UnitPrice, true); err != nil {
		return Transaction{}, err
	}
	if strings.TrimSpace(input.Reason) == "" {
		return Transaction{}, fmt.Errorf("inventory: adjustment reason is required: %w", shared.ErrValidation)
	}
	txn := Transaction{
		ProjectID:  input.ProjectID,
		MaterialID: input.MaterialID,
		Type:       TransactionAdjustment,
		Quantity:   input.Quantity,
		UnitPrice:  input.UnitPrice,
		Notes:      input.Reason,
		CreatedBy:  input.ActorID,
	}
	return s.post(ctx, txn)
}

func validateMovement(projectID, materialID int64, quantity, unitPrice decimal.Decimal, signed bool) error {
	if projectID == 0 {
		return ErrProjectRequired
	}
	if materialID == 0 {
		return ErrMaterialRequired
	}
	if signed {
		if quantity.IsZero() {
			return ErrInvalidAdjustment
		}
	} else if !quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return ErrInvalidUnitPrice
	}
	return nil
}

// post validates against the locked material row, persists the transaction and
// the stock delta atomically, then emits best-effort side effects.
func (s *Service) post(ctx context.Context, txn Transaction) (Transaction, error) {
	var (
		material Material
		oldStock decimal.Decimal
		newStock decimal.Decimal
	)
	if txn.TransactionDate.IsZero() {
		txn.TransactionDate = time.Now().UTC()
	}
	txn.ComputeTotal()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		material, err = tx.GetMaterialForUpdate(ctx, txn.MaterialID)
		if err != nil {
			return err
		}
		oldStock = material.CurrentStock
		delta := txn.Quantity
		if txn.Type == TransactionStockOut {
			delta = txn.Quantity.Neg()
		}
		newStock = oldStock.Add(delta)
		if newStock.IsNegative() {
			return &shared.InsufficientStockError{
				MaterialID: material.ID,
				Available:  oldStock,
				Unit:       material.Unit,
			}
		}
		id, err := tx.InsertTransaction(ctx, txn)
		if err != nil {
			return err
		}
		txn.ID = id
		return tx.UpdateMaterialStock(ctx, material.ID, newStock)
	})
	if err != nil {
		return Transaction{}, err
	}

	s.recordMovementAudit(ctx, txn, material, oldStock, newStock)
	s.notifyMovement(ctx, txn, material, oldStock, newStock)

	s.logger.Info("inventory movement posted",
		slog.String("type", string(txn.Type)),
		slog.Int64("material_id", material.ID),
		slog.String("quantity", txn.Quantity.String()),
		slog.String("new_stock", newStock.String()))
	return txn, nil
}

func (s *Service) recordMovementAudit(ctx context.Context, txn Transaction, material Material, oldStock, newStock decimal.Decimal) {
	if s.audit == nil {
		return
	}
	action := map[TransactionType]string{
		TransactionStockIn:    "STOCK_IN",
		TransactionStockOut:   "STOCK_OUT",
		TransactionAdjustment: "STOCK_ADJUSTMENT",
	}[txn.Type]
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:   txn.CreatedBy,
		Action:    action,
		Entity:    "InventoryTransaction",
		EntityID:  fmt.Sprintf("%d", txn.ID),
		OldValues: fmt.Sprintf("Material: %s, Old Stock: %s", material.Name, oldStock),
		NewValues: fmt.Sprintf("Material: %s, New Stock: %s", material.Name, newStock),
	}); err != nil {
		s.logger.Warn("audit inventory movement", slog.Any("error", err))
	}
}

func (s *Service) notifyMovement(ctx context.Context, txn Transaction, material Material, oldStock, newStock decimal.Decimal) {
	if s.notifier == nil {
		return
	}
	action := "Stock adjusted"
	switch txn.Type {
	case TransactionStockIn:
		action = "Stock received"
	case TransactionStockOut:
		action = "Stock issued"
	}
	_ = s.notifier.InventoryUpdate(ctx, action, material.Name, material.Unit, txn.Quantity)

	// Alert once on crossing the threshold; staying below it stays quiet.
	// Stock-in never lowers stock so can never cross downward.
	wasLow := oldStock.Cmp(material.MinStockLevel) <= 0
	isLow := newStock.Cmp(material.MinStockLevel) <= 0
	if !wasLow && isLow {
		_ = s.notifier.LowStockAlert(ctx, material.ID, material.Name, material.Unit, newStock, material.MinStockLevel)
	}
}

// CreateMaterial registers a new ledger material.
func (s *Service) CreateMaterial(ctx context.Context, m Material) (Material, error) {
	if err := validateMaterial(m); err != nil {
		return Material{}, err
	}
	m.Active = true
	created, err := s.repo.CreateMaterial(ctx, m)
	if err != nil {
		return Material{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:   shared.ActorFromContext(ctx),
			Action:    "CREATE_MATERIAL",
			Entity:    "Material",
			EntityID:  fmt.Sprintf("%d", created.ID),
			NewValues: "Material created: " + created.Name,
		})
	}
	s.logger.Info("material created", slog.String("name", created.Name))
	return created, nil
}

// UpdateMaterial replaces a material's descriptive fields and thresholds.
func (s *Service) UpdateMaterial(ctx context.Context, m Material) (Material, error) {
	if err := validateMaterial(m); err != nil {
		return Material{}, err
	}
	existing, err := s.repo.GetMaterial(ctx, m.ID)
	if err != nil {
		return Material{}, err
	}
	updated, err := s.repo.UpdateMaterial(ctx, m)
	if err != nil {
		return Material{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:   shared.ActorFromContext(ctx),
			Action:    "UPDATE_MATERIAL",
			Entity:    "Material",
			EntityID:  fmt.Sprintf("%d", m.ID),
			OldValues: fmt.Sprintf("name: %s, unitPrice: %s, currentStock: %s", existing.Name, existing.UnitPrice, existing.CurrentStock),
			NewValues: fmt.Sprintf("name: %s, unitPrice: %s, currentStock: %s", updated.Name, updated.UnitPrice, updated.CurrentStock),
		})
	}
	return updated, nil
}

func validateMaterial(m Material) error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(m.Unit) == "" {
		return ErrUnitRequired
	}
	if m.UnitPrice.IsNegative() {
		return ErrInvalidUnitPrice
	}
	return nil
}

// GetMaterial fetches a material by id.
func (s *Service) GetMaterial(ctx context.Context, id int64) (Material, error) {
	return s.repo.GetMaterial(ctx, id)
}

// ListMaterials lists materials; activeOnly filters soft-deactivated ones.
func (s *Service) ListMaterials(ctx context.Context, activeOnly bool) ([]Material, error) {
	return s.repo.ListMaterials(ctx, activeOnly)
}

// LowStockMaterials lists active materials at or below their minimum level.
func (s *Service) LowStockMaterials(ctx context.Context) ([]Material, error) {
	return s.repo.ListLowStockMaterials(ctx)
}

// DeactivateMaterial soft-deletes a material; history is preserved.
func (s *Service) DeactivateMaterial(ctx context.Context, id int64) error {
	existing, err := s.repo.GetMaterial(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeactivateMaterial(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:   shared.ActorFromContext(ctx),
			Action:    "DEACTIVATE_MATERIAL",
			Entity:    "Material",
			EntityID:  fmt.Sprintf("%d", id),
			OldValues: "active: true",
			NewValues: "active: false",
		})
	}
	s.logger.Info("material deactivated", slog.String("name", existing.Name))
	return nil
}

// ScanLowStock alerts on every material currently at or below minimum.
// Used by the periodic low-stock report job; per-movement alerts fire only on
// threshold crossings.
func (s *Service) ScanLowStock(ctx context.Context) (int, error) {
	materials, err := s.repo.ListLowStockMaterials(ctx)
	if err != nil {
		return 0, err
	}
	if s.notifier != nil {
		for _, m := range materials {
			_ = s.notifier.LowStockAlert(ctx, m.ID, m.Name, m.Unit, m.CurrentStock, m.MinStockLevel)
		}
	}
	if len(materials) > 0 {
		s.logger.Warn("low stock materials", slog.Int("count", len(materials)))
	}
	return len(materials), nil
}

// CreateSupplier registers a vendor.
func (s *Service) CreateSupplier(ctx context.Context, sup Supplier) (Supplier, error) {
	if strings.TrimSpace(sup.Name) == "" {
		return Supplier{}, ErrNameRequired
	}
	sup.Active = true
	created, err := s.repo.CreateSupplier(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:   shared.ActorFromContext(ctx),
			Action:    "CREATE_SUPPLIER",
			Entity:    "Supplier",
			EntityID:  fmt.Sprintf("%d", created.ID),
			NewValues: "Supplier created: " + created.Name,
		})
	}
	return created, nil
}

// UpdateSupplier replaces supplier fields.
func (s *Service) UpdateSupplier(ctx context.Context, sup Supplier) (Supplier, error) {
	if strings.TrimSpace(sup.Name) == "" {
		return Supplier{}, ErrNameRequired
	}
	existing, err := s.repo.GetSupplier(ctx, sup.ID)
	if err != nil {
		return Supplier{}, err
	}
	updated, err := s.repo.UpdateSupplier(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:   shared.ActorFromContext(ctx),
			Action:    "UPDATE_SUPPLIER",
			Entity:    "Supplier",
			EntityID:  fmt.Sprintf("%d", sup.ID),
			OldValues: fmt.Sprintf("name: %s, contactPerson: %s, email: %s", existing.Name, existing.ContactPerson, existing.Email),
			NewValues: fmt.Sprintf("name: %s, contactPerson: %s, email: %s", updated.Name, updated.ContactPerson, updated.Email),
		})
	}
	return updated, nil
}

// GetSupplier fetches a supplier by id.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// ListSuppliers lists suppliers; activeOnly filters inactive ones.
func (s *Service) ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, activeOnly)
}

// Transactions lists movements matching the filter.
func (s *Service) Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// MaterialConsumptionCost sums issued totals for a project/material pair.
func (s *Service) MaterialConsumptionCost(ctx context.Context, projectID, materialID int64) (decimal.Decimal, error) {
	if projectID == 0 {
		return decimal.Zero, ErrProjectRequired
	}
	if materialID == 0 {
		return decimal.Zero, ErrMaterialRequired
	}
	return s.repo.ConsumptionCost(ctx, projectID, materialID)
}
