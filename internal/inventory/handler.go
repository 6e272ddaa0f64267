package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sitemaster-erp/sitemaster/internal/platform/httpx"
	"github.com/sitemaster-erp/sitemaster/internal/rbac"
	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInventoryView))
		r.Get("/materials", h.listMaterials)
		r.Get("/materials/low-stock", h.lowStockMaterials)
		r.Get("/materials/{id}", h.getMaterial)
		r.Get("/suppliers", h.listSuppliers)
		r.Get("/suppliers/{id}", h.getSupplier)
		r.Get("/transactions", h.listTransactions)
		r.Get("/consumption-cost", h.consumptionCost)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInventoryManage))
		r.Post("/materials", h.createMaterial)
		r.Put("/materials/{id}", h.updateMaterial)
		r.Delete("/materials/{id}", h.deactivateMaterial)
		r.Post("/suppliers", h.createSupplier)
		r.Put("/suppliers/{id}", h.updateSupplier)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInventoryPost))
		r.Post("/transactions/stock-in", h.stockIn)
		r.Post("/transactions/stock-out", h.stockOut)
		r.Post("/transactions/adjustment", h.adjustment)
	})
}

type materialRequest struct {
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description"`
	Unit          string          `json:"unit" validate:"required"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	CurrentStock  decimal.Decimal `json:"currentStock"`
	MinStockLevel decimal.Decimal `json:"minStockLevel"`
	MaxStockLevel decimal.Decimal `json:"maxStockLevel"`
	Active        bool            `json:"active"`
}

type supplierRequest struct {
	Name          string `json:"name" validate:"required"`
	ContactPerson string `json:"contactPerson"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	Active        bool   `json:"active"`
}

type stockInRequest struct {
	ProjectID        int64           `json:"projectId" validate:"required"`
	MaterialID       int64           `json:"materialId" validate:"required"`
	SupplierID       int64           `json:"supplierId"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	PurchaseOrderRef string          `json:"purchaseOrderRef"`
	Notes            string          `json:"notes"`
}

type stockOutRequest struct {
	ProjectID  int64           `json:"projectId" validate:"required"`
	MaterialID int64           `json:"materialId" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	IssuedTo   string          `json:"issuedTo"`
	Notes      string          `json:"notes"`
}

type adjustmentRequest struct {
	ProjectID  int64           `json:"projectId" validate:"required"`
	MaterialID int64           `json:"materialId" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Reason     string          `json:"reason" validate:"required"`
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) stockIn(w http.ResponseWriter, r *http.Request) {
	var req stockInRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	txn, err := h.service.RecordStockIn(r.Context(), StockInInput{
		ProjectID:        req.ProjectID,
		MaterialID:       req.MaterialID,
		SupplierID:       req.SupplierID,
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
		PurchaseOrderRef: req.PurchaseOrderRef,
		Notes:            req.Notes,
		ActorID:          shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) stockOut(w http.ResponseWriter, r *http.Request) {
	var req stockOutRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	txn, err := h.service.RecordStockOut(r.Context(), StockOutInput{
		ProjectID:  req.ProjectID,
		MaterialID: req.MaterialID,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		IssuedTo:   req.IssuedTo,
		Notes:      req.Notes,
		ActorID:    shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) adjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	txn, err := h.service.RecordStockAdjustment(r.Context(), AdjustmentInput{
		ProjectID:  req.ProjectID,
		MaterialID: req.MaterialID,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		Reason:     req.Reason,
		ActorID:    shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) createMaterial(w http.ResponseWriter, r *http.Request) {
	var req materialRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	m, err := h.service.CreateMaterial(r.Context(), Material{
		Name:          req.Name,
		Description:   req.Description,
		Unit:          req.Unit,
		UnitPrice:     req.UnitPrice,
		CurrentStock:  req.CurrentStock,
		MinStockLevel: req.MinStockLevel,
		MaxStockLevel: req.MaxStockLevel,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) updateMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req materialRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	m, err := h.service.UpdateMaterial(r.Context(), Material{
		ID:            id,
		Name:          req.Name,
		Description:   req.Description,
		Unit:          req.Unit,
		UnitPrice:     req.UnitPrice,
		MinStockLevel: req.MinStockLevel,
		MaxStockLevel: req.MaxStockLevel,
		Active:        req.Active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) getMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.service.GetMaterial(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	materials, err := h.service.ListMaterials(r.Context(), activeOnly)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, materials)
}

func (h *Handler) lowStockMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.service.LowStockMaterials(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, materials)
}

func (h *Handler) deactivateMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeactivateMaterial(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	s, err := h.service.CreateSupplier(r.Context(), Supplier{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, s)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req supplierRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	s, err := h.service.UpdateSupplier(r.Context(), Supplier{
		ID:            id,
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		Active:        req.Active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	suppliers, err := h.service.ListSuppliers(r.Context(), activeOnly)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := TransactionFilter{
		ProjectID:  queryID(q.Get("projectId")),
		MaterialID: queryID(q.Get("materialId")),
		SupplierID: queryID(q.Get("supplierId")),
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from must be RFC3339")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "to must be RFC3339")
			return
		}
		filter.To = t
	}
	txns, err := h.service.Transactions(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txns)
}

func (h *Handler) consumptionCost(w http.ResponseWriter, r *http.Request) {
	projectID := queryID(r.URL.Query().Get("projectId"))
	materialID := queryID(r.URL.Query().Get("materialId"))
	cost, err := h.service.MaterialConsumptionCost(r.Context(), projectID, materialID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"projectId": projectID, "materialId": materialID, "cost": cost})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func queryID(raw string) int64 {
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
