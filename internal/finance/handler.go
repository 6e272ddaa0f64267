package finance

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

// Handler wires HTTP endpoints for the finance module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler constructs finance handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermFinanceView))
		r.Get("/transactions", h.listTransactions)
		r.Get("/transactions/pending", h.pendingApprovals)
		r.Get("/transactions/{id}", h.getTransaction)
		r.Get("/projects/{id}/summary", h.projectSummary)
		r.Get("/projects/{id}/expenses-by-category", h.expensesByCategory)
		r.Get("/projects/over-budget", h.projectsOverBudget)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermFinanceRecord))
		r.Post("/transactions", h.recordTransaction)
		r.Put("/transactions/{id}", h.updateTransaction)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermFinanceApprove))
		r.Post("/transactions/{id}/approve", h.approveTransaction)
		r.Post("/transactions/{id}/reject", h.rejectTransaction)
	})
}

type transactionRequest struct {
	ProjectID       int64           `json:"projectId" validate:"required"`
	Type            string          `json:"type" validate:"required"`
	Category        string          `json:"category" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description" validate:"required"`
	ReferenceNumber string          `json:"referenceNumber"`
	Notes           string          `json:"notes"`
	TransactionDate string          `json:"transactionDate"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
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

func (h *Handler) transactionFromRequest(w http.ResponseWriter, req transactionRequest) (Transaction, bool) {
	var txDate time.Time
	if req.TransactionDate != "" {
		var err error
		if txDate, err = time.Parse(time.RFC3339, req.TransactionDate); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "transactionDate must be RFC3339")
			return Transaction{}, false
		}
	}
	return Transaction{
		ProjectID:       req.ProjectID,
		Type:            TransactionType(req.Type),
		Category:        Category(req.Category),
		Amount:          req.Amount,
		Description:     req.Description,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		TransactionDate: txDate,
	}, true
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	txn, ok := h.transactionFromRequest(w, req)
	if !ok {
		return
	}
	txn.CreatedBy = shared.ActorFromContext(r.Context())
	created, err := h.service.RecordTransaction(r.Context(), txn)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	txn, ok := h.transactionFromRequest(w, req)
	if !ok {
		return
	}
	txn.ID = id
	updated, err := h.service.UpdateTransaction(r.Context(), txn)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) approveTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	approved, err := h.service.ApproveTransaction(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, approved)
}

func (h *Handler) rejectTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if err := h.service.RejectTransaction(r.Context(), id, req.Reason, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	txn, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		ProjectID: queryID(q.Get("projectId")),
		Type:      TransactionType(q.Get("type")),
		Category:  Category(q.Get("category")),
	}
	if raw := q.Get("approved"); raw != "" {
		approved, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "approved must be a boolean")
			return
		}
		filter.Approved = &approved
	}
	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := q.Get(name); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", name+" must be RFC3339")
				return
			}
			*dst = parsed
		}
	}
	transactions, err := h.service.Transactions(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transactions)
}

func (h *Handler) pendingApprovals(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.service.PendingApprovals(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transactions)
}

type projectSummaryResponse struct {
	ProjectFinancials
	ProfitMargin   decimal.Decimal `json:"profitMargin"`
	BudgetVariance decimal.Decimal `json:"budgetVariance"`
	OverBudget     bool            `json:"overBudget"`
}

func summaryResponse(p ProjectFinancials) projectSummaryResponse {
	return projectSummaryResponse{
		ProjectFinancials: p,
		ProfitMargin:      p.ProfitMargin(),
		BudgetVariance:    p.BudgetVariance(),
		OverBudget:        p.OverBudget(),
	}
}

func (h *Handler) projectSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.ProjectSummary(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summaryResponse(summary))
}

func (h *Handler) expensesByCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	byCategory, err := h.service.ExpensesByCategory(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, byCategory)
}

func (h *Handler) projectsOverBudget(w http.ResponseWriter, r *http.Request) {
	over, err := h.service.ProjectsOverBudget(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]projectSummaryResponse, 0, len(over))
	for _, p := range over {
		out = append(out, summaryResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
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
	if err != nil || id < 0 {
		return 0
	}
	return id
}
