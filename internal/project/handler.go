package project

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

// Handler wires HTTP endpoints for the project module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler constructs project handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermProjectView))
		r.Get("/", h.list)
		r.Get("/overdue", h.listOverdue)
		r.Get("/{id}", h.get)
		r.Get("/{id}/milestones", h.listMilestones)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermProjectManage))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Patch("/{id}/progress", h.updateProgress)
		r.Post("/{id}/milestones", h.createMilestone)
		r.Patch("/milestones/{id}/status", h.updateMilestoneStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermAdmin))
		r.Delete("/{id}", h.delete)
	})
}

type projectRequest struct {
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description"`
	Location      string          `json:"location" validate:"required"`
	StartDate     string          `json:"startDate" validate:"required"`
	EndDate       string          `json:"endDate"`
	ContractValue decimal.Decimal `json:"contractValue"`
	BudgetedCost  decimal.Decimal `json:"budgetedCost"`
	Status        string          `json:"status"`
}

type progressRequest struct {
	CompletionPercentage decimal.Decimal `json:"completionPercentage"`
}

type milestoneRequest struct {
	Name             string `json:"name" validate:"required"`
	Description      string `json:"description"`
	PlannedStartDate string `json:"plannedStartDate"`
	PlannedEndDate   string `json:"plannedEndDate" validate:"required"`
	Notes            string `json:"notes"`
}

type milestoneStatusRequest struct {
	Status string `json:"status" validate:"required"`
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

func (h *Handler) projectFromRequest(w http.ResponseWriter, req projectRequest) (Project, bool) {
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "startDate must be YYYY-MM-DD")
		return Project{}, false
	}
	var end time.Time
	if req.EndDate != "" {
		if end, err = time.Parse("2006-01-02", req.EndDate); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "endDate must be YYYY-MM-DD")
			return Project{}, false
		}
	}
	return Project{
		Name:          req.Name,
		Description:   req.Description,
		Location:      req.Location,
		StartDate:     start,
		EndDate:       end,
		ContractValue: req.ContractValue,
		BudgetedCost:  req.BudgetedCost,
		Status:        Status(req.Status),
	}, true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	p, ok := h.projectFromRequest(w, req)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), p)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	p, ok := h.projectFromRequest(w, req)
	if !ok {
		return
	}
	p.ID = id
	updated, err := h.service.Update(r.Context(), p)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) updateProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req progressRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	updated, err := h.service.UpdateProgress(r.Context(), id, req.CompletionPercentage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

type projectResponse struct {
	Project
	ProfitMargin   decimal.Decimal `json:"profitMargin"`
	BudgetVariance decimal.Decimal `json:"budgetVariance"`
	OverBudget     bool            `json:"overBudget"`
}

func toResponse(p Project) projectResponse {
	return projectResponse{
		Project:        p,
		ProfitMargin:   p.ProfitMargin(),
		BudgetVariance: p.BudgetVariance(),
		OverBudget:     p.OverBudget(),
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var (
		projects []Project
		err      error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		projects, err = h.service.ListByStatus(r.Context(), Status(status))
	} else {
		projects, err = h.service.List(r.Context())
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listOverdue(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListOverdue(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, projects)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req milestoneRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	plannedEnd, err := time.Parse("2006-01-02", req.PlannedEndDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "plannedEndDate must be YYYY-MM-DD")
		return
	}
	var plannedStart time.Time
	if req.PlannedStartDate != "" {
		if plannedStart, err = time.Parse("2006-01-02", req.PlannedStartDate); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "plannedStartDate must be YYYY-MM-DD")
			return
		}
	}
	created, err := h.service.CreateMilestone(r.Context(), Milestone{
		ProjectID:        id,
		Name:             req.Name,
		Description:      req.Description,
		PlannedStartDate: plannedStart,
		PlannedEndDate:   plannedEnd,
		Notes:            req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listMilestones(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	milestones, err := h.service.Milestones(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, milestones)
}

func (h *Handler) updateMilestoneStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req milestoneStatusRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	m, err := h.service.UpdateMilestoneStatus(r.Context(), id, MilestoneStatus(req.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
