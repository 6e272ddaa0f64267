package labor

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

// Handler wires HTTP endpoints for the labor module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler constructs labor handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers labor routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermLaborView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/projects/{id}", h.listByProject)
		r.Get("/projects/{id}/cost", h.projectCost)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermLaborRecord))
		r.Post("/", h.record)
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermAdmin))
		r.Delete("/{id}", h.delete)
	})
}

type recordRequest struct {
	ProjectID       int64           `json:"projectId" validate:"required,gt=0"`
	WorkerName      string          `json:"workerName" validate:"required"`
	WorkerID        string          `json:"workerId"`
	JobTitle        string          `json:"jobTitle" validate:"required"`
	WorkDate        string          `json:"workDate" validate:"required"`
	HoursWorked     decimal.Decimal `json:"hoursWorked"`
	OvertimeHours   decimal.Decimal `json:"overtimeHours"`
	HourlyRate      decimal.Decimal `json:"hourlyRate"`
	OvertimeRate    decimal.Decimal `json:"overtimeRate"`
	WorkDescription string          `json:"workDescription"`
	Attendance      string          `json:"attendanceStatus"`
	Notes           string          `json:"notes"`
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

func (h *Handler) recordFromRequest(w http.ResponseWriter, req recordRequest) (Record, bool) {
	workDate, err := time.Parse("2006-01-02", req.WorkDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "workDate must be YYYY-MM-DD")
		return Record{}, false
	}
	return Record{
		ProjectID:       req.ProjectID,
		WorkerName:      req.WorkerName,
		WorkerID:        req.WorkerID,
		JobTitle:        req.JobTitle,
		WorkDate:        workDate,
		HoursWorked:     req.HoursWorked,
		OvertimeHours:   req.OvertimeHours,
		HourlyRate:      req.HourlyRate,
		OvertimeRate:    req.OvertimeRate,
		WorkDescription: req.WorkDescription,
		Attendance:      AttendanceStatus(req.Attendance),
		Notes:           req.Notes,
	}, true
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	rec, ok := h.recordFromRequest(w, req)
	if !ok {
		return
	}
	created, err := h.service.Record(r.Context(), rec)
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
	var req recordRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	rec, ok := h.recordFromRequest(w, req)
	if !ok {
		return
	}
	rec.ID = id
	updated, err := h.service.Update(r.Context(), rec)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// list serves either a worker-name search or a date-window listing.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if worker := r.URL.Query().Get("worker"); worker != "" {
		records, err := h.service.SearchByWorker(r.Context(), worker)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, records)
		return
	}
	from, to, ok := dateWindow(w, r)
	if !ok {
		return
	}
	if from.IsZero() || to.IsZero() {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "worker or from/to query parameters required")
		return
	}
	records, err := h.service.ListByDateRange(r.Context(), from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) listByProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	from, to, ok := dateWindow(w, r)
	if !ok {
		return
	}
	records, err := h.service.ListByProject(r.Context(), id, from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) projectCost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	from, to, ok := dateWindow(w, r)
	if !ok {
		return
	}
	summary, err := h.service.ProjectCost(r.Context(), id, from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
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

func dateWindow(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from must be YYYY-MM-DD")
			return from, to, false
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "to must be YYYY-MM-DD")
			return from, to, false
		}
	}
	return from, to, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
