package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit trail rows.
type Repository interface {
	TimelineWindow(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error)
	TimelineAll(ctx context.Context, f TimelineFilters) ([]TimelineRow, error)
}

// PGRepository is the PostgreSQL implementation over audit_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timelineQuery = `SELECT occurred_at, actor_id, action, entity, entity_id, old_values, new_values, ip_address
FROM audit_logs
WHERE occurred_at >= COALESCE(NULLIF($1, '0001-01-01 00:00:00'::timestamptz), '-infinity'::timestamptz)
  AND occurred_at <= COALESCE(NULLIF($2, '0001-01-01 00:00:00'::timestamptz), 'infinity'::timestamptz)
  AND ($3 = 0 OR actor_id = $3)
  AND ($4 = '' OR entity = $4)
  AND ($5 = '' OR action = $5)
ORDER BY occurred_at DESC, entity_id DESC`

func (r *PGRepository) collect(ctx context.Context, query string, args ...any) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID,
			&row.OldValues, &row.NewValues, &row.IPAddress); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TimelineWindow returns one page of the timeline.
func (r *PGRepository) TimelineWindow(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	return r.collect(ctx, timelineQuery+` OFFSET $6 LIMIT $7`,
		f.From, f.To, f.ActorID, strings.TrimSpace(f.Entity), strings.TrimSpace(f.Action), offset, limit)
}

// TimelineAll returns the full filtered timeline, for export.
func (r *PGRepository) TimelineAll(ctx context.Context, f TimelineFilters) ([]TimelineRow, error) {
	return r.collect(ctx, timelineQuery,
		f.From, f.To, f.ActorID, strings.TrimSpace(f.Entity), strings.TrimSpace(f.Action))
}

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService constructs the audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline fetches one page of audit entries. It reads one row past the page
// size to decide whether a next page exists.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	rows, err := s.repo.TimelineWindow(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export fetches the full filtered timeline without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.TimelineAll(ctx, filters)
}

// CSVHeader is the column order used by ExportCSV.
var CSVHeader = []string{"at", "actor_id", "action", "entity", "entity_id", "old_values", "new_values", "ip_address"}

// CSVRecord renders one timeline row for CSV export.
func CSVRecord(row TimelineRow) []string {
	return []string{
		row.At.Format(time.RFC3339),
		fmt.Sprintf("%d", row.ActorID),
		row.Action,
		row.Entity,
		row.EntityID,
		row.OldValues,
		row.NewValues,
		row.IPAddress,
	}
}
