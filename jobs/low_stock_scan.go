package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sitemaster-erp/sitemaster/internal/jobs"
)

const (
	// TaskInventoryLowStockScan sweeps materials against their reorder thresholds.
	TaskInventoryLowStockScan = "inventory:low_stock_scan"
)

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock sweep.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// LowStockScanner walks active materials and raises alerts for those at or
// below their minimum stock level.
type LowStockScanner interface {
	ScanLowStock(ctx context.Context) (int, error)
}

// Mailer enqueues transactional email tasks.
type Mailer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// LowStockScanJob executes the periodic low-stock sweep.
type LowStockScanJob struct {
	Scanner LowStockScanner
	Mailer  Mailer
	MailTo  string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(scanner LowStockScanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Scanner: scanner, Logger: logger, Metrics: metrics}
}

// Handle executes the scan and records job metrics. When a mailer is
// configured and materials were flagged, a summary email is enqueued.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Scanner == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskInventoryLowStockScan)
	flagged, err := j.Scanner.ScanLowStock(ctx)
	if err != nil {
		j.logger().Error("low stock scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddFindings(TaskInventoryLowStockScan, flagged)
	if flagged > 0 && j.Mailer != nil && j.MailTo != "" {
		if _, err := j.Mailer.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      j.MailTo,
			Subject: fmt.Sprintf("Low stock: %d materials below minimum", flagged),
			Body:    fmt.Sprintf("%d materials are at or below their minimum stock level as of %s.", flagged, time.Now().UTC().Format(time.RFC3339)),
		}); err != nil {
			j.logger().Warn("enqueue low stock email", slog.Any("error", err))
		}
	}
	j.logger().Info("completed low stock scan", slog.Int("flagged", flagged))
	return tracker.End(nil)
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
