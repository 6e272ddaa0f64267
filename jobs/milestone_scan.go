package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sitemaster-erp/sitemaster/internal/jobs"
)

const (
	// TaskProjectMilestoneScan flags milestones past their planned end date.
	TaskProjectMilestoneScan = "projects:milestone_scan"
)

// MilestoneScanPayload carries scheduling metadata.
type MilestoneScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewMilestoneScanTask constructs an Asynq task for the overdue-milestone sweep.
func NewMilestoneScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(MilestoneScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProjectMilestoneScan, body, asynq.Queue(QueueDefault)), nil
}

// MilestoneScanner marks overdue milestones as delayed and raises alerts.
type MilestoneScanner interface {
	ScanOverdueMilestones(ctx context.Context) (int, error)
}

// MilestoneScanJob executes the periodic overdue-milestone sweep.
type MilestoneScanJob struct {
	Scanner MilestoneScanner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewMilestoneScanJob initialises the milestone scan handler.
func NewMilestoneScanJob(scanner MilestoneScanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *MilestoneScanJob {
	return &MilestoneScanJob{Scanner: scanner, Logger: logger, Metrics: metrics}
}

// Handle executes the scan and records job metrics.
func (j *MilestoneScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Scanner == nil {
		return errors.New("milestone scan: handler not configured")
	}
	var payload MilestoneScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskProjectMilestoneScan)
	flagged, err := j.Scanner.ScanOverdueMilestones(ctx)
	if err != nil {
		j.logger().Error("milestone scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddFindings(TaskProjectMilestoneScan, flagged)
	j.logger().Info("completed milestone scan", slog.Int("flagged", flagged))
	return tracker.End(nil)
}

func (j *MilestoneScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
