package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubScanner struct {
	flagged int
	err     error
	calls   int
}

func (s *stubScanner) ScanLowStock(ctx context.Context) (int, error) {
	s.calls++
	return s.flagged, s.err
}

func (s *stubScanner) ScanOverdueMilestones(ctx context.Context) (int, error) {
	s.calls++
	return s.flagged, s.err
}

func TestLowStockScanJobHandle(t *testing.T) {
	scanner := &stubScanner{flagged: 3}
	job := NewLowStockScanJob(scanner, nil, nil)

	task, err := NewLowStockScanTask(time.Now())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, scanner.calls)
}

type stubMailer struct {
	sent []SendEmailPayload
}

func (m *stubMailer) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	m.sent = append(m.sent, payload)
	return &asynq.TaskInfo{}, nil
}

func TestLowStockScanJobSendsSummaryEmail(t *testing.T) {
	scanner := &stubScanner{flagged: 2}
	mailer := &stubMailer{}
	job := NewLowStockScanJob(scanner, nil, nil)
	job.Mailer = mailer
	job.MailTo = "ops@sitemaster.local"

	task, err := NewLowStockScanTask(time.Now())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "ops@sitemaster.local", mailer.sent[0].To)
	require.Contains(t, mailer.sent[0].Subject, "2 materials")
}

func TestLowStockScanJobSkipsEmailWhenNothingFlagged(t *testing.T) {
	scanner := &stubScanner{flagged: 0}
	mailer := &stubMailer{}
	job := NewLowStockScanJob(scanner, nil, nil)
	job.Mailer = mailer
	job.MailTo = "ops@sitemaster.local"

	task, err := NewLowStockScanTask(time.Now())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Empty(t, mailer.sent)
}

func TestLowStockScanJobPropagatesError(t *testing.T) {
	scanner := &stubScanner{err: errors.New("boom")}
	job := NewLowStockScanJob(scanner, nil, nil)

	task, err := NewLowStockScanTask(time.Now())
	require.NoError(t, err)

	require.Error(t, job.Handle(context.Background(), task))
}

func TestMilestoneScanJobHandle(t *testing.T) {
	scanner := &stubScanner{flagged: 2}
	job := NewMilestoneScanJob(scanner, nil, nil)

	task, err := NewMilestoneScanTask(time.Now())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, scanner.calls)
}
