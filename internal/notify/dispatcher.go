// Package notify fans application events out to subscribers over Redis pub/sub.
// The delivery mechanics (websocket bridge, per-user queues) live outside the
// core; publishers only know topics and payloads.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Topic names mirror the channels the front end subscribes to.
const (
	TopicAlerts           = "alerts"
	TopicInventoryUpdates = "inventory-updates"
	TopicFinancialUpdates = "financial-updates"
	TopicProjectUpdates   = "project-updates"
	TopicProgressUpdates  = "progress-updates"
)

// Event types carried in the payload.
const (
	EventLowStockAlert       = "LOW_STOCK_ALERT"
	EventBudgetOverrunAlert  = "BUDGET_OVERRUN_ALERT"
	EventMilestoneDelayAlert = "MILESTONE_DELAY_ALERT"
	EventInventoryUpdate     = "INVENTORY_UPDATE"
	EventFinancialUpdate     = "FINANCIAL_UPDATE"
	EventProjectStatusUpdate = "PROJECT_STATUS_UPDATE"
)

// Severity levels attached to alert payloads.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Dispatcher publishes events to Redis channels.
type Dispatcher struct {
	client  *redis.Client
	logger  *slog.Logger
	printer *message.Printer
}

// NewDispatcher constructs Dispatcher.
func NewDispatcher(client *redis.Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:  client,
		logger:  logger,
		printer: message.NewPrinter(language.English),
	}
}

// Publish marshals the payload and publishes it on the given topic.
// Failures are logged and returned; callers on the primary path discard them.
func (d *Dispatcher) Publish(ctx context.Context, topic string, payload map[string]any) error {
	if d == nil {
		return errors.New("notify: dispatcher not initialised")
	}
	if topic == "" {
		return errors.New("notify: topic required")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if _, ok := payload["eventId"]; !ok {
		payload["eventId"] = uuid.NewString()
	}
	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = time.Now().UTC()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("marshal notification", slog.String("topic", topic), slog.Any("error", err))
		return err
	}
	if err := d.client.Publish(ctx, topic, data).Err(); err != nil {
		d.logger.Error("publish notification", slog.String("topic", topic), slog.Any("error", err))
		return err
	}
	return nil
}

// LowStockAlert publishes a low-stock warning for a material.
func (d *Dispatcher) LowStockAlert(ctx context.Context, materialID int64, name, unit string, currentStock, minStockLevel decimal.Decimal) error {
	if d == nil {
		return errors.New("notify: dispatcher not initialised")
	}
	msg := d.printer.Sprintf("Low stock alert: %s (Current: %s %s, Minimum: %s %s)",
		name, currentStock, unit, minStockLevel, unit)
	return d.Publish(ctx, TopicAlerts, map[string]any{
		"type":          EventLowStockAlert,
		"severity":      SeverityWarning,
		"message":       msg,
		"materialId":    materialID,
		"currentStock":  currentStock,
		"minStockLevel": minStockLevel,
	})
}

// BudgetOverrunAlert publishes a budget overrun notice for a project.
func (d *Dispatcher) BudgetOverrunAlert(ctx context.Context, projectID int64, name string, variance, actualCost, budgetedCost decimal.Decimal) error {
	if d == nil {
		return errors.New("notify: dispatcher not initialised")
	}
	msg := d.printer.Sprintf("Budget overrun alert: Project %s is %s%% over budget", name, variance.StringFixed(2))
	return d.Publish(ctx, TopicAlerts, map[string]any{
		"type":           EventBudgetOverrunAlert,
		"severity":       SeverityCritical,
		"message":        msg,
		"projectId":      projectID,
		"projectName":    name,
		"budgetVariance": variance,
		"actualCost":     actualCost,
		"budgetedCost":   budgetedCost,
	})
}

// MilestoneDelayAlert publishes an overdue-milestone notice.
func (d *Dispatcher) MilestoneDelayAlert(ctx context.Context, projectID int64, projectName, milestoneName string) error {
	if d == nil {
		return errors.New("notify: dispatcher not initialised")
	}
	msg := d.printer.Sprintf("Milestone delay: %s in project %s is overdue", milestoneName, projectName)
	return d.Publish(ctx, TopicAlerts, map[string]any{
		"type":          EventMilestoneDelayAlert,
		"severity":      SeverityHigh,
		"message":       msg,
		"projectId":     projectID,
		"projectName":   projectName,
		"milestoneName": milestoneName,
	})
}

// InventoryUpdate publishes a stock movement notice.
func (d *Dispatcher) InventoryUpdate(ctx context.Context, action, materialName, unit string, quantity decimal.Decimal) error {
	if d == nil {
		return errors.New("notify: dispatcher not initialised")
	}
	msg := d.printer.Sprintf("%s: %s %s of %s", action, quantity, unit, materialName)
	return d.Publish(ctx, TopicInventoryUpdates, map[string]any{
		"type":         EventInventoryUpdate,
		"action":       action,
		"message":      msg,
		"materialName": materialName,
		"quantity":     quantity,
		"unit":         unit,
	})
}

// FinancialUpdate publishes a financial transaction notice.
func (d *Dispatcher) FinancialUpdate(ctx context.Context, projectID int64, txType, description string, amount decimal.Decimal) error {
	if d == nil {
		return errors.New("notify: dispatcher not initialised")
	}
	msg := d.printer.Sprintf("%s transaction: %v - %s", txType, number.Decimal(amount.InexactFloat64()), description)
	return d.Publish(ctx, TopicFinancialUpdates, map[string]any{
		"type":        EventFinancialUpdate,
		"message":     msg,
		"projectId":   projectID,
		"txType":      txType,
		"amount":      amount,
		"description": description,
	})
}

// ProgressUpdate publishes a completion-percentage change.
func (d *Dispatcher) ProgressUpdate(ctx context.Context, projectID int64, name string, completion decimal.Decimal) error {
	if d == nil {
		return errors.New("notify: dispatcher not initialised")
	}
	msg := d.printer.Sprintf("Project %s progress updated to %s%%", name, completion)
	return d.Publish(ctx, TopicProgressUpdates, map[string]any{
		"type":                 EventProjectStatusUpdate,
		"message":              msg,
		"projectId":            projectID,
		"projectName":          name,
		"completionPercentage": completion,
	})
}

// ProjectStatusUpdate publishes a project lifecycle notice.
func (d *Dispatcher) ProjectStatusUpdate(ctx context.Context, projectID int64, name, status string, completion decimal.Decimal) error {
	if d == nil {
		return errors.New("notify: dispatcher not initialised")
	}
	msg := d.printer.Sprintf("Project %s status changed: %s", name, status)
	return d.Publish(ctx, TopicProjectUpdates, map[string]any{
		"type":                 EventProjectStatusUpdate,
		"severity":             SeverityInfo,
		"message":              msg,
		"projectId":            projectID,
		"projectName":          name,
		"newStatus":            status,
		"completionPercentage": completion,
	})
}
