package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDispatcher(client, slog.Default()), client
}

func TestLowStockAlertPayload(t *testing.T) {
	d, client := newTestDispatcher(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, TopicAlerts)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	err = d.LowStockAlert(ctx, 7, "Cement", "bags", decimal.NewFromInt(15), decimal.NewFromInt(20))
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
		require.Equal(t, EventLowStockAlert, payload["type"])
		require.Equal(t, SeverityWarning, payload["severity"])
		require.Contains(t, payload["message"], "Cement")
		require.Contains(t, payload["message"], "15 bags")
		require.NotEmpty(t, payload["timestamp"])
	case <-time.After(2 * time.Second):
		t.Fatal("no alert received")
	}
}

func TestPublishRequiresTopic(t *testing.T) {
	d, _ := newTestDispatcher(t)
	err := d.Publish(context.Background(), "", map[string]any{"x": 1})
	require.Error(t, err)
}

func TestInventoryUpdateTopic(t *testing.T) {
	d, client := newTestDispatcher(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, TopicInventoryUpdates)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	err = d.InventoryUpdate(ctx, "Stock received", "Rebar", "tons", decimal.NewFromInt(3))
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
		require.Equal(t, EventInventoryUpdate, payload["type"])
		require.Equal(t, "Rebar", payload["materialName"])
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}
}
