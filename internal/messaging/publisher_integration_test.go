//go:build integration

package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"narrative-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func TestRabbitMQPublisherDeliversToBoundQueue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx,
		"rabbitmq:3-management-alpine",
		testcontainers.WithWaitStrategy(wait.ForLog("Server startup complete")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	conn, err := ConnectRabbitMQ(url, 5, time.Second, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	const exchange = "story_updates_test"
	publisher, err := NewRabbitMQStoryUpdatePublisher(conn, exchange, zap.NewNop())
	require.NoError(t, err)

	// Потребитель: временная очередь, привязанная к fanout exchange
	ch, err := conn.Channel()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "", exchange, false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	storyID := uuid.New()
	update := models.NewStoryUpdate(models.UpdateSuggestionConfirmed, uuid.New(), storyID, nil)
	require.NoError(t, publisher.PublishStoryUpdate(ctx, update))

	select {
	case d := <-deliveries:
		assert.Equal(t, string(models.UpdateSuggestionConfirmed), d.Type)
		assert.Equal(t, "application/json", d.ContentType)
		var got models.StoryUpdate
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, storyID, got.StoryID)
	case <-time.After(10 * time.Second):
		t.Fatal("story update was not delivered")
	}
}
