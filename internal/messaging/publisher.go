package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"narrative-server/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// StoryUpdatePublisher рассылает события об изменении историй.
type StoryUpdatePublisher interface {
	PublishStoryUpdate(ctx context.Context, update models.StoryUpdate) error
}

const (
	publishTimeout  = 10 * time.Second
	publishAttempts = 3
	appID           = "narrative-server"
)

// rabbitMQPublisher публикует события в fanout exchange.
type rabbitMQPublisher struct {
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

var _ StoryUpdatePublisher = (*rabbitMQPublisher)(nil)

// NewRabbitMQStoryUpdatePublisher открывает канал и объявляет fanout exchange.
func NewRabbitMQStoryUpdatePublisher(conn *amqp.Connection, exchange string, logger *zap.Logger) (StoryUpdatePublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("story update publisher: не удалось открыть канал: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		return nil, fmt.Errorf("story update publisher: не удалось объявить exchange '%s': %w", exchange, err)
	}
	logger = logger.Named("StoryUpdatePublisher")
	logger.Info("Exchange declared", zap.String("exchange", exchange))
	return &rabbitMQPublisher{channel: ch, exchange: exchange, logger: logger}, nil
}

func (p *rabbitMQPublisher) PublishStoryUpdate(ctx context.Context, update models.StoryUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("ошибка подготовки сообщения StoryUpdate: %w", err)
	}
	return p.publishMessage(ctx, body, string(update.Type))
}

func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte, messageType string) error {
	if p.channel == nil {
		return errors.New("канал RabbitMQ не инициализирован")
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			p.exchange,
			"",    // routing key (fanout)
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				Type:         messageType,
				AppId:        appID,
			},
		)
		if err == nil {
			p.logger.Debug("Story update published", zap.String("type", messageType), zap.Int("attempt", attempt))
			return nil
		}
		p.logger.Warn("Failed to publish story update",
			zap.String("type", messageType),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("ошибка публикации в exchange %s: %w", p.exchange, ctx.Err())
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return fmt.Errorf("ошибка публикации в exchange %s после retries: %w", p.exchange, err)
}

// ConnectRabbitMQ подключается к RabbitMQ с несколькими попытками.
func ConnectRabbitMQ(url string, maxRetries int, retryDelay time.Duration, logger *zap.Logger) (*amqp.Connection, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying",
			zap.Int("attempt", i+1),
			zap.Int("maxRetries", maxRetries),
			zap.Duration("retryDelay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}

// NoopPublisher используется, когда брокер не настроен.
type NoopPublisher struct{}

func (NoopPublisher) PublishStoryUpdate(context.Context, models.StoryUpdate) error { return nil }

// MultiPublisher рассылает событие всем получателям и возвращает объединенную ошибку.
type MultiPublisher []StoryUpdatePublisher

func (m MultiPublisher) PublishStoryUpdate(ctx context.Context, update models.StoryUpdate) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishStoryUpdate(ctx, update); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
