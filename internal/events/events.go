// Package events публикует доменные события сервиса в RabbitMQ.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/user-points/internal/lib/rabbitmq"
)

// Ключи маршрутизации доменных событий.
const (
	UserCreated           = "user.created"
	UserUpdated           = "user.updated"
	UserDeleted           = "user.deleted"
	UserPointsChanged     = "user.points.changed"
	UserMembershipChanged = "user.membership.changed"
	TransferCompleted     = "transfer.completed"
)

// Event конверт события, который уходит в брокер.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// AMQPPublisher публикует события в topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       rabbitmq.Channel
	exchange string
	now      func() time.Time
}

// NewAMQPPublisher создает издателя поверх открытого канала.
func NewAMQPPublisher(ch rabbitmq.Channel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		now:      time.Now,
	}
}

// Publish отправляет событие с ключом маршрутизации eventType.
// Канал amqp не потокобезопасен, поэтому публикации сериализуются.
func (p *AMQPPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	const op = "events.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	event := Event{
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := rabbitmq.PublishMessage(p.ch, p.exchange, eventType, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LogPublisher пишет события в лог. Используется, когда брокер не настроен.
type LogPublisher struct {
	log *slog.Logger
}

// NewLogPublisher создает издателя, который только логирует события.
func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish логирует событие на уровне debug.
func (p *LogPublisher) Publish(_ context.Context, eventType string, _ any) error {
	p.log.Debug("event published", slog.String("type", eventType))
	return nil
}
