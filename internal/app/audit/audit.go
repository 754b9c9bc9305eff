// Package audit собирает воркер, который читает доменные события из очереди users.audit
// и пишет их в журнал аудита.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/user-points/internal/config"
	"github.com/magabrotheeeer/user-points/internal/events"
	"github.com/magabrotheeeer/user-points/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/user-points/internal/lib/sl"
)

// Queue очередь, из которой читает воркер.
const Queue = "users.audit"

// ErrBrokerNotConfigured воркеру нечего читать без брокера.
var ErrBrokerNotConfigured = errors.New("rabbitmq url is not configured")

type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	audit  *events.AuditLogger
	logger *slog.Logger
}

// New подключается к брокеру и объявляет очереди событий.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.audit.New"

	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrBrokerNotConfigured)
	}
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.Retries, cfg.RetryDelay, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetEventQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		conn:   conn,
		ch:     ch,
		audit:  events.NewAuditLogger(logger),
		logger: logger,
	}, nil
}

// Run читает очередь до отмены ctx и дожидается обработки начатых сообщений.
func (a *App) Run(ctx context.Context) error {
	wg, err := rabbitmq.ConsumeMessages(ctx, a.ch, Queue, a.audit.Handle, a.logger)
	if err != nil {
		a.logger.Error("failed to start audit consumer", sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("audit worker shutting down gracefully")
	wg.Wait()

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
