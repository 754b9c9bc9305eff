package userpoints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/user-points/internal/config"
	"github.com/magabrotheeeer/user-points/internal/events"
	grpchealth "github.com/magabrotheeeer/user-points/internal/grpc/health"
	"github.com/magabrotheeeer/user-points/internal/http/middlewarectx"
	jwtlib "github.com/magabrotheeeer/user-points/internal/lib/jwt"
	"github.com/magabrotheeeer/user-points/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/user-points/internal/lib/sl"
	"github.com/magabrotheeeer/user-points/internal/metrics"
	"github.com/magabrotheeeer/user-points/internal/migrations"
	transferservice "github.com/magabrotheeeer/user-points/internal/services/transfer"
	userservice "github.com/magabrotheeeer/user-points/internal/services/user"
	"github.com/magabrotheeeer/user-points/internal/storage/postgresql"
	"github.com/magabrotheeeer/user-points/internal/storage/redisstore"
)

const (
	shutdownTimeout     = 15 * time.Second
	healthCheckInterval = 10 * time.Second
)

// Store хранилище, которое обслуживает и пользователей, и переводы.
type Store interface {
	userservice.Repository
	transferservice.Repository
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*postgresql.Storage)(nil)
	_ Store = (*redisstore.Store)(nil)
)

// App держит HTTP-сервер и все ресурсы, которые нужно освободить при остановке.
type App struct {
	server   *http.Server
	health   *grpchealth.Server
	logger   *slog.Logger
	storage  Store
	amqpConn *amqp.Connection
	amqpCh   *amqp.Channel
	grpcAddr string
}

// New подключает хранилище и брокер и собирает роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.userpoints.New"

	store, err := newStorage(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{
		logger:   logger,
		storage:  store,
		grpcAddr: cfg.HealthAddress,
	}

	var publisher userservice.EventPublisher = events.NewLogPublisher(logger)
	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.Retries, cfg.RetryDelay, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.amqpConn = conn
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetEventQueues())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.amqpCh = ch
		publisher = events.NewAMQPPublisher(ch, rabbitmq.EventsExchange)
		logger.Info("events are published to rabbitmq", slog.String("exchange", rabbitmq.EventsExchange))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	users := userservice.NewService(store, publisher, logger).WithRecorder(m)
	transfers := transferservice.NewService(store, publisher, logger).WithRecorder(m)

	var tokens middlewarectx.TokenParser
	if cfg.JWTSecretKey != "" {
		tokens = jwtlib.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, cfg.Issuer)
	} else {
		logger.Warn("jwt secret is not set, mutating routes are not protected")
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, users, transfers, tokens, m,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), store, cfg.RateLimit)

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if cfg.HealthAddress != "" {
		a.health = grpchealth.New(logger, store, healthCheckInterval)
	}
	return a, nil
}

func newStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case config.StorageDriverRedis:
		rdb, err := redisstore.New(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, err
		}
		return rdb, nil
	case config.StorageDriverPostgres:
		db, err := postgresql.New(ctx, cfg.StorageConnectionString)
		if err != nil {
			return nil, err
		}
		version, err := migrations.Run(db.DB, cfg.MigrationsPath)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("migrations applied", slog.Uint64("version", uint64(version)))
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Run обслуживает запросы до отмены ctx и затем останавливает серверы,
// давая активным запросам 15 секунд на завершение.
func (a *App) Run(ctx context.Context) error {
	const op = "app.userpoints.Run"

	var lis net.Listener
	if a.health != nil {
		var err error
		lis, err = net.Listen("tcp", a.grpcAddr)
		if err != nil {
			a.close()
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	if a.health != nil {
		a.logger.Info("gRPC health server starting on", slog.String("address", lis.Addr().String()))
		go a.health.Watch(ctx)
		go func() {
			if err := a.health.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down HTTP server gracefully")
	if err := a.server.Shutdown(timeoutCtx); err != nil && runErr == nil {
		runErr = err
	}
	if a.health != nil {
		a.health.Stop()
	}
	a.close()
	return runErr
}

func (a *App) close() {
	if a.amqpCh != nil {
		if err := a.amqpCh.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if err := a.storage.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
