// Package health реализует gRPC-сервис grpc.health.v1.Health для проб оркестратора.
//
// Статус обслуживания периодически пересчитывается по доступности хранилища:
// SERVING пока хранилище отвечает на Ping, NOT_SERVING иначе.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/user-points/internal/lib/sl"
)

// ServiceName имя сервиса, под которым публикуется статус.
const ServiceName = "userpoints.UserPoints"

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server объединяет gRPC-сервер и состояние health-сервиса.
type Server struct {
	log      *slog.Logger
	grpc     *grpc.Server
	health   *grpchealth.Server
	storage  Pinger
	interval time.Duration
}

// New регистрирует health-сервис на новом gRPC-сервере.
func New(log *slog.Logger, storage Pinger, interval time.Duration) *Server {
	gs := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		log:      log,
		grpc:     gs,
		health:   hs,
		storage:  storage,
		interval: interval,
	}
}

// Serve обслуживает соединения на lis, пока не будет вызван Stop.
func (s *Server) Serve(lis net.Listener) error {
	const op = "grpc.health.Serve"

	s.log.Info("grpc health server started", slog.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Watch обновляет статус до отмены контекста.
func (s *Server) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Check однократно опрашивает хранилище и выставляет статус.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.storage != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.storage.Ping(pingCtx)
		cancel()
		if err != nil {
			s.log.Warn("storage ping failed", sl.Err(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Stop переводит сервисы в NOT_SERVING и дожидается завершения активных вызовов.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
