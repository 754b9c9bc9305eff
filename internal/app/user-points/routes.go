// Package userpoints собирает HTTP-приложение сервиса баллов лояльности.
package userpoints

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/user-points/internal/config"
	"github.com/magabrotheeeer/user-points/internal/http/handlers/health"
	transfercreate "github.com/magabrotheeeer/user-points/internal/http/handlers/transfer/create"
	transferlist "github.com/magabrotheeeer/user-points/internal/http/handlers/transfer/list"
	transferread "github.com/magabrotheeeer/user-points/internal/http/handlers/transfer/read"
	"github.com/magabrotheeeer/user-points/internal/http/handlers/user/create"
	"github.com/magabrotheeeer/user-points/internal/http/handlers/user/ledger"
	"github.com/magabrotheeeer/user-points/internal/http/handlers/user/list"
	"github.com/magabrotheeeer/user-points/internal/http/handlers/user/membership"
	"github.com/magabrotheeeer/user-points/internal/http/handlers/user/points"
	"github.com/magabrotheeeer/user-points/internal/http/handlers/user/read"
	"github.com/magabrotheeeer/user-points/internal/http/handlers/user/remove"
	"github.com/magabrotheeeer/user-points/internal/http/handlers/user/update"
	"github.com/magabrotheeeer/user-points/internal/http/handlers/user/view"
	"github.com/magabrotheeeer/user-points/internal/http/middlewarectx"
	jwtlib "github.com/magabrotheeeer/user-points/internal/lib/jwt"
	"github.com/magabrotheeeer/user-points/internal/metrics"
	transferservice "github.com/magabrotheeeer/user-points/internal/services/transfer"
	userservice "github.com/magabrotheeeer/user-points/internal/services/user"
)

// RegisterRoutes регистрирует все маршруты приложения.
// Если tokens равен nil, изменяющие запросы принимаются без авторизации.
func RegisterRoutes(
	r chi.Router,
	logger *slog.Logger,
	users *userservice.Service,
	transfers *transferservice.Service,
	tokens middlewarectx.TokenParser,
	m *metrics.Metrics,
	metricsHandler http.Handler,
	storage health.Pinger,
	limit config.RateLimit,
) {
	authEnabled := tokens != nil

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		m.Middleware,
	)

	r.Get("/", health.Hello)
	r.Get("/health", health.New(logger, storage).ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, limit.RPS, limit.Burst))

		// Чтение открыто
		r.Get("/users", list.New(logger, users).ServeHTTP)
		r.Get("/users/{id}", read.New(logger, users).ServeHTTP)
		r.Get("/users/{id}/view", view.New(logger, users).ServeHTTP)
		r.Get("/users/{id}/ledger", ledger.New(logger, users).ServeHTTP)
		r.Get("/transfers", transferlist.New(logger, transfers).ServeHTTP)
		r.Get("/transfers/{key}", transferread.New(logger, transfers).ServeHTTP)

		// Изменения требуют токен
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.Optional(authEnabled, middlewarectx.JWTMiddleware(tokens, logger)))
			r.Post("/users", create.New(logger, users).ServeHTTP)
			r.Put("/users/{id}", update.New(logger, users).ServeHTTP)
			r.Post("/transfers", transfercreate.New(logger, transfers).ServeHTTP)

			// Баланс, уровень и удаление только для администратора
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.Optional(authEnabled, middlewarectx.RequireRole(jwtlib.RoleAdmin, logger)))
				r.Delete("/users/{id}", remove.New(logger, users).ServeHTTP)
				r.Post("/users/{id}/points/add", points.NewAdd(logger, users).ServeHTTP)
				r.Post("/users/{id}/points/deduct", points.NewDeduct(logger, users).ServeHTTP)
				r.Put("/users/{id}/membership", membership.New(logger, users).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", metricsHandler)
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
