// Package health содержит служебные обработчики: приветствие на корневом пути
// и проверку готовности с опросом хранилища.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/user-points/internal/lib/sl"
)

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// Pinger проверяет доступность зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	log     *slog.Logger
	storage Pinger
	timeout time.Duration
}

// New создает обработчик проверки готовности. storage может быть nil.
func New(log *slog.Logger, storage Pinger) *Handler {
	return &Handler{
		log:     log,
		storage: storage,
		timeout: 2 * time.Second,
	}
}

// ServeHTTP godoc
// @Summary Проверка готовности
// @Tags Health
// @Produce  json
// @Success 200 {object} map[string]string "UP"
// @Failure 503 {object} map[string]string "DOWN"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if h.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.storage.Ping(ctx); err != nil {
			h.log.Error("storage is unavailable", slog.String("op", op), sl.Err(err))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"status": StatusDown})
			return
		}
	}

	render.JSON(w, r, map[string]string{"status": StatusUp})
}

// Hello отвечает простым текстом на корневом пути.
// @Summary Приветствие
// @Tags Health
// @Produce  plain
// @Success 200 {string} string "Hello World!"
// @Router / [get]
func Hello(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "Hello World!")
}
