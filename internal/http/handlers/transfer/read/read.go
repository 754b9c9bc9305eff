// Package read реализует HTTP-обработчик получения перевода по ключу идемпотентности.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/user-points/internal/http/response"
	"github.com/magabrotheeeer/user-points/internal/lib/sl"
	"github.com/magabrotheeeer/user-points/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Get(ctx context.Context, idemKey string) (*models.Transfer, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить перевод
// @Tags Transfers
// @Produce  json
// @Param key path string true "Ключ идемпотентности"
// @Success 200 {object} response.Response{data=models.Transfer}
// @Failure 404 {object} response.ErrorResponse "Перевод не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /transfers/{key} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.transfer.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	key := chi.URLParam(r, "key")
	t, err := h.service.Get(r.Context(), key)
	switch {
	case errors.Is(err, models.ErrTransferNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(models.ErrTransferNotFound.Error()))
		return
	case err != nil:
		log.Error("failed to read transfer", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read transfer"))
		return
	}

	render.JSON(w, r, response.OK("Transfer retrieved successfully", t))
}
