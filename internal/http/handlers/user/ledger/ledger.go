// Package ledger реализует HTTP-обработчик журнала баллов пользователя.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/user-points/internal/http/response"
	"github.com/magabrotheeeer/user-points/internal/lib/sl"
	"github.com/magabrotheeeer/user-points/internal/models"
)

// Handler отдаёт записи журнала баллов, новые первыми.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает бизнес-логику чтения журнала.
type Service interface {
	GetLedger(ctx context.Context, id int64) ([]*models.LedgerEntry, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Журнал баллов
// @Description Возвращает все изменения баланса пользователя, новые записи первыми
// @Tags Users
// @Produce  json
// @Param id path int true "ID пользователя"
// @Success 200 {object} response.Response{data=[]models.LedgerEntry}
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users/{id}/ledger [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.ledger"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
		return
	}

	entries, err := h.service.GetLedger(r.Context(), id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(models.ErrNotFound.Error()))
		return
	case err != nil:
		log.Error("failed to read ledger", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read ledger"))
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}

	render.JSON(w, r, response.OK("Ledger retrieved successfully", entries))
}
