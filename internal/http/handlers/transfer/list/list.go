// Package list реализует HTTP-обработчик истории переводов пользователя с пагинацией.
package list

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/user-points/internal/http/response"
	"github.com/magabrotheeeer/user-points/internal/lib/sl"
	"github.com/magabrotheeeer/user-points/internal/models"
	"github.com/magabrotheeeer/user-points/internal/services/transfer"
)

// Handler обрабатывает запросы на получение истории переводов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает бизнес-логику получения истории переводов.
type Service interface {
	List(ctx context.Context, userID int64, page, pageSize int) (*models.TransferPage, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary История переводов
// @Description Переводы, где пользователь отправитель или получатель, новые первыми
// @Tags Transfers
// @Produce  json
// @Param userId query int true "ID пользователя"
// @Param page query int false "Номер страницы, с 1"
// @Param pageSize query int false "Размер страницы, до 200"
// @Success 200 {object} response.Response{data=models.TransferPage}
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /transfers [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.transfer.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := r.URL.Query()
	userID, err := strconv.ParseInt(q.Get("userId"), 10, 64)
	if err != nil || userID < 1 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid userId"))
		return
	}
	page, err := optionalInt(q.Get("page"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid page"))
		return
	}
	pageSize, err := optionalInt(q.Get("pageSize"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid pageSize"))
		return
	}

	res, err := h.service.List(r.Context(), userID, page, pageSize)
	switch {
	case errors.Is(err, transfer.ErrInvalidPage):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(transfer.ErrInvalidPage.Error()))
		return
	case errors.Is(err, models.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(models.ErrNotFound.Error()))
		return
	case err != nil:
		log.Error("failed to list transfers", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list transfers"))
		return
	}
	if res.Data == nil {
		res.Data = []*models.Transfer{}
	}

	render.JSON(w, r, response.OK("Transfers retrieved successfully", res))
}

// optionalInt разбирает необязательный числовой параметр, пустая строка даёт 0.
func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
