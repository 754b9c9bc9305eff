// Package points реализует HTTP-обработчики начисления и списания баллов.
//
// Сумма берётся из query-параметра points, а если его нет, из тела {"points": N}.
// Пустое тело означает отсутствие суммы: начисление тогда ничего не меняет,
// а списание отклоняется с сообщением о текущем балансе.
package points

import (
	"context"
	"errors"
	"io"
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

// Service описывает бизнес-логику изменения баланса.
type Service interface {
	AddPoints(ctx context.Context, id int64, amount *int) (*models.User, error)
	DeductPoints(ctx context.Context, id int64, amount *int) (*models.User, error)
}

// Handler обрабатывает запросы на изменение баланса в одном направлении.
type Handler struct {
	log     *slog.Logger
	service Service
	deduct  bool
}

// NewAdd создает обработчик начисления баллов.
func NewAdd(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// NewDeduct создает обработчик списания баллов.
func NewDeduct(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, deduct: true}
}

// ServeHTTP godoc
// @Summary Начислить или списать баллы
// @Description add начисляет баллы (пустая или неположительная сумма ничего не меняет),
// @Description deduct списывает и отклоняет сумму больше баланса
// @Tags Points
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path int true "ID пользователя"
// @Param points query int false "Сумма"
// @Param request body models.PointsOperation false "Сумма в теле запроса"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос, недостаточно баллов или превышен предел баланса"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users/{id}/points/add [post]
// @Router /users/{id}/points/deduct [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.points"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Bool("deduct", h.deduct),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
		return
	}

	amount, err := amountFromRequest(r)
	if err != nil {
		log.Info("failed to read points amount", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid points amount"))
		return
	}

	var u *models.User
	if h.deduct {
		u, err = h.service.DeductPoints(r.Context(), id, amount)
	} else {
		u, err = h.service.AddPoints(r.Context(), id, amount)
	}

	var insufficient *models.InsufficientPointsError
	switch {
	case errors.Is(err, models.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(models.ErrNotFound.Error()))
		return
	case errors.As(err, &insufficient):
		log.Info("insufficient points", slog.Int("balance", insufficient.Balance))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(insufficient.Error()))
		return
	case errors.Is(err, models.ErrInvalidPoints):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(models.ErrInvalidPoints.Error()))
		return
	case err != nil:
		log.Error("failed to change points", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not change points"))
		return
	}

	log.Info("points changed", slog.Int64("id", u.ID), slog.Int("balance", u.Points))
	render.JSON(w, r, response.OK("Points updated successfully", u))
}

func amountFromRequest(r *http.Request) (*int, error) {
	if raw := r.URL.Query().Get("points"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		return &n, nil
	}

	var body models.PointsOperation
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return body.Points, nil
}
