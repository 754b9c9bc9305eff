// Package create реализует HTTP-обработчик перевода баллов между пользователями.
//
// Клиент может передать заголовок Idempotency-Key. Повторный запрос с тем же ключом
// возвращает сохранённый перевод со статусом 200 и не списывает баллы второй раз.
// Без заголовка ключ генерируется и возвращается в том же заголовке ответа.
package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/user-points/internal/http/response"
	"github.com/magabrotheeeer/user-points/internal/lib/sl"
	"github.com/magabrotheeeer/user-points/internal/models"
)

// IdempotencyHeader заголовок с ключом идемпотентности перевода.
const IdempotencyHeader = "Idempotency-Key"

// Handler обрабатывает запросы на перевод баллов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает бизнес-логику перевода.
type Service interface {
	Create(ctx context.Context, req models.DummyTransfer, idemKey string) (*models.Transfer, bool, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Перевести баллы
// @Description Атомарно списывает баллы у отправителя и начисляет получателю
// @Tags Transfers
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Ключ идемпотентности"
// @Param request body models.DummyTransfer true "Данные перевода"
// @Success 201 {object} response.Response{data=models.Transfer} "Перевод выполнен"
// @Success 200 {object} response.Response{data=models.Transfer} "Повтор ранее выполненного перевода"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или перевод самому себе"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Недостаточно баллов или превышен предел баланса получателя"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /transfers [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.transfer.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyTransfer
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return
		}
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	t, replay, err := h.service.Create(r.Context(), req, r.Header.Get(IdempotencyHeader))
	var insufficient *models.InsufficientPointsError
	switch {
	case errors.Is(err, models.ErrSelfTransfer):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(models.ErrSelfTransfer.Error()))
		return
	case errors.Is(err, models.ErrInvalidAmount):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(models.ErrInvalidAmount.Error()))
		return
	case errors.Is(err, models.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(models.ErrNotFound.Error()))
		return
	case errors.As(err, &insufficient):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error(insufficient.Error()))
		return
	case errors.Is(err, models.ErrInvalidPoints):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error(models.ErrInvalidPoints.Error()))
		return
	case err != nil:
		log.Error("failed to create transfer", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create transfer"))
		return
	}

	w.Header().Set(IdempotencyHeader, t.IdemKey)
	if replay {
		log.Info("transfer replayed", slog.String("idem_key", t.IdemKey))
		render.JSON(w, r, response.OK("Transfer already processed", t))
		return
	}

	log.Info("transfer created", slog.String("idem_key", t.IdemKey))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OK("Transfer completed successfully", t))
}
