// Package transfer реализует переводы баллов между пользователями с ключами идемпотентности.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/user-points/internal/events"
	"github.com/magabrotheeeer/user-points/internal/models"
)

// Параметры пагинации истории переводов.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Результаты перевода для метрик.
const (
	ResultCompleted = "completed"
	ResultReplayed  = "replayed"
	ResultFailed    = "failed"
)

// ErrInvalidPage неверные параметры пагинации.
var ErrInvalidPage = errors.New("page must be >= 1 and pageSize between 1 and 200")

// Repository определяет методы хранилища, нужные для переводов.
type Repository interface {
	// GetUser возвращает пользователя или models.ErrNotFound.
	GetUser(ctx context.Context, id int64) (*models.User, error)
	// CreateTransfer атомарно выполняет перевод.
	CreateTransfer(ctx context.Context, t models.Transfer) (*models.Transfer, error)
	// GetTransfer возвращает перевод или models.ErrTransferNotFound.
	GetTransfer(ctx context.Context, idemKey string) (*models.Transfer, error)
	// ListTransfers возвращает страницу переводов пользователя и их общее число.
	ListTransfers(ctx context.Context, userID int64, limit, offset int) ([]*models.Transfer, int, error)
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Recorder учитывает результаты переводов.
type Recorder interface {
	TransferFinished(result string)
}

type nopRecorder struct{}

func (nopRecorder) TransferFinished(string) {}

// Service реализует переводы баллов.
type Service struct {
	repo      Repository
	publisher EventPublisher
	metrics   Recorder
	log       *slog.Logger
	now       func() time.Time
	newKey    func() string
}

// NewService создает сервис переводов.
func NewService(repo Repository, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		metrics:   nopRecorder{},
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		newKey:    uuid.NewString,
	}
}

// WithRecorder подключает учёт метрик переводов.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.metrics = r
	return s
}

// Create выполняет перевод. Если клиент передал ключ, по которому перевод уже существует,
// возвращается сохранённый перевод с признаком replay и повторного списания не происходит.
func (s *Service) Create(ctx context.Context, req models.DummyTransfer, idemKey string) (*models.Transfer, bool, error) {
	const op = "services.transfer.Create"

	if req.FromUserID == req.ToUserID {
		return nil, false, fmt.Errorf("%s: %w", op, models.ErrSelfTransfer)
	}
	if req.Amount < 1 {
		return nil, false, fmt.Errorf("%s: %w", op, models.ErrInvalidAmount)
	}

	idemKey = strings.TrimSpace(idemKey)
	if idemKey != "" {
		existing, err := s.repo.GetTransfer(ctx, idemKey)
		switch {
		case err == nil:
			s.metrics.TransferFinished(ResultReplayed)
			return existing, true, nil
		case !errors.Is(err, models.ErrTransferNotFound):
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		idemKey = s.newKey()
	}

	t, err := s.repo.CreateTransfer(ctx, models.Transfer{
		IdemKey:    idemKey,
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount,
		Status:     models.TransferPending,
		Note:       req.Note,
		CreatedAt:  s.now(),
	})
	if errors.Is(err, models.ErrIdempotencyConflict) {
		// Параллельный запрос с тем же ключом успел создать перевод.
		existing, getErr := s.repo.GetTransfer(ctx, idemKey)
		if getErr != nil {
			return nil, false, fmt.Errorf("%s: %w", op, getErr)
		}
		s.metrics.TransferFinished(ResultReplayed)
		return existing, true, nil
	}
	if err != nil {
		s.metrics.TransferFinished(ResultFailed)
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("transfer completed",
		slog.String("idem_key", t.IdemKey),
		slog.Int64("from", t.FromUserID),
		slog.Int64("to", t.ToUserID),
		slog.Int("amount", t.Amount),
	)
	s.metrics.TransferFinished(ResultCompleted)
	if err := s.publisher.Publish(ctx, events.TransferCompleted, t); err != nil {
		s.log.Warn("failed to publish event", slog.String("type", events.TransferCompleted), slog.Any("err", err))
	}
	return t, false, nil
}

// Get возвращает перевод по ключу идемпотентности.
func (s *Service) Get(ctx context.Context, idemKey string) (*models.Transfer, error) {
	const op = "services.transfer.Get"

	t, err := s.repo.GetTransfer(ctx, idemKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// List возвращает страницу переводов, где пользователь отправитель или получатель.
// Нулевой pageSize заменяется значением по умолчанию.
func (s *Service) List(ctx context.Context, userID int64, page, pageSize int) (*models.TransferPage, error) {
	const op = "services.transfer.List"

	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 || pageSize < 1 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidPage)
	}

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	data, total, err := s.repo.ListTransfers(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.TransferPage{
		Data:     data,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}
