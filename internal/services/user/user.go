// Package user содержит бизнес-логику управления участниками программы лояльности:
// создание, обновление со слиянием полей, удаление, начисление и списание баллов
// и смену уровня участия.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/user-points/internal/events"
	"github.com/magabrotheeeer/user-points/internal/models"
)

// Repository определяет методы хранилища пользователей.
type Repository interface {
	// CreateUser сохраняет пользователя и записи журнала, назначая ID.
	CreateUser(ctx context.Context, u models.User, entries ...models.LedgerEntry) (*models.User, error)
	// GetUser возвращает пользователя или models.ErrNotFound.
	GetUser(ctx context.Context, id int64) (*models.User, error)
	// ExistsByEmail проверяет, занят ли email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// UpdateUser перезаписывает пользователя и добавляет записи журнала.
	UpdateUser(ctx context.Context, u models.User, entries ...models.LedgerEntry) (*models.User, error)
	// DeleteUser удаляет пользователя или возвращает models.ErrNotFound.
	DeleteUser(ctx context.Context, id int64) error
	// ListUsers возвращает всех пользователей в порядке создания.
	ListUsers(ctx context.Context) ([]*models.User, error)
	// ListLedger возвращает журнал баллов пользователя, новые записи первыми.
	ListLedger(ctx context.Context, userID int64) ([]*models.LedgerEntry, error)
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Recorder учитывает доменные метрики.
type Recorder interface {
	UserCreated()
	PointsEarned(amount int)
	PointsRedeemed(amount int)
}

type nopRecorder struct{}

func (nopRecorder) UserCreated()       {}
func (nopRecorder) PointsEarned(int)   {}
func (nopRecorder) PointsRedeemed(int) {}

// PointsChanged полезная нагрузка события user.points.changed.
type PointsChanged struct {
	UserID    int64            `json:"userId"`
	Change    int              `json:"change"`
	Balance   int              `json:"balance"`
	EventType models.EventType `json:"eventType"`
}

// MembershipChanged полезная нагрузка события user.membership.changed.
type MembershipChanged struct {
	UserID int64                  `json:"userId"`
	From   models.MembershipLevel `json:"from"`
	To     models.MembershipLevel `json:"to"`
}

// Deleted полезная нагрузка события user.deleted.
type Deleted struct {
	UserID int64 `json:"userId"`
}

// Service реализует операции над пользователями.
type Service struct {
	repo      Repository
	publisher EventPublisher
	metrics   Recorder
	log       *slog.Logger
	now       func() time.Time
}

// NewService создает сервис пользователей.
func NewService(repo Repository, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		metrics:   nopRecorder{},
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithRecorder подключает учёт доменных метрик.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.metrics = r
	return s
}

// CreateUser проверяет уникальность email, проставляет значения по умолчанию и сохраняет пользователя.
// Ненулевой начальный баланс фиксируется в журнале записью earn.
func (s *Service) CreateUser(ctx context.Context, candidate models.DummyUser) (*models.User, error) {
	const op = "services.user.CreateUser"

	if candidate.MembershipLevel != nil && !candidate.MembershipLevel.Valid() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidMembershipLevel)
	}
	if candidate.Points != nil && !validBalance(*candidate.Points) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidPoints)
	}

	exists, err := s.repo.ExistsByEmail(ctx, candidate.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return nil, fmt.Errorf("%s: %w", op, models.ErrDuplicateEmail)
	}

	now := s.now()
	u := models.User{
		FirstName:       candidate.FirstName,
		LastName:        candidate.LastName,
		Phone:           candidate.Phone,
		Email:           candidate.Email,
		MemberSince:     now,
		MembershipLevel: models.MembershipBronze,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if candidate.MemberSince != nil {
		u.MemberSince = *candidate.MemberSince
	}
	if candidate.MembershipLevel != nil {
		u.MembershipLevel = *candidate.MembershipLevel
	}
	if candidate.Points != nil {
		u.Points = *candidate.Points
	}

	var entries []models.LedgerEntry
	if u.Points > 0 {
		entries = append(entries, models.LedgerEntry{
			Change:       u.Points,
			BalanceAfter: u.Points,
			EventType:    models.EventEarn,
			CreatedAt:    now,
		})
	}

	created, err := s.repo.CreateUser(ctx, u, entries...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user created", slog.Int64("id", created.ID))
	s.metrics.UserCreated()
	if created.Points > 0 {
		s.metrics.PointsEarned(created.Points)
	}
	s.publish(ctx, events.UserCreated, created)
	return created, nil
}

// GetAllUsers возвращает всех пользователей в порядке создания.
func (s *Service) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	const op = "services.user.GetAllUsers"

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// GetUserByID возвращает пользователя и признак его наличия. Отсутствие пользователя не ошибка.
func (s *Service) GetUserByID(ctx context.Context, id int64) (*models.User, bool, error) {
	const op = "services.user.GetUserByID"

	u, err := s.repo.GetUser(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return u, true, nil
}

// GetUserView возвращает упрощённое представление пользователя.
func (s *Service) GetUserView(ctx context.Context, id int64) (*models.UserView, error) {
	const op = "services.user.GetUserView"

	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	view := u.View()
	return &view, nil
}

// UpdateUser сливает patch с сохранённым пользователем. Имя, фамилия, телефон и email
// перезаписываются всегда, уровень, баллы и дата вступления только если переданы.
func (s *Service) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	const op = "services.user.UpdateUser"

	if patch.MembershipLevel != nil && !patch.MembershipLevel.Valid() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidMembershipLevel)
	}
	if patch.Points != nil && !validBalance(*patch.Points) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidPoints)
	}

	existing, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if patch.Email != existing.Email {
		taken, err := s.repo.ExistsByEmail(ctx, patch.Email)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if taken {
			return nil, fmt.Errorf("%s: %w", op, models.ErrDuplicateEmail)
		}
	}

	now := s.now()
	u := *existing
	u.FirstName = patch.FirstName
	u.LastName = patch.LastName
	u.Phone = patch.Phone
	u.Email = patch.Email
	if patch.MembershipLevel != nil {
		u.MembershipLevel = *patch.MembershipLevel
	}
	if patch.Points != nil {
		u.Points = *patch.Points
	}
	if patch.MemberSince != nil {
		u.MemberSince = *patch.MemberSince
	}
	u.UpdatedAt = now

	var entries []models.LedgerEntry
	if delta := u.Points - existing.Points; delta != 0 {
		entries = append(entries, models.LedgerEntry{
			Change:       delta,
			BalanceAfter: u.Points,
			EventType:    models.EventAdjust,
			CreatedAt:    now,
		})
	}

	updated, err := s.repo.UpdateUser(ctx, u, entries...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, events.UserUpdated, updated)
	if len(entries) > 0 {
		s.publish(ctx, events.UserPointsChanged, PointsChanged{
			UserID: updated.ID, Change: entries[0].Change, Balance: updated.Points, EventType: models.EventAdjust,
		})
	}
	return updated, nil
}

// DeleteUser удаляет пользователя безвозвратно.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	const op = "services.user.DeleteUser"

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user deleted", slog.Int64("id", id))
	s.publish(ctx, events.UserDeleted, Deleted{UserID: id})
	return nil
}

// AddPoints начисляет баллы. Пустая или неположительная сумма ничего не меняет
// и возвращает пользователя как есть. Если баланс превысил бы models.MaxPoints,
// возвращается models.ErrInvalidPoints.
func (s *Service) AddPoints(ctx context.Context, id int64, amount *int) (*models.User, error) {
	const op = "services.user.AddPoints"

	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if amount == nil || *amount <= 0 {
		return u, nil
	}
	if *amount > models.MaxPoints-u.Points {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidPoints)
	}

	now := s.now()
	u.Points += *amount
	u.UpdatedAt = now

	updated, err := s.repo.UpdateUser(ctx, *u, models.LedgerEntry{
		Change:       *amount,
		BalanceAfter: u.Points,
		EventType:    models.EventEarn,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.PointsEarned(*amount)
	s.publish(ctx, events.UserPointsChanged, PointsChanged{
		UserID: updated.ID, Change: *amount, Balance: updated.Points, EventType: models.EventEarn,
	})
	return updated, nil
}

// DeductPoints списывает баллы. Пустая, неположительная или превышающая баланс сумма
// отклоняется ошибкой *models.InsufficientPointsError с текущим балансом.
func (s *Service) DeductPoints(ctx context.Context, id int64, amount *int) (*models.User, error) {
	const op = "services.user.DeductPoints"

	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if amount == nil || *amount <= 0 || *amount > u.Points {
		return nil, fmt.Errorf("%s: %w", op, &models.InsufficientPointsError{Balance: u.Points})
	}

	now := s.now()
	u.Points -= *amount
	u.UpdatedAt = now

	updated, err := s.repo.UpdateUser(ctx, *u, models.LedgerEntry{
		Change:       -*amount,
		BalanceAfter: u.Points,
		EventType:    models.EventRedeem,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.PointsRedeemed(*amount)
	s.publish(ctx, events.UserPointsChanged, PointsChanged{
		UserID: updated.ID, Change: -*amount, Balance: updated.Points, EventType: models.EventRedeem,
	})
	return updated, nil
}

// UpgradeMembership устанавливает уровень участия. Понижение уровня разрешено.
func (s *Service) UpgradeMembership(ctx context.Context, id int64, level string) (*models.User, error) {
	const op = "services.user.UpgradeMembership"

	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	newLevel, err := models.ParseMembershipLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	previous := u.MembershipLevel
	u.MembershipLevel = newLevel
	u.UpdatedAt = s.now()

	updated, err := s.repo.UpdateUser(ctx, *u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, events.UserMembershipChanged, MembershipChanged{
		UserID: updated.ID, From: previous, To: updated.MembershipLevel,
	})
	return updated, nil
}

// GetLedger возвращает журнал баллов существующего пользователя.
func (s *Service) GetLedger(ctx context.Context, id int64) ([]*models.LedgerEntry, error) {
	const op = "services.user.GetLedger"

	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	entries, err := s.repo.ListLedger(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

func validBalance(points int) bool {
	return points >= 0 && points <= models.MaxPoints
}

func (s *Service) publish(ctx context.Context, eventType string, payload any) {
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.log.Warn("failed to publish event", slog.String("type", eventType), slog.Any("err", err))
	}
}
