package postgresql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/user-points/internal/models"
)

func TestUsers(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("создание и чтение", func(t *testing.T) {
		candidate := testUser(0)
		phone := "+79990001122"
		candidate.Phone = &phone

		created, err := storage.CreateUser(ctx, candidate)
		require.NoError(t, err)
		assert.Positive(t, created.ID)
		assert.Equal(t, candidate.Email, created.Email)
		require.NotNil(t, created.Phone)
		assert.Equal(t, phone, *created.Phone)

		got, err := storage.GetUser(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Email, got.Email)
		assert.Equal(t, models.MembershipBronze, got.MembershipLevel)
		assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))
	})

	t.Run("дубликат email", func(t *testing.T) {
		candidate := testUser(0)
		_, err := storage.CreateUser(ctx, candidate)
		require.NoError(t, err)

		_, err = storage.CreateUser(ctx, candidate)
		require.ErrorIs(t, err, models.ErrDuplicateEmail)

		exists, err := storage.ExistsByEmail(ctx, candidate.Email)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = storage.ExistsByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("несуществующий пользователь", func(t *testing.T) {
		_, err := storage.GetUser(ctx, 999999)
		require.ErrorIs(t, err, models.ErrNotFound)

		err = storage.DeleteUser(ctx, 999999)
		require.ErrorIs(t, err, models.ErrNotFound)

		u := testUser(0)
		u.ID = 999999
		_, err = storage.UpdateUser(ctx, u)
		require.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("обновление с записью журнала", func(t *testing.T) {
		u := createTestUser(t, storage, 10)
		u.Points = 40
		u.MembershipLevel = models.MembershipGold
		u.UpdatedAt = u.UpdatedAt.Add(time.Minute)

		updated, err := storage.UpdateUser(ctx, *u, models.LedgerEntry{
			Change: 30, BalanceAfter: 40, EventType: models.EventAdjust, CreatedAt: u.UpdatedAt,
		})
		require.NoError(t, err)
		assert.Equal(t, 40, updated.Points)
		assert.Equal(t, models.MembershipGold, updated.MembershipLevel)
		assert.True(t, updated.CreatedAt.Before(updated.UpdatedAt))

		ledger, err := storage.ListLedger(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, ledger, 1)
		assert.Equal(t, u.ID, ledger[0].UserID)
		assert.Equal(t, models.EventAdjust, ledger[0].EventType)
		assert.Equal(t, 40, ledger[0].BalanceAfter)
	})

	t.Run("обновление на занятый email", func(t *testing.T) {
		first := createTestUser(t, storage, 0)
		second := createTestUser(t, storage, 0)

		second.Email = first.Email
		_, err := storage.UpdateUser(ctx, *second)
		require.ErrorIs(t, err, models.ErrDuplicateEmail)
	})

	t.Run("удаление и порядок списка", func(t *testing.T) {
		a := createTestUser(t, storage, 0)
		b := createTestUser(t, storage, 0)

		require.NoError(t, storage.DeleteUser(ctx, a.ID))
		_, err := storage.GetUser(ctx, a.ID)
		require.ErrorIs(t, err, models.ErrNotFound)

		users, err := storage.ListUsers(ctx)
		require.NoError(t, err)
		for i := 1; i < len(users); i++ {
			assert.Less(t, users[i-1].ID, users[i].ID)
		}
		assert.Equal(t, b.ID, users[len(users)-1].ID)

		c := createTestUser(t, storage, 0)
		assert.Greater(t, c.ID, b.ID, "ids are not reused")
	})

	t.Run("начальный баланс пишет журнал", func(t *testing.T) {
		candidate := testUser(100)
		created, err := storage.CreateUser(ctx, candidate, models.LedgerEntry{
			Change: 100, BalanceAfter: 100, EventType: models.EventEarn, CreatedAt: candidate.CreatedAt,
		})
		require.NoError(t, err)

		ledger, err := storage.ListLedger(ctx, created.ID)
		require.NoError(t, err)
		require.Len(t, ledger, 1)
		assert.Equal(t, models.EventEarn, ledger[0].EventType)
		assert.Equal(t, created.ID, ledger[0].UserID)
	})

	t.Run("отменённый контекст", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := storage.ListUsers(cancelled)
		require.ErrorIs(t, err, context.Canceled)

		_, err = storage.ExistsByEmail(cancelled, "any@example.com")
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "storage.postgresql.ExistsByEmail: context canceled", err.Error())

		_, err = storage.ListLedger(cancelled, 1)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "storage.postgresql.ListLedger: context canceled", err.Error())
	})
}

func TestTransfers(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	newTransfer := func(from, to int64, amount int) models.Transfer {
		return models.Transfer{
			IdemKey:    uuid.NewString(),
			FromUserID: from,
			ToUserID:   to,
			Amount:     amount,
			CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		}
	}

	t.Run("успешный перевод", func(t *testing.T) {
		from := createTestUser(t, storage, 100)
		to := createTestUser(t, storage, 5)
		note := "thanks"
		req := newTransfer(from.ID, to.ID, 30)
		req.Note = &note

		got, err := storage.CreateTransfer(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, models.TransferCompleted, got.Status)
		assert.NotNil(t, got.CompletedAt)
		assert.Equal(t, req.IdemKey, got.IdemKey)
		require.NotNil(t, got.Note)
		assert.Equal(t, note, *got.Note)

		assert.Equal(t, 70, pointsOf(t, storage, from.ID))
		assert.Equal(t, 35, pointsOf(t, storage, to.ID))

		fromLedger, err := storage.ListLedger(ctx, from.ID)
		require.NoError(t, err)
		require.Len(t, fromLedger, 1)
		assert.Equal(t, models.EventTransferOut, fromLedger[0].EventType)
		assert.Equal(t, -30, fromLedger[0].Change)
		assert.Equal(t, 70, fromLedger[0].BalanceAfter)
		require.NotNil(t, fromLedger[0].TransferID)
		assert.Equal(t, got.TransferID, *fromLedger[0].TransferID)

		toLedger, err := storage.ListLedger(ctx, to.ID)
		require.NoError(t, err)
		require.Len(t, toLedger, 1)
		assert.Equal(t, models.EventTransferIn, toLedger[0].EventType)
		assert.Equal(t, 35, toLedger[0].BalanceAfter)

		stored, err := storage.GetTransfer(ctx, req.IdemKey)
		require.NoError(t, err)
		assert.Equal(t, got.TransferID, stored.TransferID)
	})

	t.Run("недостаточно баллов", func(t *testing.T) {
		from := createTestUser(t, storage, 10)
		to := createTestUser(t, storage, 0)

		_, err := storage.CreateTransfer(ctx, newTransfer(from.ID, to.ID, 11))
		require.ErrorIs(t, err, models.ErrInsufficientPoints)
		var insufficient *models.InsufficientPointsError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, 10, insufficient.Balance)

		assert.Equal(t, 10, pointsOf(t, storage, from.ID))
		assert.Equal(t, 0, pointsOf(t, storage, to.ID))
	})

	t.Run("неположительная сумма", func(t *testing.T) {
		from := createTestUser(t, storage, 10)
		to := createTestUser(t, storage, 0)

		for _, amount := range []int{0, -5} {
			_, err := storage.CreateTransfer(ctx, newTransfer(from.ID, to.ID, amount))
			require.ErrorIs(t, err, models.ErrInvalidAmount)
		}
		assert.Equal(t, 10, pointsOf(t, storage, from.ID))
		assert.Equal(t, 0, pointsOf(t, storage, to.ID))
	})

	t.Run("баланс получателя превысил бы предел", func(t *testing.T) {
		from := createTestUser(t, storage, 10)
		to := createTestUser(t, storage, models.MaxPoints-5)

		_, err := storage.CreateTransfer(ctx, newTransfer(from.ID, to.ID, 6))
		require.ErrorIs(t, err, models.ErrInvalidPoints)
		assert.Equal(t, 10, pointsOf(t, storage, from.ID))
		assert.Equal(t, models.MaxPoints-5, pointsOf(t, storage, to.ID))
	})

	t.Run("получатель не найден", func(t *testing.T) {
		from := createTestUser(t, storage, 10)
		_, err := storage.CreateTransfer(ctx, newTransfer(from.ID, 999999, 1))
		require.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("повтор ключа", func(t *testing.T) {
		from := createTestUser(t, storage, 100)
		to := createTestUser(t, storage, 0)
		req := newTransfer(from.ID, to.ID, 10)

		_, err := storage.CreateTransfer(ctx, req)
		require.NoError(t, err)
		_, err = storage.CreateTransfer(ctx, req)
		require.ErrorIs(t, err, models.ErrIdempotencyConflict)
		assert.Equal(t, 90, pointsOf(t, storage, from.ID))
	})

	t.Run("перевод не найден", func(t *testing.T) {
		_, err := storage.GetTransfer(ctx, "missing")
		require.ErrorIs(t, err, models.ErrTransferNotFound)
	})

	t.Run("история с пагинацией", func(t *testing.T) {
		a := createTestUser(t, storage, 100)
		b := createTestUser(t, storage, 100)
		c := createTestUser(t, storage, 100)

		keys := make([]string, 0, 3)
		for _, req := range []models.Transfer{
			newTransfer(a.ID, b.ID, 1),
			newTransfer(b.ID, a.ID, 2),
			newTransfer(a.ID, c.ID, 3),
		} {
			got, err := storage.CreateTransfer(ctx, req)
			require.NoError(t, err)
			keys = append(keys, got.IdemKey)
		}

		page, total, err := storage.ListTransfers(ctx, a.ID, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, page, 2)
		assert.Equal(t, keys[2], page[0].IdemKey)
		assert.Equal(t, keys[1], page[1].IdemKey)

		page, total, err = storage.ListTransfers(ctx, a.ID, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, page, 1)
		assert.Equal(t, keys[0], page[0].IdemKey)

		page, total, err = storage.ListTransfers(ctx, c.ID, 20, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Len(t, page, 1)
	})

	t.Run("удаление пользователя сохраняет историю переводов", func(t *testing.T) {
		from := createTestUser(t, storage, 50)
		to := createTestUser(t, storage, 0)
		req := newTransfer(from.ID, to.ID, 5)
		_, err := storage.CreateTransfer(ctx, req)
		require.NoError(t, err)

		require.NoError(t, storage.DeleteUser(ctx, from.ID))

		_, err = storage.GetTransfer(ctx, req.IdemKey)
		require.NoError(t, err)
	})
}
