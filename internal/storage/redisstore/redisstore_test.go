package redisstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/user-points/internal/config"
	"github.com/magabrotheeeer/user-points/internal/models"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
	}

	store, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func testUser(email string, points int) models.User {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return models.User{
		FirstName:       "Anna",
		LastName:        "Smirnova",
		Email:           email,
		MemberSince:     now,
		MembershipLevel: models.MembershipBronze,
		Points:          points,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestNew_Unreachable(t *testing.T) {
	_, err := New(context.Background(), config.RedisConnection{
		AddressRedis: "127.0.0.1:1",
		DialTimeout:  100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.redisstore.New")
}

func TestCreateAndGetUser(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	first, err := store.CreateUser(ctx, testUser("a@b.com", 0))
	require.NoError(t, err)
	second, err := store.CreateUser(ctx, testUser("c@d.com", 0))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	got, err := store.GetUser(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.Email)
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))

	owner, err := mr.Get("users:email:a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "1", owner)
	assert.True(t, mr.Exists("user:1"))
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, testUser("dup@x.com", 0))
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, testUser("dup@x.com", 0))
	require.ErrorIs(t, err, models.ErrDuplicateEmail)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestGetUser_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.GetUser(context.Background(), 42)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestExistsByEmail(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, testUser("a@b.com", 0))
	require.NoError(t, err)

	exists, err := store.ExistsByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.ExistsByEmail(ctx, "x@y.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateUser(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, testUser("old@x.com", 10))
	require.NoError(t, err)

	patched := *created
	patched.Email = "new@x.com"
	patched.Points = 25
	patched.UpdatedAt = created.UpdatedAt.Add(time.Hour)
	patched.CreatedAt = time.Time{}

	updated, err := store.UpdateUser(ctx, patched, models.LedgerEntry{
		Change: 15, BalanceAfter: 25, EventType: models.EventAdjust, CreatedAt: patched.UpdatedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.Points)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt), "created_at is preserved")

	assert.False(t, mr.Exists("users:email:old@x.com"))
	owner, err := mr.Get("users:email:new@x.com")
	require.NoError(t, err)
	assert.Equal(t, "1", owner)

	ledger, err := store.ListLedger(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, created.ID, ledger[0].UserID)
	assert.Equal(t, models.EventAdjust, ledger[0].EventType)
}

func TestUpdateUser_Errors(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	first, err := store.CreateUser(ctx, testUser("first@x.com", 0))
	require.NoError(t, err)
	second, err := store.CreateUser(ctx, testUser("second@x.com", 0))
	require.NoError(t, err)

	taken := *second
	taken.Email = first.Email
	_, err = store.UpdateUser(ctx, taken)
	require.ErrorIs(t, err, models.ErrDuplicateEmail)

	missing := testUser("ghost@x.com", 0)
	missing.ID = 99
	_, err = store.UpdateUser(ctx, missing)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, testUser("a@b.com", 5), models.LedgerEntry{
		Change: 5, BalanceAfter: 5, EventType: models.EventEarn,
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, created.ID))
	assert.False(t, mr.Exists("user:1"))
	assert.False(t, mr.Exists("users:email:a@b.com"))
	assert.False(t, mr.Exists("ledger:1"))

	err = store.DeleteUser(ctx, created.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	again, err := store.CreateUser(ctx, testUser("a@b.com", 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.ID, "ids are not reused")
}

func TestListUsers_Order(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.CreateUser(ctx, testUser(fmt.Sprintf("u%d@x.com", i), 0))
		require.NoError(t, err)
	}
	require.NoError(t, store.DeleteUser(ctx, 3))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 4)
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []int64{1, 2, 4, 5}, ids)
}

func TestListLedger_NewestFirst(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, testUser("a@b.com", 10), models.LedgerEntry{
		Change: 10, BalanceAfter: 10, EventType: models.EventEarn,
	})
	require.NoError(t, err)

	created.Points = 4
	_, err = store.UpdateUser(ctx, *created, models.LedgerEntry{
		Change: -6, BalanceAfter: 4, EventType: models.EventRedeem,
	})
	require.NoError(t, err)

	ledger, err := store.ListLedger(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, models.EventRedeem, ledger[0].EventType)
	assert.Equal(t, models.EventEarn, ledger[1].EventType)
	assert.Greater(t, ledger[0].ID, ledger[1].ID)
}

func newTransfer(from, to int64, amount int) models.Transfer {
	return models.Transfer{
		IdemKey:    uuid.NewString(),
		FromUserID: from,
		ToUserID:   to,
		Amount:     amount,
		CreatedAt:  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateTransfer(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	from, err := store.CreateUser(ctx, testUser("from@x.com", 100))
	require.NoError(t, err)
	to, err := store.CreateUser(ctx, testUser("to@x.com", 0))
	require.NoError(t, err)

	req := newTransfer(from.ID, to.ID, 40)
	got, err := store.CreateTransfer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.TransferCompleted, got.Status)
	assert.Equal(t, int64(1), got.TransferID)
	require.NotNil(t, got.CompletedAt)

	fromAfter, err := store.GetUser(ctx, from.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, fromAfter.Points)
	toAfter, err := store.GetUser(ctx, to.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, toAfter.Points)

	fromLedger, err := store.ListLedger(ctx, from.ID)
	require.NoError(t, err)
	require.Len(t, fromLedger, 1)
	assert.Equal(t, models.EventTransferOut, fromLedger[0].EventType)
	assert.Equal(t, 60, fromLedger[0].BalanceAfter)

	toLedger, err := store.ListLedger(ctx, to.ID)
	require.NoError(t, err)
	require.Len(t, toLedger, 1)
	assert.Equal(t, models.EventTransferIn, toLedger[0].EventType)
	assert.Equal(t, 40, toLedger[0].BalanceAfter)

	stored, err := store.GetTransfer(ctx, req.IdemKey)
	require.NoError(t, err)
	assert.Equal(t, got.TransferID, stored.TransferID)

	_, err = store.CreateTransfer(ctx, req)
	require.ErrorIs(t, err, models.ErrIdempotencyConflict)
	fromAfter, err = store.GetUser(ctx, from.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, fromAfter.Points, "no second debit")
}

func TestCreateTransfer_Errors(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	from, err := store.CreateUser(ctx, testUser("from@x.com", 10))
	require.NoError(t, err)
	to, err := store.CreateUser(ctx, testUser("to@x.com", 0))
	require.NoError(t, err)

	_, err = store.CreateTransfer(ctx, newTransfer(from.ID, to.ID, 11))
	require.ErrorIs(t, err, models.ErrInsufficientPoints)
	var insufficient *models.InsufficientPointsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 10, insufficient.Balance)

	_, err = store.CreateTransfer(ctx, newTransfer(from.ID, 99, 1))
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = store.CreateTransfer(ctx, newTransfer(99, to.ID, 1))
	require.ErrorIs(t, err, models.ErrNotFound)

	for _, amount := range []int{0, -5} {
		_, err = store.CreateTransfer(ctx, newTransfer(from.ID, to.ID, amount))
		require.ErrorIs(t, err, models.ErrInvalidAmount)
	}

	fromAfter, err := store.GetUser(ctx, from.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, fromAfter.Points)
	toAfter, err := store.GetUser(ctx, to.ID)
	require.NoError(t, err)
	assert.Zero(t, toAfter.Points)

	_, err = store.GetTransfer(ctx, "missing")
	require.ErrorIs(t, err, models.ErrTransferNotFound)
}

func TestCreateTransfer_ReceiverBalanceLimit(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	from, err := store.CreateUser(ctx, testUser("from@x.com", 10))
	require.NoError(t, err)
	to, err := store.CreateUser(ctx, testUser("to@x.com", models.MaxPoints-5))
	require.NoError(t, err)

	_, err = store.CreateTransfer(ctx, newTransfer(from.ID, to.ID, 6))
	require.ErrorIs(t, err, models.ErrInvalidPoints)

	fromAfter, err := store.GetUser(ctx, from.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, fromAfter.Points)

	_, err = store.CreateTransfer(ctx, newTransfer(from.ID, to.ID, 5))
	require.NoError(t, err)
	toAfter, err := store.GetUser(ctx, to.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MaxPoints, toAfter.Points)
}

func TestListTransfers(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	a, err := store.CreateUser(ctx, testUser("a@x.com", 100))
	require.NoError(t, err)
	b, err := store.CreateUser(ctx, testUser("b@x.com", 100))
	require.NoError(t, err)
	c, err := store.CreateUser(ctx, testUser("c@x.com", 100))
	require.NoError(t, err)

	var keys []string
	for _, req := range []models.Transfer{
		newTransfer(a.ID, b.ID, 1),
		newTransfer(b.ID, a.ID, 2),
		newTransfer(a.ID, c.ID, 3),
	} {
		got, err := store.CreateTransfer(ctx, req)
		require.NoError(t, err)
		keys = append(keys, got.IdemKey)
	}

	page, total, err := store.ListTransfers(ctx, a.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, keys[2], page[0].IdemKey)
	assert.Equal(t, keys[1], page[1].IdemKey)

	page, _, err = store.ListTransfers(ctx, a.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, keys[0], page[0].IdemKey)

	page, total, err = store.ListTransfers(ctx, c.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, page, 1)

	page, total, err = store.ListTransfers(ctx, 77, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, page)
}
