package user

import (
	"context"
	"math"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/user-points/internal/config"
	"github.com/magabrotheeeer/user-points/internal/events"
	"github.com/magabrotheeeer/user-points/internal/models"
	"github.com/magabrotheeeer/user-points/internal/storage/redisstore"
)

func levelPtr(l models.MembershipLevel) *models.MembershipLevel { return &l }

func TestService_CreateUser_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		candidate models.DummyUser
		wantErr   error
	}{
		{
			name:      "отрицательные баллы",
			candidate: models.DummyUser{FirstName: "A", LastName: "B", Email: "a@b.com", Points: intPtr(-7)},
			wantErr:   models.ErrInvalidPoints,
		},
		{
			name:      "баллы больше предела",
			candidate: models.DummyUser{FirstName: "A", LastName: "B", Email: "a@b.com", Points: intPtr(models.MaxPoints + 1)},
			wantErr:   models.ErrInvalidPoints,
		},
		{
			name:      "неизвестный уровень",
			candidate: models.DummyUser{FirstName: "A", LastName: "B", Email: "a@b.com", MembershipLevel: levelPtr("DIAMOND")},
			wantErr:   models.ErrInvalidMembershipLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, p := new(RepoMock), new(PublisherMock)

			_, err := newTestService(r, p).CreateUser(context.Background(), tt.candidate)
			require.ErrorIs(t, err, tt.wantErr)
			r.AssertNotCalled(t, "ExistsByEmail", mock.Anything, mock.Anything)
			r.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_UpdateUser_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		patch   models.UserPatch
		wantErr error
	}{
		{
			name:    "отрицательные баллы",
			patch:   models.UserPatch{FirstName: "A", LastName: "B", Email: "ivan@example.com", Points: intPtr(-50)},
			wantErr: models.ErrInvalidPoints,
		},
		{
			name:    "неизвестный уровень",
			patch:   models.UserPatch{FirstName: "A", LastName: "B", Email: "ivan@example.com", MembershipLevel: levelPtr("DIAMOND")},
			wantErr: models.ErrInvalidMembershipLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, p := new(RepoMock), new(PublisherMock)

			_, err := newTestService(r, p).UpdateUser(context.Background(), 7, tt.patch)
			require.ErrorIs(t, err, tt.wantErr)
			r.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_AddPoints_BalanceLimit(t *testing.T) {
	t.Run("переполнение отклоняется", func(t *testing.T) {
		r, p := new(RepoMock), new(PublisherMock)
		r.On("GetUser", mock.Anything, int64(7)).Return(storedUser(10, models.MembershipBronze), nil).Once()

		_, err := newTestService(r, p).AddPoints(context.Background(), 7, intPtr(math.MaxInt))
		require.ErrorIs(t, err, models.ErrInvalidPoints)
		r.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
		p.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ровно до предела", func(t *testing.T) {
		r, p := new(RepoMock), new(PublisherMock)
		r.On("GetUser", mock.Anything, int64(7)).Return(storedUser(10, models.MembershipBronze), nil).Once()
		echoUpdate(r)
		p.On("Publish", mock.Anything, events.UserPointsChanged, mock.Anything).Return(nil).Once()

		got, err := newTestService(r, p).AddPoints(context.Background(), 7, intPtr(models.MaxPoints-10))
		require.NoError(t, err)
		assert.Equal(t, models.MaxPoints, got.Points)
	})
}

// Сервис поверх Redis: хранилище не проверяет баланс, поэтому границы держит сервис.
func TestService_BalanceStaysInRange_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := redisstore.New(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	s := NewService(store, events.NewLogPublisher(newNoopLogger()), newNoopLogger())
	ctx := context.Background()

	u, err := s.CreateUser(ctx, models.DummyUser{FirstName: "A", LastName: "B", Email: "a@b.com", Points: intPtr(10)})
	require.NoError(t, err)

	_, err = s.AddPoints(ctx, u.ID, intPtr(math.MaxInt))
	require.ErrorIs(t, err, models.ErrInvalidPoints)

	_, err = s.UpdateUser(ctx, u.ID, models.UserPatch{FirstName: "A", LastName: "B", Email: "a@b.com", Points: intPtr(-50)})
	require.ErrorIs(t, err, models.ErrInvalidPoints)

	_, err = s.UpdateUser(ctx, u.ID, models.UserPatch{FirstName: "A", LastName: "B", Email: "a@b.com", MembershipLevel: levelPtr("DIAMOND")})
	require.ErrorIs(t, err, models.ErrInvalidMembershipLevel)

	_, err = s.CreateUser(ctx, models.DummyUser{FirstName: "C", LastName: "D", Email: "c@d.com", Points: intPtr(-7)})
	require.ErrorIs(t, err, models.ErrInvalidPoints)

	stored, found, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10, stored.Points)
	assert.Equal(t, models.MembershipBronze, stored.MembershipLevel)

	all, err := s.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
