package postgresql

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/user-points/internal/migrations"
	"github.com/magabrotheeeer/user-points/internal/models"
)

var emailSeq atomic.Int64

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, connStr)
	require.NoError(t, err, "failed to create storage")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	_, err = migrations.Run(storage.DB, migrationsPath)
	require.NoError(t, err, "failed to apply migrations")

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}

// testUser возвращает пользователя с уникальным email.
func testUser(points int) models.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return models.User{
		FirstName:       "Ivan",
		LastName:        "Petrov",
		Email:           fmt.Sprintf("user%d@example.com", emailSeq.Add(1)),
		MemberSince:     now,
		MembershipLevel: models.MembershipBronze,
		Points:          points,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// createTestUser сохраняет пользователя и возвращает его с назначенным ID.
func createTestUser(t *testing.T, s *Storage, points int) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), testUser(points))
	require.NoError(t, err)
	return u
}

func pointsOf(t *testing.T, s *Storage, id int64) int {
	t.Helper()
	var points int
	require.NoError(t, s.DB.QueryRow(`SELECT points FROM users WHERE id = $1`, id).Scan(&points))
	return points
}
