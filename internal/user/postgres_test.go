//go:build container

package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat/infrastructure"
	"chat/internal/models"
	"chat/internal/testhelpers"
	"chat/internal/user"
	"chat/internal/user/storage"
)

func TestPostgresUserRepository(t *testing.T) {
	pg := testhelpers.StartPostgres(t)
	ctx := context.Background()
	s := storage.NewUserPostgresStorage(pg.DB)
	repo := user.NewRepository(pg.DB, s, s, s)

	alice := &models.User{ID: "u1", Email: "alice@example.com", Username: "alice", DisplayName: "Alice", Status: models.StatusOnline}
	created, err := repo.CreateIfMissing(ctx, alice)
	require.NoError(t, err)
	assert.True(t, created)

	again := *alice
	again.DisplayName = "Someone Else"
	created, err = repo.CreateIfMissing(ctx, &again)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = repo.CreateIfMissing(ctx, &models.User{ID: "u2", Email: "b@example.com", Username: "b", DisplayName: "B", Status: models.StatusOnline})
	assert.ErrorIs(t, err, infrastructure.ErrValidation)

	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	updated, err := repo.Update(ctx, "u1", func(u *models.User) error {
		u.Status = models.StatusOffline
		u.LastSeen = 42
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, updated.Status)

	online, err := repo.OnlineUserIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, online)

	_, err = repo.GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, infrastructure.ErrUserNotFound)
	_, err = repo.Update(ctx, "nobody", func(*models.User) error { return nil })
	assert.ErrorIs(t, err, infrastructure.ErrNotFound)
}
