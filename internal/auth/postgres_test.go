//go:build container

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat/infrastructure"
	"chat/internal/auth"
	"chat/internal/auth/accounts"
	"chat/internal/models"
	"chat/internal/testhelpers"
	"chat/internal/user/storage"
)

func TestPostgresAccounts(t *testing.T) {
	pg := testhelpers.StartPostgres(t)
	ctx := context.Background()
	as := accounts.NewAccountPostgresStorage(pg.DB)
	repo := auth.NewRepository(pg.DB, as, as, storage.NewUserPostgresStorage(pg.DB))
	now := time.Now().UTC().Truncate(time.Millisecond)

	account := &accounts.Account{
		ID: "a1", Provider: accounts.ProviderPassword, Subject: "alice@example.com",
		Email: "alice@example.com", PasswordHash: []byte("hash"), CreatedAt: now,
	}
	u := &models.User{ID: "a1", Email: "alice@example.com", Username: "alice", DisplayName: "Alice", Status: models.StatusOnline}
	require.NoError(t, repo.CreateAccount(ctx, account, u))

	dup := *account
	dup.ID = "a2"
	dupUser := *u
	dupUser.ID = "a2"
	assert.ErrorIs(t, repo.CreateAccount(ctx, &dup, &dupUser), infrastructure.ErrUserAlreadyExists)

	got, err := repo.AccountByIdentity(ctx, accounts.ProviderPassword, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, []byte("hash"), got.PasswordHash)

	_, err = repo.AccountByIdentity(ctx, accounts.ProviderGoogle, "nobody")
	assert.ErrorIs(t, err, infrastructure.ErrAccountNotFound)

	oauth := &accounts.Account{ID: "g1", Provider: accounts.ProviderGoogle, Subject: "sub-1", Email: "g@example.com", CreatedAt: now}
	first, err := repo.EnsureAccount(ctx, oauth)
	require.NoError(t, err)
	retry := *oauth
	retry.ID = "g2"
	second, err := repo.EnsureAccount(ctx, &retry)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "g1", second.ID)
}
