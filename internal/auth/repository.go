package auth

import (
	"context"
	"database/sql"

	"chat/infrastructure"
	"chat/internal/auth/accounts"
	"chat/internal/feed"
	"chat/internal/models"
	"chat/internal/user/storage"
)

type Repository interface {
	// CreateAccount stores the account and its user record together.
	CreateAccount(ctx context.Context, account *accounts.Account, user *models.User) error
	AccountByIdentity(ctx context.Context, provider, subject string) (*accounts.Account, error)
	// EnsureAccount returns the account for account's identity, storing
	// account first when the identity is new.
	EnsureAccount(ctx context.Context, account *accounts.Account) (*accounts.Account, error)
}

type repository struct {
	*sql.DB
	accountSaver    accounts.Saver
	accountProvider accounts.Provider
	userSaver       storage.Saver
}

func NewRepository(
	db *sql.DB,
	accountSaver accounts.Saver,
	accountProvider accounts.Provider,
	userSaver storage.Saver,
) Repository {
	return &repository{
		DB:              db,
		accountSaver:    accountSaver,
		accountProvider: accountProvider,
		userSaver:       userSaver,
	}
}

func (r *repository) CreateAccount(ctx context.Context, account *accounts.Account, user *models.User) error {
	err := infrastructure.WithTransaction(r.DB, ctx, func(tx *sql.Tx) error {
		if err := r.accountSaver.SaveAccount(ctx, tx, account); err != nil {
			return err
		}
		if err := r.userSaver.SaveUser(ctx, tx, user); err != nil {
			return err
		}
		return feed.Notify(ctx, tx, feed.Event{Kind: feed.KindUser, Key: user.ID})
	})
	return infrastructure.Unavailable("create account", err)
}

func (r *repository) AccountByIdentity(ctx context.Context, provider, subject string) (*accounts.Account, error) {
	a, err := r.accountProvider.AccountByIdentity(ctx, provider, subject)
	return a, infrastructure.Unavailable("get account", err)
}

func (r *repository) EnsureAccount(ctx context.Context, account *accounts.Account) (stored *accounts.Account, err error) {
	err = infrastructure.WithTransaction(r.DB, ctx, func(tx *sql.Tx) error {
		stored, err = r.accountSaver.SaveAccountIfMissing(ctx, tx, account)
		return err
	})
	return stored, infrastructure.Unavailable("ensure account", err)
}
