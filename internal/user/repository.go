package user

import (
	"context"
	"database/sql"

	"chat/infrastructure"
	"chat/internal/feed"
	"chat/internal/models"
	"chat/internal/user/storage"
)

// Mutation edits a user in place. Returning an error aborts the update.
type Mutation func(u *models.User) error

type Repository interface {
	CreateIfMissing(ctx context.Context, user *models.User) (bool, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListAll(ctx context.Context) ([]*models.User, error)
	OnlineUserIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, id string, mutate Mutation) (*models.User, error)
}

type repository struct {
	*sql.DB
	userSaver    storage.Saver
	userProvider storage.Provider
	userUpdater  storage.Updater
}

func NewRepository(
	db *sql.DB,
	userSaver storage.Saver,
	userProvider storage.Provider,
	userUpdater storage.Updater,
) Repository {
	return &repository{
		DB:           db,
		userSaver:    userSaver,
		userProvider: userProvider,
		userUpdater:  userUpdater,
	}
}

func (r *repository) CreateIfMissing(ctx context.Context, user *models.User) (created bool, err error) {
	if err := models.ValidateUser(user); err != nil {
		return false, err
	}
	err = infrastructure.WithTransaction(r.DB, ctx, func(tx *sql.Tx) error {
		created, err = r.userSaver.SaveUserIfMissing(ctx, tx, user)
		if err != nil || !created {
			return err
		}
		return feed.Notify(ctx, tx, feed.Event{Kind: feed.KindUser, Key: user.ID})
	})
	return created, infrastructure.Unavailable("create user", err)
}

func (r *repository) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := r.userProvider.UserByID(ctx, id)
	return u, infrastructure.Unavailable("get user", err)
}

func (r *repository) ListAll(ctx context.Context) ([]*models.User, error) {
	users, err := r.userProvider.Users(ctx)
	return users, infrastructure.Unavailable("list users", err)
}

func (r *repository) OnlineUserIDs(ctx context.Context) ([]string, error) {
	ids, err := r.userProvider.OnlineUserIDs(ctx)
	return ids, infrastructure.Unavailable("list online users", err)
}

func (r *repository) Update(ctx context.Context, id string, mutate Mutation) (updated *models.User, err error) {
	err = infrastructure.WithTransaction(r.DB, ctx, func(tx *sql.Tx) error {
		u, err := r.userUpdater.LockUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := mutate(u); err != nil {
			return err
		}
		if err := r.userUpdater.UpdateUser(ctx, tx, u); err != nil {
			return err
		}
		updated = u
		return feed.Notify(ctx, tx, feed.Event{Kind: feed.KindUser, Key: id})
	})
	if err != nil {
		return nil, infrastructure.Unavailable("update user", err)
	}
	return updated, nil
}
