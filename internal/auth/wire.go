package auth

import (
	"database/sql"

	"github.com/google/wire"

	"chat/config"
	"chat/infrastructure/connection"
	"chat/internal/auth/accounts"
	"chat/internal/email"
	"chat/internal/user"
	"chat/internal/user/storage"
)

// ProvideAccountStorage is a Wire provider function that creates an accounts.PostgresStorage
func ProvideAccountStorage(db *sql.DB) *accounts.PostgresStorage {
	return accounts.NewAccountPostgresStorage(db)
}

func ProvideRepository(db *sql.DB, accountStorage *accounts.PostgresStorage, userStorage *storage.PostgresStorage) Repository {
	return NewRepository(db, accountStorage, accountStorage, userStorage)
}

func ProvideTokens(cfg *config.Config) *connection.Tokens {
	return connection.NewTokens(cfg.JWTSecret)
}

func ProvideIdentities(cfg *config.Config) Identities {
	return NewOAuthProviders(cfg)
}

func ProvideUseCase(
	cfg *config.Config,
	repo Repository,
	users user.Repository,
	accountUseCase *user.AccountUseCase,
	tokens *connection.Tokens,
	identities Identities,
	states StateStore,
	sender *email.Sender,
) *UseCase {
	return NewUseCase(repo, users, accountUseCase, tokens, identities, states, sender, cfg.StrongPasswords)
}

func ProvideJSONHandler(useCase *UseCase) *JSONHandler {
	return NewJSONAuthHandler(useCase)
}

var Set = wire.NewSet(ProvideTokens, ProvideIdentities, ProvideUseCase, ProvideJSONHandler)

var PostgresSet = wire.NewSet(ProvideAccountStorage, ProvideRepository)
