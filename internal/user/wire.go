package user

import (
	"database/sql"

	"github.com/google/wire"

	"chat/internal/avatar"
	"chat/internal/user/storage"
)

func ProvideJsonHandler(userUseCase *AccountUseCase) *JSONHandler {
	return NewJSONHandler(userUseCase)
}

func ProvideAccountUseCase(userRepo Repository, compressor *avatar.Compressor) *AccountUseCase {
	return NewUserAccountUseCase(userRepo, compressor)
}

func ProvideRepository(
	db *sql.DB,
	storage *storage.PostgresStorage,
) Repository {
	return NewRepository(db, storage, storage, storage)
}

// ProvideUserStorage is a Wire provider function that creates a user.PostgresStorage
func ProvideUserStorage(db *sql.DB) *storage.PostgresStorage {
	return storage.NewUserPostgresStorage(db)
}

// Set provides the use case and handler; the Repository comes from PostgresSet
// or from the in-memory backend.
var Set = wire.NewSet(avatar.NewCompressor, ProvideAccountUseCase, ProvideJsonHandler)

var PostgresSet = wire.NewSet(ProvideUserStorage, ProvideRepository)
