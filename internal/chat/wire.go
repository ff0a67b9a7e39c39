package chat

import (
	"database/sql"

	"github.com/google/wire"

	"chat/internal/chat/storage"
	"chat/internal/user"
)

func ProvideChatStorage(db *sql.DB) *storage.PostgresStorage {
	return storage.NewChatPostgresStorage(db)
}

func ProvideRepository(db *sql.DB, s *storage.PostgresStorage) Repository {
	return NewRepository(db, s)
}

func ProvideConversationUseCase(repo Repository, users user.Repository) *ConversationUseCase {
	return NewConversationUseCase(repo, users)
}

func ProvideJSONHandler(useCase *ConversationUseCase) *JSONHandler {
	return NewJSONHandler(useCase)
}

var Set = wire.NewSet(ProvideConversationUseCase, ProvideJSONHandler)

var PostgresSet = wire.NewSet(ProvideChatStorage, ProvideRepository)
