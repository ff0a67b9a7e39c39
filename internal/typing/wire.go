package typing

import (
	"database/sql"
	"net/http"

	"github.com/google/wire"

	"chat/internal/chat"
	"chat/internal/user"
)

func ProvideUseCase(repo Repository, conversations chat.Repository) *UseCase {
	return NewUseCase(repo, conversations)
}

func ProvideJSONHandler(useCase *UseCase, users user.Repository) *JSONHandler {
	return NewJSONHandler(useCase, func(r *http.Request, userID string) (string, error) {
		u, err := users.GetByID(r.Context(), userID)
		if err != nil {
			return "", err
		}
		return u.Username, nil
	})
}

func ProvideRepository(db *sql.DB) Repository {
	return NewTypingPostgresStorage(db)
}

var Set = wire.NewSet(ProvideUseCase, ProvideJSONHandler)

var PostgresSet = wire.NewSet(ProvideRepository)
