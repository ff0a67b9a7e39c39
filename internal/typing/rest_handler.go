package typing

import (
	"net/http"

	"github.com/gorilla/mux"

	"chat/infrastructure"
	"chat/infrastructure/connection"
)

// UsernameLookup finds the name shown next to the typing indicator.
type UsernameLookup func(r *http.Request, userID string) (string, error)

type JSONHandler struct {
	useCase  *UseCase
	username UsernameLookup
}

func NewJSONHandler(useCase *UseCase, username UsernameLookup) *JSONHandler {
	return &JSONHandler{useCase: useCase, username: username}
}

func (h *JSONHandler) Typing(w http.ResponseWriter, r *http.Request) {
	userID, _ := connection.UserIDFromContext(r.Context())

	name, err := h.username(r, userID)
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}

	if err := h.useCase.UpdateTyping(r.Context(), mux.Vars(r)["id"], userID, name); err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
