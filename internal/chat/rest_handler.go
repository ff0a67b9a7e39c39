package chat

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"chat/infrastructure"
	"chat/infrastructure/connection"
)

type JSONHandler struct {
	useCase *ConversationUseCase
}

func NewJSONHandler(useCase *ConversationUseCase) *JSONHandler {
	return &JSONHandler{useCase: useCase}
}

func (h *JSONHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := connection.UserIDFromContext(r.Context())

	convs, err := h.useCase.Conversations(r.Context(), userID)
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, convs)
}

func (h *JSONHandler) OpenDirect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := infrastructure.DecodeJSON(r, &req); err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}

	userID, _ := connection.UserIDFromContext(r.Context())
	id, err := h.useCase.FindOrCreateDirect(r.Context(), userID, req.UserID)
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, map[string]string{"conversationId": id})
}

func (h *JSONHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := connection.UserIDFromContext(r.Context())

	msgs, err := h.useCase.Messages(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, msgs)
}

func (h *JSONHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := infrastructure.DecodeJSON(r, &req); err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}

	userID, _ := connection.UserIDFromContext(r.Context())
	msg, err := h.useCase.SendMessage(r.Context(), mux.Vars(r)["id"], userID, req.Text)
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusCreated, msg)
}

func (h *JSONHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, _ := connection.UserIDFromContext(r.Context())

	if err := h.useCase.MarkRead(r.Context(), vars["id"], vars["messageId"], userID); err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JSONHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.useCase.AddReaction)
}

func (h *JSONHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.useCase.RemoveReaction)
}

func (h *JSONHandler) react(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, conversationID, messageID, emoji, userID string) error) {
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := infrastructure.DecodeJSON(r, &req); err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}

	vars := mux.Vars(r)
	userID, _ := connection.UserIDFromContext(r.Context())
	if err := op(r.Context(), vars["id"], vars["messageId"], req.Emoji, userID); err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
