package user

import (
	"errors"
	"net/http"

	"chat/infrastructure"
	"chat/infrastructure/connection"
)

// maxUploadBytes bounds the raw upload before compression.
const maxUploadBytes = 10 << 20

type JSONHandler struct {
	userUseCase *AccountUseCase
}

func NewJSONHandler(userUseCase *AccountUseCase) *JSONHandler {
	return &JSONHandler{
		userUseCase: userUseCase,
	}
}

func (h *JSONHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userUseCase.ListUsers(r.Context())
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, users)
}

func (h *JSONHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := connection.UserIDFromContext(r.Context())

	user, err := h.userUseCase.GetUser(r.Context(), userID)
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, user)
}

func (h *JSONHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName *string `json:"displayName"`
		Username    *string `json:"username"`
	}
	if err := infrastructure.DecodeJSON(r, &req); err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}

	userID, _ := connection.UserIDFromContext(r.Context())
	user, err := h.userUseCase.UpdateProfile(r.Context(), userID, req.DisplayName, req.Username)
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, user)
}

func (h *JSONHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, _, err := r.FormFile("avatar")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			infrastructure.WriteError(w, r, infrastructure.Size("upload exceeds %d bytes", maxUploadBytes))
			return
		}
		infrastructure.WriteError(w, r, infrastructure.Validation("missing avatar file: %v", err))
		return
	}
	defer file.Close()

	userID, _ := connection.UserIDFromContext(r.Context())
	user, err := h.userUseCase.UploadAvatar(r.Context(), userID, file)
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, user)
}
