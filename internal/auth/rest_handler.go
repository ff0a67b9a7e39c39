package auth

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chat/infrastructure"
	"chat/infrastructure/connection"
	"chat/internal/models"
)

type JSONHandler struct {
	authUseCase *UseCase
}

func NewJSONAuthHandler(authUseCase *UseCase) *JSONHandler {
	return &JSONHandler{
		authUseCase: authUseCase,
	}
}

type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

func newSessionResponse(user *models.User, tokens *connection.AuthTokens) *SessionResponse {
	return &SessionResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	}
}

func (h *JSONHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := infrastructure.DecodeJSON(r, &req); err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}

	user, tokens, err := h.authUseCase.SignUp(r.Context(), req.Email, req.Password, req.Username, req.DisplayName)
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusCreated, newSessionResponse(user, tokens))
}

func (h *JSONHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := infrastructure.DecodeJSON(r, &req); err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}

	user, tokens, err := h.authUseCase.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, newSessionResponse(user, tokens))
}

func (h *JSONHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	userID, _ := connection.UserIDFromContext(r.Context())
	_ = h.authUseCase.SignOut(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *JSONHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := infrastructure.DecodeJSON(r, &req); err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}

	tokens, err := h.authUseCase.Refresh(req.RefreshToken)
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, tokens)
}

func (h *JSONHandler) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	url, err := h.authUseCase.BeginOAuth(r.Context(), mux.Vars(r)["provider"])
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *JSONHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, tokens, err := h.authUseCase.HandleRedirect(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		infrastructure.WriteError(w, r, err)
		return
	}
	if user == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, newSessionResponse(user, tokens))
}
