package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"google.golang.org/grpc"

	"chat/config"
	"chat/infrastructure"
	"chat/infrastructure/connection"
	"chat/internal/auth"
	"chat/internal/chat"
	"chat/internal/typing"
	"chat/internal/user"
)

type Server struct {
	router  *mux.Router
	rest    http.Handler
	grpcWeb *grpcweb.WrappedGrpcServer
	addr    string
}

// Handlers groups the REST surface of every feature package.
type Handlers struct {
	Auth    *auth.JSONHandler
	User    *user.JSONHandler
	Chat    *chat.JSONHandler
	Typing  *typing.JSONHandler
	Session *SessionHandler
}

func NewServer(cfg *config.Config, tokens *connection.Tokens, h Handlers, grpcServer *grpc.Server) *Server {
	router := mux.NewRouter()

	// mux runs middleware only for matched routes, so the shared stack
	// wraps the router instead.
	var rest http.Handler = router
	rest = RateLimitMiddleware(cfg.RateLimitRPS)(rest)
	rest = CORS(cfg.AllowedOrigins)(rest)
	rest = Logger(rest)

	server := &Server{
		router:  router,
		rest:    rest,
		grpcWeb: grpcweb.WrapServer(grpcServer, grpcweb.WithOriginFunc(originAllowed(cfg.AllowedOrigins))),
		addr:    ":" + cfg.Port,
	}
	server.setupRoutes(tokens, h)
	return server
}

func originAllowed(origins []string) func(string) bool {
	return func(origin string) bool {
		if len(origins) == 0 {
			return true
		}
		for _, o := range origins {
			if o == origin {
				return true
			}
		}
		return false
	}
}

func (s *Server) setupRoutes(tokens *connection.Tokens, h Handlers) {
	s.router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	s.router.Handle("/ws", h.Session).Methods(http.MethodGet)

	s.router.HandleFunc("/auth/signup", h.Auth.SignUp).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/signin", h.Auth.SignIn).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/refresh", h.Auth.Refresh).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/oauth/callback", h.Auth.OAuthCallback).Methods(http.MethodGet)
	s.router.HandleFunc("/auth/oauth/{provider}", h.Auth.BeginOAuth).Methods(http.MethodGet)

	// Group for authenticated routes
	authRoute := s.router.NewRoute().Subrouter()
	authRoute.Use(Authenticate(tokens))

	authRoute.HandleFunc("/auth/signout", h.Auth.SignOut).Methods(http.MethodPost)

	authRoute.HandleFunc("/users", h.User.ListUsers).Methods(http.MethodGet)
	authRoute.HandleFunc("/users/me", h.User.Me).Methods(http.MethodGet)
	authRoute.HandleFunc("/users/me", h.User.UpdateMe).Methods(http.MethodPatch)
	authRoute.HandleFunc("/users/me/avatar", h.User.UploadAvatar).Methods(http.MethodPut)

	authRoute.HandleFunc("/conversations", h.Chat.ListConversations).Methods(http.MethodGet)
	authRoute.HandleFunc("/conversations/direct", h.Chat.OpenDirect).Methods(http.MethodPost)
	authRoute.HandleFunc("/conversations/{id}/messages", h.Chat.ListMessages).Methods(http.MethodGet)
	authRoute.HandleFunc("/conversations/{id}/messages", h.Chat.SendMessage).Methods(http.MethodPost)
	authRoute.HandleFunc("/conversations/{id}/messages/{messageId}/read", h.Chat.MarkRead).Methods(http.MethodPost)
	authRoute.HandleFunc("/conversations/{id}/messages/{messageId}/reactions", h.Chat.AddReaction).Methods(http.MethodPost)
	authRoute.HandleFunc("/conversations/{id}/messages/{messageId}/reactions", h.Chat.RemoveReaction).Methods(http.MethodDelete)
	authRoute.HandleFunc("/conversations/{id}/typing", h.Typing.Typing).Methods(http.MethodPost)
}

// ServeHTTP hands gRPC-Web calls to the gRPC server and everything else to
// the REST router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.grpcWeb.IsGrpcWebRequest(r) || s.grpcWeb.IsAcceptableGrpcCorsRequest(r) {
		s.grpcWeb.ServeHTTP(w, r)
		return
	}
	s.rest.ServeHTTP(w, r)
}

// Run serves until ctx is done, then drains open requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	infrastructure.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
