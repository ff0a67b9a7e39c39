package api

import (
	"github.com/google/wire"
	"google.golang.org/grpc"
	"nhooyr.io/websocket"

	"chat/config"
	"chat/infrastructure/connection"
	"chat/internal/auth"
	"chat/internal/chat"
	"chat/internal/realtime"
	"chat/internal/store"
	"chat/internal/typing"
	"chat/internal/user"
)

// ProvideGRPCServer returns the server and a cleanup that marks it not
// serving and stops it.
func ProvideGRPCServer(tokens *connection.Tokens) (*grpc.Server, func()) {
	server, hs := NewGRPCServer(tokens)
	return server, func() {
		hs.Shutdown()
		server.GracefulStop()
	}
}

func ProvideSessionHandler(
	cfg *config.Config,
	authUseCase *auth.UseCase,
	prefs store.Preferences,
	service *realtime.Service,
	conversations *chat.ConversationUseCase,
) *SessionHandler {
	return NewSessionHandler(authUseCase, prefs, service, conversations, &websocket.AcceptOptions{
		InsecureSkipVerify: cfg.WSInsecureSkipCheck,
		OriginPatterns:     cfg.AllowedOrigins,
	})
}

func ProvideServer(
	cfg *config.Config,
	tokens *connection.Tokens,
	authHandler *auth.JSONHandler,
	userHandler *user.JSONHandler,
	chatHandler *chat.JSONHandler,
	typingHandler *typing.JSONHandler,
	session *SessionHandler,
	grpcServer *grpc.Server,
) *Server {
	return NewServer(cfg, tokens, Handlers{
		Auth:    authHandler,
		User:    userHandler,
		Chat:    chatHandler,
		Typing:  typingHandler,
		Session: session,
	}, grpcServer)
}

var Set = wire.NewSet(ProvideGRPCServer, ProvideSessionHandler, ProvideServer)
