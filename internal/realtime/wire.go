package realtime

import (
	"github.com/google/wire"

	"chat/internal/chat"
	"chat/internal/feed"
	"chat/internal/typing"
	"chat/internal/user"
)

func ProvideService(broker *feed.Broker, users user.Repository, chats chat.Repository, indicators typing.Repository) *Service {
	return NewService(broker, users, chats, chats, indicators)
}

var Set = wire.NewSet(ProvideService)
