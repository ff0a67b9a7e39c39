package memory

import (
	"github.com/google/wire"

	"chat/internal/auth"
	"chat/internal/chat"
	"chat/internal/feed"
	"chat/internal/store"
	"chat/internal/typing"
	"chat/internal/user"
)

func ProvideBackend(broker *feed.Broker) *Backend {
	return NewBackend(broker)
}

var Set = wire.NewSet(
	ProvideBackend,
	wire.Bind(new(user.Repository), new(*Backend)),
	wire.Bind(new(chat.Repository), new(*Backend)),
	wire.Bind(new(typing.Repository), new(*Backend)),
	wire.Bind(new(auth.Repository), new(*Backend)),
	wire.Bind(new(auth.StateStore), new(*Backend)),
	wire.Bind(new(store.Preferences), new(*Backend)),
)
