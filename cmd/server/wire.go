//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"chat/config"
	"chat/internal/api"
	"chat/internal/auth"
	"chat/internal/cache"
	"chat/internal/chat"
	"chat/internal/database"
	"chat/internal/email"
	"chat/internal/feed"
	"chat/internal/memory"
	"chat/internal/realtime"
	"chat/internal/typing"
	"chat/internal/user"
)

var AppSet = wire.NewSet(
	feed.Set,
	email.Set,
	user.Set,
	chat.Set,
	typing.Set,
	auth.Set,
	realtime.Set,
	api.Set,
)

func InitializePostgresApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		AppSet,
		database.Set,
		cache.Set,
		feed.PostgresSet,
		user.PostgresSet,
		chat.PostgresSet,
		typing.PostgresSet,
		auth.PostgresSet,
		ProvidePostgresApp,
	)
	return nil, nil, nil
}

func InitializeMemoryApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(AppSet, memory.Set, ProvideMemoryApp)
	return nil, nil, nil
}
