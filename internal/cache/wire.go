package cache

import (
	"github.com/google/wire"

	"chat/config"
	"chat/internal/auth"
	"chat/internal/store"
)

func ProvideRedisCache(cfg *config.Config) (*RedisCache, func(), error) {
	c, err := NewRedisCache(cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}

var Set = wire.NewSet(
	ProvideRedisCache,
	NewPreferences,
	NewOAuthStates,
	wire.Bind(new(store.Preferences), new(*Preferences)),
	wire.Bind(new(auth.StateStore), new(*OAuthStates)),
)
