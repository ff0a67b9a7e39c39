package feed

import (
	"github.com/google/wire"

	"chat/config"
)

// ProvideListener subscribes to the change stream of the configured
// database.
func ProvideListener(cfg *config.Config, broker *Broker) (*Listener, func(), error) {
	l, err := NewListener(cfg.DatabaseURL, broker)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Close() }, nil
}

var Set = wire.NewSet(NewBroker)

var PostgresSet = wire.NewSet(ProvideListener)
