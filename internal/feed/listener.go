package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Listener pumps Postgres notifications on Channel into a Publisher.
type Listener struct {
	listener *pq.Listener
	pub      Publisher
}

func NewListener(dsn string, pub Publisher) (*Listener, error) {
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("change stream listener event", "event", ev, "error", err)
		}
	})
	if err := l.Listen(Channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", Channel, err)
	}
	return &Listener{listener: l, pub: pub}, nil
}

// Run forwards notifications until ctx is done.
func (l *Listener) Run(ctx context.Context) {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-l.listener.Notify:
			if n == nil {
				// The connection was re-established; anything in between is lost.
				l.pub.Publish(Event{Kind: KindResync})
				continue
			}
			var e Event
			if err := json.Unmarshal([]byte(n.Extra), &e); err != nil {
				slog.Warn("dropping malformed change event", "payload", n.Extra, "error", err)
				continue
			}
			l.pub.Publish(e)
		case <-ping.C:
			go func() {
				if err := l.listener.Ping(); err != nil {
					slog.Warn("change stream ping failed", "error", err)
				}
			}()
		}
	}
}

func (l *Listener) Close() error {
	return l.listener.Close()
}
