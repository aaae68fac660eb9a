package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/jensholdgaard/draft-auction/internal/event"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

const listenerPingInterval = 90 * time.Second

// Listener turns Postgres notifications on NotifyChannel into a store.Feed.
type Listener struct {
	*store.Broker
	listener *pq.Listener
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewListener starts listening on NotifyChannel. The returned Listener runs
// until Close is called.
func NewListener(ctx context.Context, dsn string) (*Listener, error) {
	pl := pq.NewListener(dsn, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				slog.Error("listener event", slog.Any("error", err))
			}
		},
	)
	if err := pl.Listen(NotifyChannel); err != nil {
		pl.Close()
		return nil, fmt.Errorf("listening on %s: %w", NotifyChannel, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l := &Listener{
		Broker:   store.NewBroker(),
		listener: pl,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go l.run(runCtx)

	slog.InfoContext(ctx, "listening for store changes", slog.String("channel", NotifyChannel))
	return l, nil
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	ping := time.NewTicker(listenerPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case note := <-l.listener.Notify:
			if note == nil {
				// Connection was re-established; anything may have changed meanwhile.
				l.PublishAll()
				continue
			}
			n, err := event.Parse(note.Extra)
			if err != nil {
				slog.WarnContext(ctx, "ignoring notification", slog.Any("error", err))
				continue
			}
			l.Publish(n)
		case <-ping.C:
			if err := l.listener.Ping(); err != nil {
				slog.ErrorContext(ctx, "failed to ping listener", slog.Any("error", err))
			}
		}
	}
}

// Close stops the listener.
func (l *Listener) Close() error {
	l.cancel()
	<-l.done
	return l.listener.Close()
}
