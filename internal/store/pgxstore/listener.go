package pgxstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jensholdgaard/draft-auction/internal/event"
	"github.com/jensholdgaard/draft-auction/internal/store"
	"github.com/jensholdgaard/draft-auction/internal/store/postgres"
)

const reconnectDelay = 2 * time.Second

// Listener holds one pooled connection in LISTEN mode and republishes its
// notifications through a store.Broker.
type Listener struct {
	*store.Broker
	pool   *pgxpool.Pool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewListener verifies that LISTEN works and starts the receive loop.
func NewListener(ctx context.Context, pool *pgxpool.Pool) (*Listener, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+postgres.NotifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listening on %s: %w", postgres.NotifyChannel, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l := &Listener{
		Broker: store.NewBroker(),
		pool:   pool,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.run(runCtx, conn)
	return l, nil
}

func (l *Listener) run(ctx context.Context, conn *pgxpool.Conn) {
	defer close(l.done)
	for {
		err := l.receive(ctx, conn)
		// A LISTENing connection must not go back to the pool.
		_ = conn.Hijack().Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		slog.ErrorContext(ctx, "listen connection lost", slog.Any("error", err))

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			conn, err = l.pool.Acquire(ctx)
			if err == nil {
				if _, err = conn.Exec(ctx, "LISTEN "+postgres.NotifyChannel); err == nil {
					break
				}
				conn.Release()
			}
			slog.WarnContext(ctx, "re-listen failed", slog.Any("error", err))
		}
		// Notifications sent while disconnected are lost.
		l.PublishAll()
	}
}

func (l *Listener) receive(ctx context.Context, conn *pgxpool.Conn) error {
	for {
		note, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		n, err := event.Parse(note.Payload)
		if err != nil {
			slog.WarnContext(ctx, "ignoring notification", slog.Any("error", err))
			continue
		}
		l.Publish(n)
	}
}

// Close stops the receive loop and waits for it to close its dedicated
// connection. The connection is never returned to the pool.
func (l *Listener) Close() {
	l.cancel()
	<-l.done
}
