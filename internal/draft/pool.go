package draft

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/store"
)

// CreatePlayer adds a player to the master list and the available pool.
func (e *Engine) CreatePlayer(ctx context.Context, name string, role Role) (Player, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.CreatePlayer",
		trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("role", string(role)),
		),
	)
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" || !role.Valid() {
		return Player{}, fmt.Errorf("%w: player needs a name and a known role", ErrInvalidInput)
	}

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return Player{}, err
	}

	id := 0
	for _, p := range e.master {
		id = max(id, p.ID)
	}
	p := Player{ID: id + 1, Name: name, Role: role}
	e.master = append(e.master, p)
	e.available = append(e.available, p)
	sortByName(e.collator, e.master)
	sortByName(e.collator, e.available)

	e.logger.InfoContext(ctx, "player created",
		slog.Int("player_id", p.ID),
		slog.String("name", p.Name),
	)
	e.pushLocked(ctx, "create player", write{what: "player", fn: func(ctx context.Context) error {
		return e.players.Create(ctx, &store.Player{ID: p.ID, Name: p.Name, Role: string(p.Role)})
	}})
	return p, nil
}

// UpdatePlayer replaces a player's name and role wherever it is listed.
func (e *Engine) UpdatePlayer(ctx context.Context, id int, name string, role Role) error {
	ctx, span := e.tracer.Start(ctx, "Engine.UpdatePlayer",
		trace.WithAttributes(attribute.Int("player_id", id)),
	)
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" || !role.Valid() {
		return fmt.Errorf("%w: player needs a name and a known role", ErrInvalidInput)
	}

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if indexOfPlayer(e.master, id) < 0 {
		e.mu.Unlock()
		return fmt.Errorf("player %d: %w", id, ErrNotFound)
	}

	p := Player{ID: id, Name: name, Role: role}
	replace := func(ps []Player) {
		if i := indexOfPlayer(ps, id); i >= 0 {
			ps[i] = p
		}
	}
	replace(e.master)
	replace(e.available)
	for i := range e.teams {
		replace(e.teams[i].Players)
	}
	sortByName(e.collator, e.master)
	sortByName(e.collator, e.available)

	e.logger.InfoContext(ctx, "player updated", slog.Int("player_id", id))
	e.pushLocked(ctx, "update player", write{what: "player", fn: func(ctx context.Context) error {
		return e.players.Update(ctx, &store.Player{ID: p.ID, Name: p.Name, Role: string(p.Role)})
	}})
	return nil
}

// DeletePlayer removes a player from the master list, the available pool
// and any roster. An undo entry for the player is discarded.
func (e *Engine) DeletePlayer(ctx context.Context, id int) error {
	ctx, span := e.tracer.Start(ctx, "Engine.DeletePlayer",
		trace.WithAttributes(attribute.Int("player_id", id)),
	)
	defer span.End()

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if indexOfPlayer(e.master, id) < 0 {
		e.mu.Unlock()
		return fmt.Errorf("player %d: %w", id, ErrNotFound)
	}

	e.master, _ = removePlayer(e.master, id)
	e.available, _ = removePlayer(e.available, id)
	for i := range e.teams {
		e.teams[i].Players, _ = removePlayer(e.teams[i].Players, id)
	}

	writes := []write{{what: "player", fn: func(ctx context.Context) error {
		return e.players.Delete(ctx, id)
	}}}
	if u := e.sh.Undo; u != nil && u.PlayerID == id {
		e.sh.Undo = nil
		writes = append(writes, e.putStateLocked())
	}

	e.logger.InfoContext(ctx, "player deleted", slog.Int("player_id", id))
	e.pushLocked(ctx, "delete player", writes...)
	return nil
}
