package draft

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RollForNextPick draws a random team that is not yet in the current round's
// order. The pick is exposed immediately as the pending dice result and is
// appended to the order once the draw delay has elapsed.
func (e *Engine) RollForNextPick(ctx context.Context) (Team, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.RollForNextPick")
	defer span.End()

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return Team{}, err
	}
	if e.sh.Phase != PhaseRunning {
		e.mu.Unlock()
		return Team{}, fmt.Errorf("roll in phase %s: %w", e.sh.Phase, ErrWrongPhase)
	}
	if !e.canRollLocked() {
		e.mu.Unlock()
		return Team{}, ErrRollUnavailable
	}

	candidates := make([]int, 0, len(e.teams))
	for _, t := range e.teams {
		if !slices.Contains(e.sh.Order, t.ID) {
			candidates = append(candidates, t.ID)
		}
	}
	if len(candidates) == 0 {
		e.mu.Unlock()
		return Team{}, ErrRollUnavailable
	}

	id := candidates[e.opts.IntN(len(candidates))]
	e.sh.Rolling = true
	e.sh.Dice = intPtr(id)
	gen := e.rollGen
	team := e.resolveTeamLocked(id)

	span.SetAttributes(attribute.Int("team_id", id))
	e.logger.InfoContext(ctx, "team drawn",
		slog.Int("team_id", id),
		slog.Int("round", e.sh.Round),
		slog.Int("position", len(e.sh.Order)+1),
	)

	bg := context.WithoutCancel(ctx)
	e.clock.AfterFunc(e.opts.DrawDelay, func() { e.commitRoll(bg, gen, id) })

	e.pushLocked(ctx, "roll", e.putStateLocked())
	return team, nil
}

func (e *Engine) canRollLocked() bool {
	n := len(e.sh.Order)
	return !e.sh.Rolling && n < len(e.teams) && n < e.opts.TeamsPerRound
}

// commitRoll appends a drawn team to the round order. It is dropped when the
// round was reset or the auction left the running phase after the draw, and
// never duplicates a team or exceeds the per-round cap.
func (e *Engine) commitRoll(ctx context.Context, gen uint64, teamID int) {
	ctx, span := e.tracer.Start(ctx, "Engine.commitRoll",
		trace.WithAttributes(attribute.Int("team_id", teamID)),
	)
	defer span.End()

	e.mu.Lock()
	if gen != e.rollGen || e.sh.Phase != PhaseRunning {
		e.mu.Unlock()
		e.logger.DebugContext(ctx, "stale draw dropped", slog.Int("team_id", teamID))
		return
	}
	if !slices.Contains(e.sh.Order, teamID) && len(e.sh.Order) < e.opts.TeamsPerRound {
		e.sh.Order = append(slices.Clone(e.sh.Order), teamID)
	}
	e.sh.Rolling = false

	e.logger.InfoContext(ctx, "draw committed",
		slog.Int("team_id", teamID),
		slog.Any("round_order", e.sh.Order),
	)
	e.pushLocked(ctx, "roll", e.putStateLocked())
}
