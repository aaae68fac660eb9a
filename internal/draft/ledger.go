package draft

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DraftPlayer drafts an available player to the picking team. Only the
// owner of the picking team may draft.
func (e *Engine) DraftPlayer(ctx context.Context, playerID int) error {
	ctx, span := e.tracer.Start(ctx, "Engine.DraftPlayer",
		trace.WithAttributes(attribute.Int("player_id", playerID)),
	)
	defer span.End()

	e.mu.Lock()
	if e.user == nil || e.user.Role != AccountTeamOwner || e.user.TeamID == nil {
		e.mu.Unlock()
		return ErrForbidden
	}
	if e.sh.Phase != PhaseRunning {
		e.mu.Unlock()
		return fmt.Errorf("draft in phase %s: %w", e.sh.Phase, ErrWrongPhase)
	}
	teamID, ok := e.pickingTeamLocked()
	if !ok {
		e.mu.Unlock()
		return ErrNoPickingTeam
	}
	if *e.user.TeamID != teamID {
		e.mu.Unlock()
		return ErrNotYourTurn
	}
	ti := e.teamIndexLocked(teamID)
	if ti < 0 {
		e.mu.Unlock()
		return fmt.Errorf("picking team %d: %w", teamID, ErrNotFound)
	}
	pi := indexOfPlayer(e.available, playerID)
	if pi < 0 {
		e.mu.Unlock()
		return ErrPlayerUnavailable
	}

	p := e.available[pi]
	e.available, _ = removePlayer(e.available, playerID)
	e.teams[ti].Players = append(e.teams[ti].Players, p)
	last := &pick{PlayerID: p.ID, TeamID: teamID}
	e.sh.Undo = last
	e.sh.Announce = &pick{PlayerID: p.ID, TeamID: teamID}
	e.sh.TurnIndex++
	e.announceGen++
	gen := e.announceGen

	announcement := Announcement{Player: p, Team: cloneTeam(e.teams[ti])}
	round := e.sh.Round
	announcer := e.announcer

	e.logger.InfoContext(ctx, "player drafted",
		slog.Int("player_id", p.ID),
		slog.String("player", p.Name),
		slog.Int("team_id", teamID),
		slog.Int("round", round),
		slog.Int("turn_index", e.sh.TurnIndex),
	)
	e.picks.Add(ctx, 1)

	bg := context.WithoutCancel(ctx)
	e.clock.AfterFunc(e.opts.AnnouncementTTL, func() { e.expireAnnouncement(bg, gen, *last) })

	e.pushLocked(ctx, "draft player", e.setDrafted(p.ID, intPtr(teamID)), e.putStateLocked())

	if announcer != nil {
		announcer.Announce(bg, announcement, round)
	}
	return nil
}

// expireAnnouncement clears the announcement scheduled by a draft, unless a
// later draft or an undo has replaced it.
func (e *Engine) expireAnnouncement(ctx context.Context, gen uint64, p pick) {
	ctx, span := e.tracer.Start(ctx, "Engine.expireAnnouncement",
		trace.WithAttributes(attribute.Int("player_id", p.PlayerID)),
	)
	defer span.End()

	e.mu.Lock()
	if gen != e.announceGen || e.sh.Announce == nil || *e.sh.Announce != p {
		e.mu.Unlock()
		return
	}
	e.sh.Announce = nil
	e.pushLocked(ctx, "clear announcement", e.putStateLocked())
}

// UndoLastDraft reverts the most recent draft. There is only one level of
// undo.
func (e *Engine) UndoLastDraft(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "Engine.UndoLastDraft")
	defer span.End()

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	u := e.sh.Undo
	if u == nil {
		e.mu.Unlock()
		return ErrNothingToUndo
	}

	p := e.resolvePlayerLocked(u.PlayerID)
	if ti := e.teamIndexLocked(u.TeamID); ti >= 0 {
		e.teams[ti].Players, _ = removePlayer(e.teams[ti].Players, u.PlayerID)
	}
	if indexOfPlayer(e.available, u.PlayerID) < 0 && indexOfPlayer(e.master, u.PlayerID) >= 0 {
		e.available = append(e.available, p)
	}
	sortByID(e.available)
	e.sh.TurnIndex = max(0, e.sh.TurnIndex-1)
	e.sh.Undo = nil
	e.sh.Announce = nil
	e.announceGen++

	span.SetAttributes(attribute.Int("player_id", u.PlayerID), attribute.Int("team_id", u.TeamID))
	e.logger.InfoContext(ctx, "draft undone",
		slog.Int("player_id", u.PlayerID),
		slog.Int("team_id", u.TeamID),
		slog.Int("turn_index", e.sh.TurnIndex),
	)
	e.pushLocked(ctx, "undo draft", e.setDrafted(u.PlayerID, nil), e.putStateLocked())
	return nil
}
