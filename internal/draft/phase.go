package draft

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartAuction moves the auction to running and starts round one.
func (e *Engine) StartAuction(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "Engine.StartAuction")
	defer span.End()

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.sh.Phase != PhaseLobby {
		e.mu.Unlock()
		return fmt.Errorf("start auction in phase %s: %w", e.sh.Phase, ErrWrongPhase)
	}
	e.sh.Phase = PhaseRunning
	e.sh.Round = 1
	e.sh.resetRound()
	e.sh.Undo = nil
	e.rollGen++
	e.announceGen++
	e.resolveViewLocked()

	e.logger.InfoContext(ctx, "auction started")
	e.pushLocked(ctx, "start auction", e.putStateLocked())
	return nil
}

// NextRound advances to the next round once every team in the current order
// has picked. The auction ends after the last round or when no players are
// left.
func (e *Engine) NextRound(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "Engine.NextRound")
	defer span.End()

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.sh.Phase != PhaseRunning {
		e.mu.Unlock()
		return fmt.Errorf("next round in phase %s: %w", e.sh.Phase, ErrWrongPhase)
	}
	if !e.sh.roundComplete() {
		e.mu.Unlock()
		return ErrRoundIncomplete
	}

	next := e.sh.Round + 1
	span.SetAttributes(attribute.Int("round", next))
	if next > e.opts.MaxRounds || len(e.available) == 0 {
		e.sh.Phase = PhaseEnded
		e.resolveViewLocked()
		e.logger.InfoContext(ctx, "auction ended",
			slog.Int("round", e.sh.Round),
			slog.Int("available_players", len(e.available)),
		)
		e.pushLocked(ctx, "next round", e.putStateLocked())
		return nil
	}

	e.sh.Round = next
	e.sh.resetRound()
	e.sh.Undo = nil
	e.rollGen++
	e.announceGen++

	e.logger.InfoContext(ctx, "round started", slog.Int("round", next))
	e.pushLocked(ctx, "next round", e.putStateLocked())
	return nil
}

// StopAuction ends the auction regardless of round progress. A pending draw
// is discarded.
func (e *Engine) StopAuction(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "Engine.StopAuction")
	defer span.End()

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.sh.Phase = PhaseEnded
	e.sh.Rolling = false
	e.sh.Dice = nil
	e.rollGen++
	e.resolveViewLocked()

	e.logger.InfoContext(ctx, "auction stopped", slog.Int("round", e.sh.Round))
	e.pushLocked(ctx, "stop auction", e.putStateLocked())
	return nil
}

// ResetAuction empties every roster, refills the available pool from the
// master list and returns to the lobby.
func (e *Engine) ResetAuction(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "Engine.ResetAuction")
	defer span.End()

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	for i := range e.teams {
		e.teams[i].Players = []Player{}
	}
	e.available = append([]Player{}, e.master...)
	e.sh.Phase = PhaseLobby
	e.sh.Round = 1
	e.sh.resetRound()
	e.sh.Undo = nil
	e.rollGen++
	e.announceGen++
	e.resolveViewLocked()

	e.advMu.Lock()
	e.advisory = ""
	e.advMu.Unlock()

	e.logger.InfoContext(ctx, "auction reset")
	e.pushLocked(ctx, "reset auction",
		write{what: "players", fn: e.players.ClearDrafted},
		e.putStateLocked(),
	)
	return nil
}

// resolveViewLocked moves a signed-in account to the view matching the
// current phase. Anonymous views are left alone.
func (e *Engine) resolveViewLocked() {
	if e.user == nil {
		return
	}
	switch e.user.Role {
	case AccountAdmin:
		e.view = adminView(e.sh.Phase)
	case AccountTeamOwner:
		if e.sh.Phase == PhaseEnded {
			e.view = ViewEnded
		} else {
			e.view = ViewTeam
		}
	}
}

func adminView(p Phase) View {
	switch p {
	case PhaseRunning:
		return ViewAdmin
	case PhaseEnded:
		return ViewEnded
	default:
		return ViewAdminLobby
	}
}

// Login signs an account in on this client.
func (e *Engine) Login(ctx context.Context, username, password string) error {
	ctx, span := e.tracer.Start(ctx, "Engine.Login",
		trace.WithAttributes(attribute.String("username", username)),
	)
	defer span.End()

	e.mu.Lock()
	var acct *Account
	for i := range e.accounts {
		if e.accounts[i].Username == username {
			a := e.accounts[i]
			acct = &a
			break
		}
	}
	e.mu.Unlock()

	// Compare outside the lock.
	if acct == nil || !e.hasher.Compare(acct.PasswordHash, password) {
		e.logger.WarnContext(ctx, "login failed", slog.String("username", username))
		e.setAdvisory(advisoryLoginFailed)
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	e.user = acct
	if acct.Role == AccountAdmin {
		e.view = adminView(e.sh.Phase)
	} else {
		e.view = ViewTeam
	}
	e.advMu.Lock()
	e.advisory = ""
	e.advMu.Unlock()
	e.changed()
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "logged in",
		slog.String("username", acct.Username),
		slog.String("role", string(acct.Role)),
	)
	return nil
}

// Logout signs the current account out.
func (e *Engine) Logout(ctx context.Context) {
	_, span := e.tracer.Start(ctx, "Engine.Logout")
	defer span.End()

	e.mu.Lock()
	e.user = nil
	e.view = ViewLogin
	e.changed()
	e.mu.Unlock()
}

// EnterPublicView switches to the read-only public view.
func (e *Engine) EnterPublicView(ctx context.Context) {
	_, span := e.tracer.Start(ctx, "Engine.EnterPublicView")
	defer span.End()

	e.mu.Lock()
	e.view = ViewPublic
	e.changed()
	e.mu.Unlock()
}

// ReturnToLogin switches back to the login view.
func (e *Engine) ReturnToLogin(ctx context.Context) {
	_, span := e.tracer.Start(ctx, "Engine.ReturnToLogin")
	defer span.End()

	e.mu.Lock()
	e.view = ViewLogin
	e.changed()
	e.mu.Unlock()
}
