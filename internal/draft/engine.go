package draft

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/collate"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

const instrumentationName = "github.com/jensholdgaard/draft-auction/internal/draft"

// Announcer receives draft announcements made on this client.
type Announcer interface {
	Announce(ctx context.Context, a Announcement, round int)
}

// Engine coordinates one client's view of the auction draft. Local state is
// mutated synchronously under a single lock; the shared subset is then
// written to the remote store, whose change feed is the only way remote
// updates re-enter local state (see Run).
//
// It is safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	view      View
	user      *Account
	teams     []Team
	master    []Player
	available []Player
	accounts  []Account
	sh        shared

	// Generation stamps for delayed tasks.
	rollGen     uint64
	announceGen uint64

	collator *collate.Collator

	// writeMu keeps remote writes in the order their local mutations happened.
	writeMu sync.Mutex

	advMu    sync.Mutex
	advisory string

	version atomic.Uint64
	subsMu  sync.Mutex
	subs    map[chan uint64]struct{}

	players  store.PlayerRepository
	teamRepo store.TeamRepository
	users    store.UserRepository
	state    store.StateRepository
	feed     store.Feed

	hasher    PasswordHasher
	opts      Options
	announcer Announcer

	logger       *slog.Logger
	tracer       trace.Tracer
	clock        clock.Clock
	syncFailures metric.Int64Counter
	picks        metric.Int64Counter
}

// NewEngine creates an Engine backed by repos. Call Bootstrap before use and
// Run to consume the change feed.
func NewEngine(repos *store.Repositories, hasher PasswordHasher, opts Options, logger *slog.Logger, tp trace.TracerProvider, mp metric.MeterProvider, clk clock.Clock) *Engine {
	if opts.IntN == nil {
		opts.IntN = DefaultOptions().IntN
	}
	meter := mp.Meter(instrumentationName)
	syncFailures, err := meter.Int64Counter("draft.sync.failures",
		metric.WithDescription("Remote store writes that failed after a local mutation."))
	if err != nil {
		logger.Warn("creating sync failure counter", slog.Any("error", err))
		syncFailures = metricnoop.Int64Counter{}
	}
	picks, err := meter.Int64Counter("draft.picks",
		metric.WithDescription("Players drafted on this client."))
	if err != nil {
		logger.Warn("creating picks counter", slog.Any("error", err))
		picks = metricnoop.Int64Counter{}
	}

	return &Engine{
		view:         ViewLogin,
		sh:           sharedFromRecord(store.DefaultState()),
		collator:     newCollator(),
		subs:         make(map[chan uint64]struct{}),
		players:      repos.Players,
		teamRepo:     repos.Teams,
		users:        repos.Users,
		state:        repos.State,
		feed:         repos.Feed,
		hasher:       hasher,
		opts:         opts,
		logger:       logger,
		tracer:       tp.Tracer(instrumentationName),
		clock:        clk,
		syncFailures: syncFailures,
		picks:        picks,
	}
}

// OnAnnounce registers a receiver for announcements of picks made on this client.
func (e *Engine) OnAnnounce(a Announcer) {
	e.mu.Lock()
	e.announcer = a
	e.mu.Unlock()
}

// Subscribe returns a channel that receives the snapshot version after every
// local or remote change. Deliveries coalesce; the channel is closed when ctx
// is done.
func (e *Engine) Subscribe(ctx context.Context) <-chan uint64 {
	ch := make(chan uint64, 1)
	e.subsMu.Lock()
	e.subs[ch] = struct{}{}
	e.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		e.subsMu.Lock()
		delete(e.subs, ch)
		e.subsMu.Unlock()
		close(ch)
	}()
	return ch
}

func (e *Engine) changed() {
	v := e.version.Add(1)
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Advisory returns the current advisory message, if any.
func (e *Engine) Advisory() string {
	e.advMu.Lock()
	defer e.advMu.Unlock()
	return e.advisory
}

func (e *Engine) setAdvisory(msg string) {
	e.advMu.Lock()
	e.advisory = msg
	e.advMu.Unlock()
	e.changed()
}

// write is one remote persistence step of an operation.
type write struct {
	what string
	fn   func(ctx context.Context) error
}

// pushLocked publishes the local change and performs the remote writes in
// order. It must be called with e.mu held and releases it.
func (e *Engine) pushLocked(ctx context.Context, op string, writes ...write) {
	e.changed()
	e.writeMu.Lock()
	e.mu.Unlock()
	defer e.writeMu.Unlock()

	for _, w := range writes {
		if err := w.fn(ctx); err != nil {
			e.syncFailed(ctx, op, w.what, err)
		}
	}
}

func (e *Engine) syncFailed(ctx context.Context, op, what string, err error) {
	e.logger.ErrorContext(ctx, "remote write failed",
		slog.String("operation", op),
		slog.String("record", what),
		slog.Any("error", err),
	)
	e.syncFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
	e.setAdvisory(fmt.Sprintf("%s: %s: %v", advisorySyncPrefix, op, err))
}

func (e *Engine) putStateLocked() write {
	rec := e.sh.record()
	return write{what: "auction state", fn: func(ctx context.Context) error {
		return e.state.Put(ctx, rec)
	}}
}

func (e *Engine) setDrafted(playerID int, teamID *int) write {
	return write{what: fmt.Sprintf("player %d", playerID), fn: func(ctx context.Context) error {
		return e.players.SetDraftedTo(ctx, playerID, teamID)
	}}
}

func (e *Engine) requireAdminLocked() error {
	if e.user == nil || e.user.Role != AccountAdmin {
		return ErrForbidden
	}
	return nil
}

func (e *Engine) teamIndexLocked(id int) int {
	return slices.IndexFunc(e.teams, func(t Team) bool { return t.ID == id })
}

func (e *Engine) resolveTeamLocked(id int) Team {
	if i := e.teamIndexLocked(id); i >= 0 {
		return cloneTeam(e.teams[i])
	}
	return Team{ID: id, Players: []Player{}}
}

func (e *Engine) resolvePlayerLocked(id int) Player {
	if i := indexOfPlayer(e.master, id); i >= 0 {
		return e.master[i]
	}
	return Player{ID: id}
}

func (e *Engine) pickingTeamLocked() (int, bool) {
	if len(e.sh.Order) == 0 || e.sh.TurnIndex >= len(e.sh.Order) {
		return 0, false
	}
	return e.sh.Order[e.sh.TurnIndex], true
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Version:          e.version.Load(),
		View:             e.view,
		Phase:            e.sh.Phase,
		CurrentRound:     e.sh.Round,
		MaxRounds:        e.opts.MaxRounds,
		RoundOrder:       make([]Team, 0, len(e.sh.Order)),
		TurnIndex:        e.sh.TurnIndex,
		IsRolling:        e.sh.Rolling,
		IsRoundCompleted: e.sh.roundComplete(),
		CanUndo:          e.sh.Undo != nil,
		Teams:            make([]Team, 0, len(e.teams)),
		MasterPlayers:    slices.Clone(e.master),
		AvailablePlayers: slices.Clone(e.available),
		Advisory:         e.Advisory(),
	}
	if s.MasterPlayers == nil {
		s.MasterPlayers = []Player{}
	}
	if s.AvailablePlayers == nil {
		s.AvailablePlayers = []Player{}
	}
	for _, t := range e.teams {
		s.Teams = append(s.Teams, cloneTeam(t))
	}
	for _, id := range e.sh.Order {
		s.RoundOrder = append(s.RoundOrder, e.resolveTeamLocked(id))
	}
	if e.sh.Dice != nil {
		t := e.resolveTeamLocked(*e.sh.Dice)
		s.DiceResult = &t
	}
	if id, ok := e.pickingTeamLocked(); ok {
		t := e.resolveTeamLocked(id)
		s.PickingTeam = &t
	}
	if u := e.user; u != nil {
		acct := *u
		s.User = &acct
		if u.Role == AccountTeamOwner && u.TeamID != nil && s.PickingTeam != nil {
			s.IsMyTurn = *u.TeamID == s.PickingTeam.ID
		}
		if u.Role == AccountAdmin {
			s.Accounts = slices.Clone(e.accounts)
		}
	}
	if u := e.sh.Undo; u != nil {
		s.LastDraft = &DraftAction{Player: e.resolvePlayerLocked(u.PlayerID), TeamID: u.TeamID}
	}
	if a := e.sh.Announce; a != nil {
		s.Announcement = &Announcement{
			Player: e.resolvePlayerLocked(a.PlayerID),
			Team:   e.resolveTeamLocked(a.TeamID),
		}
	}
	return s
}

func cloneTeam(t Team) Team {
	t.Players = slices.Clone(t.Players)
	if t.Players == nil {
		t.Players = []Player{}
	}
	return t
}

func indexOfPlayer(ps []Player, id int) int {
	return slices.IndexFunc(ps, func(p Player) bool { return p.ID == id })
}

func removePlayer(ps []Player, id int) ([]Player, bool) {
	i := indexOfPlayer(ps, id)
	if i < 0 {
		return ps, false
	}
	return slices.Delete(ps, i, i+1), true
}
