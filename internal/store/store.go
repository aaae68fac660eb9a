package store

import (
	"context"
	"errors"
	"time"

	"github.com/jensholdgaard/draft-auction/internal/event"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// Player is a draftable player record. DraftedToTeamID is nil while the
// player is in the available pool.
type Player struct {
	ID              int    `db:"id"`
	Name            string `db:"name"`
	Role            string `db:"role"`
	DraftedToTeamID *int   `db:"drafted_to_team_id"`
}

// Team is a team record. Rosters are derived from Player.DraftedToTeamID.
type Team struct {
	ID          int    `db:"id"`
	Name        string `db:"name"`
	Owner       string `db:"owner"`
	CaptainRole string `db:"captain_role"`
	Color       string `db:"color"`
	Logo        string `db:"logo"`
}

// User is an account record.
type User struct {
	ID           int    `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"` // "admin" or "team_owner"
	TeamID       *int   `db:"team_id"`
}

// AuctionState is the singleton record shared by every client.
type AuctionState struct {
	CurrentRound     int
	RoundOrder       []int // team ids in draw order
	TurnIndex        int
	IsRolling        bool
	DiceTeamID       *int
	Phase            string // "lobby", "running", "ended"
	AnnouncePlayerID *int
	AnnounceTeamID   *int
	UndoPlayerID     *int
	UndoTeamID       *int
	UpdatedAt        time.Time
}

// DefaultState returns the record written when the shared state does not exist yet.
func DefaultState() *AuctionState {
	return &AuctionState{
		CurrentRound: 1,
		RoundOrder:   []int{},
		Phase:        "lobby",
	}
}

// PlayerRepository defines player persistence operations.
type PlayerRepository interface {
	Create(ctx context.Context, p *Player) error
	List(ctx context.Context) ([]Player, error)
	Update(ctx context.Context, p *Player) error
	Delete(ctx context.Context, id int) error
	SetDraftedTo(ctx context.Context, id int, teamID *int) error
	ClearDrafted(ctx context.Context) error
}

// TeamRepository defines team persistence operations.
type TeamRepository interface {
	Create(ctx context.Context, t *Team) error
	List(ctx context.Context) ([]Team, error)
	Update(ctx context.Context, t *Team) error
	Delete(ctx context.Context, id int) error
}

// UserRepository defines account persistence operations.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u *User) error
	DeleteByTeam(ctx context.Context, teamID int) error
}

// StateRepository persists the singleton auction state record.
type StateRepository interface {
	// Get returns ErrNotFound when the record has never been written.
	Get(ctx context.Context) (*AuctionState, error)
	Put(ctx context.Context, s *AuctionState) error
	// Init writes s only if no record exists and reports whether it did.
	Init(ctx context.Context, s *AuctionState) (bool, error)
}

// Feed delivers change notifications for a topic until ctx is done.
// Notifications coalesce: a slow reader sees at least one notification
// after the last change, not one per write.
type Feed interface {
	Subscribe(ctx context.Context, topic event.Topic) (<-chan event.Notification, error)
}
