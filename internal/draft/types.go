package draft

import (
	"errors"
	"math/rand/v2"
	"time"
)

// Errors returned by engine operations. A rejected operation leaves local
// and remote state unchanged.
var (
	ErrForbidden          = errors.New("operation not permitted for this account")
	ErrNotYourTurn        = errors.New("it is not your team's turn")
	ErrNoPickingTeam      = errors.New("no team is currently picking")
	ErrPlayerUnavailable  = errors.New("player is not in the available pool")
	ErrNothingToUndo      = errors.New("nothing to undo")
	ErrRoundIncomplete    = errors.New("current round is not complete")
	ErrRollUnavailable    = errors.New("no draw is possible right now")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotFound           = errors.New("not found")
	ErrUsernameTaken      = errors.New("username already in use")
	ErrInvalidInput       = errors.New("invalid input")
	ErrWrongPhase         = errors.New("operation not allowed in the current auction phase")
)

// Advisory messages surfaced through Snapshot.Advisory.
const (
	advisoryLoginFailed = "Invalid username or password."
	advisorySyncPrefix  = "Sync failed"
)

// Role is a player role.
type Role string

const (
	RoleStaff       Role = "Staff"
	RoleTechnician  Role = "Technician"
	RoleContractual Role = "Contractual Worker"
)

// Valid reports whether r is a known player role.
func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleTechnician, RoleContractual:
		return true
	}
	return false
}

// ValidCaptain reports whether r may be a team's captain role.
func (r Role) ValidCaptain() bool {
	return r == RoleStaff || r == RoleTechnician
}

// AccountRole distinguishes administrators from team owners.
type AccountRole string

const (
	AccountAdmin     AccountRole = "admin"
	AccountTeamOwner AccountRole = "team_owner"
)

// Phase is the top-level auction lifecycle.
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhaseRunning Phase = "running"
	PhaseEnded   Phase = "ended"
)

// View is the client-local view mode.
type View string

const (
	ViewLogin      View = "login"
	ViewPublic     View = "public_view"
	ViewAdminLobby View = "admin_lobby"
	ViewAdmin      View = "admin_view"
	ViewTeam       View = "team_view"
	ViewEnded      View = "auction_ended"
)

// Default appearance of newly created teams.
const (
	DefaultTeamColor = "bg-gray-500"
	DefaultTeamLogo  = "star"
)

// Player is a draftable player.
type Player struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Team is a team with its roster in draft order.
type Team struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Owner       string   `json:"owner"`
	Players     []Player `json:"players"`
	CaptainRole Role     `json:"captainRole"`
	Color       string   `json:"color"`
	Logo        string   `json:"logo"`
}

// Account is a login account. The password hash never leaves the engine.
type Account struct {
	ID           int         `json:"id"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	Role         AccountRole `json:"role"`
	TeamID       *int        `json:"teamId,omitempty"`
}

// DraftAction is the single-level undo entry.
type DraftAction struct {
	Player Player `json:"player"`
	TeamID int    `json:"teamId"`
}

// Announcement is the transient broadcast of the most recent pick.
type Announcement struct {
	Player Player `json:"player"`
	Team   Team   `json:"team"`
}

// TeamOwnerInput creates a team together with its owner account.
type TeamOwnerInput struct {
	TeamName    string `json:"teamName"`
	OwnerName   string `json:"ownerName"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	CaptainRole Role   `json:"captainRole"`
}

// TeamOwnerUpdate edits a team and its owner account. A nil Password leaves
// the stored password unchanged.
type TeamOwnerUpdate struct {
	TeamName  string  `json:"teamName"`
	OwnerName string  `json:"ownerName"`
	Username  string  `json:"username"`
	Password  *string `json:"password,omitempty"`
}

// Snapshot is a read-only copy of the engine state for a view layer.
type Snapshot struct {
	Version uint64   `json:"version"`
	View    View     `json:"view"`
	User    *Account `json:"user,omitempty"`

	Phase        Phase  `json:"phase"`
	CurrentRound int    `json:"currentRound"`
	MaxRounds    int    `json:"maxRounds"`
	RoundOrder   []Team `json:"roundOrder"`
	TurnIndex    int    `json:"turnIndex"`
	IsRolling    bool   `json:"isRolling"`
	DiceResult   *Team  `json:"diceResult,omitempty"`

	PickingTeam      *Team `json:"pickingTeam,omitempty"`
	IsRoundCompleted bool  `json:"isRoundCompleted"`
	IsMyTurn         bool  `json:"isMyTurn"`
	CanUndo          bool  `json:"canUndo"`

	LastDraft    *DraftAction  `json:"lastDraft,omitempty"`
	Announcement *Announcement `json:"announcement,omitempty"`

	Teams            []Team    `json:"teams"`
	MasterPlayers    []Player  `json:"masterPlayers"`
	AvailablePlayers []Player  `json:"availablePlayers"`
	Accounts         []Account `json:"accounts,omitempty"`

	Advisory string `json:"advisory,omitempty"`
}

// Options configures an Engine.
type Options struct {
	MaxRounds       int
	TeamsPerRound   int
	DrawDelay       time.Duration
	AnnouncementTTL time.Duration
	AdminUsername   string
	AdminPassword   string
	// IntN returns a uniform random int in [0, n). Defaults to math/rand/v2.
	IntN func(n int) int
}

// DefaultOptions returns the standard auction pacing.
func DefaultOptions() Options {
	return Options{
		MaxRounds:       15,
		TeamsPerRound:   4,
		DrawDelay:       2500 * time.Millisecond,
		AnnouncementTTL: 4 * time.Second,
		AdminUsername:   "admin",
		AdminPassword:   "password",
		IntN:            rand.IntN,
	}
}

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}
