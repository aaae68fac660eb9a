package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

// stateRow is the auction_state row as scanned by sqlx.
type stateRow struct {
	CurrentRound     int           `db:"current_round"`
	RoundOrder       pq.Int64Array `db:"round_order"`
	TurnIndex        int           `db:"turn_index"`
	IsRolling        bool          `db:"is_rolling"`
	DiceTeamID       *int          `db:"dice_team_id"`
	Phase            string        `db:"phase"`
	AnnouncePlayerID *int          `db:"announce_player_id"`
	AnnounceTeamID   *int          `db:"announce_team_id"`
	UndoPlayerID     *int          `db:"undo_player_id"`
	UndoTeamID       *int          `db:"undo_team_id"`
	UpdatedAt        time.Time     `db:"updated_at"`
}

func toRow(s *store.AuctionState) stateRow {
	order := make(pq.Int64Array, len(s.RoundOrder))
	for i, id := range s.RoundOrder {
		order[i] = int64(id)
	}
	return stateRow{
		CurrentRound:     s.CurrentRound,
		RoundOrder:       order,
		TurnIndex:        s.TurnIndex,
		IsRolling:        s.IsRolling,
		DiceTeamID:       s.DiceTeamID,
		Phase:            s.Phase,
		AnnouncePlayerID: s.AnnouncePlayerID,
		AnnounceTeamID:   s.AnnounceTeamID,
		UndoPlayerID:     s.UndoPlayerID,
		UndoTeamID:       s.UndoTeamID,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (r stateRow) toState() *store.AuctionState {
	order := make([]int, len(r.RoundOrder))
	for i, id := range r.RoundOrder {
		order[i] = int(id)
	}
	return &store.AuctionState{
		CurrentRound:     r.CurrentRound,
		RoundOrder:       order,
		TurnIndex:        r.TurnIndex,
		IsRolling:        r.IsRolling,
		DiceTeamID:       r.DiceTeamID,
		Phase:            r.Phase,
		AnnouncePlayerID: r.AnnouncePlayerID,
		AnnounceTeamID:   r.AnnounceTeamID,
		UndoPlayerID:     r.UndoPlayerID,
		UndoTeamID:       r.UndoTeamID,
		UpdatedAt:        r.UpdatedAt,
	}
}

// StateRepo implements store.StateRepository with sqlx.
type StateRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewStateRepo returns a new StateRepo.
func NewStateRepo(db *sqlx.DB, clk clock.Clock) *StateRepo {
	return &StateRepo{db: db, clock: clk}
}

func (r *StateRepo) Get(ctx context.Context) (*store.AuctionState, error) {
	var row stateRow
	err := r.db.GetContext(ctx, &row,
		`SELECT current_round, round_order, turn_index, is_rolling, dice_team_id, phase,
		        announce_player_id, announce_team_id, undo_player_id, undo_team_id, updated_at
		 FROM auction_state WHERE id = 'state'`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting auction state: %w", err)
	}
	return row.toState(), nil
}

func (r *StateRepo) Put(ctx context.Context, s *store.AuctionState) error {
	s.UpdatedAt = r.clock.Now().UTC()
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO auction_state (id, current_round, round_order, turn_index, is_rolling,
		        dice_team_id, phase, announce_player_id, announce_team_id,
		        undo_player_id, undo_team_id, updated_at)
		 VALUES ('state', :current_round, :round_order, :turn_index, :is_rolling,
		        :dice_team_id, :phase, :announce_player_id, :announce_team_id,
		        :undo_player_id, :undo_team_id, :updated_at)
		 ON CONFLICT (id) DO UPDATE SET
		        current_round = EXCLUDED.current_round,
		        round_order = EXCLUDED.round_order,
		        turn_index = EXCLUDED.turn_index,
		        is_rolling = EXCLUDED.is_rolling,
		        dice_team_id = EXCLUDED.dice_team_id,
		        phase = EXCLUDED.phase,
		        announce_player_id = EXCLUDED.announce_player_id,
		        announce_team_id = EXCLUDED.announce_team_id,
		        undo_player_id = EXCLUDED.undo_player_id,
		        undo_team_id = EXCLUDED.undo_team_id,
		        updated_at = EXCLUDED.updated_at`, toRow(s))
	if err != nil {
		return fmt.Errorf("writing auction state: %w", err)
	}
	return nil
}

func (r *StateRepo) Init(ctx context.Context, s *store.AuctionState) (bool, error) {
	s.UpdatedAt = r.clock.Now().UTC()
	result, err := r.db.NamedExecContext(ctx,
		`INSERT INTO auction_state (id, current_round, round_order, turn_index, is_rolling,
		        dice_team_id, phase, announce_player_id, announce_team_id,
		        undo_player_id, undo_team_id, updated_at)
		 VALUES ('state', :current_round, :round_order, :turn_index, :is_rolling,
		        :dice_team_id, :phase, :announce_player_id, :announce_team_id,
		        :undo_player_id, :undo_team_id, :updated_at)
		 ON CONFLICT (id) DO NOTHING`, toRow(s))
	if err != nil {
		return false, fmt.Errorf("initialising auction state: %w", err)
	}
	n, _ := result.RowsAffected()
	return n == 1, nil
}
