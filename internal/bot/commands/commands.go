package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/draft"
)

// Snapshotter supplies the current draft state.
type Snapshotter interface {
	Snapshot() draft.Snapshot
}

// Handlers process Discord interactions.
type Handlers struct {
	snapshots Snapshotter
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewHandlers creates new command handlers.
func NewHandlers(snapshots Snapshotter, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		snapshots: snapshots,
		logger:    logger,
		tracer:    tp.Tracer("github.com/jensholdgaard/draft-auction/internal/bot/commands"),
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	roleChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: string(draft.RoleStaff), Value: string(draft.RoleStaff)},
		{Name: string(draft.RoleTechnician), Value: string(draft.RoleTechnician)},
		{Name: string(draft.RoleContractual), Value: string(draft.RoleContractual)},
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:        "draft-status",
			Description: "Show the auction phase, round and picking team",
		},
		{
			Name:        "roster",
			Description: "Show a team's drafted players",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "team",
					Description: "Team name",
					Required:    true,
				},
			},
		},
		{
			Name:        "available",
			Description: "List players still in the draft pool",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "role",
					Description: "Only list players with this role",
					Required:    false,
					Choices:     roleChoices,
				},
			},
		},
	}
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	ctx, span := h.tracer.Start(context.Background(), "InteractionCreate",
		trace.WithAttributes(attribute.String("command", data.Name)),
	)
	defer span.End()

	respond(ctx, h.logger, s, i, h.Reply(data.Name, optionValues(data.Options)))
}

// Reply renders the response to command name with its string options.
func (h *Handlers) Reply(name string, opts map[string]string) string {
	snap := h.snapshots.Snapshot()
	switch name {
	case "draft-status":
		return StatusMessage(snap)
	case "roster":
		return RosterMessage(snap, opts["team"])
	case "available":
		return AvailableMessage(snap, draft.Role(opts["role"]))
	default:
		return "Unknown command"
	}
}

// StatusMessage summarises the auction phase and the current round.
func StatusMessage(s draft.Snapshot) string {
	switch s.Phase {
	case draft.PhaseLobby:
		return "The auction has not started yet."
	case draft.PhaseEnded:
		return fmt.Sprintf("The auction has ended after round %d.", s.CurrentRound)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Round %d of %d**\n", s.CurrentRound, s.MaxRounds)
	switch {
	case s.IsRolling && s.DiceResult != nil:
		fmt.Fprintf(&b, "Drawing the next team... (%s)\n", s.DiceResult.Name)
	case s.PickingTeam != nil:
		fmt.Fprintf(&b, "Now picking: **%s**\n", s.PickingTeam.Name)
	case s.IsRoundCompleted:
		b.WriteString("Round complete.\n")
	default:
		b.WriteString("Waiting for the next draw.\n")
	}
	if len(s.RoundOrder) > 0 {
		b.WriteString("Order:")
		for idx, t := range s.RoundOrder {
			marker := ""
			if idx < s.TurnIndex {
				marker = " (picked)"
			}
			fmt.Fprintf(&b, "\n%d. %s%s", idx+1, t.Name, marker)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%d players available.", len(s.AvailablePlayers))
	return b.String()
}

// RosterMessage lists the players drafted by the team named name.
func RosterMessage(s draft.Snapshot, name string) string {
	for _, t := range s.Teams {
		if !strings.EqualFold(t.Name, name) {
			continue
		}
		if len(t.Players) == 0 {
			return fmt.Sprintf("**%s** has not drafted anyone yet.", t.Name)
		}
		msg := fmt.Sprintf("**%s** (owner: %s):\n", t.Name, t.Owner)
		for idx, p := range t.Players {
			msg += fmt.Sprintf("%d. %s, %s\n", idx+1, p.Name, p.Role)
		}
		return msg
	}
	return fmt.Sprintf("No team named %q.", name)
}

// AvailableMessage lists the draft pool, optionally filtered by role.
func AvailableMessage(s draft.Snapshot, role draft.Role) string {
	var b strings.Builder
	n := 0
	for _, p := range s.AvailablePlayers {
		if role != "" && p.Role != role {
			continue
		}
		n++
		fmt.Fprintf(&b, "\n%d. %s, %s", n, p.Name, p.Role)
	}
	if n == 0 {
		return "No players available."
	}
	return fmt.Sprintf("**Available players (%d):**", n) + b.String()
}

func optionValues(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	m := make(map[string]string, len(opts))
	for _, o := range opts {
		if o.Type == discordgo.ApplicationCommandOptionString {
			m[o.Name] = o.StringValue()
		}
	}
	return m
}

func respond(ctx context.Context, logger *slog.Logger, s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
	if err != nil {
		logger.ErrorContext(ctx, "responding to interaction", slog.Any("error", err))
	}
}
