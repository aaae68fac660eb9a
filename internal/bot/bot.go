// Package bot posts draft announcements to Discord and serves read-only
// slash commands over the draft state.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/bot/commands"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/draft"
	"github.com/jensholdgaard/draft-auction/internal/telemetry"
)

// messageSender is the part of *discordgo.Session used for announcements.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot wraps the Discord session and command handlers.
type Bot struct {
	session  *discordgo.Session
	sender   messageSender
	cfg      config.DiscordConfig
	logger   *slog.Logger
	tracer   trace.Tracer
	handlers *commands.Handlers
	cmds     []*discordgo.ApplicationCommand
}

// New creates a Bot. Announcements use the REST API and work before Start.
func New(cfg config.DiscordConfig, snapshots commands.Snapshotter, logger *slog.Logger, tp trace.TracerProvider) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	return &Bot{
		session:  session,
		sender:   session,
		cfg:      cfg,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jensholdgaard/draft-auction/internal/bot"),
		handlers: commands.NewHandlers(snapshots, logger, tp),
	}, nil
}

// Announce posts a completed pick to the configured channel. Failures are
// logged and never reach the draft.
func (b *Bot) Announce(ctx context.Context, a draft.Announcement, round int) {
	ctx, span := b.tracer.Start(ctx, "Bot.Announce",
		trace.WithAttributes(
			attribute.Int("player.id", a.Player.ID),
			attribute.Int("team.id", a.Team.ID),
		),
	)
	defer span.End()

	if b.cfg.ChannelID == "" {
		return
	}
	if _, err := b.sender.ChannelMessageSend(b.cfg.ChannelID, announcementMessage(a, round)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.LogWithTrace(ctx, b.logger).ErrorContext(ctx, "posting draft announcement",
			slog.String("channel", b.cfg.ChannelID),
			slog.Any("error", err),
		)
	}
}

func announcementMessage(a draft.Announcement, round int) string {
	team := a.Team.Name
	if team == "" {
		team = fmt.Sprintf("Team %d", a.Team.ID)
	}
	return fmt.Sprintf("**%s** drafted **%s** (%s) in round %d", team, a.Player.Name, a.Player.Role, round)
}

// Start opens the gateway connection and registers slash commands.
func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.InfoContext(ctx, "bot is ready", slog.String("user", s.State.User.Username))
	})
	b.session.AddHandler(b.handlers.InteractionCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, commands.SlashCommands())
	if err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.cmds = registered

	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))
	return nil
}

// Stop removes the registered commands and closes the gateway connection.
func (b *Bot) Stop() error {
	for _, cmd := range b.cmds {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.cfg.GuildID, cmd.ID); err != nil {
			b.logger.Error("failed to delete command", slog.String("command", cmd.Name), slog.Any("error", err))
		}
	}
	b.cmds = nil
	return b.session.Close()
}
