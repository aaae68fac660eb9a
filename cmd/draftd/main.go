package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/draft-auction/internal/api"
	"github.com/jensholdgaard/draft-auction/internal/auth"
	"github.com/jensholdgaard/draft-auction/internal/bot"
	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/draft"
	"github.com/jensholdgaard/draft-auction/internal/health"
	"github.com/jensholdgaard/draft-auction/internal/leader"
	"github.com/jensholdgaard/draft-auction/internal/store"
	"github.com/jensholdgaard/draft-auction/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/draft-auction/internal/store/memstore"
	_ "github.com/jensholdgaard/draft-auction/internal/store/pgxstore"
	_ "github.com/jensholdgaard/draft-auction/internal/store/postgres"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to shared store", slog.String("driver", cfg.Database.Driver))

	engine := draft.NewEngine(repos, auth.NewDefaultHasher(), engineOptions(cfg.Auction), logger, tp.TracerProvider, tp.MeterProvider, clk)
	if err := engine.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrapping draft engine: %w", err)
	}

	var discordBot *bot.Bot
	if cfg.Discord.Token != "" {
		discordBot, err = bot.New(cfg.Discord, engine, logger, tp.TracerProvider)
		if err != nil {
			return fmt.Errorf("creating bot: %w", err)
		}
		engine.OnAnnounce(discordBot)
	}

	healthHandler := health.NewHandler(clk, health.StoreChecker(repos))
	srv := api.NewServer(engine, healthHandler, cfg.Server.AllowedOrigins, logger, tp.TracerProvider)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := engine.Run(gctx); err != nil {
			return fmt.Errorf("sync bridge: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.InfoContext(gctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		healthHandler.SetReady(false)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", slog.Any("error", err))
		}
		return nil
	})

	if discordBot != nil {
		g.Go(func() error {
			return serveCommands(gctx, cfg.LeaderElection, discordBot, logger)
		})
	}

	healthHandler.SetReady(true)
	logger.InfoContext(ctx, "draftd is running", slog.String("version", version))

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

// serveCommands runs the Discord command gateway, on the lease holder only
// when leader election is enabled. Announcements are posted from every replica.
func serveCommands(ctx context.Context, cfg config.LeaderElectionConfig, b *bot.Bot, logger *slog.Logger) error {
	serve := func(ctx context.Context) error {
		if err := b.Start(ctx); err != nil {
			return fmt.Errorf("starting bot: %w", err)
		}
		<-ctx.Done()
		if err := b.Stop(); err != nil {
			logger.Error("bot shutdown error", slog.Any("error", err))
		}
		return nil
	}

	if !cfg.Enabled {
		return serve(ctx)
	}

	gate := leader.NewGate(cfg, logger)
	logger.InfoContext(ctx, "leader election enabled, waiting for the draftd lease", slog.String("identity", gate.Identity()))
	if err := gate.Run(ctx, serve); err != nil {
		return fmt.Errorf("leader election: %w", err)
	}
	return nil
}

func engineOptions(cfg config.AuctionConfig) draft.Options {
	opts := draft.DefaultOptions()
	opts.MaxRounds = cfg.MaxRounds
	opts.TeamsPerRound = cfg.TeamsPerRound
	opts.DrawDelay = cfg.DrawDelay
	opts.AnnouncementTTL = cfg.AnnouncementTTL
	opts.AdminUsername = cfg.AdminUsername
	opts.AdminPassword = cfg.AdminPassword
	return opts
}
