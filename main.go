package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/sangege/redeembot/redeembot"
	"github.com/sangege/redeembot/redeembot/claim"
	"github.com/sangege/redeembot/redeembot/commands"
	"github.com/sangege/redeembot/redeembot/components"
	"github.com/sangege/redeembot/redeembot/database"
	"github.com/sangege/redeembot/redeembot/database/repositories"
	"github.com/sangege/redeembot/redeembot/handlers"
	"github.com/sangege/redeembot/redeembot/logger"
	"github.com/sangege/redeembot/redeembot/oracle"
	"github.com/sangege/redeembot/redeembot/retention"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	slog.Info("Starting redeem bot",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := redeembot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Configuration loaded successfully")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbStartTime := time.Now()
	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database open failed",
			slog.String("type", "db"),
			slog.Any("error", err))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("type", "db"),
			slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Database ready",
		slog.String("type", "db"),
		slog.String("path", cfg.DB.Path),
		slog.Duration("took", time.Since(dbStartTime)))

	b := redeembot.New(*cfg, version, commit)
	b.DB = db
	b.CodeRepository = repositories.NewCodeRepository(db.BunDB())
	b.ClaimRepository = repositories.NewClaimRepository(db.BunDB())
	b.Oracle = oracle.NewHTTPClient(cfg.Oracle.Host, cfg.Oracle.Timeout())

	b.Sessions = claim.NewSessionStore(cfg.Claim.SessionTimeout())
	b.Sessions.StartCleanupRoutine(context.Background())

	b.Workflow = claim.NewWorkflow(b.CodeRepository, b.ClaimRepository, b.Oracle, b.Sessions)
	b.Retention = retention.NewEngine(db, b.ClaimRepository)

	h := handler.New()

	h.Command("/post", handlers.WrapWithLogging("post", commands.PostHandler(b)))
	h.Command("/custom", handlers.WrapWithLogging("custom", commands.CustomHandler(b)))
	h.Command("/redeem", handlers.WrapWithLogging("redeem", commands.RedeemHandler(b)))
	h.Command("/code", handlers.WrapWithLogging("code", commands.CodeHandler(b)))
	h.Command("/status", handlers.WrapWithLogging("status", commands.StatusHandler(b)))
	h.Command("/lookup", handlers.WrapWithLogging("lookup", commands.LookupHandler(b)))
	h.Command("/purge", handlers.WrapWithLogging("purge", commands.PurgeHandler(b)))

	h.Component("/redeem/start", handlers.WrapComponentWithLogging("redeem-start", components.StartButtonHandler(b)))
	h.Component("/redeem/target/{code}", handlers.WrapComponentWithLogging("redeem-target", components.TargetButtonHandler(b)))
	h.Component("/redeem/answer", handlers.WrapComponentWithLogging("redeem-answer", components.AnswerButtonHandler(b)))

	h.Modal(components.IdentityModalID, handlers.WrapModalWithLogging("redeem-identity", components.IdentityModalHandler(b)))
	h.Modal(components.AnswerModalID, handlers.WrapModalWithLogging("redeem-captcha", components.AnswerModalHandler(b)))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady), handlers.MessageHandler(b)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}

	gwCtx, gwCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gwCancel()
	if err = b.Client.OpenGateway(gwCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}
