package redeembot

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sangege/redeembot/redeembot/claim"
	"github.com/sangege/redeembot/redeembot/database"
	"github.com/sangege/redeembot/redeembot/database/repositories"
	"github.com/sangege/redeembot/redeembot/oracle"
	"github.com/sangege/redeembot/redeembot/retention"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string

	DB              *database.DB
	CodeRepository  repositories.CodeRepository
	ClaimRepository repositories.ClaimRepository
	Oracle          oracle.Client
	Sessions        *claim.SessionStore
	Workflow        *claim.Workflow
	Retention       *retention.Engine
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds, gateway.IntentGuildMessages, gateway.IntentMessageContent)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("Redeem bot is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := b.Cfg.Bot.Status
	if status == "" {
		status = "gift codes"
	}
	if err := b.Client.SetPresence(ctx,
		gateway.WithPlayingActivity(status),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}

// Authorized is the platform-level gate applied before the workflow runs:
// configured developers or members with the Administrator permission.
func (b *Bot) Authorized(userID snowflake.ID, member *discord.ResolvedMember) bool {
	if b.Cfg.Bot.IsDeveloper(userID) {
		return true
	}
	return member != nil && member.Permissions.Has(discord.PermissionAdministrator)
}

// ReportToLogChannel sends operator-facing detail to the configured log
// channel. User-facing replies stay generic; this is where specifics go.
func (b *Bot) ReportToLogChannel(content string) {
	if b.Cfg.Bot.LogChannel == 0 {
		return
	}
	if _, err := b.Client.Rest().CreateMessage(b.Cfg.Bot.LogChannel, discord.NewMessageCreateBuilder().
		SetContent(content).
		Build()); err != nil {
		slog.Error("Failed to write to log channel", slog.Any("error", err))
	}
}
