package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"golang.org/x/sync/errgroup"

	"github.com/sangege/redeembot/redeembot"
	"github.com/sangege/redeembot/redeembot/database/models"
	"github.com/sangege/redeembot/redeembot/utils"
)

const helpText = "Available commands:\n" +
	"- `help` : This message\n" +
	"- `codes` : Upload a text file with new **standard** codes\n" +
	"- `premium` : Upload a text file with new **premium** codes\n" +
	"- `reset` : Deletes all current codes. Use before adding next period's codes\n" +
	"- `backup` : Get a copy of the database\n"

var attachmentClient = &http.Client{Timeout: 2 * time.Minute}

// MessageHandler serves the developer channel: bulk code import from
// attachments, pool resets and database backups.
func MessageHandler(b *redeembot.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.MessageCreate) {
		msg := e.Message
		if msg.Author.Bot {
			return
		}
		if b.Cfg.Bot.AdminChannel == 0 || msg.ChannelID != b.Cfg.Bot.AdminChannel {
			return
		}
		if !b.Cfg.Bot.IsDeveloper(msg.Author.ID) {
			return
		}

		switch strings.TrimSpace(msg.Content) {
		case "help":
			reply(e, helpText)
		case "codes":
			importAttachments(b, e, models.PoolStandard)
		case "premium":
			importAttachments(b, e, models.PoolPremium)
		case "reset":
			resetPools(b, e)
		case "backup":
			sendBackup(b, e, "Here you go :)")
		}
	})
}

func reply(e *events.MessageCreate, content string) {
	if _, err := e.Client().Rest().CreateMessage(e.Message.ChannelID, discord.NewMessageCreateBuilder().
		SetContent(content).
		SetMessageReferenceByID(e.Message.ID).
		Build()); err != nil {
		slog.Error("Failed to reply in admin channel", slog.Any("error", err))
	}
}

// importAttachments downloads every attached code list and bulk-inserts it
// into the pool. Files are fetched concurrently; duplicates are skipped by
// the store.
func importAttachments(b *redeembot.Bot, e *events.MessageCreate, pool string) {
	if len(e.Message.Attachments) == 0 {
		reply(e, "No attachment. Upload a text file with the codes with this command.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var inserted int64
	g, ctx := errgroup.WithContext(ctx)
	for _, att := range e.Message.Attachments {
		g.Go(func() error {
			n, err := importOne(ctx, b, pool, att.URL)
			if err != nil {
				return fmt.Errorf("attachment %s: %w", att.Filename, err)
			}
			atomic.AddInt64(&inserted, int64(n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("Failed to import code attachments",
			slog.String("pool", pool),
			slog.Any("error", err))
		reply(e, fmt.Sprintf("Error processing attachments: %v", err))
		return
	}

	reply(e, fmt.Sprintf("Imported %d new %s codes. Check /status", inserted, pool))
}

func importOne(ctx context.Context, b *redeembot.Bot, pool, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := attachmentClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	codes, err := utils.ParseCodeList(resp.Body)
	if err != nil {
		return 0, err
	}

	return b.CodeRepository.BulkInsert(ctx, pool, codes)
}

// resetPools sends a backup first, then wipes both pools. Irreversible.
func resetPools(b *redeembot.Bot, e *events.MessageCreate) {
	sendBackup(b, e, "Clearing all codes! Check /status")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, pool := range []string{models.PoolStandard, models.PoolPremium} {
		if err := b.CodeRepository.ResetPool(ctx, pool); err != nil {
			slog.Error("Failed to reset pool",
				slog.String("type", "db"),
				slog.String("pool", pool),
				slog.Any("error", err))
			reply(e, fmt.Sprintf("Error resetting %s pool: %v", pool, err))
			return
		}
	}
}

func sendBackup(b *redeembot.Bot, e *events.MessageCreate, content string) {
	f, err := os.Open(b.DB.Path())
	if err != nil {
		slog.Error("Failed to open database for backup", slog.Any("error", err))
		reply(e, "Could not read the database file.")
		return
	}
	defer f.Close()

	if _, err := e.Client().Rest().CreateMessage(e.Message.ChannelID, discord.NewMessageCreateBuilder().
		SetContent(content).
		SetFiles(discord.NewFile("database.sqlite", "", f)).
		SetMessageReferenceByID(e.Message.ID).
		Build()); err != nil {
		slog.Error("Failed to send backup", slog.Any("error", err))
	}
}
