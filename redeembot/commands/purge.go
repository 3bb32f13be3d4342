package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/sangege/redeembot/redeembot"
)

var Purge = discord.SlashCommandCreate{
	Name:        "purge",
	Description: "Trim the oldest claim history until the database fits a size target",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionFloat{
			Name:        "size",
			Description: "Target size in MiB",
			Required:    true,
		},
	},
}

func PurgeHandler(b *redeembot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !requireAdmin(b, e) {
			return nil
		}

		if err := e.DeferCreateMessage(false); err != nil {
			return fmt.Errorf("failed to defer message: %w", err)
		}

		// Deleting and vacuuming a large file can take a while.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		targetMiB := e.SlashCommandInteractionData().Float("size")
		targetBytes := int64(targetMiB * 1024 * 1024)

		report, err := b.Retention.Purge(ctx, targetBytes)
		if err != nil {
			content := "Purge failed. Check the logs."
			_, _ = e.UpdateInteractionResponse(discord.MessageUpdate{Content: &content})
			return err
		}

		var content string
		if len(report.Deleted) == 0 {
			content = fmt.Sprintf("Nothing to purge. Current size: %.2f MiB", mib(report.FinalBytes))
		} else {
			details := make([]string, 0, len(report.Deleted))
			for _, d := range report.Deleted {
				details = append(details, fmt.Sprintf("%d-%d (%d rows)", d.Year, int(d.Month), d.Rows))
			}
			content = fmt.Sprintf("Purged %.2f MiB → %.2f MiB\nDeleted: %s",
				mib(report.InitialBytes), mib(report.FinalBytes), strings.Join(details, ", "))
		}

		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{Content: &content})
		return err
	}
}

func mib(bytes int64) float64 {
	return float64(bytes) / 1024 / 1024
}
