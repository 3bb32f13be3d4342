package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/sangege/redeembot/redeembot"
	"github.com/sangege/redeembot/redeembot/database/models"
)

var Status = discord.SlashCommandCreate{
	Name:        "status",
	Description: "Bot latency and pool statistics",
}

func StatusHandler(b *redeembot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !requireAdmin(b, e) {
			return nil
		}

		apiStart := time.Now()
		if err := e.DeferCreateMessage(false); err != nil {
			return fmt.Errorf("failed to defer message: %w", err)
		}
		apiPing := time.Since(apiStart)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		dbStart := time.Now()
		standardUsed, standardTotal, err := b.CodeRepository.Stats(ctx, models.PoolStandard)
		if err != nil {
			return err
		}
		premiumUsed, premiumTotal, err := b.CodeRepository.Stats(ctx, models.PoolPremium)
		if err != nil {
			return err
		}
		dbPing := time.Since(dbStart)

		content := fmt.Sprintf(
			"API %dms | WS %dms | DB %dms\n%s\n%s",
			apiPing.Milliseconds(),
			e.Client().Gateway().Latency().Milliseconds(),
			dbPing.Milliseconds(),
			poolLine("Standard", standardUsed, standardTotal),
			poolLine("Premium", premiumUsed, premiumTotal),
		)

		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{Content: &content})
		return err
	}
}

func poolLine(name string, used, total int) string {
	left := total - used
	percent := 0
	if total > 0 {
		percent = left * 100 / total
	}
	return fmt.Sprintf("%s codes remaining: %d%% (%d / %d)", name, percent, left, total)
}
