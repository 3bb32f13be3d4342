package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/sangege/redeembot/redeembot"
	"github.com/sangege/redeembot/redeembot/database/models"
	"github.com/sangege/redeembot/redeembot/database/repositories"
)

var Code = discord.SlashCommandCreate{
	Name:        "code",
	Description: "Draw a code from the standard pool",
}

// CodeHandler hands an operator one standard-pool code directly. The draw
// marks it used so it cannot be dispensed again.
func CodeHandler(b *redeembot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !requireAdmin(b, e) {
			return nil
		}

		if err := e.DeferCreateMessage(true); err != nil {
			return fmt.Errorf("failed to defer message: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		code, err := b.CodeRepository.DrawUnused(ctx, models.PoolStandard)
		if errors.Is(err, repositories.ErrNoCodesLeft) {
			content := "There are no more gift codes left."
			_, err = e.UpdateInteractionResponse(discord.MessageUpdate{Content: &content})
			return err
		}
		if err != nil {
			return err
		}

		content := fmt.Sprintf("Your code is `%s`!", code.Value)
		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{Content: &content})
		return err
	}
}
