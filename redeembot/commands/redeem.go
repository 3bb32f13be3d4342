package commands

import (
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/sangege/redeembot/redeembot"
	"github.com/sangege/redeembot/redeembot/components"
)

var Redeem = discord.SlashCommandCreate{
	Name:        "redeem",
	Description: "Redeem a specific gift code",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "code",
			Description: "The gift code to redeem",
			Required:    true,
		},
	},
}

// RedeemHandler starts a targeted claim: the given code is redeemed as-is,
// outside the pools and exempt from the cooldown gate.
func RedeemHandler(b *redeembot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		code := strings.TrimSpace(e.SlashCommandInteractionData().String("code"))
		if code == "" {
			return e.CreateMessage(discord.MessageCreate{
				Content: "That does not look like a gift code.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		accountID := e.User().ID.String()
		privileged := e.Member() != nil && e.Member().PremiumSince != nil
		b.Workflow.Begin(accountID, privileged, code)

		return e.Modal(components.BuildIdentityModal(components.LastPlayerIDPrefill(b, accountID)))
	}
}
