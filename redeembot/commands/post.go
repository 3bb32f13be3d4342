package commands

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/sangege/redeembot/redeembot"
)

var Post = discord.SlashCommandCreate{
	Name:        "post",
	Description: "Post the gift claim button to a channel",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionChannel{
			Name:        "channel",
			Description: "Channel to post to",
			Required:    true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "message",
			Description: "The message to send",
			Required:    true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "label",
			Description: "The text of the button",
			Required:    true,
		},
	},
}

func PostHandler(b *redeembot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !requireAdmin(b, e) {
			return nil
		}

		data := e.SlashCommandInteractionData()
		channel := data.Channel("channel")

		if _, err := e.Client().Rest().CreateMessage(channel.ID, discord.NewMessageCreateBuilder().
			SetContent(data.String("message")).
			AddActionRow(discord.NewPrimaryButton(data.String("label"), "/redeem/start")).
			Build()); err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "Could not post to that channel. Check my permissions there.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		return e.CreateMessage(discord.MessageCreate{
			Content: "Claim button posted.",
			Flags:   discord.MessageFlagEphemeral,
		})
	}
}
