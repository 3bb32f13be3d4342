package commands

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/sangege/redeembot/redeembot"
)

// Discord caps a message at 5 action rows of 5 buttons.
const maxCustomCodes = 25

var Custom = discord.SlashCommandCreate{
	Name:        "custom",
	Description: "Post buttons for specific gift codes",
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
			Name:        "codes",
			Description: "Comma separated list of codes (e.g. Code1, Code2)",
			Required:    true,
		},
	},
}

func CustomHandler(b *redeembot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !requireAdmin(b, e) {
			return nil
		}

		data := e.SlashCommandInteractionData()
		channel := data.Channel("channel")

		var codes []string
		for _, c := range strings.Split(data.String("codes"), ",") {
			if c = strings.TrimSpace(c); c != "" {
				codes = append(codes, c)
			}
		}

		if len(codes) == 0 {
			return e.CreateMessage(discord.MessageCreate{
				Content: "No valid codes given.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		if len(codes) > maxCustomCodes {
			return e.CreateMessage(discord.MessageCreate{
				Content: fmt.Sprintf("At most %d codes per post.", maxCustomCodes),
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		var rows []discord.ContainerComponent
		var buttons []discord.InteractiveComponent
		for _, code := range codes {
			buttons = append(buttons, discord.NewSuccessButton(code, "/redeem/target/"+code))
			if len(buttons) == 5 {
				rows = append(rows, discord.NewActionRow(buttons...))
				buttons = nil
			}
		}
		if len(buttons) > 0 {
			rows = append(rows, discord.NewActionRow(buttons...))
		}

		if _, err := e.Client().Rest().CreateMessage(channel.ID, discord.NewMessageCreateBuilder().
			SetContent(data.String("message")).
			AddContainerComponents(rows...).
			Build()); err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "Could not post to that channel. Check my permissions there.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		return e.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Posted %d code buttons.", len(codes)),
			Flags:   discord.MessageFlagEphemeral,
		})
	}
}
