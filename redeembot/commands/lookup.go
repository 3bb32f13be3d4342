package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/sangege/redeembot/redeembot"
	"github.com/sangege/redeembot/redeembot/database/models"
)

const claimsPerPage = 10

var playerIDPattern = regexp.MustCompile(`^\d+$`)

var Lookup = discord.SlashCommandCreate{
	Name:        "lookup",
	Description: "Look up redemption history",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "user",
			Description: "History of a Discord user",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "target",
					Description: "User to look up",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "id",
			Description: "History of a player id",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "target",
					Description: "Player id to look up",
					Required:    true,
				},
			},
		},
	},
}

func LookupHandler(b *redeembot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !requireAdmin(b, e) {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()

		var (
			claims []*models.Claim
			err    error
		)
		switch *data.SubCommandName {
		case "user":
			claims, err = b.ClaimRepository.HistoryByAccount(ctx, data.User("target").ID.String())
		case "id":
			playerID := data.String("target")
			if !playerIDPattern.MatchString(playerID) {
				return e.CreateMessage(discord.MessageCreate{
					Content: fmt.Sprintf("Invalid player id `%s`.", playerID),
					Flags:   discord.MessageFlagEphemeral,
				})
			}
			claims, err = b.ClaimRepository.HistoryByPlayer(ctx, playerID)
		}
		if err != nil {
			return err
		}

		if len(claims) == 0 {
			return e.CreateMessage(discord.MessageCreate{Content: "None"})
		}

		totalPages := (len(claims) + claimsPerPage - 1) / claimsPerPage
		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * claimsPerPage
				end := min(start+claimsPerPage, len(claims))

				var sb strings.Builder
				for _, c := range claims[start:end] {
					ts := c.ClaimedAt.Unix()
					fmt.Fprintf(&sb, "Account: `%s` Player: `%s` Code: `%s` Redeemed: <t:%d:f> <t:%d:R>\n",
						c.AccountID, c.PlayerID, c.Code, ts, ts)
				}
				embed.SetTitle("Redemption history").SetDescription(sb.String())
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}
