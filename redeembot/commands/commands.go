package commands

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/sangege/redeembot/redeembot"
)

var Commands = []discord.ApplicationCommandCreate{
	Post,
	Custom,
	Redeem,
	Code,
	Status,
	Lookup,
	Purge,
}

// requireAdmin rejects callers outside the platform-level gate before any
// workflow code runs.
func requireAdmin(b *redeembot.Bot, e *handler.CommandEvent) bool {
	if b.Authorized(e.User().ID, e.Member()) {
		return true
	}
	_ = e.CreateMessage(discord.MessageCreate{
		Content: "Sorry, admins only.",
		Flags:   discord.MessageFlagEphemeral,
	})
	return false
}
