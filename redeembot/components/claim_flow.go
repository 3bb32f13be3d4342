// Package components drives the interactive claim flow: entry button,
// player id modal, challenge image and answer modal. All user-facing text
// lives here; the workflow only returns structured results.
package components

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/sangege/redeembot/redeembot"
	"github.com/sangege/redeembot/redeembot/claim"
)

const (
	IdentityModalID = "/redeem/identity"
	AnswerModalID   = "/redeem/captcha"
)

// BuildIdentityModal builds the player id prompt, prefilled with the id the
// account used last time.
func BuildIdentityModal(prefill string) discord.ModalCreate {
	input := discord.NewShortTextInput("player_id", "Your player ID").
		WithMinLength(4).
		WithMaxLength(10).
		WithRequired(true)
	if prefill != "" {
		input = input.WithValue(prefill)
	}

	return discord.ModalCreate{
		CustomID:   IdentityModalID,
		Title:      "Enter your player ID",
		Components: []discord.ContainerComponent{discord.NewActionRow(input)},
	}
}

func buildAnswerModal() discord.ModalCreate {
	return discord.ModalCreate{
		CustomID: AnswerModalID,
		Title:    "Answer the challenge",
		Components: []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewShortTextInput("answer", "What does the image say?").
					WithMinLength(4).
					WithMaxLength(4).
					WithRequired(true),
			),
		},
	}
}

// LastPlayerIDPrefill looks up the account's previous player id for the
// identity modal. Failures only cost the prefill.
func LastPlayerIDPrefill(b *redeembot.Bot, accountID string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	prefill, err := b.ClaimRepository.LastPlayerID(ctx, accountID)
	if err != nil {
		slog.Error("Failed to prefill player id",
			slog.String("type", "db"),
			slog.String("account_id", accountID),
			slog.Any("error", err))
		return ""
	}
	return prefill
}

func isPrivileged(member *discord.ResolvedMember) bool {
	return member != nil && member.PremiumSince != nil
}

// StartButtonHandler handles the entry button posted by /post: it opens a
// pool-drawn claim session and asks for the player id.
func StartButtonHandler(b *redeembot.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		accountID := e.User().ID.String()
		b.Workflow.Begin(accountID, isPrivileged(e.Member()), "")
		return e.Modal(BuildIdentityModal(LastPlayerIDPrefill(b, accountID)))
	}
}

// TargetButtonHandler handles the per-code buttons posted by /custom. The
// code on the button is the only state carried in the custom id; everything
// else lives in the session.
func TargetButtonHandler(b *redeembot.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		code := e.Vars["code"]
		if code == "" {
			return e.CreateMessage(discord.MessageCreate{
				Content: "This button is missing its code.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		accountID := e.User().ID.String()
		b.Workflow.Begin(accountID, isPrivileged(e.Member()), code)
		return e.Modal(BuildIdentityModal(LastPlayerIDPrefill(b, accountID)))
	}
}

// AnswerButtonHandler opens the answer modal. Only the account that started
// the claim may answer its challenge.
func AnswerButtonHandler(b *redeembot.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		accountID := e.User().ID.String()
		if !b.Sessions.IsMessageOwner(e.Message.ID.String(), accountID) {
			return e.CreateMessage(discord.MessageCreate{
				Content: "This claim belongs to another user.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		return e.Modal(buildAnswerModal())
	}
}

// IdentityModalHandler feeds the submitted player id into the workflow.
func IdentityModalHandler(b *redeembot.Bot) handler.ModalHandler {
	return func(e *handler.ModalEvent) error {
		if err := e.DeferCreateMessage(true); err != nil {
			return fmt.Errorf("failed to defer message: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		accountID := e.User().ID.String()
		res := b.Workflow.SubmitIdentity(ctx, accountID, e.Data.Text("player_id"))
		return respond(b, e, accountID, res)
	}
}

// AnswerModalHandler feeds the challenge answer into the workflow and
// renders the terminal (or retry) result.
func AnswerModalHandler(b *redeembot.Bot) handler.ModalHandler {
	return func(e *handler.ModalEvent) error {
		if err := e.DeferCreateMessage(true); err != nil {
			return fmt.Errorf("failed to defer message: %w", err)
		}

		// The oracle call dominates this path; give it room.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		accountID := e.User().ID.String()
		res := b.Workflow.SubmitAnswer(ctx, accountID, e.Data.Text("answer"))
		report(b, accountID, res)
		return respond(b, e, accountID, res)
	}
}

// respond renders a workflow result into the deferred interaction response.
func respond(b *redeembot.Bot, e *handler.ModalEvent, accountID string, res *claim.Result) error {
	update := discord.MessageUpdate{}

	switch res.Status {
	case claim.StatusAwaitingAnswer:
		content := "Solve the challenge below, then press Answer."
		switch res.Reason {
		case claim.ReasonMalformedAnswer:
			content = "The answer must be exactly 4 digits. Here is a fresh challenge:"
		case claim.ReasonRetryChallenge:
			content = "That did not go through. Please solve this new challenge:"
		}
		update.Content = &content
		update.Files = []*discord.File{
			discord.NewFile("captcha.png", "", bytes.NewReader(res.Challenge.Image)),
		}
		update.Components = &[]discord.ContainerComponent{
			discord.NewActionRow(discord.NewPrimaryButton("Answer", "/redeem/answer")),
		}

	case claim.StatusSucceeded:
		content := "🎉 Congratulations! Your gift code has been redeemed."
		update.Content = &content

	case claim.StatusRejected:
		content := rejectionText(res)
		update.Content = &content

	default: // StatusSystemError
		content := "Something went wrong on our side. Please try again later."
		if res.Reason == claim.ReasonPoolExhausted {
			content = "There are no more gift codes left right now. Please check back later."
		}
		update.Content = &content
	}

	msg, err := e.UpdateInteractionResponse(update)
	if err != nil {
		return err
	}

	if res.Status == claim.StatusAwaitingAnswer && msg != nil {
		b.Sessions.RegisterMessageOwner(msg.ID.String(), accountID)
	}
	return nil
}

func rejectionText(res *claim.Result) string {
	switch res.Reason {
	case claim.ReasonCooldownActive:
		ts := res.NextEligible.Unix()
		return fmt.Sprintf("You already claimed this period. You can claim again <t:%d:f> (<t:%d:R>).", ts, ts)
	case claim.ReasonInvalidIdentity:
		return "Invalid player ID. Please check it and try again."
	case claim.ReasonAlreadyRedeemed:
		return "This code has already been redeemed for that player, or is no longer valid."
	case claim.ReasonSessionExpired:
		return "This claim session has expired. Press the claim button to start again."
	default:
		return "Your claim was rejected."
	}
}

// report forwards terminal outcomes with full detail to the operator log
// channel. The ephemeral user reply stays generic.
func report(b *redeembot.Bot, accountID string, res *claim.Result) {
	switch res.Status {
	case claim.StatusSucceeded:
		b.ReportToLogChannel(fmt.Sprintf("[REDEEM] account <@%s> code `%s` %s", accountID, res.Code, res.Message))
	case claim.StatusSystemError:
		b.ReportToLogChannel(fmt.Sprintf("[FAIL] account <@%s> reason `%s` code `%s` %s", accountID, res.Reason, res.Code, res.Message))
	}
}
