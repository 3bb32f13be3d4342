package handlers

import (
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/handler"
)

const slowThreshold = 2 * time.Second

// WrapWithLogging wraps a command handler with start/finish logging.
func WrapWithLogging(name string, h handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		start := time.Now()

		slog.Info("Command started",
			slog.String("type", "cmd"),
			slog.String("name", name),
			slog.String("user_id", e.User().ID.String()),
			slog.String("user_name", e.User().Username),
			slog.String("channel_id", e.ChannelID().String()),
		)

		err := h(e)
		logFinish("cmd", name, e.User().ID.String(), e.User().Username, time.Since(start), err)
		return err
	}
}

// WrapComponentWithLogging wraps a component handler with start/finish logging.
func WrapComponentWithLogging(name string, h handler.ComponentHandler) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		start := time.Now()

		slog.Info("Component interaction started",
			slog.String("type", "component"),
			slog.String("name", name),
			slog.String("user_id", e.User().ID.String()),
			slog.String("user_name", e.User().Username),
			slog.String("channel_id", e.ChannelID().String()),
		)

		err := h(e)
		logFinish("component", name, e.User().ID.String(), e.User().Username, time.Since(start), err)
		return err
	}
}

// WrapModalWithLogging wraps a modal submit handler with start/finish logging.
// Modal handlers talk to the redemption oracle and may legitimately take a
// while, so there is no timeout here; the handlers carry their own deadlines.
func WrapModalWithLogging(name string, h handler.ModalHandler) handler.ModalHandler {
	return func(e *handler.ModalEvent) error {
		start := time.Now()

		slog.Info("Modal submitted",
			slog.String("type", "modal"),
			slog.String("name", name),
			slog.String("user_id", e.User().ID.String()),
			slog.String("user_name", e.User().Username),
		)

		err := h(e)
		logFinish("modal", name, e.User().ID.String(), e.User().Username, time.Since(start), err)
		return err
	}
}

func logFinish(kind, name, userID, userName string, took time.Duration, err error) {
	attrs := []any{
		slog.String("type", kind),
		slog.String("name", name),
		slog.String("user_id", userID),
		slog.String("user_name", userName),
		slog.Duration("took", took),
	}

	switch {
	case err != nil:
		slog.Error("Interaction failed", append(attrs, slog.Any("error", err))...)
	case took > slowThreshold:
		slog.Warn("Interaction executed slowly", attrs...)
	default:
		slog.Info("Interaction completed", attrs...)
	}
}
