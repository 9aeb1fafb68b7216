// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"elapsed_tracker/internal/app"
)

// Reader gives the handlers the latest elapsed-time reading.
type Reader interface {
	Read() app.Reading
}

type botCommands struct {
	tracker     Reader
	ownerChatID int64
	logger      *logrus.Entry
}

func RegisterBotCommands(
	b *telebot.Bot,
	tracker Reader,
	ownerChatID int64,
	baseLogger *logrus.Entry, // For contextual logging
) {
	h := &botCommands{
		tracker:     tracker,
		ownerChatID: ownerChatID,
		logger:      baseLogger.WithField("handler_group", "start_help"),
	}
	b.Handle("/start", h.start)
	b.Handle("/help", h.help)
	b.Handle("/elapsed", h.elapsed)
}

func (h *botCommands) start(c telebot.Context) error {
	logCtx := h.logger.WithField("command", "/start").WithField("chat_id", c.Chat().ID)
	logCtx.Info("Processing /start command")

	if c.Chat().ID != h.ownerChatID {
		logCtx.Info("Chat is not the configured owner chat")
		return c.Send("Hi! This bot only talks to the chat it was configured for.")
	}
	r := h.tracker.Read()
	return c.Send(fmt.Sprintf("Hi! I will message you every time another hour passes since %s.\n\n%s",
		r.Epoch.Format("2 Jan 2006 15:04 -07:00"), formatReading(r)))
}

func (h *botCommands) help(c telebot.Context) error {
	h.logger.WithField("command", "/help").WithField("chat_id", c.Chat().ID).Info("Processing /help command")

	var helpText strings.Builder
	helpText.WriteString("Available commands:\n\n")
	helpText.WriteString("`/elapsed`\n - Show how much time has passed.\n\n")
	helpText.WriteString("`/photos`\n - List the gallery.\n\n")
	helpText.WriteString("`/photo <id>`\n - Show one photo.\n\n")
	helpText.WriteString("`/delete_photo <id>`\n - Delete a photo.\n\n")
	helpText.WriteString("`/mainphoto`\n - Show the main photo.\n\n")
	helpText.WriteString("Send a photo to add it to the gallery. Caption it `main` to make it the main photo.")
	return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

func (h *botCommands) elapsed(c telebot.Context) error {
	h.logger.WithField("command", "/elapsed").WithField("chat_id", c.Chat().ID).Info("Processing /elapsed command")
	return c.Send(formatReading(h.tracker.Read()))
}

func formatReading(r app.Reading) string {
	b := r.Breakdown
	return fmt.Sprintf("%d years, %d months, %d days, %d hours, %d minutes\n(%s)",
		b.Years, b.Months, b.Days, b.Hours, b.Minutes, b.Widget())
}
