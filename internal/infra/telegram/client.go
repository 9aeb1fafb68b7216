// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gopkg.in/telebot.v3"

	"elapsed_tracker/internal/domain/notification"
	domainTelegram "elapsed_tracker/internal/domain/telegram"
)

// Dispatcher implements notification.Dispatcher by messaging a single chat.
type Dispatcher struct {
	bot    domainTelegram.Client
	chatID int64
}

func NewDispatcher(b domainTelegram.Client, chatID int64) *Dispatcher {
	return &Dispatcher{bot: b, chatID: chatID}
}

// Dispatch sends "title\n\nbody" to the configured chat. Telegram 403 errors
// (bot blocked, kicked, never started) map to notification.ErrPermissionDenied.
// telebot does not take a context, so Dispatch stops waiting when ctx is done
// and the send finishes in the background.
func (d *Dispatcher) Dispatch(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sent := make(chan error, 1)
	go func() {
		_, err := d.bot.Send(telebot.ChatID(d.chatID), title+"\n\n"+body, &telebot.SendOptions{ParseMode: telebot.ModeDefault})
		sent <- err
	}()

	select {
	case err := <-sent:
		return mapSendError(err)
	case <-ctx.Done():
		return fmt.Errorf("telegram send abandoned: %w", ctx.Err())
	}
}

func mapSendError(err error) error {
	if err == nil {
		return nil
	}
	var tbErr *telebot.Error
	if errors.As(err, &tbErr) && tbErr.Code == http.StatusForbidden {
		return fmt.Errorf("%w: %s", notification.ErrPermissionDenied, tbErr.Description)
	}
	return fmt.Errorf("telegram send failed: %w", err)
}
