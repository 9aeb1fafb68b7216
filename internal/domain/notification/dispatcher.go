// internal/domain/notification/dispatcher.go
package notification

import (
	"context"
	"fmt"
)

// ErrPermissionDenied is returned by a Dispatcher when the host refuses to
// deliver notifications (user blocked the bot, chat forbidden, ...).
var ErrPermissionDenied = fmt.Errorf("notification permission denied")

// Dispatcher delivers a single notification. This decouples the hour tracker
// from the concrete delivery channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, title, body string) error
}

// DispatcherFunc adapts a plain function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, title, body string) error

func (f DispatcherFunc) Dispatch(ctx context.Context, title, body string) error {
	return f(ctx, title, body)
}
