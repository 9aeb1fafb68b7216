package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogDispatcher writes notifications to the log. Used when no delivery
// channel is configured.
type LogDispatcher struct {
	logger *logrus.Entry
}

func NewLogDispatcher(logger *logrus.Entry) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, title, body string) error {
	d.logger.WithFields(logrus.Fields{
		"title": title,
		"body":  body,
	}).Info("Notification")
	return nil
}
