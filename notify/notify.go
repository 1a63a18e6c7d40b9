// Package notify shows desktop notifications. On platforms without a
// notification service the message is logged instead.
package notify

import "log/slog"

// AppName is shown as the notification source
const AppName = "Spark"

// Notifier sends desktop notifications
type Notifier struct {
	send func(title, body string) error
}

// New creates a notifier for the current platform
func New() *Notifier {
	return &Notifier{send: platformSend}
}

// Notify shows title and body. The message is always logged as well.
func (n *Notifier) Notify(title, body string) error {
	slog.Info("Notification", "title", title, "body", body)
	if n.send == nil {
		return nil
	}
	return n.send(title, body)
}
