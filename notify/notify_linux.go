//go:build linux

package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsDest = "org.freedesktop.Notifications"
	notificationsPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod      = "org.freedesktop.Notifications.Notify"
	expireTimeoutMs   = int32(5000)
)

// platformSend calls org.freedesktop.Notifications on the session bus
func platformSend(title, body string) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}

	obj := conn.Object(notificationsDest, notificationsPath)
	call := obj.Call(notifyMethod, 0,
		AppName,
		uint32(0),
		"dialog-information",
		title,
		body,
		[]string{},
		map[string]dbus.Variant{},
		expireTimeoutMs,
	)
	if call.Err != nil {
		return fmt.Errorf("send notification: %w", call.Err)
	}
	return nil
}
