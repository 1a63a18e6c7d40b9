//go:build !linux

package notify

// platformSend is nil; Notify only logs
var platformSend func(title, body string) error
