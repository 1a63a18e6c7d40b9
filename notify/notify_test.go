package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_UsesSender(t *testing.T) {
	var got []string
	n := &Notifier{send: func(title, body string) error {
		got = append(got, title+": "+body)
		return nil
	}}

	assert.NoError(t, n.Notify("Spark is paused", "capture stopped"))
	assert.Equal(t, []string{"Spark is paused: capture stopped"}, got)
}

func TestNotifier_PropagatesSendError(t *testing.T) {
	n := &Notifier{send: func(title, body string) error { return errors.New("no bus") }}
	assert.EqualError(t, n.Notify("t", "b"), "no bus")
}

func TestNotifier_LogOnly(t *testing.T) {
	n := &Notifier{}
	assert.NoError(t, n.Notify("t", "b"))
}
