package scheduler

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/echoear/gateway/internal/transport"
)

var errSendFailed = errors.New("scheduler: send failed")

func sendJSON(sender *transport.Sender, v any, label string) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return sender.SendText(payload, label)
}

func newReminderID() string {
	return uuid.NewString()
}
