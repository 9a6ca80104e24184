package ws

import (
	"encoding/json"

	"github.com/echoear/gateway/internal/transport"
)

type errorOut struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ttsEndOut struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

func sendJSON(sender *transport.Sender, v any, label string) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return sender.SendText(payload, label)
}

func sendError(sender *transport.Sender, message string) {
	sendJSON(sender, errorOut{Type: "error", Message: message}, "error")
}
