package pipeline

import (
	"encoding/json"

	"github.com/echoear/gateway/internal/transport"
)

// Outbound message envelopes sent to the device over the text channel.
// Each mirrors one row of the connection handler's protocol table.

type errorOut struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type asrTextOut struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ttsStartOut struct {
	Type string `json:"type"`
	Text string `json:"text"`
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
