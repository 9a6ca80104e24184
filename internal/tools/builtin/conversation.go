package builtin

import (
	"context"

	"github.com/echoear/gateway/internal/pipeline"
	"github.com/echoear/gateway/internal/session"
	"github.com/echoear/gateway/internal/tools"
)

// Conversation registers conversation.reset, which clears the device's
// rolling LLM history so the next turn starts fresh.
func Conversation(reg *tools.Registry, history *pipeline.History) {
	reg.Register(tools.ToolDef{
		Name:        "conversation.reset",
		Description: "Forget the current conversation and start over",
		Handler: func(_ context.Context, _ map[string]any, sess *session.Session) tools.ToolResult {
			history.Reset(sess.DeviceID)
			return tools.ToolResult{Type: "tts", Text: "Okay, starting fresh."}
		},
	})
}
