// Package builtin provides the concrete tool handlers bound to this
// gateway's in-scope session state and storage, plus stub handlers for
// tools whose side effects are out-of-scope external collaborators.
package builtin

import (
	"context"

	"github.com/echoear/gateway/internal/session"
	"github.com/echoear/gateway/internal/tools"
)

// Player registers the player.pause/resume/stop tools, which toggle the
// session's music_playing/music_paused flags the pipeline's "music_stop"
// and "music_pause" intents also touch.
func Player(reg *tools.Registry) {
	reg.Register(tools.ToolDef{
		Name:        "player.pause",
		Description: "Pause the currently playing audio",
		Handler: func(_ context.Context, _ map[string]any, sess *session.Session) tools.ToolResult {
			sess.SetMusicPaused(true)
			return tools.ToolResult{Type: "music", Text: "Paused"}
		},
	})

	reg.Register(tools.ToolDef{
		Name:        "player.resume",
		Description: "Resume paused audio",
		Handler: func(_ context.Context, _ map[string]any, sess *session.Session) tools.ToolResult {
			sess.SetMusicPaused(false)
			return tools.ToolResult{Type: "music", Text: "Resumed"}
		},
	})

	reg.Register(tools.ToolDef{
		Name:        "player.stop",
		Description: "Stop audio playback",
		Handler: func(_ context.Context, _ map[string]any, sess *session.Session) tools.ToolResult {
			sess.SetMusicPlaying(false)
			sess.SetMusicPaused(false)
			return tools.ToolResult{Type: "music", Text: "Stopped"}
		},
	})
}
