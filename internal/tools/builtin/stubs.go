package builtin

import (
	"context"

	"github.com/echoear/gateway/internal/session"
	"github.com/echoear/gateway/internal/tools"
)

// stub returns a well-formed but inert ToolResult — these names are
// deliberately out of scope as external collaborators (youtube, weather,
// search, hardware volume, alarms, timers, calendars, notes) but still need
// registry entries so DescriptionsForLLM and the unknown-tool path both
// behave correctly whether or not the LLM names them.
func stub(name, text string) tools.ToolDef {
	return tools.ToolDef{
		Name:        name,
		Description: "Not available in this deployment",
		Handler: func(_ context.Context, _ map[string]any, _ *session.Session) tools.ToolResult {
			return tools.ToolResult{Type: "tts", Text: text}
		},
	}
}

// Stubs registers every out-of-scope tool named in the builtin catalog.
func Stubs(reg *tools.Registry) {
	for _, def := range []tools.ToolDef{
		stub("youtube.play", "Music streaming isn't set up on this device yet."),
		stub("weather.query", "I can't check the weather right now."),
		stub("web.search", "I can't search the web right now."),
		stub("volume.set", "I can't adjust the volume from here."),
		stub("volume.up", "I can't adjust the volume from here."),
		stub("volume.down", "I can't adjust the volume from here."),
		stub("alarm.set", "Alarms aren't supported yet."),
		stub("alarm.cancel", "Alarms aren't supported yet."),
		stub("timer.set", "Timers aren't supported yet."),
		stub("timer.cancel", "Timers aren't supported yet."),
		stub("briefing.daily", "I don't have a daily briefing configured."),
		stub("meeting.join", "Meeting integrations aren't configured."),
		stub("meeting.schedule", "Meeting integrations aren't configured."),
		stub("note.save", "Note-taking isn't configured on this device."),
	} {
		reg.Register(def)
	}
}
