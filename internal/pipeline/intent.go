package pipeline

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// IntentAction is the discriminator of the LLM's tagged JSON response.
type IntentAction string

const (
	ActionChat       IntentAction = "chat"
	ActionExecute    IntentAction = "execute"
	ActionMusic      IntentAction = "music"
	ActionMusicStop  IntentAction = "music_stop"
	ActionMusicPause IntentAction = "music_pause"
	ActionRemind     IntentAction = "remind"
)

// Intent is the tagged variant decoded from the LLM's raw response text.
// Only the fields relevant to Action are populated by the model; the rest
// are zero values.
type Intent struct {
	Action  IntentAction   `json:"action"`
	Reply   string         `json:"reply"`
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Query   string         `json:"query,omitempty"`   // music
	Message string         `json:"message,omitempty"` // remind
	When    string         `json:"when,omitempty"`    // remind, free text
}

// ParseIntent decodes raw into a tagged Intent. A gjson probe of the "action"
// field avoids paying for a full json.Unmarshal on the common case — a plain
// conversational reply that isn't JSON at all. Anything that isn't a
// recognized action degrades to a chat intent carrying raw verbatim as the
// reply, matching original_source's openclaw_configured() fallback gate
// (§4.D): callers never see a decode error for ordinary chat turns.
func ParseIntent(raw string) Intent {
	action := gjson.Get(raw, "action").String()
	switch IntentAction(action) {
	case ActionExecute, ActionMusic, ActionMusicStop, ActionMusicPause, ActionRemind:
		var intent Intent
		if err := json.Unmarshal([]byte(raw), &intent); err != nil {
			return Intent{Action: ActionChat, Reply: raw}
		}
		return intent
	default:
		return Intent{Action: ActionChat, Reply: raw}
	}
}
