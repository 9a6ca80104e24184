package prompts

const DefaultSystem = "You are the voice assistant running on a small bedside speaker. " +
	"Keep responses short and conversational, since they are spoken aloud, not read."

// ForSession resolves the final system prompt for a device session.
func ForSession(systemPrompt string) string {
	if systemPrompt != "" {
		return systemPrompt
	}
	return DefaultSystem
}
