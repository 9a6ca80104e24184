package pipeline

// intentInstructions is appended to the system prompt so the model replies
// with a tagged JSON envelope ParseIntent can decode. A response that isn't
// well-formed JSON, or whose action isn't one of these five, is treated as a
// plain chat reply (§4.D) — the model is never blocked on getting this exactly
// right.
const intentInstructions = `
When you want to speak normally, just reply with plain text.
When the user's request maps to one of the actions below, reply with ONLY a
single JSON object (no surrounding prose) shaped like one of:

{"action":"execute","tool":"<tool name>","args":{...},"reply":"<what to say>"}
{"action":"music","query":"<song or artist>","reply":"<what to say>"}
{"action":"music_stop","reply":"<what to say>"}
{"action":"music_pause","reply":"<what to say>"}
{"action":"remind","message":"<reminder text>","when":"<time or recurrence phrase>","reply":"<what to say>"}

Available tools for "execute":
%s`
