package builtin

import (
	"github.com/echoear/gateway/internal/pipeline"
	"github.com/echoear/gateway/internal/reminder"
	"github.com/echoear/gateway/internal/tools"
)

// RegisterAll wires every builtin tool into reg.
func RegisterAll(reg *tools.Registry, store *reminder.Store, history *pipeline.History) {
	Player(reg)
	Conversation(reg, history)
	Reminder(reg, store)
	Stubs(reg)
}
