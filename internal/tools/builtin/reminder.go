package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/echoear/gateway/internal/reminder"
	"github.com/echoear/gateway/internal/session"
	"github.com/echoear/gateway/internal/tools"
)

// Reminder registers reminder.set/list/cancel, CRUD tools against the
// reminder store backing the scheduler's delivery cycle.
func Reminder(reg *tools.Registry, store *reminder.Store) {
	reg.Register(tools.ToolDef{
		Name:        "reminder.set",
		Description: "Schedule a spoken reminder",
		Params: []tools.ToolParam{
			{Name: "message", Type: "string", Required: true},
			{Name: "when", Type: "string", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any, sess *session.Session) tools.ToolResult {
			message, _ := args["message"].(string)
			when, _ := args["when"].(string)

			remindAt, rule, err := resolveWhen(when)
			if err != nil {
				return tools.ToolResult{Type: "error", Text: err.Error()}
			}

			r := reminder.Reminder{
				ID:             uuid.NewString(),
				UserID:         sess.DeviceID,
				DeviceID:       sess.DeviceID,
				RemindAt:       remindAt,
				Message:        message,
				IsRecurring:    rule != "",
				RecurrenceRule: rule,
			}
			if err := store.Insert(ctx, r); err != nil {
				return tools.ToolResult{Type: "error", Text: "could not save reminder: " + err.Error()}
			}
			return tools.ToolResult{
				Type: "tts",
				Text: fmt.Sprintf("Okay, I'll remind you at %s.", remindAt.Local().Format("3:04 PM")),
				Data: map[string]any{"reminder_id": r.ID},
			}
		},
	})

	reg.Register(tools.ToolDef{
		Name:        "reminder.list",
		Description: "List upcoming reminders for this device",
		Handler: func(ctx context.Context, _ map[string]any, sess *session.Session) tools.ToolResult {
			reminders, err := store.List(ctx, sess.DeviceID, 10)
			if err != nil {
				return tools.ToolResult{Type: "error", Text: "could not list reminders: " + err.Error()}
			}
			if len(reminders) == 0 {
				return tools.ToolResult{Type: "tts", Text: "You have no upcoming reminders."}
			}
			ids := make([]string, 0, len(reminders))
			for _, r := range reminders {
				ids = append(ids, r.ID)
			}
			return tools.ToolResult{
				Type: "tts",
				Text: fmt.Sprintf("You have %d upcoming reminders.", len(reminders)),
				Data: map[string]any{"reminder_ids": ids},
			}
		},
	})

	reg.Register(tools.ToolDef{
		Name:        "reminder.cancel",
		Description: "Cancel a scheduled reminder by id",
		Params: []tools.ToolParam{
			{Name: "reminder_id", Type: "string", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any, _ *session.Session) tools.ToolResult {
			id, _ := args["reminder_id"].(string)
			if err := store.Cancel(ctx, id); err != nil {
				return tools.ToolResult{Type: "error", Text: "could not cancel reminder: " + err.Error()}
			}
			return tools.ToolResult{Type: "tts", Text: "Reminder cancelled."}
		},
	})
}

// resolveWhen accepts either an RFC3339 timestamp or a recurrence phrase
// ("daily", "weekdays", "8:00", ...) recognized by reminder.NextOccurrence.
func resolveWhen(when string) (time.Time, string, error) {
	if t, err := time.Parse(time.RFC3339, when); err == nil {
		return t, "", nil
	}
	if next, ok := reminder.NextOccurrence(time.Now(), when); ok {
		return next, when, nil
	}
	if rule := reminder.ParseRecurrenceFromText(when); rule != "" {
		if next, ok := reminder.NextOccurrence(time.Now(), rule); ok {
			return next, rule, nil
		}
	}
	return time.Time{}, "", fmt.Errorf("could not understand reminder time %q", when)
}
