// Package scheduler runs the background reminder-delivery loop, reusing
// the same TTS-synthesis and rate-controlled playback path the interactive
// pipeline uses.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/echoear/gateway/internal/audio"
	"github.com/echoear/gateway/internal/metrics"
	"github.com/echoear/gateway/internal/pipeline"
	"github.com/echoear/gateway/internal/reminder"
	"github.com/echoear/gateway/internal/session"
	"github.com/echoear/gateway/internal/trace"
	"github.com/echoear/gateway/internal/transport"
)

const (
	startupDelay    = 5 * time.Second
	cyclePeriod     = 30 * time.Second
	expireThreshold = 1 * time.Hour
	deliveryBatch   = 4
)

// ConnLookup resolves a device id to its live connection, satisfied by
// ws.Registry without this package importing ws (it would otherwise cycle
// back through pipeline).
type ConnLookup interface {
	LookupConnection(deviceID string) (*transport.Sender, *session.Session, bool)
}

// Scheduler periodically scans for due reminders and delivers them to any
// connected, idle device.
type Scheduler struct {
	store  *reminder.Store
	conns  ConnLookup
	tts    *pipeline.TTSRouter
	engine string

	// Trace, when non-nil, records one run per delivered reminder under a
	// synthetic session keyed by device id, since deliveries have no
	// natural per-connection session of their own.
	Trace *trace.Store
}

// New creates a reminder scheduler.
func New(store *reminder.Store, conns ConnLookup, tts *pipeline.TTSRouter, ttsEngine string) *Scheduler {
	return &Scheduler{store: store, conns: conns, tts: tts, engine: ttsEngine}
}

// Run starts the scheduler loop. It blocks until ctx is cancelled, so callers
// run it in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	select {
	case <-time.After(startupDelay):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(cyclePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycleGuarded(ctx)
		}
	}
}

func (s *Scheduler) runCycleGuarded(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("reminder cycle panic", "panic", r)
		}
	}()
	if err := s.runCycle(ctx); err != nil {
		slog.Error("reminder cycle failed", "error", err)
	}
}

func (s *Scheduler) runCycle(ctx context.Context) error {
	tx, err := s.store.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	due, err := reminder.DueReminders(ctx, tx, time.Now())
	if err != nil {
		return err
	}

	for _, r := range due {
		s.deliverOne(ctx, tx, r)
	}

	return tx.Commit()
}

func (s *Scheduler) deliverOne(ctx context.Context, tx *sql.Tx, r reminder.Reminder) {
	sender, sess, ok := s.conns.LookupConnection(r.DeviceID)
	if !ok || sess.Busy() {
		metrics.RemindersDelivered.WithLabelValues("deferred").Inc()
		return
	}

	var tr *trace.Tracer
	if s.Trace != nil {
		traceSessionID := "reminder:" + r.DeviceID
		if err := s.Trace.EnsureSession(traceSessionID, "device:"+r.DeviceID); err != nil {
			slog.Warn("trace session ensure failed", "device_id", r.DeviceID, "error", err)
		}
		tr = trace.NewTracer(s.Trace, traceSessionID)
		defer tr.Close()
	}
	runID := tr.StartRun()
	start := time.Now()

	if err := s.speak(ctx, sender, sess, r.Message); err != nil {
		tr.EndRun(runID, msSince(start), "", r.Message, "error")
		slog.Warn("reminder delivery failed", "reminder_id", r.ID, "error", err)
		s.failOrRetry(ctx, tx, r)
		return
	}
	tr.EndRun(runID, msSince(start), "", r.Message, "ok")

	if err := reminder.MarkDelivered(ctx, tx, r.ID); err != nil {
		slog.Error("mark reminder delivered failed", "reminder_id", r.ID, "error", err)
		return
	}
	metrics.RemindersDelivered.WithLabelValues("delivered").Inc()

	if r.IsRecurring {
		s.reinsert(ctx, r)
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

func (s *Scheduler) failOrRetry(ctx context.Context, tx *sql.Tx, r reminder.Reminder) {
	if time.Since(r.RemindAt) > expireThreshold {
		if err := reminder.MarkFailed(ctx, tx, r.ID); err != nil {
			slog.Error("mark reminder failed failed", "reminder_id", r.ID, "error", err)
		}
		metrics.RemindersDelivered.WithLabelValues("failed").Inc()
		return
	}
	metrics.RemindersDelivered.WithLabelValues("deferred").Inc()
}

func (s *Scheduler) reinsert(ctx context.Context, r reminder.Reminder) {
	next, ok := reminder.NextOccurrence(r.RemindAt, r.RecurrenceRule)
	if !ok {
		slog.Warn("recurrence rule no longer resolves", "reminder_id", r.ID, "rule", r.RecurrenceRule)
		return
	}
	err := s.store.Insert(ctx, reminder.Reminder{
		ID:             newReminderID(),
		UserID:         r.UserID,
		DeviceID:       r.DeviceID,
		RemindAt:       next,
		Message:        r.Message,
		IsRecurring:    true,
		RecurrenceRule: r.RecurrenceRule,
	})
	if err != nil {
		slog.Error("reinsert recurring reminder failed", "reminder_id", r.ID, "error", err)
	}
}

func (s *Scheduler) speak(ctx context.Context, sender *transport.Sender, sess *session.Session, text string) error {
	result, err := s.tts.Synthesize(ctx, text, s.engine)
	if err != nil {
		return err
	}

	if !sendJSON(sender, map[string]string{"type": "tts_start", "text": text}, "tts_start") {
		return errSendFailed
	}

	rc := audio.NewRateController(audio.FrameDurationMs)
	rc.EnqueueAll(result.Frames)
	rc.DrainBatched(
		func(frame []byte) bool { return sender.SendBinary(frame, "reminder_frame") },
		func() bool { return sess.TTSAbort.Load() },
		deliveryBatch,
	)

	sendJSON(sender, map[string]string{"type": "tts_end"}, "tts_end")
	return nil
}
