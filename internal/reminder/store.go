package reminder

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Delivered tri-state.
const (
	DeliveredPending = 0
	DeliveredDone    = 1
	DeliveredFailed  = 2
)

// Reminder mirrors the persisted row.
type Reminder struct {
	ID             string
	UserID         string
	DeviceID       string
	RemindAt       time.Time
	Message        string
	Delivered      int
	IsRecurring    bool
	RecurrenceRule string
}

// Store persists reminders (and, via the same database, the device
// directory) to PostgreSQL.
type Store struct {
	DB *sql.DB
}

// Open connects to Postgres at connStr and applies any pending migrations.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("reminder store open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("reminder store ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("reminder store migrate: %w", err)
	}
	return &Store{DB: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	if err = db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`).Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Insert adds a new reminder row.
func (s *Store) Insert(ctx context.Context, r Reminder) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO reminders (id, user_id, device_id, remind_at, message, delivered, is_recurring, recurrence_rule)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.UserID, r.DeviceID, r.RemindAt.UTC(), r.Message, r.Delivered, r.IsRecurring, r.RecurrenceRule)
	return err
}

// DueReminders returns all pending reminders whose remind_at has passed,
// within the given transaction so the scheduler's scan-then-update is atomic
// with respect to its own commit.
func DueReminders(ctx context.Context, tx *sql.Tx, now time.Time) ([]Reminder, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, device_id, remind_at, message, delivered, is_recurring, recurrence_rule
		FROM reminders
		WHERE remind_at <= $1 AND delivered = 0
	`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.UserID, &r.DeviceID, &r.RemindAt, &r.Message,
			&r.Delivered, &r.IsRecurring, &r.RecurrenceRule); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkDelivered sets delivered=1 (success) within tx.
func MarkDelivered(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE reminders SET delivered = $1 WHERE id = $2`, DeliveredDone, id)
	return err
}

// MarkFailed sets delivered=2 (expired, stop retrying) within tx.
func MarkFailed(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE reminders SET delivered = $1 WHERE id = $2`, DeliveredFailed, id)
	return err
}

// List returns a device's pending reminders, soonest first, for the
// reminder.list tool.
func (s *Store) List(ctx context.Context, deviceID string, limit int) ([]Reminder, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, device_id, remind_at, message, delivered, is_recurring, recurrence_rule
		FROM reminders
		WHERE device_id = $1 AND delivered = 0
		ORDER BY remind_at ASC
		LIMIT $2
	`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.UserID, &r.DeviceID, &r.RemindAt, &r.Message,
			&r.Delivered, &r.IsRecurring, &r.RecurrenceRule); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Cancel marks a reminder failed/cancelled so the scheduler stops retrying it.
func (s *Store) Cancel(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE reminders SET delivered = $1 WHERE id = $2`, DeliveredFailed, id)
	return err
}
