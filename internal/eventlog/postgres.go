package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// execer is satisfied by *pgxpool.Pool and by pgxmock pools.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgRecorder writes events to the event_logs table.
type PgRecorder struct {
	db execer
}

func NewPgRecorder(db execer) *PgRecorder {
	return &PgRecorder{db: db}
}

// EnsureSchema creates the event_logs table when it does not exist yet.
func (r *PgRecorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS event_logs (
			id          BIGSERIAL PRIMARY KEY,
			event_type  TEXT        NOT NULL,
			subject_id  TEXT        NOT NULL,
			payload     JSONB,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create event_logs table: %w", err)
	}
	return nil
}

func (r *PgRecorder) Record(ctx context.Context, ev Event) error {
	var payload []byte
	if len(ev.Payload) > 0 {
		payload = ev.Payload
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, subject_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.Type, ev.SubjectID, payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
