package ingest

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists accepted events.
type Repository interface {
	InsertEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, workspaceID int64, limit int) ([]Event, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) InsertEvent(ctx context.Context, event *Event) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO ingest_events (workspace_id, source, kind, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		event.WorkspaceID, event.Source, event.Kind, event.Payload, event.ReceivedAt,
	).Scan(&event.ID)
}

func (r *PGRepository) ListEvents(ctx context.Context, workspaceID int64, limit int) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, workspace_id, source, kind, payload, received_at
		FROM ingest_events
		WHERE workspace_id = $1
		ORDER BY received_at DESC, id DESC
		LIMIT $2`,
		workspaceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.Source, &e.Kind, &e.Payload, &e.ReceivedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteOlderThan trims events past their retention, returning the number
// of rows removed. Invoked from the cleanup job.
func (r *PGRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ingest_events WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
